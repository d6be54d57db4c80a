package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("working-dir", "w", "", "Directory holding the repository mirrors")
	flags.StringP("repo-list", "r", "", "Repository list file (JSON)")
	flags.StringP("status-file", "s", "", "Repository status file (JSON)")
	flags.StringP("rules", "R", "", "Rule file or directory of rule files (YAML or JSON)")
	flags.StringP("subscriptions", "a", "", "Alert subscription file (YAML or JSON)")
	flags.String("index-dir", "", "Findings history index directory")
	flags.IntP("max-commits", "n", 0, "Number of recent commits fetched per repository")
	flags.Bool("backfill", false, "Report existing commits of repositories seen for the first time")
	flags.StringSlice("skip-repos", nil, "Repository names to leave out (comma-separated)")
	flags.StringSlice("languages", nil, "Only sync repositories in these languages (comma-separated)")
	flags.StringSlice("exclude-paths", nil, "Path globs whose diff lines are never reported; 'default' adds the vendored and generated file set")
	flags.Bool("sync", true, "Clone and pull mirrors before scanning")
	flags.String("notifier", "", "Alert transport: log, smtp or none")
	flags.String("smtp-host", "", "SMTP relay host")
	flags.Int("smtp-port", 0, "SMTP relay port")
	flags.String("smtp-from", "", "Sender address of alert emails")
	flags.String("smtp-username", "", "SMTP username")
	flags.String("smtp-password", "", "SMTP password")
	flags.String("smtp-tls", "", "SMTP TLS policy: mandatory, opportunistic or none")
	flags.StringP("log-level", "l", "", "Log level: debug, info, warn or error")
}
