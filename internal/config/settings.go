package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Notifier type constants
const (
	NotifierLog  = "log"
	NotifierSMTP = "smtp"
	NotifierNone = "none"
)

// SMTP TLS policies
const (
	TLSMandatory     = "mandatory"
	TLSOpportunistic = "opportunistic"
	TLSNone          = "none"
)

// EnvPrefix prefixes every environment variable read by repoguard.
const EnvPrefix = "REPOGUARD"

// SMTPSettings configuration for the email notifier
type SMTPSettings struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	From      string `mapstructure:"from"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	TLSPolicy string `mapstructure:"tls_policy"` // TLSMandatory, TLSOpportunistic or TLSNone
}

// NotifierSettings selects and configures the alert transport
type NotifierSettings struct {
	Type string       `mapstructure:"type"` // NotifierLog, NotifierSMTP or NotifierNone
	SMTP SMTPSettings `mapstructure:"smtp"`
}

// Settings application settings
type Settings struct {
	WorkingDir        string           `mapstructure:"working_dir"`
	RepoListPath      string           `mapstructure:"repo_list_path"`
	StatusPath        string           `mapstructure:"status_path"`
	RulesPath         string           `mapstructure:"rules_path"`
	SubscriptionsPath string           `mapstructure:"subscriptions_path"`
	IndexDir          string           `mapstructure:"index_dir"`
	MaxCommits        int              `mapstructure:"max_commits"`
	Backfill          bool             `mapstructure:"backfill"`
	SkipRepos         []string         `mapstructure:"skip_repos"`
	Languages         []string         `mapstructure:"languages"`
	ExcludePaths      []string         `mapstructure:"exclude_paths"`
	Sync              bool             `mapstructure:"sync"`
	Notifier          NotifierSettings `mapstructure:"notifier"`
	LogLevel          string           `mapstructure:"log_level"`
}

// flagKeys maps setting keys to the CLI flags that override them.
var flagKeys = map[string]string{
	"working_dir":              "working-dir",
	"repo_list_path":           "repo-list",
	"status_path":              "status-file",
	"rules_path":               "rules",
	"subscriptions_path":       "subscriptions",
	"index_dir":                "index-dir",
	"max_commits":              "max-commits",
	"backfill":                 "backfill",
	"skip_repos":               "skip-repos",
	"languages":                "languages",
	"exclude_paths":            "exclude-paths",
	"sync":                     "sync",
	"notifier.type":            "notifier",
	"notifier.smtp.host":       "smtp-host",
	"notifier.smtp.port":       "smtp-port",
	"notifier.smtp.from":       "smtp-from",
	"notifier.smtp.username":   "smtp-username",
	"notifier.smtp.password":   "smtp-password",
	"notifier.smtp.tls_policy": "smtp-tls",
	"log_level":                "log-level",
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	home := defaultHomeDir()
	v.SetDefault("working_dir", filepath.Join(home, "repos"))
	v.SetDefault("repo_list_path", filepath.Join(home, "repo_list.json"))
	v.SetDefault("status_path", filepath.Join(home, "repo_status.json"))
	v.SetDefault("rules_path", filepath.Join(home, "rules"))
	v.SetDefault("subscriptions_path", "")
	v.SetDefault("index_dir", filepath.Join(home, "findings.bleve"))
	v.SetDefault("max_commits", 100)
	v.SetDefault("backfill", false)
	v.SetDefault("skip_repos", []string{})
	v.SetDefault("languages", []string{})
	v.SetDefault("exclude_paths", []string{})
	v.SetDefault("sync", true)
	v.SetDefault("notifier.type", NotifierLog)
	v.SetDefault("notifier.smtp.port", 25)
	v.SetDefault("notifier.smtp.tls_policy", TLSOpportunistic)
	v.SetDefault("log_level", "info")

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Nested keys without a default are only seen by Unmarshal when bound
	for key := range flagKeys {
		_ = v.BindEnv(key, envName(key))
	}

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		for key, flag := range flagKeys {
			if f := flags.Lookup(flag); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	settings.SkipRepos = splitList(settings.SkipRepos, os.Getenv(envName("skip_repos")))
	settings.Languages = splitList(settings.Languages, os.Getenv(envName("languages")))
	settings.ExcludePaths = splitList(settings.ExcludePaths, os.Getenv(envName("exclude_paths")))

	settings.WorkingDir = expandHomeDir(settings.WorkingDir)
	settings.RepoListPath = expandHomeDir(settings.RepoListPath)
	settings.StatusPath = expandHomeDir(settings.StatusPath)
	settings.RulesPath = expandHomeDir(settings.RulesPath)
	settings.SubscriptionsPath = expandHomeDir(settings.SubscriptionsPath)
	settings.IndexDir = expandHomeDir(settings.IndexDir)
	settings.Notifier.Type = strings.ToLower(strings.TrimSpace(settings.Notifier.Type))
	settings.Notifier.SMTP.TLSPolicy = strings.ToLower(strings.TrimSpace(settings.Notifier.SMTP.TLSPolicy))

	return &settings, nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// splitList handles a list given as one comma-separated env var, then trims
// and drops empty entries.
func splitList(values []string, envValue string) []string {
	if envValue != "" {
		if len(values) == 0 || (len(values) == 1 && strings.Contains(values[0], ",")) {
			values = strings.Split(envValue, ",")
		}
	}

	var result []string
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" {
			result = append(result, s)
		}
	}
	return result
}

// defaultHomeDir returns the default base directory for repoguard state
func defaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".repoguard"
	}
	return filepath.Join(home, ".repoguard")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// ParseLogLevel maps a level name to a slog level. Empty means info.
func ParseLogLevel(level string) (slog.Level, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log-level: %s", level)
	}
	return l, nil
}

// ValidateSettings checks for missing or conflicting configuration.
func ValidateSettings(s *Settings) error {
	if s.WorkingDir == "" {
		return errors.New("working-dir cannot be empty")
	}
	if s.RepoListPath == "" {
		return errors.New("repo-list cannot be empty")
	}
	if s.StatusPath == "" {
		return errors.New("status-file cannot be empty")
	}
	if s.RulesPath == "" {
		return errors.New("rules cannot be empty")
	}
	if s.MaxCommits <= 0 {
		return errors.New("max-commits must be positive")
	}
	if _, err := ParseLogLevel(s.LogLevel); err != nil {
		return err
	}

	return validateNotifierSettings(&s.Notifier)
}

// validateNotifierSettings validates the notifier configuration
func validateNotifierSettings(n *NotifierSettings) error {
	hasSMTP := n.SMTP.Host != "" || n.SMTP.From != "" || n.SMTP.Username != "" || n.SMTP.Password != ""

	switch n.Type {
	case NotifierLog, NotifierNone:
		if hasSMTP {
			return fmt.Errorf("notifier '%s' is incompatible with smtp settings", n.Type)
		}
	case NotifierSMTP:
		if n.SMTP.Host == "" {
			return errors.New("notifier 'smtp' requires smtp-host")
		}
		if n.SMTP.Port <= 0 || n.SMTP.Port > 65535 {
			return errors.New("smtp-port must be between 1 and 65535")
		}
		if n.SMTP.From == "" {
			return errors.New("notifier 'smtp' requires smtp-from")
		}
		if (n.SMTP.Username == "") != (n.SMTP.Password == "") {
			return errors.New("smtp-username and smtp-password must be set together")
		}
		switch n.SMTP.TLSPolicy {
		case "", TLSMandatory, TLSOpportunistic, TLSNone:
		default:
			return errors.New("unknown smtp-tls policy: " + n.SMTP.TLSPolicy)
		}
	default:
		return errors.New("unknown notifier: " + n.Type)
	}

	return nil
}
