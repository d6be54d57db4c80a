package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sha1n/repoguard/internal/app"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "repoguard"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "Diff-aware commit scanner",
		Long: "repoguard mirrors a list of git repositories, checks every new commit " +
			"against a set of diff-aware rules and alerts the subscribers of matching rules.",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSignals(cmd.Flags(), version, app.RunWithDeps)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve recorded findings and repository status over MCP (stdio)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSignals(cmd.Flags(), version, app.ServeWithDeps)
		},
	}

	rootCmd.SetVersionTemplate(`{{.Version}} (build ` + build + `)
`)

	app.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(serveCmd)
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

type runFunc func(context.Context, app.RunParams, *pflag.FlagSet, string) error

func withSignals(flags *pflag.FlagSet, version string, run runFunc) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, app.DefaultRunParams(), flags, version)
}
