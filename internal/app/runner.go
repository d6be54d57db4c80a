package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/repoguard/internal/alert"
	"github.com/sha1n/repoguard/internal/config"
	"github.com/sha1n/repoguard/internal/domain"
	"github.com/sha1n/repoguard/internal/findings"
	"github.com/sha1n/repoguard/internal/gitrepos"
	mcputil "github.com/sha1n/repoguard/internal/mcp"
	"github.com/sha1n/repoguard/internal/rules"
	"github.com/sha1n/repoguard/internal/scan"
	"github.com/sha1n/repoguard/internal/tracker"
	"github.com/spf13/pflag"
)

// RunParams contains dependencies for the run and serve functions
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	NewGitClient      func() *gitrepos.GitClient
	NewNotifier       func(*config.Settings) (alert.Notifier, error)
	NewRunID          func() string
	CreateServer      func(*config.Settings, string) (*mcp.Server, error)
	LogOutput         io.Writer     // Optional: defaults to stderr
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:  config.LoadSettingsWithFlags,
		ValidSettings: config.ValidateSettings,
		NewGitClient:  gitrepos.NewGitClient,
		NewNotifier:   NewNotifier,
		NewRunID:      uuid.NewString,
		CreateServer:  CreateMCPServer,
	}
}

// RunSummary describes one completed scan pass.
type RunSummary struct {
	RunID      string
	Sync       gitrepos.SyncReport
	Scan       *scan.Report
	Recipients []string
}

func setup(params RunParams, flags *pflag.FlagSet) (*config.Settings, error) {
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if err := params.ValidSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Configure logging - always use stderr to keep stdout free for MCP
	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	slog.SetDefault(config.NewLogger(out, settings.LogLevel))

	return settings, nil
}

// RunWithDeps executes one scan pass with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	_, err := Scan(ctx, params, flags, version)
	return err
}

// Scan syncs the mirrors, checks unseen commits, saves the repository status,
// notifies subscribers and records the findings in the history index.
// Notification failures are returned after everything else has completed.
func Scan(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) (*RunSummary, error) {
	settings, err := setup(params, flags)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{RunID: params.NewRunID()}
	slog.Info("Starting repoguard scan", "version", version, "run_id", summary.RunID)
	config.Log(settings)

	if err := os.MkdirAll(settings.WorkingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}

	lock := gitrepos.NewFileLock(filepath.Join(settings.WorkingDir, gitrepos.RunLockFilename))
	if err := lock.TryLock(); err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Error("Failed to release run lock", "error", err)
		}
	}()

	repos, err := gitrepos.LoadRepoList(settings.RepoListPath)
	if err != nil {
		return nil, err
	}

	var ruleOpts []rules.Option
	if len(settings.ExcludePaths) > 0 {
		ruleOpts = append(ruleOpts, rules.WithPathFilter(rules.NewPathFilter(rules.ExpandExcludePatterns(settings.ExcludePaths))))
	}
	ruleSet, err := rules.Load(settings.RulesPath, ruleOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	slog.Info("Rules loaded", "count", ruleSet.Len())

	subs := alert.Subscriptions{}
	if settings.SubscriptionsPath != "" {
		if subs, err = alert.LoadSubscriptions(settings.SubscriptionsPath); err != nil {
			return nil, err
		}
	}

	notifier, err := params.NewNotifier(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}

	store, err := tracker.Load(settings.StatusPath, tracker.WithBackfill(settings.Backfill))
	if err != nil {
		return nil, err
	}

	git := params.NewGitClient()

	if settings.Sync {
		dirs, err := gitrepos.ListDirs(settings.WorkingDir)
		if err != nil {
			return nil, err
		}
		skip := gitrepos.NewSkipPolicy(settings.SkipRepos, settings.Languages)
		summary.Sync = gitrepos.NewSynchronizer(git, store, settings.WorkingDir, skip).Sync(ctx, repos, dirs)
	}

	entries, err := gitrepos.ListDirs(settings.WorkingDir)
	if err != nil {
		return nil, err
	}

	driver := scan.NewDriver(git, store, ruleSet, settings.WorkingDir, settings.MaxCommits)
	report, scanErr := driver.Run(ctx, entries)
	summary.Scan = report

	// Completed repositories keep their progress even when the pass was
	// interrupted, so their findings are still delivered.
	if err := store.Save(settings.StatusPath); err != nil {
		return summary, errors.Join(scanErr, err)
	}

	routed := alert.Route(subs, report.Findings)
	summary.Recipients = alert.Recipients(routed)
	notifyErr := alert.Dispatch(context.WithoutCancel(ctx), notifier, routed)

	recordFindings(settings.IndexDir, report.Findings, summary.RunID)

	if notifyErr != nil {
		notifyErr = fmt.Errorf("failed to deliver alerts: %w", notifyErr)
	}
	if err := errors.Join(scanErr, notifyErr); err != nil {
		return summary, err
	}
	return summary, nil
}

// recordFindings adds the run's findings to the history index. Failures are
// logged only.
func recordFindings(indexDir string, found []domain.Finding, runID string) {
	if indexDir == "" || len(found) == 0 {
		return
	}

	idx, err := findings.Open(indexDir)
	if err != nil {
		slog.Error("Failed to open findings index", "path", indexDir, "error", err)
		return
	}
	defer func() {
		if err := idx.Close(); err != nil {
			slog.Error("Failed to close findings index", "error", err)
		}
	}()

	n, err := idx.Add(found, runID)
	if err != nil {
		slog.Error("Failed to index findings", "error", err)
		return
	}
	slog.Info("Findings indexed", "count", n)
}

// NewNotifier creates the alert transport selected by the settings.
// NotifierNone yields a nil notifier, which disables delivery.
func NewNotifier(settings *config.Settings) (alert.Notifier, error) {
	switch settings.Notifier.Type {
	case config.NotifierLog, "":
		return alert.NewLogNotifier(slog.Default()), nil
	case config.NotifierSMTP:
		s := settings.Notifier.SMTP
		n, err := alert.NewSMTPNotifier(alert.SMTPConfig{
			Host:      s.Host,
			Port:      s.Port,
			From:      s.From,
			Username:  s.Username,
			Password:  s.Password,
			TLSPolicy: s.TLSPolicy,
		})
		if err != nil {
			return nil, err
		}
		return n, nil
	case config.NotifierNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown notifier: %s", settings.Notifier.Type)
	}
}

// ServeWithDeps runs the MCP query server over stdio until ctx is done
func ServeWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := setup(params, flags)
	if err != nil {
		return err
	}

	slog.Info("Starting repoguard MCP server", "version", version)
	config.Log(settings)

	mcpServer, err := params.CreateServer(settings, version)
	if err != nil {
		return err
	}

	// Use custom transport if provided (for testing), otherwise use stdio
	transport := params.CustomIOTransport
	if transport == nil {
		transport = &mcp.StdioTransport{}
	}
	return mcpServer.Run(ctx, transport)
}

// CreateMCPServer creates the MCP server with registered tools
func CreateMCPServer(settings *config.Settings, version string) (*mcp.Server, error) {
	repos, err := gitrepos.LoadRepoList(settings.RepoListPath)
	if err != nil {
		slog.Warn("Repository names unavailable", "error", err)
		repos = nil
	}

	return mcputil.CreateServer(mcputil.ServerConfig{
		Name:       "repoguard",
		Version:    version,
		IndexPath:  settings.IndexDir,
		StatusPath: settings.StatusPath,
		Repos:      repos,
	}), nil
}
