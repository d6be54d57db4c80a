package config

import (
	"context"
	"io"
	"log/slog"
)

// NewLogger creates the text logger used by every command. Output goes to w,
// which is stderr in production so stdout stays free for the MCP transport.
func NewLogger(w io.Writer, level string) *slog.Logger {
	l, err := ParseLogLevel(level)
	if err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: working_dir", "value", s.WorkingDir)
	logger.InfoContext(ctx, "Config: repo_list_path", "value", s.RepoListPath)
	logger.InfoContext(ctx, "Config: status_path", "value", s.StatusPath)
	logger.InfoContext(ctx, "Config: rules_path", "value", s.RulesPath)
	if s.SubscriptionsPath != "" {
		logger.InfoContext(ctx, "Config: subscriptions_path", "value", s.SubscriptionsPath)
	}
	if s.IndexDir != "" {
		logger.InfoContext(ctx, "Config: index_dir", "value", s.IndexDir)
	}
	logger.InfoContext(ctx, "Config: max_commits", "value", s.MaxCommits)
	logger.InfoContext(ctx, "Config: backfill", "value", s.Backfill)
	logger.InfoContext(ctx, "Config: sync", "value", s.Sync)
	if len(s.SkipRepos) > 0 {
		logger.InfoContext(ctx, "Config: skip_repos", "value", s.SkipRepos)
	}
	if len(s.Languages) > 0 {
		logger.InfoContext(ctx, "Config: languages", "value", s.Languages)
	}
	if len(s.ExcludePaths) > 0 {
		logger.InfoContext(ctx, "Config: exclude_paths", "value", s.ExcludePaths)
	}

	logger.InfoContext(ctx, "Config: notifier.type", "value", s.Notifier.Type)
	if s.Notifier.Type == NotifierSMTP {
		logger.InfoContext(ctx, "Config: notifier.smtp", "value", SMTPSettingsLogValue(s.Notifier.SMTP))
	}
}

// SMTPSettingsLogValue returns a slog.Value for SMTPSettings with masked data
func SMTPSettingsLogValue(s SMTPSettings) slog.Value {
	password := ""
	if s.Password != "" {
		password = "****"
	}
	return slog.GroupValue(
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.String("from", s.From),
		slog.String("username", s.Username),
		slog.String("password", password),
		slog.String("tls_policy", s.TLSPolicy),
	)
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("working_dir", s.WorkingDir),
		slog.String("rules_path", s.RulesPath),
		slog.Int("max_commits", s.MaxCommits),
		slog.Bool("backfill", s.Backfill),
		slog.String("notifier", s.Notifier.Type),
		slog.Any("smtp", SMTPSettingsLogValue(s.Notifier.SMTP)),
	)
}
