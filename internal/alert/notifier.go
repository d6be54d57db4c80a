package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sha1n/repoguard/internal/domain"
	"github.com/wneessen/go-mail"
)

// Notifier delivers the findings routed to one recipient.
type Notifier interface {
	Notify(ctx context.Context, recipient string, findings []domain.Finding) error
}

// LogNotifier writes each notification to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, recipient string, findings []domain.Finding) error {
	for _, f := range findings {
		n.logger.InfoContext(ctx, "Alert",
			"recipient", recipient,
			"rule", f.RuleName,
			"repo", f.RepoDir,
			"repo_id", f.RepoID,
			"commit", f.CommitHash,
			"file", f.FilePath,
			"line", f.Line)
	}
	return nil
}

// SMTP TLS policies accepted by SMTPConfig.TLSPolicy.
const (
	TLSMandatory     = "mandatory"
	TLSOpportunistic = "opportunistic"
	TLSNone          = "none"
)

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
	// TLSPolicy is TLSMandatory, TLSOpportunistic or TLSNone. Empty means
	// TLSOpportunistic.
	TLSPolicy string
}

type sendFunc func(ctx context.Context, messages ...*mail.Msg) error

// SMTPNotifier sends one plain-text email per recipient.
type SMTPNotifier struct {
	cfg  SMTPConfig
	send sendFunc
	now  func() time.Time
}

// NewSMTPNotifier creates an SMTPNotifier. The relay is dialed per notification.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	return &SMTPNotifier{
		cfg:  cfg,
		send: client.DialAndSendWithContext,
		now:  time.Now,
	}, nil
}

func tlsPolicy(policy string) mail.TLSPolicy {
	switch policy {
	case TLSMandatory:
		return mail.TLSMandatory
	case TLSNone:
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}

func (n *SMTPNotifier) Notify(ctx context.Context, recipient string, findings []domain.Finding) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := n.compose(recipient, findings)
	if err != nil {
		return err
	}
	if err := n.send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) compose(recipient string, findings []domain.Finding) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", n.cfg.From, err)
	}
	if err := msg.To(recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", recipient, err)
	}
	msg.Subject(fmt.Sprintf("[repoguard] %d new alert(s)", len(findings)))
	msg.SetDateWithValue(n.now())
	msg.SetBodyString(mail.TypeTextPlain, FormatFindings(findings))
	return msg, nil
}

// FormatFindings renders findings as a plain-text report.
func FormatFindings(findings []domain.Finding) string {
	var b strings.Builder
	for i, f := range findings {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Rule: %s\n", f.RuleName)
		fmt.Fprintf(&b, "Repository: %s (%s)\n", f.RepoDir, f.RepoID)
		fmt.Fprintf(&b, "Commit: %s\n", f.CommitHash)
		fmt.Fprintf(&b, "File: %s\n", f.FilePath)
		fmt.Fprintf(&b, "Line: %s\n", strings.TrimRight(f.Line, "\r\n"))
	}
	return b.String()
}
