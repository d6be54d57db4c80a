package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sha1n/repoguard/internal/domain"
)

// Route groups findings by recipient. Each recipient gets every finding whose
// rule they are subscribed to, in finding order. Recipients with no findings
// are absent from the result.
func Route(subs Subscriptions, findings []domain.Finding) map[string][]domain.Finding {
	routed := make(map[string][]domain.Finding)
	for _, f := range findings {
		for _, recipient := range subs.Resolve(f.RuleName) {
			routed[recipient] = append(routed[recipient], f)
		}
	}
	return routed
}

// Recipients returns the recipients of a routing result in sorted order.
func Recipients(routed map[string][]domain.Finding) []string {
	recipients := make([]string, 0, len(routed))
	for r, findings := range routed {
		if len(findings) > 0 {
			recipients = append(recipients, r)
		}
	}
	slices.Sort(recipients)
	return recipients
}

// Dispatch sends one notification per recipient with a non-empty finding list,
// in recipient order. A failing recipient does not stop the others; all
// failures are returned joined. A nil notifier disables delivery.
func Dispatch(ctx context.Context, notifier Notifier, routed map[string][]domain.Finding) error {
	if notifier == nil {
		slog.Debug("Notifications disabled", "recipients", len(routed))
		return nil
	}

	var errs []error
	for _, recipient := range Recipients(routed) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := notifier.Notify(ctx, recipient, routed[recipient]); err != nil {
			slog.Error("Failed to notify recipient", "recipient", recipient, "error", err)
			errs = append(errs, fmt.Errorf("notify %s: %w", recipient, err))
			continue
		}
		slog.Info("Notified recipient", "recipient", recipient, "findings", len(routed[recipient]))
	}
	return errors.Join(errs...)
}
