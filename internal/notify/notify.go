// Package notify delivers escalation lifecycle events to external systems.
package notify

import (
	"context"
	"errors"

	"github.com/shubhsahu23/VoiceBot/internal/errorsx"
	"github.com/shubhsahu23/VoiceBot/internal/escalation"
)

// Multi fans an event out to every notifier and joins their errors.
type Multi []escalation.Notifier

// Notify implements escalation.Notifier.
func (m Multi) Notify(ctx context.Context, ev escalation.Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errorsx.Wrap(errors.Join(errs...), errorsx.ReasonNotify)
}
