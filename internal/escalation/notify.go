package escalation

import (
	"context"
	"time"

	"github.com/shubhsahu23/VoiceBot/internal/domain"
)

// EventType names a ticket lifecycle event.
type EventType string

const (
	EventOpened       EventType = "ticket.opened"
	EventAccepted     EventType = "ticket.accepted"
	EventResolved     EventType = "ticket.resolved"
	EventAutoResolved EventType = "ticket.auto_resolved"
)

// Event describes a ticket state change.
type Event struct {
	Type   EventType     `json:"type"`
	Ticket domain.Ticket `json:"ticket"`
	At     time.Time     `json:"at"`
}

// Notifier receives ticket lifecycle events. Failures are logged by the
// machine and never undo the transition.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

func (m *Machine) notify(ctx context.Context, typ EventType, t *domain.Ticket) {
	if m.notifier == nil {
		return
	}
	ev := Event{Type: typ, Ticket: *t, At: m.now()}

	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.notifyTimeout)
		defer cancel()
		if err := m.notifier.Notify(nctx, ev); err != nil {
			m.logger.Warn("Escalation notification failed",
				"event", ev.Type,
				"ticket_id", t.ID,
				"driver_id", t.DriverID,
				"error", err)
		}
	}()
}
