// Package escalation manages the lifecycle of human handoff tickets.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shubhsahu23/VoiceBot/internal/config"
	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"github.com/shubhsahu23/VoiceBot/internal/errorsx"
	"github.com/shubhsahu23/VoiceBot/internal/store"
)

// DefaultSummary is used when a ticket is opened without a summary.
const DefaultSummary = "Automated escalation"

var (
	// ErrTicketNotFound is returned for transitions on unknown tickets.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrInvalidTransition matches every *InvalidTransitionError.
	ErrInvalidTransition = errors.New("invalid ticket transition")
)

// InvalidTransitionError reports a transition the ticket's current state does not allow.
type InvalidTransitionError struct {
	TicketID string
	From     domain.TicketStatus
	To       domain.TicketStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("ticket %s cannot move from %s to %s", e.TicketID, e.From, e.To)
}

// Is lets errors.Is match ErrInvalidTransition.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

var validTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketOpen:       {domain.TicketInProgress, domain.TicketResolved},
	domain.TicketInProgress: {domain.TicketResolved},
}

// sourcesFor returns every status from which `to` may be entered.
func sourcesFor(to domain.TicketStatus) []domain.TicketStatus {
	var from []domain.TicketStatus
	for _, st := range []domain.TicketStatus{domain.TicketOpen, domain.TicketInProgress, domain.TicketResolved} {
		for _, allowed := range validTransitions[st] {
			if allowed == to {
				from = append(from, st)
			}
		}
	}
	return from
}

// Policy decides which ticket states put a driver in live mode.
type Policy string

const (
	PolicyOpenOrInProgress Policy = config.PolicyOpenOrInProgress
	PolicyInProgress       Policy = config.PolicyInProgress
)

// Statuses returns the ticket states considered active under the policy.
func (p Policy) Statuses() []domain.TicketStatus {
	if p == PolicyInProgress {
		return []domain.TicketStatus{domain.TicketInProgress}
	}
	return []domain.TicketStatus{domain.TicketOpen, domain.TicketInProgress}
}

// Machine opens and moves escalation tickets through OPEN, IN_PROGRESS and RESOLVED.
type Machine struct {
	store    store.EscalationStore
	policy   Policy
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	notifyTimeout time.Duration
	pending       sync.WaitGroup
}

// Option configures a Machine.
type Option func(*Machine)

// WithNotifier sends lifecycle events to n.
func WithNotifier(n Notifier) Option {
	return func(m *Machine) { m.notifier = n }
}

// WithLogger sets the machine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// NewMachine creates a Machine using the given routing policy.
func NewMachine(s store.EscalationStore, policy Policy, opts ...Option) *Machine {
	if policy != PolicyOpenOrInProgress {
		policy = PolicyInProgress
	}
	m := &Machine{
		store:         s,
		policy:        policy,
		logger:        slog.Default(),
		now:           time.Now,
		notifyTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "escalation")
	return m
}

// Policy returns the active-ticket policy.
func (m *Machine) Policy() Policy {
	return m.policy
}

// Open creates an OPEN ticket for the driver, or returns the id of the ticket
// that is already OPEN or IN_PROGRESS. It never creates a second active ticket.
func (m *Machine) Open(ctx context.Context, driverID string, intent domain.Intent, confidence float64, summary string) (string, error) {
	if strings.TrimSpace(summary) == "" {
		summary = DefaultSummary
	}

	// Two attempts cover the window where the existing ticket is resolved
	// between the failed insert and the lookup.
	for attempt := 0; attempt < 2; attempt++ {
		t := &domain.Ticket{
			DriverID:   driverID,
			Intent:     intent,
			Confidence: confidence,
			Summary:    summary,
			Status:     domain.TicketOpen,
			CreatedAt:  m.now(),
		}
		err := m.store.InsertTicket(ctx, t)
		if err == nil {
			m.logger.Info("Escalation opened", "ticket_id", t.ID, "driver_id", driverID, "intent", intent)
			m.notify(ctx, EventOpened, t)
			return t.ID, nil
		}
		if !errors.Is(err, store.ErrActiveTicketExists) {
			return "", fmt.Errorf("open escalation for %s: %w", driverID, err)
		}

		existing, err := m.store.FindActiveTicket(ctx, driverID, PolicyOpenOrInProgress.Statuses())
		if err != nil {
			return "", fmt.Errorf("find active escalation for %s: %w", driverID, err)
		}
		if existing != nil {
			m.logger.Debug("Escalation already active", "ticket_id", existing.ID, "driver_id", driverID, "status", existing.Status)
			return existing.ID, nil
		}
	}
	return "", errorsx.Wrap(fmt.Errorf("open escalation for %s: active ticket changed concurrently", driverID), errorsx.ReasonConflict)
}

// Accept moves an OPEN ticket to IN_PROGRESS.
func (m *Machine) Accept(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	t, err := m.transition(ctx, ticketID, domain.TicketInProgress)
	if err != nil {
		return nil, err
	}
	m.logger.Info("Escalation accepted", "ticket_id", t.ID, "driver_id", t.DriverID)
	m.notify(ctx, EventAccepted, t)
	return t, nil
}

// Resolve closes a ticket that is OPEN or IN_PROGRESS.
func (m *Machine) Resolve(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return m.resolve(ctx, ticketID, EventResolved)
}

func (m *Machine) resolve(ctx context.Context, ticketID string, event EventType) (*domain.Ticket, error) {
	t, err := m.transition(ctx, ticketID, domain.TicketResolved)
	if err != nil {
		return nil, err
	}
	m.logger.Info("Escalation resolved", "ticket_id", t.ID, "driver_id", t.DriverID, "event", event)
	m.notify(ctx, event, t)
	return t, nil
}

func (m *Machine) transition(ctx context.Context, ticketID string, to domain.TicketStatus) (*domain.Ticket, error) {
	t, err := m.store.TransitionTicket(ctx, ticketID, sourcesFor(to), to)
	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, errorsx.Wrap(fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID), errorsx.ReasonNotFound)
	case errors.Is(err, store.ErrStaleTransition):
		from := domain.TicketStatus("")
		if t != nil {
			from = t.Status
		}
		return nil, errorsx.Wrap(&InvalidTransitionError{TicketID: ticketID, From: from, To: to}, errorsx.ReasonInvalidTransition)
	default:
		return nil, errorsx.Wrap(fmt.Errorf("move ticket %s to %s: %w", ticketID, to, err), errorsx.ReasonStoreUnavailable)
	}
}

// ActiveTicketFor returns the driver's active ticket under the machine's
// policy, or nil when the driver is not in live mode.
func (m *Machine) ActiveTicketFor(ctx context.Context, driverID string) (*domain.Ticket, error) {
	t, err := m.store.FindActiveTicket(ctx, driverID, m.policy.Statuses())
	if err != nil {
		return nil, fmt.Errorf("active escalation for %s: %w", driverID, err)
	}
	return t, nil
}

// OpenTicketFor returns any OPEN or IN_PROGRESS ticket of the driver,
// regardless of policy. Agents use it to end a chat.
func (m *Machine) OpenTicketFor(ctx context.Context, driverID string) (*domain.Ticket, error) {
	t, err := m.store.FindActiveTicket(ctx, driverID, PolicyOpenOrInProgress.Statuses())
	if err != nil {
		return nil, fmt.Errorf("unresolved escalation for %s: %w", driverID, err)
	}
	return t, nil
}

// List returns tickets newest first. An empty status lists every ticket.
func (m *Machine) List(ctx context.Context, status domain.TicketStatus) ([]*domain.Ticket, error) {
	tickets, err := m.store.ListTickets(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list escalations: %w", err)
	}
	return tickets, nil
}

// Wait blocks until in-flight notifications have finished.
func (m *Machine) Wait() {
	m.pending.Wait()
}
