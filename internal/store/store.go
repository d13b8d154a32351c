// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shubhsahu23/VoiceBot/internal/domain"
)

var (
	// ErrNotFound is returned when a ticket does not exist.
	ErrNotFound = errors.New("not found")

	// ErrActiveTicketExists is returned when inserting a ticket for a driver
	// that already has an OPEN or IN_PROGRESS ticket.
	ErrActiveTicketExists = errors.New("driver already has an active ticket")

	// ErrStaleTransition is returned when a conditional status update matched
	// no row because the ticket was not in one of the expected states.
	ErrStaleTransition = errors.New("ticket not in expected state")
)

// DriverStore reads and imports driver records.
type DriverStore interface {
	// FindDriverContext returns the driver with the given id, or nil if unknown.
	FindDriverContext(ctx context.Context, driverID string) (*domain.DriverContext, error)

	// FindDriverByPhone matches on the exact digits or the last ten digits of
	// any phone number stored for a driver. Returns nil if unknown.
	FindDriverByPhone(ctx context.Context, phone string) (*domain.DriverContext, error)

	// UpsertDriverRecord imports a raw driver document in any historical
	// field spelling and returns its driver id.
	UpsertDriverRecord(ctx context.Context, raw map[string]any) (string, error)
}

// EscalationStore persists escalation tickets.
type EscalationStore interface {
	// InsertTicket stores a new OPEN ticket. It fails with ErrActiveTicketExists
	// when the driver already has an OPEN or IN_PROGRESS ticket.
	InsertTicket(ctx context.Context, t *domain.Ticket) error

	// GetTicket returns a ticket by id, or ErrNotFound.
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)

	// FindActiveTicket returns the newest ticket of the driver whose status is
	// one of statuses, or nil.
	FindActiveTicket(ctx context.Context, driverID string, statuses []domain.TicketStatus) (*domain.Ticket, error)

	// TransitionTicket moves a ticket to status `to` only if its current status
	// is one of `from`. Fails with ErrNotFound or ErrStaleTransition.
	TransitionTicket(ctx context.Context, ticketID string, from []domain.TicketStatus, to domain.TicketStatus) (*domain.Ticket, error)

	// ListTickets returns tickets newest first, optionally filtered by status.
	ListTickets(ctx context.Context, status domain.TicketStatus) ([]*domain.Ticket, error)

	// ListStaleTickets returns non-resolved tickets whose last status change
	// and last chat message are both older than before.
	ListStaleTickets(ctx context.Context, before time.Time) ([]*domain.Ticket, error)
}

// MessageStore persists the append-only chat history.
type MessageStore interface {
	// AppendMessage records a message. Timestamps are non-decreasing per process.
	AppendMessage(ctx context.Context, driverID string, sender domain.Sender, text string) (*domain.Message, error)

	// ListMessages returns up to limit of the driver's most recent messages, oldest first.
	ListMessages(ctx context.Context, driverID string, limit int) ([]*domain.Message, error)
}

// Repository is the full persistence surface of the service.
type Repository interface {
	DriverStore
	EscalationStore
	MessageStore

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
