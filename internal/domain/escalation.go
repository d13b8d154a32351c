package domain

import "time"

// TicketStatus is the lifecycle state of an escalation ticket.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "OPEN"
	TicketInProgress TicketStatus = "IN_PROGRESS"
	TicketResolved   TicketStatus = "RESOLVED"
)

// ParseTicketStatus validates a wire status value.
func ParseTicketStatus(s string) (TicketStatus, bool) {
	switch TicketStatus(s) {
	case TicketOpen, TicketInProgress, TicketResolved:
		return TicketStatus(s), true
	}
	return "", false
}

// Terminal reports whether no further transition is possible.
func (s TicketStatus) Terminal() bool {
	return s == TicketResolved
}

// Ticket is a request for a human agent to take over a driver's conversation.
type Ticket struct {
	ID         string       `json:"id"`
	DriverID   string       `json:"driver_id"`
	Intent     Intent       `json:"intent"`
	Confidence float64      `json:"confidence"`
	Summary    string       `json:"summary"`
	Status     TicketStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
