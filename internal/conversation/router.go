// Package conversation routes driver chat turns between the classifier and
// live human agents.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"github.com/shubhsahu23/VoiceBot/internal/store"
)

// UnknownDriver is the history key for turns that carry no driver id.
const UnknownDriver = "unknown"

const (
	liveModeReply  = "Message sent to agent."
	chatEndedText  = "Chat ended by agent."
	autoClosedText = "Chat closed automatically after inactivity."
)

var (
	// ErrEmptyMessage is returned for blank chat text.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNoActiveChat is returned when ending a live chat for a driver
	// without an OPEN or IN_PROGRESS ticket.
	ErrNoActiveChat = errors.New("no active escalation for driver")
)

// Classifier decides how to answer one utterance.
type Classifier interface {
	Classify(ctx context.Context, utterance string, dc *domain.DriverContext) domain.Decision
}

// Escalations is the ticket lifecycle the router drives.
type Escalations interface {
	Open(ctx context.Context, driverID string, intent domain.Intent, confidence float64, summary string) (string, error)
	Resolve(ctx context.Context, ticketID string) (*domain.Ticket, error)
	ActiveTicketFor(ctx context.Context, driverID string) (*domain.Ticket, error)
	OpenTicketFor(ctx context.Context, driverID string) (*domain.Ticket, error)
}

// DriverLookup finds the context of a driver.
type DriverLookup interface {
	FindDriverContext(ctx context.Context, driverID string) (*domain.DriverContext, error)
}

// Speaker renders reply audio. A nil result means no audio.
type Speaker interface {
	Speak(ctx context.Context, text string, lang domain.Language) []byte
}

// Reply is the outcome of one driver turn.
type Reply struct {
	domain.Decision
	Audio    []byte
	LiveMode bool
	TicketID string
}

// Router handles driver and agent chat messages.
type Router struct {
	messages    store.MessageStore
	drivers     DriverLookup
	classifier  Classifier
	escalations Escalations
	speaker     Speaker
	logger      *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithSpeaker enables reply audio.
func WithSpeaker(s Speaker) Option {
	return func(r *Router) { r.speaker = s }
}

// WithLogger sets the router logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// NewRouter creates a Router.
func NewRouter(messages store.MessageStore, drivers DriverLookup, classifier Classifier, escalations Escalations, opts ...Option) *Router {
	r := &Router{
		messages:    messages,
		drivers:     drivers,
		classifier:  classifier,
		escalations: escalations,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "router")
	return r
}

// HandleMessage processes one driver turn. The user message is recorded
// before anything else. While the driver has an active ticket the message
// is only forwarded to the agent; otherwise it is classified, the bot reply
// is recorded and an escalation is opened when the decision asks for one.
// Turns without a driver id are always answered automatically.
// Store and escalation failures are logged and never replace the reply.
func (r *Router) HandleMessage(ctx context.Context, driverID, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyMessage
	}
	driverID = strings.TrimSpace(driverID)
	known := driverID != ""
	if !known {
		driverID = UnknownDriver
	}

	userSaved := true
	if _, err := r.messages.AppendMessage(ctx, driverID, domain.SenderUser, text); err != nil {
		userSaved = false
		r.logger.Error("Failed to record user message", "driver_id", driverID, "error", err)
	}

	var active *domain.Ticket
	if known {
		var err error
		active, err = r.escalations.ActiveTicketFor(ctx, driverID)
		if err != nil {
			r.logger.Warn("Active ticket lookup failed, answering automatically", "driver_id", driverID, "error", err)
		}
	}
	if active != nil {
		r.logger.Info("Driver in live chat, forwarding to agent", "driver_id", driverID, "ticket_id", active.ID)
		return Reply{
			Decision: domain.Decision{
				Intent:     domain.IntentLiveChat,
				Confidence: 1,
				Response:   liveModeReply,
				Escalate:   true,
			},
			LiveMode: true,
			TicketID: active.ID,
		}, nil
	}

	var dc *domain.DriverContext
	if known {
		dc = r.driverContext(ctx, driverID)
	}

	d := r.classifier.Classify(ctx, text, dc)
	reply := Reply{Decision: d}

	// Keep the history ordered: a bot row is only written after its user row.
	if userSaved && d.Response != "" {
		if _, err := r.messages.AppendMessage(ctx, driverID, domain.SenderBot, d.Response); err != nil {
			r.logger.Error("Failed to record bot message", "driver_id", driverID, "error", err)
		}
	}

	// Anonymous turns share one history bucket, so they never own a ticket.
	if d.Escalate && known {
		id, err := r.escalations.Open(ctx, driverID, d.Intent, d.Confidence, d.Response)
		if err != nil {
			r.logger.Error("Failed to open escalation",
				"driver_id", driverID,
				"intent", d.Intent,
				"error", err)
		} else {
			reply.TicketID = id
		}
	}

	if r.speaker != nil && d.Response != "" {
		reply.Audio = r.speaker.Speak(ctx, d.Response, d.Language)
	}
	return reply, nil
}

func (r *Router) driverContext(ctx context.Context, driverID string) *domain.DriverContext {
	dc, err := r.drivers.FindDriverContext(ctx, driverID)
	if err != nil {
		r.logger.Warn("Driver lookup failed, classifying without context", "driver_id", driverID, "error", err)
		return nil
	}
	if dc == nil {
		r.logger.Warn("No details found for driver", "driver_id", driverID)
	}
	return dc
}

// SendAgentMessage records a message from a human agent to the driver.
func (r *Router) SendAgentMessage(ctx context.Context, driverID, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	msg, err := r.messages.AppendMessage(ctx, driverID, domain.SenderAgent, text)
	if err != nil {
		return nil, fmt.Errorf("record agent message: %w", err)
	}
	return msg, nil
}

// EndLiveChat resolves the driver's OPEN or IN_PROGRESS ticket and records a
// system message that the agent ended the chat.
func (r *Router) EndLiveChat(ctx context.Context, driverID string) (*domain.Ticket, error) {
	t, err := r.escalations.OpenTicketFor(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("find active ticket: %w", err)
	}
	if t == nil {
		return nil, ErrNoActiveChat
	}

	resolved, err := r.escalations.Resolve(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if _, err := r.messages.AppendMessage(ctx, driverID, domain.SenderSystem, chatEndedText); err != nil {
		r.logger.Error("Failed to record chat end", "driver_id", driverID, "ticket_id", t.ID, "error", err)
	}
	return resolved, nil
}

// CloseStale records that a ticket was resolved by the system. It is the
// sweeper callback.
func (r *Router) CloseStale(ctx context.Context, t *domain.Ticket) {
	if _, err := r.messages.AppendMessage(ctx, t.DriverID, domain.SenderSystem, autoClosedText); err != nil {
		r.logger.Error("Failed to record automatic close", "driver_id", t.DriverID, "ticket_id", t.ID, "error", err)
	}
}

// History returns up to limit of the driver's most recent messages, oldest
// first. Store failures yield an empty history.
func (r *Router) History(ctx context.Context, driverID string, limit int) []*domain.Message {
	msgs, err := r.messages.ListMessages(ctx, driverID, limit)
	if err != nil {
		r.logger.Warn("History lookup failed", "driver_id", driverID, "error", err)
		return []*domain.Message{}
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	return msgs
}
