// Package api provides HTTP handlers for the driver chat and agent desk.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shubhsahu23/VoiceBot/internal/conversation"
	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"github.com/shubhsahu23/VoiceBot/internal/store"
)

const (
	defaultMaxRequestBodySize = 64 << 10
	defaultHistoryLimit       = 50
	healthCheckTimeout        = 5 * time.Second
)

// ChatRouter handles driver and agent messages.
type ChatRouter interface {
	HandleMessage(ctx context.Context, driverID, text string) (conversation.Reply, error)
	SendAgentMessage(ctx context.Context, driverID, text string) (*domain.Message, error)
	EndLiveChat(ctx context.Context, driverID string) (*domain.Ticket, error)
	History(ctx context.Context, driverID string, limit int) []*domain.Message
}

// TicketDesk is the agent side of the escalation lifecycle.
type TicketDesk interface {
	Accept(ctx context.Context, ticketID string) (*domain.Ticket, error)
	List(ctx context.Context, status domain.TicketStatus) ([]*domain.Ticket, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tune request handling.
type Options struct {
	MaxBodyBytes int64
	HistoryLimit int
	ChatLimiter  *RateLimiter
}

// Handler serves the HTTP API.
type Handler struct {
	drivers store.DriverStore
	router  ChatRouter
	desk    TicketDesk
	db      Pinger
	opts    Options
}

// NewHandler creates a Handler.
func NewHandler(drivers store.DriverStore, router ChatRouter, desk TicketDesk, db Pinger, opts Options) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxRequestBodySize
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	return &Handler{drivers: drivers, router: router, desk: desk, db: db, opts: opts}
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/health", h.Health)

	r.Post("/validate-driver", h.ValidateDriver)
	r.Post("/validate-phone", h.ValidatePhone)

	r.Post("/chat", h.Chat)
	r.Get("/chat/history/{driverID}", h.History)

	r.Route("/agent", func(r chi.Router) {
		r.Get("/escalations", h.ListEscalations)
		r.Post("/accept", h.Accept)
		r.Post("/message", h.AgentMessage)
		r.Post("/resolve", h.Resolve)
	})
}

// Health returns the health status of the API and its database.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok", "database": "ok"}
	status := "healthy"
	statusCode := http.StatusOK

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			checks["database"] = "unreachable"
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}

	JSON(w, statusCode, map[string]interface{}{"status": status, "checks": checks})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decode reads a size-capped JSON body into v and writes the error response
// itself when it returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
