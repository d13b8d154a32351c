package api

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shubhsahu23/VoiceBot/internal/conversation"
	"github.com/shubhsahu23/VoiceBot/internal/domain"
)

type chatRequest struct {
	Message  string     `json:"message"`
	DriverID flexibleID `json:"driver_id"`
}

type chatResponse struct {
	Intent     domain.Intent   `json:"intent"`
	Confidence float64         `json:"confidence"`
	Response   string          `json:"response"`
	Language   domain.Language `json:"language,omitempty"`
	Escalate   bool            `json:"escalate"`
	Audio      string          `json:"audio,omitempty"`
	LiveMode   bool            `json:"live_mode,omitempty"`
	TicketID   string          `json:"ticket_id,omitempty"`
}

func newChatResponse(reply conversation.Reply) chatResponse {
	resp := chatResponse{
		Intent:     reply.Intent,
		Confidence: reply.Confidence,
		Response:   reply.Response,
		Language:   reply.Language,
		Escalate:   reply.Escalate,
		LiveMode:   reply.LiveMode,
		TicketID:   reply.TicketID,
	}
	if len(reply.Audio) > 0 {
		resp.Audio = base64.StdEncoding.EncodeToString(reply.Audio)
	}
	return resp
}

// Chat handles one driver turn.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	driverID := string(req.DriverID)
	limiterKey := driverID
	if limiterKey == "" {
		limiterKey = "ip:" + r.RemoteAddr
	}
	if h.opts.ChatLimiter != nil && !h.opts.ChatLimiter.Allow(limiterKey) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	start := time.Now()
	reply, err := h.router.HandleMessage(r.Context(), driverID, req.Message)
	if err != nil {
		if errors.Is(err, conversation.ErrEmptyMessage) {
			Error(w, http.StatusBadRequest, "message is required")
			return
		}
		slog.Error("Chat turn failed", "driver_id", driverID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	slog.Info("Chat turn",
		"driver_id", driverID,
		"intent", reply.Intent,
		"escalate", reply.Escalate,
		"live_mode", reply.LiveMode,
		"audio", len(reply.Audio) > 0,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	JSON(w, http.StatusOK, newChatResponse(reply))
}

// History returns the driver's recent messages, oldest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driverID")
	if driverID == "" {
		Error(w, http.StatusBadRequest, "driver id is required")
		return
	}
	JSON(w, http.StatusOK, h.router.History(r.Context(), driverID, h.opts.HistoryLimit))
}
