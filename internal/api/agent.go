package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shubhsahu23/VoiceBot/internal/conversation"
	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"github.com/shubhsahu23/VoiceBot/internal/escalation"
)

type acceptRequest struct {
	TicketID string `json:"ticket_id"`
}

type agentMessageRequest struct {
	DriverID flexibleID `json:"driver_id"`
	Message  string     `json:"message"`
}

type resolveRequest struct {
	DriverID flexibleID `json:"driver_id"`
}

// ListEscalations lists tickets newest first. The status query parameter
// defaults to OPEN; ALL lists every ticket.
func (h *Handler) ListEscalations(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	var status domain.TicketStatus
	switch {
	case raw == "":
		status = domain.TicketOpen
	case strings.EqualFold(raw, "all"):
		status = ""
	default:
		s, ok := domain.ParseTicketStatus(strings.ToUpper(raw))
		if !ok {
			Error(w, http.StatusBadRequest, "unknown status "+raw)
			return
		}
		status = s
	}

	tickets, err := h.desk.List(r.Context(), status)
	if err != nil {
		slog.Error("Failed to list escalations", "status", status, "error", err)
		tickets = nil
	}
	if tickets == nil {
		tickets = []*domain.Ticket{}
	}
	JSON(w, http.StatusOK, tickets)
}

// Accept moves an OPEN ticket to IN_PROGRESS.
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.TicketID) == "" {
		Error(w, http.StatusBadRequest, "ticket_id is required")
		return
	}

	t, err := h.desk.Accept(r.Context(), req.TicketID)
	if err != nil {
		writeTransitionError(w, "accept", req.TicketID, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"status": "success", "message": "Escalation accepted", "ticket": t})
}

// AgentMessage records a message from the agent to the driver.
func (h *Handler) AgentMessage(w http.ResponseWriter, r *http.Request) {
	var req agentMessageRequest
	if !h.decode(w, r, &req) {
		return
	}
	driverID := string(req.DriverID)
	if driverID == "" {
		Error(w, http.StatusBadRequest, "driver_id is required")
		return
	}

	msg, err := h.router.SendAgentMessage(r.Context(), driverID, req.Message)
	if err != nil {
		if errors.Is(err, conversation.ErrEmptyMessage) {
			Error(w, http.StatusBadRequest, "message is required")
			return
		}
		slog.Error("Failed to send agent message", "driver_id", driverID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to send message")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "success", "message_id": msg.ID})
}

// Resolve ends the live chat of a driver.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !h.decode(w, r, &req) {
		return
	}
	driverID := string(req.DriverID)
	if driverID == "" {
		Error(w, http.StatusBadRequest, "driver_id is required")
		return
	}

	t, err := h.router.EndLiveChat(r.Context(), driverID)
	if err != nil {
		if errors.Is(err, conversation.ErrNoActiveChat) {
			Error(w, http.StatusNotFound, "no active escalation found for this driver")
			return
		}
		writeTransitionError(w, "resolve", driverID, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"status": "success", "message": "Escalation resolved", "ticket": t})
}

func writeTransitionError(w http.ResponseWriter, action, id string, err error) {
	switch {
	case errors.Is(err, escalation.ErrTicketNotFound):
		Error(w, http.StatusNotFound, "escalation not found")
	case errors.Is(err, escalation.ErrInvalidTransition):
		Error(w, http.StatusConflict, err.Error())
	default:
		slog.Error("Escalation transition failed", "action", action, "id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to "+action+" escalation")
	}
}
