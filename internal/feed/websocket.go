package feed

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"github.com/shubhsahu23/VoiceBot/internal/store"
)

// wsMessage is the frame sent for every chat message.
type wsMessage struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message"`
}

// WebSocketHandler streams a driver's chat history and new messages.
type WebSocketHandler struct {
	hub            *Hub
	history        store.MessageStore
	backlog        int
	originPatterns []string
	logger         *slog.Logger
}

// NewWebSocketHandler creates a handler that replays the last backlog
// messages before streaming live ones.
func NewWebSocketHandler(hub *Hub, history store.MessageStore, backlog int, originPatterns []string, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		hub:            hub,
		history:        history,
		backlog:        backlog,
		originPatterns: originPatterns,
		logger:         logger.With("component", "feed_ws"),
	}
}

// ServeHTTP implements http.Handler for GET /ws/chat/{driverID}.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driverID")
	if driverID == "" {
		http.Error(w, "driver id required", http.StatusBadRequest)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "driver_id", driverID, "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "driver_id", driverID, "error", closeErr)
		}
	}()

	// Subscribe before replaying history so nothing appended in between is lost.
	updates, cancel := h.hub.Subscribe(driverID)
	defer cancel()

	// The feed is server-to-client only; CloseRead handles control frames and
	// cancels ctx when the client goes away.
	ctx := ws.CloseRead(r.Context())
	h.logger.Info("Feed subscriber connected", "driver_id", driverID, "ip", r.RemoteAddr)

	if err := h.replay(ctx, ws, driverID); err != nil {
		h.logger.Debug("Failed to replay history", "driver_id", driverID, "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Feed subscriber disconnected", "driver_id", driverID)
			return
		case msg, ok := <-updates:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, ws, wsMessage{Type: "message", Message: msg}); err != nil {
				h.logger.Debug("WebSocket write error", "driver_id", driverID, "error", err)
				return
			}
		}
	}
}

func (h *WebSocketHandler) replay(ctx context.Context, ws *websocket.Conn, driverID string) error {
	if h.history == nil || h.backlog <= 0 {
		return nil
	}
	msgs, err := h.history.ListMessages(ctx, driverID, h.backlog)
	if err != nil {
		h.logger.Warn("History lookup failed, streaming live messages only", "driver_id", driverID, "error", err)
		return nil
	}
	for _, m := range msgs {
		if err := wsjson.Write(ctx, ws, wsMessage{Type: "history", Message: m}); err != nil {
			return err
		}
	}
	return nil
}
