// Package feed pushes chat messages to live subscribers.
package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"github.com/shubhsahu23/VoiceBot/internal/store"
)

const subscriberBuffer = 32

// Hub fans appended messages out to the subscribers of each driver.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]chan *domain.Message
	nextID uint64
	logger *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[string]map[uint64]chan *domain.Message),
		logger: logger.With("component", "feed"),
	}
}

// Subscribe registers a subscriber for driverID. The returned cancel func
// unregisters it and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(driverID string) (<-chan *domain.Message, func()) {
	ch := make(chan *domain.Message, subscriberBuffer)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if _, ok := h.subs[driverID]; !ok {
		h.subs[driverID] = make(map[uint64]chan *domain.Message)
	}
	h.subs[driverID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.subs[driverID]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(h.subs, driverID)
				}
			}
			close(ch)
		})
	}
}

// Publish delivers msg to every subscriber of its driver. Subscribers whose
// buffer is full miss the message.
func (h *Hub) Publish(msg *domain.Message) {
	if msg == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs[msg.DriverID] {
		cp := *msg
		select {
		case ch <- &cp:
		default:
			h.logger.Warn("Dropping message for slow subscriber", "driver_id", msg.DriverID, "subscriber", id)
		}
	}
}

// Subscribers returns the number of live subscribers of driverID.
func (h *Hub) Subscribers(driverID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[driverID])
}

// PublishingStore is a MessageStore that publishes every appended message.
type PublishingStore struct {
	store.MessageStore
	hub *Hub
}

// NewPublishingStore wraps next so appended messages reach hub.
func NewPublishingStore(next store.MessageStore, hub *Hub) *PublishingStore {
	return &PublishingStore{MessageStore: next, hub: hub}
}

// AppendMessage records the message and publishes it once stored.
func (s *PublishingStore) AppendMessage(ctx context.Context, driverID string, sender domain.Sender, text string) (*domain.Message, error) {
	msg, err := s.MessageStore.AppendMessage(ctx, driverID, sender, text)
	if err != nil {
		return nil, err
	}
	s.hub.Publish(msg)
	return msg, nil
}
