package feed

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/shubhsahu23/VoiceBot/internal/domain"
)

type memoryMessages struct {
	mu   sync.Mutex
	msgs []*domain.Message
}

func (m *memoryMessages) AppendMessage(_ context.Context, driverID string, sender domain.Sender, text string) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := &domain.Message{ID: text, DriverID: driverID, Sender: sender, Text: text, Timestamp: time.Now()}
	m.msgs = append(m.msgs, msg)
	cp := *msg
	return &cp, nil
}

func (m *memoryMessages) ListMessages(_ context.Context, driverID string, limit int) ([]*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Message
	for _, msg := range m.msgs {
		if msg.DriverID == driverID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func TestHubPublishesPerDriver(t *testing.T) {
	t.Parallel()
	h := NewHub(nil)

	a, cancelA := h.Subscribe("DRV001")
	defer cancelA()
	b, cancelB := h.Subscribe("DRV002")
	defer cancelB()

	h.Publish(&domain.Message{DriverID: "DRV001", Text: "hello"})

	select {
	case msg := <-a:
		if msg.Text != "hello" {
			t.Fatalf("got %q", msg.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive message")
	}
	select {
	case msg := <-b:
		t.Fatalf("other driver received %+v", msg)
	default:
	}
}

func TestHubCancelUnregisters(t *testing.T) {
	t.Parallel()
	h := NewHub(nil)

	ch, cancel := h.Subscribe("DRV001")
	if h.Subscribers("DRV001") != 1 {
		t.Fatalf("Subscribers() = %d", h.Subscribers("DRV001"))
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed after cancel")
	}
	if h.Subscribers("DRV001") != 0 {
		t.Fatalf("Subscribers() = %d after cancel", h.Subscribers("DRV001"))
	}
	h.Publish(&domain.Message{DriverID: "DRV001", Text: "late"})
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	t.Parallel()
	h := NewHub(nil)
	ch, cancel := h.Subscribe("DRV001")
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish(&domain.Message{DriverID: "DRV001"})
	}
	if len(ch) != subscriberBuffer {
		t.Fatalf("buffered = %d, want %d", len(ch), subscriberBuffer)
	}
}

func TestPublishingStore(t *testing.T) {
	t.Parallel()
	h := NewHub(nil)
	ch, cancel := h.Subscribe("DRV001")
	defer cancel()

	s := NewPublishingStore(&memoryMessages{}, h)
	if _, err := s.AppendMessage(context.Background(), "DRV001", domain.SenderAgent, "calling you"); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	msg := <-ch
	if msg.Sender != domain.SenderAgent || msg.Text != "calling you" {
		t.Fatalf("published %+v", msg)
	}
}

func TestWebSocketReplaysAndStreams(t *testing.T) {
	t.Parallel()
	h := NewHub(nil)
	mem := &memoryMessages{}
	s := NewPublishingStore(mem, h)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.AppendMessage(ctx, "DRV001", domain.SenderUser, "fire"); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	r := chi.NewRouter()
	r.Handle("/ws/chat/{driverID}", NewWebSocketHandler(h, mem, 10, []string{"*"}, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/ws/chat/DRV001"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var frame wsMessage
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read history: %v", err)
	}
	if frame.Type != "history" || frame.Message.Text != "fire" {
		t.Fatalf("history frame = %+v", frame)
	}

	if _, err := s.AppendMessage(ctx, "DRV001", domain.SenderAgent, "help is coming"); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read live: %v", err)
	}
	if frame.Type != "message" || frame.Message.Sender != domain.SenderAgent {
		t.Fatalf("live frame = %+v", frame)
	}
}
