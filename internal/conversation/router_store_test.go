package conversation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shubhsahu23/VoiceBot/internal/config"
	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"github.com/shubhsahu23/VoiceBot/internal/escalation"
	"github.com/shubhsahu23/VoiceBot/internal/store"
)

func newStoreRouter(t *testing.T, policy escalation.Policy, c Classifier) (*Router, *escalation.Machine, *store.SQLiteStore) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "router.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	m := escalation.NewMachine(repo, policy)
	t.Cleanup(m.Wait)
	return NewRouter(repo, repo, c, m), m, repo
}

var gibberish = domain.Decision{
	Intent:     domain.IntentUnrelated,
	Confidence: 1,
	Response:   "Sorry, I could not understand that.",
	Language:   domain.LanguageEnglish,
	Escalate:   true,
}

func TestAnonymousTurnsAreNeverSilenced(t *testing.T) {
	t.Parallel()
	c := &fakeClassifier{decision: gibberish}
	r, m, repo := newStoreRouter(t, escalation.PolicyOpenOrInProgress, c)
	ctx := context.Background()

	first, err := r.HandleMessage(ctx, "", "b vcbgvxszc")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if first.TicketID != "" {
		t.Fatalf("anonymous turn opened ticket %s", first.TicketID)
	}

	second, err := r.HandleMessage(ctx, "", "battery swap invoice")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if second.LiveMode || second.Intent == domain.IntentLiveChat {
		t.Fatalf("second anonymous turn routed to live chat: %+v", second)
	}
	if c.calls != 2 {
		t.Fatalf("classifier called %d times, want 2", c.calls)
	}

	tickets, err := m.List(ctx, "")
	if err != nil || len(tickets) != 0 {
		t.Fatalf("List() = %d tickets, %v", len(tickets), err)
	}
	msgs, err := repo.ListMessages(ctx, UnknownDriver, 10)
	if err != nil || len(msgs) != 4 {
		t.Fatalf("ListMessages(unknown) = %d, %v", len(msgs), err)
	}
}

func TestDefaultPolicyWaitsForAgent(t *testing.T) {
	t.Parallel()
	c := &fakeClassifier{decision: emergency}
	policy := escalation.Policy(config.Defaults().Escalation.ActivePolicy)
	r, m, _ := newStoreRouter(t, policy, c)
	ctx := context.Background()

	first, err := r.HandleMessage(ctx, "DRV001", "There is fire coming from the battery")
	if err != nil || first.TicketID == "" {
		t.Fatalf("HandleMessage() = %+v, %v", first, err)
	}

	// OPEN ticket: the bot keeps answering until an agent accepts.
	second, err := r.HandleMessage(ctx, "DRV001", "still smoking")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if second.LiveMode || c.calls != 2 {
		t.Fatalf("reply before accept = %+v, classifier calls = %d", second, c.calls)
	}
	if second.TicketID != first.TicketID {
		t.Fatalf("second turn opened ticket %s, want %s", second.TicketID, first.TicketID)
	}

	if _, err := m.Accept(ctx, first.TicketID); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	third, err := r.HandleMessage(ctx, "DRV001", "hello?")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if !third.LiveMode || third.TicketID != first.TicketID || c.calls != 2 {
		t.Fatalf("reply after accept = %+v, classifier calls = %d", third, c.calls)
	}
}
