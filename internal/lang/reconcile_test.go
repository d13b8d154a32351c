package lang

import (
	"context"
	"errors"
	"testing"

	"github.com/shubhsahu23/VoiceBot/internal/domain"
)

type fakeTranslator struct {
	out   string
	err   error
	calls int
}

func (f *fakeTranslator) Translate(_ context.Context, _ string, _ domain.Language) (string, error) {
	f.calls++
	return f.out, f.err
}

func TestReconcileFillsMissingLanguage(t *testing.T) {
	t.Parallel()
	tr := &fakeTranslator{}
	r := NewReconciler(tr, nil)

	d := r.Reconcile(context.Background(), domain.Decision{Intent: domain.IntentLeave, Response: "ok"}, domain.LanguageHindi)
	if d.Language != domain.LanguageHindi {
		t.Fatalf("Language = %q", d.Language)
	}
	if tr.calls != 0 {
		t.Fatalf("translator should not be called")
	}

	d = r.Reconcile(context.Background(), domain.Decision{Response: "ok"}, "")
	if d.Language != domain.LanguageEnglish {
		t.Fatalf("Language = %q, want English default", d.Language)
	}
}

func TestReconcileForcesMarathi(t *testing.T) {
	t.Parallel()
	tr := &fakeTranslator{out: "तुमचे बिल पाठवले आहे."}
	r := NewReconciler(tr, nil)

	in := domain.Decision{Intent: domain.IntentInvoice, Response: "Your invoice has been sent.", Language: domain.LanguageEnglish}
	d := r.Reconcile(context.Background(), in, domain.LanguageMarathi)
	if tr.calls != 1 {
		t.Fatalf("translator calls = %d, want 1", tr.calls)
	}
	if d.Language != domain.LanguageMarathi {
		t.Fatalf("Language = %q", d.Language)
	}
	if d.Response != "तुमचे बिल पाठवले आहे." {
		t.Fatalf("Response = %q", d.Response)
	}
}

func TestReconcileKeepsTextOnTranslationFailure(t *testing.T) {
	t.Parallel()
	tr := &fakeTranslator{err: errors.New("timeout")}
	r := NewReconciler(tr, nil)

	in := domain.Decision{Intent: domain.IntentInvoice, Response: "Your invoice has been sent.", Language: domain.LanguageHindi}
	d := r.Reconcile(context.Background(), in, domain.LanguageMarathi)
	if d.Response != in.Response {
		t.Fatalf("Response = %q, want original", d.Response)
	}
	if d.Language != domain.LanguageMarathi {
		t.Fatalf("Language = %q", d.Language)
	}
}

func TestReconcileMarathiAlreadyMarathi(t *testing.T) {
	t.Parallel()
	tr := &fakeTranslator{}
	r := NewReconciler(tr, nil)

	in := domain.Decision{Response: "ठीक आहे", Language: domain.LanguageMarathi}
	if d := r.Reconcile(context.Background(), in, domain.LanguageMarathi); d != in || tr.calls != 0 {
		t.Fatalf("unexpected change: %+v calls=%d", d, tr.calls)
	}
}
