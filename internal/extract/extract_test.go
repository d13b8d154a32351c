package extract

import (
	"errors"
	"testing"

	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"github.com/shubhsahu23/VoiceBot/internal/errorsx"
)

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestExtractRecoversObject(t *testing.T) {
	t.Parallel()
	e := newExtractor(t)

	tests := []struct {
		name string
		raw  string
	}{
		{"plain", `{"intent":"invoice","confidence":0.92,"response":"Invoice sent.","language":"English","escalate":false}`},
		{"fenced", "```json\n{\"intent\":\"invoice\",\"confidence\":0.92,\"response\":\"Invoice sent.\",\"language\":\"English\",\"escalate\":false}\n```"},
		{"prose around", "Sure, here you go:\n{\"intent\":\"invoice\",\"confidence\":0.92,\"response\":\"Invoice sent.\",\"language\":\"English\",\"escalate\":false}\nLet me know {if} you need more."},
		{"fence then prose", "```json\n{\"intent\":\"invoice\",\"confidence\":0.92,\"response\":\"Invoice sent.\",\"language\":\"English\",\"escalate\":false}\n```\nThanks!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := e.Extract(tt.raw)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			want := domain.Decision{
				Intent:     domain.IntentInvoice,
				Confidence: 0.92,
				Response:   "Invoice sent.",
				Language:   domain.LanguageEnglish,
			}
			if d != want {
				t.Fatalf("Extract() = %+v, want %+v", d, want)
			}
		})
	}
}

func TestExtractIgnoresBracesInsideStrings(t *testing.T) {
	t.Parallel()
	e := newExtractor(t)

	raw := `{"intent":"battery_swap","confidence":0.8,"response":"Use template {station} near you}","escalate":false} trailing }`
	d, err := e.Extract(raw)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if d.Response != "Use template {station} near you}" {
		t.Fatalf("Response = %q", d.Response)
	}
	if d.Language != "" {
		t.Fatalf("missing language should stay empty, got %q", d.Language)
	}
}

func TestExtractNormalizesIntentAndConfidence(t *testing.T) {
	t.Parallel()
	e := newExtractor(t)

	d, err := e.Extract(`{"intent":"Nearest Station","confidence":3,"response":"Station A","language":"hi"}`)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if d.Intent != domain.IntentNearestStation {
		t.Fatalf("Intent = %q", d.Intent)
	}
	if d.Confidence != 1 {
		t.Fatalf("Confidence = %v, want clamped 1", d.Confidence)
	}
	if d.Language != domain.LanguageHindi {
		t.Fatalf("Language = %q", d.Language)
	}
}

func TestExtractFallback(t *testing.T) {
	t.Parallel()
	e := newExtractor(t)

	tests := []struct {
		name string
		raw  string
	}{
		{"no json", "I am not sure what you mean."},
		{"truncated", `{"intent":"invoice","confidence":0.9,"response":"Your invoice for {month`},
		{"truncated nested", `{"intent":"invoice","meta":{"a":1},"response":"cut off`},
		{"wrong types", `{"intent":"invoice","confidence":"high","response":"x"}`},
		{"intent outside enum", `{"intent":"greeting","confidence":0.9,"response":"hello"}`},
		{"missing response", `{"intent":"leave","confidence":0.9}`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := e.Extract(tt.raw)
			if !errors.Is(err, ErrNoDecision) {
				t.Fatalf("expected ErrNoDecision, got %v", err)
			}
			if !errorsx.HasReason(err, errorsx.ReasonExtraction) {
				t.Fatalf("expected extraction reason, got %s", errorsx.Reason(err))
			}
			if d.Intent != domain.IntentUnknown || d.Confidence != 0 || !d.Escalate {
				t.Fatalf("fallback = %+v", d)
			}
			if d.Response != Fallback(tt.raw).Response {
				t.Fatalf("fallback response = %q", d.Response)
			}
		})
	}
}

func TestBalancedObject(t *testing.T) {
	t.Parallel()

	obj, ok := balancedObject(`{"a":{"b":"}"}} tail {"c":1}`)
	if !ok || obj != `{"a":{"b":"}"}}` {
		t.Fatalf("balancedObject() = %q, %v", obj, ok)
	}
	if _, ok := balancedObject(`{"a":{"b":1}`); ok {
		t.Fatalf("unterminated object should not balance")
	}
	obj, ok = balancedObject(`{"q":"say \"}\" ok"}`)
	if !ok || obj != `{"q":"say \"}\" ok"}` {
		t.Fatalf("escaped quote handling: %q, %v", obj, ok)
	}
}

func TestStripFence(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":       `{"a":1}`,
		"```json{\"a\":1}```":     `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
	} {
		if got := stripFence(in); got != want {
			t.Errorf("stripFence(%q) = %q, want %q", in, got, want)
		}
	}
}
