package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"github.com/shubhsahu23/VoiceBot/internal/extract"
	"github.com/shubhsahu23/VoiceBot/internal/lang"
	"github.com/shubhsahu23/VoiceBot/internal/llm"
)

// ruleCompleter answers like a model that follows the classification rules
// except that it never sets escalate on its own.
type ruleCompleter struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (r *ruleCompleter) Complete(_ context.Context, prompt string, _ llm.Options) (string, error) {
	r.mu.Lock()
	r.prompts = append(r.prompts, prompt)
	r.mu.Unlock()

	if r.err != nil {
		return "", r.err
	}
	if r.reply != "" {
		return r.reply, nil
	}

	utterance := strings.ToLower(prompt[strings.LastIndex(prompt, utteranceMarker)+len(utteranceMarker):])
	switch {
	case strings.Contains(utterance, "fire"):
		return `{"intent":"emergency","confidence":0.97,"response":"Please move away from the battery.","language":"English","escalate":false}`, nil
	case strings.Contains(utterance, "invoice"):
		return "```json\n{\"intent\":\"invoice\",\"confidence\":0.9,\"response\":\"Your last invoice is for Rs 450.\",\"language\":\"English\",\"escalate\":false}\n```", nil
	case strings.Contains(utterance, "battery swap"):
		return `{"intent":"battery_swap","confidence":0.8,"response":"Go to any station.","language":"English","escalate":false}`, nil
	default:
		return `{"intent":"unrelated","confidence":0.6,"response":"I can only help with swaps.","language":"English","escalate":false}`, nil
	}
}

func (r *ruleCompleter) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prompts)
}

type fakeTranslator struct {
	out string
	err error
}

func (f *fakeTranslator) Translate(context.Context, string, domain.Language) (string, error) {
	return f.out, f.err
}

func newTestPipeline(t *testing.T, c llm.Completer, tr lang.Translator) *Pipeline {
	t.Helper()
	ex, err := extract.New()
	if err != nil {
		t.Fatalf("extract.New() error = %v", err)
	}
	return New(c, ex, lang.NewDetector(nil), lang.NewReconciler(tr, nil), Settings{MaxTokens: 512, Temperature: 0.1}, nil)
}

func TestClassifyEmergencyForcesEscalation(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, &ruleCompleter{}, nil)

	d := p.Classify(context.Background(), "There is fire coming from the battery", nil)
	if d.Intent != domain.IntentEmergency || !d.Escalate {
		t.Fatalf("Classify() = %+v", d)
	}
	if d.Language != domain.LanguageEnglish {
		t.Fatalf("Language = %q", d.Language)
	}
}

func TestClassifyInvoiceBeatsBatterySwap(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, &ruleCompleter{}, nil)

	d := p.Classify(context.Background(), "battery swap invoice", nil)
	if d.Intent != domain.IntentInvoice {
		t.Fatalf("Intent = %q, want invoice", d.Intent)
	}
	if d.Escalate {
		t.Fatalf("invoice should not escalate")
	}
}

func TestClassifyGibberish(t *testing.T) {
	t.Parallel()
	c := &ruleCompleter{}
	p := newTestPipeline(t, c, nil)

	d := p.Classify(context.Background(), "b vcbgvxszc", nil)
	want := domain.Decision{
		Intent:     domain.IntentUnrelated,
		Confidence: 1,
		Response:   gibberishReply(domain.LanguageEnglish),
		Language:   domain.LanguageEnglish,
		Escalate:   true,
	}
	if d != want {
		t.Fatalf("Classify() = %+v, want %+v", d, want)
	}
	if c.calls() != 0 {
		t.Fatalf("gibberish should not reach the model")
	}
}

func TestClassifyCompletionFailure(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, &ruleCompleter{err: context.DeadlineExceeded}, nil)

	d := p.Classify(context.Background(), "Where is the nearest station?", nil)
	if d.Intent != domain.IntentError || d.Confidence != 0 || !d.Escalate || d.Response == "" {
		t.Fatalf("Classify() = %+v", d)
	}

	p = newTestPipeline(t, nil, nil)
	if d := p.Classify(context.Background(), "hello", nil); d.Intent != domain.IntentError {
		t.Fatalf("nil completer: %+v", d)
	}
}

func TestClassifyUnparseableCompletion(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, &ruleCompleter{reply: "I think this is about leave."}, nil)

	d := p.Classify(context.Background(), "How many leaves do I have?", nil)
	if d.Intent != domain.IntentUnknown || d.Confidence != 0 || !d.Escalate {
		t.Fatalf("Classify() = %+v", d)
	}
	if d.Response != "I think this is about leave." {
		t.Fatalf("Response = %q", d.Response)
	}
}

func TestClassifyMarathiTranslatesAndLocalizes(t *testing.T) {
	t.Parallel()
	c := &ruleCompleter{reply: `{"intent":"subscription","confidence":0.9,"response":"Your plan ends on 2026-03-31.","language":"English","escalate":false}`}
	tr := &fakeTranslator{out: "तुमचे सदस्यत्व 2026-03-31 रोजी संपते."}
	p := newTestPipeline(t, c, tr)

	d := p.Classify(context.Background(), "माझे सदस्यत्व कधी संपते?", nil)
	if d.Language != domain.LanguageMarathi {
		t.Fatalf("Language = %q", d.Language)
	}
	if d.Response != "तुमचे सदस्यत्व ३१ मार्च २०२६ रोजी संपते." {
		t.Fatalf("Response = %q", d.Response)
	}
}

func TestClassifyMarathiTranslationFailureKeepsText(t *testing.T) {
	t.Parallel()
	c := &ruleCompleter{reply: `{"intent":"subscription","confidence":0.9,"response":"Your plan ends on 2026-03-31.","language":"Hindi","escalate":false}`}
	p := newTestPipeline(t, c, &fakeTranslator{err: errors.New("quota")})

	d := p.Classify(context.Background(), "माझे सदस्यत्व कधी संपते?", nil)
	if d.Language != domain.LanguageMarathi {
		t.Fatalf("Language = %q", d.Language)
	}
	if d.Response != "Your plan ends on ३१ मार्च २०२६." {
		t.Fatalf("Response = %q", d.Response)
	}
}

func TestPromptCarriesContextAndHint(t *testing.T) {
	t.Parallel()
	c := &ruleCompleter{}
	p := newTestPipeline(t, c, nil)

	dc := &domain.DriverContext{
		DriverID:   "DRV001",
		Name:       "Ravi",
		Attributes: map[string]any{"driver_id": "DRV001", "subscription_plan": "Monthly"},
	}
	p.Classify(context.Background(), "When does my plan end?", dc)

	if c.calls() != 1 {
		t.Fatalf("completer calls = %d", c.calls())
	}
	prompt := c.prompts[0]
	for _, want := range []string{`"subscription_plan": "Monthly"`, "language_hint: The driver wrote in English.", "nearest_station", utteranceMarker + "\nWhen does my plan end?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestLooksLikeGibberish(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want bool
	}{
		{"b vcbgvxszc", true},
		{"qwrtpsdfghjk", true},
		{"pls hlp", false},
		{"Where is the nearest station?", false},
		{"battery swap invoice", false},
		{"12345", false},
		{"", false},
		{"मला मदत पाहिजे", false},
		{"strengths", false},
	}
	for _, tt := range tests {
		if got := looksLikeGibberish(tt.in); got != tt.want {
			t.Errorf("looksLikeGibberish(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
