package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"github.com/shubhsahu23/VoiceBot/internal/errorsx"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	out     string
	err     error
	prompt  string
	options llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, opt := range options {
		opt(&f.options)
	}
	if len(messages) > 0 && len(messages[0].Parts) > 0 {
		if tc, ok := messages[0].Parts[0].(llms.TextContent); ok {
			f.prompt = tc.Text
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.out}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestClientComplete(t *testing.T) {
	t.Parallel()
	m := &fakeModel{out: `{"intent":"leave"}`}
	c := NewWithModel(m, "openai", "test-model")

	out, err := c.Complete(context.Background(), "classify this", Options{MaxTokens: 512, Temperature: 0.1})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != `{"intent":"leave"}` {
		t.Fatalf("Complete() = %q", out)
	}
	if m.prompt != "classify this" {
		t.Fatalf("prompt = %q", m.prompt)
	}
	if m.options.MaxTokens != 512 || m.options.Temperature != 0.1 {
		t.Fatalf("options = %+v", m.options)
	}
}

func TestClientCompleteErrors(t *testing.T) {
	t.Parallel()

	c := NewWithModel(&fakeModel{err: errors.New("connection refused")}, "openai", "test-model")
	if _, err := c.Complete(context.Background(), "x", Options{}); !errorsx.HasReason(err, errorsx.ReasonCompletion) {
		t.Fatalf("expected completion reason, got %v", err)
	}

	c = NewWithModel(&fakeModel{out: "  \n"}, "openai", "test-model")
	_, err := c.Complete(context.Background(), "x", Options{})
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

type scriptedCompleter struct {
	outputs []string
	errs    []error
	calls   int
	prompts []string
}

func (s *scriptedCompleter) Complete(_ context.Context, prompt string, _ Options) (string, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, prompt)
	var out string
	var err error
	if i < len(s.outputs) {
		out = s.outputs[i]
	}
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return out, err
}

func TestWithRetryZeroIsSingleAttempt(t *testing.T) {
	t.Parallel()
	s := &scriptedCompleter{errs: []error{errors.New("boom")}}
	c := WithRetry(s, 0, time.Millisecond, nil)

	if _, err := c.Complete(context.Background(), "x", Options{}); err == nil {
		t.Fatalf("expected error")
	}
	if s.calls != 1 {
		t.Fatalf("calls = %d, want 1", s.calls)
	}
}

func TestWithRetryRecovers(t *testing.T) {
	t.Parallel()
	s := &scriptedCompleter{
		outputs: []string{"", "ok"},
		errs:    []error{errors.New("boom"), nil},
	}
	c := WithRetry(s, 2, time.Millisecond, nil)

	out, err := c.Complete(context.Background(), "x", Options{})
	if err != nil || out != "ok" {
		t.Fatalf("Complete() = %q, %v", out, err)
	}
	if s.calls != 2 {
		t.Fatalf("calls = %d, want 2", s.calls)
	}
}

func TestWithRetryStopsOnDeadline(t *testing.T) {
	t.Parallel()
	s := &scriptedCompleter{errs: []error{context.DeadlineExceeded, nil}}
	c := WithRetry(s, 3, time.Millisecond, nil)

	if _, err := c.Complete(context.Background(), "x", Options{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if s.calls != 1 {
		t.Fatalf("calls = %d, want 1", s.calls)
	}
}

func TestTranslator(t *testing.T) {
	t.Parallel()
	s := &scriptedCompleter{outputs: []string{"Translation: \"तुमचे बिल पाठवले आहे.\""}}
	tr := NewTranslator(s, 256)

	out, err := tr.Translate(context.Background(), "Your invoice has been sent.", domain.LanguageMarathi)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if out != "तुमचे बिल पाठवले आहे." {
		t.Fatalf("Translate() = %q", out)
	}
	if !strings.Contains(s.prompts[0], "into Marathi") || !strings.Contains(s.prompts[0], "Your invoice has been sent.") {
		t.Fatalf("prompt = %q", s.prompts[0])
	}
}

func TestTranslatorFailure(t *testing.T) {
	t.Parallel()
	tr := NewTranslator(&scriptedCompleter{outputs: []string{"   "}}, 256)
	_, err := tr.Translate(context.Background(), "hi", domain.LanguageMarathi)
	if !errorsx.HasReason(err, errorsx.ReasonTranslation) {
		t.Fatalf("expected translation reason, got %v", err)
	}
}
