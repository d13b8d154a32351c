// Package pipeline turns one driver utterance into a Decision.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"github.com/shubhsahu23/VoiceBot/internal/errorsx"
	"github.com/shubhsahu23/VoiceBot/internal/extract"
	"github.com/shubhsahu23/VoiceBot/internal/lang"
	"github.com/shubhsahu23/VoiceBot/internal/llm"
	"github.com/shubhsahu23/VoiceBot/internal/redact"
)

// Settings tune the completion and translation calls.
type Settings struct {
	Timeout          time.Duration
	TranslateTimeout time.Duration
	MaxTokens        int
	Temperature      float64
}

// Pipeline classifies utterances with a single completion call.
type Pipeline struct {
	completer  llm.Completer
	extractor  *extract.Extractor
	detector   *lang.Detector
	reconciler *lang.Reconciler
	settings   Settings
	logger     *slog.Logger
}

// New creates a Pipeline. A nil completer makes every classification take
// the transport failure path.
func New(c llm.Completer, ex *extract.Extractor, d *lang.Detector, r *lang.Reconciler, s Settings, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		completer:  c,
		extractor:  ex,
		detector:   d,
		reconciler: r,
		settings:   s,
		logger:     logger.With("component", "pipeline"),
	}
}

// Classify returns the Decision for utterance. It never fails: transport
// and extraction problems become conservative escalating decisions.
func (p *Pipeline) Classify(ctx context.Context, utterance string, dc *domain.DriverContext) domain.Decision {
	start := time.Now()
	detected := p.detector.Detect(utterance)

	if looksLikeGibberish(utterance) {
		p.logger.Info("Gibberish utterance",
			"language", detected,
			"utterance", redact.Text(utterance))
		return domain.Decision{
			Intent:     domain.IntentUnrelated,
			Confidence: 1,
			Response:   gibberishReply(detected),
			Language:   detected,
			Escalate:   true,
		}
	}

	raw, err := p.complete(ctx, utterance, detected, dc)
	if err != nil {
		p.logger.Error("Completion failed",
			"language", detected,
			"reason", errorsx.Reason(err),
			"latency_ms", time.Since(start).Milliseconds(),
			"error", err)
		return errorDecision(detected)
	}

	d, err := p.extractor.Extract(raw)
	if err != nil {
		p.logger.Warn("Could not extract decision from completion",
			"completion", redact.Text(raw),
			"error", err)
	}
	if d.Response == "" {
		d.Response = errorReply(detected)
	}
	d = d.Normalize()

	d = p.reconcile(ctx, d, detected)
	d.Response = lang.LocalizeDates(d.Response, d.Language)

	p.logger.Info("Classified utterance",
		"intent", d.Intent,
		"confidence", d.Confidence,
		"language", d.Language,
		"detected_language", detected,
		"escalate", d.Escalate,
		"latency_ms", time.Since(start).Milliseconds())
	return d
}

func (p *Pipeline) complete(ctx context.Context, utterance string, detected domain.Language, dc *domain.DriverContext) (string, error) {
	if p.completer == nil {
		return "", errorsx.Wrap(llm.ErrEmptyCompletion, errorsx.ReasonCompletion)
	}

	prompt, err := buildPrompt(utterance, detected, dc)
	if err != nil {
		p.logger.Warn("Dropping driver context from prompt", "error", err)
		if prompt, err = buildPrompt(utterance, detected, nil); err != nil {
			return "", err
		}
	}

	if p.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.settings.Timeout)
		defer cancel()
	}
	return p.completer.Complete(ctx, prompt, llm.Options{
		MaxTokens:   p.settings.MaxTokens,
		Temperature: p.settings.Temperature,
	})
}

func (p *Pipeline) reconcile(ctx context.Context, d domain.Decision, detected domain.Language) domain.Decision {
	if p.reconciler == nil {
		if !d.Language.Valid() {
			d.Language = detected
		}
		return d
	}
	if p.settings.TranslateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.settings.TranslateTimeout)
		defer cancel()
	}
	return p.reconciler.Reconcile(ctx, d, detected)
}

func errorDecision(lang domain.Language) domain.Decision {
	return domain.Decision{
		Intent:     domain.IntentError,
		Confidence: 0,
		Response:   errorReply(lang),
		Language:   lang,
		Escalate:   true,
	}
}
