package lang

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"github.com/shubhsahu23/VoiceBot/internal/redact"
)

// Translator rewrites text into the target language.
type Translator interface {
	Translate(ctx context.Context, text string, target domain.Language) (string, error)
}

// Reconciler settles the reply language of a decision against the detected
// language of the utterance.
type Reconciler struct {
	translator Translator
	logger     *slog.Logger
}

// NewReconciler creates a Reconciler. translator may be nil, in which case
// no translation pass is attempted.
func NewReconciler(translator Translator, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{translator: translator, logger: logger.With("component", "lang_reconciler")}
}

// Reconcile fills a missing language from detected and forces Marathi replies
// for Marathi utterances, translating the response when the model answered
// in another language. Translation failures keep the original response.
func (r *Reconciler) Reconcile(ctx context.Context, d domain.Decision, detected domain.Language) domain.Decision {
	if !detected.Valid() {
		detected = domain.LanguageEnglish
	}
	if !d.Language.Valid() {
		d.Language = detected
	}

	if detected != domain.LanguageMarathi || d.Language == domain.LanguageMarathi {
		return d
	}

	from := d.Language
	d.Language = domain.LanguageMarathi

	if r.translator == nil || strings.TrimSpace(d.Response) == "" {
		return d
	}

	translated, err := r.translator.Translate(ctx, d.Response, domain.LanguageMarathi)
	if err != nil {
		r.logger.Warn("Translation to Marathi failed, keeping original reply",
			"from", from,
			"response", redact.Text(d.Response),
			"error", err)
		return d
	}
	d.Response = translated
	return d
}
