package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"github.com/shubhsahu23/VoiceBot/internal/errorsx"
)

// Translator rewrites replies into another language with a narrow completion prompt.
type Translator struct {
	completer Completer
	opts      Options
}

// NewTranslator creates a Translator. Translation runs at temperature 0.
func NewTranslator(c Completer, maxTokens int) *Translator {
	return &Translator{completer: c, opts: Options{MaxTokens: maxTokens, Temperature: 0}}
}

// Translate returns text in the target language.
func (t *Translator) Translate(ctx context.Context, text string, target domain.Language) (string, error) {
	out, err := t.completer.Complete(ctx, translationPrompt(text, target), t.opts)
	if err != nil {
		return "", errorsx.Wrap(fmt.Errorf("translate to %s: %w", target, err), errorsx.ReasonTranslation)
	}
	out = cleanTranslation(out)
	if out == "" {
		return "", errorsx.Wrap(fmt.Errorf("translate to %s: %w", target, ErrEmptyCompletion), errorsx.ReasonTranslation)
	}
	return out, nil
}

func translationPrompt(text string, target domain.Language) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate the following text into %s. Preserve the meaning, names, numbers and dates.\n", target)
	if target.UsesDevanagari() {
		b.WriteString("Write in Devanagari script.\n")
	}
	b.WriteString("Output only the translation, with no explanation or quotes.\n\n")
	b.WriteString("Text:\n")
	b.WriteString(text)
	return b.String()
}

func cleanTranslation(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"Translation:", "translation:"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
	}
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
