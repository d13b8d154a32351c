// Package speech converts reply text to audio.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"github.com/shubhsahu23/VoiceBot/internal/errorsx"
)

// Engine is a synthesis quality tier.
type Engine string

const (
	EngineNeural   Engine = "neural"
	EngineStandard Engine = "standard"
)

// engineTiers lists engines from highest to lowest quality.
var engineTiers = []Engine{EngineNeural, EngineStandard}

// Synthesizer renders text with a voice and engine.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string, engine Engine) ([]byte, error)
}

// DefaultVoice is used for languages without an entry in the voice table.
const DefaultVoice = "Joanna"

var voices = map[domain.Language]string{
	domain.LanguageEnglish: "Joanna",
	domain.LanguageHindi:   "Aditi",
	domain.LanguageMarathi: "Aditi",
}

// VoiceFor returns the voice id used for lang.
func VoiceFor(lang domain.Language) string {
	if v, ok := voices[lang]; ok {
		return v
	}
	return DefaultVoice
}

// Speaker picks a voice for the reply language and falls back to lower
// engine tiers when synthesis fails.
type Speaker struct {
	synth   Synthesizer
	timeout time.Duration
	retries int
	logger  *slog.Logger
}

// NewSpeaker creates a Speaker. retries is the number of extra attempts per engine tier.
func NewSpeaker(s Synthesizer, timeout time.Duration, retries int, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	if retries < 0 {
		retries = 0
	}
	return &Speaker{synth: s, timeout: timeout, retries: retries, logger: logger.With("component", "speech")}
}

// Speak returns audio for text, or nil when every engine tier failed.
// It never returns an error; audio is optional for the caller.
func (s *Speaker) Speak(ctx context.Context, text string, lang domain.Language) []byte {
	if s == nil || s.synth == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	voice := VoiceFor(lang)

	for _, engine := range engineTiers {
		for attempt := 0; attempt <= s.retries; attempt++ {
			audio, err := s.synthesize(ctx, text, voice, engine)
			if err == nil && len(audio) > 0 {
				return audio
			}
			if err == nil {
				err = fmt.Errorf("empty audio")
			}
			s.logger.Warn("Speech synthesis failed",
				"voice", voice,
				"engine", engine,
				"attempt", attempt+1,
				"reason", errorsx.Reason(err),
				"error", err)
			if ctx.Err() != nil {
				return nil
			}
		}
	}
	return nil
}

func (s *Speaker) synthesize(ctx context.Context, text, voice string, engine Engine) ([]byte, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.synth.Synthesize(ctx, text, voice, engine)
}
