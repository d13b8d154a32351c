// Package lang detects the language of driver utterances and localizes replies.
package lang

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"golang.org/x/text/unicode/norm"
)

// marathiMarkers are common Marathi words whose Hindi equivalents differ
// (आहे/है, मला/मुझे, माझा/मेरा, कधी/कब, नाही/नहीं ...).
var marathiMarkers = map[string]struct{}{
	"आहे": {}, "आहेत": {}, "मला": {}, "माझा": {}, "माझी": {}, "माझे": {},
	"तुमचा": {}, "तुमची": {}, "तुमचे": {}, "आपला": {}, "कधी": {}, "नाही": {},
	"काय": {}, "कसे": {}, "कुठे": {}, "आणि": {}, "पाहिजे": {}, "हवे": {},
	"सदस्यत्व": {}, "शेवटचा": {}, "शेवट": {}, "ड्रायव्हर": {}, "स्वॅप": {},
	"नवीन": {}, "मिळेल": {}, "रोजी": {}, "संपते": {},
}

// minClassifierTokens is the shortest Devanagari input handed to the
// statistical classifier.
const minClassifierTokens = 3

var candidates = whatlanggo.Options{
	Whitelist: map[whatlanggo.Lang]bool{
		whatlanggo.Eng: true,
		whatlanggo.Hin: true,
		whatlanggo.Mar: true,
	},
}

// Detector maps utterances onto the supported languages.
type Detector struct {
	logger *slog.Logger
}

// NewDetector creates a Detector. A nil logger uses slog.Default().
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger.With("component", "lang_detector")}
}

// Detect returns the language of utterance. It never fails: empty input or a
// classifier failure yields English, or Hindi for Devanagari text.
func (d *Detector) Detect(utterance string) domain.Language {
	text := norm.NFC.String(strings.TrimSpace(utterance))
	if text == "" {
		return domain.LanguageEnglish
	}

	if !hasDevanagari(text) {
		return d.classify(text)
	}
	if hasMarathiMarker(text) {
		return domain.LanguageMarathi
	}
	// Devanagari without Marathi markers is Hindi unless there is enough
	// text for the classifier to say otherwise.
	if len(tokens(text)) < minClassifierTokens {
		return domain.LanguageHindi
	}
	if lang := d.classify(text); lang != domain.LanguageEnglish {
		return lang
	}
	return domain.LanguageHindi
}

func (d *Detector) classify(text string) (lang domain.Language) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("Language classifier failed", "panic", r)
			lang = domain.LanguageEnglish
		}
	}()

	info := whatlanggo.DetectWithOptions(text, candidates)
	switch info.Lang {
	case whatlanggo.Hin:
		return domain.LanguageHindi
	case whatlanggo.Mar:
		return domain.LanguageMarathi
	default:
		return domain.LanguageEnglish
	}
}

func hasDevanagari(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Devanagari, r) {
			return true
		}
	}
	return false
}

func hasMarathiMarker(text string) bool {
	for _, tok := range tokens(text) {
		if _, ok := marathiMarkers[tok]; ok {
			return true
		}
	}
	return false
}

// tokens splits on anything that is neither a letter nor a combining mark,
// so Devanagari vowel signs stay attached to their words.
func tokens(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsMark(r)
	})
}
