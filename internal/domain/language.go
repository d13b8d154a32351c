package domain

import "strings"

// Language is one of the supported reply languages.
type Language string

const (
	LanguageEnglish Language = "English"
	LanguageHindi   Language = "Hindi"
	LanguageMarathi Language = "Marathi"
)

// ParseLanguage accepts English names, ISO 639-1 codes and native names.
// ok is false for anything else, including the empty string.
func ParseLanguage(s string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "english", "en", "eng":
		return LanguageEnglish, true
	case "hindi", "hi", "hin", "हिंदी", "हिन्दी":
		return LanguageHindi, true
	case "marathi", "mr", "mar", "मराठी":
		return LanguageMarathi, true
	}
	return "", false
}

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	return l == LanguageEnglish || l == LanguageHindi || l == LanguageMarathi
}

// UsesDevanagari reports whether replies in l are written in Devanagari script.
func (l Language) UsesDevanagari() bool {
	return l == LanguageHindi || l == LanguageMarathi
}
