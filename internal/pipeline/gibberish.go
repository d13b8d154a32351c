package pipeline

import (
	"strings"
	"unicode"
)

const (
	maxConsonantRun      = 5
	minGibberishTokenLen = 5
)

// looksLikeGibberish reports whether a Latin-script utterance is mostly
// unpronounceable letter runs, such as keyboard mashing. Devanagari input and
// input without letters are never flagged; short abbreviations are left to
// the model.
func looksLikeGibberish(utterance string) bool {
	words := strings.FieldsFunc(strings.ToLower(utterance), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(words) == 0 {
		return false
	}

	pronounceable, longestBad := 0, 0
	for _, w := range words {
		for _, r := range w {
			if r > unicode.MaxASCII {
				return false
			}
		}
		if isPronounceable(w) {
			pronounceable++
			continue
		}
		if n := len(w); n > longestBad {
			longestBad = n
		}
	}
	return longestBad >= minGibberishTokenLen && pronounceable*2 < len(words)
}

func isPronounceable(word string) bool {
	hasVowel, run := false, 0
	for _, r := range word {
		if strings.ContainsRune("aeiouy", r) {
			hasVowel = true
			run = 0
			continue
		}
		run++
		if run > maxConsonantRun {
			return false
		}
	}
	return hasVowel
}
