package lang

import (
	"testing"

	"github.com/shubhsahu23/VoiceBot/internal/domain"
)

var allLanguages = []domain.Language{domain.LanguageEnglish, domain.LanguageHindi, domain.LanguageMarathi}

func TestLocalizeDatesNoDates(t *testing.T) {
	t.Parallel()
	for _, l := range allLanguages {
		if got := LocalizeDates("no dates here", l); got != "no dates here" {
			t.Errorf("LocalizeDates(%s) = %q", l, got)
		}
	}
}

func TestLocalizeDatesISO(t *testing.T) {
	t.Parallel()

	tests := []struct {
		lang domain.Language
		want string
	}{
		{domain.LanguageEnglish, "Expires 31 Mar 2026."},
		{domain.LanguageMarathi, "Expires ३१ मार्च २०२६."},
		{domain.LanguageHindi, "Expires ३१ मार्च २०२६."},
	}
	for _, tt := range tests {
		if got := LocalizeDates("Expires 2026-03-31.", tt.lang); got != tt.want {
			t.Errorf("LocalizeDates(%s) = %q, want %q", tt.lang, got, tt.want)
		}
	}
}

func TestLocalizeDatesDayFirst(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		lang domain.Language
		want string
	}{
		{"Last swap 01/02/2026", domain.LanguageEnglish, "Last swap 1 Feb 2026"},
		{"Last swap 01-02-2026", domain.LanguageEnglish, "Last swap 1 Feb 2026"},
		{"शेवटचा स्वॅप 01/02/2026", domain.LanguageMarathi, "शेवटचा स्वॅप १ फेब्रुवारी २०२६"},
		{"पिछला स्वैप 15/08/2025", domain.LanguageHindi, "पिछला स्वैप १५ अगस्त २०२५"},
	}
	for _, tt := range tests {
		if got := LocalizeDates(tt.in, tt.lang); got != tt.want {
			t.Errorf("LocalizeDates(%q, %s) = %q, want %q", tt.in, tt.lang, got, tt.want)
		}
	}
}

func TestLocalizeDatesMixed(t *testing.T) {
	t.Parallel()

	in := "तुमचे सदस्यत्व 2026-02-01 रोजी संपते, शेवटचा स्वॅप 15/01/2026"
	want := "तुमचे सदस्यत्व १ फेब्रुवारी २०२६ रोजी संपते, शेवटचा स्वॅप १५ जानेवारी २०२६"
	if got := LocalizeDates(in, domain.LanguageMarathi); got != want {
		t.Fatalf("LocalizeDates() = %q, want %q", got, want)
	}
}

func TestLocalizeDatesLeavesInvalidDates(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"2026-13-45", "31/02/2026", "00/01/2026", "2026-02-30"} {
		if got := LocalizeDates(in, domain.LanguageEnglish); got != in {
			t.Errorf("LocalizeDates(%q) = %q, want unchanged", in, got)
		}
	}
}

func TestLocalizeNumber(t *testing.T) {
	t.Parallel()

	if got := LocalizeNumber("DRV-0129", domain.LanguageHindi); got != "DRV-०१२९" {
		t.Fatalf("LocalizeNumber() = %q", got)
	}
	if got := LocalizeNumber("0129", domain.LanguageEnglish); got != "0129" {
		t.Fatalf("English digits should be unchanged, got %q", got)
	}
}
