package lang

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shubhsahu23/VoiceBot/internal/domain"
)

var (
	isoDateRe      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	dayFirstDateRe = regexp.MustCompile(`\b(?:(\d{1,2})/(\d{1,2})/(\d{4})|(\d{1,2})-(\d{1,2})-(\d{4}))\b`)
)

var monthNames = map[domain.Language][12]string{
	domain.LanguageHindi: {
		"जनवरी", "फ़रवरी", "मार्च", "अप्रैल", "मई", "जून",
		"जुलाई", "अगस्त", "सितंबर", "अक्टूबर", "नवंबर", "दिसंबर",
	},
	domain.LanguageMarathi: {
		"जानेवारी", "फेब्रुवारी", "मार्च", "एप्रिल", "मे", "जून",
		"जुलै", "ऑगस्ट", "सप्टेंबर", "ऑक्टोबर", "नोव्हेंबर", "डिसेंबर",
	},
}

const devanagariZero = '०'

// LocalizeDates rewrites ISO (YYYY-MM-DD) and day-first (DD/MM/YYYY,
// DD-MM-YYYY) dates in text for lang. Matches that are not real calendar
// dates are left as they are.
func LocalizeDates(text string, lang domain.Language) string {
	text = isoDateRe.ReplaceAllStringFunc(text, func(m string) string {
		g := isoDateRe.FindStringSubmatch(m)
		return renderDate(m, g[1], g[2], g[3], lang)
	})
	return dayFirstDateRe.ReplaceAllStringFunc(text, func(m string) string {
		g := dayFirstDateRe.FindStringSubmatch(m)
		if g[1] != "" {
			return renderDate(m, g[3], g[2], g[1], lang)
		}
		return renderDate(m, g[6], g[5], g[4], lang)
	})
}

// LocalizeNumber transliterates ASCII digits in s to the native numerals of lang.
func LocalizeNumber(s string, lang domain.Language) string {
	if !lang.UsesDevanagari() {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) * 3)
	for _, r := range s {
		if r >= '0' && r <= '9' {
			r = devanagariZero + (r - '0')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func renderDate(original, year, month, day string, lang domain.Language) string {
	t, ok := parseDate(year, month, day)
	if !ok {
		return original
	}
	names, native := monthNames[lang]
	if !native {
		return t.Format("2 Jan 2006")
	}
	return fmt.Sprintf("%s %s %s",
		LocalizeNumber(strconv.Itoa(t.Day()), lang),
		names[t.Month()-1],
		LocalizeNumber(strconv.Itoa(t.Year()), lang),
	)
}

func parseDate(year, month, day string) (time.Time, bool) {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if m < 1 || m > 12 || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow such as 31 February.
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}
