// Package extract turns raw model completions into validated decisions.
package extract

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"github.com/shubhsahu23/VoiceBot/internal/errorsx"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed decision.schema.json
var decisionSchema []byte

// ErrNoDecision is returned alongside the fallback decision when no
// conforming JSON object could be recovered from a completion.
var ErrNoDecision = errors.New("no decision object in completion")

// Extractor recovers a Decision from free-form completion text.
type Extractor struct {
	schema *gojsonschema.Schema
}

// New compiles the embedded decision schema.
func New() (*Extractor, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(decisionSchema))
	if err != nil {
		return nil, fmt.Errorf("compile decision schema: %w", err)
	}
	return &Extractor{schema: schema}, nil
}

// Extract returns the decision encoded in raw. When nothing usable is found
// it returns Fallback(raw) together with an error wrapping ErrNoDecision, so
// callers always receive a complete Decision.
func (e *Extractor) Extract(raw string) (domain.Decision, error) {
	text := stripFence(raw)

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return Fallback(raw), errorsx.Wrap(fmt.Errorf("%w: no opening brace", ErrNoDecision), errorsx.ReasonExtraction)
	}

	var firstErr error
	if obj, ok := balancedObject(text[start:]); ok {
		d, err := e.parse(obj)
		if err == nil {
			return d, nil
		}
		firstErr = err
	}

	if end := strings.LastIndexByte(text, '}'); end > start {
		d, err := e.parse(text[start : end+1])
		if err == nil {
			return d, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	if firstErr == nil {
		firstErr = errors.New("unterminated object")
	}
	return Fallback(raw), errorsx.Wrap(fmt.Errorf("%w: %v", ErrNoDecision, firstErr), errorsx.ReasonExtraction)
}

// Fallback is the conservative decision used when a completion is unusable.
func Fallback(raw string) domain.Decision {
	return domain.Decision{
		Intent:     domain.IntentUnknown,
		Confidence: 0,
		Response:   strings.TrimSpace(raw),
		Escalate:   true,
	}
}

type wireDecision struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Response   string  `json:"response"`
	Language   *string `json:"language"`
	Escalate   bool    `json:"escalate"`
}

func (e *Extractor) parse(obj string) (domain.Decision, error) {
	result, err := e.schema.Validate(gojsonschema.NewStringLoader(obj))
	if err != nil {
		return domain.Decision{}, fmt.Errorf("parse object: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			msgs = append(msgs, re.String())
		}
		return domain.Decision{}, fmt.Errorf("schema: %s", strings.Join(msgs, "; "))
	}

	var w wireDecision
	if err := json.Unmarshal([]byte(obj), &w); err != nil {
		return domain.Decision{}, fmt.Errorf("decode object: %w", err)
	}

	intent, ok := domain.ParseIntent(w.Intent)
	if !ok {
		return domain.Decision{}, fmt.Errorf("intent %q is not recognised", w.Intent)
	}

	d := domain.Decision{
		Intent:     intent,
		Confidence: clampConfidence(w.Confidence),
		Response:   w.Response,
		Escalate:   w.Escalate,
	}
	if w.Language != nil {
		// Unsupported names are left empty for the caller to fill.
		d.Language, _ = domain.ParseLanguage(*w.Language)
	}
	return d, nil
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// stripFence removes a leading markdown code fence and its closing marker.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.Contains(text[:nl], "{") {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(strings.TrimPrefix(text, "json"), "JSON")
	}
	text = strings.TrimSpace(text)
	if i := strings.LastIndex(text, "```"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// balancedObject returns the prefix of s (which starts with '{') up to the
// brace that brings nesting depth back to zero. Braces inside JSON strings
// are not counted.
func balancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}
