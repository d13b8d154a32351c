package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shubhsahu23/VoiceBot/internal/domain"
)

// utteranceMarker precedes the driver's message at the end of every prompt.
const utteranceMarker = "Driver message:"

const systemInstruction = `You are a support assistant for drivers of a battery swapping service.

Classify the driver's message into exactly one of these intents:
- leave (leave balance, applying for leave)
- subscription (plan details, renewal, upgrade, expiry)
- nearest_station (finding a battery swap station)
- battery_swap (the swap process, problems while swapping)
- invoice (last bill, amount, receipt, payment history)
- emergency (fire, smoke, explosion, accident, injury, immediate danger)
- unrelated (anything else)

CRITICAL RULES:
- If the driver mentions fire, smoke, explosion or immediate danger, the intent is "emergency".
- If the driver asks for an invoice, bill or receipt, the intent is "invoice" even when "battery swap" is also mentioned.
- If the intent is "emergency" or "unrelated", set "escalate" to true.
- If the message is gibberish or cannot be understood, answer with intent "unrelated", confidence 1.0, escalate true and the response %q.
- Use the driver information below, if present, to answer questions about the driver's own plan, swaps and invoices.

Respond with a single raw JSON object and nothing else. No markdown, no explanation.
{"intent": "<intent>", "confidence": <0.0-1.0>, "response": "<reply to the driver>", "language": "<English|Hindi|Marathi>", "escalate": <true|false>}`

var languageHints = map[domain.Language]string{
	domain.LanguageEnglish: `The driver wrote in English. Reply in English.`,
	domain.LanguageHindi: `The driver wrote in Hindi. Reply in Hindi using Devanagari script, not Hinglish. ` +
		`Prefer Hindi forms such as है, मेरा, मुझे, कब, नहीं, चाहिए and avoid Marathi forms such as आहे, माझा, मला, कधी, नाही, पाहिजे.`,
	domain.LanguageMarathi: `The driver wrote in Marathi. Reply in Marathi using Devanagari script. ` +
		`Prefer Marathi forms such as आहे, माझा, मला, कधी, नाही, पाहिजे and avoid Hindi forms such as है, मेरा, मुझे, कब, नहीं, चाहिए.`,
}

// buildPrompt assembles the classification prompt. Driver attributes are
// serialized as JSON so the model can quote plan and swap details verbatim.
func buildPrompt(utterance string, lang domain.Language, dc *domain.DriverContext) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, systemInstruction, gibberishReply(lang))
	b.WriteString("\n\n")

	if dc != nil && len(dc.Attributes) > 0 {
		raw, err := json.MarshalIndent(dc.Attributes, "", "  ")
		if err != nil {
			return "", fmt.Errorf("serialize driver context: %w", err)
		}
		b.WriteString("Driver information:\n")
		b.Write(raw)
		b.WriteString("\n\n")
	}

	hint, ok := languageHints[lang]
	if !ok {
		hint = languageHints[domain.LanguageEnglish]
	}
	b.WriteString("language_hint: ")
	b.WriteString(hint)
	b.WriteString("\n\n")

	b.WriteString(utteranceMarker)
	b.WriteString("\n")
	b.WriteString(utterance)
	return b.String(), nil
}
