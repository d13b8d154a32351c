// Package domain contains core domain types for the driver support chat.
package domain

import "strings"

// Intent is the closed set of classifications a chat turn resolves to.
type Intent string

const (
	IntentLeave          Intent = "leave"
	IntentSubscription   Intent = "subscription"
	IntentNearestStation Intent = "nearest_station"
	IntentBatterySwap    Intent = "battery_swap"
	IntentInvoice        Intent = "invoice"
	IntentEmergency      Intent = "emergency"
	IntentUnrelated      Intent = "unrelated"
	IntentUnknown        Intent = "unknown"
	IntentError          Intent = "error"

	// IntentLiveChat is only used on the wire when a message was forwarded to a human agent.
	IntentLiveChat Intent = "live_chat"
)

// ClassifiableIntents are the intents the model may choose from.
var ClassifiableIntents = []Intent{
	IntentLeave,
	IntentSubscription,
	IntentNearestStation,
	IntentBatterySwap,
	IntentInvoice,
	IntentEmergency,
	IntentUnrelated,
}

// ParseIntent maps a loosely spelled intent ("Nearest Station", "battery-swap")
// to its canonical value. ok is false for values outside the enum.
func ParseIntent(s string) (Intent, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	switch Intent(key) {
	case IntentLeave, IntentSubscription, IntentNearestStation, IntentBatterySwap,
		IntentInvoice, IntentEmergency, IntentUnrelated, IntentUnknown, IntentError:
		return Intent(key), true
	}
	return "", false
}

// ForcesEscalation reports whether a decision with this intent must be escalated.
func (i Intent) ForcesEscalation() bool {
	return i == IntentEmergency || i == IntentUnrelated
}

// Decision is the structured result of classifying one chat turn.
type Decision struct {
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Response   string   `json:"response"`
	Language   Language `json:"language"`
	Escalate   bool     `json:"escalate"`
}

// Normalize enforces the decision invariants: confidence within [0,1] and
// escalation for emergency and unrelated intents.
func (d Decision) Normalize() Decision {
	switch {
	case d.Confidence < 0:
		d.Confidence = 0
	case d.Confidence > 1:
		d.Confidence = 1
	}
	if d.Intent.ForcesEscalation() {
		d.Escalate = true
	}
	return d
}
