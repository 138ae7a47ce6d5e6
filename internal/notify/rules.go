package notify

import (
	"fmt"
	"time"
)

// Rule maps an event type to its template, gating condition, preference
// category, and throttle policy. Rules are configuration, not persisted
// state.
type Rule struct {
	Template string
	Subject  string
	Body     string // liquid template over the event payload

	// Condition gates the rule on the event payload; nil means always send.
	Condition func(payload map[string]interface{}) bool

	// PreferenceCategory names the opt-out category; empty means the rule
	// ignores preferences.
	PreferenceCategory string

	// ThrottleKey derives the dedup key; nil means the rule is unthrottled.
	// The window must stay below throttle.Horizon.
	ThrottleKey    func(recipient string, payload map[string]interface{}) string
	ThrottleWindow time.Duration
}

// Rules maps event type to its rule.
type Rules map[string]Rule

// DefaultRules returns the built-in notification rules.
func DefaultRules() Rules {
	return Rules{
		"budget.exceeded": {
			Template: "budget-exceeded",
			Subject:  "Your sending budget has been exceeded",
			Body:     "Your workspace has used {{ percent_used }}% of its monthly sending budget.",
			Condition: func(p map[string]interface{}) bool {
				pct, ok := p["percent_used"].(float64)
				return ok && pct >= 100
			},
			PreferenceCategory: "billing",
			ThrottleKey: func(recipient string, p map[string]interface{}) string {
				return fmt.Sprintf("budget-exceeded:%s", recipient)
			},
			ThrottleWindow: 24 * time.Hour,
		},
		"invoice.created": {
			Template:           "invoice-created",
			Subject:            "Your invoice is ready",
			Body:               "Invoice {{ invoice_number }} for {{ amount }} is now available.",
			PreferenceCategory: "billing",
		},
		"password.changed": {
			Template:           "password-changed",
			Subject:            "Your password was changed",
			Body:               "Your account password was changed. If this wasn't you, contact support immediately.",
			PreferenceCategory: "security",
		},
		"campaign.finished": {
			Template:           "campaign-finished",
			Subject:            "Campaign {{ campaign_name }} finished",
			Body:               "Campaign {{ campaign_name }} finished: {{ sent }} sent, {{ failed }} failed.",
			PreferenceCategory: "product",
			ThrottleKey: func(recipient string, p map[string]interface{}) string {
				return fmt.Sprintf("campaign-finished:%s:%v", recipient, p["campaign_id"])
			},
			ThrottleWindow: time.Hour,
		},
	}
}
