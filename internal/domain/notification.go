package domain

import "time"

// AuditStatus enumerates the recorded outcomes of a notification trigger.
type AuditStatus string

const (
	AuditSent      AuditStatus = "SENT"
	AuditSkipped   AuditStatus = "SKIPPED"
	AuditThrottled AuditStatus = "THROTTLED"
	AuditFailed    AuditStatus = "FAILED"
)

// Skip reasons reported by the notification gate.
const (
	ReasonUnknownEvent     = "UNKNOWN_EVENT"
	ReasonNoRecipient      = "NO_RECIPIENT"
	ReasonConditionNotMet  = "CONDITION_NOT_MET"
	ReasonUserPrefDisabled = "USER_PREF_DISABLED"
	ReasonThrottled        = "THROTTLED"
)

// NotificationAudit is one row per notification trigger outcome, including
// skipped and throttled invocations. It is the after-the-fact record of why
// a notification did or did not go out.
type NotificationAudit struct {
	ID          string      `json:"id" db:"id"`
	EventType   string      `json:"event_type" db:"event_type"`
	Recipient   string      `json:"recipient" db:"recipient"`
	Status      AuditStatus `json:"status" db:"status"`
	Reason      string      `json:"reason,omitempty" db:"reason"`
	TemplateID  string      `json:"template_id,omitempty" db:"template_id"`
	ThrottleKey string      `json:"throttle_key,omitempty" db:"throttle_key"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// Preferences holds a recipient's notification category opt-ins. A missing
// row means everything is enabled; the "security" category is always treated
// as enabled regardless of the stored value.
type Preferences struct {
	Recipient  string          `json:"recipient" db:"recipient"`
	Categories map[string]bool `json:"categories" db:"categories"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// PreferenceSecurity is the category that cannot be disabled.
const PreferenceSecurity = "security"

// CategoryEnabled reports whether the given category is enabled for these
// preferences. Nil preferences or an unlisted category default to enabled.
func (p *Preferences) CategoryEnabled(category string) bool {
	if category == PreferenceSecurity {
		return true
	}
	if p == nil || p.Categories == nil {
		return true
	}
	enabled, ok := p.Categories[category]
	if !ok {
		return true
	}
	return enabled
}
