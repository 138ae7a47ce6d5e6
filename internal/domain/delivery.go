package domain

import "time"

// DeliveryStatus enumerates the lifecycle states of a single sent message.
type DeliveryStatus string

const (
	DeliveryPending      DeliveryStatus = "pending"
	DeliverySent         DeliveryStatus = "sent"
	DeliveryDelivered    DeliveryStatus = "delivered"
	DeliveryOpened       DeliveryStatus = "opened"
	DeliveryClicked      DeliveryStatus = "clicked"
	DeliveryBounced      DeliveryStatus = "bounced"
	DeliveryFailed       DeliveryStatus = "failed"
	DeliveryUnsubscribed DeliveryStatus = "unsubscribed"
	DeliveryComplained   DeliveryStatus = "complained"
	DeliverySpam         DeliveryStatus = "spam"
)

// engagementRank orders statuses along the forward-only engagement lifecycle
// pending → sent → delivered → opened → clicked. Terminal failure states have
// no rank.
var engagementRank = map[DeliveryStatus]int{
	DeliveryPending:   0,
	DeliverySent:      1,
	DeliveryDelivered: 2,
	DeliveryOpened:    3,
	DeliveryClicked:   4,
}

// Rank returns the position of s on the engagement lifecycle, or -1 for
// statuses outside it (failure/terminal states).
func (s DeliveryStatus) Rank() int {
	if r, ok := engagementRank[s]; ok {
		return r
	}
	return -1
}

// CanAdvanceTo reports whether a transition from s to target moves forward
// along the engagement lifecycle. Transitions to or from unranked states
// never count as forward movement.
func (s DeliveryStatus) CanAdvanceTo(target DeliveryStatus) bool {
	from, to := s.Rank(), target.Rank()
	return from >= 0 && to >= 0 && to > from
}

// ResendAttempt records one retry of a previously failed message.
type ResendAttempt struct {
	Timestamp time.Time `json:"timestamp"`
	Outcome   string    `json:"outcome"` // "sent" or "failed"
	Error     string    `json:"error,omitempty"`
}

// DeliveryLog is one row per attempted message. Rows are created as "pending"
// immediately before the provider call and mutated as the message moves
// through its lifecycle. The core never deletes them.
type DeliveryLog struct {
	ID               string          `json:"id" db:"id"`
	CampaignID       *string         `json:"campaign_id,omitempty" db:"campaign_id"`
	RecipientID      *string         `json:"recipient_id,omitempty" db:"recipient_id"`
	Email            string          `json:"email" db:"email"`
	Subject          string          `json:"subject" db:"subject"`
	Status           DeliveryStatus  `json:"status" db:"status"`
	OpenToken        string          `json:"open_token" db:"open_token"`
	ClickToken       string          `json:"click_token" db:"click_token"`
	ProviderID       string          `json:"provider_id,omitempty" db:"provider_id"`
	ProviderResponse string          `json:"provider_response,omitempty" db:"provider_response"`
	Error            string          `json:"error,omitempty" db:"error"`
	ResendHistory    []ResendAttempt `json:"resend_history,omitempty" db:"resend_history"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	OpenedAt  *time.Time `json:"opened_at,omitempty" db:"opened_at"`
	ClickedAt *time.Time `json:"clicked_at,omitempty" db:"clicked_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}
