package domain

import "time"

// CampaignStatus enumerates the lifecycle states of a bulk send job.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignFailed    CampaignStatus = "failed"
	CampaignCancelled CampaignStatus = "cancelled"
)

// RecipientType determines how a campaign's recipient set is resolved.
type RecipientType string

const (
	RecipientAll     RecipientType = "all"     // every active subscriber
	RecipientSegment RecipientType = "segment" // subscribers matching a named segment
	RecipientList    RecipientType = "list"    // explicit address list on the campaign
)

// RecipientSpec describes a campaign's target audience.
type RecipientSpec struct {
	Type     RecipientType `json:"type" db:"recipient_type"`
	Segment  string        `json:"segment,omitempty" db:"recipient_segment"`
	Emails   []string      `json:"emails,omitempty" db:"recipient_emails"`
	Resolved int           `json:"resolved" db:"recipient_resolved"`
}

// CampaignStats aggregates per-campaign delivery counters.
type CampaignStats struct {
	Targeted int `json:"targeted" db:"stat_targeted"`
	Sent     int `json:"sent" db:"stat_sent"`
	Failed   int `json:"failed" db:"stat_failed"`
	Opened   int `json:"opened" db:"stat_opened"`
	Clicked  int `json:"clicked" db:"stat_clicked"`
}

// RecipientResult records the outcome of a single send within a bulk run.
// Campaigns keep at most MaxStoredResults of these.
type RecipientResult struct {
	Email   string `json:"email"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// MaxStoredResults caps the per-recipient result list persisted on a campaign.
const MaxStoredResults = 100

// Campaign represents a single bulk send job with its content and audience.
type Campaign struct {
	ID           string            `json:"id" db:"id"`
	Name         string            `json:"name" db:"name"`
	Subject      string            `json:"subject" db:"subject"`
	HTMLContent  string            `json:"html_content" db:"html_content"`
	PlainContent string            `json:"plain_content" db:"plain_content"`
	FromName     string            `json:"from_name" db:"from_name"`
	FromEmail    string            `json:"from_email" db:"from_email"`
	ReplyTo      string            `json:"reply_to" db:"reply_to"`
	Recipients   RecipientSpec     `json:"recipients"`
	Status       CampaignStatus    `json:"status" db:"status"`
	Stats        CampaignStats     `json:"stats"`
	Results      []RecipientResult `json:"results,omitempty"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignSent || c.Status == CampaignFailed || c.Status == CampaignCancelled
}

// Sendable returns true if a send may be started for this campaign.
func (c *Campaign) Sendable() bool {
	return c.Status == CampaignDraft || c.Status == CampaignScheduled
}
