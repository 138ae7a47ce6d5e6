// Package dispatch drives bulk campaign sends: recipient resolution, paced
// sequential delivery, result aggregation, reconciliation against the
// delivery log, and the campaign state machine.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/mailroom/internal/delivery"
	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/logger"
	"github.com/ignite/mailroom/internal/provider"
)

// Sender is the single-message send operation the dispatcher delegates to.
type Sender interface {
	Send(ctx context.Context, in delivery.SendInput) (*domain.DeliveryLog, error)
}

// CampaignStore is the campaign persistence the dispatcher needs.
type CampaignStore interface {
	// Get returns ErrNotFound when the campaign doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	// ClaimSending atomically transitions draft/scheduled → sending and
	// reports whether this caller won the claim. Exactly one concurrent
	// caller can win.
	ClaimSending(ctx context.Context, id string) (bool, error)
	// Finish persists the campaign's final status, stats, results and sentAt.
	Finish(ctx context.Context, c *domain.Campaign) error
}

// SubscriberStore resolves and imports recipients.
type SubscriberStore interface {
	ListActive(ctx context.Context) ([]domain.Subscriber, error)
	ListByStatus(ctx context.Context, status domain.SubscriberStatus) ([]domain.Subscriber, error)
	// GetByEmail returns nil, nil when no subscriber exists.
	GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error)
	Upsert(ctx context.Context, s *domain.Subscriber) error
}

// AccountStore is the external account-status population targeted by the
// account segments (trialing, past_due, cancelled).
type AccountStore interface {
	ListByStatus(ctx context.Context, status string) ([]domain.Account, error)
}

// LogStore reads back delivery logs for reconciliation and resend.
type LogStore interface {
	ListByCampaign(ctx context.Context, campaignID string) ([]domain.DeliveryLog, error)
	// ListResendable returns logs in {failed, pending, bounced}, created
	// within maxAge, with fewer than maxAttempts resend attempts.
	ListResendable(ctx context.Context, campaignID string, maxAge time.Duration, maxAttempts int) ([]domain.DeliveryLog, error)
	AppendResendAttempt(ctx context.Context, logID string, attempt domain.ResendAttempt) error
}

// maxResendAttempts caps how many times a failed row may be retried.
const maxResendAttempts = 3

// Dispatcher serializes campaign sends. Sends are intentionally sequential
// with a fixed inter-message pause: the bottleneck is the provider's rate
// ceiling, not local compute, and pacing below it beats parallel fan-out
// that would immediately get throttled.
type Dispatcher struct {
	campaigns   CampaignStore
	subscribers SubscriberStore
	accounts    AccountStore
	logs        LogStore
	sender      Sender

	pace           time.Duration // between messages, ~2 msg/s
	rateLimitPause time.Duration // before the dispatcher's own single retry
	now            func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPace overrides the inter-message pause, primarily for tests.
func WithPace(pace, rateLimitPause time.Duration) Option {
	return func(d *Dispatcher) {
		d.pace = pace
		d.rateLimitPause = rateLimitPause
	}
}

// WithAccounts wires the external account-status store used by the account
// segments. Without it those segments resolve empty.
func WithAccounts(accounts AccountStore) Option {
	return func(d *Dispatcher) { d.accounts = accounts }
}

// NewDispatcher creates a bulk dispatcher.
func NewDispatcher(campaigns CampaignStore, subscribers SubscriberStore, logs LogStore, sender Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		campaigns:      campaigns,
		subscribers:    subscribers,
		logs:           logs,
		sender:         sender,
		pace:           500 * time.Millisecond,
		rateLimitPause: 2 * time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Job is a claimed campaign ready to run. The claim has already happened by
// the time a Job exists, so exactly one Job per campaign can be live.
type Job struct {
	Campaign   *domain.Campaign
	Recipients []Recipient
}

// Targeted returns the resolved recipient count.
func (j *Job) Targeted() int { return len(j.Recipients) }

// Summary aggregates the outcome of a bulk run.
type Summary struct {
	Targeted  int      `json:"targeted"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Confirmed int      `json:"confirmed"` // durably logged as sent or beyond
	Missing   []string `json:"missing,omitempty"`
}

// Begin validates the campaign, resolves its recipients, and claims the
// sending state. The claim is the last step so a rejected send leaves no
// state change behind. Callers respond to the user with Job.Targeted() and
// run Run on a background context.
func (d *Dispatcher) Begin(ctx context.Context, campaignID string) (*Job, error) {
	c, err := d.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	switch c.Status {
	case domain.CampaignSending:
		return nil, ErrAlreadySending
	case domain.CampaignSent:
		return nil, ErrAlreadySent
	case domain.CampaignDraft, domain.CampaignScheduled:
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotSendable, c.Status)
	}

	recipients, err := d.resolveRecipients(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	won, err := d.campaigns.ClaimSending(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("claim campaign: %w", err)
	}
	if !won {
		return nil, ErrAlreadySending
	}

	c.Status = domain.CampaignSending
	c.Recipients.Resolved = len(recipients)
	logger.Info("campaign send started",
		"campaign", c.ID, "targeted", len(recipients), "type", string(c.Recipients.Type))
	return &Job{Campaign: c, Recipients: recipients}, nil
}

// Run executes a claimed job: sequential paced sends, one extra retry on
// escaped rate-limit errors, then reconciliation and the final status flip.
// A single recipient's failure never aborts the batch.
func (d *Dispatcher) Run(ctx context.Context, job *Job) (*Summary, error) {
	c := job.Campaign
	summary := &Summary{Targeted: len(job.Recipients)}
	results := make([]domain.RecipientResult, 0, domain.MaxStoredResults)

	for i, r := range job.Recipients {
		if i > 0 {
			if err := d.sleep(ctx, d.pace); err != nil {
				logger.Warn("campaign run interrupted", "campaign", c.ID, "sent", summary.Succeeded)
				break
			}
		}

		err := d.sendOne(ctx, c, r)
		if err != nil && provider.IsRateLimit(err) {
			// DeliveryClient already burned its own retry budget; give the
			// provider one longer breather before giving up on this recipient.
			if serr := d.sleep(ctx, d.rateLimitPause); serr == nil {
				err = d.sendOne(ctx, c, r)
			}
		}

		if err != nil {
			summary.Failed++
			logger.Warn("campaign recipient failed", "campaign", c.ID, "email", r.Email, "error", err)
			if len(results) < domain.MaxStoredResults {
				results = append(results, domain.RecipientResult{Email: r.Email, Error: err.Error()})
			}
			continue
		}

		summary.Succeeded++
		if len(results) < domain.MaxStoredResults {
			results = append(results, domain.RecipientResult{Email: r.Email, Success: true})
		}
	}

	d.reconcile(ctx, job, summary)

	now := d.now()
	c.Status = domain.CampaignSent
	if summary.Succeeded == 0 {
		c.Status = domain.CampaignFailed
	}
	c.Stats.Targeted = summary.Targeted
	c.Stats.Sent = summary.Succeeded
	c.Stats.Failed = summary.Failed
	c.Results = results
	c.SentAt = &now

	if err := d.campaigns.Finish(ctx, c); err != nil {
		return summary, fmt.Errorf("finish campaign: %w", err)
	}

	logger.Info("campaign send finished", "campaign", c.ID,
		"status", string(c.Status), "sent", summary.Succeeded, "failed", summary.Failed,
		"confirmed", summary.Confirmed)
	return summary, nil
}

func (d *Dispatcher) sendOne(ctx context.Context, c *domain.Campaign, r Recipient) error {
	_, err := d.sender.Send(ctx, delivery.SendInput{
		To:            r.Email,
		Subject:       c.Subject,
		HTMLContent:   c.HTMLContent,
		PlainContent:  c.PlainContent,
		FromName:      c.FromName,
		FromEmail:     c.FromEmail,
		ReplyTo:       c.ReplyTo,
		CampaignID:    &c.ID,
		RecipientID:   r.ID,
		RecipientName: r.Name,
		ListID:        c.ID,
	})
	return err
}

// reconcile re-reads the durable delivery log and compares it with what the
// send loop believes happened. "Confirmed" counts rows at sent or beyond;
// targeted addresses that produced no row at all indicate a consistency bug
// worth alerting on, not silently swallowing.
func (d *Dispatcher) reconcile(ctx context.Context, job *Job, summary *Summary) {
	rows, err := d.logs.ListByCampaign(ctx, job.Campaign.ID)
	if err != nil {
		logger.Error("reconciliation query failed", "campaign", job.Campaign.ID, "error", err)
		return
	}

	logged := make(map[string]bool, len(rows))
	for _, row := range rows {
		logged[row.Email] = true
		if row.Status.Rank() >= domain.DeliverySent.Rank() {
			summary.Confirmed++
		}
	}

	for _, r := range job.Recipients {
		if !logged[r.Email] {
			summary.Missing = append(summary.Missing, r.Email)
		}
	}
	if len(summary.Missing) > 0 {
		logger.Error("campaign consistency gap: targeted recipients with no delivery log",
			"campaign", job.Campaign.ID, "missing", len(summary.Missing))
	}
	if summary.Confirmed != summary.Succeeded {
		logger.Warn("confirmed count differs from call-site successes",
			"campaign", job.Campaign.ID, "confirmed", summary.Confirmed, "succeeded", summary.Succeeded)
	}
}

// ResendSummary aggregates a failed-email resend pass.
type ResendSummary struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ResendFailed retries delivery-log rows for a campaign that are failed,
// still pending, or bounced, are younger than maxAge, and have fewer than
// three prior resend attempts. Every retry outcome is appended to the row's
// resend history.
func (d *Dispatcher) ResendFailed(ctx context.Context, campaignID string, maxAge time.Duration) (*ResendSummary, error) {
	c, err := d.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	rows, err := d.logs.ListResendable(ctx, campaignID, maxAge, maxResendAttempts)
	if err != nil {
		return nil, fmt.Errorf("list resendable: %w", err)
	}

	summary := &ResendSummary{}
	for i, row := range rows {
		if i > 0 {
			if err := d.sleep(ctx, d.pace); err != nil {
				break
			}
		}
		summary.Attempted++

		attempt := domain.ResendAttempt{Timestamp: d.now(), Outcome: "sent"}
		if err := d.sendOne(ctx, c, Recipient{Email: row.Email, ID: row.RecipientID}); err != nil {
			attempt.Outcome = "failed"
			attempt.Error = err.Error()
			summary.Failed++
		} else {
			summary.Succeeded++
		}

		if err := d.logs.AppendResendAttempt(ctx, row.ID, attempt); err != nil {
			logger.Error("resend history update failed", "log", row.ID, "error", err)
		}
	}

	logger.Info("resend pass finished", "campaign", campaignID,
		"attempted", summary.Attempted, "succeeded", summary.Succeeded)
	return summary, nil
}

func (d *Dispatcher) sleep(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(dur):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
