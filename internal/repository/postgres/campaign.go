package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/mailroom/internal/dispatch"
	"github.com/ignite/mailroom/internal/domain"
)

// CampaignRepo implements dispatch.CampaignStore against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var results []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, subject, COALESCE(html_content,''), COALESCE(plain_content,''),
		       from_name, from_email, COALESCE(reply_to,''),
		       recipient_type, COALESCE(recipient_segment,''), recipient_emails,
		       status,
		       stat_targeted, stat_sent, stat_failed, stat_opened, stat_clicked,
		       COALESCE(results,'[]'), scheduled_at, sent_at, created_at, updated_at
		FROM campaigns
		WHERE id = $1
	`, id).Scan(
		&c.ID, &c.Name, &c.Subject, &c.HTMLContent, &c.PlainContent,
		&c.FromName, &c.FromEmail, &c.ReplyTo,
		&c.Recipients.Type, &c.Recipients.Segment, pq.Array(&c.Recipients.Emails),
		&c.Status,
		&c.Stats.Targeted, &c.Stats.Sent, &c.Stats.Failed, &c.Stats.Opened, &c.Stats.Clicked,
		&results, &c.ScheduledAt, &c.SentAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, dispatch.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &c.Results); err != nil {
			return nil, fmt.Errorf("decode campaign results: %w", err)
		}
	}
	return c, nil
}

// ClaimSending transitions a sendable campaign to "sending" in a single
// statement. Concurrent callers race on the status predicate, so exactly one
// sees a row affected.
func (r *CampaignRepo) ClaimSending(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = 'sending', updated_at = NOW()
		WHERE id = $1 AND status IN ('draft','scheduled')
	`, id)
	if err != nil {
		return false, fmt.Errorf("claim campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *CampaignRepo) Finish(ctx context.Context, c *domain.Campaign) error {
	results, err := json.Marshal(c.Results)
	if err != nil {
		return fmt.Errorf("marshal campaign results: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET
			status = $1,
			stat_targeted = $2, stat_sent = $3, stat_failed = $4,
			results = $5, sent_at = $6, updated_at = NOW()
		WHERE id = $7
	`, c.Status, c.Stats.Targeted, c.Stats.Sent, c.Stats.Failed,
		results, c.SentAt, c.ID)
	if err != nil {
		return fmt.Errorf("finish campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return dispatch.ErrNotFound
	}
	return nil
}

// IncrementStat bumps one engagement counter. Stat names come from the
// tracking service ("opened", "clicked") and map onto stat_* columns.
func (r *CampaignRepo) IncrementStat(ctx context.Context, campaignID, stat string, delta int) error {
	var column string
	switch stat {
	case "opened":
		column = "stat_opened"
	case "clicked":
		column = "stat_clicked"
	case "sent":
		column = "stat_sent"
	case "failed":
		column = "stat_failed"
	default:
		return fmt.Errorf("unknown campaign stat %q", stat)
	}
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE campaigns SET %s = %s + $1, updated_at = NOW() WHERE id = $2", column, column),
		delta, campaignID)
	if err != nil {
		return fmt.Errorf("increment %s: %w", stat, err)
	}
	return nil
}
