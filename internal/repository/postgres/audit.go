package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/notify"
)

// AuditRepo implements notify.AuditStore against PostgreSQL.
type AuditRepo struct{ db *sql.DB }

// NewAuditRepo creates a Postgres-backed notification audit repository.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

func (r *AuditRepo) Create(ctx context.Context, a *domain.NotificationAudit) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_audits
			(id, event_type, recipient, status, reason, template_id, throttle_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.EventType, a.Recipient, a.Status,
		nullable(a.Reason), nullable(a.TemplateID), nullable(a.ThrottleKey), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create audit: %w", err)
	}
	return nil
}

func (r *AuditRepo) LastSentWithKey(ctx context.Context, key string) (time.Time, bool, error) {
	var last time.Time
	err := r.db.QueryRowContext(ctx, `
		SELECT created_at FROM notification_audits
		WHERE throttle_key = $1 AND status = 'SENT'
		ORDER BY created_at DESC
		LIMIT 1
	`, key).Scan(&last)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("throttle lookback: %w", err)
	}
	return last, true, nil
}

func (r *AuditRepo) SetThrottleKey(ctx context.Context, recipient, eventType, key string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notification_audits SET throttle_key = $1
		WHERE id = (
			SELECT id FROM notification_audits
			WHERE recipient = $2 AND event_type = $3 AND status = 'SENT'
			ORDER BY created_at DESC
			LIMIT 1
		)
	`, key, recipient, eventType)
	if err != nil {
		return fmt.Errorf("set throttle key: %w", err)
	}
	return nil
}

func (r *AuditRepo) List(ctx context.Context, f notify.AuditFilter) ([]domain.NotificationAudit, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1
	add := func(clause string, val interface{}) {
		where += fmt.Sprintf(" AND %s = $%d", clause, idx)
		args = append(args, val)
		idx++
	}
	if f.Recipient != "" {
		add("recipient", f.Recipient)
	}
	if f.EventType != "" {
		add("event_type", f.EventType)
	}
	if f.Status != "" {
		add("status", f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notification_audits"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audits: %w", err)
	}

	q := `
		SELECT id, event_type, recipient, status, COALESCE(reason,''),
		       COALESCE(template_id,''), COALESCE(throttle_key,''), created_at
		FROM notification_audits` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close()

	var out []domain.NotificationAudit
	for rows.Next() {
		var a domain.NotificationAudit
		if err := rows.Scan(
			&a.ID, &a.EventType, &a.Recipient, &a.Status, &a.Reason,
			&a.TemplateID, &a.ThrottleKey, &a.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan audit: %w", err)
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}
