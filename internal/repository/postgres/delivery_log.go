// Package postgres implements the persistence interfaces against PostgreSQL
// using database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/mailroom/internal/domain"
)

// DeliveryLogRepo persists delivery log rows.
type DeliveryLogRepo struct{ db *sql.DB }

// NewDeliveryLogRepo creates a Postgres-backed delivery log repository.
func NewDeliveryLogRepo(db *sql.DB) *DeliveryLogRepo { return &DeliveryLogRepo{db: db} }

const deliveryLogColumns = `
	id, campaign_id, recipient_id, email, subject, status,
	open_token, click_token, COALESCE(provider_id,''), COALESCE(provider_response,''),
	COALESCE(error,''), COALESCE(resend_history,'[]'),
	created_at, sent_at, opened_at, clicked_at, updated_at`

func (r *DeliveryLogRepo) Create(ctx context.Context, l *domain.DeliveryLog) error {
	history, err := json.Marshal(l.ResendHistory)
	if err != nil {
		return fmt.Errorf("marshal resend history: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO delivery_logs
			(id, campaign_id, recipient_id, email, subject, status,
			 open_token, click_token, provider_id, provider_response,
			 error, resend_history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	`, l.ID, l.CampaignID, l.RecipientID, l.Email, l.Subject, l.Status,
		l.OpenToken, l.ClickToken, nullable(l.ProviderID), nullable(l.ProviderResponse),
		nullable(l.Error), history)
	if err != nil {
		return fmt.Errorf("create delivery log: %w", err)
	}
	return nil
}

func (r *DeliveryLogRepo) Update(ctx context.Context, l *domain.DeliveryLog) error {
	history, err := json.Marshal(l.ResendHistory)
	if err != nil {
		return fmt.Errorf("marshal resend history: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE delivery_logs SET
			status = $1, provider_id = $2, provider_response = $3, error = $4,
			resend_history = $5, sent_at = $6, opened_at = $7, clicked_at = $8,
			updated_at = NOW()
		WHERE id = $9
	`, l.Status, nullable(l.ProviderID), nullable(l.ProviderResponse), nullable(l.Error),
		history, l.SentAt, l.OpenedAt, l.ClickedAt, l.ID)
	if err != nil {
		return fmt.Errorf("update delivery log: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("update delivery log: no row with id %s", l.ID)
	}
	return nil
}

func (r *DeliveryLogRepo) GetByOpenToken(ctx context.Context, token string) (*domain.DeliveryLog, error) {
	return r.getByToken(ctx, "open_token", token)
}

func (r *DeliveryLogRepo) GetByClickToken(ctx context.Context, token string) (*domain.DeliveryLog, error) {
	return r.getByToken(ctx, "click_token", token)
}

func (r *DeliveryLogRepo) getByToken(ctx context.Context, column, token string) (*domain.DeliveryLog, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deliveryLogColumns+` FROM delivery_logs WHERE `+column+` = $1`, token)
	l, err := scanDeliveryLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery log by %s: %w", column, err)
	}
	return l, nil
}

func (r *DeliveryLogRepo) ListByCampaign(ctx context.Context, campaignID string) ([]domain.DeliveryLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deliveryLogColumns+` FROM delivery_logs WHERE campaign_id = $1 ORDER BY created_at`,
		campaignID)
	if err != nil {
		return nil, fmt.Errorf("list delivery logs: %w", err)
	}
	defer rows.Close()
	return collectDeliveryLogs(rows)
}

func (r *DeliveryLogRepo) ListResendable(ctx context.Context, campaignID string, maxAge time.Duration, maxAttempts int) ([]domain.DeliveryLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+deliveryLogColumns+`
		FROM delivery_logs
		WHERE campaign_id = $1
		  AND status IN ('failed','pending','bounced')
		  AND created_at > $2
		  AND COALESCE(jsonb_array_length(resend_history), 0) < $3
		ORDER BY created_at
	`, campaignID, time.Now().Add(-maxAge), maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("list resendable logs: %w", err)
	}
	defer rows.Close()
	return collectDeliveryLogs(rows)
}

func (r *DeliveryLogRepo) AppendResendAttempt(ctx context.Context, logID string, attempt domain.ResendAttempt) error {
	entry, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal resend attempt: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE delivery_logs SET
			resend_history = COALESCE(resend_history, '[]'::jsonb) || $1::jsonb,
			updated_at = NOW()
		WHERE id = $2
	`, entry, logID)
	if err != nil {
		return fmt.Errorf("append resend attempt: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("append resend attempt: no row with id %s", logID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDeliveryLog(row rowScanner) (*domain.DeliveryLog, error) {
	l := &domain.DeliveryLog{}
	var history []byte
	if err := row.Scan(
		&l.ID, &l.CampaignID, &l.RecipientID, &l.Email, &l.Subject, &l.Status,
		&l.OpenToken, &l.ClickToken, &l.ProviderID, &l.ProviderResponse,
		&l.Error, &history,
		&l.CreatedAt, &l.SentAt, &l.OpenedAt, &l.ClickedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &l.ResendHistory); err != nil {
			return nil, fmt.Errorf("decode resend history: %w", err)
		}
	}
	return l, nil
}

func collectDeliveryLogs(rows *sql.Rows) ([]domain.DeliveryLog, error) {
	var out []domain.DeliveryLog
	for rows.Next() {
		l, err := scanDeliveryLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery log: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// nullable maps "" to NULL so empty optional columns stay NULL in the table.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
