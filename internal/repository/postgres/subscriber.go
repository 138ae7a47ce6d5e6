package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/mailroom/internal/domain"
)

// SubscriberRepo implements dispatch.SubscriberStore against PostgreSQL.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

const subscriberColumns = `
	id, email, COALESCE(first_name,''), COALESCE(last_name,''), status,
	subscribed_at, unsubscribed_at, created_at, updated_at`

func (r *SubscriberRepo) ListActive(ctx context.Context) ([]domain.Subscriber, error) {
	return r.ListByStatus(ctx, domain.SubscriberActive)
}

func (r *SubscriberRepo) ListByStatus(ctx context.Context, status domain.SubscriberStatus) ([]domain.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE status = $1 ORDER BY email`, status)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscriber
	for rows.Next() {
		var s domain.Subscriber
		if err := rows.Scan(
			&s.ID, &s.Email, &s.FirstName, &s.LastName, &s.Status,
			&s.SubscribedAt, &s.UnsubscribedAt, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SubscriberRepo) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	s := &domain.Subscriber{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE LOWER(email) = LOWER($1)`, email,
	).Scan(
		&s.ID, &s.Email, &s.FirstName, &s.LastName, &s.Status,
		&s.SubscribedAt, &s.UnsubscribedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return s, nil
}

func (r *SubscriberRepo) Upsert(ctx context.Context, s *domain.Subscriber) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscribers
			(id, email, first_name, last_name, status, subscribed_at, unsubscribed_at,
			 created_at, updated_at)
		VALUES ($1, LOWER($2), $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			status = EXCLUDED.status,
			unsubscribed_at = EXCLUDED.unsubscribed_at,
			updated_at = NOW()
	`, s.ID, s.Email, s.FirstName, s.LastName, s.Status, s.SubscribedAt, s.UnsubscribedAt)
	if err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}
	return nil
}
