package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/mailroom/internal/domain"
)

// PreferenceRepo implements notify.PreferenceStore against PostgreSQL.
// Categories live in a single JSONB column keyed by category name.
type PreferenceRepo struct{ db *sql.DB }

// NewPreferenceRepo creates a Postgres-backed preference repository.
func NewPreferenceRepo(db *sql.DB) *PreferenceRepo { return &PreferenceRepo{db: db} }

func (r *PreferenceRepo) Get(ctx context.Context, recipient string) (*domain.Preferences, error) {
	p := &domain.Preferences{}
	var categories []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT recipient, categories, updated_at
		FROM notification_preferences
		WHERE recipient = $1
	`, recipient).Scan(&p.Recipient, &categories, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &p.Categories); err != nil {
			return nil, fmt.Errorf("decode preference categories: %w", err)
		}
	}
	return p, nil
}

// Set stores the full category map for a recipient.
func (r *PreferenceRepo) Set(ctx context.Context, p *domain.Preferences) error {
	categories, err := json.Marshal(p.Categories)
	if err != nil {
		return fmt.Errorf("marshal preference categories: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (recipient, categories, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (recipient) DO UPDATE SET
			categories = EXCLUDED.categories,
			updated_at = NOW()
	`, p.Recipient, categories)
	if err != nil {
		return fmt.Errorf("set preferences: %w", err)
	}
	return nil
}
