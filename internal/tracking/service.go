// Package tracking issues per-message open/click tokens and redeems them
// idempotently, updating delivery logs and campaign-level counters.
package tracking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/logger"
)

// LogStore is the delivery-log access the token service needs.
type LogStore interface {
	// GetByOpenToken returns nil, nil when the token is unknown.
	GetByOpenToken(ctx context.Context, token string) (*domain.DeliveryLog, error)
	// GetByClickToken returns nil, nil when the token is unknown.
	GetByClickToken(ctx context.Context, token string) (*domain.DeliveryLog, error)
	Update(ctx context.Context, log *domain.DeliveryLog) error
}

// CampaignCounters bumps campaign aggregate stats.
type CampaignCounters interface {
	IncrementStat(ctx context.Context, campaignID, stat string, delta int) error
}

// Service redeems tracking tokens. Redemption never regresses a delivery
// log's status: a token redeemed after its stage has passed is a no-op.
type Service struct {
	logs      LogStore
	campaigns CampaignCounters
	now       func() time.Time
}

// NewService creates a tracking token service.
func NewService(logs LogStore, campaigns CampaignCounters) *Service {
	return &Service{logs: logs, campaigns: campaigns, now: time.Now}
}

// NewTokenPair issues unique opaque open and click tokens for one message.
func NewTokenPair() (openToken, clickToken string) {
	open := strings.ReplaceAll(uuid.New().String(), "-", "")
	click := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "o" + open, "c" + click
}

// RedeemOpen marks the matching delivery log opened and bumps the campaign's
// opened counter. Unknown tokens and already-opened logs are no-ops.
func (s *Service) RedeemOpen(ctx context.Context, token string) error {
	log, err := s.logs.GetByOpenToken(ctx, token)
	if err != nil {
		return fmt.Errorf("lookup open token: %w", err)
	}
	if log == nil {
		return nil
	}
	if !log.Status.CanAdvanceTo(domain.DeliveryOpened) {
		return nil
	}

	now := s.now()
	log.Status = domain.DeliveryOpened
	log.OpenedAt = &now
	if err := s.logs.Update(ctx, log); err != nil {
		return fmt.Errorf("mark opened: %w", err)
	}

	if log.CampaignID != nil {
		if err := s.campaigns.IncrementStat(ctx, *log.CampaignID, "opened", 1); err != nil {
			logger.Warn("open counter update failed", "campaign", *log.CampaignID, "error", err)
		}
	}
	logger.Debug("open redeemed", "email", log.Email, "log", log.ID)
	return nil
}

// RedeemClick marks the matching delivery log clicked and returns the
// destination URL the caller should redirect to. Unknown tokens and logs
// already at or past "clicked" mutate nothing; the destination (or "#" when
// absent) is returned regardless so the redirect always works.
func (s *Service) RedeemClick(ctx context.Context, token, destination string) (string, error) {
	target := destination
	if strings.TrimSpace(target) == "" {
		target = "#"
	}

	log, err := s.logs.GetByClickToken(ctx, token)
	if err != nil {
		return target, fmt.Errorf("lookup click token: %w", err)
	}
	if log == nil {
		return target, nil
	}
	if !log.Status.CanAdvanceTo(domain.DeliveryClicked) {
		return target, nil
	}

	now := s.now()
	log.Status = domain.DeliveryClicked
	log.ClickedAt = &now
	if err := s.logs.Update(ctx, log); err != nil {
		return target, fmt.Errorf("mark clicked: %w", err)
	}

	if log.CampaignID != nil {
		if err := s.campaigns.IncrementStat(ctx, *log.CampaignID, "clicked", 1); err != nil {
			logger.Warn("click counter update failed", "campaign", *log.CampaignID, "error", err)
		}
	}
	logger.Debug("click redeemed", "email", log.Email, "log", log.ID, "url", target)
	return target, nil
}
