package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/logger"
)

// Recipient is one resolved send target.
type Recipient struct {
	Email string
	Name  string
	ID    *string // subscriber id when known
}

// accountSegments are segment names that select from the external
// account-status store rather than the subscriber list.
var accountSegments = map[string]bool{
	"trialing":  true,
	"past_due":  true,
	"cancelled": true,
}

// resolveRecipients expands a campaign's recipient spec into concrete
// addresses. Account segments additionally import the matched accounts as
// subscribers; the import is idempotent so repeated sends don't multiply
// records.
func (d *Dispatcher) resolveRecipients(ctx context.Context, c *domain.Campaign) ([]Recipient, error) {
	switch c.Recipients.Type {
	case domain.RecipientAll:
		subs, err := d.subscribers.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		return fromSubscribers(subs), nil

	case domain.RecipientSegment:
		return d.resolveSegment(ctx, c.Recipients.Segment)

	case domain.RecipientList:
		return fromAddressList(c.Recipients.Emails), nil

	default:
		return nil, fmt.Errorf("unknown recipient type %q", c.Recipients.Type)
	}
}

func (d *Dispatcher) resolveSegment(ctx context.Context, segment string) ([]Recipient, error) {
	if accountSegments[segment] {
		return d.importAccountSegment(ctx, segment)
	}

	status := domain.SubscriberStatus(segment)
	switch status {
	case domain.SubscriberActive, domain.SubscriberUnsubscribed,
		domain.SubscriberBounced, domain.SubscriberComplained:
	default:
		return nil, fmt.Errorf("unknown segment %q", segment)
	}

	subs, err := d.subscribers.ListByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	return fromSubscribers(subs), nil
}

// importAccountSegment resolves a segment against the external account store
// and up-serts a subscriber per account: created active when absent,
// reactivated when previously unsubscribed. Bounded to the resolution step.
func (d *Dispatcher) importAccountSegment(ctx context.Context, segment string) ([]Recipient, error) {
	if d.accounts == nil {
		logger.Warn("account segment requested but no account store configured", "segment", segment)
		return nil, nil
	}

	accounts, err := d.accounts.ListByStatus(ctx, segment)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	var out []Recipient
	for _, a := range accounts {
		email := strings.TrimSpace(strings.ToLower(a.Email))
		if email == "" {
			continue
		}

		sub, err := d.subscribers.GetByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("lookup subscriber %s: %w", logger.RedactEmail(email), err)
		}

		switch {
		case sub == nil:
			sub = &domain.Subscriber{
				ID:        uuid.New().String(),
				Email:     email,
				FirstName: a.Name,
				Status:    domain.SubscriberActive,
			}
			if err := d.subscribers.Upsert(ctx, sub); err != nil {
				return nil, fmt.Errorf("import subscriber: %w", err)
			}
		case sub.Status == domain.SubscriberUnsubscribed:
			sub.Status = domain.SubscriberActive
			sub.UnsubscribedAt = nil
			if err := d.subscribers.Upsert(ctx, sub); err != nil {
				return nil, fmt.Errorf("reactivate subscriber: %w", err)
			}
		}

		id := sub.ID
		out = append(out, Recipient{Email: email, Name: sub.FirstName, ID: &id})
	}
	return out, nil
}

func fromSubscribers(subs []domain.Subscriber) []Recipient {
	out := make([]Recipient, 0, len(subs))
	for _, s := range subs {
		id := s.ID
		out = append(out, Recipient{Email: s.Email, Name: s.FirstName, ID: &id})
	}
	return out
}

func fromAddressList(emails []string) []Recipient {
	seen := make(map[string]bool, len(emails))
	out := make([]Recipient, 0, len(emails))
	for _, e := range emails {
		e = strings.TrimSpace(strings.ToLower(e))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, Recipient{Email: e})
	}
	return out
}
