// Package notify is the single entry point for event-triggered notifications.
// Every trigger passes a business condition, a user-preference check, and an
// anti-duplication throttle before anything is sent, and every outcome —
// including skipped and throttled ones — leaves an audit row.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailroom/internal/content"
	"github.com/ignite/mailroom/internal/delivery"
	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/logger"
	"github.com/ignite/mailroom/internal/throttle"
)

// Validation errors surfaced synchronously to the caller.
var (
	ErrUnknownEvent = errors.New("unknown event type")
	ErrNoRecipient  = errors.New("missing recipient")
)

// Sender is the single-message send operation the gate delegates to.
type Sender interface {
	Send(ctx context.Context, in delivery.SendInput) (*domain.DeliveryLog, error)
}

// AuditStore persists notification audit rows and serves the durable
// throttle lookback.
type AuditStore interface {
	Create(ctx context.Context, a *domain.NotificationAudit) error
	// LastSentWithKey returns the most recent SENT audit time carrying the
	// given throttle key, and whether one exists.
	LastSentWithKey(ctx context.Context, key string) (time.Time, bool, error)
	// SetThrottleKey backfills key onto the newest SENT row matching
	// recipient and event type.
	SetThrottleKey(ctx context.Context, recipient, eventType, key string) error
	List(ctx context.Context, f AuditFilter) ([]domain.NotificationAudit, int, error)
}

// AuditFilter controls the audit query.
type AuditFilter struct {
	Recipient string
	EventType string
	Status    string
	Limit     int
	Offset    int
}

// PreferenceStore looks up recipient notification preferences.
type PreferenceStore interface {
	// Get returns nil, nil when the recipient has no stored preferences.
	Get(ctx context.Context, recipient string) (*domain.Preferences, error)
}

// Event is one notification trigger.
type Event struct {
	Type          string                 `json:"type"`
	Recipient     string                 `json:"recipient"`
	RecipientName string                 `json:"recipient_name,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	// Force bypasses the condition, preference, and throttle gates.
	Force bool `json:"force,omitempty"`
}

// Result reports what the gate decided.
type Result struct {
	Sent   bool   `json:"sent"`
	Reason string `json:"reason,omitempty"`
}

// Gate applies the notification gating pipeline.
type Gate struct {
	rules        Rules
	sender       Sender
	audits       AuditStore
	prefs        PreferenceStore
	cache        throttle.Cache
	personalizer *content.Personalizer

	fromName  string
	fromEmail string
	now       func() time.Time
}

// NewGate creates a notification gate.
func NewGate(rules Rules, sender Sender, audits AuditStore, prefs PreferenceStore, cache throttle.Cache, fromName, fromEmail string) *Gate {
	return &Gate{
		rules:        rules,
		sender:       sender,
		audits:       audits,
		prefs:        prefs,
		cache:        cache,
		personalizer: content.NewPersonalizer(),
		fromName:     fromName,
		fromEmail:    fromEmail,
		now:          time.Now,
	}
}

// SetClock overrides the gate's time source. Tests use this together with a
// clock-injected throttle cache.
func (g *Gate) SetClock(now func() time.Time) {
	g.now = now
}

// Trigger runs one event through the gate. Unknown event types and missing
// recipients fail fast; condition, preference, and throttle gates each
// short-circuit with their reason (and an audit row for the latter two and
// for condition skips). Only a fully passed event reaches the sender.
func (g *Gate) Trigger(ctx context.Context, ev Event) (*Result, error) {
	rule, ok := g.rules[ev.Type]
	if !ok {
		return &Result{Reason: domain.ReasonUnknownEvent}, fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Type)
	}
	if ev.Recipient == "" {
		return &Result{Reason: domain.ReasonNoRecipient}, ErrNoRecipient
	}

	var throttleKey string
	if rule.ThrottleKey != nil {
		throttleKey = rule.ThrottleKey(ev.Recipient, ev.Payload)
	}

	if !ev.Force {
		if rule.Condition != nil && !rule.Condition(ev.Payload) {
			g.audit(ctx, ev, rule, domain.AuditSkipped, domain.ReasonConditionNotMet, throttleKey)
			return &Result{Reason: domain.ReasonConditionNotMet}, nil
		}

		if ok, err := g.preferenceAllows(ctx, ev.Recipient, rule.PreferenceCategory); err != nil {
			return nil, err
		} else if !ok {
			g.audit(ctx, ev, rule, domain.AuditSkipped, domain.ReasonUserPrefDisabled, throttleKey)
			return &Result{Reason: domain.ReasonUserPrefDisabled}, nil
		}

		if throttleKey != "" {
			throttled, err := g.isThrottled(ctx, throttleKey, rule.ThrottleWindow)
			if err != nil {
				return nil, err
			}
			if throttled {
				g.audit(ctx, ev, rule, domain.AuditThrottled, domain.ReasonThrottled, throttleKey)
				return &Result{Reason: domain.ReasonThrottled}, nil
			}
		}
	}

	subject := g.personalizer.Render(rule.Subject, ev.Payload)
	body := g.personalizer.Render(rule.Body, ev.Payload)

	_, err := g.sender.Send(ctx, delivery.SendInput{
		To:            ev.Recipient,
		Subject:       subject,
		HTMLContent:   content.TextToHTML(body),
		PlainContent:  body,
		FromName:      g.fromName,
		FromEmail:     g.fromEmail,
		RecipientName: ev.RecipientName,
	})
	if err != nil {
		g.audit(ctx, ev, rule, domain.AuditFailed, "", throttleKey)
		return &Result{Reason: "SEND_FAILED"}, fmt.Errorf("notification send: %w", err)
	}

	g.audit(ctx, ev, rule, domain.AuditSent, "", "")

	if throttleKey != "" {
		if err := g.cache.MarkSent(ctx, throttleKey, g.now()); err != nil {
			logger.Warn("throttle cache update failed", "key", throttleKey, "error", err)
		}
		// Best effort: stamp the key onto the SENT audit row so the durable
		// lookback can find it after a restart.
		if err := g.audits.SetThrottleKey(ctx, ev.Recipient, ev.Type, throttleKey); err != nil {
			logger.Warn("throttle key backfill failed", "key", throttleKey, "error", err)
		}
	}

	logger.Info("notification sent", "event", ev.Type, "recipient", ev.Recipient)
	return &Result{Sent: true}, nil
}

// preferenceAllows checks the recipient's stored preferences for the rule's
// category. Absent preferences default to enabled; the security category is
// always enabled.
func (g *Gate) preferenceAllows(ctx context.Context, recipient, category string) (bool, error) {
	if category == "" || category == domain.PreferenceSecurity {
		return true, nil
	}
	prefs, err := g.prefs.Get(ctx, recipient)
	if err != nil {
		return false, fmt.Errorf("load preferences: %w", err)
	}
	return prefs.CategoryEnabled(category), nil
}

// isThrottled consults the in-memory cache first, falling back to the
// durable audit lookback on a miss. A durable hit warms the cache.
func (g *Gate) isThrottled(ctx context.Context, key string, window time.Duration) (bool, error) {
	now := g.now()

	if last, ok, err := g.cache.Last(ctx, key); err == nil && ok {
		if now.Sub(last) < window {
			return true, nil
		}
		return false, nil
	} else if err != nil {
		logger.Warn("throttle cache read failed, using durable lookback", "key", key, "error", err)
	}

	last, ok, err := g.audits.LastSentWithKey(ctx, key)
	if err != nil {
		return false, fmt.Errorf("throttle lookback: %w", err)
	}
	if !ok {
		return false, nil
	}
	if now.Sub(last) < window {
		if cerr := g.cache.MarkSent(ctx, key, last); cerr != nil {
			logger.Debug("throttle cache warm failed", "key", key, "error", cerr)
		}
		return true, nil
	}
	return false, nil
}

// audit writes one outcome row. Audit failures are logged, never surfaced:
// a broken audit trail must not turn into a user-facing error.
func (g *Gate) audit(ctx context.Context, ev Event, rule Rule, status domain.AuditStatus, reason, throttleKey string) {
	a := &domain.NotificationAudit{
		ID:          uuid.New().String(),
		EventType:   ev.Type,
		Recipient:   ev.Recipient,
		Status:      status,
		Reason:      reason,
		TemplateID:  rule.Template,
		ThrottleKey: throttleKey,
		CreatedAt:   g.now(),
	}
	if err := g.audits.Create(ctx, a); err != nil {
		logger.Error("audit write failed", "event", ev.Type, "status", string(status), "error", err)
	}
}

// Audit exposes the filterable, paginated audit query.
func (g *Gate) Audit(ctx context.Context, f AuditFilter) ([]domain.NotificationAudit, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	return g.audits.List(ctx, f)
}
