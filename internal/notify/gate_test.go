package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ignite/mailroom/internal/delivery"
	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/notify"
	"github.com/ignite/mailroom/internal/throttle"
)

type memAudits struct {
	mu   sync.Mutex
	rows []domain.NotificationAudit
}

func (m *memAudits) Create(_ context.Context, a *domain.NotificationAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *a)
	return nil
}

func (m *memAudits) LastSentWithKey(_ context.Context, key string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last time.Time
	found := false
	for _, r := range m.rows {
		if r.Status == domain.AuditSent && r.ThrottleKey == key && r.CreatedAt.After(last) {
			last = r.CreatedAt
			found = true
		}
	}
	return last, found, nil
}

func (m *memAudits) SetThrottleKey(_ context.Context, recipient, eventType, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		r := &m.rows[i]
		if r.Status == domain.AuditSent && r.Recipient == recipient && r.EventType == eventType {
			r.ThrottleKey = key
			return nil
		}
	}
	return nil
}

func (m *memAudits) List(_ context.Context, f notify.AuditFilter) ([]domain.NotificationAudit, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.NotificationAudit
	for _, r := range m.rows {
		if f.Recipient != "" && r.Recipient != f.Recipient {
			continue
		}
		if f.EventType != "" && r.EventType != f.EventType {
			continue
		}
		if f.Status != "" && string(r.Status) != f.Status {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *memAudits) byStatus(status domain.AuditStatus) []domain.NotificationAudit {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.NotificationAudit
	for _, r := range m.rows {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

type memPrefs struct {
	byRecipient map[string]*domain.Preferences
}

func (m *memPrefs) Get(_ context.Context, recipient string) (*domain.Preferences, error) {
	if m.byRecipient == nil {
		return nil, nil
	}
	return m.byRecipient[recipient], nil
}

type captureSender struct {
	mu   sync.Mutex
	sent []delivery.SendInput
	fail error
}

func (s *captureSender) Send(_ context.Context, in delivery.SendInput) (*domain.DeliveryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	s.sent = append(s.sent, in)
	return &domain.DeliveryLog{ID: "log-1", Status: domain.DeliverySent}, nil
}

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type gateFixture struct {
	gate   *notify.Gate
	sender *captureSender
	audits *memAudits
	prefs  *memPrefs
	clock  *fakeClock
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	sender := &captureSender{}
	audits := &memAudits{}
	prefs := &memPrefs{}
	cache := throttle.NewMemoryCache(clock.Now)
	gate := notify.NewGate(notify.DefaultRules(), sender, audits, prefs, cache, "Mailroom", "alerts@mailroom.test")
	gate.SetClock(clock.Now)
	return &gateFixture{gate: gate, sender: sender, audits: audits, prefs: prefs, clock: clock}
}

func budgetEvent(recipient string) notify.Event {
	return notify.Event{
		Type:      "budget.exceeded",
		Recipient: recipient,
		Payload:   map[string]interface{}{"percent_used": 120.0, "budget_name": "Q2 Ads"},
	}
}

func TestTriggerUnknownEvent(t *testing.T) {
	f := newGateFixture(t)

	res, err := f.gate.Trigger(context.Background(), notify.Event{Type: "nope", Recipient: "a@b.test"})
	if !errors.Is(err, notify.ErrUnknownEvent) {
		t.Fatalf("err = %v, want ErrUnknownEvent", err)
	}
	if res.Reason != domain.ReasonUnknownEvent {
		t.Errorf("reason = %q, want %q", res.Reason, domain.ReasonUnknownEvent)
	}
	if f.sender.count() != 0 {
		t.Error("nothing should have been sent")
	}
}

func TestTriggerMissingRecipient(t *testing.T) {
	f := newGateFixture(t)

	_, err := f.gate.Trigger(context.Background(), notify.Event{Type: "budget.exceeded"})
	if !errors.Is(err, notify.ErrNoRecipient) {
		t.Fatalf("err = %v, want ErrNoRecipient", err)
	}
}

func TestTriggerConditionNotMet(t *testing.T) {
	f := newGateFixture(t)

	ev := budgetEvent("a@b.test")
	ev.Payload["percent_used"] = 80.0

	res, err := f.gate.Trigger(context.Background(), ev)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if res.Sent || res.Reason != domain.ReasonConditionNotMet {
		t.Fatalf("res = %+v, want skipped with CONDITION_NOT_MET", res)
	}
	skipped := f.audits.byStatus(domain.AuditSkipped)
	if len(skipped) != 1 || skipped[0].Reason != domain.ReasonConditionNotMet {
		t.Errorf("skipped audits = %+v, want one CONDITION_NOT_MET row", skipped)
	}
}

func TestTriggerPreferenceDisabled(t *testing.T) {
	f := newGateFixture(t)
	f.prefs.byRecipient = map[string]*domain.Preferences{
		"a@b.test": {Recipient: "a@b.test", Categories: map[string]bool{"billing": false}},
	}

	res, err := f.gate.Trigger(context.Background(), budgetEvent("a@b.test"))
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if res.Sent || res.Reason != domain.ReasonUserPrefDisabled {
		t.Fatalf("res = %+v, want skipped with USER_PREF_DISABLED", res)
	}
	if f.sender.count() != 0 {
		t.Error("disabled category must not send")
	}
}

func TestTriggerSecurityCategoryAlwaysSends(t *testing.T) {
	f := newGateFixture(t)
	f.prefs.byRecipient = map[string]*domain.Preferences{
		"a@b.test": {Recipient: "a@b.test", Categories: map[string]bool{"security": false}},
	}

	res, err := f.gate.Trigger(context.Background(), notify.Event{
		Type:      "password.changed",
		Recipient: "a@b.test",
		Payload:   map[string]interface{}{"changed_at": "2025-06-01"},
	})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if !res.Sent {
		t.Fatalf("security notification must send despite opt-out, got %+v", res)
	}
}

func TestTriggerThrottleWindow(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	// First trigger sends.
	res, err := f.gate.Trigger(ctx, budgetEvent("a@b.test"))
	if err != nil {
		t.Fatalf("first Trigger: %v", err)
	}
	if !res.Sent {
		t.Fatalf("first trigger should send, got %+v", res)
	}

	// Second trigger inside the 24h window is throttled.
	f.clock.Advance(1 * time.Hour)
	res, err = f.gate.Trigger(ctx, budgetEvent("a@b.test"))
	if err != nil {
		t.Fatalf("second Trigger: %v", err)
	}
	if res.Sent || res.Reason != domain.ReasonThrottled {
		t.Fatalf("second trigger = %+v, want THROTTLED", res)
	}

	// After the window elapses a third trigger sends again.
	f.clock.Advance(24 * time.Hour)
	res, err = f.gate.Trigger(ctx, budgetEvent("a@b.test"))
	if err != nil {
		t.Fatalf("third Trigger: %v", err)
	}
	if !res.Sent {
		t.Fatalf("third trigger after window = %+v, want sent", res)
	}

	if got := f.sender.count(); got != 2 {
		t.Errorf("sends = %d, want 2", got)
	}
	if got := len(f.audits.byStatus(domain.AuditThrottled)); got != 1 {
		t.Errorf("throttled audits = %d, want 1", got)
	}
}

func TestTriggerThrottleDurableFallback(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	if _, err := f.gate.Trigger(ctx, budgetEvent("a@b.test")); err != nil {
		t.Fatalf("first Trigger: %v", err)
	}

	// Simulate a restart: fresh cache, same audit store.
	fresh := throttle.NewMemoryCache(f.clock.Now)
	gate := notify.NewGate(notify.DefaultRules(), f.sender, f.audits, f.prefs, fresh, "Mailroom", "alerts@mailroom.test")
	gate.SetClock(f.clock.Now)

	f.clock.Advance(1 * time.Hour)
	res, err := gate.Trigger(ctx, budgetEvent("a@b.test"))
	if err != nil {
		t.Fatalf("Trigger after restart: %v", err)
	}
	if res.Sent || res.Reason != domain.ReasonThrottled {
		t.Fatalf("durable lookback should still throttle, got %+v", res)
	}
}

func TestTriggerForceBypassesGates(t *testing.T) {
	f := newGateFixture(t)
	f.prefs.byRecipient = map[string]*domain.Preferences{
		"a@b.test": {Recipient: "a@b.test", Categories: map[string]bool{"billing": false}},
	}

	ev := budgetEvent("a@b.test")
	ev.Force = true
	ev.Payload["percent_used"] = 10.0 // condition would fail

	res, err := f.gate.Trigger(context.Background(), ev)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if !res.Sent {
		t.Fatalf("forced trigger should send, got %+v", res)
	}
}

func TestTriggerSendFailureAudited(t *testing.T) {
	f := newGateFixture(t)
	f.sender.fail = errors.New("provider down")

	res, err := f.gate.Trigger(context.Background(), budgetEvent("a@b.test"))
	if err == nil {
		t.Fatal("expected error from failed send")
	}
	if res.Sent {
		t.Errorf("res = %+v, want not sent", res)
	}
	if got := len(f.audits.byStatus(domain.AuditFailed)); got != 1 {
		t.Errorf("failed audits = %d, want 1", got)
	}
}

func TestTriggerRendersPayload(t *testing.T) {
	f := newGateFixture(t)

	if _, err := f.gate.Trigger(context.Background(), budgetEvent("a@b.test")); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if f.sender.count() != 1 {
		t.Fatal("expected one send")
	}
	in := f.sender.sent[0]
	if in.To != "a@b.test" {
		t.Errorf("To = %q", in.To)
	}
	if in.Subject == "" || in.PlainContent == "" {
		t.Error("rendered subject and body must be non-empty")
	}
}

func TestAuditFilter(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	if _, err := f.gate.Trigger(ctx, budgetEvent("a@b.test")); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if _, err := f.gate.Trigger(ctx, budgetEvent("a@b.test")); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	rows, total, err := f.gate.Audit(ctx, notify.AuditFilter{Recipient: "a@b.test", Status: "THROTTLED"})
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("got %d rows (total %d), want 1", len(rows), total)
	}
	if rows[0].EventType != "budget.exceeded" {
		t.Errorf("event type = %q", rows[0].EventType)
	}
}
