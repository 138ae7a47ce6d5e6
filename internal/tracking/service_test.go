package tracking_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/tracking"
)

// memLogs is an in-memory LogStore keyed by token.
type memLogs struct {
	mu   sync.Mutex
	logs map[string]*domain.DeliveryLog // keyed by log id
}

func newMemLogs() *memLogs {
	return &memLogs{logs: make(map[string]*domain.DeliveryLog)}
}

func (m *memLogs) add(l *domain.DeliveryLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.logs[l.ID] = &cp
}

func (m *memLogs) get(id string) *domain.DeliveryLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logs[id]
}

func (m *memLogs) GetByOpenToken(_ context.Context, token string) (*domain.DeliveryLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.OpenToken == token {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memLogs) GetByClickToken(_ context.Context, token string) (*domain.DeliveryLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.ClickToken == token {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memLogs) Update(_ context.Context, log *domain.DeliveryLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *log
	m.logs[log.ID] = &cp
	return nil
}

// memCounters records IncrementStat calls.
type memCounters struct {
	mu    sync.Mutex
	stats map[string]int // "campaignID/stat" → total
}

func newMemCounters() *memCounters { return &memCounters{stats: make(map[string]int)} }

func (m *memCounters) IncrementStat(_ context.Context, campaignID, stat string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[campaignID+"/"+stat] += delta
	return nil
}

func seedLog(logs *memLogs, status domain.DeliveryStatus) *domain.DeliveryLog {
	open, click := tracking.NewTokenPair()
	campaignID := "camp-1"
	l := &domain.DeliveryLog{
		ID:         "log-1",
		CampaignID: &campaignID,
		Email:      "user@example.com",
		Status:     status,
		OpenToken:  open,
		ClickToken: click,
	}
	logs.add(l)
	return l
}

func TestNewTokenPairUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		open, click := tracking.NewTokenPair()
		if open == click || seen[open] || seen[click] {
			t.Fatal("token collision")
		}
		seen[open] = true
		seen[click] = true
	}
}

func TestRedeemOpenIdempotent(t *testing.T) {
	logs := newMemLogs()
	counters := newMemCounters()
	l := seedLog(logs, domain.DeliverySent)
	svc := tracking.NewService(logs, counters)

	if err := svc.RedeemOpen(context.Background(), l.OpenToken); err != nil {
		t.Fatalf("first redemption: %v", err)
	}
	got := logs.get("log-1")
	if got.Status != domain.DeliveryOpened {
		t.Errorf("status = %q, want opened", got.Status)
	}
	if got.OpenedAt == nil {
		t.Error("openedAt not stamped")
	}

	// Second redemption is a no-op: status stays, counter does not move.
	if err := svc.RedeemOpen(context.Background(), l.OpenToken); err != nil {
		t.Fatalf("second redemption: %v", err)
	}
	if got := logs.get("log-1"); got.Status != domain.DeliveryOpened {
		t.Errorf("status regressed to %q", got.Status)
	}
	if n := counters.stats["camp-1/opened"]; n != 1 {
		t.Errorf("opened counter = %d, want exactly 1", n)
	}
}

func TestRedeemOpenDoesNotRegressClicked(t *testing.T) {
	logs := newMemLogs()
	counters := newMemCounters()
	l := seedLog(logs, domain.DeliveryClicked)
	svc := tracking.NewService(logs, counters)

	if err := svc.RedeemOpen(context.Background(), l.OpenToken); err != nil {
		t.Fatal(err)
	}
	if got := logs.get("log-1"); got.Status != domain.DeliveryClicked {
		t.Errorf("status = %q, want clicked (no regression)", got.Status)
	}
	if n := counters.stats["camp-1/opened"]; n != 0 {
		t.Errorf("opened counter = %d, want 0", n)
	}
}

func TestRedeemClick(t *testing.T) {
	logs := newMemLogs()
	counters := newMemCounters()
	l := seedLog(logs, domain.DeliverySent)
	svc := tracking.NewService(logs, counters)

	target, err := svc.RedeemClick(context.Background(), l.ClickToken, "https://example.com/offer")
	if err != nil {
		t.Fatal(err)
	}
	if target != "https://example.com/offer" {
		t.Errorf("target = %q", target)
	}
	if got := logs.get("log-1"); got.Status != domain.DeliveryClicked {
		t.Errorf("status = %q, want clicked", got.Status)
	}
	if n := counters.stats["camp-1/clicked"]; n != 1 {
		t.Errorf("clicked counter = %d, want 1", n)
	}

	// Empty destination falls back to "#".
	target, err = svc.RedeemClick(context.Background(), "unknown-token", "")
	if err != nil {
		t.Fatal(err)
	}
	if target != "#" {
		t.Errorf("fallback target = %q, want #", target)
	}
}

func TestRedeemUnknownTokenIsNoOp(t *testing.T) {
	logs := newMemLogs()
	counters := newMemCounters()
	svc := tracking.NewService(logs, counters)

	if err := svc.RedeemOpen(context.Background(), "nope"); err != nil {
		t.Fatalf("unknown token should not error: %v", err)
	}
	if len(counters.stats) != 0 {
		t.Errorf("counters mutated: %v", counters.stats)
	}
}

func TestHandlerOpenAlwaysServesPixel(t *testing.T) {
	logs := newMemLogs()
	svc := tracking.NewService(logs, newMemCounters())
	h := tracking.NewHandler(svc)

	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/open/garbage-token")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/gif" {
		t.Errorf("content type = %q", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc == "" {
		t.Error("missing no-cache headers")
	}
}

func TestHandlerClick(t *testing.T) {
	logs := newMemLogs()
	l := seedLog(logs, domain.DeliverySent)
	svc := tracking.NewService(logs, newMemCounters())
	h := tracking.NewHandler(svc)

	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	client := &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(srv.URL + "/click/" + l.ClickToken + "?url=https%3A%2F%2Fexample.com%2Fx")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("status = %d, want 302", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "https://example.com/x" {
		t.Errorf("location = %q", loc)
	}

	// Missing url parameter is a client error.
	resp, err = client.Get(srv.URL + "/click/" + l.ClickToken)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
