// Package delivery sends one formatted message through the delivery provider
// with bounded retry on rate limiting, and persists a DeliveryLog entry whose
// status reflects the outcome.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailroom/internal/content"
	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/logger"
	"github.com/ignite/mailroom/internal/provider"
	"github.com/ignite/mailroom/internal/tracking"
)

// ErrMissingRecipient is returned when a send has no recipient address.
var ErrMissingRecipient = errors.New("missing recipient address")

// LogStore is the delivery-log persistence the client needs.
type LogStore interface {
	Create(ctx context.Context, log *domain.DeliveryLog) error
	Update(ctx context.Context, log *domain.DeliveryLog) error
}

// SendInput describes a single outbound message.
type SendInput struct {
	To             string
	Subject        string
	HTMLContent    string
	PlainContent   string
	FromName       string
	FromEmail      string
	ReplyTo        string
	CampaignID     *string
	RecipientID    *string
	ListID         string
	RecipientName  string
	UnsubscribeURL string
	PreviewText    string
	// Personalization is merged into {{ ... }} variables in subject and body.
	Personalization map[string]interface{}
}

// Client sends individual emails through a Provider. Every send, successful
// or not, is backed by a persisted DeliveryLog row; the client never reports
// success without one.
type Client struct {
	provider        provider.Provider
	logs            LogStore
	personalizer    *content.Personalizer
	trackingBaseURL string
	companyName     string
	abuseAddress    string

	maxRetries int
	retryDelay func(attempt int) time.Duration
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithRetryDelay overrides the backoff schedule, primarily for tests.
func WithRetryDelay(fn func(attempt int) time.Duration) Option {
	return func(c *Client) { c.retryDelay = fn }
}

// WithCompany sets the brand name and abuse-report address used in templates
// and headers.
func WithCompany(name, abuseAddress string) Option {
	return func(c *Client) {
		c.companyName = name
		c.abuseAddress = abuseAddress
	}
}

// NewClient creates a delivery client. trackingBaseURL is the public base of
// the tracking endpoints, e.g. "https://track.example.com/track".
func NewClient(p provider.Provider, logs LogStore, trackingBaseURL string, opts ...Option) *Client {
	c := &Client{
		provider:        p,
		logs:            logs,
		personalizer:    content.NewPersonalizer(),
		trackingBaseURL: trackingBaseURL,
		maxRetries:      3,
		// Linear backoff: 2s, 4s, 6s.
		retryDelay: func(attempt int) time.Duration {
			return time.Duration(attempt+1) * 2 * time.Second
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send formats, logs, and delivers a single message. On rate-limit errors the
// provider call is retried up to 3 more times with linearly increasing
// backoff; any other provider error is terminal. Terminal failures are
// recorded on the log row as "failed" and returned to the caller.
func (c *Client) Send(ctx context.Context, in SendInput) (*domain.DeliveryLog, error) {
	if in.To == "" {
		return nil, ErrMissingRecipient
	}

	subject := content.FormatSubject(in.Subject)

	htmlBody := in.HTMLContent
	if htmlBody == "" {
		htmlBody = content.TextToHTML(in.PlainContent)
	}

	vars := map[string]interface{}{
		"email":      in.To,
		"first_name": in.RecipientName,
	}
	for k, v := range in.Personalization {
		vars[k] = v
	}
	subject = c.personalizer.Render(subject, vars)
	htmlBody = c.personalizer.Render(htmlBody, vars)

	if report := content.ValidateSpamScore(htmlBody); report.Risk == "high" {
		logger.Warn("high spam risk content",
			"to", in.To, "subject", subject, "score", fmt.Sprintf("%.1f", report.Score))
	}

	rendered := content.RenderTemplate(content.TemplateInput{
		Subject:        subject,
		Content:        htmlBody,
		RecipientName:  in.RecipientName,
		UnsubscribeURL: in.UnsubscribeURL,
		CompanyName:    c.companyName,
		PreviewText:    in.PreviewText,
	})

	openToken, clickToken := tracking.NewTokenPair()
	log := &domain.DeliveryLog{
		ID:          uuid.New().String(),
		CampaignID:  in.CampaignID,
		RecipientID: in.RecipientID,
		Email:       in.To,
		Subject:     subject,
		Status:      domain.DeliveryPending,
		OpenToken:   openToken,
		ClickToken:  clickToken,
		CreatedAt:   c.now(),
		UpdatedAt:   c.now(),
	}
	if err := c.logs.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("create delivery log: %w", err)
	}

	trackedHTML := RewriteLinks(rendered.HTML, c.trackingBaseURL, clickToken)
	trackedHTML = InjectOpenPixel(trackedHTML, c.trackingBaseURL, openToken)

	headers := content.AntiSpamHeaders(content.HeaderInput{
		CampaignID:   deref(in.CampaignID),
		SubscriberID: deref(in.RecipientID),
		ListID:       in.ListID,
		AbuseAddress: c.abuseAddress,
	})
	headers["X-Open-Token"] = openToken
	headers["X-Click-Token"] = clickToken

	msg := &provider.Message{
		FromName: in.FromName,
		From:     in.FromEmail,
		To:       in.To,
		Subject:  subject,
		HTML:     trackedHTML,
		Text:     rendered.Text,
		ReplyTo:  in.ReplyTo,
		Headers:  headers,
	}

	providerID, err := c.sendWithRetry(ctx, msg)
	if err != nil {
		log.Status = domain.DeliveryFailed
		log.Error = err.Error()
		log.ProviderResponse = provider.RawPayload(err)
		log.UpdatedAt = c.now()
		if uerr := c.logs.Update(ctx, log); uerr != nil {
			logger.Error("failed to record send failure", "log", log.ID, "error", uerr)
		}
		return nil, fmt.Errorf("send to %s: %w", logger.RedactEmail(in.To), err)
	}

	now := c.now()
	log.Status = domain.DeliverySent
	log.SentAt = &now
	log.ProviderID = providerID
	log.UpdatedAt = now
	if err := c.logs.Update(ctx, log); err != nil {
		// The message went out but the row still says pending; reconciliation
		// will surface the gap. Callers must not treat this as a clean send.
		return nil, fmt.Errorf("record sent status: %w", err)
	}

	logger.Info("email sent", "to", in.To, "provider_id", providerID, "log", log.ID)
	return log, nil
}

// sendWithRetry calls the provider, retrying only on rate-limit errors, up to
// maxRetries additional attempts.
func (c *Client) sendWithRetry(ctx context.Context, msg *provider.Message) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(attempt - 1)
			logger.Warn("rate limited, backing off",
				"to", msg.To, "attempt", attempt, "delay", delay.String())
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		id, err := c.provider.Send(ctx, msg)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if !provider.IsRateLimit(err) {
			return "", err
		}
	}
	return "", lastErr
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
