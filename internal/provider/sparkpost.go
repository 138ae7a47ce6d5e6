package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ignite/mailroom/internal/pkg/logger"
)

// SparkPostSender sends through the SparkPost Transmissions API.
type SparkPostSender struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewSparkPostSender creates a sender targeting the SparkPost v1 API.
// baseURL is overridable for tests and on-prem deployments.
func NewSparkPostSender(apiKey, baseURL string) *SparkPostSender {
	if baseURL == "" {
		baseURL = "https://api.sparkpost.com/api/v1"
	}
	return &SparkPostSender{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Send delivers a single email and returns the transmission id.
func (s *SparkPostSender) Send(ctx context.Context, msg *Message) (string, error) {
	if s.apiKey == "" {
		return "", &Error{Message: "SparkPost API key not configured", Name: "config_error"}
	}

	headers := map[string]string{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	transmission := map[string]interface{}{
		"recipients": []map[string]interface{}{
			{"address": map[string]string{"email": msg.To}},
		},
		"content": map[string]interface{}{
			"from":    map[string]string{"email": msg.From, "name": msg.FromName},
			"subject": msg.Subject,
			"html":    msg.HTML,
			"text":    msg.Text,
			"headers": headers,
		},
		"options": map[string]interface{}{
			// Tracking is injected upstream; double-tracking skews stats.
			"open_tracking":  false,
			"click_tracking": false,
		},
	}
	if msg.ReplyTo != "" {
		transmission["content"].(map[string]interface{})["reply_to"] = msg.ReplyTo
	}

	jsonData, err := json.Marshal(transmission)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/transmissions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return "", decodeAPIError(resp.StatusCode, body)
	}

	var result struct {
		Results struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	json.Unmarshal(body, &result)

	logger.Debug("sparkpost send accepted", "to", msg.To, "id", result.Results.ID)
	return result.Results.ID, nil
}

// decodeAPIError maps an error response body onto a provider Error,
// preserving the raw payload for the delivery log.
func decodeAPIError(status int, body []byte) *Error {
	var parsed struct {
		Errors []struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"errors"`
		Error struct {
			Message string `json:"message"`
			Name    string `json:"name"`
		} `json:"error"`
	}
	json.Unmarshal(body, &parsed)

	e := &Error{Raw: string(body)}
	switch {
	case parsed.Error.Message != "":
		e.Message = parsed.Error.Message
		e.Name = parsed.Error.Name
	case len(parsed.Errors) > 0:
		e.Message = parsed.Errors[0].Message
		e.Name = parsed.Errors[0].Code
	default:
		e.Message = fmt.Sprintf("provider error: status %d", status)
	}
	if status == http.StatusTooManyRequests && e.Name == "" {
		e.Name = "rate_limit"
	}
	return e
}
