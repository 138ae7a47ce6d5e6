// Package provider defines the delivery-provider contract and its
// implementations. A provider accepts a fully-rendered message and returns
// the provider's message id, or an error carrying the raw provider payload.
package provider

import (
	"context"
	"fmt"
	"strings"
)

// Message is the wire-level send request:
// {from, to, subject, html, text, reply_to, headers}.
type Message struct {
	FromName string            `json:"from_name"`
	From     string            `json:"from"`
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	HTML     string            `json:"html"`
	Text     string            `json:"text"`
	ReplyTo  string            `json:"reply_to,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// Provider sends a single message and returns the provider message id.
type Provider interface {
	Send(ctx context.Context, msg *Message) (string, error)
}

// Error is a structured provider failure: {error: {message, name}} plus the
// raw response body for the delivery log.
type Error struct {
	Message string `json:"message"`
	Name    string `json:"name,omitempty"`
	Raw     string `json:"-"`
}

func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s", e.Name, e.Message)
	}
	return e.Message
}

// rate-limit errors are identified by a case-insensitive substring match on
// the error message, per the provider contract.
var rateLimitMarkers = []string{
	"rate limit",
	"rate_limit",
	"too many requests",
	"throttl",
	"429",
}

// IsRateLimit reports whether err represents a provider rate-limit rejection.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// RawPayload extracts the raw provider response from err when available.
func RawPayload(err error) string {
	if pe, ok := err.(*Error); ok && pe.Raw != "" {
		return pe.Raw
	}
	return ""
}
