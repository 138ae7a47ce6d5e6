package dispatch

import "errors"

// Sentinel errors for the campaign send flow.
var (
	ErrNotFound       = errors.New("campaign not found")
	ErrAlreadySending = errors.New("campaign is already sending")
	ErrAlreadySent    = errors.New("campaign has already been sent")
	ErrNotSendable    = errors.New("campaign is not in a sendable state")
	ErrNoRecipients   = errors.New("campaign resolved zero recipients")
)
