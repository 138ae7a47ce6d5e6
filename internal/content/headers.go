package content

import "fmt"

// HeaderInput identifies the message for anti-spam header generation.
type HeaderInput struct {
	CampaignID   string
	SubscriberID string
	ListID       string
	AbuseAddress string
}

// AntiSpamHeaders returns the fixed set of provider-agnostic headers attached
// to every bulk message. Proper list identification and an abuse-report
// address measurably reduce spam-filter false positives.
func AntiSpamHeaders(in HeaderInput) map[string]string {
	listID := in.ListID
	if listID == "" {
		listID = "general"
	}
	abuse := in.AbuseAddress
	if abuse == "" {
		abuse = "abuse@mailroom.local"
	}

	h := map[string]string{
		"List-ID":        fmt.Sprintf("<%s.mailroom>", listID),
		"Precedence":     "bulk",
		"X-Report-Abuse": fmt.Sprintf("Please report abuse to %s", abuse),
		"X-Mailer":       "mailroom",
	}
	if in.CampaignID != "" {
		h["X-Campaign-ID"] = in.CampaignID
	}
	if in.SubscriberID != "" {
		h["X-Subscriber-ID"] = in.SubscriberID
	}
	return h
}
