package content

import (
	"fmt"
	"regexp"
	"strings"
)

// spamTrigger is one entry in the weighted lexical scan table. Score
// contribution is weight × match count.
type spamTrigger struct {
	pattern *regexp.Regexp
	weight  float64
	label   string
	advice  string
}

var spamTriggers = []spamTrigger{
	{regexp.MustCompile(`(?i)\bfree\b`), 1, "promotional word: free",
		"Avoid repeating \"free\"; describe the offer instead"},
	{regexp.MustCompile(`(?i)\b(act now|limited time|don't miss|hurry|urgent)\b`), 2, "urgency phrase",
		"Remove urgency phrases like \"act now\""},
	{regexp.MustCompile(`(?i)\b(winner|congratulations|you've been selected|prize)\b`), 2, "prize language",
		"Remove prize/winner language"},
	{regexp.MustCompile(`(?i)\b(viagra|casino|lottery|xxx)\b`), 3, "high-risk word",
		"Remove high-risk words that trip content filters"},
	{regexp.MustCompile(`(?i)\b(100% free|100% satisfied|risk[- ]free|no obligation|no cost)\b`), 2, "absolute claim",
		"Soften absolute claims (100% free, risk-free)"},
	{regexp.MustCompile(`(?i)\b(click here|buy now|order now|sign up now)\b`), 1.5, "generic call-to-action",
		"Use descriptive link text instead of \"click here\""},
	{regexp.MustCompile(`\$\d[\d,]*`), 1, "currency amount",
		"Avoid raw currency amounts in the copy"},
	{regexp.MustCompile(`[!?]{2,}`), 1, "excessive punctuation",
		"Drop repeated exclamation/question marks"},
	{regexp.MustCompile(`\b[A-Z]{4,}\b`), 1, "all-caps run",
		"Rewrite ALL-CAPS words in normal case"},
}

// Image-heavy emails with little text are a common spam-filter signal.
var imgTag = regexp.MustCompile(`(?i)<img\b`)

const (
	imageTextRatioThreshold = 0.01 // images per text character
	imageRatioPenalty       = 3
)

// SpamReport is the result of scoring content for spam-filter risk.
type SpamReport struct {
	Score           float64  `json:"score"`
	Warnings        []string `json:"warnings"`
	Risk            string   `json:"risk"` // "low", "medium", "high"
	Recommendations []string `json:"recommendations"`
}

// ValidateSpamScore runs the weighted lexical scan over the given content.
// It is pure and deterministic: the same input always produces the same
// report. Risk buckets: low (<5), medium (<10), high (≥10). Recommendations
// are present iff the score exceeds 5.
func ValidateSpamScore(body string) SpamReport {
	report := SpamReport{Warnings: []string{}, Recommendations: []string{}}

	var advice []string
	for _, t := range spamTriggers {
		matches := t.pattern.FindAllString(body, -1)
		if len(matches) == 0 {
			continue
		}
		report.Score += t.weight * float64(len(matches))
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%s (matched %d time(s))", t.label, len(matches)))
		advice = append(advice, t.advice)
	}

	if images := len(imgTag.FindAllString(body, -1)); images > 0 {
		textLen := len(strings.TrimSpace(HTMLToText(body)))
		if textLen == 0 || float64(images)/float64(textLen) > imageTextRatioThreshold {
			report.Score += imageRatioPenalty
			report.Warnings = append(report.Warnings, "image-heavy content with little text")
			advice = append(advice, "Balance images with more body text")
		}
	}

	switch {
	case report.Score < 5:
		report.Risk = "low"
	case report.Score < 10:
		report.Risk = "medium"
	default:
		report.Risk = "high"
	}

	if report.Score > 5 {
		report.Recommendations = advice
	}
	return report
}
