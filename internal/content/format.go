// Package content turns raw campaign text into branded, anti-spam-safe email
// bodies: text/HTML conversion, the shared layout, anti-spam headers, spam
// risk scoring, and subject normalization.
package content

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	paragraphSplit = regexp.MustCompile(`\n[ \t]*\n`)
	brTag          = regexp.MustCompile(`(?i)<br\s*/?>`)
	closingPTag    = regexp.MustCompile(`(?i)</p>`)
	anyTag         = regexp.MustCompile(`<[^>]*>`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
	punctRuns      = regexp.MustCompile(`[!?.]{2,}`)
)

// TextToHTML converts plain text into paragraph-structured HTML. Blank lines
// separate paragraphs; single newlines become line breaks. Empty input yields
// empty output.
func TextToHTML(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return ""
	}

	var b strings.Builder
	for _, para := range paragraphSplit.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>\n"))
		b.WriteString("</p>\n")
	}
	return b.String()
}

// HTMLToText is the approximate inverse of TextToHTML: it strips tags,
// unescapes entities, and keeps paragraph boundaries as blank lines.
// Round-tripping plain text through TextToHTML then HTMLToText preserves the
// number of non-empty paragraphs.
func HTMLToText(h string) string {
	s := brTag.ReplaceAllString(h, "\n")
	s = closingPTag.ReplaceAllString(s, "\n\n")
	s = anyTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// FormatSubject normalizes a subject line before sending:
//   - collapses runs of repeated sentence punctuation ("!!!" → "!")
//   - folds an all-caps subject longer than 10 characters to sentence case
//   - truncates subjects over 100 characters to 97 plus an ellipsis
func FormatSubject(subject string) string {
	s := punctRuns.ReplaceAllStringFunc(subject, func(m string) string { return m[:1] })

	if r := []rune(s); len(r) > 10 && isAllCaps(s) {
		s = strings.ToLower(s)
		r = []rune(s)
		r[0] = unicode.ToUpper(r[0])
		s = string(r)
	}

	if r := []rune(s); len(r) > 100 {
		s = string(r[:97]) + "..."
	}
	return s
}

// isAllCaps reports whether s contains at least one letter and no lowercase
// letters.
func isAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}
