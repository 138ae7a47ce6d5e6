package delivery

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	hrefPattern    = regexp.MustCompile(`href="(https?://[^"]+)"`)
	closingBodyTag = regexp.MustCompile(`(?i)</body>`)
)

// RewriteLinks routes outbound http(s) links through the click-tracking
// redirector. Links that are already tracking links, and unsubscribe links,
// are left alone: tracking an unsubscribe both skews stats and breaks
// one-click unsubscribe handling.
func RewriteLinks(html, trackingBase, clickToken string) string {
	return hrefPattern.ReplaceAllStringFunc(html, func(match string) string {
		original := hrefPattern.FindStringSubmatch(match)[1]
		lower := strings.ToLower(original)
		if strings.Contains(lower, "/track/") || strings.Contains(lower, "unsubscribe") {
			return match
		}
		return fmt.Sprintf(`href="%s/click/%s?url=%s"`,
			trackingBase, clickToken, url.QueryEscape(original))
	})
}

// InjectOpenPixel places the 1x1 open-tracking image just before the closing
// body tag, or appends it when the content has no body tag.
func InjectOpenPixel(html, trackingBase, openToken string) string {
	pixel := fmt.Sprintf(`<img src="%s/open/%s" width="1" height="1" alt="" style="display:none;">`,
		trackingBase, openToken)

	if loc := closingBodyTag.FindStringIndex(html); loc != nil {
		return html[:loc[0]] + pixel + html[loc[0]:]
	}
	return html + pixel
}
