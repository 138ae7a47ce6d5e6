package content

import (
	"fmt"
	"html"
	"strings"
)

// TemplateInput carries everything needed to render the branded layout.
type TemplateInput struct {
	Subject        string
	Content        string // HTML body content
	RecipientName  string
	UnsubscribeURL string
	CompanyName    string
	PreviewText    string
}

// Rendered holds the HTML and plain-text renderings of a message. The two
// are built independently from the same inputs so one cannot drift into
// containing content the other lacks.
type Rendered struct {
	HTML string
	Text string
}

// RenderTemplate wraps body content in the fixed branded layout: header,
// personalized greeting, body, and a footer with the unsubscribe link when
// one is provided.
func RenderTemplate(in TemplateInput) Rendered {
	company := in.CompanyName
	if company == "" {
		company = "Mailroom"
	}
	greeting := "Hello,"
	if in.RecipientName != "" {
		greeting = fmt.Sprintf("Hello %s,", in.RecipientName)
	}

	return Rendered{
		HTML: renderHTML(in, company, greeting),
		Text: renderText(in, company, greeting),
	}
}

func renderHTML(in TemplateInput, company, greeting string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(in.Subject))
	b.WriteString("</head>\n")
	b.WriteString("<body style=\"margin:0;padding:0;background-color:#f4f4f4;font-family:Arial,Helvetica,sans-serif;\">\n")

	if in.PreviewText != "" {
		// Hidden preheader shown by inbox clients next to the subject.
		fmt.Fprintf(&b, "<div style=\"display:none;max-height:0;overflow:hidden;\">%s</div>\n",
			html.EscapeString(in.PreviewText))
	}

	b.WriteString("<table role=\"presentation\" width=\"100%\" cellpadding=\"0\" cellspacing=\"0\"><tr><td align=\"center\">\n")
	b.WriteString("<table role=\"presentation\" width=\"600\" cellpadding=\"0\" cellspacing=\"0\" style=\"background-color:#ffffff;\">\n")

	fmt.Fprintf(&b, "<tr><td style=\"padding:24px;background-color:#1a1a2e;color:#ffffff;font-size:20px;font-weight:bold;\">%s</td></tr>\n",
		html.EscapeString(company))

	fmt.Fprintf(&b, "<tr><td style=\"padding:32px 24px;color:#333333;font-size:15px;line-height:1.6;\">\n<p>%s</p>\n%s\n</td></tr>\n",
		html.EscapeString(greeting), in.Content)

	b.WriteString("<tr><td style=\"padding:24px;background-color:#f9f9f9;color:#888888;font-size:12px;\">\n")
	fmt.Fprintf(&b, "<p>&copy; %s. All rights reserved.</p>\n", html.EscapeString(company))
	if in.UnsubscribeURL != "" {
		fmt.Fprintf(&b, "<p><a href=\"%s\" style=\"color:#888888;\">Unsubscribe</a> from these emails.</p>\n",
			in.UnsubscribeURL)
	}
	b.WriteString("</td></tr>\n</table>\n</td></tr></table>\n</body>\n</html>")
	return b.String()
}

func renderText(in TemplateInput, company, greeting string) string {
	var b strings.Builder
	b.WriteString(company)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", len(company)))
	b.WriteString("\n\n")
	b.WriteString(greeting)
	b.WriteString("\n\n")
	b.WriteString(HTMLToText(in.Content))
	b.WriteString("\n\n--\n")
	fmt.Fprintf(&b, "(c) %s. All rights reserved.\n", company)
	if in.UnsubscribeURL != "" {
		fmt.Fprintf(&b, "Unsubscribe: %s\n", in.UnsubscribeURL)
	}
	return b.String()
}
