package content

import (
	"strings"
	"testing"
)

func countParagraphs(text string) int {
	n := 0
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	return n
}

func TestTextToHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "  \n \n ", ""},
		{"single paragraph", "hello world", "<p>hello world</p>\n"},
		{"two paragraphs", "one\n\ntwo", "<p>one</p>\n<p>two</p>\n"},
		{"line break inside paragraph", "line one\nline two", "<p>line one<br>\nline two</p>\n"},
		{"escapes html", "a < b & c", "<p>a &lt; b &amp; c</p>\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TextToHTML(tt.in); got != tt.want {
				t.Errorf("TextToHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHTMLToText(t *testing.T) {
	got := HTMLToText("<p>one</p>\n<p>two &amp; three</p>\n")
	if got != "one\n\ntwo & three" {
		t.Errorf("HTMLToText = %q", got)
	}
}

func TestRoundTripPreservesParagraphCount(t *testing.T) {
	inputs := []string{
		"single paragraph only",
		"first\n\nsecond\n\nthird",
		"with\nline breaks\n\nand a second paragraph",
		"  padded  \n\n\n\n  sparse  ",
	}
	for _, in := range inputs {
		want := countParagraphs(in)
		out := HTMLToText(TextToHTML(in))
		if got := countParagraphs(out); got != want {
			t.Errorf("round trip of %q: %d paragraphs, want %d (output %q)", in, got, want, out)
		}
	}
}

func TestFormatSubject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain subject untouched", "Your invoice is ready", "Your invoice is ready"},
		{"short caps kept", "URGENT SALE", "Urgent sale"},
		{"short all-caps under limit", "HELLO", "HELLO"},
		{"punctuation run collapsed", "Really?!?!", "Really?"},
		{"ellipsis collapsed", "Wait for it...", "Wait for it."},
		{"caps folded", "HUGE SUMMER CLEARANCE", "Huge summer clearance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatSubject(tt.in); got != tt.want {
				t.Errorf("FormatSubject(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatSubjectLongAllCaps(t *testing.T) {
	in := strings.Repeat("BIG NEWS ", 17) // 153 chars, all caps
	got := FormatSubject(in)
	if len([]rune(got)) > 100 {
		t.Errorf("length %d, want <= 100", len([]rune(got)))
	}
	if isAllCaps(got) {
		t.Errorf("result still all caps: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix: %q", got)
	}
}

func TestFormatSubjectTruncation(t *testing.T) {
	in := strings.Repeat("a", 150)
	got := FormatSubject(in)
	if len([]rune(got)) != 100 {
		t.Errorf("length %d, want 100", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix")
	}
}
