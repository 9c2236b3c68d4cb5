package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestStripHTML(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "How much is the Pro plan?", "How much is the Pro plan?"},
		{"tags removed", "<b>Hello</b> <script>alert(1)</script>world", "Hello alert(1)world"},
		{"encoded tags removed after decode", "&lt;img src=x&gt;hi", "hi"},
		{"entities decoded", "Tom &amp; Jerry &quot;show&quot;", "Tom & Jerry \"show\""},
		{"surrounding whitespace trimmed", "  hey  ", "hey"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripHTML(tc.in); got != tc.want {
				t.Fatalf("StripHTML(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestPreviewCapsLength(t *testing.T) {
	long := strings.Repeat("a", 200)
	if got := Preview(long, 120); utf8.RuneCountInString(got) != 120 {
		t.Fatalf("preview length = %d runes, want 120", utf8.RuneCountInString(got))
	}
	if got := Preview("short", 120); got != "short" {
		t.Fatalf("short text must pass through, got %q", got)
	}
	if got := Preview(long, 0); got != long {
		t.Fatalf("non-positive cap must pass through, got %d bytes", len(got))
	}
}

func TestPreviewTruncatesOnRuneBoundary(t *testing.T) {
	in := strings.Repeat("é", 10)

	got := Preview(in, 4)
	if got != strings.Repeat("é", 4) {
		t.Fatalf("Preview = %q, want 4 full runes", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("preview is not valid UTF-8: %q", got)
	}
}
