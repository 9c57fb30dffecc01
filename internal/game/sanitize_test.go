package game

import (
	"strings"
	"testing"
)

func TestSanitizeTextTrimsAndPasses(t *testing.T) {
	got, err := SanitizeText("  hello there  ", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello there" {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizeTextRejections(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want TextError
	}{
		{"empty", "", 100, ErrTextEmpty},
		{"whitespace only", "   \t ", 100, ErrTextEmpty},
		{"too long", strings.Repeat("a", 101), 100, ErrTextTooLong},
		{"control chars", "hi\x00there", 100, ErrTextInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := SanitizeText(tc.in, tc.max); err != tc.want {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSanitizeTextStripsInjection(t *testing.T) {
	got, err := SanitizeText(`<script>alert(1)</script>gg`, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(strings.ToLower(got), "script>") {
		t.Fatalf("script tag survived: %q", got)
	}
	got, err = SanitizeText(`click javascript:evil() onload= now`, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(got, "javascript:") || strings.Contains(got, "onload=") {
		t.Fatalf("injection pattern survived: %q", got)
	}
}

func TestSanitizeTextEscapesAngleBrackets(t *testing.T) {
	got, err := SanitizeText("1 < 2 > 0", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "1 &lt; 2 &gt; 0" {
		t.Fatalf("got %q", got)
	}
}
