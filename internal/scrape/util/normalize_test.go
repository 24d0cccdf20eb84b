package util

import (
	"strings"
	"testing"
)

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "Build APIs in Go", "Build APIs in Go"},
		{"less-than without tag", "salary < 100k", "salary < 100k"},
		{"paragraphs", "<p>Build APIs</p><p>in <b>Go</b></p>", "Build APIs in Go"},
		{"script dropped", "<div>Hi<script>alert(1)</script></div>", "Hi"},
		{"nbsp collapsed", "<span>a&nbsp;&nbsp;b</span>", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTMLToText(tt.in); got != tt.want {
				t.Errorf("HTMLToText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("é", 600)
	got := Truncate(long, 500, "...")
	if n := len([]rune(got)); n != 503 {
		t.Errorf("expected 503 runes, got %d", n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix")
	}
	if Truncate("short", 500, "...") != "short" {
		t.Errorf("short input should be unchanged")
	}
}
