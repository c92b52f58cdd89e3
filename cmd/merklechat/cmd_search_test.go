package main

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExcerptWindowsAroundHit(t *testing.T) {
	content := strings.Repeat("pad ", 30) + "the needle sits here" + strings.Repeat(" pad", 30)
	got := excerpt(content, "needle")
	if !strings.Contains(got, "needle") {
		t.Errorf("excerpt lost the match: %q", got)
	}
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipses on both sides, got %q", got)
	}
}

func TestExcerptShortContentUntouched(t *testing.T) {
	if got := excerpt("short match", "match"); got != "short match" {
		t.Errorf("expected content unchanged, got %q", got)
	}
}

func TestExcerptStaysOnRuneBoundaries(t *testing.T) {
	content := strings.Repeat("é", 80) + " match " + strings.Repeat("日", 80)
	got := excerpt(content, "match")
	if !utf8.ValidString(got) {
		t.Fatalf("excerpt is not valid UTF-8: %q", got)
	}
	if !strings.Contains(got, "match") {
		t.Errorf("excerpt lost the match: %q", got)
	}
}
