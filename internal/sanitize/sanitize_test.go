// internal/sanitize/sanitize_test.go
package sanitize

import (
	"testing"
)

func TestTextStripsMarkup(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello world", "hello world"},
		{"whitespace collapsed", "  hello \n\t world  ", "hello world"},
		{"paragraph", "<p>Hello <b>world</b></p>", "Hello world"},
		{"nested", "<div><p>What is <strong>Bitcoin</strong> mining</p></div>", "What is Bitcoin mining"},
		{"entity", "fish &amp; chips", "fish & chips"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.input); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"truncated", "What is Bitcoin mining and how does it work", "What is Bitcoin mining..."},
		{"exactly four words", "What is Bitcoin mining", "What is Bitcoin mining"},
		{"short", "Hello", "Hello"},
		{"empty", "", ""},
		{"extra whitespace", "  one   two three four five ", "one two three four..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Title(tt.input); got != tt.want {
				t.Errorf("Title(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
