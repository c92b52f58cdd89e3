// internal/sanitize/sanitize.go

// Package sanitize reduces rich-text input to plain text for the
// completion API. The original markup is kept on the stored message for
// display; only the API-facing copy goes through here.
package sanitize

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// markupReplacer drops the markdown decoration left over after HTML
// conversion so the model sees bare text.
var markupReplacer = strings.NewReplacer(
	"**", "",
	"*", "",
	"__", "",
	"`", "",
	"\\", "",
)

// Text strips HTML markup from s and normalizes whitespace. Input without
// markup passes through with only whitespace normalization.
func Text(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapse(s)
	}
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		// Conversion failures fall back to a bare tag strip.
		return collapse(stripTags(s))
	}
	return collapse(markupReplacer.Replace(md))
}

// collapse folds runs of whitespace into single spaces and trims the ends.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripTags removes anything between angle brackets. Last-resort path only.
func stripTags(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// titleWords is how many leading words of the first user message become
// the derived chat title.
const titleWords = 4

// Title derives a chat title from a message: the first four words, with an
// ellipsis when the message is longer.
func Title(message string) string {
	words := strings.Fields(message)
	if len(words) <= titleWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:titleWords], " ") + "..."
}
