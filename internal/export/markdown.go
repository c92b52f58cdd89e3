package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/user/merklechat/internal/types"
)

// MarkdownExporter renders the document as human-readable Markdown. It is
// a one-way format; Import does not read it back.
type MarkdownExporter struct{}

// Export exports the document to Markdown format
func (e *MarkdownExporter) Export(doc *Document, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# Chat Export\n\n")
	_, _ = fmt.Fprintf(w, "**Exported:** %s  \n", doc.ExportDate.Format("2006-01-02 15:04:05 MST"))
	_, _ = fmt.Fprintf(w, "**Chats:** %d\n\n", len(doc.Chats))

	for _, chat := range doc.Chats {
		_, _ = fmt.Fprintf(w, "---\n\n")
		_, _ = fmt.Fprintf(w, "## %s\n\n", chat.Title)
		_, _ = fmt.Fprintf(w, "**Created:** %s  \n", chat.CreatedAt.Format("2006-01-02 15:04"))
		_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", chat.MessageCount())

		for _, pair := range chat.Conversations {
			writeMessage(w, pair.User)
			writeMessage(w, pair.System)
		}
	}

	return nil
}

func writeMessage(w io.Writer, msg *types.Message) {
	if msg == nil || msg.Content == "" {
		return
	}
	label := "Assistant"
	if msg.Sender == types.SenderUser {
		label = "You"
	}
	_, _ = fmt.Fprintf(w, "**%s** (%s):\n\n%s\n\n", label, msg.Timestamp.Format("15:04"), escapeMarkdown(msg.Content))
}

// escapeMarkdown escapes emphasis markers outside code blocks so user
// text does not restyle the surrounding document.
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
