// Package export writes chat history out as a portable backup document
// and reads it back in. The JSON form is the canonical backup format;
// YAML and Markdown are alternate renderings of the same document.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/user/merklechat/internal/types"
)

// Version identifies the backup document layout.
const Version = "1.0"

// Document is the envelope around every export: a version marker, the
// moment the export was taken, and the full chat set.
type Document struct {
	Version    string               `json:"version" yaml:"version"`
	ExportDate time.Time            `json:"exportDate" yaml:"exportDate"`
	Chats      []*types.ChatSession `json:"chats" yaml:"chats"`
}

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(doc *Document, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "json":
		return &JSONExporter{}, nil
	case "yaml":
		return &YAMLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, yaml, md)", format)
	}
}

// Build snapshots the full chat set into a document ready for export.
func Build(ctx context.Context, chats types.ChatStore) (*Document, error) {
	all, err := chats.LoadAllChats(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chats for export: %w", err)
	}
	return &Document{
		Version:    Version,
		ExportDate: time.Now().UTC(),
		Chats:      all,
	}, nil
}
