package export

import (
	"encoding/json"
	"io"
)

// JSONExporter exports the document in JSON format (pretty-printed).
// This is the canonical backup format and the only one Import accepts.
type JSONExporter struct{}

// Export exports the document to JSON format
func (e *JSONExporter) Export(doc *Document, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(doc)
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}
