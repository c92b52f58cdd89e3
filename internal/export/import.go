package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/user/merklechat/internal/types"
)

// ChatImporter writes a chat back keeping the timestamps carried in the
// payload, so imported chats retain their original createdAt.
type ChatImporter interface {
	ImportChat(ctx context.Context, chat *types.ChatSession) error
}

// Import reads a JSON backup document and upserts every chat it contains.
// Unknown top-level fields are ignored so newer exports still load.
func Import(ctx context.Context, store ChatImporter, r io.Reader) (int, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("parse backup document: %w", err)
	}
	if doc.Chats == nil {
		return 0, fmt.Errorf("invalid backup document: missing chats")
	}

	for i, chat := range doc.Chats {
		if chat.ID == "" {
			return i, fmt.Errorf("invalid backup document: chat %d has no id", i)
		}
		if err := store.ImportChat(ctx, chat); err != nil {
			return i, fmt.Errorf("import chat %s: %w", chat.ID, err)
		}
	}
	return len(doc.Chats), nil
}
