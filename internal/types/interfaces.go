// internal/types/interfaces.go
package types

import (
	"context"
)

type ChatStore interface {
	Init(ctx context.Context) error
	SaveChat(ctx context.Context, id ChatID, title string, conversations []ConversationPair) error
	LoadChat(ctx context.Context, id ChatID) (*ChatSession, error)
	LoadAllChats(ctx context.Context) ([]*ChatSession, error)
	DeleteChat(ctx context.Context, id ChatID) error
	ClearAll(ctx context.Context) error
	Supported() bool
}

type TabStore interface {
	SaveTabs(ctx context.Context, tabs []Tab) error
	LoadTabs(ctx context.Context) ([]Tab, error)
}

// BackupStore is the synchronous fallback path. Writes must complete before
// returning; the durable store's write path may not finish before shutdown.
type BackupStore interface {
	SaveBackup(record *BackupRecord) error
	LoadBackup(id ChatID) (*BackupRecord, error)
	DeleteBackup(id ChatID) error
}
