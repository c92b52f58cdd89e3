// internal/recovery/pipeline.go

// Package recovery keeps conversation state durable: it debounces chat
// saves, writes an emergency synchronous backup on shutdown, and replays
// backups into the durable store on startup.
package recovery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/user/merklechat/internal/sanitize"
	"github.com/user/merklechat/internal/tabs"
	"github.com/user/merklechat/internal/types"
)

// DefaultQuietWindow is how long conversation state must sit unchanged
// before the debounced save fires.
const DefaultQuietWindow = 2 * time.Second

// DeriveTitle produces a chat title from the first user message, sanitized
// and truncated. Chats with no user message yet get the generic title.
func DeriveTitle(conversations []types.ConversationPair) string {
	if len(conversations) > 0 {
		if user := conversations[0].User; user != nil && user.Content != "" {
			return sanitize.Title(sanitize.Text(user.Content))
		}
	}
	return "New Chat"
}

type snapshot struct {
	chatID        types.ChatID
	conversations []types.ConversationPair
}

// Pipeline owns the debounce timer for one process. Replacing the pending
// timer before scheduling a new one is the mutual exclusion that keeps two
// saves for the same chat from racing.
type Pipeline struct {
	chats    types.ChatStore
	backups  types.BackupStore
	registry *tabs.Registry
	quiet    time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending *snapshot
}

// New creates a Pipeline with the given quiet window; zero means
// DefaultQuietWindow. registry may be nil when no tab labels need
// updating.
func New(chats types.ChatStore, backups types.BackupStore, registry *tabs.Registry, quiet time.Duration) *Pipeline {
	if quiet == 0 {
		quiet = DefaultQuietWindow
	}
	return &Pipeline{
		chats:    chats,
		backups:  backups,
		registry: registry,
		quiet:    quiet,
	}
}

// Schedule records the latest conversation state and (re)starts the quiet
// window. Empty conversation lists are never persisted, so a chat that has
// not had its first message leaves no record.
func (p *Pipeline) Schedule(chatID types.ChatID, conversations []types.ConversationPair) {
	if chatID == "" || len(conversations) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = &snapshot{chatID: chatID, conversations: conversations}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.quiet, func() {
		p.Flush(context.Background())
	})
}

// Flush saves the pending snapshot immediately, bypassing the remaining
// quiet window. Called when navigating away from a chat so switching does
// not lose the last few seconds of edits. No-op when nothing is pending.
func (p *Pipeline) Flush(ctx context.Context) {
	p.mu.Lock()
	snap := p.pending
	p.pending = nil
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()

	if snap == nil {
		return
	}
	p.save(ctx, snap)
}

// save persists the snapshot and applies the derived title to the tab
// under the generic-label rule. Failures are logged and retried only on
// the next natural state change.
func (p *Pipeline) save(ctx context.Context, snap *snapshot) {
	title := DeriveTitle(snap.conversations)
	if err := p.chats.SaveChat(ctx, snap.chatID, title, snap.conversations); err != nil {
		slog.Error("failed to save chat", "chat_id", string(snap.chatID), "error", err)
		return
	}
	if p.registry != nil {
		p.registry.UpdateLabel(ctx, snap.chatID, title)
	}
}

// Shutdown is the page-unload path: it writes a minimal backup record
// through the synchronous store first, because the durable write may not
// finish, then attempts the normal save anyway.
func (p *Pipeline) Shutdown(ctx context.Context) {
	p.mu.Lock()
	snap := p.pending
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.pending = nil
	p.mu.Unlock()

	if snap == nil {
		return
	}

	record := &types.BackupRecord{
		ID:            snap.chatID,
		Title:         DeriveTitle(snap.conversations),
		Conversations: snap.conversations,
		UpdatedAt:     time.Now(),
	}
	if err := p.backups.SaveBackup(record); err != nil {
		slog.Error("failed to write shutdown backup", "chat_id", string(snap.chatID), "error", err)
	}

	p.save(ctx, snap)
}

// Recover loads a chat, falling back to its backup record when the durable
// store has no trace of it. A recovered backup is replayed into the
// durable store and then deleted, so at most one generation of data is
// lost even if the last durable write never completed.
func (p *Pipeline) Recover(ctx context.Context, chatID types.ChatID) (*types.ChatSession, error) {
	chat, err := p.chats.LoadChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat != nil {
		return chat, nil
	}

	backup, err := p.backups.LoadBackup(chatID)
	if err != nil {
		return nil, err
	}
	if backup == nil {
		return nil, nil
	}

	if err := p.chats.SaveChat(ctx, chatID, backup.Title, backup.Conversations); err != nil {
		return nil, err
	}
	if err := p.backups.DeleteBackup(chatID); err != nil {
		slog.Warn("failed to delete replayed backup", "chat_id", string(chatID), "error", err)
	}
	slog.Info("recovered chat from backup", "chat_id", string(chatID))

	return p.chats.LoadChat(ctx, chatID)
}

// Stop cancels any pending timer without saving. For teardown in tests.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.pending = nil
}
