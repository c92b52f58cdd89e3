//go:build integration

package test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/merklechat/internal/chat"
	"github.com/user/merklechat/internal/prompt"
	"github.com/user/merklechat/internal/recovery"
	"github.com/user/merklechat/internal/store"
	"github.com/user/merklechat/internal/tabs"
	"github.com/user/merklechat/internal/types"
	"github.com/user/merklechat/pkg/llm"
)

// scriptedProvider streams a fixed delta sequence per request.
type scriptedProvider struct {
	deltas []string
}

func (p *scriptedProvider) Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	return nil, errors.New("not used")
}

func (p *scriptedProvider) Stream(ctx context.Context, messages []llm.Message) (<-chan llm.Delta, error) {
	ch := make(chan llm.Delta)
	go func() {
		defer close(ch)
		for _, d := range p.deltas {
			select {
			case ch <- llm.Delta{Content: d}:
			case <-ctx.Done():
				ch <- llm.Delta{Err: ctx.Err()}
				return
			}
		}
	}()
	return ch, nil
}

func newStack(t *testing.T, dir string) (*store.SQLiteStore, *store.FileBackupStore, *tabs.Registry, *recovery.Pipeline) {
	t.Helper()
	ctx := context.Background()

	chats := store.NewSQLiteStore(filepath.Join(dir, "chats.db"))
	if err := chats.Init(ctx); err != nil {
		t.Fatal(err)
	}
	backups := store.NewFileBackupStore(filepath.Join(dir, "backups"))
	registry := tabs.New(chats)
	if err := registry.Load(ctx, chats); err != nil {
		t.Fatal(err)
	}
	saver := recovery.New(chats, backups, registry, 50*time.Millisecond)
	return chats, backups, registry, saver
}

func newEngine(t *testing.T, chatID types.ChatID, provider llm.Provider, saver *recovery.Pipeline) *chat.Engine {
	t.Helper()
	builder, err := prompt.New("gpt-4", 128000, 4096, "")
	if err != nil {
		t.Fatal(err)
	}
	cfg := &llm.Config{APIKey: "test", Model: "gpt-4o"}
	return chat.NewEngine(chatID, provider, cfg, builder, saver)
}

func TestEndToEnd(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	chats, _, registry, saver := newStack(t, dir)
	defer saver.Stop()

	chatID := types.NewChatID()
	engine := newEngine(t, chatID, &scriptedProvider{deltas: []string{"Hi", " there"}}, saver)
	registry.CreateOrGet(ctx, chatID, tabs.DefaultLabel)

	if err := engine.Submit(ctx, "Hello merkle trees"); err != nil {
		t.Fatal(err)
	}
	engine.Wait()
	saver.Flush(ctx)

	// Chat persisted with derived title.
	stored, err := chats.LoadChat(ctx, chatID)
	if err != nil {
		t.Fatal(err)
	}
	if stored == nil {
		t.Fatal("chat not persisted after flush")
	}
	if stored.Title != "Hello merkle trees" {
		t.Errorf("unexpected derived title %q", stored.Title)
	}
	if len(stored.Conversations) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(stored.Conversations))
	}
	if stored.Conversations[0].System.Content != "Hi there" {
		t.Errorf("streamed reply not persisted, got %q", stored.Conversations[0].System.Content)
	}

	// Tab label derived from the first user message.
	tab, ok := registry.FindByPath(types.ChatPath(chatID))
	if !ok {
		t.Fatal("tab missing")
	}
	if tab.Label != "Hello merkle trees" {
		t.Errorf("unexpected tab label %q", tab.Label)
	}

	// A fresh engine restores the full history.
	restored := newEngine(t, chatID, &scriptedProvider{}, saver)
	if err := restored.LoadHistory(ctx); err != nil {
		t.Fatal(err)
	}
	if len(restored.State().Conversations) != 1 {
		t.Error("history not restored")
	}
}

func TestShutdownBackupAndRecovery(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	chats, _, _, saver := newStack(t, dir)

	chatID := types.NewChatID()
	engine := newEngine(t, chatID, &scriptedProvider{deltas: []string{"partial reply"}}, saver)

	if err := engine.Submit(ctx, "Will this survive a crash?"); err != nil {
		t.Fatal(err)
	}
	engine.Wait()

	// Shutdown before the debounce fired: the backup record must exist
	// even if the durable write was still pending.
	saver.Shutdown(ctx)
	saver.Stop()

	// Simulate a fresh process whose durable store lost the chat.
	if err := chats.DeleteChat(ctx, chatID); err != nil {
		t.Fatal(err)
	}

	_, backups2, _, saver2 := newStack(t, dir)
	defer saver2.Stop()

	recovered, err := saver2.Recover(ctx, chatID)
	if err != nil {
		t.Fatal(err)
	}
	if recovered == nil {
		t.Fatal("backup not replayed")
	}
	if len(recovered.Conversations) != 1 || recovered.Conversations[0].System.Content != "partial reply" {
		t.Errorf("recovered content mismatch: %+v", recovered.Conversations)
	}

	// Replay deletes the backup record.
	if rec, _ := backups2.LoadBackup(chatID); rec != nil {
		t.Error("backup record should be deleted after replay")
	}
}
