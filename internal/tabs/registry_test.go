// internal/tabs/registry_test.go
package tabs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/merklechat/internal/store"
	"github.com/user/merklechat/internal/types"
)

func newTestRegistry(t *testing.T) (*Registry, *store.SQLiteStore) {
	t.Helper()
	s := store.NewSQLiteStore(filepath.Join(t.TempDir(), "chats.db"))
	if err := s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func TestCreateOrGetIdempotent(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	chatID := types.NewChatID()

	path := r.CreateOrGet(ctx, chatID, "")
	if path != types.ChatPath(chatID) {
		t.Errorf("unexpected path %q", path)
	}

	again := r.CreateOrGet(ctx, chatID, "Some Other Label")
	if again != path {
		t.Errorf("expected same path, got %q", again)
	}
	if got := len(r.Tabs()); got != 2 {
		t.Errorf("expected home + 1 chat tab, got %d", got)
	}

	tab, ok := r.FindByPath(path)
	if !ok {
		t.Fatal("expected tab findable by path")
	}
	if tab.Label != DefaultLabel {
		t.Errorf("expected default label kept, got %q", tab.Label)
	}
}

func TestRemoveIdempotent(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	chatID := types.NewChatID()

	path := r.CreateOrGet(ctx, chatID, "")
	r.Remove(ctx, chatID)
	if _, ok := r.FindByPath(path); ok {
		t.Error("expected tab removed")
	}

	// Second removal of the same ID must not panic or change anything.
	r.Remove(ctx, chatID)
	if got := len(r.Tabs()); got != 1 {
		t.Errorf("expected only the home tab, got %d", got)
	}
}

func TestHomeTabNeverRemoved(t *testing.T) {
	r, _ := newTestRegistry(t)
	tabs := r.Tabs()
	if len(tabs) != 1 || tabs[0].Kind != types.TabHome {
		t.Fatalf("expected singleton home tab, got %+v", tabs)
	}
}

func TestUpdateLabelOnlyOverwritesGeneric(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	chatID := types.NewChatID()
	path := r.CreateOrGet(ctx, chatID, "")

	r.UpdateLabel(ctx, chatID, "What is Bitcoin mining...")
	tab, _ := r.FindByPath(path)
	if tab.Label != "What is Bitcoin mining..." {
		t.Errorf("expected derived label applied, got %q", tab.Label)
	}

	// A later derivation attempt must not overwrite the non-generic label.
	r.UpdateLabel(ctx, chatID, "Something else entirely")
	tab, _ = r.FindByPath(path)
	if tab.Label != "What is Bitcoin mining..." {
		t.Errorf("non-generic label was overwritten, got %q", tab.Label)
	}
}

func TestUpdateLabelNewChatIsGeneric(t *testing.T) {
	r, s := newTestRegistry(t)
	ctx := context.Background()
	chatID := types.NewChatID()
	path := r.CreateOrGet(ctx, chatID, "New Chat")

	r.UpdateLabel(ctx, chatID, "Derived title...")
	tab, _ := r.FindByPath(path)
	if tab.Label != "Derived title..." {
		t.Errorf("expected 'New Chat' treated as generic, got %q", tab.Label)
	}

	// Label change must be persisted.
	stored, err := s.LoadTabs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, st := range stored {
		if st.Path == path && st.Label == "Derived title..." {
			found = true
		}
	}
	if !found {
		t.Error("label change not persisted")
	}
}

func TestSetLabelOverwritesAnything(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	chatID := types.NewChatID()
	path := r.CreateOrGet(ctx, chatID, "")

	r.UpdateLabel(ctx, chatID, "Derived title...")
	r.SetLabel(ctx, chatID, "My renamed chat")
	tab, _ := r.FindByPath(path)
	if tab.Label != "My renamed chat" {
		t.Errorf("expected manual rename applied, got %q", tab.Label)
	}

	// Derivation must not undo a manual rename.
	r.UpdateLabel(ctx, chatID, "Another derived title...")
	tab, _ = r.FindByPath(path)
	if tab.Label != "My renamed chat" {
		t.Errorf("manual rename overwritten by derivation, got %q", tab.Label)
	}
}

func TestOrderRecomputedDense(t *testing.T) {
	r, s := newTestRegistry(t)
	ctx := context.Background()

	first := types.NewChatID()
	second := types.NewChatID()
	third := types.NewChatID()
	r.CreateOrGet(ctx, first, "")
	r.CreateOrGet(ctx, second, "")
	r.CreateOrGet(ctx, third, "")

	// Removing the middle tab must not leave a gap in the persisted order.
	r.Remove(ctx, second)

	stored, err := s.LoadTabs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 3 {
		t.Fatalf("expected 3 tabs, got %d", len(stored))
	}
	for i, tab := range stored {
		if tab.Order != i {
			t.Errorf("tab %d: expected order %d, got %d", i, i, tab.Order)
		}
	}
}

func TestLoadRestoresPersistedLayout(t *testing.T) {
	r, s := newTestRegistry(t)
	ctx := context.Background()
	chatID := types.NewChatID()
	r.CreateOrGet(ctx, chatID, "Persisted")

	fresh := New(s)
	if err := fresh.Load(ctx, s); err != nil {
		t.Fatal(err)
	}
	tab, ok := fresh.FindByPath(types.ChatPath(chatID))
	if !ok {
		t.Fatal("expected tab restored from store")
	}
	if tab.Label != "Persisted" {
		t.Errorf("expected label restored, got %q", tab.Label)
	}
}

func TestLoadReconcilesFromChats(t *testing.T) {
	_, s := newTestRegistry(t)
	ctx := context.Background()

	// Simulate surviving chat data with no tab record.
	chatID := types.NewChatID()
	now := time.Now()
	pair := types.ConversationPair{
		ID:        types.NewPairID(),
		User:      &types.Message{ID: types.NewMessageID(), Content: "hi", Sender: types.SenderUser, Timestamp: now},
		Timestamp: now,
	}
	if err := s.SaveChat(ctx, chatID, "Recovered title...", []types.ConversationPair{pair}); err != nil {
		t.Fatal(err)
	}

	r := New(s)
	if err := r.Load(ctx, s); err != nil {
		t.Fatal(err)
	}

	tab, ok := r.FindByPath(types.ChatPath(chatID))
	if !ok {
		t.Fatal("expected tab rebuilt from stored chat")
	}
	if tab.Label != "Recovered title..." {
		t.Errorf("expected stored title as label, got %q", tab.Label)
	}

	// The reconstruction must itself have been persisted.
	stored, err := s.LoadTabs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 {
		t.Errorf("expected home + rebuilt chat tab persisted, got %d", len(stored))
	}
}
