// internal/tabs/registry.go

// Package tabs maintains the ordered list of open chat tabs and its
// persisted layout.
package tabs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/user/merklechat/internal/types"
)

// DefaultLabel is the placeholder for a tab whose chat has no title yet.
const DefaultLabel = "Untitled Chat"

// genericLabels are placeholders eligible for automatic replacement. A
// manual rename or a previously derived title is never overwritten.
var genericLabels = map[string]bool{
	"Untitled Chat": true,
	"New Chat":      true,
}

// IsGenericLabel reports whether label is a placeholder that derivation
// may replace.
func IsGenericLabel(label string) bool {
	return genericLabels[label]
}

// Registry is the in-memory tab list with persistence through a TabStore.
// The home tab is always present, first, and never removed.
type Registry struct {
	store types.TabStore

	mu   sync.Mutex
	tabs []types.Tab
}

// New creates a Registry containing only the home tab. Call Load to
// restore the persisted layout.
func New(store types.TabStore) *Registry {
	return &Registry{
		store: store,
		tabs:  []types.Tab{types.HomeTab()},
	}
}

// Load restores the persisted tab layout. When nothing was persisted it
// rebuilds the list from the stored chats (home plus one chat tab per
// session, labeled by stored title) and persists the reconstruction, so
// the layout is recoverable even if only chat data survived.
func (r *Registry) Load(ctx context.Context, chats types.ChatStore) error {
	stored, err := r.store.LoadTabs(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(stored) > 0 {
		r.tabs = ensureHome(stored)
		return nil
	}

	sessions, err := chats.LoadAllChats(ctx)
	if err != nil {
		return err
	}
	rebuilt := []types.Tab{types.HomeTab()}
	for _, session := range sessions {
		label := session.Title
		if label == "" {
			label = DefaultLabel
		}
		rebuilt = append(rebuilt, types.Tab{
			ID:    types.ChatTabID(session.ID),
			Label: label,
			Kind:  types.TabChat,
			Path:  types.ChatPath(session.ID),
		})
	}
	r.tabs = rebuilt
	r.saveLocked(ctx)
	return nil
}

// CreateOrGet returns the path for a chat's tab, appending a new tab when
// none exists. Idempotent: an existing tab's path is returned unchanged.
func (r *Registry) CreateOrGet(ctx context.Context, chatID types.ChatID, label string) string {
	path := types.ChatPath(chatID)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tab := range r.tabs {
		if tab.Path == path {
			return tab.Path
		}
	}

	if label == "" {
		label = DefaultLabel
	}
	r.tabs = append(r.tabs, types.Tab{
		ID:    types.ChatTabID(chatID),
		Label: label,
		Kind:  types.TabChat,
		Path:  path,
	})
	r.saveLocked(ctx)
	return path
}

// Remove drops the chat's tab. Removing an absent tab is a no-op. Callers
// removing the active tab navigate away first so nothing still renders
// against a tab that is gone.
func (r *Registry) Remove(ctx context.Context, chatID types.ChatID) {
	id := types.ChatTabID(chatID)

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.tabs[:0:0]
	removed := false
	for _, tab := range r.tabs {
		if tab.ID == id {
			removed = true
			continue
		}
		kept = append(kept, tab)
	}
	if !removed {
		return
	}
	r.tabs = kept
	r.saveLocked(ctx)
}

// UpdateLabel overwrites the tab's label only while the current one is a
// generic placeholder.
func (r *Registry) UpdateLabel(ctx context.Context, chatID types.ChatID, newLabel string) {
	id := types.ChatTabID(chatID)

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, tab := range r.tabs {
		if tab.ID != id {
			continue
		}
		if !IsGenericLabel(tab.Label) {
			return
		}
		r.tabs[i].Label = newLabel
		r.saveLocked(ctx)
		return
	}
}

// SetLabel overwrites the tab's label unconditionally. This is the manual
// rename path; automatic derivation goes through UpdateLabel.
func (r *Registry) SetLabel(ctx context.Context, chatID types.ChatID, newLabel string) {
	id := types.ChatTabID(chatID)

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, tab := range r.tabs {
		if tab.ID != id {
			continue
		}
		r.tabs[i].Label = newLabel
		r.saveLocked(ctx)
		return
	}
}

// FindByPath returns the tab with the given path.
func (r *Registry) FindByPath(path string) (types.Tab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tab := range r.tabs {
		if tab.Path == path {
			return tab, true
		}
	}
	return types.Tab{}, false
}

// Tabs returns a copy of the current tab list in order.
func (r *Registry) Tabs() []types.Tab {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.Tab, len(r.tabs))
	copy(out, r.tabs)
	return out
}

// saveLocked persists the layout with a freshly recomputed dense order.
// Storage failures degrade to in-memory tabs rather than failing the
// mutation.
func (r *Registry) saveLocked(ctx context.Context) {
	for i := range r.tabs {
		r.tabs[i].Order = i
	}
	if err := r.store.SaveTabs(ctx, r.tabs); err != nil {
		slog.Error("failed to persist tab layout", "error", err)
	}
}

// ensureHome guarantees the home tab is present and first.
func ensureHome(tabs []types.Tab) []types.Tab {
	for i, tab := range tabs {
		if tab.Kind == types.TabHome {
			if i == 0 {
				return tabs
			}
			reordered := []types.Tab{tab}
			reordered = append(reordered, tabs[:i]...)
			return append(reordered, tabs[i+1:]...)
		}
	}
	return append([]types.Tab{types.HomeTab()}, tabs...)
}
