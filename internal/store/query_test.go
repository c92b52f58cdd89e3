// internal/store/query_test.go
package store

import (
	"context"
	"testing"

	"github.com/user/merklechat/internal/types"
)

func TestSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bitcoin := types.NewChatID()
	other := types.NewChatID()
	if err := s.SaveChat(ctx, bitcoin, "Bitcoin chat", []types.ConversationPair{
		testPair("What is Bitcoin mining", "Mining secures the network."),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveChat(ctx, other, "Unrelated", []types.ConversationPair{
		testPair("hello there", "hi"),
	}); err != nil {
		t.Fatal(err)
	}

	results, err := Search(ctx, s, "MINING")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 chat hit, got %d", len(results))
	}
	if results[0].ChatID != bitcoin {
		t.Errorf("expected hit in bitcoin chat, got %s", results[0].ChatID)
	}
	// "mining" appears in the user message and the reply.
	if len(results[0].Matches) != 2 {
		t.Errorf("expected 2 matches, got %d", len(results[0].Matches))
	}
}

func TestSearchBlankQuery(t *testing.T) {
	s := newTestStore(t)
	results, err := Search(context.Background(), s, "   ")
	if err != nil {
		t.Fatal(err)
	}
	if results != nil {
		t.Errorf("expected no results for blank query, got %v", results)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stats, err := Stats(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if stats.ChatCount != 0 || stats.TotalMessages != 0 {
		t.Errorf("expected empty stats, got %+v", stats)
	}
	if stats.OldestChat != nil || stats.NewestChat != nil {
		t.Error("expected nil date bounds for empty store")
	}

	if err := s.SaveChat(ctx, types.NewChatID(), "a", []types.ConversationPair{testPair("1", "2")}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveChat(ctx, types.NewChatID(), "b", []types.ConversationPair{testPair("3", "4"), testPair("5", "6")}); err != nil {
		t.Fatal(err)
	}

	stats, err = Stats(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if stats.ChatCount != 2 {
		t.Errorf("expected 2 chats, got %d", stats.ChatCount)
	}
	if stats.TotalMessages != 6 {
		t.Errorf("expected 6 messages, got %d", stats.TotalMessages)
	}
	if stats.OldestChat == nil || stats.NewestChat == nil {
		t.Fatal("expected date bounds")
	}
	if stats.OldestChat.After(*stats.NewestChat) {
		t.Error("oldest chat after newest")
	}
}
