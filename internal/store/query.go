// internal/store/query.go
package store

import (
	"context"
	"strings"

	"github.com/user/merklechat/internal/types"
)

// Search scans every stored chat for messages containing query,
// case-insensitively. Whitespace-only queries match nothing.
func Search(ctx context.Context, chats types.ChatStore, query string) ([]types.SearchResult, error) {
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return nil, nil
	}

	all, err := chats.LoadAllChats(ctx)
	if err != nil {
		return nil, err
	}

	var results []types.SearchResult
	for _, chat := range all {
		var matches []types.SearchMatch
		for _, pair := range chat.Conversations {
			for _, msg := range []*types.Message{pair.User, pair.System} {
				if msg == nil {
					continue
				}
				if strings.Contains(strings.ToLower(msg.Content), term) {
					matches = append(matches, types.SearchMatch{
						PairID:    pair.ID,
						MessageID: msg.ID,
						Content:   msg.Content,
						Sender:    msg.Sender,
						Timestamp: msg.Timestamp,
					})
				}
			}
		}
		if len(matches) > 0 {
			results = append(results, types.SearchResult{
				ChatID:  chat.ID,
				Title:   chat.Title,
				Matches: matches,
			})
		}
	}
	return results, nil
}

// Stats summarizes the store contents for the list view.
func Stats(ctx context.Context, chats types.ChatStore) (*types.StorageStats, error) {
	all, err := chats.LoadAllChats(ctx)
	if err != nil {
		return nil, err
	}

	stats := &types.StorageStats{ChatCount: len(all)}
	for _, chat := range all {
		stats.TotalMessages += chat.MessageCount()
		created := chat.CreatedAt
		if stats.OldestChat == nil || created.Before(*stats.OldestChat) {
			t := created
			stats.OldestChat = &t
		}
		if stats.NewestChat == nil || created.After(*stats.NewestChat) {
			t := created
			stats.NewestChat = &t
		}
	}
	return stats, nil
}
