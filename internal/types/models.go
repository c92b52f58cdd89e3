// internal/types/models.go
package types

import (
	"time"
)

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderSystem Sender = "system"
)

// Message is a single utterance. Content holds the raw text as entered
// (markup included for user messages); sanitization happens at the
// completion-API boundary, not here.
type Message struct {
	ID        MessageID `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationPair is one user turn plus its (possibly still streaming)
// assistant reply. The user slot is always populated when a pair is created
// through a send; the system slot starts empty and fills incrementally.
type ConversationPair struct {
	ID        PairID    `json:"id"`
	User      *Message  `json:"user,omitempty"`
	System    *Message  `json:"system,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession is one tab's full history as stored.
type ChatSession struct {
	ID            ChatID             `json:"id"`
	Title         string             `json:"title"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	Conversations []ConversationPair `json:"conversations"`
}

// MessageCount returns the number of populated message slots.
func (c *ChatSession) MessageCount() int {
	n := 0
	for _, pair := range c.Conversations {
		if pair.User != nil {
			n++
		}
		if pair.System != nil {
			n++
		}
	}
	return n
}

// Preview returns the first user message truncated to 100 characters,
// or "" for a chat with no user messages yet.
func (c *ChatSession) Preview() string {
	for _, pair := range c.Conversations {
		if pair.User == nil || pair.User.Content == "" {
			continue
		}
		content := pair.User.Content
		if runes := []rune(content); len(runes) > 100 {
			content = string(runes[:100]) + "..."
		}
		return content
	}
	return ""
}

// TabKind distinguishes the singleton home tab from chat tabs.
type TabKind string

const (
	TabHome TabKind = "home"
	TabChat TabKind = "chat"
)

// Tab is a handle onto either the home view or one chat session.
// Order is dense (0..n-1) and recomputed on every save.
type Tab struct {
	ID    TabID   `json:"id"`
	Label string  `json:"label"`
	Kind  TabKind `json:"kind"`
	Path  string  `json:"path"`
	Order int     `json:"order"`
}

// HomeTab returns the singleton home tab. It is always present and never
// removed.
func HomeTab() Tab {
	return Tab{ID: "home", Label: "Home", Kind: TabHome, Path: "/", Order: 0}
}

// ChatPath returns the navigation path for a chat.
func ChatPath(chatID ChatID) string {
	return "/" + string(chatID)
}

// BackupRecord is the minimal synchronous snapshot written on shutdown so
// that an interrupted durable write loses at most one generation of data.
type BackupRecord struct {
	ID            ChatID             `json:"id"`
	Title         string             `json:"title"`
	Conversations []ConversationPair `json:"conversations"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// SearchMatch is one content hit inside a chat.
type SearchMatch struct {
	PairID    PairID    `json:"pair_id"`
	MessageID MessageID `json:"message_id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// SearchResult groups the matches found in a single chat.
type SearchResult struct {
	ChatID  ChatID        `json:"chat_id"`
	Title   string        `json:"title"`
	Matches []SearchMatch `json:"matches"`
}

// StorageStats summarizes what the store currently holds.
type StorageStats struct {
	ChatCount     int
	TotalMessages int
	OldestChat    *time.Time
	NewestChat    *time.Time
}
