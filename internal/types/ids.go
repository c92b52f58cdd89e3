// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

type ChatID string
type PairID string
type MessageID string
type TabID string

func NewChatID() ChatID {
	return ChatID(uuid.New().String())
}

func NewPairID() PairID {
	return PairID(uuid.New().String())
}

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

// ChatTabID derives the tab ID for a chat by convention: "chat-<chatID>".
func ChatTabID(chatID ChatID) TabID {
	return TabID("chat-" + string(chatID))
}

// ChatIDFromTab reverses ChatTabID. Returns false for the home tab or any
// tab that does not follow the chat naming convention.
func ChatIDFromTab(tabID TabID) (ChatID, bool) {
	s := string(tabID)
	if !strings.HasPrefix(s, "chat-") {
		return "", false
	}
	return ChatID(strings.TrimPrefix(s, "chat-")), true
}
