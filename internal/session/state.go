// internal/session/state.go

// Package session holds the in-memory state for one chat and the pure
// transition function that advances it. Transitions never perform I/O;
// the chat engine issues I/O and feeds results back as further commands.
package session

import (
	"time"

	"github.com/user/merklechat/internal/types"
)

// State is the volatile per-chat view. It wraps the persisted conversation
// list with UI-facing flags; only Conversations survives a restart.
type State struct {
	Conversations    []types.ConversationPair
	Draft            string
	IsLoading        bool
	IsStreaming      bool
	Err              string
	EditingMessageID types.MessageID
}

// Apply returns the state after cmd. The input state is never mutated:
// changed pairs and messages are replaced wholesale while untouched ones
// keep their identity, so references captured by in-flight callbacks stay
// stable after capture.
func Apply(state State, cmd Command) State {
	switch c := cmd.(type) {
	case SetDraft:
		state.Draft = c.Text
	case ClearDraft:
		state.Draft = ""
	case AddPair:
		pair := c.Pair
		if pair.Timestamp.IsZero() {
			pair.Timestamp = time.Now()
		}
		state.Conversations = append(copyPairs(state.Conversations), pair)
	case SetConversations:
		state.Conversations = copyPairs(c.Conversations)
	case SetLoading:
		state.IsLoading = c.Loading
	case SetStreaming:
		state.IsStreaming = c.Streaming
	case SetError:
		state.Err = c.Message
	case UpdateMessageContent:
		state.Conversations = updateContent(state.Conversations, c.PairID, c.Content, c.Sender)
	case SetEditing:
		state.EditingMessageID = c.MessageID
	case ClearConversations:
		state.Conversations = nil
		state.Err = ""
	}
	return state
}

// FindPairByMessage returns the pair owning the given message ID and the
// sender slot it occupies.
func (s State) FindPairByMessage(id types.MessageID) (types.ConversationPair, types.Sender, bool) {
	for _, pair := range s.Conversations {
		if pair.User != nil && pair.User.ID == id {
			return pair, types.SenderUser, true
		}
		if pair.System != nil && pair.System.ID == id {
			return pair, types.SenderSystem, true
		}
	}
	return types.ConversationPair{}, "", false
}

// PairIndex returns the position of the pair with the given ID, or -1.
func (s State) PairIndex(id types.PairID) int {
	for i, pair := range s.Conversations {
		if pair.ID == id {
			return i
		}
	}
	return -1
}

func copyPairs(pairs []types.ConversationPair) []types.ConversationPair {
	out := make([]types.ConversationPair, len(pairs))
	copy(out, pairs)
	return out
}

// updateContent rebuilds the slice with a fresh pair and message for the
// target only. Pairs other than the target are carried over unchanged.
func updateContent(pairs []types.ConversationPair, id types.PairID, content string, sender types.Sender) []types.ConversationPair {
	out := make([]types.ConversationPair, len(pairs))
	for i, pair := range pairs {
		if pair.ID != id {
			out[i] = pair
			continue
		}
		updated := pair
		switch {
		case sender == types.SenderUser && pair.User != nil:
			msg := *pair.User
			msg.Content = content
			updated.User = &msg
		case sender == types.SenderSystem && pair.System != nil:
			msg := *pair.System
			msg.Content = content
			updated.System = &msg
		case sender == "" && pair.System != nil:
			msg := *pair.System
			msg.Content = content
			updated.System = &msg
		}
		out[i] = updated
	}
	return out
}
