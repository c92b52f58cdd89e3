// internal/session/command.go
package session

import (
	"github.com/user/merklechat/internal/types"
)

// Command is a tagged variant describing one state transition. Commands
// carry data only; Apply is the single place transitions happen.
type Command interface {
	isCommand()
}

// SetDraft replaces the current draft message.
type SetDraft struct {
	Text string
}

// ClearDraft empties the current draft message.
type ClearDraft struct{}

// AddPair appends a conversation pair. A zero pair timestamp is assigned
// at apply time.
type AddPair struct {
	Pair types.ConversationPair
}

// SetConversations replaces the full conversation list (used when loading
// a stored chat).
type SetConversations struct {
	Conversations []types.ConversationPair
}

// SetLoading sets the loading flag. Independent of the other flags;
// callers own the sequencing.
type SetLoading struct {
	Loading bool
}

// SetStreaming sets the streaming flag.
type SetStreaming struct {
	Streaming bool
}

// SetError sets the error notice. An empty message clears it.
type SetError struct {
	Message string
}

// UpdateMessageContent replaces the content of one message inside the pair
// matching PairID. A zero Sender targets the system slot, which is how
// streaming deltas land. Unknown pair IDs are a no-op.
type UpdateMessageContent struct {
	PairID  types.PairID
	Content string
	Sender  types.Sender
}

// SetEditing records which message is being edited; zero clears it.
type SetEditing struct {
	MessageID types.MessageID
}

// ClearConversations drops all pairs and clears the error.
type ClearConversations struct{}

func (SetDraft) isCommand()             {}
func (ClearDraft) isCommand()           {}
func (AddPair) isCommand()              {}
func (SetConversations) isCommand()     {}
func (SetLoading) isCommand()           {}
func (SetStreaming) isCommand()         {}
func (SetError) isCommand()             {}
func (UpdateMessageContent) isCommand() {}
func (SetEditing) isCommand()           {}
func (ClearConversations) isCommand()   {}
