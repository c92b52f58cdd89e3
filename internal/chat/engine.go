// internal/chat/engine.go

// Package chat orchestrates one chat session: it owns the session state,
// opens cancellable completion streams, feeds deltas back into the state,
// and hands state changes to the save pipeline.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/merklechat/internal/prompt"
	"github.com/user/merklechat/internal/recovery"
	"github.com/user/merklechat/internal/session"
	"github.com/user/merklechat/internal/types"
	"github.com/user/merklechat/pkg/llm"
)

// Engine drives one chat session. All state reads go through State()
// snapshots; all mutations go through the pure transition function. The
// delta-consuming goroutine is the only concurrent actor and it reports
// back exclusively as commands.
type Engine struct {
	chatID   types.ChatID
	provider llm.Provider
	config   *llm.Config
	builder  *prompt.Builder
	saver    *recovery.Pipeline

	mu    sync.Mutex
	state session.State

	// gate enforces at most one active stream for this session.
	gate      *semaphore.Weighted
	cancel    context.CancelFunc
	cancelled atomic.Bool
	wg        sync.WaitGroup

	onChange func(session.State)
}

// NewEngine creates an Engine for one chat. saver may be nil (no
// persistence, the chat still works).
func NewEngine(chatID types.ChatID, provider llm.Provider, config *llm.Config, builder *prompt.Builder, saver *recovery.Pipeline) *Engine {
	return &Engine{
		chatID:   chatID,
		provider: provider,
		config:   config,
		builder:  builder,
		saver:    saver,
		gate:     semaphore.NewWeighted(1),
	}
}

// ChatID returns the session's chat ID.
func (e *Engine) ChatID() types.ChatID { return e.chatID }

// OnChange registers a callback invoked with a state snapshot after every
// transition. Set before any operation runs; used by the UI to render.
func (e *Engine) OnChange(fn func(session.State)) { e.onChange = fn }

// State returns a snapshot of the current session state.
func (e *Engine) State() session.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// dispatch applies the commands atomically and notifies the observer with
// the resulting snapshot. Conversation-changing commands also reschedule
// the debounced save.
func (e *Engine) dispatch(cmds ...session.Command) session.State {
	e.mu.Lock()
	persist := false
	for _, cmd := range cmds {
		e.state = session.Apply(e.state, cmd)
		switch cmd.(type) {
		case session.AddPair, session.UpdateMessageContent, session.SetConversations:
			persist = true
		}
	}
	snap := e.state
	e.mu.Unlock()

	if persist && e.saver != nil {
		e.saver.Schedule(e.chatID, snap.Conversations)
	}
	if e.onChange != nil {
		e.onChange(snap)
	}
	return snap
}

// SetDraft replaces the current draft text.
func (e *Engine) SetDraft(text string) { e.dispatch(session.SetDraft{Text: text}) }

// SetEditing marks a message as being edited; zero clears the mark.
func (e *Engine) SetEditing(id types.MessageID) { e.dispatch(session.SetEditing{MessageID: id}) }

// LoadHistory restores persisted conversations into the session, going
// through backup recovery when the durable record is missing.
func (e *Engine) LoadHistory(ctx context.Context) error {
	if e.saver == nil {
		return nil
	}
	chat, err := e.saver.Recover(ctx, e.chatID)
	if err != nil {
		return err
	}
	if chat != nil {
		e.dispatch(session.SetConversations{Conversations: chat.Conversations})
	}
	return nil
}

// Submit sends a user message. All-whitespace input is silently rejected
// with no state change. Returns ErrBusy while a stream is active and
// ErrNotConfigured when no API credentials exist; both leave state
// untouched. The reply streams in the background; Wait blocks until the
// stream reaches a terminal state.
func (e *Engine) Submit(ctx context.Context, content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}
	if !e.config.Configured() {
		return ErrNotConfigured
	}
	if !e.gate.TryAcquire(1) {
		return ErrBusy
	}

	now := time.Now()
	pair := types.ConversationPair{
		ID:        types.NewPairID(),
		User:      &types.Message{ID: types.NewMessageID(), Content: trimmed, Sender: types.SenderUser, Timestamp: now},
		System:    &types.Message{ID: types.NewMessageID(), Content: "", Sender: types.SenderSystem, Timestamp: now},
		Timestamp: now,
	}

	e.dispatch(
		session.SetLoading{Loading: true},
		session.SetError{},
		session.AddPair{Pair: pair},
		session.ClearDraft{},
	)

	e.startStream(ctx, pair.ID)
	return nil
}

// Edit applies an edit to the message with the given ID. Editing the user
// slot replaces its content and regenerates the reply in place, using only
// the history strictly before that pair as context. Editing the system
// slot is a plain content replacement. Unknown IDs are ignored. Returns
// ErrBusy while a stream is active.
func (e *Engine) Edit(ctx context.Context, id types.MessageID, content string) error {
	e.mu.Lock()
	if e.state.IsStreaming || e.state.IsLoading {
		e.mu.Unlock()
		return ErrBusy
	}
	pair, sender, ok := e.state.FindPairByMessage(id)
	e.mu.Unlock()
	if !ok {
		return nil
	}

	e.dispatch(
		session.UpdateMessageContent{PairID: pair.ID, Content: content, Sender: sender},
		session.SetEditing{},
		session.ClearDraft{},
	)

	if sender != types.SenderUser {
		return nil
	}
	if !e.config.Configured() {
		return ErrNotConfigured
	}
	if !e.gate.TryAcquire(1) {
		return ErrBusy
	}

	e.dispatch(session.SetLoading{Loading: true}, session.SetError{})
	e.startStream(ctx, pair.ID)
	return nil
}

// startStream opens the completion stream for the target pair and consumes
// it on a goroutine. Callers hold the gate; it is released on terminal
// state.
func (e *Engine) startStream(ctx context.Context, pairID types.PairID) {
	snap := e.State()
	messages := e.builder.Build(snap.Conversations, pairID)

	streamCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.cancelled.Store(false)
	e.mu.Unlock()

	// SUBMITTING -> STREAMING. Streaming is raised before loading drops so
	// an observer always sees exactly one of the two during an active send.
	e.dispatch(session.SetStreaming{Streaming: true}, session.SetLoading{Loading: false})

	// Reset the reply slot so regeneration starts from empty.
	e.dispatch(session.UpdateMessageContent{PairID: pairID, Content: ""})

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.release(cancel)

		ch, err := e.provider.Stream(streamCtx, messages)
		if err != nil {
			e.fail(err)
			return
		}

		var buffer strings.Builder
		for delta := range ch {
			if e.cancelled.Load() {
				break
			}
			if delta.Err != nil {
				e.fail(delta.Err)
				return
			}
			if delta.Content == "" {
				continue
			}
			buffer.WriteString(delta.Content)
			e.dispatch(session.UpdateMessageContent{PairID: pairID, Content: buffer.String()})
		}

		if e.cancelled.Load() {
			e.dispatch(
				session.SetStreaming{Streaming: false},
				session.SetLoading{Loading: false},
				session.SetError{Message: CancelledNotice},
			)
			return
		}
		e.dispatch(session.SetStreaming{Streaming: false}, session.SetLoading{Loading: false})
	}()
}

// fail records a terminal failure. Whatever partial content accumulated
// stays in place; cancellation is reported as a notice, not a failure.
func (e *Engine) fail(err error) {
	msg := UserMessage(err)
	if errors.Is(err, context.Canceled) || e.cancelled.Load() {
		msg = CancelledNotice
	}
	e.dispatch(
		session.SetStreaming{Streaming: false},
		session.SetLoading{Loading: false},
		session.SetError{Message: msg},
	)
}

// release hands back the stream gate and clears the cancellation handle.
func (e *Engine) release(cancel context.CancelFunc) {
	cancel()
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel = nil
	}
	e.mu.Unlock()
	e.gate.Release(1)
}

// Cancel signals the active stream, if any. Safe to call repeatedly and
// while idle. The delta loop checks the flag before each chunk and stops
// promptly; the partial reply is kept.
func (e *Engine) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	e.cancelled.Store(true)
	cancel()
}

// Wait blocks until any in-flight stream reaches a terminal state.
func (e *Engine) Wait() { e.wg.Wait() }

// Clear drops all conversation state and deletes the stored chat.
func (e *Engine) Clear(ctx context.Context, chats types.ChatStore) error {
	e.dispatch(session.ClearConversations{})
	if chats == nil {
		return nil
	}
	return chats.DeleteChat(ctx, e.chatID)
}
