// internal/chat/engine_test.go
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/user/merklechat/internal/prompt"
	"github.com/user/merklechat/internal/session"
	"github.com/user/merklechat/internal/types"
	"github.com/user/merklechat/pkg/llm"
)

// fakeProvider scripts a sequence of deltas. When blockAfter >= 0 the
// stream stalls after that many deltas until released or cancelled.
type fakeProvider struct {
	deltas     []string
	streamErr  error
	openErr    error
	blockAfter int
	release    chan struct{}

	mu       sync.Mutex
	requests [][]llm.Message
}

func newFakeProvider(deltas ...string) *fakeProvider {
	return &fakeProvider{deltas: deltas, blockAfter: -1, release: make(chan struct{})}
}

func (f *fakeProvider) Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvider) Stream(ctx context.Context, messages []llm.Message) (<-chan llm.Delta, error) {
	f.mu.Lock()
	f.requests = append(f.requests, messages)
	f.mu.Unlock()

	if f.openErr != nil {
		return nil, f.openErr
	}

	ch := make(chan llm.Delta)
	go func() {
		defer close(ch)
		for i, d := range f.deltas {
			if f.blockAfter >= 0 && i == f.blockAfter {
				select {
				case <-f.release:
				case <-ctx.Done():
					f.sendErr(ch, ctx.Err())
					return
				}
			}
			select {
			case ch <- llm.Delta{Content: d}:
			case <-ctx.Done():
				f.sendErr(ch, ctx.Err())
				return
			}
		}
		if f.streamErr != nil {
			ch <- llm.Delta{Err: f.streamErr}
		}
	}()
	return ch, nil
}

// sendErr delivers a terminal error without blocking; the consumer may
// have already stopped reading after a cancel.
func (f *fakeProvider) sendErr(ch chan llm.Delta, err error) {
	select {
	case ch <- llm.Delta{Err: err}:
	default:
	}
}

func (f *fakeProvider) lastRequest() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func newTestEngine(t *testing.T, provider llm.Provider) *Engine {
	t.Helper()
	builder, err := prompt.New("gpt-4", 128000, 4096, "")
	if err != nil {
		t.Fatal(err)
	}
	cfg := &llm.Config{APIKey: "test-key", Model: "gpt-4o"}
	return NewEngine(types.NewChatID(), provider, cfg, builder, nil)
}

func TestSubmitAppendsPair(t *testing.T) {
	provider := newFakeProvider("Hi", " there")
	e := newTestEngine(t, provider)

	if err := e.Submit(context.Background(), "Hello"); err != nil {
		t.Fatal(err)
	}

	// Immediately after dispatch, before any delta: one pair with the
	// trimmed user content and an empty reply placeholder.
	state := e.State()
	if len(state.Conversations) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(state.Conversations))
	}
	if state.Conversations[0].User.Content != "Hello" {
		t.Errorf("expected user content 'Hello', got %q", state.Conversations[0].User.Content)
	}

	e.Wait()

	state = e.State()
	if state.Conversations[0].System.Content != "Hi there" {
		t.Errorf("expected streamed reply, got %q", state.Conversations[0].System.Content)
	}
	if state.IsLoading || state.IsStreaming {
		t.Error("expected both flags false after completion")
	}
	if state.Err != "" {
		t.Errorf("expected no error, got %q", state.Err)
	}
}

func TestSubmitWhitespaceRejectedSilently(t *testing.T) {
	provider := newFakeProvider()
	e := newTestEngine(t, provider)

	if err := e.Submit(context.Background(), "   \n\t  "); err != nil {
		t.Fatal(err)
	}
	e.Wait()

	state := e.State()
	if len(state.Conversations) != 0 {
		t.Error("whitespace-only input must not append a pair")
	}
	if state.Err != "" {
		t.Error("whitespace-only input must not surface an error")
	}
	if provider.lastRequest() != nil {
		t.Error("whitespace-only input must not reach the provider")
	}
}

func TestSubmitTrimsContent(t *testing.T) {
	provider := newFakeProvider("ok")
	e := newTestEngine(t, provider)

	if err := e.Submit(context.Background(), "  Hello  "); err != nil {
		t.Fatal(err)
	}
	e.Wait()

	if got := e.State().Conversations[0].User.Content; got != "Hello" {
		t.Errorf("expected trimmed content, got %q", got)
	}
}

func TestSubmitNotConfigured(t *testing.T) {
	provider := newFakeProvider("never")
	builder, err := prompt.New("gpt-4", 128000, 4096, "")
	if err != nil {
		t.Fatal(err)
	}
	e := NewEngine(types.NewChatID(), provider, &llm.Config{}, builder, nil)

	err = e.Submit(context.Background(), "Hello")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if len(e.State().Conversations) != 0 {
		t.Error("unconfigured submit must not change state")
	}
}

func TestStreamingDeltasAreDistinctStates(t *testing.T) {
	provider := newFakeProvider("Hi", " there")
	e := newTestEngine(t, provider)

	var mu sync.Mutex
	var seen []string
	e.OnChange(func(s session.State) {
		if len(s.Conversations) == 0 {
			return
		}
		mu.Lock()
		seen = append(seen, s.Conversations[0].System.Content)
		mu.Unlock()
	})

	if err := e.Submit(context.Background(), "Hello"); err != nil {
		t.Fatal(err)
	}
	e.Wait()

	mu.Lock()
	defer mu.Unlock()

	// The reply must pass through "" -> "Hi" -> "Hi there" as observable
	// states, in order.
	var want = []string{"", "Hi", "Hi there"}
	wi := 0
	for _, content := range seen {
		if wi < len(want) && content == want[wi] {
			wi++
		}
	}
	if wi != len(want) {
		t.Errorf("expected observable progression %v, saw %v", want, seen)
	}
}

func TestFlagPhasing(t *testing.T) {
	provider := newFakeProvider("Hi")
	provider.blockAfter = 0
	e := newTestEngine(t, provider)

	var mu sync.Mutex
	bothTrue := false
	e.OnChange(func(s session.State) {
		mu.Lock()
		if s.IsLoading && s.IsStreaming {
			bothTrue = true
		}
		mu.Unlock()
	})

	if err := e.Submit(context.Background(), "Hello"); err != nil {
		t.Fatal(err)
	}
	close(provider.release)
	e.Wait()

	mu.Lock()
	defer mu.Unlock()
	if bothTrue {
		t.Error("loading and streaming must never both be true")
	}

	state := e.State()
	if state.IsLoading || state.IsStreaming {
		t.Error("both flags must be false at terminal state")
	}
}

func TestCancelKeepsPartialContent(t *testing.T) {
	provider := newFakeProvider("partial", " rest")
	provider.blockAfter = 1
	e := newTestEngine(t, provider)

	if err := e.Submit(context.Background(), "Hello"); err != nil {
		t.Fatal(err)
	}

	// Wait until the first delta landed, then cancel mid-stream.
	waitFor(t, func() bool {
		s := e.State()
		return len(s.Conversations) == 1 && s.Conversations[0].System.Content == "partial"
	})

	e.Cancel()
	e.Wait()

	state := e.State()
	if state.Conversations[0].System.Content != "partial" {
		t.Errorf("partial content must be kept after cancel, got %q", state.Conversations[0].System.Content)
	}
	if state.Err != CancelledNotice {
		t.Errorf("expected cancellation notice, got %q", state.Err)
	}
	if state.IsStreaming || state.IsLoading {
		t.Error("expected flags cleared after cancel")
	}

	// Cancel is repeat-safe and a no-op while idle.
	e.Cancel()
	e.Cancel()
}

func TestSubmitWhileStreamingRejected(t *testing.T) {
	provider := newFakeProvider("slow")
	provider.blockAfter = 0
	e := newTestEngine(t, provider)

	if err := e.Submit(context.Background(), "first"); err != nil {
		t.Fatal(err)
	}

	err := e.Submit(context.Background(), "second")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if len(e.State().Conversations) != 1 {
		t.Error("rejected submit must not append a pair")
	}

	close(provider.release)
	e.Wait()
}

func TestStreamFailureMapsError(t *testing.T) {
	provider := newFakeProvider("some")
	provider.streamErr = fmt.Errorf("API error (status 429): slow down")
	e := newTestEngine(t, provider)

	if err := e.Submit(context.Background(), "Hello"); err != nil {
		t.Fatal(err)
	}
	e.Wait()

	state := e.State()
	if state.Err != "Rate limit exceeded. Please wait a moment and try again." {
		t.Errorf("unexpected mapped error %q", state.Err)
	}
	// Partial content survives the failure.
	if state.Conversations[0].System.Content != "some" {
		t.Errorf("partial buffer lost on failure, got %q", state.Conversations[0].System.Content)
	}
}

func TestOpenFailure(t *testing.T) {
	provider := newFakeProvider()
	provider.openErr = fmt.Errorf("API error (status 401): bad key")
	e := newTestEngine(t, provider)

	if err := e.Submit(context.Background(), "Hello"); err != nil {
		t.Fatal(err)
	}
	e.Wait()

	state := e.State()
	if state.Err != "Invalid API key. Please configure your OpenAI API key properly." {
		t.Errorf("unexpected mapped error %q", state.Err)
	}
	if state.IsLoading || state.IsStreaming {
		t.Error("expected flags cleared after open failure")
	}

	// The gate must be free again: a new submit goes through.
	provider.openErr = nil
	provider.deltas = []string{"recovered"}
	if err := e.Submit(context.Background(), "again"); err != nil {
		t.Fatal(err)
	}
	e.Wait()
}

func TestPromptExcludesTargetReplyAndLaterPairs(t *testing.T) {
	provider := newFakeProvider("first reply")
	e := newTestEngine(t, provider)

	if err := e.Submit(context.Background(), "first question"); err != nil {
		t.Fatal(err)
	}
	e.Wait()

	provider.deltas = []string{"second reply"}
	if err := e.Submit(context.Background(), "second question"); err != nil {
		t.Fatal(err)
	}
	e.Wait()

	msgs := provider.lastRequest()
	// system prompt, first question, first reply, second question
	if len(msgs) != 4 {
		t.Fatalf("expected 4 prompt messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].Role != "system" {
		t.Error("expected system instruction first")
	}
	if msgs[3].Content != "second question" {
		t.Errorf("expected target user message last, got %q", msgs[3].Content)
	}
	for _, m := range msgs[:3] {
		if m.Content == "second reply" {
			t.Error("target pair's reply leaked into its own context")
		}
	}
}

func TestEditUserMessageRegenerates(t *testing.T) {
	provider := newFakeProvider("original reply")
	e := newTestEngine(t, provider)

	if err := e.Submit(context.Background(), "original question"); err != nil {
		t.Fatal(err)
	}
	e.Wait()

	pair := e.State().Conversations[0]

	provider.deltas = []string{"regenerated reply"}
	if err := e.Edit(context.Background(), pair.User.ID, "edited question"); err != nil {
		t.Fatal(err)
	}
	e.Wait()

	state := e.State()
	if len(state.Conversations) != 1 {
		t.Fatalf("regeneration must reuse the pair, got %d pairs", len(state.Conversations))
	}
	got := state.Conversations[0]
	if got.ID != pair.ID {
		t.Error("expected same pair ID after regeneration")
	}
	if got.User.Content != "edited question" {
		t.Errorf("expected edited user content, got %q", got.User.Content)
	}
	if got.System.Content != "regenerated reply" {
		t.Errorf("expected reply overwritten, got %q", got.System.Content)
	}

	// The regeneration prompt must not contain the old reply.
	for _, m := range provider.lastRequest() {
		if m.Content == "original reply" {
			t.Error("old reply used as context for its own regeneration")
		}
	}
}

func TestEditSystemMessagePlainReplacement(t *testing.T) {
	provider := newFakeProvider("a reply")
	e := newTestEngine(t, provider)

	if err := e.Submit(context.Background(), "question"); err != nil {
		t.Fatal(err)
	}
	e.Wait()

	pair := e.State().Conversations[0]
	requestsBefore := len(provider.requests)

	if err := e.Edit(context.Background(), pair.System.ID, "hand-fixed reply"); err != nil {
		t.Fatal(err)
	}
	e.Wait()

	if got := e.State().Conversations[0].System.Content; got != "hand-fixed reply" {
		t.Errorf("expected replaced reply, got %q", got)
	}
	if len(provider.requests) != requestsBefore {
		t.Error("editing the system slot must not trigger regeneration")
	}
}

func TestEditWhileStreamingRejected(t *testing.T) {
	provider := newFakeProvider("slow")
	provider.blockAfter = 0
	e := newTestEngine(t, provider)

	if err := e.Submit(context.Background(), "question"); err != nil {
		t.Fatal(err)
	}
	pair := e.State().Conversations[0]

	err := e.Edit(context.Background(), pair.User.ID, "changed")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(provider.release)
	e.Wait()
}

func TestEditUnknownMessageIgnored(t *testing.T) {
	provider := newFakeProvider()
	e := newTestEngine(t, provider)

	if err := e.Edit(context.Background(), types.NewMessageID(), "anything"); err != nil {
		t.Fatal(err)
	}
}
