package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/user/merklechat/internal/chat"
	"github.com/user/merklechat/internal/prompt"
	"github.com/user/merklechat/internal/recovery"
	"github.com/user/merklechat/internal/tabs"
	"github.com/user/merklechat/internal/types"
	"github.com/user/merklechat/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat [chat-id]",
	Short: "Start or resume an interactive chat",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChat,
}

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
)

// markdownRenderer renders assistant replies on a TTY. Nil means plain
// text passthrough.
var markdownRenderer *glamour.TermRenderer

func init() {
	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		markdownRenderer = nil
	}
}

func renderMarkdown(content string) string {
	if markdownRenderer == nil || !isStdoutTTY() {
		return content + "\n"
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content + "\n"
	}
	return rendered
}

func isStdoutTTY() bool {
	stat, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)
	ctx := context.Background()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	var chatID types.ChatID
	if len(args) == 1 {
		chatID = types.ChatID(args[0])
	} else {
		chatID = types.NewChatID()
	}

	llmCfg := cfg.LLMConfig()
	provider := openai.New(llmCfg)
	builder, err := prompt.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve, cfg.LLM.SystemPrompt)
	if err != nil {
		return fmt.Errorf("create prompt builder: %w", err)
	}

	engine := chat.NewEngine(chatID, provider, llmCfg, builder, a.saver)
	if err := engine.LoadHistory(ctx); err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	label := tabs.DefaultLabel
	if len(engine.State().Conversations) > 0 {
		label = recovery.DeriveTitle(engine.State().Conversations)
	}
	a.registry.CreateOrGet(ctx, chatID, label)

	if !llmCfg.Configured() {
		fmt.Println(noticeStyle.Render(chat.ConfigNotice))
	}

	// Replay existing history so a resumed chat reads top to bottom.
	for _, pair := range engine.State().Conversations {
		if pair.User != nil {
			fmt.Println(promptStyle.Render("> ") + pair.User.Content)
		}
		if pair.System != nil && pair.System.Content != "" {
			fmt.Print(renderMarkdown(pair.System.Content))
		}
	}

	// First interrupt cancels the active stream; an interrupt while idle
	// takes the shutdown path so the backup record is written.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for range sigCh {
			if engine.State().IsStreaming || engine.State().IsLoading {
				engine.Cancel()
				continue
			}
			a.saver.Shutdown(context.Background())
			os.Exit(0)
		}
	}()

	fmt.Println(noticeStyle.Render("Type a message, /edit <n> <text>, /cancel, or /quit."))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("> "))
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		target := -1
		switch {
		case strings.TrimSpace(line) == "/quit":
			a.saver.Flush(ctx)
			return nil
		case strings.TrimSpace(line) == "/cancel":
			engine.Cancel()
			continue
		case strings.TrimSpace(line) == "/clear":
			if err := engine.Clear(ctx, a.chats); err != nil {
				fmt.Println(errStyle.Render("Failed to clear: " + err.Error()))
				continue
			}
			a.registry.Remove(ctx, chatID)
			if err := a.backups.DeleteBackup(chatID); err != nil {
				fmt.Println(errStyle.Render("Failed to drop backup: " + err.Error()))
			}
			fmt.Println(noticeStyle.Render("Conversation cleared."))
			continue
		case strings.HasPrefix(strings.TrimSpace(line), "/edit"):
			idx, err := runEdit(ctx, engine, strings.TrimSpace(line))
			if err != nil {
				fmt.Println(errStyle.Render(err.Error()))
				continue
			}
			target = idx
		case strings.TrimSpace(line) == "":
			continue
		default:
			if err := engine.Submit(ctx, line); err != nil {
				fmt.Println(errStyle.Render(chat.UserMessage(err)))
				continue
			}
		}

		engine.Wait()
		showOutcome(engine, target)
	}

	a.saver.Flush(ctx)
	return scanner.Err()
}

// runEdit parses "/edit <n> <text>" where n is the 1-based pair number,
// and replaces that pair's user message, regenerating the reply. Returns
// the zero-based index of the edited pair.
func runEdit(ctx context.Context, engine *chat.Engine, line string) (int, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 3 {
		return -1, fmt.Errorf("usage: /edit <n> <new text>")
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return -1, fmt.Errorf("usage: /edit <n> <new text>")
	}
	conversations := engine.State().Conversations
	if n < 1 || n > len(conversations) {
		return -1, fmt.Errorf("no message %d (have %d)", n, len(conversations))
	}
	pair := conversations[n-1]
	if pair.User == nil {
		return -1, fmt.Errorf("message %d has no user content to edit", n)
	}
	if err := engine.Edit(ctx, pair.User.ID, parts[2]); err != nil {
		return -1, fmt.Errorf("edit: %s", chat.UserMessage(err))
	}
	return n - 1, nil
}

// showOutcome prints the reply at target (or the newest pair when target
// is negative), or the error state when the send did not complete
// cleanly. Cancelled streams keep their partial text.
func showOutcome(engine *chat.Engine, target int) {
	state := engine.State()
	if target < 0 {
		target = len(state.Conversations) - 1
	}
	if target >= 0 && target < len(state.Conversations) {
		pair := state.Conversations[target]
		if pair.System != nil && pair.System.Content != "" {
			fmt.Print(renderMarkdown(pair.System.Content))
		}
	}
	if state.Err != "" {
		if state.Err == chat.CancelledNotice {
			fmt.Println(noticeStyle.Render(state.Err))
		} else {
			fmt.Println(errStyle.Render(state.Err))
		}
	}
	slog.Debug("send finished", "pairs", len(state.Conversations), "err", state.Err)
}
