package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/user/merklechat/internal/types"
)

func init() {
	rootCmd.AddCommand(renameCmd, deleteCmd, tabsCmd, clearCmd)
}

// resolveChat expands a full or 8-char short ID into a stored chat.
func resolveChat(ctx context.Context, a *app, id string) (*types.ChatSession, error) {
	chat, err := a.chats.LoadChat(ctx, types.ChatID(id))
	if err != nil {
		return nil, fmt.Errorf("load chat: %w", err)
	}
	if chat != nil {
		return chat, nil
	}

	all, err := a.chats.LoadAllChats(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chats: %w", err)
	}
	var found *types.ChatSession
	for _, c := range all {
		if strings.HasPrefix(string(c.ID), id) {
			if found != nil {
				return nil, fmt.Errorf("ambiguous chat ID prefix: %s", id)
			}
			found = c
		}
	}
	if found == nil {
		return nil, fmt.Errorf("chat not found: %s", id)
	}
	return found, nil
}

var renameCmd = &cobra.Command{
	Use:   "rename <chat-id> <title>",
	Short: "Rename a chat",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := context.Background()

		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		chat, err := resolveChat(ctx, a, args[0])
		if err != nil {
			return err
		}
		if err := a.chats.SaveChat(ctx, chat.ID, args[1], chat.Conversations); err != nil {
			return fmt.Errorf("rename chat: %w", err)
		}
		a.registry.SetLabel(ctx, chat.ID, args[1])
		fmt.Printf("Renamed %s to %q\n", chat.ID, args[1])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <chat-id>",
	Short: "Delete a chat and its tab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := context.Background()

		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		chat, err := resolveChat(ctx, a, args[0])
		if err != nil {
			return err
		}
		if err := a.chats.DeleteChat(ctx, chat.ID); err != nil {
			return fmt.Errorf("delete chat: %w", err)
		}
		a.registry.Remove(ctx, chat.ID)
		if err := a.backups.DeleteBackup(chat.ID); err != nil {
			return fmt.Errorf("delete backup: %w", err)
		}
		fmt.Printf("Deleted %s\n", chat.ID)
		return nil
	},
}

var tabsCmd = &cobra.Command{
	Use:   "tabs",
	Short: "Show the tab bar state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := context.Background()

		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, titleStyle.Render("#")+"\t"+titleStyle.Render("Label")+"\t"+titleStyle.Render("Kind")+"\t"+titleStyle.Render("Path")+"\t")
		for _, tab := range a.registry.Tabs() {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t\n", tab.Order, tab.Label, tab.Kind, idStyle.Render(tab.Path))
		}
		return w.Flush()
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all chats and tabs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := context.Background()

		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.chats.ClearAll(ctx); err != nil {
			return fmt.Errorf("clear chats: %w", err)
		}
		// Backups must go too or recovery would resurrect deleted chats.
		if err := a.backups.Clear(); err != nil {
			return fmt.Errorf("clear backups: %w", err)
		}
		if err := a.registry.Load(ctx, a.chats); err != nil {
			return fmt.Errorf("reset tabs: %w", err)
		}
		fmt.Println("All chats cleared.")
		return nil
	},
}
