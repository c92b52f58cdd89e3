package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/user/merklechat/internal/store"
)

var listShowStats bool

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listShowStats, "stats", false, "show storage statistics")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored chats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := context.Background()

		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		chats, err := a.chats.LoadAllChats(ctx)
		if err != nil {
			return fmt.Errorf("load chats: %w", err)
		}

		if len(chats) == 0 {
			fmt.Println(headerStyle.Render("No chats found"))
			return nil
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("Found %d chat(s)", len(chats))))
		fmt.Println()

		w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Updated")+"\t")
		_, _ = fmt.Fprintln(w, strings.Repeat("─", 80))

		for _, chat := range chats {
			title := chat.Title
			if title == "" {
				title = "Untitled Chat"
			}
			if runes := []rune(title); len(runes) > 50 {
				title = string(runes[:47]) + "..."
			}

			shortID := string(chat.ID)
			if len(shortID) > 8 {
				shortID = shortID[:8]
			}

			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n",
				idStyle.Render(shortID),
				title,
				countStyle.Render(strconv.Itoa(chat.MessageCount())),
				dateStyle.Render(relativeDate(chat.UpdatedAt)),
			)
			if preview := chat.Preview(); preview != "" {
				_, _ = fmt.Fprintf(w, "\t%s\t\t\t\n", dateStyle.Render(strings.Join(strings.Fields(preview), " ")))
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if listShowStats {
			fmt.Println()
			return printStats(ctx, a.chats)
		}
		return nil
	},
}

func relativeDate(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < 24*time.Hour:
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func printStats(ctx context.Context, chats *store.SQLiteStore) error {
	stats, err := store.Stats(ctx, chats)
	if err != nil {
		return fmt.Errorf("compute stats: %w", err)
	}
	fmt.Println(headerStyle.Render("Storage"))
	fmt.Printf("  Chats:    %s\n", countStyle.Render(strconv.Itoa(stats.ChatCount)))
	fmt.Printf("  Messages: %s\n", countStyle.Render(strconv.Itoa(stats.TotalMessages)))
	if stats.OldestChat != nil {
		fmt.Printf("  Oldest:   %s\n", dateStyle.Render(stats.OldestChat.Format("2006-01-02 15:04")))
	}
	if stats.NewestChat != nil {
		fmt.Printf("  Newest:   %s\n", dateStyle.Render(stats.NewestChat.Format("2006-01-02 15:04")))
	}
	return nil
}
