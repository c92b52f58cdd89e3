package main

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/user/merklechat/internal/store"
	"github.com/user/merklechat/internal/types"
)

func init() {
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search chat content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := context.Background()

		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		results, err := store.Search(ctx, a.chats, args[0])
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		if len(results) == 0 {
			fmt.Println(headerStyle.Render("No matches"))
			return nil
		}

		total := 0
		for _, r := range results {
			total += len(r.Matches)
		}
		fmt.Println(headerStyle.Render(fmt.Sprintf("%d match(es) in %d chat(s)", total, len(results))))
		fmt.Println()

		for _, r := range results {
			fmt.Printf("%s %s\n", titleStyle.Render(r.Title), idStyle.Render(string(r.ChatID)))
			for _, m := range r.Matches {
				who := "assistant"
				if m.Sender == types.SenderUser {
					who = "you"
				}
				fmt.Printf("  %s %s\n", dateStyle.Render("["+who+"]"), excerpt(m.Content, args[0]))
			}
			fmt.Println()
		}
		return nil
	},
}

// excerpt trims long matched content to a window around the first hit.
func excerpt(content, query string) string {
	const window = 60
	flat := strings.Join(strings.Fields(content), " ")
	idx := strings.Index(strings.ToLower(flat), strings.ToLower(query))
	if idx < 0 {
		idx = 0
	}
	start := idx - window/2
	if start < 0 {
		start = 0
	}
	end := start + window + len(query)
	if end > len(flat) {
		end = len(flat)
	}
	// Byte offsets can land inside a multibyte rune; widen to boundaries.
	for start > 0 && !utf8.RuneStart(flat[start]) {
		start--
	}
	for end < len(flat) && !utf8.RuneStart(flat[end]) {
		end++
	}
	out := flat[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(flat) {
		out += "..."
	}
	return out
}
