package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/merklechat/internal/export"
)

var (
	exportFormat string
	exportOut    string
)

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "export format (json, yaml, md)")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default merklechat-backup-<date>.<ext>)")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all chats to a backup file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := context.Background()

		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		exporter, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
		}

		doc, err := export.Build(ctx, a.chats)
		if err != nil {
			return err
		}

		out := exportOut
		if out == "" {
			out = fmt.Sprintf("merklechat-backup-%s.%s", time.Now().Format("2006-01-02"), exporter.Extension())
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()

		if err := exporter.Export(doc, f); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Printf("Exported %d chat(s) to %s\n", len(doc.Chats), out)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import chats from a JSON backup file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := context.Background()

		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open backup file: %w", err)
		}
		defer f.Close()

		n, err := export.Import(ctx, a.chats, f)
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}

		// Drop the persisted tab layout so Load rebuilds it from the
		// imported chat set.
		if err := a.chats.SaveTabs(ctx, nil); err != nil {
			return fmt.Errorf("reset tabs: %w", err)
		}
		if err := a.registry.Load(ctx, a.chats); err != nil {
			return fmt.Errorf("rebuild tabs: %w", err)
		}

		fmt.Printf("Imported %d chat(s) from %s\n", n, args[0])
		return nil
	},
}
