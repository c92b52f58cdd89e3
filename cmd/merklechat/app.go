package main

import (
	"context"
	"fmt"
	"os"

	"github.com/user/merklechat/internal/config"
	"github.com/user/merklechat/internal/recovery"
	"github.com/user/merklechat/internal/store"
	"github.com/user/merklechat/internal/tabs"
)

// app bundles the storage stack shared by every subcommand.
type app struct {
	cfg      *config.Config
	chats    *store.SQLiteStore
	backups  *store.FileBackupStore
	registry *tabs.Registry
	saver    *recovery.Pipeline
}

// openApp wires the stores, tab registry, and save pipeline. Tab state is
// loaded (and reconciled against stored chats) before returning.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	chats := store.NewSQLiteStore(cfg.DatabasePath())
	if err := chats.Init(ctx); err != nil {
		return nil, fmt.Errorf("open chat store: %w", err)
	}
	backups := store.NewFileBackupStore(cfg.BackupDir())

	registry := tabs.New(chats)
	if err := registry.Load(ctx, chats); err != nil {
		return nil, fmt.Errorf("load tabs: %w", err)
	}

	saver := recovery.New(chats, backups, registry, recovery.DefaultQuietWindow)

	return &app{
		cfg:      cfg,
		chats:    chats,
		backups:  backups,
		registry: registry,
		saver:    saver,
	}, nil
}

func (a *app) close() {
	a.saver.Stop()
}
