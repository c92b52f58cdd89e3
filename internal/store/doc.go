// Package store provides the durable SQLite-backed chat/tab store and the
// synchronous file-backed backup store.
package store

import "github.com/user/merklechat/internal/types"

// Compile-time interface compliance checks.
var _ types.ChatStore = (*SQLiteStore)(nil)
var _ types.TabStore = (*SQLiteStore)(nil)
var _ types.BackupStore = (*FileBackupStore)(nil)
