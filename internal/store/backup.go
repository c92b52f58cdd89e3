// internal/store/backup.go
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/user/merklechat/internal/types"
)

// FileBackupStore is the synchronous fallback path: one small JSON file per
// chat, written atomically, used when the durable store's asynchronous
// write may not complete before shutdown. Backup files are keyed apart
// from the main store by the "backup-" prefix.
type FileBackupStore struct {
	root string
	mu   sync.Mutex
}

// NewFileBackupStore creates a backup store rooted at the given directory.
func NewFileBackupStore(root string) *FileBackupStore {
	return &FileBackupStore{root: root}
}

func (s *FileBackupStore) backupPath(id types.ChatID) string {
	return filepath.Join(s.root, "backup-"+string(id)+".json")
}

// SaveBackup writes the record to disk before returning. Atomic write:
// write to temp file then rename.
func (s *FileBackupStore) SaveBackup(record *types.BackupRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backup: %w", err)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	path := s.backupPath(record.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp backup: %w", err)
	}
	return nil
}

// LoadBackup returns the backup record for a chat, or nil without error
// when none exists. A corrupt backup file is removed and reported as
// missing rather than failing recovery forever.
func (s *FileBackupStore) LoadBackup(id types.ChatID) (*types.BackupRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.backupPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup: %w", err)
	}

	var record types.BackupRecord
	if err := json.Unmarshal(data, &record); err != nil {
		os.Remove(s.backupPath(id))
		return nil, nil
	}
	return &record, nil
}

// Clear removes every backup record. A cleared store must not be able to
// resurrect chats through recovery.
func (s *FileBackupStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read backup dir: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "backup-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, name)); err != nil {
			return fmt.Errorf("remove backup %s: %w", name, err)
		}
	}
	return nil
}

// DeleteBackup removes the backup record. Absent records are a no-op.
func (s *FileBackupStore) DeleteBackup(id types.ChatID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.backupPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete backup: %w", err)
	}
	return nil
}
