// internal/store/sqlite.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/user/merklechat/internal/types"
)

// timeFormat is a fixed-width RFC3339 form. RFC3339Nano trims trailing
// fractional zeros, which breaks the lexicographic ORDER BY on updated_at.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	conversations TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chats_updated_at ON chats(updated_at);
CREATE TABLE IF NOT EXISTS tabs (
	id        TEXT PRIMARY KEY,
	label     TEXT NOT NULL,
	kind      TEXT NOT NULL,
	path      TEXT NOT NULL,
	tab_order INTEGER NOT NULL
);
`

// SQLiteStore is the durable chat and tab store backed by a local SQLite
// database file.
type SQLiteStore struct {
	path string

	mu      sync.Mutex
	db      *sql.DB
	initErr error
	inited  bool
}

// NewSQLiteStore creates a store rooted at the given database file. The
// database is not opened until Init.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and creates the schema. Safe to call repeatedly;
// only the first call does work and later calls return its result.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initLocked(ctx)
}

func (s *SQLiteStore) initLocked(ctx context.Context) error {
	if s.inited {
		return s.initErr
	}
	s.inited = true

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		s.initErr = fmt.Errorf("open database: %w", err)
		return s.initErr
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		s.initErr = fmt.Errorf("database ping failed: %w", err)
		return s.initErr
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		s.initErr = fmt.Errorf("create schema: %w", err)
		return s.initErr
	}
	s.db = db
	return nil
}

// Supported reports whether the storage engine is usable. It never returns
// an error; an unopenable database just reads as unsupported.
func (s *SQLiteStore) Supported() bool {
	return s.Init(context.Background()) == nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.inited = false
	s.initErr = nil
	return err
}

func (s *SQLiteStore) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.initLocked(ctx); err != nil {
		return nil, err
	}
	return s.db, nil
}

// SaveChat upserts a chat. The original created_at is preserved across
// updates; updated_at is refreshed on every write.
func (s *SQLiteStore) SaveChat(ctx context.Context, id types.ChatID, title string, conversations []types.ConversationPair) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(conversations)
	if err != nil {
		return fmt.Errorf("marshal conversations: %w", err)
	}

	now := time.Now().UTC().Format(timeFormat)
	_, err = db.ExecContext(ctx, `
		INSERT INTO chats (id, title, created_at, updated_at, conversations)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at,
			conversations = excluded.conversations`,
		string(id), title, now, now, string(data))
	if err != nil {
		return fmt.Errorf("save chat: %w", err)
	}
	return nil
}

// ImportChat upserts a chat with explicit timestamps, used by the import
// path so created_at comes from the payload rather than being regenerated.
func (s *SQLiteStore) ImportChat(ctx context.Context, chat *types.ChatSession) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(chat.Conversations)
	if err != nil {
		return fmt.Errorf("marshal conversations: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO chats (id, title, created_at, updated_at, conversations)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at,
			conversations = excluded.conversations`,
		string(chat.ID), chat.Title,
		chat.CreatedAt.UTC().Format(timeFormat),
		chat.UpdatedAt.UTC().Format(timeFormat),
		string(data))
	if err != nil {
		return fmt.Errorf("import chat: %w", err)
	}
	return nil
}

func scanChat(id, title, createdAt, updatedAt, conversations string) (*types.ChatSession, error) {
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	updated, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	var pairs []types.ConversationPair
	if err := json.Unmarshal([]byte(conversations), &pairs); err != nil {
		return nil, fmt.Errorf("unmarshal conversations: %w", err)
	}

	return &types.ChatSession{
		ID:            types.ChatID(id),
		Title:         title,
		CreatedAt:     created,
		UpdatedAt:     updated,
		Conversations: pairs,
	}, nil
}

// LoadChat returns the chat with the given ID, or nil without error when it
// does not exist.
func (s *SQLiteStore) LoadChat(ctx context.Context, id types.ChatID) (*types.ChatSession, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at, conversations FROM chats WHERE id = ?`,
		string(id))

	var cid, title, createdAt, updatedAt, conversations string
	if err := row.Scan(&cid, &title, &createdAt, &updatedAt, &conversations); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load chat: %w", err)
	}
	return scanChat(cid, title, createdAt, updatedAt, conversations)
}

// LoadAllChats returns every stored chat, most recently updated first.
func (s *SQLiteStore) LoadAllChats(ctx context.Context) ([]*types.ChatSession, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at, conversations FROM chats ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("load chats: %w", err)
	}
	defer rows.Close()

	var chats []*types.ChatSession
	for rows.Next() {
		var cid, title, createdAt, updatedAt, conversations string
		if err := rows.Scan(&cid, &title, &createdAt, &updatedAt, &conversations); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chat, err := scanChat(cid, title, createdAt, updatedAt, conversations)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return chats, nil
}

// DeleteChat removes a chat. Deleting an absent chat is a no-op.
func (s *SQLiteStore) DeleteChat(ctx context.Context, id types.ChatID) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, string(id)); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

// ClearAll removes every chat and the tab layout.
func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM chats`); err != nil {
		return fmt.Errorf("clear chats: %w", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM tabs`); err != nil {
		return fmt.Errorf("clear tabs: %w", err)
	}
	return nil
}

// SaveTabs replaces the stored tab layout with a dense 0..n-1 order.
func (s *SQLiteStore) SaveTabs(ctx context.Context, tabs []types.Tab) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tabs`); err != nil {
		return fmt.Errorf("clear tabs: %w", err)
	}
	for i, tab := range tabs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tabs (id, label, kind, path, tab_order) VALUES (?, ?, ?, ?, ?)`,
			string(tab.ID), tab.Label, string(tab.Kind), tab.Path, i)
		if err != nil {
			return fmt.Errorf("save tab %s: %w", tab.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tabs: %w", err)
	}
	return nil
}

// LoadTabs returns the stored tab layout in persisted order. An empty
// result means no layout has ever been saved.
func (s *SQLiteStore) LoadTabs(ctx context.Context) ([]types.Tab, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, label, kind, path, tab_order FROM tabs ORDER BY tab_order`)
	if err != nil {
		return nil, fmt.Errorf("load tabs: %w", err)
	}
	defer rows.Close()

	var tabs []types.Tab
	for rows.Next() {
		var tab types.Tab
		var id, kind string
		if err := rows.Scan(&id, &tab.Label, &kind, &tab.Path, &tab.Order); err != nil {
			return nil, fmt.Errorf("scan tab: %w", err)
		}
		tab.ID = types.TabID(id)
		tab.Kind = types.TabKind(kind)
		tabs = append(tabs, tab)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return tabs, nil
}
