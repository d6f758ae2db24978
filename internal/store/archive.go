// Package store persists received and sent messages to a local SQLite
// archive so watch sessions survive restarts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"wadrive/internal/types"
)

// Archive is a message log backed by SQLite. Safe for concurrent use.
type Archive struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	log    *zap.Logger
}

// OpenArchive initializes the SQLite database at the given path, creating
// parent directories as needed.
func OpenArchive(path string, log *zap.Logger) (*Archive, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a := &Archive{db: db, dbPath: path, log: log.Named("archive")}
	if err := a.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return a, nil
}

// initialize creates the required tables.
func (a *Archive) initialize() error {
	messagesTable := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL,
		sender TEXT,
		kind TEXT NOT NULL,
		body TEXT,
		from_me INTEGER NOT NULL DEFAULT 0,
		timestamp INTEGER NOT NULL,
		media_mime TEXT,
		media_size INTEGER,
		caption TEXT,
		archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, timestamp);
	`

	if _, err := a.db.Exec(messagesTable); err != nil {
		return fmt.Errorf("failed to create messages table: %w", err)
	}
	return nil
}

// SaveMessage records one message. Duplicate ids are silently skipped so
// replayed page events stay idempotent.
func (a *Archive) SaveMessage(ctx context.Context, msg types.Message) error {
	if msg.ID == "" {
		return fmt.Errorf("message has no id")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO messages
		 (id, chat_id, sender, kind, body, from_me, timestamp, media_mime, media_size, caption)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, msg.Sender, string(msg.Kind), msg.Body,
		msg.FromMe, msg.Timestamp.Unix(), msg.MediaMime, msg.MediaSize, msg.Caption,
	)
	if err != nil {
		a.log.Error("failed to archive message", zap.String("id", msg.ID), zap.Error(err))
		return err
	}
	return nil
}

// RecentMessages returns the newest messages for a chat, newest first. An
// empty chatID spans all chats.
func (a *Archive) RecentMessages(ctx context.Context, chatID string, limit int) ([]types.Message, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, chat_id, sender, kind, body, from_me, timestamp, media_mime, media_size, caption
		 FROM messages`
	args := []interface{}{}
	if chatID != "" {
		query += ` WHERE chat_id = ?`
		args = append(args, chatID)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		a.log.Error("failed to query messages", zap.String("chat_id", chatID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []types.Message
	for rows.Next() {
		var m types.Message
		var kind string
		var ts int64
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Sender, &kind, &m.Body,
			&m.FromMe, &ts, &m.MediaMime, &m.MediaSize, &m.Caption); err != nil {
			continue
		}
		m.Kind = types.MessageKind(kind)
		m.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// MessageCount reports the total number of archived messages.
func (a *Archive) MessageCount(ctx context.Context) (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var n int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}
