package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	pipeerrors "github.com/eventlake/eventlake/internal/errors"
	"github.com/eventlake/eventlake/internal/notify"
	"github.com/eventlake/eventlake/pkg/types"
)

const createEventsTableSQL = `
CREATE TABLE IF NOT EXISTS events (
    user_id TEXT NOT NULL,
    event_time INTEGER NOT NULL,
    event_type TEXT NOT NULL,
    item_id TEXT NOT NULL,
    PRIMARY KEY (user_id, event_time)
)`

// The changes table is the local equivalent of a table stream: one row per
// write, holding the snappy-compressed tagged post-change image.
const createChangesTableSQL = `
CREATE TABLE IF NOT EXISTS changes (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    operation_kind TEXT NOT NULL,
    image BLOB,
    created_at INTEGER NOT NULL
)`

const createCheckpointsTableSQL = `
CREATE TABLE IF NOT EXISTS checkpoints (
    name TEXT PRIMARY KEY,
    seq INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
)`

// Change is one entry of the local change feed.
type Change struct {
	Seq    int64
	Record types.ChangeRecord
}

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex // single writer
	log *zap.Logger
	now func() time.Time

	notifier *notify.Notifier
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string, log *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if log == nil {
		log = zap.NewNop()
	}
	s := &SQLiteStore{db: db, log: log, now: time.Now}

	for _, stmt := range []string{createEventsTableSQL, createChangesTableSQL, createCheckpointsTableSQL} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: failed to initialize schema: %w", err)
		}
	}
	return s, nil
}

// SetNotifier announces every committed change on n.
func (s *SQLiteStore) SetNotifier(n *notify.Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// PutEvent upserts ev and appends the matching change record in the same
// transaction. A write to an existing (user_id, event_time) key is an update.
func (s *SQLiteStore) PutEvent(ctx context.Context, ev types.RawEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.putEvent(ctx, ev)
	if err != nil {
		s.log.Error("sqlite put failed", zap.String("user_id", ev.UserID), zap.Error(err))
		return pipeerrors.NewStoreError(pipeerrors.CodeWriteFailed, "failed to write event", err)
	}
	s.notifier.Publish(n)
	return nil
}

func (s *SQLiteStore) putEvent(ctx context.Context, ev types.RawEvent) (notify.Notification, error) {
	n := notify.Notification{Key: ev.UserID}

	image, err := encodeImage(EventItem(ev))
	if err != nil {
		return n, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return n, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE user_id = ? AND event_time = ?",
		ev.UserID, ev.EventTime,
	).Scan(&exists)
	if err != nil {
		return n, fmt.Errorf("failed to look up event: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (user_id, event_time, event_type, item_id) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, event_time) DO UPDATE SET event_type = excluded.event_type, item_id = excluded.item_id`,
		ev.UserID, ev.EventTime, ev.EventType, ev.ItemID,
	)
	if err != nil {
		return n, fmt.Errorf("failed to upsert event: %w", err)
	}

	kind := types.OpInsert
	if exists > 0 {
		kind = types.OpUpdate
	}
	n.Kind = kind
	n.Timestamp = s.now().UnixMilli()
	res, err := tx.ExecContext(ctx,
		"INSERT INTO changes (operation_kind, image, created_at) VALUES (?, ?, ?)",
		string(kind), image, n.Timestamp,
	)
	if err != nil {
		return n, fmt.Errorf("failed to append change: %w", err)
	}
	if n.Seq, err = res.LastInsertId(); err != nil {
		return n, fmt.Errorf("failed to read change sequence: %w", err)
	}

	return n, tx.Commit()
}

// DeleteEvent removes the event at (userID, eventTime) and records a delete
// change without an image. Deleting a missing event is a no-op.
func (s *SQLiteStore) DeleteEvent(ctx context.Context, userID string, eventTime int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pipeerrors.NewStoreError(pipeerrors.CodeWriteFailed, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM events WHERE user_id = ? AND event_time = ?", userID, eventTime)
	if err != nil {
		return pipeerrors.NewStoreError(pipeerrors.CodeWriteFailed, "failed to delete event", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	ts := s.now().UnixMilli()
	res, err = tx.ExecContext(ctx,
		"INSERT INTO changes (operation_kind, image, created_at) VALUES (?, NULL, ?)",
		string(types.OpDelete), ts,
	)
	if err != nil {
		return pipeerrors.NewStoreError(pipeerrors.CodeWriteFailed, "failed to append change", err)
	}
	seq, _ := res.LastInsertId()
	if err := tx.Commit(); err != nil {
		return pipeerrors.NewStoreError(pipeerrors.CodeWriteFailed, "failed to commit delete", err)
	}
	s.notifier.Publish(notify.Notification{Kind: types.OpDelete, Key: userID, Seq: seq, Timestamp: ts})
	return nil
}

// GetEvent reads back a stored event. The second result is false when no
// event exists at the key.
func (s *SQLiteStore) GetEvent(ctx context.Context, userID string, eventTime int64) (types.RawEvent, bool, error) {
	ev := types.RawEvent{UserID: userID, EventTime: eventTime}
	err := s.db.QueryRowContext(ctx,
		"SELECT event_type, item_id FROM events WHERE user_id = ? AND event_time = ?",
		userID, eventTime,
	).Scan(&ev.EventType, &ev.ItemID)
	if err == sql.ErrNoRows {
		return types.RawEvent{}, false, nil
	}
	if err != nil {
		return types.RawEvent{}, false, pipeerrors.NewStoreError(pipeerrors.CodeReadFailed, "failed to read event", err)
	}
	return ev, true, nil
}

// Changes returns up to limit change records with a sequence number greater
// than after, in sequence order. Images that fail to decode surface as
// unknown records so a bad row never blocks the feed.
func (s *SQLiteStore) Changes(ctx context.Context, after int64, limit int) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, operation_kind, image FROM changes WHERE seq > ? ORDER BY seq LIMIT ?",
		after, limit,
	)
	if err != nil {
		return nil, pipeerrors.NewStoreError(pipeerrors.CodeReadFailed, "failed to read changes", err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var (
			c     Change
			kind  string
			image []byte
		)
		if err := rows.Scan(&c.Seq, &kind, &image); err != nil {
			return nil, pipeerrors.NewStoreError(pipeerrors.CodeReadFailed, "failed to scan change", err)
		}

		c.Record.OperationKind = types.ParseOperationKind(kind)
		if image != nil {
			m, err := decodeImage(image)
			if err != nil {
				s.log.Warn("undecodable change image", zap.Int64("seq", c.Seq), zap.Error(err))
				c.Record.OperationKind = types.OpUnknown
			} else {
				c.Record.PostImage = m
			}
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, pipeerrors.NewStoreError(pipeerrors.CodeReadFailed, "failed to iterate changes", err)
	}
	return changes, nil
}

// Checkpoint returns the last sequence number saved under name, or 0.
func (s *SQLiteStore) Checkpoint(ctx context.Context, name string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, "SELECT seq FROM checkpoints WHERE name = ?", name).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, pipeerrors.NewStoreError(pipeerrors.CodeReadFailed, "failed to read checkpoint", err)
	}
	return seq, nil
}

// SaveCheckpoint records seq as the last processed sequence number for name.
func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, name string, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (name, seq, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET seq = excluded.seq, updated_at = excluded.updated_at`,
		name, seq, s.now().Unix(),
	)
	if err != nil {
		return pipeerrors.NewStoreError(pipeerrors.CodeWriteFailed, "failed to save checkpoint", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeImage(m types.Map) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return snappy.Encode(nil, data), nil
}

func decodeImage(b []byte) (types.Map, error) {
	data, err := snappy.Decode(nil, b)
	if err != nil {
		return nil, err
	}
	var m types.Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
