// Package sqlite provides a SQLite-backed data service. Each session holds
// one pooled connection until it is closed, the way a remote host session
// holds a server-side resource.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	_ "modernc.org/sqlite"

	"github.com/bjaus/plugin"
	"github.com/bjaus/plugin/internal/ids"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Ensure the store and its sessions satisfy the plugin contracts.
var (
	_ plugin.ServiceFactory = (*Store)(nil)
	_ plugin.Session        = (*Session)(nil)
)

// Write is one row of the write log.
type Write struct {
	Op        string
	UserID    string
	Record    *plugin.Record
	WrittenAt time.Time
}

// Store keeps records in a SQLite database.
type Store struct {
	db *sql.DB

	opened atomic.Int64
	closed atomic.Int64
}

// Open opens the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	migrations, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applyMigrations(ctx, db, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// dsn applies the connection pragmas to every pooled connection, including
// the ones pinned by sessions.
func dsn(path string) string {
	return filepath.Clean(path) + "?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=synchronous(NORMAL)"
}

// Close closes the database. Sessions still open fail afterwards.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// OpenSessions returns the number of sessions opened and not yet closed.
func (s *Store) OpenSessions() int64 {
	return s.opened.Load() - s.closed.Load()
}

// Seed writes rec directly, replacing any existing row. It is not logged.
func (s *Store) Seed(ctx context.Context, rec *plugin.Record) error {
	attrs, err := encodeAttributes(rec.Attributes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO records (logical_name, id, attributes, modified_by, modified_at)
VALUES (?, ?, ?, '', ?)
ON CONFLICT (logical_name, id) DO UPDATE SET attributes = excluded.attributes, modified_at = excluded.modified_at
`, strings.ToLower(rec.LogicalName), rec.ID, attrs, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("seed %s %s: %w", rec.LogicalName, rec.ID, err)
	}
	return nil
}

// Writes returns the write log, oldest first.
func (s *Store) Writes(ctx context.Context) ([]Write, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT op, user_id, logical_name, id, attributes, written_at
FROM record_writes
ORDER BY seq
`)
	if err != nil {
		return nil, fmt.Errorf("list writes: %w", err)
	}
	defer rows.Close()

	var out []Write
	for rows.Next() {
		var (
			w                     Write
			logical, id, rawAttrs string
			writtenAt             int64
		)
		if err := rows.Scan(&w.Op, &w.UserID, &logical, &id, &rawAttrs, &writtenAt); err != nil {
			return nil, fmt.Errorf("scan write: %w", err)
		}
		attrs, err := decodeAttributes(rawAttrs)
		if err != nil {
			return nil, err
		}
		w.Record = &plugin.Record{LogicalName: logical, ID: id, Attributes: attrs}
		w.WrittenAt = time.UnixMilli(writtenAt).UTC()
		out = append(out, w)
	}
	return out, rows.Err()
}

// OpenSession implements plugin.ServiceFactory. The session holds a
// dedicated connection until Close.
func (s *Store) OpenSession(ctx context.Context, userID string) (plugin.Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	s.opened.Add(1)
	return &Session{store: s, conn: conn, userID: userID}, nil
}

// Session is a plugin.Session acting as one user over one connection.
type Session struct {
	store  *Store
	conn   *sql.Conn
	userID string

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Close returns the connection to the pool. Later calls return the first
// call's result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.conn.Close()
		s.store.closed.Add(1)
	})
	return s.closeErr
}

// Create implements plugin.DataService.
func (s *Session) Create(ctx context.Context, rec *plugin.Record) (string, error) {
	if err := s.check(ctx); err != nil {
		return "", err
	}
	id := rec.ID
	if id == "" {
		id = ids.New()
	}
	attrs, err := encodeAttributes(rec.Attributes)
	if err != nil {
		return "", err
	}

	err = s.inTx(ctx, func(tx *sql.Tx, now int64) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO records (logical_name, id, attributes, modified_by, modified_at)
VALUES (?, ?, ?, ?, ?)
`, strings.ToLower(rec.LogicalName), id, attrs, s.userID, now); err != nil {
			return err
		}
		return s.logWrite(ctx, tx, plugin.MessageCreate, rec.LogicalName, id, attrs, now)
	})
	if err != nil {
		return "", fmt.Errorf("create %s: %w", rec.LogicalName, err)
	}
	return id, nil
}

// Retrieve implements plugin.DataService.
func (s *Session) Retrieve(ctx context.Context, ref plugin.Reference, columns ...string) (*plugin.Record, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var raw string
	err := s.conn.QueryRowContext(ctx,
		"SELECT attributes FROM records WHERE logical_name = ? AND id = ?",
		strings.ToLower(ref.LogicalName), ref.ID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, plugin.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve %s %s: %w", ref.LogicalName, ref.ID, err)
	}

	attrs, err := decodeAttributes(raw)
	if err != nil {
		return nil, err
	}
	out := plugin.NewRecord(ref.LogicalName, ref.ID)
	if len(columns) == 0 {
		out.Attributes = attrs
		return out, nil
	}
	for _, c := range columns {
		if v, ok := attrs[c]; ok {
			out.Attributes[c] = v
		}
	}
	return out, nil
}

// Update implements plugin.DataService. Attributes on rec are merged into the
// stored row inside one transaction.
func (s *Session) Update(ctx context.Context, rec *plugin.Record) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	changes, err := encodeAttributes(rec.Attributes)
	if err != nil {
		return err
	}

	err = s.inTx(ctx, func(tx *sql.Tx, now int64) error {
		var raw string
		err := tx.QueryRowContext(ctx,
			"SELECT attributes FROM records WHERE logical_name = ? AND id = ?",
			strings.ToLower(rec.LogicalName), rec.ID,
		).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return plugin.ErrNotFound
		}
		if err != nil {
			return err
		}

		attrs, err := decodeAttributes(raw)
		if err != nil {
			return err
		}
		for k, v := range rec.Attributes {
			attrs[k] = v
		}
		merged, err := encodeAttributes(attrs)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE records SET attributes = ?, modified_by = ?, modified_at = ?
WHERE logical_name = ? AND id = ?
`, merged, s.userID, now, strings.ToLower(rec.LogicalName), rec.ID); err != nil {
			return err
		}
		return s.logWrite(ctx, tx, plugin.MessageUpdate, rec.LogicalName, rec.ID, changes, now)
	})
	if err != nil {
		return fmt.Errorf("update %s %s: %w", rec.LogicalName, rec.ID, err)
	}
	return nil
}

// Delete implements plugin.DataService.
func (s *Session) Delete(ctx context.Context, ref plugin.Reference) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	err := s.inTx(ctx, func(tx *sql.Tx, now int64) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM records WHERE logical_name = ? AND id = ?",
			strings.ToLower(ref.LogicalName), ref.ID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return plugin.ErrNotFound
		}
		return s.logWrite(ctx, tx, plugin.MessageDelete, ref.LogicalName, ref.ID, "{}", now)
	})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", ref.LogicalName, ref.ID, err)
	}
	return nil
}

func (s *Session) check(ctx context.Context) error {
	if s.closed.Load() {
		return plugin.ErrSessionClosed
	}
	return ctx.Err()
}

func (s *Session) inTx(ctx context.Context, fn func(tx *sql.Tx, now int64) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx, time.Now().UTC().UnixMilli()); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Session) logWrite(ctx context.Context, tx *sql.Tx, op, logicalName, id, attrs string, now int64) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO record_writes (op, logical_name, id, user_id, attributes, written_at)
VALUES (?, ?, ?, ?, ?, ?)
`, op, logicalName, id, s.userID, attrs, now)
	return err
}

func encodeAttributes(attrs plugin.Attributes) (string, error) {
	if attrs == nil {
		attrs = plugin.Attributes{}
	}
	raw, err := sonic.ConfigStd.MarshalToString(attrs)
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}
	return raw, nil
}

// decodeAttributes restores References, which are stored as objects with
// logical_name and id.
func decodeAttributes(raw string) (plugin.Attributes, error) {
	attrs := plugin.Attributes{}
	if err := sonic.ConfigStd.UnmarshalFromString(raw, &attrs); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	for k, v := range attrs {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		logical, lok := m["logical_name"].(string)
		id, iok := m["id"].(string)
		if lok && iok {
			name, _ := m["name"].(string)
			attrs[k] = plugin.Reference{LogicalName: logical, ID: id, Name: name}
		}
	}
	return attrs, nil
}
