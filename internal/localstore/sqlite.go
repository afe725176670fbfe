package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Hossein925/f-maharat/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the snapshot and files in a single SQLite database.
// Hospitals are stored one JSON payload per row. The pool is limited to one
// connection, so writers are serialized.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "maharat.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS hospitals (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS files (
			locator TEXT PRIMARY KEY,
			content_type TEXT NOT NULL DEFAULT '',
			data BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tombstones (
			locator TEXT PRIMARY KEY
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}
	return &SQLiteStore{db: db, path: path}, nil
}

var _ Store = (*SQLiteStore)(nil)

// ReplaceHospitals swaps the stored collection for hospitals in one transaction.
func (s *SQLiteStore) ReplaceHospitals(ctx context.Context, hospitals []domain.Hospital) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM hospitals`); err != nil {
		return fmt.Errorf("clear hospitals: %w", err)
	}
	for i, h := range hospitals {
		payload, err := json.Marshal(h)
		if err != nil {
			return fmt.Errorf("encode hospital %s: %w", h.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO hospitals(id, position, payload) VALUES(?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET position=excluded.position, payload=excluded.payload`,
			h.ID, i, payload); err != nil {
			return fmt.Errorf("insert hospital %s: %w", h.ID, err)
		}
	}
	return tx.Commit()
}

// LoadHospitals returns the stored collection in its original order.
func (s *SQLiteStore) LoadHospitals(ctx context.Context) ([]domain.Hospital, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM hospitals ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("select hospitals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hospitals := []domain.Hospital{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var h domain.Hospital
		if err := json.Unmarshal(payload, &h); err != nil {
			return nil, fmt.Errorf("decode hospital: %w", err)
		}
		hospitals = append(hospitals, h)
	}
	return hospitals, rows.Err()
}

// GetFile returns the cached file or ErrMiss.
func (s *SQLiteStore) GetFile(ctx context.Context, locator string) (File, error) {
	f := File{Locator: locator}
	err := s.db.QueryRowContext(ctx,
		`SELECT content_type, data FROM files WHERE locator = ?`, locator).
		Scan(&f.ContentType, &f.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, ErrMiss
	}
	if err != nil {
		return File{}, fmt.Errorf("select file: %w", err)
	}
	return f, nil
}

// PutFile stores or replaces a file.
func (s *SQLiteStore) PutFile(ctx context.Context, file File) error {
	data := file.Data
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files(locator, content_type, data) VALUES(?, ?, ?)
		 ON CONFLICT(locator) DO UPDATE SET content_type=excluded.content_type, data=excluded.data`,
		file.Locator, file.ContentType, data)
	if err != nil {
		return fmt.Errorf("put file: %w", err)
	}
	return nil
}

// DeleteFile removes a file. Removing a missing file is not an error.
func (s *SQLiteStore) DeleteFile(ctx context.Context, locator string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE locator = ?`, locator); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// ListFiles returns all cached files ordered by locator.
func (s *SQLiteStore) ListFiles(ctx context.Context) ([]File, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT locator, content_type, data FROM files ORDER BY locator`)
	if err != nil {
		return nil, fmt.Errorf("select files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	files := []File{}
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.Locator, &f.ContentType, &f.Data); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// ClearFiles removes every cached file.
func (s *SQLiteStore) ClearFiles(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM files`); err != nil {
		return fmt.Errorf("clear files: %w", err)
	}
	return nil
}

// PutTombstone marks locator as deleted.
func (s *SQLiteStore) PutTombstone(ctx context.Context, locator string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO tombstones(locator) VALUES(?) ON CONFLICT(locator) DO NOTHING`, locator); err != nil {
		return fmt.Errorf("put tombstone: %w", err)
	}
	return nil
}

// DeleteTombstone clears the mark on locator.
func (s *SQLiteStore) DeleteTombstone(ctx context.Context, locator string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tombstones WHERE locator = ?`, locator); err != nil {
		return fmt.Errorf("delete tombstone: %w", err)
	}
	return nil
}

// HasTombstone reports whether locator is marked as deleted.
func (s *SQLiteStore) HasTombstone(ctx context.Context, locator string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tombstones WHERE locator = ?`, locator).Scan(&n); err != nil {
		return false, fmt.Errorf("select tombstone: %w", err)
	}
	return n > 0, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
