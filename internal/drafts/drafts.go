package drafts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var ErrNotFound = errors.New("draft not found")

// Store keeps unsent entry drafts and the log of media uploads on the
// local disk, so a crashed or offline session never loses text.
type Store struct {
	db *sql.DB
}

// Timestamp columns hold unix nanoseconds.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS drafts (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS media_uploads (
	id INTEGER PRIMARY KEY,
	filename TEXT UNIQUE NOT NULL,
	original_name TEXT NOT NULL DEFAULT '',
	size INTEGER NOT NULL DEFAULT 0,
	uploaded_at INTEGER NOT NULL
);
`

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Init(ctx context.Context) error {
	_, err := s.execContext(ctx, schemaSQL)
	return err
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Draft is one locally saved entry body.
type Draft struct {
	ID        int64
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Save inserts the draft when ID is zero and updates it otherwise.
func (s *Store) Save(ctx context.Context, draft Draft) (Draft, error) {
	now := time.Now()
	if draft.ID == 0 {
		res, err := s.execContext(ctx,
			"INSERT INTO drafts(title, content, created_at, updated_at) VALUES(?, ?, ?, ?)",
			draft.Title, draft.Content, now.UnixNano(), now.UnixNano())
		if err != nil {
			return Draft{}, fmt.Errorf("insert draft: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return Draft{}, err
		}
		draft.ID = id
		draft.CreatedAt = now
		draft.UpdatedAt = now
		return draft, nil
	}
	res, err := s.execContext(ctx,
		"UPDATE drafts SET title=?, content=?, updated_at=? WHERE id=?",
		draft.Title, draft.Content, now.UnixNano(), draft.ID)
	if err != nil {
		return Draft{}, fmt.Errorf("update draft: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Draft{}, err
	}
	if affected == 0 {
		return Draft{}, ErrNotFound
	}
	draft.UpdatedAt = now
	return draft, nil
}

func (s *Store) Get(ctx context.Context, id int64) (Draft, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, title, content, created_at, updated_at FROM drafts WHERE id=?", id)
	var draft Draft
	var created, updated int64
	err := row.Scan(&draft.ID, &draft.Title, &draft.Content, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, err
	}
	draft.CreatedAt = time.Unix(0, created)
	draft.UpdatedAt = time.Unix(0, updated)
	return draft, nil
}

// List returns all drafts, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Draft, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, content, created_at, updated_at FROM drafts ORDER BY updated_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Draft
	for rows.Next() {
		var draft Draft
		var created, updated int64
		if err := rows.Scan(&draft.ID, &draft.Title, &draft.Content, &created, &updated); err != nil {
			return nil, err
		}
		draft.CreatedAt = time.Unix(0, created)
		draft.UpdatedAt = time.Unix(0, updated)
		out = append(out, draft)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.execContext(ctx, "DELETE FROM drafts WHERE id=?", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UploadRecord is one successfully uploaded media file.
type UploadRecord struct {
	Filename     string
	OriginalName string
	Size         int64
	UploadedAt   time.Time
}

// RecordUpload appends to the upload log. Re-recording the same
// canonical filename overwrites the previous row.
func (s *Store) RecordUpload(ctx context.Context, rec UploadRecord) error {
	filename := strings.TrimSpace(rec.Filename)
	if filename == "" {
		return errors.New("filename required")
	}
	uploadedAt := rec.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}
	_, err := s.execContext(ctx, `
		INSERT INTO media_uploads(filename, original_name, size, uploaded_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			original_name = excluded.original_name,
			size = excluded.size,
			uploaded_at = excluded.uploaded_at
	`, filename, rec.OriginalName, rec.Size, uploadedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

// Uploads returns the most recent upload records, newest first.
func (s *Store) Uploads(ctx context.Context, limit int) ([]UploadRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT filename, original_name, size, uploaded_at
		FROM media_uploads ORDER BY uploaded_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UploadRecord
	for rows.Next() {
		var rec UploadRecord
		var uploaded int64
		if err := rows.Scan(&rec.Filename, &rec.OriginalName, &rec.Size, &uploaded); err != nil {
			return nil, err
		}
		rec.UploadedAt = time.Unix(0, uploaded)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// execContext retries once on SQLITE_BUSY; a second writer holding the
// file briefly is normal when an editor and a sync run overlap.
func (s *Store) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	for attempt := 0; ; attempt++ {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err == nil || !isSQLiteBusy(err) || attempt >= 1 {
			return res, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Debug("sqlite busy, retrying", "query", query, "attempt", attempt+1)
		time.Sleep(40 * time.Millisecond)
	}
}

func isSQLiteBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_BUSY
	}
	return false
}
