package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"rigveda-go/internal/corpus"
)

const schema = `
	CREATE TABLE IF NOT EXISTS bookmarks (
		mandala INTEGER NOT NULL,
		sukta INTEGER NOT NULL,
		rik INTEGER NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		createdAt REAL NOT NULL,
		PRIMARY KEY (mandala, sukta, rik)
	);

	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		mandala INTEGER NOT NULL,
		sukta INTEGER NOT NULL,
		rik INTEGER NOT NULL,
		text TEXT NOT NULL,
		createdAt REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS notes_rik ON notes (mandala, sukta, rik, createdAt);
`

// Store provides access to the bookmarks database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path. ":memory:" opens a private
// in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection keeps :memory: a single database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddBookmark bookmarks ref, replacing the label of an existing bookmark.
func (s *Store) AddBookmark(ctx context.Context, ref corpus.Reference, label string) (Bookmark, error) {
	if !ref.Valid() {
		return Bookmark{}, fmt.Errorf("bookmark %s: %w", ref, corpus.ErrEmptyInput)
	}
	b := Bookmark{Ref: ref, Label: strings.TrimSpace(label), CreatedAt: s.now()}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmarks (mandala, sukta, rik, label, createdAt)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (mandala, sukta, rik) DO UPDATE SET label = excluded.label
	`, ref.Mandala, ref.Sukta, ref.Rik, b.Label, unixFromTime(b.CreatedAt))
	if err != nil {
		return Bookmark{}, fmt.Errorf("insert bookmark: %w", err)
	}
	return b, nil
}

// RemoveBookmark deletes the bookmark on ref.
func (s *Store) RemoveBookmark(ctx context.Context, ref corpus.Reference) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM bookmarks WHERE mandala = ? AND sukta = ? AND rik = ?
	`, ref.Mandala, ref.Sukta, ref.Rik)
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("bookmark %s: %w", ref, corpus.ErrNotFound)
	}
	return nil
}

// ToggleBookmark adds a bookmark on ref or removes the existing one. It
// reports whether ref is bookmarked afterwards.
func (s *Store) ToggleBookmark(ctx context.Context, ref corpus.Reference) (bool, error) {
	marked, err := s.IsBookmarked(ctx, ref)
	if err != nil {
		return false, err
	}
	if marked {
		return false, s.RemoveBookmark(ctx, ref)
	}
	_, err = s.AddBookmark(ctx, ref, "")
	return err == nil, err
}

// IsBookmarked reports whether ref has a bookmark.
func (s *Store) IsBookmarked(ctx context.Context, ref corpus.Reference) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookmarks WHERE mandala = ? AND sukta = ? AND rik = ?
	`, ref.Mandala, ref.Sukta, ref.Rik).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query bookmark: %w", err)
	}
	return n > 0, nil
}

// Bookmarks returns every bookmark in corpus order.
func (s *Store) Bookmarks(ctx context.Context) ([]Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mandala, sukta, rik, label, createdAt
		FROM bookmarks
		ORDER BY mandala, sukta, rik
	`)
	if err != nil {
		return nil, fmt.Errorf("query bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []Bookmark
	for rows.Next() {
		var b Bookmark
		var createdAt float64
		if err := rows.Scan(&b.Ref.Mandala, &b.Ref.Sukta, &b.Ref.Rik, &b.Label, &createdAt); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		b.CreatedAt = timeFromUnix(createdAt)
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// AddNote attaches text to ref.
func (s *Store) AddNote(ctx context.Context, ref corpus.Reference, text string) (Note, error) {
	text = strings.TrimSpace(text)
	if !ref.Valid() || text == "" {
		return Note{}, fmt.Errorf("note on %s: %w", ref, corpus.ErrEmptyInput)
	}
	n := Note{ID: uuid.NewString(), Ref: ref, Text: text, CreatedAt: s.now()}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, mandala, sukta, rik, text, createdAt)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.ID, ref.Mandala, ref.Sukta, ref.Rik, n.Text, unixFromTime(n.CreatedAt))
	if err != nil {
		return Note{}, fmt.Errorf("insert note: %w", err)
	}
	return n, nil
}

// Notes returns notes oldest first. A zero ref returns every note;
// otherwise only those on ref.
func (s *Store) Notes(ctx context.Context, ref corpus.Reference) ([]Note, error) {
	query := `SELECT id, mandala, sukta, rik, text, createdAt FROM notes`
	var args []any
	if ref != (corpus.Reference{}) {
		query += ` WHERE mandala = ? AND sukta = ? AND rik = ?`
		args = append(args, ref.Mandala, ref.Sukta, ref.Rik)
	}
	query += ` ORDER BY createdAt ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		var createdAt float64
		if err := rows.Scan(&n.ID, &n.Ref.Mandala, &n.Ref.Sukta, &n.Ref.Rik, &n.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.CreatedAt = timeFromUnix(createdAt)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// DeleteNote removes the note with id.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("note id %q: %w", id, corpus.ErrNotFound)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("note %s: %w", id, corpus.ErrNotFound)
	}
	return nil
}

// IsNotFound reports whether err means the row did not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, corpus.ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
