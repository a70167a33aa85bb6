// Package store keeps the reader's bookmarks and notes in a local SQLite
// database.
package store

import (
	"time"

	"rigveda-go/internal/corpus"
)

// Bookmark marks a rik. A rik has at most one bookmark.
type Bookmark struct {
	Ref       corpus.Reference
	Label     string
	CreatedAt time.Time
}

// Note is free text attached to a rik.
type Note struct {
	ID        string
	Ref       corpus.Reference
	Text      string
	CreatedAt time.Time
}
