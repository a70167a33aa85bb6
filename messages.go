package main

import (
	tea "github.com/charmbracelet/bubbletea"

	"rigveda-go/internal/assistant"
	"rigveda-go/internal/browse"
	"rigveda-go/internal/corpus"
	"rigveda-go/internal/pager"
	"rigveda-go/internal/playback"
	"rigveda-go/internal/store"
)

// hymnMsg reports a sukta change with the narration loaded.
type hymnMsg struct {
	browse browse.State
	track  playback.Snapshot
	focus  int
	err    error
}

type browseMsg struct {
	state browse.State
	err   error
}

type playerMsg struct {
	snap playback.Snapshot
	err  error
}

type resultsMsg struct {
	state pager.State
	err   error
}

type chatMsg struct {
	state assistant.State
	err   error
}

type pickMsg struct {
	hit    corpus.SearchHit
	random bool
	err    error
}

type bookmarksMsg struct {
	marks  []store.Bookmark
	status string
	err    error
}

type notesMsg struct {
	ref   corpus.Reference
	notes []store.Note
	err   error
}

// statusMsg sets the banner line.
type statusMsg struct {
	text string
	err  error
}

func statusCmd(text string, err error) tea.Cmd {
	return func() tea.Msg { return statusMsg{text: text, err: err} }
}
