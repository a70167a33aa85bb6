package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"rigveda-go/internal/assistant"
	"rigveda-go/internal/browse"
	"rigveda-go/internal/corpus"
	"rigveda-go/internal/pager"
	"rigveda-go/internal/playback"
	"rigveda-go/internal/selection"
	"rigveda-go/internal/store"
)

// pickSource supplies the home verses.
type pickSource interface {
	DailyVerse(ctx context.Context) (corpus.SearchHit, error)
	Random(ctx context.Context) (corpus.SearchHit, error)
}

// bookmarkStore is the part of the local database the reader uses.
type bookmarkStore interface {
	ToggleBookmark(ctx context.Context, ref corpus.Reference) (bool, error)
	Bookmarks(ctx context.Context) ([]store.Bookmark, error)
	Notes(ctx context.Context, ref corpus.Reference) ([]store.Note, error)
}

// services are the controllers behind one reader session. Every call that
// mutates a controller runs inside a tea.Cmd: controllers publish to the
// program synchronously and Update must never block on that.
type services struct {
	nav    *browse.Navigator
	player *playback.Controller
	pages  *pager.Pager
	chat   *assistant.Transcript
	picks  pickSource
	marks  bookmarkStore // nil when the database could not be opened
	fields []corpus.Field

	export func(ctx context.Context, hymn corpus.HymnRef) (string, error)
}

func (a *app) services() *services {
	src := a.source()
	s := &services{
		nav:    browse.New(src, a.logger),
		player: a.player(),
		pages: pager.New(a.client, src, pager.Options{
			PageSize:      a.cfg.Search.PageSize,
			MinSimilarity: a.cfg.Search.MinSimilarity,
			Logger:        a.logger,
		}),
		chat: assistant.NewTranscript(a.asker, src, assistant.TranscriptOptions{
			MaxResults: a.cfg.Assistant.MaxResults,
			Fields:     a.searchFields(),
			Logger:     a.logger,
		}),
		picks:  a.client,
		fields: a.searchFields(),
		export: func(ctx context.Context, hymn corpus.HymnRef) (string, error) {
			path := filepath.Join(a.cfg.Storage.ExportDir, exportFileName(hymn))
			_, err := exportHymn(ctx, hymn, corpus.DefaultExportOptions(), path)
			return path, err
		},
	}
	if st, err := a.store(); err == nil {
		s.marks = st
	}
	return s
}

// subscribe forwards every controller change to send.
func (s *services) subscribe(send func(tea.Msg)) (cancel func()) {
	cancels := []func(){
		s.nav.Subscribe(func(st browse.State) { send(browseMsg{state: st}) }),
		s.player.Subscribe(func(snap playback.Snapshot) { send(playerMsg{snap: snap}) }),
		s.pages.Subscribe(func(st pager.State) { send(resultsMsg{state: st}) }),
		s.chat.Subscribe(func(st assistant.State) { send(chatMsg{state: st}) }),
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

func (s *services) Close() error {
	return s.player.Close()
}

// openHymn selects mandala and sukta in the navigator and loads the
// narration. A sukta below 1 opens the last sukta of the mandala. focus is
// the rik number to put the cursor on, or 0.
func (s *services) openHymn(mandala, sukta, focus int) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		msg := hymnMsg{focus: focus}
		msg.err = s.selectHymn(ctx, mandala, sukta)
		if msg.err == nil {
			if st := s.nav.State(); st.Sukta > 0 {
				msg.err = s.player.LoadHymn(ctx, corpus.HymnRef{Mandala: st.Mandala, Sukta: st.Sukta})
			}
		}
		msg.browse = s.nav.State()
		msg.track = s.player.Snapshot()
		return msg
	}
}

func (s *services) selectHymn(ctx context.Context, mandala, sukta int) error {
	if len(s.nav.State().Books) == 0 {
		if err := s.nav.Load(ctx); err != nil {
			return err
		}
	}
	if st := s.nav.State(); st.Mandala != mandala || len(st.Hymns) == 0 {
		if err := s.nav.SelectBook(ctx, mandala); err != nil {
			return err
		}
	}
	if sukta < 1 {
		hymns := s.nav.State().Hymns
		if len(hymns) == 0 {
			return fmt.Errorf("mandala %d has no suktas: %w", mandala, corpus.ErrNotFound)
		}
		sukta = hymns[len(hymns)-1]
	}
	return s.nav.SelectHymn(ctx, sukta)
}

// stepHymn moves dir suktas from the current one, crossing into the
// neighbouring mandala at either end. Stepping back across a mandala yields
// sukta 0, which openHymn resolves to the last sukta. ok is false at the
// ends of the corpus.
func stepHymn(st browse.State, dir int) (mandala, sukta int, ok bool) {
	if i := indexOf(st.Hymns, st.Sukta); i >= 0 {
		if j := i + dir; j >= 0 && j < len(st.Hymns) {
			return st.Mandala, st.Hymns[j], true
		}
	}
	book, ok := stepBook(st, dir)
	if !ok {
		return 0, 0, false
	}
	if dir < 0 {
		return book, 0, true
	}
	return book, 1, true
}

// stepBook returns the mandala dir places from the current one.
func stepBook(st browse.State, dir int) (mandala int, ok bool) {
	i := indexOf(st.Books, st.Mandala)
	j := i + dir
	if i < 0 || j < 0 || j >= len(st.Books) {
		return 0, false
	}
	return st.Books[j], true
}

func indexOf(list []int, v int) int {
	for i, n := range list {
		if n == v {
			return i
		}
	}
	return -1
}

func (s *services) toggleVerse(rik int) tea.Cmd {
	return func() tea.Msg {
		_, err := s.nav.SelectVerse(context.Background(), rik)
		return browseMsg{state: s.nav.State(), err: err}
	}
}

// transport runs a playback operation.
func (s *services) transport(op func(*playback.Controller) error) tea.Cmd {
	return func() tea.Msg {
		err := op(s.player)
		return playerMsg{snap: s.player.Snapshot(), err: err}
	}
}

func (s *services) search(query string) tea.Cmd {
	return func() tea.Msg {
		err := s.pages.Search(context.Background(), query, s.fields)
		return resultsMsg{state: s.pages.State(), err: err}
	}
}

func (s *services) page(op func(context.Context, *pager.Pager) error) tea.Cmd {
	return func() tea.Msg {
		err := op(context.Background(), s.pages)
		return resultsMsg{state: s.pages.State(), err: err}
	}
}

func (s *services) toggleHit(i int) tea.Cmd {
	return s.page(func(ctx context.Context, p *pager.Pager) error {
		_, err := p.ToggleHit(ctx, i)
		return err
	})
}

func (s *services) ask(question string) tea.Cmd {
	return func() tea.Msg {
		_, err := s.chat.Ask(context.Background(), question)
		return chatMsg{state: s.chat.State(), err: err}
	}
}

func (s *services) toggleCitation(turn, i int) tea.Cmd {
	return func() tea.Msg {
		_, err := s.chat.ToggleCitation(context.Background(), turn, i)
		return chatMsg{state: s.chat.State(), err: err}
	}
}

func (s *services) resetChat() tea.Cmd {
	return func() tea.Msg {
		s.chat.Reset()
		return chatMsg{state: s.chat.State()}
	}
}

func (s *services) pick(random bool) tea.Cmd {
	return func() tea.Msg {
		fetch := s.picks.DailyVerse
		if random {
			fetch = s.picks.Random
		}
		hit, err := fetch(context.Background())
		return pickMsg{hit: hit, random: random, err: err}
	}
}

func (s *services) loadBookmarks() tea.Cmd {
	if s.marks == nil {
		return nil
	}
	return func() tea.Msg {
		marks, err := s.marks.Bookmarks(context.Background())
		return bookmarksMsg{marks: marks, err: err}
	}
}

func (s *services) toggleBookmark(ref corpus.Reference) tea.Cmd {
	if s.marks == nil {
		return statusCmd("", errors.New("bookmarks are unavailable"))
	}
	return func() tea.Msg {
		ctx := context.Background()
		on, err := s.marks.ToggleBookmark(ctx, ref)
		if err != nil {
			return statusMsg{err: err}
		}
		marks, err := s.marks.Bookmarks(ctx)
		text := fmt.Sprintf("Removed bookmark %s", ref)
		if on {
			text = fmt.Sprintf("Bookmarked %s", ref)
		}
		return bookmarksMsg{marks: marks, err: err, status: text}
	}
}

func (s *services) loadNotes(ref corpus.Reference) tea.Cmd {
	if s.marks == nil {
		return nil
	}
	return func() tea.Msg {
		notes, err := s.marks.Notes(context.Background(), ref)
		return notesMsg{ref: ref, notes: notes, err: err}
	}
}

func (s *services) exportHymn(hymn corpus.HymnRef) tea.Cmd {
	return func() tea.Msg {
		path, err := s.export(context.Background(), hymn)
		if err != nil {
			return statusMsg{err: fmt.Errorf("export %s: %w", hymn, err)}
		}
		return statusMsg{text: "Exported " + path}
	}
}

// quiet reports errors that only mean a newer action replaced this one.
func quiet(err error) bool {
	return errors.Is(err, pager.ErrSuperseded) ||
		errors.Is(err, browse.ErrStale) ||
		errors.Is(err, selection.ErrStale) ||
		errors.Is(err, playback.ErrSuperseded) ||
		errors.Is(err, context.Canceled)
}
