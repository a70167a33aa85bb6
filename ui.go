package main

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rigveda-go/internal/assistant"
	"rigveda-go/internal/browse"
	"rigveda-go/internal/config"
	"rigveda-go/internal/corpus"
	"rigveda-go/internal/pager"
	"rigveda-go/internal/playback"
	"rigveda-go/internal/selection"
	"rigveda-go/internal/store"
)

type model struct {
	svc   *services
	theme config.ThemeConfig

	nav     browse.State
	track   playback.Snapshot
	results pager.State
	talk    assistant.State

	mode         mode
	selected     int
	scrollOffset int
	resultSel    int
	citeSel      int
	height       int
	width        int
	zenMode      bool
	follow       bool
	field        int
	restore      *AppState

	daily     *corpus.SearchHit
	bookmarks map[corpus.Reference]bool
	notes     map[corpus.Reference][]store.Note
	answers   map[string]string
	status    string
	err       error

	input    textinput.Model
	spinner  spinner.Model
	dots     paginator.Model
	progress progress.Model

	bookStyle     lipgloss.Style
	verseNumStyle lipgloss.Style
	textStyle     lipgloss.Style
	dimStyle      lipgloss.Style
	errStyle      lipgloss.Style
}

type mode int

const (
	browseMode mode = iota
	searchMode
	askMode
)

// fieldNames are the rik texts the list can show, cycled with t/T.
var fieldNames = []string{"translation", "samhita", "transliteration", "padapatha"}

const seekStep = 0.05

func newModel(svc *services, theme config.ThemeConfig, saved AppState) model {
	input := textinput.New()
	input.Prompt = "› "
	input.CharLimit = 256

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.HighlightColor))

	dots := paginator.New()
	dots.Type = paginator.Dots
	dots.ActiveDot = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.HighlightColor)).Render("•")
	dots.InactiveDot = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.DimColor)).Render("•")

	bar := progress.New(progress.WithSolidFill(theme.VerseNumColor), progress.WithoutPercentage())

	field := 0
	for i, name := range fieldNames {
		if name == saved.Field {
			field = i
		}
	}

	return model{
		svc:           svc,
		theme:         theme,
		mode:          browseMode,
		height:        24,
		width:         80,
		zenMode:       saved.ZenMode,
		follow:        true,
		field:         field,
		restore:       &saved,
		bookmarks:     make(map[corpus.Reference]bool),
		notes:         make(map[corpus.Reference][]store.Note),
		answers:       make(map[string]string),
		input:         input,
		spinner:       spin,
		dots:          dots,
		progress:      bar,
		bookStyle:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(theme.HighlightColor)),
		verseNumStyle: lipgloss.NewStyle().Foreground(lipgloss.Color(theme.VerseNumColor)).Bold(true),
		textStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color(theme.TextColor)),
		dimStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color(theme.DimColor)),
		errStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color(theme.ErrorColor)),
	}
}

func (m model) saveCurrentState() {
	state := AppState{
		Mandala:      m.nav.Mandala,
		Sukta:        m.nav.Sukta,
		Selected:     m.selected,
		ScrollOffset: m.scrollOffset,
		ZenMode:      m.zenMode,
		Field:        fieldNames[m.field],
	}
	if state.Mandala < 1 || state.Sukta < 1 {
		return
	}
	saveState(state)
}

func (m model) Init() tea.Cmd {
	start := getDefaultAppState()
	if m.restore != nil {
		start = *m.restore
	}
	return tea.Batch(
		m.svc.openHymn(start.Mandala, start.Sukta, 0),
		m.svc.pick(false),
		m.svc.loadBookmarks(),
		m.spinner.Tick,
	)
}

// setErr shows err in the banner. Errors that only mean a newer action
// replaced an older one are dropped.
func (m *model) setErr(err error) {
	if err == nil || quiet(err) {
		return
	}
	if errors.Is(err, corpus.ErrEmptyInput) {
		m.status = "Type something first"
		return
	}
	m.err = err
}

func (m *model) riks() []corpus.Verse {
	return m.track.Riks
}

func (m *model) selectedRik() (corpus.Verse, bool) {
	riks := m.riks()
	if m.selected < 0 || m.selected >= len(riks) {
		return corpus.Verse{}, false
	}
	return riks[m.selected], true
}

// focusRik puts the cursor on rik number n of the loaded sukta.
func (m *model) focusRik(n int) {
	for i, v := range m.riks() {
		if v.Ref.Rik == n {
			m.selected = i
			return
		}
	}
}

func (m *model) applyHymn(msg hymnMsg) {
	m.nav = msg.browse
	m.track = msg.track
	m.selected = 0
	m.scrollOffset = 0
	if msg.err != nil {
		m.setErr(msg.err)
		return
	}
	m.err = nil
	if r := m.restore; r != nil {
		m.restore = nil
		if r.Mandala == m.nav.Mandala && r.Sukta == m.nav.Sukta && r.Selected < len(m.riks()) {
			m.selected = r.Selected
			m.scrollOffset = r.ScrollOffset
		}
	}
	if msg.focus > 0 {
		m.focusRik(msg.focus)
	}
	m.adjustScrollOffset(len(m.riks()), m.getVisibleVerses())
}

func (m *model) applyTrack(snap playback.Snapshot) {
	m.track = snap
	if m.follow && snap.Playing && snap.Index != m.selected && snap.Index < len(snap.Riks) {
		m.selected = snap.Index
		if !m.zenMode {
			m.adjustScrollOffset(len(snap.Riks), m.getVisibleVerses())
		}
	}
}

func (m *model) applyResults(st pager.State) {
	m.results = st
	m.resultSel = max(0, min(len(st.Hits)-1, m.resultSel))
	m.dots.TotalPages = max(1, st.TotalPages)
	m.dots.Page = max(0, st.Page-1)
}

// citation is one cited rik of the transcript, flattened across turns.
type citation struct {
	turn int
	i    int
	hit  corpus.SearchHit
}

func (m *model) citations() []citation {
	var out []citation
	for _, t := range m.talk.Turns {
		for i, h := range t.Citations {
			out = append(out, citation{turn: t.ID, i: i, hit: h})
		}
	}
	return out
}

func (m *model) moveUp(listLen int) {
	cur := m.cursor()
	if *cur > 0 {
		*cur--
		if m.mode == browseMode && !m.zenMode {
			m.adjustScrollOffset(listLen, m.getVisibleVerses())
		}
	}
}

func (m *model) moveDown(listLen int) {
	cur := m.cursor()
	if *cur < listLen-1 {
		*cur++
		if m.mode == browseMode && !m.zenMode {
			m.adjustScrollOffset(listLen, m.getVisibleVerses())
		}
	}
}

// cursor returns the selection index of the active list.
func (m *model) cursor() *int {
	switch m.mode {
	case searchMode:
		return &m.resultSel
	case askMode:
		return &m.citeSel
	}
	return &m.selected
}

func (m *model) getActiveList() (int, bool) {
	switch m.mode {
	case searchMode:
		return len(m.results.Hits), len(m.results.Hits) > 0
	case askMode:
		n := len(m.citations())
		return n, n > 0
	}
	return len(m.riks()), true
}

func (m *model) handleMovement(direction string) {
	listLen, ok := m.getActiveList()
	if !ok {
		return
	}

	switch direction {
	case "up":
		m.moveUp(listLen)
	case "down":
		m.moveDown(listLen)
	case "pageUp":
		m.pageUp(listLen)
	case "pageDown":
		m.pageDown(listLen)
	case "top":
		*m.cursor() = 0
		if m.mode == browseMode {
			m.scrollOffset = 0
		}
	case "bottom":
		*m.cursor() = max(0, listLen-1)
		if m.mode == browseMode {
			m.adjustScrollOffset(listLen, m.getVisibleVerses())
		}
	}
}

func (m *model) pageDown(listLen int) {
	visibleVerses := m.getVisibleVerses()
	halfPage := max(1, visibleVerses/2)
	cur := m.cursor()
	*cur = min(listLen-1, *cur+halfPage)
	if m.mode == browseMode {
		m.adjustScrollOffset(listLen, visibleVerses)
	}
}

func (m *model) pageUp(listLen int) {
	visibleVerses := m.getVisibleVerses()
	halfPage := max(1, visibleVerses/2)
	cur := m.cursor()
	*cur = max(0, *cur-halfPage)
	if m.mode == browseMode {
		m.adjustScrollOffset(listLen, visibleVerses)
	}
}

func (m *model) enterInput(to mode, placeholder string) tea.Cmd {
	m.mode = to
	m.status = ""
	m.input.Reset()
	m.input.Placeholder = placeholder
	return m.input.Focus()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.width = msg.Width
		m.input.Width = max(10, msg.Width-8)
		m.progress.Width = max(10, msg.Width/3)
		if m.scrollOffset > 0 && len(m.riks()) > 0 {
			m.adjustScrollOffset(len(m.riks()), m.getVisibleVerses())
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case hymnMsg:
		m.applyHymn(msg)
		return m, nil

	case browseMsg:
		m.nav = msg.state
		m.setErr(msg.err)
		if sel := msg.state.Selection; sel.Detail != nil && msg.err == nil {
			return m, m.svc.loadNotes(sel.Detail.Ref)
		}
		return m, nil

	case playerMsg:
		m.applyTrack(msg.snap)
		m.setErr(msg.err)
		return m, nil

	case resultsMsg:
		m.applyResults(msg.state)
		m.setErr(msg.err)
		return m, nil

	case chatMsg:
		m.talk = msg.state
		m.citeSel = max(0, min(len(m.citations())-1, m.citeSel))
		m.setErr(msg.err)
		return m, nil

	case pickMsg:
		if msg.err != nil {
			m.setErr(msg.err)
			return m, nil
		}
		if !msg.random {
			hit := msg.hit
			m.daily = &hit
			return m, nil
		}
		return m, m.svc.openHymn(msg.hit.Ref.Mandala, msg.hit.Ref.Sukta, msg.hit.Ref.Rik)

	case bookmarksMsg:
		m.setErr(msg.err)
		if msg.err == nil {
			m.bookmarks = make(map[corpus.Reference]bool, len(msg.marks))
			for _, b := range msg.marks {
				m.bookmarks[b.Ref] = true
			}
		}
		if msg.status != "" {
			m.status = msg.status
		}
		return m, nil

	case notesMsg:
		m.setErr(msg.err)
		if msg.err == nil {
			m.notes[msg.ref] = msg.notes
		}
		return m, nil

	case statusMsg:
		m.status = msg.text
		m.setErr(msg.err)
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.saveCurrentState()
			return m, tea.Quit
		}
		m.err = nil
		switch m.mode {
		case searchMode:
			return m.updateSearch(msg)
		case askMode:
			return m.updateAsk(msg)
		}
		return m.updateBrowse(msg)
	}

	return m, nil
}

func (m model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	svc := m.svc
	switch msg.String() {
	case "q", "esc":
		m.saveCurrentState()
		return m, tea.Quit
	case "k", "up":
		m.handleMovement("up")
	case "j", "down":
		m.handleMovement("down")
	case "ctrl+u":
		m.handleMovement("pageUp")
	case "ctrl+d":
		m.handleMovement("pageDown")
	case "g":
		m.handleMovement("top")
	case "G":
		m.handleMovement("bottom")
	case "h", "left":
		if mandala, sukta, ok := stepHymn(m.nav, -1); ok {
			return m, svc.openHymn(mandala, sukta, 0)
		}
	case "l", "right":
		if mandala, sukta, ok := stepHymn(m.nav, 1); ok {
			return m, svc.openHymn(mandala, sukta, 0)
		}
	case "b", "pgup":
		if mandala, ok := stepBook(m.nav, -1); ok {
			return m, svc.openHymn(mandala, 1, 0)
		}
	case "w", "pgdown":
		if mandala, ok := stepBook(m.nav, 1); ok {
			return m, svc.openHymn(mandala, 1, 0)
		}
	case "t":
		m.field = (m.field + 1) % len(fieldNames)
	case "T":
		m.field = (m.field + len(fieldNames) - 1) % len(fieldNames)
	case "z":
		m.zenMode = !m.zenMode
	case "f":
		m.follow = !m.follow
	case "enter":
		if v, ok := m.selectedRik(); ok {
			return m, svc.toggleVerse(v.Ref.Rik)
		}
	case " ", "space":
		return m, svc.transport((*playback.Controller).TogglePlayback)
	case "p":
		i := m.selected
		m.follow = true
		return m, svc.transport(func(c *playback.Controller) error { return c.SeekToVerse(i) })
	case "[":
		return m, svc.transport(func(c *playback.Controller) error { return c.Advance(-1) })
	case "]":
		return m, svc.transport(func(c *playback.Controller) error { return c.Advance(1) })
	case ",", ".":
		if m.track.Duration <= 0 {
			return m, nil
		}
		f := m.track.Elapsed / m.track.Duration
		if msg.String() == "," {
			f -= seekStep
		} else {
			f += seekStep
		}
		return m, svc.transport(func(c *playback.Controller) error { return c.SeekToFraction(f) })
	case "m":
		if v, ok := m.selectedRik(); ok {
			return m, svc.toggleBookmark(v.Ref)
		}
	case "e":
		if hymn, ok := m.nav.Hymn(); ok {
			m.status = "Exporting " + hymn.String() + "…"
			return m, svc.exportHymn(hymn)
		}
	case "r":
		return m, svc.pick(true)
	case "d":
		if m.daily != nil {
			ref := m.daily.Ref
			return m, svc.openHymn(ref.Mandala, ref.Sukta, ref.Rik)
		}
		return m, svc.pick(false)
	case "/":
		return m, m.enterInput(searchMode, "Search riks, or jump to 1.1.1")
	case "?":
		return m, m.enterInput(askMode, "Ask about the Rigveda")
	}
	return m, nil
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.input.Focused() {
		switch msg.Type {
		case tea.KeyEsc:
			if m.results.HasResults() {
				m.input.Blur()
			} else {
				m.mode = browseMode
			}
			return m, nil
		case tea.KeyEnter:
			query := m.input.Value()
			if ref, ok := corpus.ParseReference(query); ok {
				m.mode = browseMode
				m.input.Reset()
				return m, m.svc.openHymn(ref.Mandala, ref.Sukta, ref.Rik)
			}
			if strings.TrimSpace(query) != "" {
				m.input.Blur()
				m.resultSel = 0
			}
			return m, m.svc.search(query)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "esc", "q":
		m.mode = browseMode
	case "/":
		m.input.Reset()
		return m, m.input.Focus()
	case "k", "up":
		m.handleMovement("up")
	case "j", "down":
		m.handleMovement("down")
	case "ctrl+u":
		m.handleMovement("pageUp")
	case "ctrl+d":
		m.handleMovement("pageDown")
	case "g":
		m.handleMovement("top")
	case "G":
		m.handleMovement("bottom")
	case "enter":
		if m.resultSel < len(m.results.Hits) {
			return m, m.svc.toggleHit(m.resultSel)
		}
	case "o":
		if m.resultSel < len(m.results.Hits) {
			ref := m.results.Hits[m.resultSel].Ref
			m.mode = browseMode
			return m, m.svc.openHymn(ref.Mandala, ref.Sukta, ref.Rik)
		}
	case "n", "right":
		m.resultSel = 0
		return m, m.svc.page(func(ctx context.Context, p *pager.Pager) error { return p.NextPage(ctx) })
	case "p", "left":
		m.resultSel = 0
		return m, m.svc.page(func(ctx context.Context, p *pager.Pager) error { return p.PrevPage(ctx) })
	case "+", "-":
		size := m.results.PageSize
		if msg.String() == "+" {
			size = min(pager.MaxPageSize, size+5)
		} else {
			size = max(5, size-5)
		}
		m.resultSel = 0
		return m, m.svc.page(func(ctx context.Context, p *pager.Pager) error {
			return p.ChangePageSize(ctx, size)
		})
	}
	return m, nil
}

func (m model) updateAsk(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.input.Focused() {
		switch msg.Type {
		case tea.KeyEsc:
			if len(m.citations()) > 0 {
				m.input.Blur()
			} else {
				m.mode = browseMode
			}
			return m, nil
		case tea.KeyTab:
			if len(m.citations()) > 0 {
				m.input.Blur()
			}
			return m, nil
		case tea.KeyEnter:
			query := m.input.Value()
			m.input.Reset()
			return m, m.svc.ask(query)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	cites := m.citations()
	switch msg.String() {
	case "esc", "q":
		m.mode = browseMode
	case "tab", "?", "i":
		return m, m.input.Focus()
	case "k", "up":
		m.handleMovement("up")
	case "j", "down":
		m.handleMovement("down")
	case "g":
		m.handleMovement("top")
	case "G":
		m.handleMovement("bottom")
	case "enter":
		if m.citeSel < len(cites) {
			c := cites[m.citeSel]
			return m, m.svc.toggleCitation(c.turn, c.i)
		}
	case "o":
		if m.citeSel < len(cites) {
			ref := cites[m.citeSel].hit.Ref
			m.mode = browseMode
			return m, m.svc.openHymn(ref.Mandala, ref.Sukta, ref.Rik)
		}
	case "ctrl+l":
		m.citeSel = 0
		m.answers = make(map[string]string)
		return m, m.svc.resetChat()
	}
	return m, nil
}

// isExpanded reports whether ref's detail is open in the browse list.
func (m model) isExpanded(ref corpus.Reference) (*corpus.Verse, bool) {
	sel := m.nav.Selection
	if sel.Key != selection.KeyFor(ref, selection.ProvenanceBrowse) {
		return nil, false
	}
	return sel.Detail, true
}

func (m model) loading() bool {
	for _, busy := range m.nav.Loading {
		if busy {
			return true
		}
	}
	return m.track.Status == playback.StatusLoading ||
		m.track.Waiting ||
		m.results.Loading ||
		m.nav.Selection.Loading ||
		m.results.Selection.Loading ||
		m.talk.Pending() ||
		m.talk.Selection.Loading
}
