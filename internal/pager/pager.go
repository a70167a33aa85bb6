// Package pager keeps a search query, its remote pagination metadata and the
// visible page of results consistent while the user navigates.
package pager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"rigveda-go/internal/corpus"
	"rigveda-go/internal/logging"
	"rigveda-go/internal/observe"
	"rigveda-go/internal/selection"
)

// ErrSuperseded is returned by a search whose result was dropped because a
// newer search, page or page size change was issued while it was in flight.
var ErrSuperseded = errors.New("search superseded by a newer request")

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Searcher fetches one page of results.
type Searcher interface {
	Search(ctx context.Context, q corpus.SearchQuery) (corpus.SearchPage, error)
}

// VerseFetcher fetches a rik's full content.
type VerseFetcher interface {
	Verse(ctx context.Context, ref corpus.Reference) (corpus.Verse, error)
}

// State is a snapshot of the pager. Page is 1-based.
type State struct {
	Query        string
	Fields       []corpus.Field
	Page         int
	PageSize     int
	TotalPages   int
	TotalResults int
	Hits         []corpus.SearchHit
	Loading      bool
	Err          error
	Selection    selection.State
}

// HasResults reports whether a search has completed with hits.
func (s State) HasResults() bool {
	return len(s.Hits) > 0
}

// Options configures a Pager.
type Options struct {
	PageSize      int
	MinSimilarity float64
	Logger        *zap.Logger
}

// maxRefetches bounds how often a search follows a shrinking result set.
const maxRefetches = 3

// Pager is the search session of one page instance. Only one search is in
// flight at a time; a newer request cancels and supersedes the older one.
type Pager struct {
	searcher      Searcher
	verses        VerseFetcher
	tracker       *selection.Tracker
	minSimilarity float64
	logger        *zap.Logger

	mu     sync.Mutex
	state  State
	seq    uint64
	cancel context.CancelFunc

	hub observe.Hub[State]
}

// New creates a pager with no query.
func New(searcher Searcher, verses VerseFetcher, opts Options) *Pager {
	size := opts.PageSize
	if size < 1 || size > MaxPageSize {
		size = DefaultPageSize
	}

	p := &Pager{
		searcher:      searcher,
		verses:        verses,
		tracker:       selection.New(),
		minSimilarity: opts.MinSimilarity,
		logger:        logging.OrNop(opts.Logger).Named("pager"),
		state: State{
			Page:       1,
			PageSize:   size,
			TotalPages: 1,
		},
	}
	p.tracker.Subscribe(func(selection.State) {
		p.hub.Publish(p.State())
	})
	return p
}

// Subscribe registers fn for every state change.
func (p *Pager) Subscribe(fn func(State)) (cancel func()) {
	return p.hub.Subscribe(fn)
}

// State returns the current snapshot.
func (p *Pager) State() State {
	p.mu.Lock()
	s := p.state
	p.mu.Unlock()
	s.Selection = p.tracker.State()
	return s
}

// Search runs query from page 1 with the current page size. A blank query
// is ignored and returns corpus.ErrEmptyInput without touching state.
func (p *Pager) Search(ctx context.Context, query string, fields []corpus.Field) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("search: %w", corpus.ErrEmptyInput)
	}

	p.mu.Lock()
	size := p.state.PageSize
	p.mu.Unlock()

	return p.fetch(ctx, query, append([]corpus.Field(nil), fields...), 1, size)
}

// GoToPage re-runs the current query at page n. Out of range pages and
// calls before any search are ignored.
func (p *Pager) GoToPage(ctx context.Context, n int) error {
	p.mu.Lock()
	query, fields, size, total := p.state.Query, p.state.Fields, p.state.PageSize, p.state.TotalPages
	p.mu.Unlock()

	if query == "" || n < 1 || n > total {
		return nil
	}
	return p.fetch(ctx, query, fields, n, size)
}

// NextPage and PrevPage step by one page.
func (p *Pager) NextPage(ctx context.Context) error {
	return p.GoToPage(ctx, p.State().Page+1)
}

func (p *Pager) PrevPage(ctx context.Context) error {
	return p.GoToPage(ctx, p.State().Page-1)
}

// ChangePageSize sets the page size and re-runs the current query from page 1.
func (p *Pager) ChangePageSize(ctx context.Context, size int) error {
	if size < 1 || size > MaxPageSize {
		return fmt.Errorf("page size must be between 1 and %d, got %d", MaxPageSize, size)
	}

	p.mu.Lock()
	p.state.PageSize = size
	query, fields := p.state.Query, p.state.Fields
	p.mu.Unlock()

	if query == "" {
		p.hub.Publish(p.State())
		return nil
	}
	return p.fetch(ctx, query, fields, 1, size)
}

// Toggle expands the rik behind key, or collapses it when key is already
// expanded. Later toggles win over earlier ones still in flight.
func (p *Pager) Toggle(ctx context.Context, key selection.Key, ref corpus.Reference) (bool, error) {
	return p.tracker.Select(ctx, key, func(ctx context.Context) (corpus.Verse, error) {
		return p.verses.Verse(ctx, ref)
	})
}

// ToggleHit toggles the i-th hit of the visible page.
func (p *Pager) ToggleHit(ctx context.Context, i int) (bool, error) {
	st := p.State()
	if i < 0 || i >= len(st.Hits) {
		return false, fmt.Errorf("toggle result %d: %w", i, corpus.ErrEmptyInput)
	}
	ref := st.Hits[i].Ref
	return p.Toggle(ctx, selection.KeyFor(ref, selection.ProvenanceSearch), ref)
}

func (p *Pager) fetch(ctx context.Context, query string, fields []corpus.Field, page, size int) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.seq++
	seq := p.seq
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.state.Query = query
	p.state.Fields = fields
	p.state.Page = page
	p.state.PageSize = size
	p.state.Loading = true
	p.state.Err = nil
	p.mu.Unlock()
	defer cancel()

	p.tracker.Clear()

	for attempt := 0; ; attempt++ {
		p.logger.Debug("search",
			zap.String("query", query),
			zap.Int("page", page),
			zap.Int("page_size", size),
			zap.Uint64("seq", seq))

		res, err := p.searcher.Search(ctx, corpus.SearchQuery{
			Query:         query,
			Fields:        fields,
			Page:          page,
			PageSize:      size,
			MinSimilarity: p.minSimilarity,
		})

		p.mu.Lock()
		if seq != p.seq {
			p.mu.Unlock()
			p.logger.Debug("dropping superseded search", zap.Uint64("seq", seq))
			return ErrSuperseded
		}

		if err != nil {
			p.state.Hits = nil
			p.state.TotalResults = 0
			p.state.TotalPages = 1
			p.state.Page = 1
			p.state.Loading = false
			p.state.Err = err
			p.cancel = nil
			p.mu.Unlock()
			p.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
			p.hub.Publish(p.State())
			return err
		}

		totalPages := res.TotalPages
		if totalPages <= 0 {
			totalPages = corpus.PageCount(res.TotalResults, size)
		}

		// the result set shrank under us; follow it to the last page
		if page > totalPages && res.TotalResults > 0 {
			if attempt < maxRefetches {
				page = totalPages
				p.state.Page = page
				p.mu.Unlock()
				continue
			}
			p.logger.Warn("result set kept shrinking",
				zap.String("query", query),
				zap.Int("page", page),
				zap.Int("total_pages", totalPages))
			res.Hits = nil
		}

		p.state.Hits = res.Hits
		p.state.TotalResults = res.TotalResults
		p.state.TotalPages = totalPages
		p.state.Page = min(max(page, 1), totalPages)
		p.state.Loading = false
		p.cancel = nil
		p.mu.Unlock()

		p.hub.Publish(p.State())
		return nil
	}
}
