// Package browse drives the mandala → sukta → rik lists. Each stage is
// loaded by the call that changes the stage above it, and answers for a
// stage that has since changed are dropped.
package browse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"rigveda-go/internal/corpus"
	"rigveda-go/internal/logging"
	"rigveda-go/internal/observe"
	"rigveda-go/internal/selection"
)

// ErrStale is returned when a list arrived after its parent selection changed.
var ErrStale = errors.New("browse selection changed")

// Source lists the corpus levels.
type Source interface {
	Books(ctx context.Context) ([]int, error)
	Hymns(ctx context.Context, mandala int) ([]int, error)
	Verses(ctx context.Context, hymn corpus.HymnRef) ([]int, error)
	Verse(ctx context.Context, ref corpus.Reference) (corpus.Verse, error)
}

// Stage names one list level.
type Stage int

const (
	StageBooks Stage = iota
	StageHymns
	StageVerses
)

func (s Stage) String() string {
	switch s {
	case StageHymns:
		return "suktas"
	case StageVerses:
		return "riks"
	}
	return "mandalas"
}

// State is a snapshot of the navigator. Mandala and Sukta are 0 when
// nothing is chosen at that level.
type State struct {
	Books   []int
	Hymns   []int
	Verses  []int
	Mandala int
	Sukta   int
	Loading map[Stage]bool
	Err     error

	Selection selection.State
}

// Hymn returns the chosen sukta, if any.
func (s State) Hymn() (corpus.HymnRef, bool) {
	return corpus.HymnRef{Mandala: s.Mandala, Sukta: s.Sukta}, s.Mandala > 0 && s.Sukta > 0
}

// Navigator holds the cascading selection of one page.
type Navigator struct {
	src     Source
	tracker *selection.Tracker
	logger  *zap.Logger

	mu    sync.Mutex
	state State
	seq   [3]uint64

	hub observe.Hub[State]
}

// New creates a navigator with nothing loaded.
func New(src Source, logger *zap.Logger) *Navigator {
	n := &Navigator{
		src:     src,
		tracker: selection.New(),
		logger:  logging.OrNop(logger).Named("browse"),
	}
	n.tracker.Subscribe(func(selection.State) {
		n.hub.Publish(n.State())
	})
	return n
}

// Subscribe registers fn for every state change.
func (n *Navigator) Subscribe(fn func(State)) (cancel func()) {
	return n.hub.Subscribe(fn)
}

// State returns the current snapshot.
func (n *Navigator) State() State {
	n.mu.Lock()
	s := n.state
	s.Loading = make(map[Stage]bool, len(n.state.Loading))
	for k, v := range n.state.Loading {
		s.Loading[k] = v
	}
	n.mu.Unlock()
	s.Selection = n.tracker.State()
	return s
}

// Load fetches the list of mandalas.
func (n *Navigator) Load(ctx context.Context) error {
	return n.load(ctx, StageBooks, func(s *State) {}, func(ctx context.Context) ([]int, error) {
		return n.src.Books(ctx)
	})
}

// SelectBook chooses a mandala, clears the sukta and rik below it and
// fetches its suktas.
func (n *Navigator) SelectBook(ctx context.Context, mandala int) error {
	if mandala < 1 {
		return fmt.Errorf("mandala %d: %w", mandala, corpus.ErrEmptyInput)
	}
	n.tracker.Clear()
	return n.load(ctx, StageHymns, func(s *State) {
		s.Mandala = mandala
		s.Sukta = 0
		s.Hymns = nil
		s.Verses = nil
	}, func(ctx context.Context) ([]int, error) {
		return n.src.Hymns(ctx, mandala)
	})
}

// SelectHymn chooses a sukta of the current mandala, clears the rik and
// fetches its riks.
func (n *Navigator) SelectHymn(ctx context.Context, sukta int) error {
	n.mu.Lock()
	mandala := n.state.Mandala
	n.mu.Unlock()
	if mandala < 1 || sukta < 1 {
		return fmt.Errorf("sukta %d of mandala %d: %w", sukta, mandala, corpus.ErrEmptyInput)
	}
	hymn := corpus.HymnRef{Mandala: mandala, Sukta: sukta}

	n.tracker.Clear()
	return n.load(ctx, StageVerses, func(s *State) {
		s.Sukta = sukta
		s.Verses = nil
	}, func(ctx context.Context) ([]int, error) {
		return n.src.Verses(ctx, hymn)
	})
}

// SelectVerse toggles rik of the current sukta and fetches its content.
func (n *Navigator) SelectVerse(ctx context.Context, rik int) (bool, error) {
	st := n.State()
	hymn, ok := st.Hymn()
	if !ok || rik < 1 {
		return false, fmt.Errorf("rik %d: %w", rik, corpus.ErrEmptyInput)
	}
	ref := corpus.Reference{Mandala: hymn.Mandala, Sukta: hymn.Sukta, Rik: rik}
	return n.tracker.Select(ctx, selection.KeyFor(ref, selection.ProvenanceBrowse), func(ctx context.Context) (corpus.Verse, error) {
		return n.src.Verse(ctx, ref)
	})
}

// Jump walks all three stages to ref.
func (n *Navigator) Jump(ctx context.Context, ref corpus.Reference) error {
	if !ref.Valid() {
		return fmt.Errorf("jump to %s: %w", ref, corpus.ErrEmptyInput)
	}
	if err := n.SelectBook(ctx, ref.Mandala); err != nil {
		return err
	}
	if err := n.SelectHymn(ctx, ref.Sukta); err != nil {
		return err
	}
	if n.tracker.IsSelected(selection.KeyFor(ref, selection.ProvenanceBrowse)) {
		return nil
	}
	_, err := n.SelectVerse(ctx, ref.Rik)
	return err
}

// load runs one stage. Selecting a stage invalidates the stages below it.
func (n *Navigator) load(ctx context.Context, stage Stage, reset func(*State), fetch func(context.Context) ([]int, error)) error {
	n.mu.Lock()
	for s := stage; s <= StageVerses; s++ {
		n.seq[s]++
		delete(n.state.Loading, s)
	}
	seq := n.seq[stage]
	reset(&n.state)
	if n.state.Loading == nil {
		n.state.Loading = make(map[Stage]bool)
	}
	n.state.Loading[stage] = true
	n.state.Err = nil
	n.mu.Unlock()
	n.hub.Publish(n.State())

	items, err := fetch(ctx)

	n.mu.Lock()
	if seq != n.seq[stage] {
		n.mu.Unlock()
		n.logger.Debug("dropping stale list", zap.Stringer("stage", stage))
		return ErrStale
	}
	delete(n.state.Loading, stage)
	if err != nil {
		n.state.Err = fmt.Errorf("load %s: %w", stage, err)
		err = n.state.Err
	} else {
		switch stage {
		case StageBooks:
			n.state.Books = items
		case StageHymns:
			n.state.Hymns = items
		case StageVerses:
			n.state.Verses = items
		}
	}
	n.mu.Unlock()

	if err != nil {
		n.logger.Warn("browse load failed", zap.Stringer("stage", stage), zap.Error(err))
	}
	n.hub.Publish(n.State())
	return err
}
