// Package selection tracks which rik is expanded in a list, independent of
// whether it came from browsing, a search hit or an assistant citation.
package selection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"rigveda-go/internal/corpus"
	"rigveda-go/internal/observe"
)

// ErrStale is returned by Select when the selection changed while the
// detail fetch was in flight. The result was discarded.
var ErrStale = errors.New("selection changed before fetch completed")

// Provenance tags distinguish lists that can show the same rik.
const (
	ProvenanceBrowse   = "browse"
	ProvenanceSearch   = "search"
	ProvenancePlayback = "playback"
	ProvenanceBookmark = "bookmark"
)

// CitationProvenance tags citations of one assistant turn.
func CitationProvenance(turn int) string {
	return fmt.Sprintf("citation-%d", turn)
}

// Key identifies a selection. Equal keys are the same selection.
type Key string

// KeyFor derives a stable key from a reference and the list it was picked from.
func KeyFor(ref corpus.Reference, provenance string) Key {
	return Key(fmt.Sprintf("%s:%d:%d:%d", provenance, ref.Mandala, ref.Sukta, ref.Rik))
}

// FetchFunc loads the detail for a selection.
type FetchFunc func(ctx context.Context) (corpus.Verse, error)

// State is a snapshot of the tracker.
type State struct {
	Key     Key
	Detail  *corpus.Verse
	Loading bool
	Err     error
}

// Tracker holds at most one selected key and its detail.
type Tracker struct {
	mu    sync.Mutex
	state State
	token uint64
	hub   observe.Hub[State]
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{}
}

// Subscribe registers fn for every state change.
func (t *Tracker) Subscribe(fn func(State)) (cancel func()) {
	return t.hub.Subscribe(fn)
}

// State returns the current snapshot.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsSelected reports whether key is the current selection.
func (t *Tracker) IsSelected(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return key != "" && t.state.Key == key
}

// Clear drops the selection. A fetch still in flight will be discarded.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.token++
	t.state = State{}
	snap := t.state
	t.mu.Unlock()
	t.hub.Publish(snap)
}

// Select toggles key. Selecting the current key clears it without fetching
// and returns false. Otherwise key becomes current, fetch runs, and its
// result is committed only if key is still current when it resolves.
func (t *Tracker) Select(ctx context.Context, key Key, fetch FetchFunc) (selected bool, err error) {
	if key == "" {
		return false, fmt.Errorf("select: %w", corpus.ErrEmptyInput)
	}

	t.mu.Lock()
	if t.state.Key == key {
		t.token++
		t.state = State{}
		snap := t.state
		t.mu.Unlock()
		t.hub.Publish(snap)
		return false, nil
	}
	t.token++
	token := t.token
	t.state = State{Key: key, Loading: true}
	snap := t.state
	t.mu.Unlock()
	t.hub.Publish(snap)

	verse, err := fetch(ctx)

	t.mu.Lock()
	if t.token != token {
		t.mu.Unlock()
		return true, ErrStale
	}
	t.state.Loading = false
	if err != nil {
		t.state.Err = err
	} else {
		t.state.Detail = &verse
	}
	snap = t.state
	t.mu.Unlock()
	t.hub.Publish(snap)
	return true, err
}
