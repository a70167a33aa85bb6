package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"rigveda-go/internal/corpus"
	"rigveda-go/internal/logging"
	"rigveda-go/internal/observe"
	"rigveda-go/internal/selection"
)

// VerseFetcher loads a cited rik in full.
type VerseFetcher interface {
	Verse(ctx context.Context, ref corpus.Reference) (corpus.Verse, error)
}

// Turn is one question and its answer. Turns are numbered from 1.
type Turn struct {
	ID        int
	Question  string
	Answer    string
	Citations []corpus.SearchHit
	Pending   bool
	Err       error
}

// State is a snapshot of the transcript.
type State struct {
	Turns     []Turn
	Selection selection.State
}

// Pending reports whether any question is still unanswered.
func (s State) Pending() bool {
	for _, t := range s.Turns {
		if t.Pending {
			return true
		}
	}
	return false
}

// TranscriptOptions configures a Transcript.
type TranscriptOptions struct {
	MaxResults int
	Fields     []corpus.Field
	Logger     *zap.Logger
}

// Transcript is the conversation of one page with the assistant.
type Transcript struct {
	asker      Asker
	verses     VerseFetcher
	tracker    *selection.Tracker
	maxResults int
	fields     []corpus.Field
	logger     *zap.Logger

	mu    sync.Mutex
	turns []Turn
	gen   uint64

	hub observe.Hub[State]
}

// NewTranscript creates an empty transcript.
func NewTranscript(asker Asker, verses VerseFetcher, opts TranscriptOptions) *Transcript {
	limit := opts.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	t := &Transcript{
		asker:      asker,
		verses:     verses,
		tracker:    selection.New(),
		maxResults: limit,
		fields:     opts.Fields,
		logger:     logging.OrNop(opts.Logger).Named("transcript"),
	}
	t.tracker.Subscribe(func(selection.State) {
		t.hub.Publish(t.State())
	})
	return t
}

// Subscribe registers fn for every state change.
func (t *Transcript) Subscribe(fn func(State)) (cancel func()) {
	return t.hub.Subscribe(fn)
}

// State returns the current snapshot.
func (t *Transcript) State() State {
	t.mu.Lock()
	turns := make([]Turn, len(t.turns))
	copy(turns, t.turns)
	t.mu.Unlock()
	return State{Turns: turns, Selection: t.tracker.State()}
}

// Ask appends a pending turn for query and fills it in when the answer
// arrives. A blank query adds nothing.
func (t *Transcript) Ask(ctx context.Context, query string) (Turn, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Turn{}, fmt.Errorf("ask: %w", corpus.ErrEmptyInput)
	}

	t.mu.Lock()
	id := len(t.turns) + 1
	gen := t.gen
	t.turns = append(t.turns, Turn{ID: id, Question: query, Pending: true})
	t.mu.Unlock()
	t.hub.Publish(t.State())

	ans, err := t.asker.Ask(ctx, corpus.Question{
		Query:      query,
		MaxResults: t.maxResults,
		Fields:     t.fields,
	})

	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return Turn{ID: id, Question: query, Answer: ans.Text, Citations: ans.Citations, Err: err}, err
	}
	turn := &t.turns[id-1]
	turn.Pending = false
	if err != nil {
		turn.Err = err
	} else {
		turn.Answer = ans.Text
		turn.Citations = ans.Citations
	}
	result := *turn
	t.mu.Unlock()

	if err != nil {
		t.logger.Warn("ask failed", zap.Int("turn", id), zap.Error(err))
	}
	t.hub.Publish(t.State())
	return result, err
}

// ToggleCitation expands or collapses citation i of turn id.
func (t *Transcript) ToggleCitation(ctx context.Context, id, i int) (bool, error) {
	t.mu.Lock()
	if id < 1 || id > len(t.turns) || i < 0 || i >= len(t.turns[id-1].Citations) {
		t.mu.Unlock()
		return false, fmt.Errorf("citation %d of turn %d: %w", i, id, corpus.ErrEmptyInput)
	}
	ref := t.turns[id-1].Citations[i].Ref
	t.mu.Unlock()

	key := selection.KeyFor(ref, selection.CitationProvenance(id))
	return t.tracker.Select(ctx, key, func(ctx context.Context) (corpus.Verse, error) {
		return t.verses.Verse(ctx, ref)
	})
}

// Reset drops every turn and the selection.
func (t *Transcript) Reset() {
	t.mu.Lock()
	t.turns = nil
	t.gen++
	t.mu.Unlock()
	t.tracker.Clear()
}
