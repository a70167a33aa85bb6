// Package cache keeps fetched rik content so that re-selecting a rik does not
// go back to the API. Lookups are de-duplicated with singleflight.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"rigveda-go/internal/corpus"
	"rigveda-go/internal/logging"
)

// Store holds rik content by reference.
type Store interface {
	Get(ctx context.Context, ref corpus.Reference) (corpus.Verse, bool, error)
	Set(ctx context.Context, v corpus.Verse) error
}

// Fetcher loads rik content from the source of truth.
type Fetcher interface {
	Verse(ctx context.Context, ref corpus.Reference) (corpus.Verse, error)
}

// Memory is an in-process LRU store.
type Memory struct {
	lru *lru.Cache
}

// NewMemory creates an LRU store holding up to size riks.
func NewMemory(size int) (*Memory, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Memory{lru: c}, nil
}

func (m *Memory) Get(_ context.Context, ref corpus.Reference) (corpus.Verse, bool, error) {
	v, ok := m.lru.Get(ref)
	if !ok {
		return corpus.Verse{}, false, nil
	}
	return v.(corpus.Verse), true, nil
}

func (m *Memory) Set(_ context.Context, v corpus.Verse) error {
	m.lru.Add(v.Ref, v)
	return nil
}

// Len returns the number of cached riks.
func (m *Memory) Len() int {
	return m.lru.Len()
}

// Loader reads through a Store to a Fetcher. With a nil store every call
// goes to the fetcher, still de-duplicated while in flight.
type Loader struct {
	next   Fetcher
	store  Store
	group  singleflight.Group
	logger *zap.Logger
}

// NewLoader wraps next with store.
func NewLoader(next Fetcher, store Store, logger *zap.Logger) *Loader {
	return &Loader{
		next:   next,
		store:  store,
		logger: logging.OrNop(logger).Named("cache"),
	}
}

// Verse returns the cached rik or fetches and stores it. Store failures are
// logged and bypassed; they never fail the lookup.
func (l *Loader) Verse(ctx context.Context, ref corpus.Reference) (corpus.Verse, error) {
	if l.store != nil {
		v, ok, err := l.store.Get(ctx, ref)
		if err != nil {
			l.logger.Warn("cache get failed", zap.Stringer("ref", ref), zap.Error(err))
		} else if ok {
			l.logger.Debug("cache hit", zap.Stringer("ref", ref))
			return v, nil
		}
	}

	res, err, _ := l.group.Do(ref.String(), func() (any, error) {
		v, err := l.next.Verse(ctx, ref)
		if err != nil {
			return corpus.Verse{}, err
		}
		if l.store != nil {
			if err := l.store.Set(ctx, v); err != nil {
				l.logger.Warn("cache set failed", zap.Stringer("ref", ref), zap.Error(err))
			}
		}
		return v, nil
	})
	if err != nil {
		return corpus.Verse{}, err
	}
	return res.(corpus.Verse), nil
}
