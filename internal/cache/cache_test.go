package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rigveda-go/internal/corpus"
)

type countingFetcher struct {
	calls atomic.Int32
	err   error
	gate  chan struct{}
}

func (f *countingFetcher) Verse(ctx context.Context, ref corpus.Reference) (corpus.Verse, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return corpus.Verse{}, f.err
	}
	return corpus.Verse{Ref: ref, Translation: "rik " + ref.String()}, nil
}

type failingStore struct{}

func (failingStore) Get(context.Context, corpus.Reference) (corpus.Verse, bool, error) {
	return corpus.Verse{}, false, errors.New("store down")
}

func (failingStore) Set(context.Context, corpus.Verse) error {
	return errors.New("store down")
}

var ref = corpus.Reference{Mandala: 1, Sukta: 1, Rik: 1}

func TestLoaderCachesInMemory(t *testing.T) {
	mem, err := NewMemory(8)
	require.NoError(t, err)
	f := &countingFetcher{}
	l := NewLoader(f, mem, nil)

	first, err := l.Verse(context.Background(), ref)
	require.NoError(t, err)
	second, err := l.Verse(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, 1, mem.Len())
}

func TestLoaderWithoutStoreMatchesCachedOutput(t *testing.T) {
	mem, err := NewMemory(8)
	require.NoError(t, err)
	cached := NewLoader(&countingFetcher{}, mem, nil)
	plain := NewLoader(&countingFetcher{}, nil, nil)

	for i := 0; i < 3; i++ {
		a, err := cached.Verse(context.Background(), ref)
		require.NoError(t, err)
		b, err := plain.Verse(context.Background(), ref)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestLoaderDoesNotCacheErrors(t *testing.T) {
	mem, err := NewMemory(8)
	require.NoError(t, err)
	f := &countingFetcher{err: corpus.ErrNetwork}
	l := NewLoader(f, mem, nil)

	_, err = l.Verse(context.Background(), ref)
	assert.ErrorIs(t, err, corpus.ErrNetwork)
	assert.Equal(t, 0, mem.Len())
}

func TestLoaderBypassesBrokenStore(t *testing.T) {
	f := &countingFetcher{}
	l := NewLoader(f, failingStore{}, nil)

	v, err := l.Verse(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, ref, v.Ref)
}

func TestLoaderDeduplicatesConcurrentFetches(t *testing.T) {
	f := &countingFetcher{gate: make(chan struct{})}
	l := NewLoader(f, nil, nil)

	var wg sync.WaitGroup
	results := make([]corpus.Verse, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := l.Verse(context.Background(), ref)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	// let the goroutines pile up on the in-flight call
	for f.calls.Load() == 0 {
	}
	close(f.gate)
	wg.Wait()

	assert.LessOrEqual(t, f.calls.Load(), int32(5))
	for _, r := range results {
		assert.Equal(t, ref, r.Ref)
	}
}

func TestMemoryEvicts(t *testing.T) {
	mem, err := NewMemory(2)
	require.NoError(t, err)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, mem.Set(ctx, corpus.Verse{Ref: corpus.Reference{Mandala: 1, Sukta: 1, Rik: i}}))
	}
	_, ok, _ := mem.Get(ctx, corpus.Reference{Mandala: 1, Sukta: 1, Rik: 1})
	assert.False(t, ok)
	_, ok, _ = mem.Get(ctx, corpus.Reference{Mandala: 1, Sukta: 1, Rik: 3})
	assert.True(t, ok)
}

func TestNewMemoryRejectsZero(t *testing.T) {
	_, err := NewMemory(0)
	assert.Error(t, err)
}
