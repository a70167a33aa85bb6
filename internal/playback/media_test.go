package playback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rigveda-go/internal/corpus"
)

type recordingSink struct {
	durations chan float64
	ready     chan struct{}
	times     chan float64
	errs      chan error
	ended     chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		durations: make(chan float64, 1),
		ready:     make(chan struct{}, 1),
		times:     make(chan float64, 64),
		errs:      make(chan error, 1),
		ended:     make(chan struct{}, 1),
	}
}

func (s *recordingSink) OnDuration(d float64) { s.durations <- d }
func (s *recordingSink) OnCanPlayThrough()    { s.ready <- struct{}{} }
func (s *recordingSink) OnError(err error)    { s.errs <- err }
func (s *recordingSink) OnEnded()             { s.ended <- struct{}{} }

func (s *recordingSink) OnTimeUpdate(t float64) {
	select {
	case s.times <- t:
	default:
	}
}

func audioServer(t *testing.T, frames int) *httptest.Server {
	t.Helper()
	data := cbrStream(frames)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/1/1.mp3" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for media event")
	}
	var zero T
	return zero
}

func openMedia(t *testing.T, srv *httptest.Server, path string) (*ClockMedia, *recordingSink) {
	t.Helper()
	m := NewClockMedia(ClockOptions{Client: srv.Client(), Tick: 5 * time.Millisecond})
	sink := newRecordingSink()
	require.NoError(t, m.Open(srv.URL+path, sink))
	t.Cleanup(func() { m.Close() })
	return m, sink
}

func TestClockMediaBuffersAndReportsDuration(t *testing.T) {
	srv := audioServer(t, 100)
	m, sink := openMedia(t, srv, "/audio/1/1.mp3")

	assert.InDelta(t, 100*frameSeconds, waitFor(t, sink.durations), 1e-6)
	waitFor(t, sink.ready)

	require.NoError(t, m.Seek(1.5))
	assert.Equal(t, 1.5, waitFor(t, sink.times))
}

func TestClockMediaMissingAsset(t *testing.T) {
	srv := audioServer(t, 10)
	m, sink := openMedia(t, srv, "/audio/9/9.mp3")

	err := waitFor(t, sink.errs)
	assert.ErrorIs(t, err, corpus.ErrNetwork)
	assert.Contains(t, err.Error(), "404")
	assert.ErrorIs(t, m.Play(), ErrNotBuffered)
}

func TestClockMediaRejectsOversizedAsset(t *testing.T) {
	limit := maxAudioBytes
	maxAudioBytes = 10 * cbr128FrameLen
	t.Cleanup(func() { maxAudioBytes = limit })

	srv := audioServer(t, 11)
	m, sink := openMedia(t, srv, "/audio/1/1.mp3")

	err := waitFor(t, sink.errs)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.ErrorIs(t, m.Play(), ErrNotBuffered)
}

func TestClockMediaPlaysToEnd(t *testing.T) {
	// two frames, about 52ms of audio
	srv := audioServer(t, 2)
	m, sink := openMedia(t, srv, "/audio/1/1.mp3")
	waitFor(t, sink.ready)

	require.NoError(t, m.Play())
	waitFor(t, sink.ended)

	m.mu.Lock()
	playing, pos, duration := m.playing, m.position, m.duration
	m.mu.Unlock()
	assert.False(t, playing)
	assert.Equal(t, duration, pos)
}

func TestClockMediaPauseKeepsPosition(t *testing.T) {
	srv := audioServer(t, 1000)
	m, sink := openMedia(t, srv, "/audio/1/1.mp3")
	waitFor(t, sink.ready)

	require.NoError(t, m.Play())
	first := waitFor(t, sink.times)
	assert.Greater(t, first, 0.0)
	require.NoError(t, m.Pause())

	m.mu.Lock()
	pos := m.position
	m.mu.Unlock()
	assert.GreaterOrEqual(t, pos, first)
}

func TestClockMediaClosed(t *testing.T) {
	srv := audioServer(t, 10)
	m, sink := openMedia(t, srv, "/audio/1/1.mp3")
	waitFor(t, sink.ready)

	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Play(), ErrClosed)
	assert.ErrorIs(t, m.Seek(0), ErrClosed)
	assert.NoError(t, m.Close())
}

func TestClockMediaDrivesController(t *testing.T) {
	srv := audioServer(t, 2)
	c := NewController(localHymns{base: srv.URL, riks: 2}, func() Media {
		return NewClockMedia(ClockOptions{Client: srv.Client(), Tick: 5 * time.Millisecond})
	}, nil)
	t.Cleanup(func() { c.Close() })

	ended := make(chan struct{}, 1)
	c.Subscribe(func(s Snapshot) {
		if s.Status == StatusReady && s.Elapsed > 0 && !s.Playing && s.Index == 1 {
			select {
			case ended <- struct{}{}:
			default:
			}
		}
	})

	require.NoError(t, c.LoadHymn(context.Background(), corpus.HymnRef{Mandala: 1, Sukta: 1}))
	require.NoError(t, c.TogglePlayback())
	waitFor(t, ended)
	assert.NoError(t, c.Snapshot().Err)
}

// localHymns serves fakeHymns riks with an audio URL on a test server.
type localHymns struct {
	base string
	riks int
}

func (l localHymns) HymnView(ctx context.Context, hymn corpus.HymnRef) (corpus.HymnView, error) {
	view, err := fakeHymns{riks: l.riks}.HymnView(ctx, hymn)
	view.AudioURL = l.base + "/audio/1/1.mp3"
	return view, err
}
