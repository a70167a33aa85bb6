// Package playback follows narrated hymn audio verse by verse. The media
// clock is the only source of time; the controller maps each reported
// position onto the rik being recited.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"rigveda-go/internal/corpus"
	"rigveda-go/internal/logging"
	"rigveda-go/internal/observe"
	"rigveda-go/internal/timeline"
)

// ErrNotReady is returned by transport operations before a hymn is loaded.
var ErrNotReady = errors.New("no hymn loaded")

// ErrSuperseded is returned by a load that lost to a newer one.
var ErrSuperseded = errors.New("load superseded by a newer hymn")

// LoadError reports a hymn that could not be prepared for playback.
type LoadError struct {
	Hymn corpus.HymnRef
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Hymn, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Status is the coarse state of a session.
type Status int

const (
	StatusEmpty Status = iota
	StatusLoading
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	}
	return "empty"
}

// Snapshot is the observable state of the controller.
type Snapshot struct {
	Status   Status
	Hymn     corpus.HymnRef
	AudioURL string
	Riks     []corpus.Verse
	Index    int
	Elapsed  float64
	Duration float64

	Playing  bool
	Waiting  bool // play requested, media still buffering
	Seeking  bool
	Buffered bool

	Err error
}

// Current returns the active rik, if any.
func (s Snapshot) Current() (corpus.Verse, bool) {
	if s.Index < 0 || s.Index >= len(s.Riks) {
		return corpus.Verse{}, false
	}
	return s.Riks[s.Index], true
}

// HymnFetcher loads a hymn's audio URL and riks.
type HymnFetcher interface {
	HymnView(ctx context.Context, hymn corpus.HymnRef) (corpus.HymnView, error)
}

// Sink receives media events. Positions and durations are in seconds.
type Sink interface {
	OnDuration(seconds float64)
	OnCanPlayThrough()
	OnTimeUpdate(seconds float64)
	OnError(err error)
	OnEnded()
}

// Media is one audio session. Open starts buffering and returns at once;
// progress is reported to the sink.
type Media interface {
	Open(url string, sink Sink) error
	Play() error
	Pause() error
	Seek(seconds float64) error
	Close() error
}

// Controller owns the single playback session of a page.
type Controller struct {
	fetcher  HymnFetcher
	newMedia func() Media
	logger   *zap.Logger

	mu      sync.Mutex
	state   Snapshot
	media   Media
	loadSeq uint64
	session uint64
	// seek requested before the duration was known
	pendingSeek  float64
	pendingIndex int
	hasPending   bool

	hub observe.Hub[Snapshot]
}

// NewController creates an empty controller. newMedia is called once per
// loaded hymn.
func NewController(fetcher HymnFetcher, newMedia func() Media, logger *zap.Logger) *Controller {
	return &Controller{
		fetcher:  fetcher,
		newMedia: newMedia,
		logger:   logging.OrNop(logger).Named("playback"),
	}
}

// Subscribe registers fn for every state change.
func (c *Controller) Subscribe(fn func(Snapshot)) (cancel func()) {
	return c.hub.Subscribe(fn)
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LoadHymn fetches hymn and opens a new media session for it. On success
// the controller is ready and paused at the first rik.
func (c *Controller) LoadHymn(ctx context.Context, hymn corpus.HymnRef) error {
	c.mu.Lock()
	c.loadSeq++
	seq := c.loadSeq
	c.session++
	old := c.media
	c.media = nil
	c.hasPending = false
	c.state = Snapshot{Status: StatusLoading, Hymn: hymn}
	snap := c.state
	c.mu.Unlock()

	c.closeMedia(old)
	c.hub.Publish(snap)

	view, err := c.fetcher.HymnView(ctx, hymn)
	if err == nil && len(view.Riks) == 0 {
		err = fmt.Errorf("hymn has no riks: %w", corpus.ErrNotFound)
	}

	c.mu.Lock()
	if seq != c.loadSeq {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		loadErr := &LoadError{Hymn: hymn, Err: err}
		c.state = Snapshot{Status: StatusEmpty, Hymn: hymn, Err: loadErr}
		snap = c.state
		c.mu.Unlock()
		c.logger.Warn("load hymn failed", zap.Stringer("hymn", hymn), zap.Error(err))
		c.hub.Publish(snap)
		return loadErr
	}

	c.session++
	session := c.session
	media := c.newMedia()
	c.media = media
	c.state = Snapshot{
		Status:   StatusReady,
		Hymn:     hymn,
		AudioURL: view.AudioURL,
		Riks:     view.Riks,
	}
	snap = c.state
	c.mu.Unlock()

	c.logger.Info("hymn loaded",
		zap.Stringer("hymn", hymn),
		zap.Int("riks", len(view.Riks)),
		zap.String("audio_url", view.AudioURL))
	c.hub.Publish(snap)

	if err := media.Open(view.AudioURL, &sessionSink{c: c, id: session}); err != nil {
		c.mediaError(session, err)
	}
	return nil
}

// Close ends the media session and empties the controller.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.loadSeq++
	c.session++
	old := c.media
	c.media = nil
	c.state = Snapshot{}
	snap := c.state
	c.mu.Unlock()

	err := c.closeMedia(old)
	c.hub.Publish(snap)
	return err
}

// TogglePlayback pauses while playing. While paused it starts playback, or
// waits for the media to report it can play through. A media error is
// returned as is; it is never retried.
func (c *Controller) TogglePlayback() error {
	c.mu.Lock()
	if c.state.Status != StatusReady || c.media == nil {
		c.mu.Unlock()
		return ErrNotReady
	}
	if c.state.Err != nil {
		err := c.state.Err
		c.mu.Unlock()
		return err
	}

	media := c.media
	var action func() error
	switch {
	case c.state.Playing:
		c.state.Playing = false
		action = media.Pause
	case c.state.Waiting:
		c.state.Waiting = false
	case !c.state.Buffered:
		c.state.Waiting = true
	default:
		c.state.Playing = true
		action = media.Play
	}
	session := c.session
	snap := c.state
	c.mu.Unlock()

	c.hub.Publish(snap)
	if action != nil {
		if err := action(); err != nil {
			c.mediaError(session, err)
			return err
		}
	}
	return nil
}

// SeekToFraction moves to f of the track, f clamped to [0, 1]. The active
// rik is recomputed at once rather than on the next time update.
func (c *Controller) SeekToFraction(f float64) error {
	_, err := c.seek(f, -1, false)
	return err
}

// SeekToVerse jumps to the start of rik i and starts playback if paused.
func (c *Controller) SeekToVerse(i int) error {
	c.mu.Lock()
	count := len(c.state.Riks)
	c.mu.Unlock()
	if count == 0 {
		return ErrNotReady
	}
	i = min(max(i, 0), count-1)
	_, err := c.seek(timeline.Fraction(i, count), i, true)
	return err
}

// Advance moves to the next (dir > 0) or previous rik. It does nothing on
// the first or last rik.
func (c *Controller) Advance(dir int) error {
	c.mu.Lock()
	if c.state.Status != StatusReady {
		c.mu.Unlock()
		return ErrNotReady
	}
	count := len(c.state.Riks)
	next := c.state.Index
	switch {
	case dir > 0:
		next++
	case dir < 0:
		next--
	}
	c.mu.Unlock()

	if next < 0 || next >= count || dir == 0 {
		return nil
	}
	_, err := c.seek(timeline.Fraction(next, count), next, false)
	return err
}

// seek moves to fraction f. A non-negative index pins the active rik,
// which f*duration may miss by a rounding error.
func (c *Controller) seek(f float64, index int, play bool) (bool, error) {
	f = min(max(f, 0), 1)

	c.mu.Lock()
	if c.state.Status != StatusReady || c.media == nil {
		c.mu.Unlock()
		return false, ErrNotReady
	}
	media := c.media
	session := c.session
	count := len(c.state.Riks)

	var target float64
	if c.state.Duration > 0 {
		target = seekTarget(f, c.state.Duration, index)
		c.state.Elapsed = target
		c.state.Seeking = true
		if idx, ok := timeline.VerseIndex(target, c.state.Duration, count); ok {
			c.state.Index = idx
		}
	} else {
		// unknown length: place the index now and seek once the
		// duration arrives
		c.pendingSeek, c.pendingIndex, c.hasPending = f, index, true
		if idx, ok := timeline.VerseIndex(f, 1, count); ok {
			c.state.Index = idx
		}
	}
	if index >= 0 && index < count {
		c.state.Index = index
	}

	startPlay := false
	if play && !c.state.Playing && c.state.Err == nil {
		if c.state.Buffered {
			c.state.Playing = true
			startPlay = true
		} else {
			c.state.Waiting = true
		}
	}
	known := c.state.Duration > 0
	snap := c.state
	c.mu.Unlock()

	c.hub.Publish(snap)

	if known {
		if err := media.Seek(target); err != nil {
			c.mediaError(session, err)
			return false, err
		}
	}
	if startPlay {
		if err := media.Play(); err != nil {
			c.mediaError(session, err)
			return false, err
		}
	}
	return startPlay, nil
}

// seekTarget converts fraction f of duration to seconds. A seek pinned to
// rik index > 0 lands just inside it so later time updates map back to it.
func seekTarget(f, duration float64, index int) float64 {
	target := f * duration
	if index > 0 {
		target = min(target+1e-6, duration)
	}
	return target
}

func (c *Controller) closeMedia(m Media) error {
	if m == nil {
		return nil
	}
	if err := m.Close(); err != nil {
		c.logger.Warn("close media", zap.Error(err))
		return err
	}
	return nil
}

// update applies fn to the state of session and publishes the result.
// Events from a closed session are dropped.
func (c *Controller) update(session uint64, fn func(s *Snapshot) func()) {
	c.mu.Lock()
	if session != c.session || c.state.Status != StatusReady {
		c.mu.Unlock()
		return
	}
	after := fn(&c.state)
	snap := c.state
	c.mu.Unlock()

	c.hub.Publish(snap)
	if after != nil {
		after()
	}
}

func (c *Controller) mediaError(session uint64, err error) {
	c.update(session, func(s *Snapshot) func() {
		s.Err = err
		s.Playing = false
		s.Waiting = false
		s.Seeking = false
		return nil
	})
	c.logger.Warn("media error", zap.Error(err))
}

// sessionSink routes media events of one session to the controller.
type sessionSink struct {
	c  *Controller
	id uint64
}

func (s *sessionSink) OnDuration(seconds float64) {
	c := s.c
	c.update(s.id, func(st *Snapshot) func() {
		st.Duration = seconds
		if c.hasPending && seconds > 0 {
			c.hasPending = false
			st.Elapsed = seekTarget(c.pendingSeek, seconds, c.pendingIndex)
			st.Seeking = true
			target, media := st.Elapsed, c.media
			if idx, ok := timeline.VerseIndex(st.Elapsed, seconds, len(st.Riks)); ok {
				st.Index = idx
			}
			if i := c.pendingIndex; i >= 0 && i < len(st.Riks) {
				st.Index = i
			}
			return func() {
				if err := media.Seek(target); err != nil {
					c.mediaError(s.id, err)
				}
			}
		}
		if idx, ok := timeline.VerseIndex(st.Elapsed, seconds, len(st.Riks)); ok {
			st.Index = idx
		}
		return nil
	})
}

func (s *sessionSink) OnCanPlayThrough() {
	c := s.c
	c.update(s.id, func(st *Snapshot) func() {
		st.Buffered = true
		if !st.Waiting || st.Err != nil {
			return nil
		}
		st.Waiting = false
		st.Playing = true
		media := c.media
		return func() {
			if err := media.Play(); err != nil {
				c.mediaError(s.id, err)
			}
		}
	})
}

func (s *sessionSink) OnTimeUpdate(seconds float64) {
	s.c.update(s.id, func(st *Snapshot) func() {
		st.Elapsed = seconds
		st.Seeking = false
		if idx, ok := timeline.VerseIndex(seconds, st.Duration, len(st.Riks)); ok {
			st.Index = idx
		}
		return nil
	})
}

func (s *sessionSink) OnError(err error) {
	s.c.mediaError(s.id, err)
}

func (s *sessionSink) OnEnded() {
	s.c.update(s.id, func(st *Snapshot) func() {
		st.Playing = false
		st.Waiting = false
		st.Seeking = false
		if st.Duration > 0 {
			st.Elapsed = st.Duration
		}
		st.Index = len(st.Riks) - 1
		return nil
	})
}
