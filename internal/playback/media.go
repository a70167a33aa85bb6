package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"rigveda-go/internal/corpus"
	"rigveda-go/internal/logging"
)

// ErrClosed is returned by a media session after Close.
var ErrClosed = errors.New("media session closed")

// ErrNotBuffered is returned by Play before the asset has been downloaded.
var ErrNotBuffered = errors.New("media not buffered")

// ErrTooLarge is reported when an asset exceeds the buffer limit.
var ErrTooLarge = errors.New("audio asset too large")

const defaultTick = 250 * time.Millisecond

// maxAudioBytes caps the size of a buffered asset.
var maxAudioBytes int64 = 256 << 20

// ClockOptions configures ClockMedia.
type ClockOptions struct {
	Client *http.Client
	// Tick is the interval between time updates while playing.
	Tick time.Duration
	// Command optionally runs an external audio player while playing.
	// "{url}" and "{start}" in any argument are replaced with the asset
	// URL and the start position in seconds.
	Command []string
	Logger  *zap.Logger
}

// ClockMedia buffers an MP3 asset, reads its length from the frame headers
// and reports a wall clock position while playing. When a player command is
// configured the audio is heard through it.
type ClockMedia struct {
	client  *http.Client
	tick    time.Duration
	command []string
	logger  *zap.Logger

	mu       sync.Mutex
	url      string
	sink     Sink
	duration float64
	position float64
	buffered bool
	playing  bool
	closed   bool
	started  time.Time
	stop     chan struct{}
	player   context.CancelFunc
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewClockMedia creates an unopened media session.
func NewClockMedia(opts ClockOptions) *ClockMedia {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	return &ClockMedia{
		client:  client,
		tick:    tick,
		command: opts.Command,
		logger:  logging.OrNop(opts.Logger).Named("media"),
	}
}

// Open starts downloading url in the background.
func (m *ClockMedia) Open(url string, sink Sink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.sink != nil {
		return fmt.Errorf("media already open for %s", m.url)
	}
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("audio url: %w", corpus.ErrEmptyInput)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.url = url
	m.sink = sink
	m.cancel = cancel
	m.wg.Add(1)
	go m.buffer(ctx)
	return nil
}

func (m *ClockMedia) buffer(ctx context.Context) {
	defer m.wg.Done()

	duration, err := m.download(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		m.logger.Warn("buffer audio", zap.String("url", m.url), zap.Error(err))
		m.sink.OnError(err)
		return
	}

	m.mu.Lock()
	m.duration = duration
	m.buffered = true
	m.mu.Unlock()

	m.logger.Debug("audio buffered", zap.String("url", m.url), zap.Float64("duration", duration))
	m.sink.OnDuration(duration)
	m.sink.OnCanPlayThrough()
}

func (m *ClockMedia) download(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return 0, fmt.Errorf("create audio request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch audio: %v: %w", err, corpus.ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("fetch audio %s: status %d: %w", m.url, resp.StatusCode, corpus.ErrNetwork)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return 0, fmt.Errorf("read audio: %v: %w", err, corpus.ErrNetwork)
	}
	if int64(len(data)) > maxAudioBytes {
		return 0, fmt.Errorf("audio %s is larger than %d bytes: %w", m.url, maxAudioBytes, ErrTooLarge)
	}
	duration, err := mp3Duration(data)
	if err != nil {
		return 0, fmt.Errorf("decode audio %s: %w", m.url, err)
	}
	return duration, nil
}

// Play starts the clock from the current position.
func (m *ClockMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.closed:
		return ErrClosed
	case !m.buffered:
		return ErrNotBuffered
	case m.playing:
		return nil
	}
	if m.position >= m.duration {
		m.position = 0
	}
	m.startLocked()
	return nil
}

// Pause stops the clock and keeps the position.
func (m *ClockMedia) Pause() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.stopLocked()
	m.mu.Unlock()
	return nil
}

// Seek moves the position and reports it at once.
func (m *ClockMedia) Seek(seconds float64) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	seconds = min(max(seconds, 0), m.duration)
	wasPlaying := m.playing
	m.stopLocked()
	m.position = seconds
	if wasPlaying {
		m.startLocked()
	}
	sink := m.sink
	m.mu.Unlock()

	if sink != nil {
		sink.OnTimeUpdate(seconds)
	}
	return nil
}

// Close stops playback and any download and waits for them to finish.
func (m *ClockMedia) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.stopLocked()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

func (m *ClockMedia) startLocked() {
	m.playing = true
	m.started = time.Now()
	stop := make(chan struct{})
	m.stop = stop
	from := m.position

	m.wg.Add(1)
	go m.run(stop, from, m.started)

	if len(m.command) > 0 {
		m.startPlayerLocked(from)
	}
}

// stopLocked folds the running clock into position.
func (m *ClockMedia) stopLocked() {
	if !m.playing {
		return
	}
	m.playing = false
	m.position = min(m.position+time.Since(m.started).Seconds(), m.duration)
	close(m.stop)
	m.stop = nil
	if m.player != nil {
		m.player()
		m.player = nil
	}
}

func (m *ClockMedia) run(stop <-chan struct{}, from float64, started time.Time) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			pos := from + now.Sub(started).Seconds()
			if pos < m.duration {
				m.sink.OnTimeUpdate(pos)
				continue
			}

			m.mu.Lock()
			if m.stop != stop {
				m.mu.Unlock()
				return
			}
			m.playing = false
			m.position = m.duration
			m.stop = nil
			if m.player != nil {
				m.player()
				m.player = nil
			}
			m.mu.Unlock()

			m.sink.OnTimeUpdate(m.duration)
			m.sink.OnEnded()
			return
		}
	}
}

func (m *ClockMedia) startPlayerLocked(from float64) {
	start := strconv.FormatFloat(from, 'f', 2, 64)
	args := make([]string, len(m.command))
	for i, arg := range m.command {
		arg = strings.ReplaceAll(arg, "{url}", m.url)
		args[i] = strings.ReplaceAll(arg, "{start}", start)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		cancel()
		m.logger.Warn("start audio player", zap.Strings("command", args), zap.Error(err))
		return
	}
	m.player = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			m.logger.Warn("audio player exited", zap.Error(err))
		}
	}()
}
