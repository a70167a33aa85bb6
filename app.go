package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"rigveda-go/internal/api"
	"rigveda-go/internal/assistant"
	"rigveda-go/internal/cache"
	"rigveda-go/internal/config"
	"rigveda-go/internal/corpus"
	"rigveda-go/internal/playback"
	"rigveda-go/internal/store"
)

// app wires the API client, the rik cache, the assistant backend and the
// local database for both the TUI and the subcommands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	client *api.Client
	verses *cache.Loader
	asker  assistant.Asker

	storeOnce sync.Once
	marks     *store.Store
	storeErr  error

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	a.client = api.New(api.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.APITimeout(),
		Token:   cfg.API.Token,
	}, logger)

	st, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}
	a.verses = cache.NewLoader(a.client, st, logger)

	switch cfg.Assistant.Backend {
	case "gemini":
		gen, err := assistant.NewGenAI(ctx, cfg.Assistant.GeminiAPIKey, cfg.Assistant.Model)
		if err != nil {
			return nil, fmt.Errorf("assistant: %w", err)
		}
		a.asker = assistant.NewGemini(a.client, gen, logger)
	default:
		a.asker = a.client
	}

	return a, nil
}

// source is the API client with rik content read through the cache.
func (a *app) source() *cachedSource {
	return &cachedSource{Client: a.client, loader: a.verses}
}

// store opens the bookmarks database on first use.
func (a *app) store() (*store.Store, error) {
	a.storeOnce.Do(func() {
		a.marks, a.storeErr = store.Open(a.cfg.Storage.DatabasePath)
		if a.storeErr == nil {
			a.closers = append(a.closers, a.marks.Close)
		}
	})
	return a.marks, a.storeErr
}

// openCache picks Redis when configured and reachable, then the in-memory
// LRU. A nil store disables caching.
func (a *app) openCache(ctx context.Context) (cache.Store, error) {
	if a.cfg.Cache.RedisURL != "" {
		r, err := cache.DialRedis(ctx, a.cfg.Cache.RedisURL, a.cfg.CacheTTL())
		if err == nil {
			a.closers = append(a.closers, r.Close)
			return r, nil
		}
		a.logger.Warn("redis cache unavailable, using memory", zap.Error(err))
	}
	if a.cfg.Cache.Size <= 0 {
		return nil, nil
	}
	m, err := cache.NewMemory(a.cfg.Cache.Size)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return m, nil
}

func (a *app) searchFields() []corpus.Field {
	fields := corpus.ParseFields(strings.Join(a.cfg.Search.Fields, ","))
	if len(fields) == 0 {
		return []corpus.Field{corpus.FieldTranslation}
	}
	return fields
}

func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

type cachedSource struct {
	*api.Client
	loader *cache.Loader
}

func (s *cachedSource) Verse(ctx context.Context, ref corpus.Reference) (corpus.Verse, error) {
	return s.loader.Verse(ctx, ref)
}

// player creates a narration controller whose media sessions follow the
// configured clock and optional external player.
func (a *app) player() *playback.Controller {
	return playback.NewController(a.client, func() playback.Media {
		return playback.NewClockMedia(playback.ClockOptions{
			Tick:    a.cfg.PlayerTick(),
			Command: a.cfg.Player.Command,
			Logger:  a.logger,
		})
	}, a.logger)
}
