package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"wattpad-downloader/book"
	"wattpad-downloader/cache"
	"wattpad-downloader/config"
	"wattpad-downloader/downloader"
	"wattpad-downloader/fetch"
	"wattpad-downloader/session"
	"wattpad-downloader/wattpad"
)

// pipeline is the fully wired build chain shared by the one-shot and serve
// commands.
type pipeline struct {
	downloader *downloader.Downloader
	assembler  *book.Assembler
	cache      *cache.Cache

	closers []func() error
}

func newPipeline(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pipeline, error) {
	fc := fetch.New(fetch.Config{
		Concurrency:  cfg.FetchConcurrency,
		MaxAttempts:  cfg.FetchMaxAttempts,
		RetryWaitMin: cfg.FetchRetryMin,
		RetryWaitMax: cfg.FetchRetryMax,
		Timeout:      cfg.FetchTimeout,
	}, log)

	api := wattpad.NewClient(cfg.BaseURL, fc, log)
	sessions := session.NewManager(api, 0, log)
	dl := downloader.New(api, sessions, wattpad.SanitizeChapterHTML, cfg.BaseURL, log)

	p := &pipeline{
		downloader: dl,
		assembler:  book.NewAssembler(log),
	}

	var backend cache.Backend
	switch cfg.CacheBackend {
	case "redis":
		rb, err := cache.NewRedisBackend(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %v", err)
		}
		p.closers = append(p.closers, rb.Close)
		backend = rb
	default:
		backend = cache.NewMemoryBackend()
	}
	p.cache = cache.New(backend, cache.Config{
		TTL:          cfg.CacheTTL,
		BuildTimeout: cfg.BuildTimeout,
	}, log)

	return p, nil
}

func (p *pipeline) close() {
	for _, c := range p.closers {
		_ = c()
	}
}
