package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"vrewexport/internal/assets"
	"vrewexport/internal/cache"
	"vrewexport/internal/config"
	"vrewexport/internal/fetch"
	"vrewexport/internal/service"
	"vrewexport/internal/storage"
)

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	log      logrus.FieldLogger
	cache    cache.Cache
	objects  *storage.S3
	exporter *service.Exporter
}

func newApp(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*app, error) {
	c, err := newCache(ctx, cfg.Cache, log)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	client := fetch.NewClient(fetch.Options{
		Timeout:       cfg.Fetch.Timeout,
		MaxBytes:      cfg.Fetch.MaxBytes,
		UserAgent:     cfg.Fetch.UserAgent,
		Cache:         c,
		MaxCacheEntry: cfg.Cache.MaxEntryBytes,
		Logger:        log,
	})

	a := &app{cfg: cfg, log: log, cache: c}

	var objects assets.ObjectReader
	if s3, err := storage.NewS3(ctx, storage.S3Config{
		Region:       cfg.S3.Region,
		Profile:      cfg.S3.Profile,
		UsePathStyle: cfg.S3.UsePathStyle,
	}); err != nil {
		log.WithError(err).Warn("s3 unavailable, s3:// references will be skipped")
	} else {
		a.objects = s3
		objects = s3
	}

	resolver := assets.NewResolver(client, objects, log)
	resolver.LocalRoot = cfg.Fetch.LocalRoot
	resolver.MaxBytes = cfg.Fetch.MaxBytes
	resolver.Concurrency = cfg.Fetch.Concurrency

	a.exporter = service.NewExporter(resolver, log)
	a.exporter.WindowConcurrency = cfg.ExportWindows
	return a, nil
}

func newCache(ctx context.Context, cfg config.CacheConfig, log logrus.FieldLogger) (cache.Cache, error) {
	switch cfg.Backend {
	case "redis":
		return cache.NewRedis(ctx, cache.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
			TTL:       cfg.TTL,
		}, log)
	case "none":
		return cache.Nop{}, nil
	default:
		return cache.NewMemory(cfg.TTL), nil
	}
}

func (a *app) Close() error {
	return a.cache.Close()
}
