package main

import (
	"github.com/redis/go-redis/v9"

	"github.com/verdia-ai/verdia/pkg/cache"
	cachesqlite "github.com/verdia-ai/verdia/pkg/cache/sqlite"
	"github.com/verdia-ai/verdia/pkg/config"
	"github.com/verdia-ai/verdia/pkg/gateway"
	"github.com/verdia-ai/verdia/pkg/provider/openrouter"
	"github.com/verdia-ai/verdia/pkg/ratelimit"
	"github.com/verdia-ai/verdia/pkg/tracker"
)

// buildGateway wires a Gateway from configuration. The returned cleanup
// closes every opened resource.
func buildGateway(cfg *config.Config) (*gateway.Gateway, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var quotaStore ratelimit.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = rdb.Close() })
		quotaStore = ratelimit.NewRedisStore(rdb)
	} else {
		quotaStore = ratelimit.NewMemoryStore(nil)
	}
	limiter := ratelimit.New(quotaStore, cfg.Limits)

	var store cache.Store
	if cfg.Cache.Enabled {
		s, err := cachesqlite.New(cfg.DBPath, cfg.Cache.TTL(), nil)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = s.Close() })
		store = s
	}

	tr, err := tracker.New(cfg.DBPath)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = tr.Close() })

	provider := openrouter.New(cfg.Provider.APIKey, cfg.Provider.URL, cfg.Model)

	gw := gateway.New(provider, limiter, store, gateway.Options{
		Recorder:      tr,
		Model:         cfg.Model,
		PromptVersion: cfg.PromptVersion,
		Coalesce:      cfg.Coalesce,
	})
	return gw, cleanup, nil
}
