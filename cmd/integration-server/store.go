package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-training/integration-broker/pkg/core"
	"github.com/go-training/integration-broker/pkg/store"
)

// storeHandle keeps the concrete memory store around for expiry sweeps.
type storeHandle struct {
	core.Store
	memory *store.MemoryStore
}

func openStore(cfg config) (*storeHandle, error) {
	storeConfig := store.Config{
		Type: store.ParseStoreType(cfg.storeType),
		Redis: store.RedisOptions{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		},
	}
	s, err := store.NewStore(storeConfig)
	if err != nil {
		return nil, err
	}

	h := &storeHandle{Store: s}
	switch storeConfig.Type {
	case store.StoreTypeMemory:
		slog.Info("Using in-memory store")
		h.memory, _ = s.(*store.MemoryStore)
	case store.StoreTypeRedis:
		slog.Info("Using Redis store", "addr", cfg.redisAddr, "db", cfg.redisDB)
	}
	return h, nil
}

// sweep drops expired memory entries every interval until ctx is done.
func (h *storeHandle) sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.memory.Cleanup(); n > 0 {
				slog.Debug("Expired store entries removed", "count", n)
			}
		}
	}
}

func (h *storeHandle) Close() {
	store.Close(h.Store)
}
