package redisx

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// New builds a client with short socket timeouts; callers own Close.
func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Connect pings addr and returns nil with a no-op cleanup when Redis is unset or unreachable.
func Connect(ctx context.Context, addr string, logger *slog.Logger) (*redis.Client, func()) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		if logger != nil {
			logger.Warn("REDIS_ADDR not set, order cache disabled")
		}
		return nil, func() {}
	}
	client := New(addr)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if logger != nil {
			logger.Warn("failed to reach redis, order cache disabled", slog.String("error", err.Error()))
		}
		return nil, func() {}
	}
	if logger != nil {
		logger.Info("redis connection established", slog.String("addr", addr))
	}
	return client, func() { _ = client.Close() }
}
