package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/gstbooks/internal/infrastructure/config"
)

// NewCache picks Redis when a URL is configured and the in-memory store
// otherwise.
func NewCache(cfg *config.RedisConfig, logger *zap.Logger) (Cache, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg == nil || cfg.URL == "" {
		logger.Warn("redis url not configured, credential sessions are kept in process memory")
		return NewMemoryCache(logger)
	}
	return NewRedisCache(cfg, logger)
}

// HealthCheck round-trips a short-lived key through the cache.
func HealthCheck(ctx context.Context, c Cache) error {
	if err := c.Ping(ctx); err != nil {
		return err
	}

	testValue := time.Now().Unix()
	if err := c.Set(ctx, HealthCheckKey, testValue, 10*time.Second); err != nil {
		return fmt.Errorf("cache set health check failed: %w", err)
	}
	if _, err := c.Get(ctx, HealthCheckKey); err != nil {
		return fmt.Errorf("cache get health check failed: %w", err)
	}
	if err := c.Delete(ctx, HealthCheckKey); err != nil {
		return fmt.Errorf("cache delete health check failed: %w", err)
	}
	return nil
}
