package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const memoryCleanupInterval = 10 * time.Minute

// memoryCache is the single-process store used when Redis is not configured.
// Values are stored as strings so both implementations behave alike.
type memoryCache struct {
	mu     sync.Mutex
	items  *gocache.Cache
	logger *zap.Logger
}

// NewMemoryCache creates an in-process cache backed by go-cache.
func NewMemoryCache(logger *zap.Logger) (Cache, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	logger.Info("in-memory cache initialized")
	return &memoryCache{
		items:  gocache.New(gocache.NoExpiration, memoryCleanupInterval),
		logger: logger,
	}, nil
}

func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return "", ErrCacheKeyNotFound{Key: key}
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("key %s holds a set, not a value", key)
	}
	return s, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	m.items.Set(key, stringify(value), expiration(ttl))
	return nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

func (m *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.items.Get(key)
	return ok, nil
}

func (m *memoryCache) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if err := m.items.Add(key, stringify(value), expiration(ttl)); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *memoryCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.items.Get(key)
	if !ok {
		return ErrCacheKeyNotFound{Key: key}
	}
	m.items.Set(key, v, expiration(ttl))
	return nil
}

func (m *memoryCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		m.logger.Error("json unmarshal failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("json unmarshal failed: %w", err)
	}
	return nil
}

func (m *memoryCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}
	return m.Set(ctx, key, data, ttl)
}

// AddToSet copies the set on write so readers never see a map being mutated.
func (m *memoryCache) AddToSet(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[string]struct{})
	if v, ok := m.items.Get(key); ok {
		current, ok := v.(map[string]struct{})
		if !ok {
			return fmt.Errorf("key %s holds a value, not a set", key)
		}
		for member := range current {
			next[member] = struct{}{}
		}
	}
	for _, member := range members {
		next[member] = struct{}{}
	}
	m.items.Set(key, next, gocache.NoExpiration)
	return nil
}

func (m *memoryCache) SetMembers(_ context.Context, key string) ([]string, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return []string{}, nil
	}
	set, ok := v.(map[string]struct{})
	if !ok {
		return nil, fmt.Errorf("key %s holds a value, not a set", key)
	}
	out := make([]string, 0, len(set))
	for member := range set {
		out = append(out, member)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memoryCache) Ping(context.Context) error { return nil }

func (m *memoryCache) Close() error {
	m.items.Flush()
	return nil
}
