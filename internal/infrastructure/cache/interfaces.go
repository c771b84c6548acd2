package cache

import (
	"context"
	"time"
)

// Cache is the key/value surface the credential session store runs on.
type Cache interface {
	// Get retrieves a value by key
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value with optional TTL
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a key
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists
	Exists(ctx context.Context, key string) (bool, error)

	// SetNX sets a value only if the key doesn't exist (atomic)
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// Expire sets TTL on an existing key
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// GetJSON retrieves and unmarshals JSON data
	GetJSON(ctx context.Context, key string, dest interface{}) error

	// SetJSON marshals and stores JSON data
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// AddToSet adds members to the set stored at key
	AddToSet(ctx context.Context, key string, members ...string) error

	// SetMembers lists the members of the set stored at key
	SetMembers(ctx context.Context, key string) ([]string, error)

	// Ping checks the backing store is reachable
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// Key prefixes for consistent cache key naming
const (
	CredentialPrefix      = "gstbooks:credential:"
	OrgCredentialsPrefix  = "gstbooks:org:credentials:"
	ActiveCredentialKey   = "gstbooks:org:active:"
	LockPrefix            = "gstbooks:lock:"
	AllCredentialsIndex   = "gstbooks:credentials"
	HealthCheckKey        = "gstbooks:health_check"
)

// Common TTL values
const (
	DefaultTTL    = 1 * time.Hour
	SessionTTL    = 24 * time.Hour
	ShortCacheTTL = 30 * time.Second
)

// ErrCacheKeyNotFound is returned when a cache key doesn't exist
type ErrCacheKeyNotFound struct {
	Key string
}

func (e ErrCacheKeyNotFound) Error() string {
	return "cache key not found: " + e.Key
}
