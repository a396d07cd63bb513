package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// Cache is the key/value store used for read-through caching of hot rows
type Cache interface {
	Get(key string) (string, error)
	Set(key string, value interface{}, expiration time.Duration) error
	Delete(keys ...string) error
}

type localEntry struct {
	value     string
	expiresAt time.Time
}

// LocalCache is an in-process LRU used when Redis is not reachable.
// It is only coherent for a single server instance.
type LocalCache struct {
	mu    sync.Mutex
	items *lru.Cache[string, localEntry]
	now   func() time.Time
}

func NewLocalCache(size int) (*LocalCache, error) {
	items, err := lru.New[string, localEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create local cache: %w", err)
	}
	return &LocalCache{items: items, now: time.Now}, nil
}

// Get retrieves a value by key
func (c *LocalCache) Get(key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items.Get(key)
	if !ok {
		return "", ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.items.Remove(key)
		return "", ErrCacheMiss
	}
	return entry.value, nil
}

// Set stores a value with expiration; zero expiration keeps it until evicted
func (c *LocalCache) Set(key string, value interface{}, expiration time.Duration) error {
	val, err := encodeCacheValue(value)
	if err != nil {
		return err
	}

	entry := localEntry{value: val}
	if expiration > 0 {
		entry.expiresAt = c.now().Add(expiration)
	}

	c.mu.Lock()
	c.items.Add(key, entry)
	c.mu.Unlock()
	return nil
}

// Delete removes keys
func (c *LocalCache) Delete(keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		c.items.Remove(key)
	}
	return nil
}

func encodeCacheValue(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		jsonBytes, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("failed to marshal value: %w", err)
		}
		return string(jsonBytes), nil
	}
}
