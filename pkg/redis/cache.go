package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/thistle/pkg/models"
)

// LookupCache stores registry entries as JSON under a key prefix
type LookupCache struct {
	client    *Client
	keyPrefix string
	ttl       time.Duration
}

// NewLookupCache creates a registry cache. A zero ttl keeps entries forever.
func NewLookupCache(client *Client, keyPrefix string, ttl time.Duration) *LookupCache {
	return &LookupCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (c *LookupCache) key(identifier string) string {
	return c.keyPrefix + identifier
}

// Get returns the cached entry, found is false on a miss
func (c *LookupCache) Get(ctx context.Context, identifier string) (models.RegistryEntry, bool, error) {
	raw, err := c.client.rdb.Get(ctx, c.key(identifier)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.RegistryEntry{}, false, nil
	}
	if err != nil {
		return models.RegistryEntry{}, false, errors.Wrap(err, "failed to read registry entry")
	}

	var entry models.RegistryEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return models.RegistryEntry{}, false, errors.Wrap(err, "failed to decode registry entry")
	}
	return entry, true, nil
}

// Set stores an entry
func (c *LookupCache) Set(ctx context.Context, identifier string, entry models.RegistryEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "failed to encode registry entry")
	}
	if err := c.client.rdb.Set(ctx, c.key(identifier), raw, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to write registry entry")
	}
	return nil
}
