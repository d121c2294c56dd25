// Package cache holds the Redis read-through cache for account views.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/isdelr/ender-accounts/internal/models"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ViewCache is a JSON-backed Redis cache for one view type. A ttl of 0
// keeps keys until they are overwritten or deleted.
type ViewCache[T any] struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewViewCache creates a ViewCache whose keys start with prefix.
func NewViewCache[T any](client *goredis.Client, prefix string, ttl time.Duration) *ViewCache[T] {
	return &ViewCache[T]{client: client, prefix: prefix, ttl: ttl}
}

// Get returns (nil, false) on any miss, transport or decode error.
func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			log.Debug().Err(err).Str("key", c.prefix+key).Msg("View cache read failed")
		}
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	return &v, true
}

// Put stores value under key. Write failures are logged, not returned.
func (c *ViewCache[T]) Put(ctx context.Context, key string, value *T) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Str("key", c.prefix+key).Msg("View cache marshal failed")
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", c.prefix+key).Msg("View cache write failed")
	}
}

// Delete removes key.
func (c *ViewCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		log.Warn().Err(err).Str("key", c.prefix+key).Msg("View cache delete failed")
	}
}

const accountKeyPrefix = "account:view:"

// AccountCache caches sanitized accounts by id.
type AccountCache struct {
	views *ViewCache[models.Account]
}

// NewAccountCache creates an AccountCache on client.
func NewAccountCache(client *goredis.Client, ttl time.Duration) *AccountCache {
	return &AccountCache{views: NewViewCache[models.Account](client, accountKeyPrefix, ttl)}
}

// Get looks up an account view.
func (c *AccountCache) Get(ctx context.Context, id string) (*models.Account, bool) {
	return c.views.Get(ctx, id)
}

// Set stores the account; the credential hash is never serialized.
func (c *AccountCache) Set(ctx context.Context, account *models.Account) {
	view := account.Sanitized()
	c.views.Put(ctx, account.ID, &view)
}

// Delete evicts an account view.
func (c *AccountCache) Delete(ctx context.Context, id string) {
	c.views.Delete(ctx, id)
}
