package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/isdelr/ender-accounts/internal/models"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachableClient(t *testing.T) *goredis.Client {
	t.Helper()
	c := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestAccountCache_UnavailableRedisIsAMiss(t *testing.T) {
	c := NewAccountCache(unreachableClient(t), time.Minute)
	ctx := context.Background()

	c.Set(ctx, &models.Account{ID: "a1", LoginName: "alice"})
	got, ok := c.Get(ctx, "a1")
	assert.False(t, ok)
	assert.Nil(t, got)
	c.Delete(ctx, "a1")
}

func TestNewClient_FailsWhenUnreachable(t *testing.T) {
	_, err := NewClient("127.0.0.1:1", "", 0)
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestAccountJSON_OmitsCredentialHash(t *testing.T) {
	data, err := json.Marshal(models.Account{ID: "a1", CredentialHash: "$2a$secret"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
}
