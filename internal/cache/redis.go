package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/redis/go-redis/v9"
)

const (
	fieldVersion = "version"
	fieldCart    = "cart"
)

// setIfNotOlder writes the cart unless the stored entry has a greater version.
// KEYS[1] cart key, ARGV[1] version, ARGV[2] cart json, ARGV[3] ttl in milliseconds.
var setIfNotOlder = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'cart', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

type RedisCache struct {
	client    redis.UniversalClient
	baseTTL   time.Duration
	maxJitter time.Duration
}

func NewRedis(client redis.UniversalClient, baseTTL time.Duration) *RedisCache {
	if baseTTL <= 0 {
		baseTTL = 15 * time.Minute
	}

	return &RedisCache{
		client:    client,
		baseTTL:   baseTTL,
		maxJitter: baseTTL / 3,
	}
}

var _ port.CartCache = (*RedisCache)(nil)

func (r *RedisCache) Get(ctx context.Context, ownerID string) (domain.Cart, error) {
	var c domain.Cart

	data, err := r.client.HGet(ctx, cacheKey(ownerID), fieldCart).Bytes()
	if errors.Is(err, redis.Nil) {
		return c, port.ErrCacheMiss
	}
	if err != nil {
		return c, fmt.Errorf("client.HGet: %w", err)
	}

	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("json.Unmarshal: %w", err)
	}

	return c, nil
}

func (r *RedisCache) Set(ctx context.Context, cart domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	ttl := r.baseTTL
	if r.maxJitter > 0 {
		ttl += rand.N(r.maxJitter)
	}

	err = setIfNotOlder.Run(ctx, r.client,
		[]string{cacheKey(cart.OwnerID)},
		strconv.FormatInt(cart.Version, 10),
		string(data),
		strconv.FormatInt(ttl.Milliseconds(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("setIfNotOlder.Run: %w", err)
	}

	return nil
}

func (r *RedisCache) Delete(ctx context.Context, ownerID string) error {
	if err := r.client.Del(ctx, cacheKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("client.Del: %w", err)
	}

	return nil
}

func cacheKey(ownerID string) string {
	return fmt.Sprintf("cart:%s", ownerID)
}
