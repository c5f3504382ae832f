package openfoodfacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	applog "nutrilab/internal/log"
	"nutrilab/internal/schema"
)

const (
	cacheKeyPrefix     = "nutrilab:off:product:"
	sharedFetchTimeout = 30 * time.Second
)

// Store keeps serialized products for CachedFetcher.
type Store interface {
	// Get reports a miss with ok == false and a nil error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedFetcher is a read-through cache in front of another Fetcher. Only
// successful lookups are stored. Store failures are logged and otherwise
// ignored, so they never change the outcome of a fetch.
type CachedFetcher struct {
	next  Fetcher
	store Store
	ttl   time.Duration
	group singleflight.Group
}

// NewCachedFetcher wraps next with store. A zero ttl keeps entries forever.
func NewCachedFetcher(next Fetcher, store Store, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{next: next, store: store, ttl: ttl}
}

func cacheKey(barcode string) string {
	return cacheKeyPrefix + barcode
}

// FetchProduct implements Fetcher. Concurrent misses for the same barcode
// share a single upstream call. The shared call is detached from the
// cancellation of whichever caller started it and bounded by
// sharedFetchTimeout instead; each caller still stops waiting when its own
// context is done.
func (f *CachedFetcher) FetchProduct(ctx context.Context, barcode string) (schema.Product, error) {
	barcode = strings.TrimSpace(barcode)
	key := cacheKey(barcode)

	if product, ok := f.lookup(ctx, key, barcode); ok {
		return product, nil
	}

	results := f.group.DoChan(barcode, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()

		product, err := f.next.FetchProduct(shared, barcode)
		if err != nil {
			return nil, err
		}
		f.remember(shared, key, product)
		return product, nil
	})

	select {
	case res := <-results:
		if res.Err != nil {
			return schema.Product{}, res.Err
		}
		return clone(res.Val.(schema.Product)), nil
	case <-ctx.Done():
		return schema.Product{}, fmt.Errorf("%w: %w", ErrUpstreamUnreachable, ctx.Err())
	}
}

func (f *CachedFetcher) lookup(ctx context.Context, key, barcode string) (schema.Product, bool) {
	data, ok, err := f.store.Get(ctx, key)
	if err != nil {
		applog.Warn(ctx, "product cache read failed", "key", key, "error", err)
		return schema.Product{}, false
	}
	if !ok {
		return schema.Product{}, false
	}

	var product schema.Product
	if err := json.Unmarshal(data, &product); err != nil || product.Barcode != barcode {
		applog.Warn(ctx, "discarding unusable cached product", "key", key, "error", err)
		return schema.Product{}, false
	}
	applog.Debug(ctx, "product cache hit", "barcode", barcode)
	return product, true
}

func (f *CachedFetcher) remember(ctx context.Context, key string, product schema.Product) {
	data, err := json.Marshal(product)
	if err != nil {
		applog.Warn(ctx, "product cache encode failed", "key", key, "error", err)
		return
	}
	if err := f.store.Set(ctx, key, data, f.ttl); err != nil {
		applog.Warn(ctx, "product cache write failed", "key", key, "error", err)
	}
}

// clone gives each singleflight caller its own copy of the pointer fields.
func clone(product schema.Product) schema.Product {
	data, err := json.Marshal(product)
	if err != nil {
		return product
	}
	var copied schema.Product
	if err := json.Unmarshal(data, &copied); err != nil {
		return product
	}
	return copied
}

// RedisStore is a Store backed by Redis.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	applog.Info(ctx, "connected to redis", "addr", opts.Addr)
	return client, nil
}
