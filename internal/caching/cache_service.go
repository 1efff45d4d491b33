package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"galapa/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "galapa"

// versionTTL outlives any fill in flight, so an expired version key cannot
// be mistaken for the one a fill started from.
const versionTTL = 24 * time.Hour

// ErrStale is returned by a fill whose entry was invalidated after the
// caller read its version. The value was not stored.
var ErrStale = errors.New("cache: entry invalidated during fill")

// CacheService is a read-through cache guarded by version counters.
// Readers take the version before loading from the store and pass it back
// on fill; invalidation bumps the version so older fills are rejected.
type CacheService interface {
	// Provider caching
	GetProvider(ctx context.Context, id int64) (*models.Provider, error)
	ProviderVersion(ctx context.Context, id int64) (int64, error)
	SetProvider(ctx context.Context, provider *models.Provider, version int64, ttl time.Duration) error
	DeleteProvider(ctx context.Context, id int64) error

	// Provider list caching, keyed by filter
	GetProviderList(ctx context.Context, filter models.ProviderFilter) ([]*models.Provider, error)
	ProviderListVersion(ctx context.Context) (int64, error)
	SetProviderList(ctx context.Context, filter models.ProviderFilter, providers []*models.Provider, version int64, ttl time.Duration) error
	InvalidateProviderLists(ctx context.Context) error

	Ping(ctx context.Context) error
	Close() error
}

type redisCacheService struct {
	client redis.UniversalClient
}

// NewRedisCacheService connects to redis. addr may carry a redis:// or rediss:// scheme.
func NewRedisCacheService(addr, password string, db int) CacheService {
	parsedAddr := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Warn().Err(pingErr).Str("addr", parsedAddr).Msg("redis ping failed on initialization")
	} else {
		log.Debug().Str("addr", parsedAddr).Msg("redis connection established")
	}

	return NewCacheServiceFromClient(client)
}

// NewCacheServiceFromClient wraps an existing client.
func NewCacheServiceFromClient(client redis.UniversalClient) CacheService {
	return &redisCacheService{client: client}
}

func providerKey(id int64) string {
	return fmt.Sprintf("%s:provider:%d", keyPrefix, id)
}

func providerVersionKey(id int64) string {
	return fmt.Sprintf("%s:provider:version:%d", keyPrefix, id)
}

func providerListKey(filter models.ProviderFilter) string {
	return fmt.Sprintf("%s:providers:list:%s:%s", keyPrefix, filter.Status, filter.Type)
}

// Kept outside the list prefix so InvalidateProviderLists never scans it.
func providerListVersionKey() string {
	return keyPrefix + ":providers:version"
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readVersion(ctx context.Context, c stringGetter, key string) (int64, error) {
	version, err := c.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return version, err
}

// setIfVersion stores value only while versionKey still holds version.
func (r *redisCacheService) setIfVersion(ctx context.Context, versionKey string, version int64, key string, value []byte, ttl time.Duration) error {
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readVersion(ctx, tx, versionKey)
		if err != nil {
			return err
		}
		if current != version {
			return ErrStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, ttl)
			return nil
		})
		return err
	}, versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrStale
	}
	return err
}

// bump advances versionKey and drops keys in one transaction.
func (r *redisCacheService) bump(ctx context.Context, versionKey string, keys ...string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.Expire(ctx, versionKey, versionTTL)
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		return nil
	})
	return err
}

func (r *redisCacheService) GetProvider(ctx context.Context, id int64) (*models.Provider, error) {
	data, err := r.client.Get(ctx, providerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var provider models.Provider
	if err := json.Unmarshal(data, &provider); err != nil {
		return nil, err
	}
	return &provider, nil
}

func (r *redisCacheService) ProviderVersion(ctx context.Context, id int64) (int64, error) {
	return readVersion(ctx, r.client, providerVersionKey(id))
}

func (r *redisCacheService) SetProvider(ctx context.Context, provider *models.Provider, version int64, ttl time.Duration) error {
	data, err := json.Marshal(provider)
	if err != nil {
		return err
	}
	return r.setIfVersion(ctx, providerVersionKey(provider.ID), version, providerKey(provider.ID), data, ttl)
}

func (r *redisCacheService) DeleteProvider(ctx context.Context, id int64) error {
	return r.bump(ctx, providerVersionKey(id), providerKey(id))
}

func (r *redisCacheService) GetProviderList(ctx context.Context, filter models.ProviderFilter) ([]*models.Provider, error) {
	data, err := r.client.Get(ctx, providerListKey(filter)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	providers := make([]*models.Provider, 0)
	if err := json.Unmarshal(data, &providers); err != nil {
		return nil, err
	}
	return providers, nil
}

func (r *redisCacheService) ProviderListVersion(ctx context.Context) (int64, error) {
	return readVersion(ctx, r.client, providerListVersionKey())
}

func (r *redisCacheService) SetProviderList(ctx context.Context, filter models.ProviderFilter, providers []*models.Provider, version int64, ttl time.Duration) error {
	data, err := json.Marshal(providers)
	if err != nil {
		return err
	}
	return r.setIfVersion(ctx, providerListVersionKey(), version, providerListKey(filter), data, ttl)
}

// InvalidateProviderLists bumps the list version before dropping the
// cached listings, so fills that loaded before the bump are rejected.
func (r *redisCacheService) InvalidateProviderLists(ctx context.Context) error {
	if err := r.bump(ctx, providerListVersionKey()); err != nil {
		return err
	}

	pattern := keyPrefix + ":providers:list:*"
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return r.client.Del(ctx, keys...).Err()
	}
	return nil
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCacheService) Close() error {
	return r.client.Close()
}
