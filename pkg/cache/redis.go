package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keys for store storage.
const (
	// RedisKeyStores is the sorted set of store names scored by creation time.
	RedisKeyStores = "asset:stores"

	// RedisKeyStorePrefix prefixes the hash holding one store's entries.
	RedisKeyStorePrefix = "asset:store:"
)

// putScript writes an entry only while its store is still indexed.
//
// KEYS[1] store index, KEYS[2] store hash; ARGV store name, field, entry.
var putScript = redis.NewScript(`
if redis.call("ZSCORE", KEYS[1], ARGV[1]) then
	redis.call("HSET", KEYS[2], ARGV[2], ARGV[3])
	return 1
end
return 0
`)

// RedisStorage keeps stores in Redis. Each store is a hash of
// Key.String() to a JSON encoded Entry. Entries never expire on their own.
type RedisStorage struct {
	redis *redis.Client
}

// NewRedisStorage creates a Redis backed storage.
func NewRedisStorage(redisClient *redis.Client) *RedisStorage {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStorage{
		redis: redisClient,
	}
}

func storeKey(name string) string {
	return RedisKeyStorePrefix + name
}

// Open registers the store name (keeping its original creation time) and
// returns a handle to it.
func (s *RedisStorage) Open(ctx context.Context, name string) (Store, error) {
	if name == "" {
		return nil, fmt.Errorf("store name cannot be empty")
	}

	err := s.redis.ZAddNX(ctx, RedisKeyStores, redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: name,
	}).Err()
	if err != nil {
		CacheErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("redis zadd: %w", err)
	}

	return &redisStore{redis: s.redis, name: name}, nil
}

// Names lists stores in creation order.
func (s *RedisStorage) Names(ctx context.Context) ([]string, error) {
	names, err := s.redis.ZRange(ctx, RedisKeyStores, 0, -1).Result()
	if err != nil {
		CacheErrors.WithLabelValues("names").Inc()
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	return names, nil
}

// Has reports whether the store was opened and not deleted since.
func (s *RedisStorage) Has(ctx context.Context, name string) (bool, error) {
	err := s.redis.ZScore(ctx, RedisKeyStores, name).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		CacheErrors.WithLabelValues("has").Inc()
		return false, fmt.Errorf("redis zscore: %w", err)
	}
	return true, nil
}

// Delete drops the store hash and its index entry atomically.
func (s *RedisStorage) Delete(ctx context.Context, name string) (bool, error) {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, storeKey(name))
	removed := pipe.ZRem(ctx, RedisKeyStores, name)

	if _, err := pipe.Exec(ctx); err != nil {
		CacheErrors.WithLabelValues("delete_store").Inc()
		return false, fmt.Errorf("redis delete store %s: %w", name, err)
	}

	if removed.Val() == 0 {
		return false, nil
	}
	StoresDeleted.Inc()
	return true, nil
}

// Match searches every store in creation order.
func (s *RedisStorage) Match(ctx context.Context, key Key) (*Entry, error) {
	names, err := s.Names(ctx)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		store := &redisStore{redis: s.redis, name: name}
		entry, err := store.Match(ctx, key)
		if errors.Is(err, ErrCacheMiss) {
			continue
		}
		return entry, err
	}
	return nil, ErrCacheMiss
}

// Ping checks the backend connection.
func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

type redisStore struct {
	redis *redis.Client
	name  string
}

func (s *redisStore) Name() string {
	return s.name
}

func (s *redisStore) Match(ctx context.Context, key Key) (*Entry, error) {
	data, err := s.redis.HGet(ctx, storeKey(s.name), key.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.WithLabelValues(s.name).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("match").Inc()
		return nil, fmt.Errorf("redis hget: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("match").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues(s.name).Inc()
	return &entry, nil
}

func (s *redisStore) Put(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	written, err := putScript.Run(ctx, s.redis,
		[]string{RedisKeyStores, storeKey(s.name)},
		s.name, key.String(), data,
	).Int()
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis put: %w", err)
	}
	if written == 0 {
		return fmt.Errorf("put %s: %w", s.name, ErrStoreDeleted)
	}

	CacheWrites.WithLabelValues(s.name).Inc()
	return nil
}

func (s *redisStore) Delete(ctx context.Context, key Key) error {
	if err := s.redis.HDel(ctx, storeKey(s.name), key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

func (s *redisStore) Len(ctx context.Context) (int, error) {
	n, err := s.redis.HLen(ctx, storeKey(s.name)).Result()
	if err != nil {
		CacheErrors.WithLabelValues("len").Inc()
		return 0, fmt.Errorf("redis hlen: %w", err)
	}
	return int(n), nil
}
