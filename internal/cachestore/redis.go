package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// putScript stores one entry and trims the cache in a single atomic step.
// A name deleted while a handle was held is registered again.
//
// KEYS: order zset, entries hash, sequence counter, names zset
// ARGV: key, encoded entry, limit, cache name
var putScript = redis.NewScript(`
if not redis.call('ZSCORE', KEYS[4], ARGV[4]) then
	redis.call('ZADD', KEYS[4], redis.call('INCR', KEYS[3]), ARGV[4])
end
local seq = redis.call('INCR', KEYS[3])
redis.call('ZADD', KEYS[1], seq, ARGV[1])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
local limit = tonumber(ARGV[3])
if limit <= 0 then
	return {}
end
local n = redis.call('ZCARD', KEYS[1])
if n <= limit then
	return {}
end
local evicted = redis.call('ZRANGE', KEYS[1], 0, n - limit - 1)
redis.call('ZREM', KEYS[1], unpack(evicted))
redis.call('HDEL', KEYS[2], unpack(evicted))
return evicted
`)

// putAllScript stores key/entry pairs from ARGV[2:] in order, registering
// the cache name in ARGV[1] when it is missing.
var putAllScript = redis.NewScript(`
if not redis.call('ZSCORE', KEYS[4], ARGV[1]) then
	redis.call('ZADD', KEYS[4], redis.call('INCR', KEYS[3]), ARGV[1])
end
for i = 2, #ARGV, 2 do
	local seq = redis.call('INCR', KEYS[3])
	redis.call('ZADD', KEYS[1], seq, ARGV[i])
	redis.call('HSET', KEYS[2], ARGV[i], ARGV[i + 1])
end
return (#ARGV - 1) / 2
`)

// openScript registers a cache name once, keeping its first creation order.
var openScript = redis.NewScript(`
if redis.call('ZSCORE', KEYS[1], ARGV[1]) then
	return 0
end
local seq = redis.call('INCR', KEYS[2])
redis.call('ZADD', KEYS[1], seq, ARGV[1])
return 1
`)

type Redis struct {
	rdb    redis.UniversalClient
	prefix string
}

type RedisConfig struct {
	Addr     string
	DB       int
	Password string
	Prefix   string
}

func NewRedis(cfg RedisConfig) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	return NewRedisWithClient(rdb, cfg.Prefix)
}

func NewRedisWithClient(rdb redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "sw"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func (s *Redis) Close() error { return s.rdb.Close() }

func (s *Redis) namesKey() string { return s.prefix + ":caches" }
func (s *Redis) seqKey() string   { return s.prefix + ":seq" }

func (s *Redis) orderKey(name string) string {
	return fmt.Sprintf("%s:cache:%s:order", s.prefix, name)
}

func (s *Redis) entriesKey(name string) string {
	return fmt.Sprintf("%s:cache:%s:entries", s.prefix, name)
}

func (s *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.rdb.Ping(ctx).Err()
}

func (s *Redis) Open(ctx context.Context, name string) (Cache, error) {
	if err := validate(name); err != nil {
		return nil, err
	}
	if err := openScript.Run(ctx, s.rdb, []string{s.namesKey(), s.seqKey()}, name).Err(); err != nil {
		return nil, fmt.Errorf("open cache %q: %w", name, err)
	}
	return &redisCache{store: s, name: name}, nil
}

func (s *Redis) Has(ctx context.Context, name string) (bool, error) {
	err := s.rdb.ZScore(ctx, s.namesKey(), name).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return err == nil, err
}

func (s *Redis) Names(ctx context.Context) ([]string, error) {
	return s.rdb.ZRange(ctx, s.namesKey(), 0, -1).Result()
}

func (s *Redis) Delete(ctx context.Context, name string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		removed = p.ZRem(ctx, s.namesKey(), name)
		p.Del(ctx, s.orderKey(name), s.entriesKey(name))
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed.Val() > 0, nil
}

func (s *Redis) Match(ctx context.Context, key string) (Entry, bool, error) {
	names, err := s.Names(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	for _, n := range names {
		c := &redisCache{store: s, name: n}
		e, ok, err := c.Match(ctx, key)
		if err != nil {
			return Entry{}, false, err
		}
		if ok {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

type redisCache struct {
	store *Redis
	name  string
}

func (c *redisCache) Name() string { return c.name }

func (c *redisCache) keys() []string {
	return []string{c.store.orderKey(c.name), c.store.entriesKey(c.name), c.store.seqKey(), c.store.namesKey()}
}

func (c *redisCache) Match(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := c.store.rdb.HGet(ctx, c.store.entriesKey(c.name), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode entry %q: %w", key, err)
	}
	return e, true, nil
}

func (c *redisCache) Put(ctx context.Context, e Entry, limit int) ([]string, error) {
	if e.Key == "" {
		return nil, ErrEmptyKey
	}
	raw, err := encodeEntry(e)
	if err != nil {
		return nil, err
	}
	if limit < 0 {
		limit = 0
	}

	return putScript.Run(ctx, c.store.rdb, c.keys(), e.Key, raw, limit, c.name).StringSlice()
}

func (c *redisCache) PutAll(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	args := make([]any, 0, len(entries)*2+1)
	args = append(args, c.name)
	for _, e := range entries {
		if e.Key == "" {
			return ErrEmptyKey
		}
		raw, err := encodeEntry(e)
		if err != nil {
			return err
		}
		args = append(args, e.Key, raw)
	}
	return putAllScript.Run(ctx, c.store.rdb, c.keys(), args...).Err()
}

func (c *redisCache) Delete(ctx context.Context, key string) (bool, error) {
	var removed *redis.IntCmd
	_, err := c.store.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, c.store.orderKey(c.name), key)
		removed = p.HDel(ctx, c.store.entriesKey(c.name), key)
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed.Val() > 0, nil
}

func (c *redisCache) Keys(ctx context.Context) ([]string, error) {
	return c.store.rdb.ZRange(ctx, c.store.orderKey(c.name), 0, -1).Result()
}

func encodeEntry(e Entry) ([]byte, error) {
	if e.StoredAt.IsZero() {
		e.StoredAt = time.Now().UTC()
	}
	return json.Marshal(e)
}
