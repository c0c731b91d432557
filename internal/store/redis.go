package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/i474232898/astro-viewing-conditions/internal/conditions"
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
)

const defaultKeyPrefix = "avc"

// setIfNewer replaces the latest payload only when the incoming fetch time
// (ARGV[2], unix millis) is not older than the one stored beside it.
const setIfNewer = `
local cur = redis.call('GET', KEYS[2])
if cur and tonumber(cur) > tonumber(ARGV[2]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
return 1
`

// RedisStore keeps the newest snapshot per location under a plain key and the
// history in a sorted set scored by fetch time.
type RedisStore struct {
	client     redis.Cmdable
	prefix     string
	maxHistory int
	maxAge     time.Duration
	now        func() time.Time
}

// NewRedisClient opens a client and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisStore wraps an existing client. An empty prefix defaults to "avc".
func NewRedisStore(client redis.Cmdable, prefix string, maxHistory int, maxAge time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{
		client:     client,
		prefix:     prefix,
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

func (s *RedisStore) latestKey(loc weather.Location) string {
	return s.prefix + ":latest:" + loc.Key()
}

func (s *RedisStore) latestAtKey(loc weather.Location) string {
	return s.prefix + ":latest-at:" + loc.Key()
}

func (s *RedisStore) historyKey(loc weather.Location) string {
	return s.prefix + ":history:" + loc.Key()
}

// Save writes the snapshot and trims the history in one transaction.
func (s *RedisStore) Save(ctx context.Context, vc conditions.ViewingConditions) error {
	payload, err := encode(vc)
	if err != nil {
		return err
	}

	historyKey := s.historyKey(vc.Location)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		// Compared server side so concurrent refreshes cannot regress latest.
		pipe.Eval(ctx, setIfNewer,
			[]string{s.latestKey(vc.Location), s.latestAtKey(vc.Location)},
			payload, scoreBound(vc.FetchedAt))
		pipe.ZAdd(ctx, historyKey, &redis.Z{Score: score(vc.FetchedAt), Member: payload})
		if s.maxHistory > 0 {
			pipe.ZRemRangeByRank(ctx, historyKey, 0, int64(-s.maxHistory-1))
		}
		if s.maxAge > 0 {
			cutoff := s.now().Add(-s.maxAge)
			// Exclusive bound keeps snapshots fetched exactly at the cutoff.
			pipe.ZRemRangeByScore(ctx, historyKey, "-inf", "("+scoreBound(cutoff))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save %s: %w", vc.Location.Key(), err)
	}
	return nil
}

// Latest returns the newest snapshot for loc.
func (s *RedisStore) Latest(ctx context.Context, loc weather.Location) (conditions.ViewingConditions, error) {
	data, err := s.client.Get(ctx, s.latestKey(loc)).Bytes()
	if errors.Is(err, redis.Nil) {
		return conditions.ViewingConditions{}, ErrNotFound
	}
	if err != nil {
		return conditions.ViewingConditions{}, fmt.Errorf("redis latest %s: %w", loc.Key(), err)
	}
	return decode(data)
}

// Range returns snapshots fetched between from and to (inclusive), oldest first.
func (s *RedisStore) Range(ctx context.Context, loc weather.Location, from, to time.Time) ([]conditions.ViewingConditions, error) {
	members, err := s.client.ZRangeByScore(ctx, s.historyKey(loc), &redis.ZRangeBy{
		Min: scoreBound(from),
		Max: scoreBound(to),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis range %s: %w", loc.Key(), err)
	}
	if len(members) == 0 {
		return nil, ErrNotFound
	}

	out := make([]conditions.ViewingConditions, 0, len(members))
	for _, m := range members {
		vc, err := decode([]byte(m))
		if err != nil {
			return nil, err
		}
		out = append(out, vc)
	}
	return out, nil
}
