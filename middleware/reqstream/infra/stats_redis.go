package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reqstream-gateway/middleware/reqstream/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava os descartes em hashes do Redis:
//
//	<prefix>:total                 shed
//	<prefix>:minute:<YYYYMMDDhhmm> shed (expira após ttl)
//	<prefix>:route                 "<METHOD> <path>"
//	<prefix>:source                <nome da fonte> (se trackSources)
type RedisStatsStore struct {
	rdb redis.Cmdable

	prefix string
	// ttl aplica apenas nas séries por minuto; total é cumulativo.
	ttl    time.Duration
	bucket string // "minute" (padrão) ou "none"

	trackSources bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackSources(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackSources = track }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:          rdb,
		prefix:       "reqstream:stats",
		ttl:          24 * time.Hour,
		bucket:       "minute",
		trackSources: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const shedField = "shed"

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", shedField, 1)

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, shedField, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path)); route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route, 1)
	}

	if s.trackSources {
		if src := strings.TrimSpace(ev.Source); src != "" {
			pipe.HIncrBy(ctx, s.prefix+":source", src, 1)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis stats: %w", err)
	}
	return nil
}
