package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatsEvent describes one gate decision.
type StatsEvent struct {
	Key     string
	Allowed bool
	Method  string
	Path    string
	At      time.Time
}

// StatsRecorder persists gate decisions. Recording is best effort.
type StatsRecorder interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// RedisStats counts allowed/denied decisions in Redis hashes:
//
//	<prefix>:total                  allowed|denied (never expires)
//	<prefix>:minute:<YYYYMMDDhhmm>  allowed|denied (expires after ttl)
//	<prefix>:route                  "<METHOD> <path>:allowed|denied"
//
// Caller keys are not stored.
type RedisStats struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisStatsOption configures RedisStats.
type RedisStatsOption func(*RedisStats)

// WithStatsPrefix sets the key prefix.
func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStats) {
		if trimmed := strings.Trim(prefix, ":"); trimmed != "" {
			s.prefix = trimmed
		}
	}
}

// WithStatsTTL sets the expiry of per-minute buckets; 0 keeps them forever.
func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStats) { s.ttl = d }
}

// NewRedisStats returns a recorder writing through rdb.
func NewRedisStats(rdb *redis.Client, opts ...RedisStatsOption) *RedisStats {
	s := &RedisStats{
		rdb:    rdb,
		prefix: "solvedrelay:ratelimit",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record implements StatsRecorder with a single pipelined round trip.
func (s *RedisStats) Record(ctx context.Context, ev StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	field := decisionField(ev.Allowed)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.totalKey(), field, 1)

	bucket := s.minuteKey(at)
	pipe.HIncrBy(ctx, bucket, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucket, s.ttl)
	}

	if route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path)); route != "" {
		pipe.HIncrBy(ctx, s.routeKey(), route+":"+field, 1)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Ping checks that Redis is reachable.
func (s *RedisStats) Ping(ctx context.Context) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("redis stats not configured")
	}
	return s.rdb.Ping(ctx).Err()
}

// CheckHealth lets RedisStats register as a health checker.
func (s *RedisStats) CheckHealth(ctx context.Context) error {
	return s.Ping(ctx)
}

// Close releases the underlying client.
func (s *RedisStats) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// MinuteBucket is one per-minute counter pair.
type MinuteBucket struct {
	Minute  string `json:"minute"`
	Allowed int64  `json:"allowed"`
	Denied  int64  `json:"denied"`
}

// StatsSnapshot is a read-out of the recorded decisions.
type StatsSnapshot struct {
	Allowed int64            `json:"allowed"`
	Denied  int64            `json:"denied"`
	Routes  map[string]int64 `json:"routes"`
	Recent  []MinuteBucket   `json:"recent"`
}

// Snapshot reads the totals, per-route counters and the last minutes
// buckets ending at at, oldest first.
func (s *RedisStats) Snapshot(ctx context.Context, at time.Time, minutes int) (*StatsSnapshot, error) {
	if s == nil || s.rdb == nil {
		return nil, fmt.Errorf("redis stats not configured")
	}
	if minutes < 0 {
		minutes = 0
	}

	pipe := s.rdb.Pipeline()
	totalCmd := pipe.HGetAll(ctx, s.totalKey())
	routeCmd := pipe.HGetAll(ctx, s.routeKey())

	start := at.UTC().Truncate(time.Minute).Add(-time.Duration(minutes-1) * time.Minute)
	bucketCmds := make([]*redis.MapStringStringCmd, 0, minutes)
	bucketTimes := make([]time.Time, 0, minutes)
	for i := 0; i < minutes; i++ {
		t := start.Add(time.Duration(i) * time.Minute)
		bucketTimes = append(bucketTimes, t)
		bucketCmds = append(bucketCmds, pipe.HGetAll(ctx, s.minuteKey(t)))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	total := totalCmd.Val()
	snap := &StatsSnapshot{
		Allowed: parseCount(total[decisionField(true)]),
		Denied:  parseCount(total[decisionField(false)]),
		Routes:  make(map[string]int64, len(routeCmd.Val())),
		Recent:  make([]MinuteBucket, 0, minutes),
	}
	for field, value := range routeCmd.Val() {
		snap.Routes[field] = parseCount(value)
	}
	for i, cmd := range bucketCmds {
		bucket := cmd.Val()
		snap.Recent = append(snap.Recent, MinuteBucket{
			Minute:  bucketTimes[i].Format(time.RFC3339),
			Allowed: parseCount(bucket[decisionField(true)]),
			Denied:  parseCount(bucket[decisionField(false)]),
		})
	}
	return snap, nil
}

// Reset deletes the total and route counters. Minute buckets expire on their own.
func (s *RedisStats) Reset(ctx context.Context) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("redis stats not configured")
	}
	return s.rdb.Del(ctx, s.totalKey(), s.routeKey()).Err()
}

func parseCount(value string) int64 {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (s *RedisStats) totalKey() string { return s.prefix + ":total" }
func (s *RedisStats) routeKey() string { return s.prefix + ":route" }

func (s *RedisStats) minuteKey(at time.Time) string {
	return fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
}

func decisionField(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}
