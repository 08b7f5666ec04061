// Package redis keeps MFA challenges in Redis instead of the SQL store. Each
// (user, method) pair is one hash; consumption is a Lua compare-and-swap so
// concurrent verifies have a single winner.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/store"
)

const (
	defaultPrefix = "authflow:mfa:"

	// Rows outlive their expiry for a while so a late verify still sees
	// "expired" or "consumed" rather than "no challenge".
	defaultRetention = time.Hour

	scanBatch = 256
)

var consumeScript = goredis.NewScript(`
local id = redis.call('HGET', KEYS[1], 'id')
if id ~= ARGV[1] then
	return 0
end
if redis.call('HEXISTS', KEYS[1], 'consumed_at') == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'consumed_at', ARGV[2])
return 1
`)

// releaseScript clears consumed_at only if the hash still holds the
// challenge and the timestamp the caller wrote.
var releaseScript = goredis.NewScript(`
if redis.call('HGET', KEYS[1], 'id') ~= ARGV[1] then
	return 0
end
if redis.call('HGET', KEYS[1], 'consumed_at') ~= ARGV[2] then
	return 0
end
redis.call('HDEL', KEYS[1], 'consumed_at')
return 1
`)

type Option func(*Challenges)

// WithPrefix overrides the key prefix.
func WithPrefix(p string) Option {
	return func(c *Challenges) { c.prefix = p }
}

// WithRetention sets how long a row is kept past its expiry.
func WithRetention(d time.Duration) Option {
	return func(c *Challenges) { c.retention = d }
}

// Challenges implements store.MFAChallenges.
type Challenges struct {
	rdb       goredis.UniversalClient
	prefix    string
	retention time.Duration
}

var _ store.MFAChallenges = (*Challenges)(nil)

// New wraps an existing client.
func New(rdb goredis.UniversalClient, opts ...Option) *Challenges {
	c := &Challenges{rdb: rdb, prefix: defaultPrefix, retention: defaultRetention}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial parses a redis:// URL, connects and pings.
func Dial(ctx context.Context, url string, opts ...Option) (*Challenges, error) {
	o, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := goredis.NewClient(o)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, opts...), nil
}

func (c *Challenges) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *Challenges) Close() error { return c.rdb.Close() }

func (c *Challenges) key(userID string, method domain.MFAMethod) string {
	return c.prefix + userID + ":" + string(method)
}

func (c *Challenges) UpsertChallenge(ctx context.Context, ch domain.MFAChallenge) error {
	key := c.key(ch.UserID, ch.Method)
	_, err := c.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"id", ch.ID,
			"user_id", ch.UserID,
			"method", string(ch.Method),
			"secret", ch.Secret,
			"created_at", formatTime(ch.CreatedAt),
			"expires_at", formatTime(ch.ExpiresAt),
		)
		p.PExpireAt(ctx, key, ch.ExpiresAt.Add(c.retention))
		return nil
	})
	return err
}

func (c *Challenges) GetChallenge(
	ctx context.Context,
	userID string,
	method domain.MFAMethod,
) (domain.MFAChallenge, error) {
	fields, err := c.rdb.HGetAll(ctx, c.key(userID, method)).Result()
	if err != nil {
		return domain.MFAChallenge{}, err
	}
	if len(fields) == 0 {
		return domain.MFAChallenge{}, store.ErrNotFound
	}
	return decode(fields)
}

func (c *Challenges) ConsumeChallenge(
	ctx context.Context,
	userID string,
	method domain.MFAMethod,
	challengeID string,
	at time.Time,
) (bool, error) {
	n, err := consumeScript.Run(ctx, c.rdb, []string{c.key(userID, method)}, challengeID, formatTime(at)).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *Challenges) ReleaseChallenge(
	ctx context.Context,
	userID string,
	method domain.MFAMethod,
	challengeID string,
	at time.Time,
) (bool, error) {
	n, err := releaseScript.Run(ctx, c.rdb, []string{c.key(userID, method)}, challengeID, formatTime(at)).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteExpiredChallenges removes rows already past expiry. Key TTLs clean
// up the rest on their own.
func (c *Challenges) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	var (
		deleted int64
		cursor  uint64
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, c.prefix+"*", scanBatch).Result()
		if err != nil {
			return deleted, err
		}
		for _, key := range keys {
			raw, err := c.rdb.HGet(ctx, key, "expires_at").Result()
			if errors.Is(err, goredis.Nil) {
				continue
			}
			if err != nil {
				return deleted, err
			}
			exp, err := parseTime(raw)
			if err != nil || !exp.Before(now) {
				continue
			}
			n, err := c.rdb.Del(ctx, key).Result()
			if err != nil {
				return deleted, err
			}
			deleted += n
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

func decode(f map[string]string) (domain.MFAChallenge, error) {
	ch := domain.MFAChallenge{
		ID:     f["id"],
		UserID: f["user_id"],
		Method: domain.MFAMethod(f["method"]),
		Secret: f["secret"],
	}
	var err error
	if ch.CreatedAt, err = parseTime(f["created_at"]); err != nil {
		return domain.MFAChallenge{}, fmt.Errorf("decode created_at: %w", err)
	}
	if ch.ExpiresAt, err = parseTime(f["expires_at"]); err != nil {
		return domain.MFAChallenge{}, fmt.Errorf("decode expires_at: %w", err)
	}
	if raw, ok := f["consumed_at"]; ok {
		t, err := parseTime(raw)
		if err != nil {
			return domain.MFAChallenge{}, fmt.Errorf("decode consumed_at: %w", err)
		}
		ch.ConsumedAt = &t
	}
	return ch, nil
}

// Times are stored as unix nanoseconds.
func formatTime(t time.Time) string { return strconv.FormatInt(t.UnixNano(), 10) }

func parseTime(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}
