package utils

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisConfig describes the Redis used for the selection throttle and
// media-stream sessions. Zero values take the defaults below.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	PoolSize int
	// OpTimeout bounds reads and writes. Callers on the selection path fail
	// open, so it is kept short.
	OpTimeout   time.Duration
	PingTimeout time.Duration
}

const (
	defaultRedisPoolSize    = 10
	defaultRedisOpTimeout   = 500 * time.Millisecond
	defaultRedisPingTimeout = 2 * time.Second
)

// OpenRedis connects and PINGs. The client is closed again if the PING fails.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, eris.New("redis addr is required")
	}
	opTimeout := orDefault(cfg.OpTimeout, defaultRedisOpTimeout)
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultRedisPoolSize
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     2 * time.Second,
		ReadTimeout:     opTimeout,
		WriteTimeout:    opTimeout,
		PoolSize:        poolSize,
		MinIdleConns:    2,
		ConnMaxIdleTime: 5 * time.Minute,
	})

	pingCtx, cancel := context.WithTimeout(ctx, orDefault(cfg.PingTimeout, defaultRedisPingTimeout))
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrapf(err, "ping redis at %s", cfg.Addr)
	}
	return rdb, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

var windowAllowScript = redis.NewScript(`
-- KEYS[1] = window key
-- ARGV[1] = limit (int)
-- ARGV[2] = window ttl seconds (int)
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('EXPIRE', KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

// WindowLimiter is a fixed-window counter shared across API replicas.
// Each subject gets Limit hits per Window; the window key expires on its own.
type WindowLimiter struct {
	rdb    redis.Cmdable
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewWindowLimiter(rdb redis.Cmdable, prefix string, limit int, window time.Duration) (*WindowLimiter, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	if window < time.Second {
		return nil, fmt.Errorf("window must be >= 1s")
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &WindowLimiter{rdb: rdb, prefix: prefix, limit: int64(limit), window: window, now: time.Now}, nil
}

// Allow counts one hit for subject and reports whether it is within the limit.
func (l *WindowLimiter) Allow(ctx context.Context, subject string) (bool, error) {
	subject = strings.ToLower(strings.TrimSpace(subject))
	if subject == "" {
		return false, fmt.Errorf("subject is required")
	}
	bucket := l.now().UTC().Unix() / int64(l.window/time.Second)
	key := fmt.Sprintf("%s:%s:%d", l.prefix, subject, bucket)

	res, err := windowAllowScript.Run(ctx, l.rdb, []string{key}, l.limit, int64(l.window/time.Second)).Int()
	if err != nil {
		return false, fmt.Errorf("evaluate rate limit: %w", err)
	}
	return res == 1, nil
}
