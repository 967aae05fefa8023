package sessions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

const defaultPrefix = "voicrm:stream"

// RedisRegistry keeps sessions in Redis so any API replica can serve a
// stream's events. Keys expire on their own; Sweep has nothing to do.
type RedisRegistry struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisRegistry(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisRegistry {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRegistry{rdb: rdb, prefix: prefix, ttl: ttl, now: time.Now}
}

func (r *RedisRegistry) metaKey(sid string) string  { return r.prefix + ":" + sid + ":meta" }
func (r *RedisRegistry) audioKey(sid string) string { return r.prefix + ":" + sid + ":audio" }

func (r *RedisRegistry) Start(ctx context.Context, s Session) error {
	if s.StreamSid == "" {
		return domain.Validation("streamSid required")
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = r.now()
	}
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.audioKey(s.StreamSid))
		p.HSet(ctx, r.metaKey(s.StreamSid),
			"call_sid", s.CallSid,
			"started_at", s.StartedAt.UTC().Format(time.RFC3339Nano),
		)
		p.Expire(ctx, r.metaKey(s.StreamSid), r.ttl)
		return nil
	})
	if err != nil {
		return storageErr(err, "start stream session")
	}
	return nil
}

func (r *RedisRegistry) Get(ctx context.Context, streamSid string) (Session, bool, error) {
	vals, err := r.rdb.HGetAll(ctx, r.metaKey(streamSid)).Result()
	if err != nil {
		return Session{}, false, storageErr(err, "get stream session")
	}
	if len(vals) == 0 {
		return Session{}, false, nil
	}
	s := Session{StreamSid: streamSid, CallSid: vals["call_sid"]}
	s.StartedAt, _ = time.Parse(time.RFC3339Nano, vals["started_at"])
	return s, true, nil
}

func (r *RedisRegistry) Touch(ctx context.Context, streamSid string) error {
	ok, err := r.rdb.Expire(ctx, r.metaKey(streamSid), r.ttl).Result()
	if err != nil {
		return storageErr(err, "touch stream session")
	}
	if !ok {
		return notFound(streamSid)
	}
	r.rdb.Expire(ctx, r.audioKey(streamSid), r.ttl)
	return nil
}

func (r *RedisRegistry) Append(ctx context.Context, streamSid string, chunk []byte) (int, error) {
	if err := r.Touch(ctx, streamSid); err != nil {
		return 0, err
	}
	var push *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		push = p.RPush(ctx, r.audioKey(streamSid), chunk)
		p.Expire(ctx, r.audioKey(streamSid), r.ttl)
		return nil
	})
	if err != nil {
		return 0, storageErr(err, "buffer stream audio")
	}
	return int(push.Val()), nil
}

func (r *RedisRegistry) Drain(ctx context.Context, streamSid string) ([][]byte, error) {
	var rng *redis.StringSliceCmd
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		rng = p.LRange(ctx, r.audioKey(streamSid), 0, -1)
		p.Del(ctx, r.audioKey(streamSid))
		return nil
	})
	if err != nil {
		return nil, storageErr(err, "drain stream audio")
	}
	vals := rng.Val()
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

func (r *RedisRegistry) Stop(ctx context.Context, streamSid string) (Session, bool, error) {
	s, ok, err := r.Get(ctx, streamSid)
	if err != nil || !ok {
		return s, ok, err
	}
	if err := r.rdb.Del(ctx, r.metaKey(streamSid), r.audioKey(streamSid)).Err(); err != nil {
		return Session{}, false, storageErr(err, "stop stream session")
	}
	return s, true, nil
}

func (r *RedisRegistry) Sweep(context.Context) (int, error) { return 0, nil }

func (r *RedisRegistry) Active(ctx context.Context) (int, error) {
	n := 0
	iter := r.rdb.Scan(ctx, 0, r.prefix+":*:meta", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, storageErr(err, "count stream sessions")
	}
	return n, nil
}

func storageErr(err error, msg string) error {
	return domain.Classify(domain.ErrStorage, eris.Wrap(err, msg))
}
