package research

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "vendor-research:v1:"

// Cached serves repeated queries from Redis. Cache failures are logged and
// never fail the research call.
type Cached struct {
	next   Researcher
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCached wraps next with a Redis cache holding outputs for ttl.
func NewCached(next Researcher, client redis.UniversalClient, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cached{next: next, client: client, ttl: ttl}
}

// Name implements Researcher.
func (c *Cached) Name() string { return c.next.Name() }

// Research implements Researcher.
func (c *Cached) Research(ctx context.Context, q Query) (*Output, error) {
	key := CacheKey(c.next.Name(), q)
	log := zap.L().With(zap.String("cache_key", key))

	if out, err := c.get(ctx, key); err != nil {
		log.Warn("research: cache read failed", zap.Error(err))
	} else if out != nil {
		log.Debug("research: cache hit")
		return out, nil
	}

	out, err := c.next.Research(ctx, q)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Text) == "" {
		return out, nil
	}

	if err := c.set(ctx, key, out); err != nil {
		log.Warn("research: cache write failed", zap.Error(err))
	}
	return out, nil
}

func (c *Cached) get(ctx context.Context, key string) (*Output, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "research: cache get")
	}
	var out Output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "research: cache decode")
	}
	out.Cached = true
	return &out, nil
}

func (c *Cached) set(ctx context.Context, key string, out *Output) error {
	data, err := json.Marshal(out)
	if err != nil {
		return eris.Wrap(err, "research: cache encode")
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return eris.Wrap(err, "research: cache set")
	}
	return nil
}

// CacheKey derives a stable key from the provider and the normalized query.
func CacheKey(provider string, q Query) string {
	norm := func(s string) string { return strings.ToLower(strings.Join(strings.Fields(s), " ")) }
	h := sha256.New()
	for _, part := range []string{provider, q.Category, q.Specialization, q.Location, q.ZipCode, q.Context} {
		h.Write([]byte(norm(part)))
		h.Write([]byte{0})
	}
	return cacheKeyPrefix + provider + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}
