package research

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCached_MissThenHit(t *testing.T) {
	mr, client := newTestRedis(t)
	next := &mockResearcher{}
	q := Query{Category: "Architect", Location: "Austin, TX"}
	next.On("Research", mock.Anything, q).
		Return(&Output{Provider: "mock", Text: "Acme Architects", Sources: []string{"https://acme.example"}}, nil).Once()

	c := NewCached(next, client, 30*time.Minute)

	first, err := c.Research(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := c.Research(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "Acme Architects", second.Text)
	assert.Equal(t, []string{"https://acme.example"}, second.Sources)

	key := CacheKey("mock", q)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 30*time.Minute, mr.TTL(key))
	next.AssertExpectations(t)
}

func TestCached_Expires(t *testing.T) {
	mr, client := newTestRedis(t)
	next := &mockResearcher{}
	q := Query{Category: "Architect", Location: "Austin"}
	next.On("Research", mock.Anything, q).Return(&Output{Provider: "mock", Text: "fresh"}, nil).Twice()

	c := NewCached(next, client, time.Minute)
	_, err := c.Research(context.Background(), q)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	out, err := c.Research(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, out.Cached)
	next.AssertExpectations(t)
}

func TestCached_ErrorsAndEmptyNotCached(t *testing.T) {
	mr, client := newTestRedis(t)
	next := &mockResearcher{}
	failing := Query{Category: "Architect", Location: "Austin"}
	empty := Query{Category: "Surveyor", Location: "Austin"}
	next.On("Research", mock.Anything, failing).Return(nil, errors.New("boom")).Once()
	next.On("Research", mock.Anything, empty).Return(&Output{Provider: "mock", Text: "  "}, nil).Once()

	c := NewCached(next, client, time.Minute)

	_, err := c.Research(context.Background(), failing)
	require.Error(t, err)
	_, err = c.Research(context.Background(), empty)
	require.NoError(t, err)

	assert.Empty(t, mr.Keys())
}

func TestCached_RedisDownFallsThrough(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	next := &mockResearcher{}
	next.On("Research", mock.Anything, mock.Anything).Return(&Output{Provider: "mock", Text: "live"}, nil).Once()

	out, err := NewCached(next, client, time.Minute).Research(context.Background(), Query{Category: "Architect"})
	require.NoError(t, err)
	assert.Equal(t, "live", out.Text)
}

func TestCacheKey_Normalizes(t *testing.T) {
	a := CacheKey("perplexity", Query{Category: "Architect", Location: "Austin,  TX"})
	b := CacheKey("perplexity", Query{Category: "architect", Location: "austin, tx"})
	c := CacheKey("jina", Query{Category: "Architect", Location: "Austin, TX"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "vendor-research:v1:perplexity:")
}
