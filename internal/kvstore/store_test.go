package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behavior every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "workflows", `[{"id":"a"}]`))
	v, err := s.Get(ctx, "workflows")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, v)

	require.NoError(t, s.Set(ctx, "workflows", `[]`))
	v, err = s.Get(ctx, "workflows")
	require.NoError(t, err)
	assert.Equal(t, `[]`, v)

	require.NoError(t, s.Remove(ctx, "workflows"))
	_, err = s.Get(ctx, "workflows")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Remove(ctx, "never-set"))

	_, err = s.Get(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, s.Set(ctx, "", "x"), ErrInvalidKey)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, WithPrefix("test"))
	exerciseStore(t, s)

	require.NoError(t, s.Set(context.Background(), "openai_api_key", "sk-x"))
	got, err := mr.Get("test:openai_api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-x", got)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestCachedStore(t *testing.T) {
	backend := NewMemoryStore()
	s := NewCachedStore(backend, time.Minute)
	exerciseStore(t, s)

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "v1"))
	// A write that bypasses the cache is not seen until the entry expires.
	require.NoError(t, backend.Set(ctx, "k", "v2"))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	require.NoError(t, s.Remove(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	type settings struct {
		Tone string `json:"tone"`
	}
	require.NoError(t, SetJSON(ctx, s, "aiTutorSettings", settings{Tone: "direct"}))

	var got settings
	require.NoError(t, GetJSON(ctx, s, "aiTutorSettings", &got))
	assert.Equal(t, "direct", got.Tone)

	require.NoError(t, s.Set(ctx, "broken", "{"))
	assert.Error(t, GetJSON(ctx, s, "broken", &got))
	assert.ErrorIs(t, GetJSON(ctx, s, "absent", &got), ErrNotFound)
}
