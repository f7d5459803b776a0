package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := New(Options{Addr: mr.Addr(), DB: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestNew_FailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := New(Options{Addr: addr})
	assert.Error(t, err)
}

func TestService_HealthCheck(t *testing.T) {
	s, mr := newTestService(t)
	require.NoError(t, s.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, s.HealthCheck(context.Background()))
}

func TestService_Cache(t *testing.T) {
	s, mr := newTestService(t)
	ctx := context.Background()

	type row struct {
		Name string `json:"name"`
	}
	require.NoError(t, s.CacheSet(ctx, "k", row{Name: "a"}, 30))
	var got row
	require.NoError(t, s.CacheGet(ctx, "k", &got))
	assert.Equal(t, "a", got.Name)
	mr.Select(2)
	assert.Equal(t, 30*time.Second, mr.TTL("k"))

	require.NoError(t, s.CacheSet(ctx, "forever", row{Name: "b"}, 0))
	assert.Zero(t, mr.TTL("forever"))

	err := s.CacheGet(ctx, "missing", &got)
	assert.True(t, IsMissing(err))
}

func TestService_CacheSetNX(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	ok, err := s.CacheSetNX(ctx, "once", map[string]int{"v": 1})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CacheSetNX(ctx, "once", map[string]int{"v": 2})
	require.NoError(t, err)
	assert.False(t, ok)

	var got map[string]int
	require.NoError(t, s.CacheGet(ctx, "once", &got))
	assert.Equal(t, 1, got["v"])
}

func TestService_AsynqRedisOpt(t *testing.T) {
	s, mr := newTestService(t)
	opt := s.AsynqRedisOpt()
	assert.Equal(t, mr.Addr(), opt.Addr)
	assert.Equal(t, 2, opt.DB)
}
