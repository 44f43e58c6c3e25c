package redis

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gherr "github.com/guildhall/guildhall-auth/pkg/errors"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// newTestClient starts a miniredis server and returns a Client connected to
// it, along with the server for TTL manipulation.
func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewFromClient(rdb, nil), srv
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNewClient_InvalidConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := *DefaultConfig()
	cfg.Port = 70000
	_, err := NewClient(ctx, cfg)
	require.Error(t, err)
	assert.True(t, gherr.HasCode(err, gherr.CodeValidation))
}

func TestNewClient_ConnectsAndPings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := miniredis.RunT(t)

	port, err := strconv.Atoi(srv.Port())
	require.NoError(t, err)

	cfg := *DefaultConfig()
	cfg.Host = srv.Host()
	cfg.Port = port

	client, err := NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.NoError(t, client.Health(ctx))
}

func TestNewClient_UnreachableServer(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cfg := *DefaultConfig()
	cfg.Port = 1 // nothing listens here
	cfg.DialTimeout = 100 * time.Millisecond
	cfg.MaxRetries = -1

	_, err := NewClient(ctx, cfg)
	require.Error(t, err)
	assert.True(t, gherr.HasCode(err, gherr.CodeUnavailableDependency))
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func TestClient_SetAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, _ := newTestClient(t)

	require.NoError(t, client.Set(ctx, "k", "v", 0))

	val, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestClient_Get_MissingKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, _ := newTestClient(t)

	_, err := client.Get(ctx, "absent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, Nil), "a missing key must surface redis.Nil through the wrap")
	assert.True(t, gherr.HasCode(err, gherr.CodeInternalStore))
}

func TestClient_SetNX_FirstWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, _ := newTestClient(t)

	set, err := client.SetNX(ctx, "k", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = client.SetNX(ctx, "k", "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, set, "a second SETNX on the same key must lose")

	val, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "1", val, "the losing SETNX must not overwrite the value")
}

func TestClient_Del(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, _ := newTestClient(t)

	require.NoError(t, client.Set(ctx, "k1", "v", 0))
	require.NoError(t, client.Set(ctx, "k2", "v", 0))

	deleted, err := client.Del(ctx, "k1", "k2", "absent")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestClient_Exists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, _ := newTestClient(t)

	require.NoError(t, client.Set(ctx, "k", "v", 0))

	count, err := client.Exists(ctx, "k", "absent")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestClient_ExpireAndTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, srv := newTestClient(t)

	require.NoError(t, client.Set(ctx, "k", "v", 0))

	ok, err := client.Expire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := client.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	srv.FastForward(2 * time.Minute)
	count, err := client.Exists(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, count, "the key must expire with its TTL")
}

func TestClient_TTL_SentinelValues(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, _ := newTestClient(t)

	require.NoError(t, client.Set(ctx, "no-expiry", "v", 0))

	ttl, err := client.TTL(ctx, "no-expiry")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl, "keys without expiry report -1")

	ttl, err = client.TTL(ctx, "absent")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-2), ttl, "missing keys report -2")
}

// ---------------------------------------------------------------------------
// Error classification
// ---------------------------------------------------------------------------

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, wrapError(nil, "unused"))

	timeout := wrapError(context.DeadlineExceeded, "redis: op failed")
	assert.True(t, gherr.HasCode(timeout, gherr.CodeTimeoutStore))

	canceled := wrapError(context.Canceled, "redis: op failed")
	assert.True(t, gherr.HasCode(canceled, gherr.CodeInternalStore))

	generic := wrapError(errors.New("connection reset"), "redis: op failed")
	assert.True(t, gherr.HasCode(generic, gherr.CodeInternalStore))
}
