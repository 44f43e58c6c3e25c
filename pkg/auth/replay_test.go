package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gherr "github.com/guildhall/guildhall-auth/pkg/errors"
)

// ---------------------------------------------------------------------------
// MemoryReplayGuard
// ---------------------------------------------------------------------------

func TestMemoryReplayGuard_MarkAndCheck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	guard := NewMemoryReplayGuard()

	used, err := guard.IsUsed(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, used, "fresh identifier must not be reported as used")

	require.NoError(t, guard.MarkUsed(ctx, "jti-1", time.Now().Add(time.Hour)))

	used, err = guard.IsUsed(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, used)
}

func TestMemoryReplayGuard_MarkUsed_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	guard := NewMemoryReplayGuard()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, guard.MarkUsed(ctx, "jti-1", exp))
	require.NoError(t, guard.MarkUsed(ctx, "jti-1", exp), "re-marking must not error")

	used, err := guard.IsUsed(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, used)
	assert.Equal(t, 1, guard.Len())
}

func TestMemoryReplayGuard_EmptyJTI_FailsClosed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	guard := NewMemoryReplayGuard()

	used, err := guard.IsUsed(ctx, "")
	require.NoError(t, err)
	assert.True(t, used, "an empty identifier must be reported as used")

	fresh, err := guard.Consume(ctx, "", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, fresh, "an empty identifier must never be fresh")

	err = guard.MarkUsed(ctx, "", time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.True(t, gherr.HasCode(err, gherr.CodeValidation))
}

func TestMemoryReplayGuard_Consume_SingleWinner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	guard := NewMemoryReplayGuard()
	exp := time.Now().Add(time.Hour)

	const goroutines = 50
	var wins atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			fresh, err := guard.Consume(ctx, "contested-jti", exp)
			assert.NoError(t, err)
			if fresh {
				wins.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), wins.Load(), "exactly one concurrent consumer may win")
}

func TestMemoryReplayGuard_Consume_ThenSpent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	guard := NewMemoryReplayGuard()
	exp := time.Now().Add(time.Hour)

	fresh, err := guard.Consume(ctx, "jti-1", exp)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = guard.Consume(ctx, "jti-1", exp)
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestMemoryReplayGuard_Sweep_RemovesExpiredOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	guard := NewMemoryReplayGuard()
	now := time.Now()

	require.NoError(t, guard.MarkUsed(ctx, "expired-1", now.Add(-time.Minute)))
	require.NoError(t, guard.MarkUsed(ctx, "expired-2", now.Add(-time.Second)))
	require.NoError(t, guard.MarkUsed(ctx, "live", now.Add(time.Hour)))

	removed, err := guard.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	used, err := guard.IsUsed(ctx, "live")
	require.NoError(t, err)
	assert.True(t, used, "live identifiers must survive the sweep")
	assert.Equal(t, 1, guard.Len())
}

func TestMemoryReplayGuard_Close(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	guard := NewMemoryReplayGuard()

	require.NoError(t, guard.MarkUsed(ctx, "jti-1", time.Now().Add(time.Hour)))
	require.NoError(t, guard.Close())
	assert.Equal(t, 0, guard.Len())
}
