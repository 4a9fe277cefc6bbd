package xredis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 需要真实 redis：XMATCH_REDIS_ADDR=127.0.0.1:6379 go test ./pkg/xredis/
func testRedisAddr(t *testing.T) string {
	addr := os.Getenv("XMATCH_REDIS_ADDR")
	if addr == "" {
		t.Skip("XMATCH_REDIS_ADDR not set")
	}
	return addr
}

func TestNewRedis_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := NewRedis(ctx, &Config{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestMasterLock(t *testing.T) {
	addr := testRedisAddr(t)
	ctx := context.Background()
	rdb, err := NewRedis(ctx, &Config{Addr: addr})
	require.NoError(t, err)
	defer rdb.Close()

	key := "xmatch:test:master:" + uuid.NewString()
	a := NewMasterLock(rdb, key, 2*time.Second)
	b := NewMasterLock(rdb, key, 2*time.Second)

	ok, err := a.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "held by a")

	// 重入 = 续期
	ok, err = a.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// b 不能删 a 的锁
	require.NoError(t, b.Release(ctx))
	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Release(ctx))
	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Release(ctx))
}
