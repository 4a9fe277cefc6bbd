package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopherex.com/xmatch/internal/matching"
	"gopherex.com/xmatch/pkg/wal"
)

func walCfg(dir string, codec CmdCodec) EngineConfig {
	return EngineConfig{WALDir: dir, EnableCmdWAL: true, CmdCodec: codec}
}

func TestEngine_ReplayRebuildsBook(t *testing.T) {
	for name, codec := range map[string]CmdCodec{
		"binary": BinaryCmdCodec{},
		"json":   JSONCmdCodec{Version: 1},
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			ctx := context.Background()

			e1 := NewEngine(walCfg(dir, codec))
			submit(t, e1, newCmd("1", "BTC-USDT", matching.Buy, matching.Limit, 100, 200))
			submit(t, e1, newCmd("2", "BTC-USDT", matching.Sell, matching.Limit, 100, 300))
			submit(t, e1, newCmd("3", "BTC-USDT", matching.Sell, matching.Limit, 100, 50))
			submit(t, e1, newCmd("bad", "BTC-USDT", matching.Sell, matching.Limit, 100, -1))
			// 重复 id 当时被拒，回放也要跳过
			dup := submit(t, e1, newCmd("3", "BTC-USDT", matching.Sell, matching.Limit, 101, 7))
			require.ErrorIs(t, dup.Err, matching.ErrInvalidOrder)
			before, err := e1.Depth(ctx, "BTC-USDT", 0)
			require.NoError(t, err)
			e1.Stop()

			e2 := NewEngine(walCfg(dir, codec))
			defer e2.Stop()
			// 第一次访问触发 actor 创建 + 回放
			r := submit(t, e2, newCmd("4", "BTC-USDT", matching.Buy, matching.Limit, 100, 120))
			require.NoError(t, r.Err)
			assert.Equal(t, uint64(6), r.Seq, "seq continues after replay")
			require.NotNil(t, r.Result)
			// 时间优先：2 先于 3
			assert.Equal(t, []string{"2", "3"}, r.Result.ContraIDs)

			after, err := e2.Depth(ctx, "BTC-USDT", 0)
			require.NoError(t, err)
			require.Len(t, after.Asks, 1)
			assert.Equal(t, before.Asks[0].Qty-120, after.Asks[0].Qty)
		})
	}
}

func TestEngine_ReplayRepairsTruncatedTail(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e1 := NewEngine(walCfg(dir, BinaryCmdCodec{}))
	submit(t, e1, newCmd("1", "ETH-USDT", matching.Sell, matching.Limit, 10, 5))
	e1.Stop()

	path := cmdWalPath(dir, "ETH-USDT")
	good, err := os.Stat(path)
	require.NoError(t, err)
	// 模拟崩溃：半条记录
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	e2 := NewEngine(walCfg(dir, BinaryCmdCodec{}))
	ok, err := e2.HasBook(ctx, "ETH-USDT")
	require.NoError(t, err)
	assert.False(t, ok, "HasBook does not create the actor")

	r := submit(t, e2, newCmd("2", "ETH-USDT", matching.Buy, matching.Limit, 10, 5))
	require.NoError(t, r.Err)
	require.NotNil(t, r.Result)
	assert.Equal(t, []string{"1"}, r.Result.ContraIDs)
	e2.Stop()

	// 尾部被截掉，新记录接在后面，整个文件可以完整回放
	st, err := wal.Replay(path, wal.ReplayOptions{}, func([]byte) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, st.Records)
	assert.False(t, st.TruncatedTail)
	assert.Greater(t, st.LastGoodOffset, good.Size())
}

func TestCmdWalPath_Sanitized(t *testing.T) {
	assert.Equal(t, filepath.Join("d", "BTC_USDT.cmd.wal"), cmdWalPath("d", "BTC/USDT"))
	assert.Equal(t, filepath.Join("d", "eth-usdt.cmd.wal"), cmdWalPath("d", "eth-usdt"))
}
