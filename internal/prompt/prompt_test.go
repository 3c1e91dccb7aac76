package prompt

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"okxagent/internal/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstituteIsSafe(t *testing.T) {
	vars := map[string]string{"PRIMARY_SYMBOL": "BTC/USDT:USDT", "BASE_ASSET": "BTC"}
	got := Substitute("trade $PRIMARY_SYMBOL (${BASE_ASSET}) costs $$5, keep $UNKNOWN and ${ALSO_UNKNOWN} $", vars)
	assert.Equal(t, "trade BTC/USDT:USDT (BTC) costs $5, keep $UNKNOWN and ${ALSO_UNKNOWN} $", got)
}

func TestSystemVars(t *testing.T) {
	vars := SystemVars([]string{"ETH/USDT:USDT", "BTC/USDT:USDT"})
	assert.Equal(t, "ETH/USDT:USDT", vars["PRIMARY_SYMBOL"])
	assert.Equal(t, "ETH", vars["BASE_ASSET"])
	assert.Equal(t, "ETH/USDT:USDT, BTC/USDT:USDT", vars["ALLOWED_SYMBOLS"])

	empty := SystemVars(nil)
	assert.Equal(t, "", empty["PRIMARY_SYMBOL"])
}

func TestEmbeddedDefaults(t *testing.T) {
	s, err := NewStore("", "", "")
	require.NoError(t, err)
	sys := s.System(SystemVars([]string{"SOL/USDT:USDT"}))
	assert.Contains(t, sys, "SOL/USDT:USDT")
	assert.Contains(t, sys, "基础资产 SOL")
	assert.NotContains(t, sys, "$PRIMARY_SYMBOL")
	assert.Contains(t, sys, "buy_to_enter")
}

func sampleInput() UserInput {
	ema := 101.5
	return UserInput{
		Now:               time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		MinutesSinceStart: 90,
		Invocations:       4,
		Snapshots: []snapshot.PerpSnapshot{{
			Symbol:       "BTC/USDT:USDT",
			Source:       "okx",
			CurrentPrice: 64000.5,
			EMA20:        &ema,
			SMACross:     snapshot.CrossSignal{Bar: "1m", Short: 20, Long: 50, Signal: "hold"},
			Intraday:     snapshot.IntradaySeries{Bar: "3m", Prices: []float64{1, 2.5}},
			Swing:        snapshot.SwingContext{Bar: "4h"},
		}},
		Summaries: map[string][]snapshot.TimeframeSummary{
			"BTC/USDT:USDT": {{Bar: "1h", LastClose: 64000, CloseHistory: []float64{63000, 64000}}},
		},
		Account:   AccountState{TotalEquity: 1000, AvailableUSDT: 800},
		Positions: []Position{{Symbol: "BTC-USDT-SWAP", Side: "long", Size: 2, EntryPrice: 60000, Leverage: "5"}},
	}
}

func TestRenderUserDefault(t *testing.T) {
	s, err := NewStore("", "", "")
	require.NoError(t, err)
	out, err := s.RenderUser(sampleInput())
	require.NoError(t, err)
	assert.Contains(t, out, "已过去 90 分钟，这是第 4 次调用")
	assert.Contains(t, out, "### BTC/USDT:USDT（数据源 okx）")
	assert.Contains(t, out, "current_price = 64000.5")
	assert.Contains(t, out, "current_ema20 = 101.5, current_ema50 = N/A")
	assert.Contains(t, out, "收盘价: [1, 2.5]")
	assert.Contains(t, out, "SMA(20/50, 1m) 信号: hold")
	assert.Contains(t, out, "- 1h: last_close=64000 change=N/A")
	assert.Contains(t, out, "closes=[63000, 64000]")
	assert.Contains(t, out, "- BTC-USDT-SWAP long 数量=2 开仓价=60000")
}

func TestRenderUserNoPositions(t *testing.T) {
	s, err := NewStore("", "", "")
	require.NoError(t, err)
	in := sampleInput()
	in.Positions = nil
	in.Summaries = nil
	out, err := s.RenderUser(in)
	require.NoError(t, err)
	assert.Contains(t, out, "当前无持仓。")
	assert.NotContains(t, out, "多周期摘要")
}

func TestStoreDirOverridesAndFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "system_prompt.txt"), []byte("only $BASE_ASSET"), 0o644))
	s, err := NewStore(dir, "system_prompt.txt", "user_prompt.tmpl")
	require.NoError(t, err)
	assert.Equal(t, "only BTC", s.System(SystemVars([]string{"BTC/USDT:USDT"})))
	// user template falls back to the embedded one
	out, err := s.RenderUser(sampleInput())
	require.NoError(t, err)
	assert.Contains(t, out, "BTC/USDT:USDT")
}

func TestStoreRejectsBrokenTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user_prompt.tmpl"), []byte("{{.Broken"), 0o644))
	_, err := NewStore(dir, "", "")
	require.Error(t, err)
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "system_prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	s, err := NewStore(dir, "", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte("v2 $BASE_ASSET"), 0o644))
	assert.Eventually(t, func() bool {
		return s.System(map[string]string{"BASE_ASSET": "ETH"}) == "v2 ETH"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatchRequiresDir(t *testing.T) {
	s, err := NewStore("", "", "")
	require.NoError(t, err)
	require.Error(t, s.Watch(context.Background()))
}
