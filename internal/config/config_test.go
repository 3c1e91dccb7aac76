package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("OKX_SYMBOLS", "")
	t.Setenv("OKX_SIMULATED", "")
	t.Setenv("MARKET_SOURCE", "")
	t.Setenv("TRADING_ENABLED", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC/USDT:USDT", "DOGE/USDT:USDT", "ETH/USDT:USDT", "SOL/USDT:USDT"}, cfg.Market.Symbols)
	assert.Equal(t, "okx", cfg.Market.Source)
	assert.Equal(t, "3m", cfg.Market.IntradayBar)
	assert.Equal(t, "4h", cfg.Market.SwingBar)
	assert.Equal(t, 10, cfg.Market.Keep)
	assert.Equal(t, "1m", cfg.Market.SignalBar)
	assert.Equal(t, 20, cfg.Market.SMAShort)
	assert.Equal(t, 50, cfg.Market.SMALong)
	assert.True(t, cfg.OKX.Simulated)
	assert.Equal(t, "wss://wspap.okx.com:8443/ws/v5/public", cfg.OKX.WSPublicURL)
	assert.Equal(t, 2, cfg.OKX.Retries)
	assert.Equal(t, "50001", cfg.OKX.RetryCode)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.True(t, cfg.LLM.JSONMode)
	assert.False(t, cfg.Trading.Enabled)
	assert.Equal(t, "isolated", cfg.Trading.TdMode)
	assert.Equal(t, 20.0, cfg.Trading.SpotBuyCapUSDT)
	assert.Equal(t, 5.0, cfg.Trading.MinBalanceUSDT)
	assert.True(t, cfg.Loop.RunImmediately)

	d, err := cfg.Loop.IntervalDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, d)
	assert.Equal(t, 24, cfg.Market.SummaryWindow("1h"))
	assert.Equal(t, 20, cfg.Market.SummaryWindow("5m"))
}

func TestLoadFileWithIncludeAndExplicitFalse(t *testing.T) {
	t.Setenv("OKX_SYMBOLS", "")
	t.Setenv("OKX_SIMULATED", "")
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
market:
  keep: 12
  symbols: ["ETH/USDT:USDT"]
loop:
  interval: 1h
`)
	main := writeFile(t, dir, "config.yaml", `
include: ["base.yaml"]
okx:
  simulated: false
  retries: 0
loop:
  run_immediately: false
trading:
  max_leverage: "20"
`)
	cfg, err := Load(main)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Market.Keep)
	assert.Equal(t, []string{"ETH/USDT:USDT"}, cfg.Market.Symbols)
	assert.False(t, cfg.OKX.Simulated)
	assert.Equal(t, 0, cfg.OKX.Retries)
	assert.Equal(t, "wss://ws.okx.com:8443/ws/v5/public", cfg.OKX.WSPublicURL)
	assert.False(t, cfg.Loop.RunImmediately)
	assert.Equal(t, 20, cfg.Trading.MaxLeverage)
	d, err := cfg.Loop.IntervalDuration()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)
}

func TestIncludeCycleDetected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include: [\"b.yaml\"]\n")
	b := writeFile(t, dir, "b.yaml", "include: [\"a.yaml\"]\n")
	_, err := Load(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include cycle")
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"OKX_API_KEY":        "key",
		"OKX_API_SECRET":     "secret",
		"OKX_API_PASSPHRASE": "pass",
		"OKX_SIMULATED":      "0",
		"OKX_SYMBOLS":        " BTC/USDT:USDT, ,SOL/USDT:USDT,BTC/USDT:USDT",
		"HTTP_PROXY":         "http://127.0.0.1:7890",
		"DEEPSEEK_API_KEY":   "sk-deep",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	var cfg Config
	cfg.OKX.Simulated = true
	keys := make(keySet)
	cfg.applyEnv(lookup, keys)
	cfg.applyDefaults(keys)

	assert.True(t, cfg.OKX.HasCredentials())
	assert.False(t, cfg.OKX.Simulated)
	assert.Equal(t, []string{"BTC/USDT:USDT", "SOL/USDT:USDT"}, cfg.Market.Symbols)
	assert.Equal(t, "http://127.0.0.1:7890", cfg.OKX.Proxy)
	assert.Equal(t, "sk-deep", cfg.LLM.APIKey)
	assert.True(t, keys.isSet("okx.simulated"))
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "source", body: "market:\n  source: kraken\n", want: "market.source"},
		{name: "interval", body: "loop:\n  interval: 10s\n", want: "loop.interval"},
		{name: "td_mode", body: "trading:\n  td_mode: cash\n", want: "trading.td_mode"},
		{name: "leverage", body: "trading:\n  default_leverage: 50\n  max_leverage: 5\n", want: "default_leverage"},
		{name: "telegram", body: "notify:\n  telegram:\n    enabled: true\n", want: "notify.telegram"},
		{name: "sma", body: "market:\n  sma_short: 50\n  sma_long: 20\n", want: "market.sma_short"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("MARKET_SOURCE", "")
			t.Setenv("TELEGRAM_BOT_TOKEN", "")
			t.Setenv("TELEGRAM_CHAT_ID", "")
			path := writeFile(t, t.TempDir(), "config.yaml", tc.body)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestDumpMasksSecrets(t *testing.T) {
	var cfg Config
	cfg.OKX.APIKey = "abcdefghijkl"
	cfg.LLM.APIKey = "short"
	out, err := cfg.Dump()
	require.NoError(t, err)
	assert.Contains(t, out, "abc***kl")
	assert.NotContains(t, out, "abcdefghijkl")
	assert.NotContains(t, out, "short")
}
