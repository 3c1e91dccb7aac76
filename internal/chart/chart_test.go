package chart

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"okxagent/internal/market"
	"okxagent/internal/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candles(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		c := 100 + float64(i%7)
		out[i] = market.Candle{OpenTime: int64(i) * 180_000, Open: c - 1, High: c + 2, Low: c - 2, Close: c, Volume: float64(10 + i)}
	}
	return out
}

func fixedRenderer(dir string, png bool) *Renderer {
	r := NewRenderer(dir, png)
	r.nowFn = func() time.Time { return time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC) }
	return r
}

func TestBuildHTML(t *testing.T) {
	html, desc, err := BuildHTML("BTC/USDT:USDT", []Panel{{Bar: "3m", Candles: candles(120)}, {Bar: "4h", Candles: candles(30)}})
	require.NoError(t, err)
	body := string(html)
	assert.Contains(t, body, "EMA20")
	assert.Contains(t, body, "MACD Hist")
	assert.Contains(t, desc, "BTC/USDT:USDT")
	assert.Contains(t, desc, "3m: close=")
	// 30 candles cannot produce EMA50
	assert.Contains(t, desc, "4h: close=")
	assert.Contains(t, desc, "ema50=N/A")

	_, _, err = BuildHTML("BTC", nil)
	require.Error(t, err)
}

func TestRenderWritesHTMLOnly(t *testing.T) {
	dir := t.TempDir()
	r := fixedRenderer(dir, false)
	art, err := r.Render(context.Background(), "ETH/USDT:USDT", []Panel{{Bar: "3m", Candles: candles(80)}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "eth_usdt_usdt_20240501_0830.html"), art.HTMLPath)
	assert.FileExists(t, art.HTMLPath)
	assert.Empty(t, art.PNGPath)
	assert.Nil(t, art.Image)
}

func TestRenderPNG(t *testing.T) {
	dir := t.TempDir()
	r := fixedRenderer(dir, true)
	r.pngFn = func(_ context.Context, html []byte, width, height int) ([]byte, error) {
		assert.Equal(t, chartWidthPx, width)
		assert.Equal(t, klineHeightPx+volumeHeightPx+macdHeightPx, height)
		return []byte{0x89, 'P', 'N', 'G'}, nil
	}
	snap := snapshot.PerpSnapshot{Symbol: "SOL/USDT:USDT", Intraday: snapshot.IntradaySeries{Bar: "3m"}, IntradayHistory: candles(60)}
	art, err := r.RenderSnapshot(context.Background(), snap)
	require.NoError(t, err)
	require.NotNil(t, art.Image)
	data, err := os.ReadFile(art.PNGPath)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
	assert.Equal(t, "data:image/png;base64,iVBORw==", art.Image.DataURI())
}

func TestRenderPNGFailureKeepsHTML(t *testing.T) {
	r := fixedRenderer(t.TempDir(), true)
	r.pngFn = func(context.Context, []byte, int, int) ([]byte, error) { return nil, errors.New("no chrome") }
	art, err := r.Render(context.Background(), "BTC", []Panel{{Bar: "1h", Candles: candles(10)}})
	require.Error(t, err)
	assert.FileExists(t, art.HTMLPath)
}
