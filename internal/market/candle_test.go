package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandleHelpers(t *testing.T) {
	candles := []Candle{
		{OpenTime: 3, High: 12, Low: 8, Close: 11, Volume: 3},
		{OpenTime: 2, High: 11, Low: 9, Close: 10, Volume: 2},
		{OpenTime: 1, High: 10, Low: 6, Close: 9, Volume: 1},
	}
	asc := Reverse(candles)
	assert.Equal(t, int64(1), asc[0].OpenTime)
	assert.Equal(t, int64(3), candles[0].OpenTime)
	assert.Equal(t, []float64{9, 10, 11}, Closes(asc))
	h, l, c := HLC(asc)
	assert.Equal(t, []float64{10, 11, 12}, h)
	assert.Equal(t, []float64{6, 9, 8}, l)
	assert.Equal(t, []float64{9, 10, 11}, c)
	assert.Equal(t, []float64{1, 2, 3}, Volumes(asc))

	tk := Ticker{Last: 110, Open24h: 100}
	assert.InDelta(t, 10.0, tk.Change24hPct(), 1e-9)
	assert.Equal(t, 0.0, Ticker{Last: 1}.Change24hPct())
}
