// Package indicator wraps go-talib with warm-up handling: slots inside an
// indicator's lookback are NaN so callers never mistake TALib's zero padding
// for real values.
package indicator

import (
	"math"

	"github.com/markcheno/go-talib"

	"okxagent/internal/market"
)

// Signal values returned by SMACross.
const (
	GoldenCrossBuy = "golden_cross_buy"
	DeathCrossSell = "death_cross_sell"
	Hold           = "hold"
)

// MACDSeries 同长度的 MACD 三条线。
type MACDSeries struct {
	Line   []float64
	Signal []float64
	Hist   []float64
}

func EMA(closes []float64, period int) []float64 {
	if period <= 0 {
		return nanSeries(len(closes))
	}
	lookback := period - 1
	if len(closes) <= lookback {
		return nanSeries(len(closes))
	}
	return maskWarmup(talib.Ema(closes, period), lookback)
}

func SMA(closes []float64, period int) []float64 {
	if period <= 0 {
		return nanSeries(len(closes))
	}
	lookback := period - 1
	if len(closes) <= lookback {
		return nanSeries(len(closes))
	}
	return maskWarmup(talib.Sma(closes, period), lookback)
}

// MACD uses the classic 12/26/9 parameters when any period is non-positive.
func MACD(closes []float64, fast, slow, signal int) MACDSeries {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		fast, slow, signal = 12, 26, 9
	}
	if fast > slow {
		fast, slow = slow, fast
	}
	lookback := (slow - 1) + (signal - 1)
	if len(closes) <= lookback {
		n := len(closes)
		return MACDSeries{Line: nanSeries(n), Signal: nanSeries(n), Hist: nanSeries(n)}
	}
	line, sig, hist := talib.Macd(closes, fast, slow, signal)
	return MACDSeries{
		Line:   maskWarmup(line, lookback),
		Signal: maskWarmup(sig, lookback),
		Hist:   maskWarmup(hist, lookback),
	}
}

// RSI uses Wilder smoothing (TALib).
func RSI(closes []float64, period int) []float64 {
	if period <= 0 {
		period = 14
	}
	if len(closes) <= period {
		return nanSeries(len(closes))
	}
	return maskWarmup(talib.Rsi(closes, period), period)
}

func ATR(candles []market.Candle, period int) []float64 {
	if period <= 0 {
		period = 14
	}
	if len(candles) <= period {
		return nanSeries(len(candles))
	}
	highs, lows, closes := market.HLC(candles)
	return maskWarmup(talib.Atr(highs, lows, closes, period), period)
}

// SMACross 比较最后两根的短/长均线位置：上穿为金叉，下穿为死叉。
func SMACross(closes []float64, short, long int) string {
	if short <= 0 || long <= 0 || short >= long || len(closes) < long+1 {
		return Hold
	}
	s := SMA(closes, short)
	l := SMA(closes, long)
	n := len(closes)
	prevS, prevL, lastS, lastL := s[n-2], l[n-2], s[n-1], l[n-1]
	if anyNaN(prevS, prevL, lastS, lastL) {
		return Hold
	}
	switch {
	case prevS <= prevL && lastS > lastL:
		return GoldenCrossBuy
	case prevS >= prevL && lastS < lastL:
		return DeathCrossSell
	default:
		return Hold
	}
}

// Tail returns up to n trailing valid values, rounded for prompt output.
func Tail(series []float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	start := len(series) - n
	if start < 0 {
		start = 0
	}
	out := make([]float64, 0, n)
	for _, v := range series[start:] {
		if !valid(v) {
			continue
		}
		out = append(out, round4(v))
	}
	return out
}

// Latest returns the last valid value.
func Latest(series []float64) (float64, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		if valid(series[i]) {
			return series[i], true
		}
	}
	return 0, false
}

// LatestPtr is Latest for optional snapshot fields.
func LatestPtr(series []float64) *float64 {
	v, ok := Latest(series)
	if !ok {
		return nil
	}
	r := round4(v)
	return &r
}

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func maskWarmup(src []float64, lookback int) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		if i < lookback || !valid(v) {
			out[i] = math.NaN()
			continue
		}
		out[i] = v
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func anyNaN(vals ...float64) bool {
	for _, v := range vals {
		if !valid(v) {
			return true
		}
	}
	return false
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
