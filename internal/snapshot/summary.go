package snapshot

import (
	"context"
	"fmt"
	"math"

	"okxagent/internal/market"
)

const (
	defaultSummaryWindow = 20
	defaultCloseHistory  = 5
	recentCandles        = 3
)

// TimeframeSummary 将一个周期的K线压缩成几个统计量加最近几根原始K线。
type TimeframeSummary struct {
	Bar          string          `json:"bar"`
	LastClose    float64         `json:"last_close"`
	ChangePct    *float64        `json:"change_pct"`
	RangePct     float64         `json:"range_pct"`
	AvgBody      float64         `json:"avg_body"`
	VolumeSum    float64         `json:"volume_sum"`
	CloseHistory []float64       `json:"close_history"`
	Recent       []market.Candle `json:"recent_candles"`
}

// Summarize uses the last window candles (all when window <= 0) and keeps
// history closes.
func Summarize(bar string, candles []market.Candle, window, history int) (TimeframeSummary, error) {
	if window > 0 && len(candles) > window {
		candles = candles[len(candles)-window:]
	}
	if len(candles) == 0 {
		return TimeframeSummary{}, fmt.Errorf("no candles available for %s", bar)
	}
	out := TimeframeSummary{
		Bar:          bar,
		LastClose:    candles[len(candles)-1].Close,
		CloseHistory: []float64{},
		Recent:       tailCandles(candles, recentCandles),
	}
	if len(candles) >= 2 {
		if prev := candles[len(candles)-2].Close; prev != 0 {
			out.ChangePct = ptr((out.LastClose - prev) / prev * 100)
		}
	}
	high, low := math.Inf(-1), math.Inf(1)
	body := 0.0
	for _, c := range candles {
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
		body += math.Abs(c.Close - c.Open)
		out.VolumeSum += c.Volume
	}
	if low != 0 {
		out.RangePct = (high - low) / low * 100
	}
	out.AvgBody = body / float64(len(candles))
	if history > 0 {
		closes := market.Closes(candles)
		if len(closes) > history {
			closes = closes[len(closes)-history:]
		}
		out.CloseHistory = closes
	}
	return out, nil
}

// Summaries fetches each bar and summarizes it with its configured window.
// history <= 0 keeps as many closes as the configured window, or 5 for bars
// without one.
func (b *Builder) Summaries(ctx context.Context, symbol string, bars []string, windows map[string]int, history int) ([]TimeframeSummary, error) {
	out := make([]TimeframeSummary, 0, len(bars))
	for _, bar := range bars {
		window, configured := windows[bar]
		if !configured || window <= 0 {
			window, configured = defaultSummaryWindow, false
		}
		candles, err := b.source.Candles(ctx, symbol, bar, window)
		if err != nil {
			return out, fmt.Errorf("summary %s %s: %w", symbol, bar, err)
		}
		h := history
		if h <= 0 {
			h = defaultCloseHistory
			if configured {
				h = window
			}
		}
		sum, err := Summarize(bar, candles, window, h)
		if err != nil {
			return out, err
		}
		out = append(out, sum)
	}
	return out, nil
}
