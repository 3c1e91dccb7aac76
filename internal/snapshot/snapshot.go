package snapshot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"okxagent/internal/indicator"
	"okxagent/internal/logger"
	"okxagent/internal/market"
)

const (
	defaultIntradayBar = "3m"
	defaultSwingBar    = "4h"
	defaultKeep        = 10
	defaultSignalBar   = "1m"
	defaultSMAShort    = 20
	defaultSMALong     = 50
	// swing 至少保留 EMA50 的预热长度
	swingWarmup   = 50
	minSwingLimit = 100
)

// Options 控制快照使用的周期与序列长度。
type Options struct {
	IntradayBar string
	SwingBar    string
	// Keep is the tail length of every series in the snapshot.
	Keep int
	// OIHistoryPeriod/OIHistoryLimit are used when the source exposes OI history.
	OIHistoryPeriod string
	OIHistoryLimit  int
	// SignalBar/SMAShort/SMALong drive the SMA cross signal (default 1m, 20/50).
	SignalBar string
	SMAShort  int
	SMALong   int
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.IntradayBar) == "" {
		o.IntradayBar = defaultIntradayBar
	}
	if strings.TrimSpace(o.SwingBar) == "" {
		o.SwingBar = defaultSwingBar
	}
	if o.Keep <= 0 {
		o.Keep = defaultKeep
	}
	if o.OIHistoryPeriod == "" {
		o.OIHistoryPeriod = "5m"
	}
	if o.OIHistoryLimit <= 0 {
		o.OIHistoryLimit = 30
	}
	if strings.TrimSpace(o.SignalBar) == "" {
		o.SignalBar = defaultSignalBar
	}
	if o.SMAShort <= 0 {
		o.SMAShort = defaultSMAShort
	}
	if o.SMALong <= 0 {
		o.SMALong = defaultSMALong
	}
	return o
}

// IntradayLimit is max(keep*3, 60).
func (o Options) IntradayLimit() int {
	return maxInt(o.Keep*3, 60)
}

// SwingLimit is max(keep*2, keep+50, 100) so EMA50 and MACD are always warm.
func (o Options) SwingLimit() int {
	return maxInt(maxInt(o.Keep*2, o.Keep+swingWarmup), minSwingLimit)
}

// SignalLimit is long+2 candles, enough to compare the last two SMA points.
func (o Options) SignalLimit() int {
	return maxInt(o.SMAShort, o.SMALong) + 2
}

// IntradaySeries 日内周期的尾部序列（旧 → 新）。
type IntradaySeries struct {
	Bar    string    `json:"bar"`
	Prices []float64 `json:"prices"` // closes
	EMA20  []float64 `json:"ema20"`
	MACD   []float64 `json:"macd"`
	RSI7   []float64 `json:"rsi7"`
	RSI14  []float64 `json:"rsi14"`
}

// SwingContext 长周期背景。
type SwingContext struct {
	Bar           string    `json:"bar"`
	EMA20         *float64  `json:"ema20"`
	EMA50         *float64  `json:"ema50"`
	ATR3          *float64  `json:"atr3"`
	ATR14         *float64  `json:"atr14"`
	VolumeCurrent *float64  `json:"volume_current"`
	VolumeAvg     *float64  `json:"volume_avg"`
	MACD          []float64 `json:"macd"`
	RSI14         []float64 `json:"rsi14"`
}

// CrossSignal SMA 金叉/死叉信号。
type CrossSignal struct {
	Bar    string  `json:"bar"`
	Short  int     `json:"short"`
	Long   int     `json:"long"`
	Signal string  `json:"signal"`
	Price  float64 `json:"price"`
}

// PerpSnapshot is the per-symbol view handed to the prompt. It is rebuilt
// every cycle; nil pointers mean the value was unavailable.
type PerpSnapshot struct {
	Symbol       string          `json:"symbol"`
	Source       string          `json:"source"`
	GeneratedAt  time.Time       `json:"generated_at"`
	CurrentPrice float64         `json:"current_price"`
	Change24hPct float64         `json:"change_24h_pct"`
	EMA20        *float64        `json:"ema20"`
	EMA50        *float64        `json:"ema50"`
	MACD         *float64        `json:"macd"`
	RSI7         *float64        `json:"rsi7"`
	RSI14        *float64        `json:"rsi14"`
	OILatest     *float64        `json:"oi_latest"`
	OIAvg        *float64        `json:"oi_avg"`
	FundingRate  *float64        `json:"funding_rate"`
	SMACross     CrossSignal     `json:"sma_cross"`
	Intraday     IntradaySeries  `json:"intraday"`
	Swing        SwingContext    `json:"swing"`
	RawIntraday  []market.Candle `json:"raw_intraday"`
	RawSwing     []market.Candle `json:"raw_swing"`

	// full fetched history, used for charts
	IntradayHistory []market.Candle `json:"-"`
	SwingHistory    []market.Candle `json:"-"`
}

// Builder 拉取行情并计算指标。
type Builder struct {
	source market.Source
	opts   Options
	nowFn  func() time.Time
}

func NewBuilder(source market.Source, opts Options) *Builder {
	return &Builder{source: source, opts: opts.withDefaults(), nowFn: time.Now}
}

func (b *Builder) Options() Options { return b.opts }

// Source exposes the underlying market source (charts reuse its candles).
func (b *Builder) Source() market.Source { return b.source }

// Build fetches ticker and both timeframes; OI and funding failures are
// logged and leave the fields nil.
func (b *Builder) Build(ctx context.Context, symbol string) (PerpSnapshot, error) {
	if b.source == nil {
		return PerpSnapshot{}, fmt.Errorf("snapshot: market source is nil")
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return PerpSnapshot{}, fmt.Errorf("snapshot: symbol is required")
	}
	ticker, err := b.source.Ticker(ctx, symbol)
	if err != nil {
		return PerpSnapshot{}, fmt.Errorf("snapshot %s ticker: %w", symbol, err)
	}
	intraday, err := b.source.Candles(ctx, symbol, b.opts.IntradayBar, b.opts.IntradayLimit())
	if err != nil {
		return PerpSnapshot{}, fmt.Errorf("snapshot %s %s candles: %w", symbol, b.opts.IntradayBar, err)
	}
	if len(intraday) == 0 {
		return PerpSnapshot{}, fmt.Errorf("snapshot %s: no %s candles", symbol, b.opts.IntradayBar)
	}
	swing, err := b.source.Candles(ctx, symbol, b.opts.SwingBar, b.opts.SwingLimit())
	if err != nil {
		return PerpSnapshot{}, fmt.Errorf("snapshot %s %s candles: %w", symbol, b.opts.SwingBar, err)
	}

	snap := PerpSnapshot{
		Symbol:       symbol,
		Source:       b.source.Name(),
		GeneratedAt:  b.nowFn().UTC(),
		CurrentPrice: ticker.Last,
		Change24hPct: ticker.Change24hPct(),
	}
	b.fillIntraday(&snap, intraday)
	b.fillSwing(&snap, swing)
	b.fillCross(ctx, &snap)
	b.fillDerivatives(ctx, &snap)
	return snap, nil
}

// BuildAll builds snapshots one symbol at a time; failed symbols are logged
// and skipped. It errors only when every symbol failed.
func (b *Builder) BuildAll(ctx context.Context, symbols []string) ([]PerpSnapshot, error) {
	out := make([]PerpSnapshot, 0, len(symbols))
	var lastErr error
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		snap, err := b.Build(ctx, sym)
		if err != nil {
			logger.Warnf("快照构建失败 %s: %v", sym, err)
			lastErr = err
			continue
		}
		out = append(out, snap)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func (b *Builder) fillIntraday(snap *PerpSnapshot, candles []market.Candle) {
	keep := b.opts.Keep
	closes := market.Closes(candles)
	ema20 := indicator.EMA(closes, 20)
	macd := indicator.MACD(closes, 12, 26, 9)
	rsi7 := indicator.RSI(closes, 7)
	rsi14 := indicator.RSI(closes, 14)

	snap.EMA20 = indicator.LatestPtr(ema20)
	if len(closes) >= 50 {
		snap.EMA50 = indicator.LatestPtr(indicator.EMA(closes, 50))
	}
	snap.MACD = indicator.LatestPtr(macd.Line)
	snap.RSI7 = indicator.LatestPtr(rsi7)
	snap.RSI14 = indicator.LatestPtr(rsi14)

	snap.Intraday = IntradaySeries{
		Bar:    b.opts.IntradayBar,
		Prices: indicator.Tail(closes, keep),
		EMA20:  indicator.Tail(ema20, keep),
		MACD:   indicator.Tail(macd.Line, keep),
		RSI7:   indicator.Tail(rsi7, keep),
		RSI14:  indicator.Tail(rsi14, keep),
	}
	snap.RawIntraday = tailCandles(candles, keep)
	snap.IntradayHistory = candles
}

func (b *Builder) fillSwing(snap *PerpSnapshot, candles []market.Candle) {
	keep := b.opts.Keep
	snap.Swing = SwingContext{Bar: b.opts.SwingBar, MACD: []float64{}, RSI14: []float64{}}
	if len(candles) == 0 {
		return
	}
	closes := market.Closes(candles)
	volumes := market.Volumes(candles)
	macd := indicator.MACD(closes, 12, 26, 9)
	rsi14 := indicator.RSI(closes, 14)
	snap.Swing.EMA20 = indicator.LatestPtr(indicator.EMA(closes, 20))
	snap.Swing.EMA50 = indicator.LatestPtr(indicator.EMA(closes, 50))
	snap.Swing.ATR3 = indicator.LatestPtr(indicator.ATR(candles, 3))
	snap.Swing.ATR14 = indicator.LatestPtr(indicator.ATR(candles, 14))
	snap.Swing.VolumeCurrent = ptr(volumes[len(volumes)-1])
	snap.Swing.VolumeAvg = ptr(indicator.Mean(volumes))
	snap.Swing.MACD = indicator.Tail(macd.Line, keep)
	snap.Swing.RSI14 = indicator.Tail(rsi14, keep)
	snap.RawSwing = tailCandles(candles, keep)
	snap.SwingHistory = candles
}

// fillCross 单独拉取信号周期K线；失败时信号为 hold。
func (b *Builder) fillCross(ctx context.Context, snap *PerpSnapshot) {
	snap.SMACross = CrossSignal{
		Bar:    b.opts.SignalBar,
		Short:  b.opts.SMAShort,
		Long:   b.opts.SMALong,
		Signal: indicator.Hold,
	}
	candles, err := b.source.Candles(ctx, snap.Symbol, b.opts.SignalBar, b.opts.SignalLimit())
	if err != nil {
		logger.Warnf("SMA 信号K线获取失败 %s %s: %v", snap.Symbol, b.opts.SignalBar, err)
		return
	}
	if len(candles) == 0 {
		return
	}
	closes := market.Closes(candles)
	snap.SMACross.Signal = indicator.SMACross(closes, b.opts.SMAShort, b.opts.SMALong)
	snap.SMACross.Price = closes[len(closes)-1]
}

func (b *Builder) fillDerivatives(ctx context.Context, snap *PerpSnapshot) {
	oi, err := b.source.OpenInterest(ctx, snap.Symbol)
	if err != nil {
		logger.Warnf("open interest 获取失败 %s: %v", snap.Symbol, err)
	} else {
		latest := oi.Amount
		if latest == 0 {
			latest = oi.Contracts
		}
		snap.OILatest = ptr(latest)
		// 没有历史时用最新值作为均值
		snap.OIAvg = ptr(latest)
		if hist, ok := b.source.(market.OpenInterestHistorian); ok {
			points, err := hist.OpenInterestHistory(ctx, snap.Symbol, b.opts.OIHistoryPeriod, b.opts.OIHistoryLimit)
			if err != nil {
				logger.Debugf("open interest history %s: %v", snap.Symbol, err)
			} else if len(points) > 0 {
				vals := make([]float64, 0, len(points))
				for _, p := range points {
					vals = append(vals, p.Amount)
				}
				snap.OIAvg = ptr(indicator.Mean(vals))
			}
		}
	}
	fr, err := b.source.FundingRate(ctx, snap.Symbol)
	if err != nil {
		logger.Warnf("funding rate 获取失败 %s: %v", snap.Symbol, err)
		return
	}
	snap.FundingRate = &fr.Rate
}

func tailCandles(candles []market.Candle, n int) []market.Candle {
	if len(candles) <= n {
		out := make([]market.Candle, len(candles))
		copy(out, candles)
		return out
	}
	out := make([]market.Candle, n)
	copy(out, candles[len(candles)-n:])
	return out
}

func ptr(v float64) *float64 {
	r := v
	return &r
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
