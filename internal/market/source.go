package market

import (
	"context"
	"time"
)

// Ticker 最新成交价与 24h 统计。
type Ticker struct {
	Symbol    string    `json:"symbol"`
	Last      float64   `json:"last"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Open24h   float64   `json:"open_24h"`
	High24h   float64   `json:"high_24h"`
	Low24h    float64   `json:"low_24h"`
	Volume24h float64   `json:"volume_24h"`
	Time      time.Time `json:"time"`
}

// Change24hPct is the percentage change against the 24h open.
func (t Ticker) Change24hPct() float64 {
	if t.Open24h == 0 {
		return 0
	}
	return (t.Last - t.Open24h) / t.Open24h * 100
}

type OpenInterest struct {
	Symbol    string    `json:"symbol"`
	Contracts float64   `json:"contracts"`
	Amount    float64   `json:"amount"` // in base currency
	Time      time.Time `json:"time"`
}

type FundingRate struct {
	Symbol      string    `json:"symbol"`
	Rate        float64   `json:"rate"`
	NextFunding time.Time `json:"next_funding"`
}

// Tick is a streamed last-price update.
type Tick struct {
	Symbol string    `json:"symbol"`
	Last   float64   `json:"last"`
	Time   time.Time `json:"time"`
}

// Source 公共行情接口，symbol 使用统一格式（BTC/USDT:USDT）。
type Source interface {
	Name() string
	Ticker(ctx context.Context, symbol string) (Ticker, error)
	// Candles returns up to limit candles in ascending time order.
	Candles(ctx context.Context, symbol, bar string, limit int) ([]Candle, error)
	OpenInterest(ctx context.Context, symbol string) (OpenInterest, error)
	FundingRate(ctx context.Context, symbol string) (FundingRate, error)
}

// OpenInterestHistorian is implemented by sources that expose OI history;
// snapshot uses it for the open-interest average.
type OpenInterestHistorian interface {
	OpenInterestHistory(ctx context.Context, symbol, period string, limit int) ([]OpenInterest, error)
}
