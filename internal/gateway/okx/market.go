package okx

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"okxagent/internal/market"
	"okxagent/internal/pkg/convert"
	"okxagent/internal/pkg/symbol"
)

const maxCandleLimit = 300

type tickerRaw struct {
	InstID  string `json:"instId"`
	Last    string `json:"last"`
	BidPx   string `json:"bidPx"`
	AskPx   string `json:"askPx"`
	Open24h string `json:"open24h"`
	High24h string `json:"high24h"`
	Low24h  string `json:"low24h"`
	Vol24h  string `json:"vol24h"`
	TS      string `json:"ts"`
}

// Ticker 获取单个产品行情。
func (c *Client) Ticker(ctx context.Context, instID string) (market.Ticker, error) {
	var rows []tickerRaw
	if err := c.get(ctx, "/api/v5/market/ticker", url.Values{"instId": {instID}}, false, &rows); err != nil {
		return market.Ticker{}, err
	}
	if len(rows) == 0 {
		return market.Ticker{}, fmt.Errorf("okx ticker %s: empty data", instID)
	}
	r := rows[0]
	return market.Ticker{
		Symbol:    symbol.FromInstID(r.InstID),
		Last:      convert.ToFloat64(r.Last),
		Bid:       convert.ToFloat64(r.BidPx),
		Ask:       convert.ToFloat64(r.AskPx),
		Open24h:   convert.ToFloat64(r.Open24h),
		High24h:   convert.ToFloat64(r.High24h),
		Low24h:    convert.ToFloat64(r.Low24h),
		Volume24h: convert.ToFloat64(r.Vol24h),
		Time:      msTime(r.TS),
	}, nil
}

// Candles returns candles oldest-first; OKX answers newest-first.
func (c *Client) Candles(ctx context.Context, instID, bar string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxCandleLimit {
		limit = maxCandleLimit
	}
	q := url.Values{
		"instId": {instID},
		"bar":    {symbol.ToOKXBar(bar)},
		"limit":  {strconv.Itoa(limit)},
	}
	var rows [][]string
	if err := c.get(ctx, "/api/v5/market/candles", q, false, &rows); err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		ts, _ := strconv.ParseInt(row[0], 10, 64)
		candle := market.Candle{
			OpenTime: ts,
			Open:     convert.ToFloat64(row[1]),
			High:     convert.ToFloat64(row[2]),
			Low:      convert.ToFloat64(row[3]),
			Close:    convert.ToFloat64(row[4]),
			Volume:   convert.ToFloat64(row[5]),
		}
		if len(row) >= 9 {
			candle.Confirmed = row[8] == "1"
		}
		out = append(out, candle)
	}
	return market.Reverse(out), nil
}

// Instrument 查询产品规格（lotSz / ctVal 等）。
func (c *Client) Instrument(ctx context.Context, instType, instID string) (Instrument, error) {
	var rows []instrumentRaw
	q := url.Values{"instType": {instType}, "instId": {instID}}
	if err := c.get(ctx, "/api/v5/public/instruments", q, false, &rows); err != nil {
		return Instrument{}, err
	}
	if len(rows) == 0 {
		return Instrument{}, fmt.Errorf("okx instrument %s: not found", instID)
	}
	return rows[0].toInstrument(), nil
}

func (c *Client) OpenInterest(ctx context.Context, instID string) (market.OpenInterest, error) {
	var rows []struct {
		InstID string `json:"instId"`
		OI     string `json:"oi"`
		OICcy  string `json:"oiCcy"`
		TS     string `json:"ts"`
	}
	q := url.Values{"instType": {"SWAP"}, "instId": {instID}}
	if err := c.get(ctx, "/api/v5/public/open-interest", q, false, &rows); err != nil {
		return market.OpenInterest{}, err
	}
	if len(rows) == 0 {
		return market.OpenInterest{}, fmt.Errorf("okx open interest %s: empty data", instID)
	}
	r := rows[0]
	return market.OpenInterest{
		Symbol:    symbol.FromInstID(r.InstID),
		Contracts: convert.ToFloat64(r.OI),
		Amount:    convert.ToFloat64(r.OICcy),
		Time:      msTime(r.TS),
	}, nil
}

func (c *Client) FundingRate(ctx context.Context, instID string) (market.FundingRate, error) {
	var rows []struct {
		InstID          string `json:"instId"`
		FundingRate     string `json:"fundingRate"`
		NextFundingTime string `json:"nextFundingTime"`
		FundingTime     string `json:"fundingTime"`
	}
	if err := c.get(ctx, "/api/v5/public/funding-rate", url.Values{"instId": {instID}}, false, &rows); err != nil {
		return market.FundingRate{}, err
	}
	if len(rows) == 0 {
		return market.FundingRate{}, fmt.Errorf("okx funding rate %s: empty data", instID)
	}
	r := rows[0]
	next := r.NextFundingTime
	if next == "" {
		next = r.FundingTime
	}
	return market.FundingRate{
		Symbol:      symbol.FromInstID(r.InstID),
		Rate:        convert.ToFloat64(r.FundingRate),
		NextFunding: msTime(next),
	}, nil
}

func msTime(ms string) time.Time {
	v, err := strconv.ParseInt(ms, 10, 64)
	if err != nil || v <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(v).UTC()
}
