package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"okxagent/internal/market"
	"okxagent/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2/futures"
)

const (
	maxHistoryLimit   = 1500
	maxOIHistoryLimit = 500
)

// Source 基于 go-binance futures SDK 实现 market.Source，作为 OKX 之外的备用行情源。
type Source struct {
	cfg    Config
	client *futures.Client
	nowFn  func() time.Time
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyURL != "" {
		proxyURL, err := url.Parse(final.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Source{cfg: final, client: client, nowFn: time.Now}, nil
}

func (s *Source) Name() string { return "binance" }

func (s *Source) Candles(ctx context.Context, sym, bar string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	bsym, err := binanceSymbol(sym)
	if err != nil {
		return nil, err
	}
	interval := strings.ToLower(strings.TrimSpace(bar))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	kls, err := s.client.NewKlinesService().Symbol(bsym).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s %s: %w", bsym, interval, err)
	}
	nowMs := s.nowFn().UnixMilli()
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Confirmed: kl.CloseTime < nowMs,
		})
	}
	return out, nil
}

// Ticker combines 24h stats with the best bid/ask.
func (s *Source) Ticker(ctx context.Context, sym string) (market.Ticker, error) {
	bsym, err := binanceSymbol(sym)
	if err != nil {
		return market.Ticker{}, err
	}
	stats, err := s.client.NewListPriceChangeStatsService().Symbol(bsym).Do(ctx)
	if err != nil {
		return market.Ticker{}, fmt.Errorf("binance 24hr %s: %w", bsym, err)
	}
	var out market.Ticker
	found := false
	for _, st := range stats {
		if st == nil || !strings.EqualFold(st.Symbol, bsym) {
			continue
		}
		out = market.Ticker{
			Symbol:    sym,
			Last:      parseFloat(st.LastPrice),
			Open24h:   parseFloat(st.OpenPrice),
			High24h:   parseFloat(st.HighPrice),
			Low24h:    parseFloat(st.LowPrice),
			Volume24h: parseFloat(st.Volume),
			Time:      time.UnixMilli(st.CloseTime).UTC(),
		}
		found = true
		break
	}
	if !found {
		return market.Ticker{}, fmt.Errorf("binance ticker %s: not found", bsym)
	}
	books, err := s.client.NewListBookTickersService().Symbol(bsym).Do(ctx)
	if err == nil {
		for _, b := range books {
			if b != nil && strings.EqualFold(b.Symbol, bsym) {
				out.Bid = parseFloat(b.BidPrice)
				out.Ask = parseFloat(b.AskPrice)
				break
			}
		}
	}
	return out, nil
}

func (s *Source) OpenInterest(ctx context.Context, sym string) (market.OpenInterest, error) {
	bsym, err := binanceSymbol(sym)
	if err != nil {
		return market.OpenInterest{}, err
	}
	res, err := s.client.NewGetOpenInterestService().Symbol(bsym).Do(ctx)
	if err != nil {
		return market.OpenInterest{}, fmt.Errorf("binance open interest %s: %w", bsym, err)
	}
	if res == nil {
		return market.OpenInterest{}, fmt.Errorf("binance open interest %s: empty", bsym)
	}
	// Binance reports OI in base units; contracts and amount coincide.
	v := parseFloat(res.OpenInterest)
	return market.OpenInterest{
		Symbol:    sym,
		Contracts: v,
		Amount:    v,
		Time:      time.UnixMilli(res.Time).UTC(),
	}, nil
}

// OpenInterestHistory 获取 OI 历史（openInterestHist），按时间升序。
func (s *Source) OpenInterestHistory(ctx context.Context, sym, period string, limit int) ([]market.OpenInterest, error) {
	if limit <= 0 {
		limit = 30
	}
	if limit > maxOIHistoryLimit {
		limit = maxOIHistoryLimit
	}
	bsym, err := binanceSymbol(sym)
	if err != nil {
		return nil, err
	}
	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		return nil, fmt.Errorf("period is required")
	}
	stats, err := s.client.NewOpenInterestStatisticsService().Symbol(bsym).Period(period).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance oi history %s: %w", bsym, err)
	}
	out := make([]market.OpenInterest, 0, len(stats))
	for _, item := range stats {
		if item == nil {
			continue
		}
		v := parseFloat(item.SumOpenInterest)
		out = append(out, market.OpenInterest{
			Symbol:    sym,
			Contracts: v,
			Amount:    v,
			Time:      time.UnixMilli(item.Timestamp).UTC(),
		})
	}
	return out, nil
}

// FundingRate 获取最新资金费率（例如 0.0001 即 0.01%）。
func (s *Source) FundingRate(ctx context.Context, sym string) (market.FundingRate, error) {
	bsym, err := binanceSymbol(sym)
	if err != nil {
		return market.FundingRate{}, err
	}
	res, err := s.client.NewPremiumIndexService().Symbol(bsym).Do(ctx)
	if err != nil {
		return market.FundingRate{}, fmt.Errorf("binance premium index %s: %w", bsym, err)
	}
	for _, entry := range res {
		if entry == nil || !strings.EqualFold(entry.Symbol, bsym) {
			continue
		}
		return market.FundingRate{
			Symbol:      sym,
			Rate:        parseFloat(entry.LastFundingRate),
			NextFunding: time.UnixMilli(entry.NextFundingTime).UTC(),
		}, nil
	}
	return market.FundingRate{}, fmt.Errorf("funding rate not available for %s", sym)
}

func binanceSymbol(sym string) (string, error) {
	out := symbol.BinanceSymbol(sym)
	if out == "" {
		return "", fmt.Errorf("invalid symbol: %q", sym)
	}
	return out, nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
