package okx

import (
	"context"

	"okxagent/internal/market"
	"okxagent/internal/pkg/symbol"
)

// Source adapts the REST client to market.Source using unified symbols.
type Source struct {
	client *Client
}

func NewSource(client *Client) *Source {
	return &Source{client: client}
}

func (s *Source) Name() string { return "okx" }

func (s *Source) Ticker(ctx context.Context, sym string) (market.Ticker, error) {
	t, err := s.client.Ticker(ctx, symbol.ToInstID(sym))
	if err != nil {
		return market.Ticker{}, err
	}
	t.Symbol = sym
	return t, nil
}

func (s *Source) Candles(ctx context.Context, sym, bar string, limit int) ([]market.Candle, error) {
	return s.client.Candles(ctx, symbol.ToInstID(sym), bar, limit)
}

func (s *Source) OpenInterest(ctx context.Context, sym string) (market.OpenInterest, error) {
	oi, err := s.client.OpenInterest(ctx, symbol.ToInstID(sym))
	if err != nil {
		return market.OpenInterest{}, err
	}
	oi.Symbol = sym
	return oi, nil
}

func (s *Source) FundingRate(ctx context.Context, sym string) (market.FundingRate, error) {
	fr, err := s.client.FundingRate(ctx, symbol.ToInstID(sym))
	if err != nil {
		return market.FundingRate{}, err
	}
	fr.Symbol = sym
	return fr, nil
}
