package gateway

import (
	"fmt"
	"strings"

	"okxagent/internal/config"
	"okxagent/internal/gateway/binance"
	"okxagent/internal/gateway/okx"
	"okxagent/internal/market"
)

// NewSourceFromConfig 选择行情源；okx 复用交易客户端，binance 走 go-binance 期货接口。
func NewSourceFromConfig(cfg *config.Config, client *okx.Client) (market.Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Market.Source)) {
	case "", "okx":
		if client == nil {
			return nil, fmt.Errorf("okx market source requires a client")
		}
		return okx.NewSource(client), nil
	case "binance", "binance-futures":
		return binance.New(binance.Config{
			RESTBaseURL: cfg.Market.BinanceBaseURL,
			HTTPTimeout: cfg.OKX.Timeout(),
			ProxyURL:    cfg.OKX.Proxy,
		})
	default:
		return nil, fmt.Errorf("unsupported market source: %s", cfg.Market.Source)
	}
}
