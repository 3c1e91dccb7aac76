package trade

import (
	"context"

	"okxagent/internal/gateway/okx"
	"okxagent/internal/market"
)

// ExchangeAPI 是执行器依赖的 OKX 私有/公共接口子集，*okx.Client 实现它。
type ExchangeAPI interface {
	Ticker(ctx context.Context, instID string) (market.Ticker, error)
	Instrument(ctx context.Context, instType, instID string) (okx.Instrument, error)
	Balance(ctx context.Context, ccy string) (okx.Balance, error)
	Positions(ctx context.Context, instType, instID string) ([]okx.Position, error)
	AccountConfig(ctx context.Context) (okx.AccountConfig, error)
	SetPositionMode(ctx context.Context, mode string) error
	SetLeverage(ctx context.Context, instID string, lever int, mgnMode, posSide string) error
	PlaceOrder(ctx context.Context, req okx.OrderRequest) (okx.OrderAck, error)
	PlaceAlgoOrder(ctx context.Context, req okx.AlgoOrderRequest) (okx.AlgoAck, error)
	CancelOrder(ctx context.Context, req okx.CancelRequest) (okx.OrderAck, error)
	CancelBatch(ctx context.Context, reqs []okx.CancelRequest) ([]okx.OrderAck, error)
	PendingOrders(ctx context.Context, instType, instID string) ([]okx.Order, error)
	OrderHistory(ctx context.Context, instType, instID string, limit int) ([]okx.Order, error)
}

var _ ExchangeAPI = (*okx.Client)(nil)
