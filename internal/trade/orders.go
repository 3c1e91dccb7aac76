package trade

import (
	"context"
	"fmt"
	"strings"

	"okxagent/internal/gateway/okx"
	"okxagent/internal/logger"
	"okxagent/internal/pkg/symbol"

	"github.com/shopspring/decimal"
)

func instType(instID string) string {
	if symbol.IsSwap(instID) {
		return "SWAP"
	}
	return "SPOT"
}

func (e *Executor) send(ctx context.Context, kind string, req okx.OrderRequest) (OrderResult, error) {
	res := OrderResult{InstID: req.InstID, Side: req.Side, PosSide: req.PosSide, TdMode: req.TdMode, ClOrdID: req.ClOrdID, Size: req.Sz}
	if req.Px != "" {
		res.Price, _ = decimal.RequireFromString(req.Px).Float64()
	}
	entry := JournalEntry{TraceID: traceFrom(ctx), Kind: kind, InstID: req.InstID, Side: req.Side, PosSide: req.PosSide, ClOrdID: req.ClOrdID, Request: req}
	if !e.opts.Enabled {
		res.DryRun = true
		entry.Status = StatusDryRun
		e.record(ctx, entry)
		logger.Infof("[dry-run] %s %s %s sz=%s px=%s", kind, req.InstID, req.Side, req.Sz, req.Px)
		return res, nil
	}
	ack, err := e.api.PlaceOrder(ctx, req)
	entry.Response, entry.OrdID, entry.Status, entry.Error = ack, ack.OrdID, statusOf(err), errString(err)
	e.record(ctx, entry)
	if err != nil {
		return OrderResult{}, fmt.Errorf("%s 下单失败: %w", kind, err)
	}
	res.OrdID = ack.OrdID
	logger.Infof("%s 已提交 %s ordId=%s", kind, req.InstID, ack.OrdID)
	return res, nil
}

// MarketBuySpot 以 USDT 金额市价买入现货，单笔受 SpotBuyCapUSDT 限制。
func (e *Executor) MarketBuySpot(ctx context.Context, instID string, usdt float64) (OrderResult, error) {
	instID = spotInstID(instID)
	if usdt <= 0 {
		return OrderResult{}, fmt.Errorf("买入金额必须大于0: %g", usdt)
	}
	if usdt > e.opts.SpotBuyCapUSDT {
		return OrderResult{}, fmt.Errorf("买入金额超过限制 %g USDT: %g", e.opts.SpotBuyCapUSDT, usdt)
	}
	if e.opts.Enabled {
		avail, err := e.usdtAvailable(ctx)
		if err != nil {
			return OrderResult{}, err
		}
		if avail < usdt {
			return OrderResult{}, fmt.Errorf("USDT余额不足: 可用=%g, 需要=%g", avail, usdt)
		}
		if avail < e.opts.MinBalanceUSDT {
			return OrderResult{}, fmt.Errorf("USDT余额低于最小要求 %g USDT", e.opts.MinBalanceUSDT)
		}
	}
	return e.send(ctx, "spot_buy", okx.OrderRequest{
		InstID:  instID,
		TdMode:  "cash",
		Side:    "buy",
		OrdType: "market",
		Sz:      formatFloat(usdt),
		TgtCcy:  "quote_ccy",
		ClOrdID: "buy" + e.hexFn() + e.hexFn() + e.hexFn(),
	})
}

// MarketSell 市价卖出基础币数量。
func (e *Executor) MarketSell(ctx context.Context, instID string, amount float64) (OrderResult, error) {
	instID = spotInstID(instID)
	if amount <= 0 {
		return OrderResult{}, fmt.Errorf("卖出数量必须大于0: %g", amount)
	}
	base := symbol.Base(instID)
	if e.opts.Enabled {
		bal, err := e.api.Balance(ctx, base)
		if err != nil {
			return OrderResult{}, fmt.Errorf("查询 %s 余额失败: %w", base, err)
		}
		if avail := bal.Available(base).InexactFloat64(); avail < amount {
			return OrderResult{}, fmt.Errorf("%s余额不足: 可用=%g, 需要=%g", base, avail, amount)
		}
	}
	return e.send(ctx, "spot_sell", okx.OrderRequest{
		InstID:  instID,
		TdMode:  "cash",
		Side:    "sell",
		OrdType: "market",
		Sz:      formatFloat(amount),
		ClOrdID: "sell" + e.hexFn() + e.hexFn() + e.hexFn(),
	})
}

// LimitOrder 普通限价单；tdMode 为空时现货用 cash，合约用配置的保证金模式。
func (e *Executor) LimitOrder(ctx context.Context, instID, side string, px, size float64, tdMode string) (OrderResult, error) {
	instID = symbol.ToInstID(instID)
	side = strings.ToLower(strings.TrimSpace(side))
	if side != "buy" && side != "sell" {
		return OrderResult{}, fmt.Errorf("无效的买卖方向: %s, 必须是 buy 或 sell", side)
	}
	if px <= 0 || size <= 0 {
		return OrderResult{}, fmt.Errorf("价格和数量必须大于0: price=%g, size=%g", px, size)
	}
	if tdMode == "" {
		tdMode = "cash"
		if instType(instID) == "SWAP" {
			tdMode = e.opts.TdMode
		}
	}
	return e.send(ctx, "limit", okx.OrderRequest{
		InstID:  instID,
		TdMode:  tdMode,
		Side:    side,
		OrdType: "limit",
		Px:      formatFloat(px),
		Sz:      formatFloat(size),
		ClOrdID: side + "limit" + e.hexFn() + e.hexFn() + e.hexFn(),
	})
}

// PlaceTPSLMarket 对已有持仓挂条件单，止盈止损触发后市价成交。
// 两个价格都给出时使用 oco。
func (e *Executor) PlaceTPSLMarket(ctx context.Context, instID, side, posSide string, size, tp, sl float64) (okx.AlgoAck, error) {
	instID = symbol.ToInstID(instID)
	side = strings.ToLower(strings.TrimSpace(side))
	if side != "buy" && side != "sell" {
		return okx.AlgoAck{}, fmt.Errorf("side 需为 buy 或 sell: %q", side)
	}
	if size <= 0 {
		return okx.AlgoAck{}, fmt.Errorf("数量必须大于0")
	}
	if tp <= 0 && sl <= 0 {
		return okx.AlgoAck{}, fmt.Errorf("至少需要设置止盈价格或止损价格")
	}
	req := okx.AlgoOrderRequest{
		InstID:     instID,
		TdMode:     e.opts.TdMode,
		Side:       side,
		PosSide:    strings.ToLower(strings.TrimSpace(posSide)),
		OrdType:    "conditional",
		Sz:         formatFloat(size),
		ReduceOnly: instType(instID) == "SWAP",
	}
	if instType(instID) == "SPOT" {
		req.TdMode = "cash"
	}
	if tp > 0 {
		req.TpTriggerPx, req.TpOrdPx = formatFloat(tp), "-1"
	}
	if sl > 0 {
		req.SlTriggerPx, req.SlOrdPx = formatFloat(sl), "-1"
	}
	if tp > 0 && sl > 0 {
		req.OrdType = "oco"
	}
	entry := JournalEntry{TraceID: traceFrom(ctx), Kind: "tpsl", InstID: instID, Side: side, PosSide: req.PosSide, Request: req}
	if !e.opts.Enabled {
		entry.Status = StatusDryRun
		e.record(ctx, entry)
		logger.Infof("[dry-run] 止盈止损 %s %s tp=%g sl=%g", instID, side, tp, sl)
		return okx.AlgoAck{}, nil
	}
	ack, err := e.api.PlaceAlgoOrder(ctx, req)
	entry.Response, entry.OrdID, entry.Status, entry.Error = ack, ack.AlgoID, statusOf(err), errString(err)
	e.record(ctx, entry)
	if err != nil {
		return okx.AlgoAck{}, fmt.Errorf("止盈止损下单失败: %w", err)
	}
	return ack, nil
}

// Cancel 撤销单个订单，ordID 与 clOrdID 至少提供一个。
func (e *Executor) Cancel(ctx context.Context, instID, ordID, clOrdID string) (okx.OrderAck, error) {
	if ordID == "" && clOrdID == "" {
		return okx.OrderAck{}, fmt.Errorf("必须提供 order_id 或 client_order_id 之一")
	}
	req := okx.CancelRequest{InstID: symbol.ToInstID(instID), OrdID: ordID, ClOrdID: clOrdID}
	entry := JournalEntry{TraceID: traceFrom(ctx), Kind: "cancel", InstID: req.InstID, OrdID: ordID, ClOrdID: clOrdID, Request: req}
	if !e.opts.Enabled {
		entry.Status = StatusDryRun
		e.record(ctx, entry)
		logger.Infof("[dry-run] 撤单 %s ordId=%s clOrdId=%s", req.InstID, ordID, clOrdID)
		return okx.OrderAck{OrdID: ordID, ClOrdID: clOrdID, SMsg: StatusDryRun}, nil
	}
	ack, err := e.api.CancelOrder(ctx, req)
	entry.Response, entry.Status, entry.Error = ack, statusOf(err), errString(err)
	e.record(ctx, entry)
	if err != nil {
		return okx.OrderAck{}, fmt.Errorf("撤单失败: %w", err)
	}
	return ack, nil
}

// CancelAll 撤销挂单；instID 为空时撤销全部永续与现货挂单。
func (e *Executor) CancelAll(ctx context.Context, instID string) ([]okx.OrderAck, error) {
	var pending []okx.Order
	if instID != "" {
		instID = symbol.ToInstID(instID)
		rows, err := e.api.PendingOrders(ctx, instType(instID), instID)
		if err != nil {
			return nil, fmt.Errorf("查询挂单失败: %w", err)
		}
		pending = rows
	} else {
		for _, t := range []string{"SWAP", "SPOT"} {
			rows, err := e.api.PendingOrders(ctx, t, "")
			if err != nil {
				return nil, fmt.Errorf("查询 %s 挂单失败: %w", t, err)
			}
			pending = append(pending, rows...)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}
	reqs := make([]okx.CancelRequest, 0, len(pending))
	for _, o := range pending {
		reqs = append(reqs, okx.CancelRequest{InstID: o.InstID, OrdID: o.OrdID})
	}
	entry := JournalEntry{TraceID: traceFrom(ctx), Kind: "cancel", InstID: instID, Request: reqs}
	if !e.opts.Enabled {
		// 只读查询照常执行，撤单请求不发出
		entry.Status = StatusDryRun
		e.record(ctx, entry)
		acks := make([]okx.OrderAck, 0, len(pending))
		for _, o := range pending {
			acks = append(acks, okx.OrderAck{OrdID: o.OrdID, ClOrdID: o.ClOrdID, SMsg: StatusDryRun})
		}
		logger.Infof("[dry-run] 将撤销 %d 个挂单", len(acks))
		return acks, nil
	}
	acks, err := e.api.CancelBatch(ctx, reqs)
	entry.Response, entry.Status, entry.Error = acks, statusOf(err), errString(err)
	e.record(ctx, entry)
	if err != nil {
		return acks, fmt.Errorf("批量撤单失败: %w", err)
	}
	logger.Infof("已撤销 %d 个挂单", len(acks))
	return acks, nil
}

// History 最近 7 天订单；instID 为空时查询永续合约。
func (e *Executor) History(ctx context.Context, instID string, limit int) ([]okx.Order, error) {
	t := "SWAP"
	if instID != "" {
		instID = symbol.ToInstID(instID)
		t = instType(instID)
	}
	orders, err := e.api.OrderHistory(ctx, t, instID, limit)
	if err != nil {
		return nil, fmt.Errorf("查询订单历史失败: %w", err)
	}
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

// spotInstID converts BTC/USDT or BTC-USDT-SWAP to the spot pair BTC-USDT.
func spotInstID(raw string) string {
	sym := symbol.Parse(raw)
	if sym.Base == "" || sym.Quote == "" {
		return strings.ToUpper(strings.TrimSpace(raw))
	}
	return sym.Base + "-" + sym.Quote
}
