package trade

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"okxagent/internal/gateway/okx"
	"okxagent/internal/logger"
	"okxagent/internal/pkg/symbol"

	"github.com/shopspring/decimal"
)

// SwapOrder 永续限价开仓请求，USDT 为保证金金额。
type SwapOrder struct {
	InstID     string  `json:"inst_id"`
	Side       string  `json:"side"`     // buy | sell
	PosSide    string  `json:"pos_side"` // long | short | net
	USDT       float64 `json:"usdt"`
	LimitPx    float64 `json:"limit_px"`
	TakeProfit float64 `json:"take_profit"`
	StopLoss   float64 `json:"stop_loss"`
	TdMode     string  `json:"td_mode"`
	Leverage   int     `json:"leverage"`
}

// OrderResult 下单结果摘要。
type OrderResult struct {
	InstID     string  `json:"inst_id"`
	Side       string  `json:"side"`
	PosSide    string  `json:"pos_side,omitempty"`
	TdMode     string  `json:"td_mode,omitempty"`
	Leverage   int     `json:"leverage,omitempty"`
	OrdID      string  `json:"ord_id,omitempty"`
	ClOrdID    string  `json:"cl_ord_id,omitempty"`
	Price      float64 `json:"price,omitempty"`
	Size       string  `json:"size"`
	TakeProfit float64 `json:"take_profit,omitempty"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	DryRun     bool    `json:"dry_run,omitempty"`
}

func (o *SwapOrder) normalize(defTdMode string, defLev int) error {
	o.InstID = symbol.ToInstID(o.InstID)
	o.Side = strings.ToLower(strings.TrimSpace(o.Side))
	o.PosSide = strings.ToLower(strings.TrimSpace(o.PosSide))
	o.TdMode = strings.ToLower(strings.TrimSpace(o.TdMode))
	if o.TdMode == "" {
		o.TdMode = defTdMode
	}
	if o.Leverage == 0 {
		o.Leverage = defLev
	}
	if !symbol.IsSwap(o.InstID) {
		return fmt.Errorf("仅支持永续合约, 当前: %s", o.InstID)
	}
	if o.Side != "buy" && o.Side != "sell" {
		return fmt.Errorf("side 需为 buy 或 sell: %q", o.Side)
	}
	switch o.PosSide {
	case "long", "short", "net":
	default:
		return fmt.Errorf("posSide 需为 long/short/net: %q", o.PosSide)
	}
	if o.USDT <= 0 || o.LimitPx <= 0 {
		return fmt.Errorf("下单金额与价格必须大于0")
	}
	if o.TakeProfit <= 0 || o.StopLoss <= 0 {
		return fmt.Errorf("止盈(take_profit)与止损(stop_loss)均为必填")
	}
	if o.Leverage <= 0 {
		return fmt.Errorf("杠杆必须大于0")
	}
	return nil
}

// PlaceSwapLimit 在永续合约上下限价单并附带市价止盈止损。
// 保证金 × 杠杆 / 限价 / ctVal 得到张数，按 lotSz 向下取整。
func (e *Executor) PlaceSwapLimit(ctx context.Context, o SwapOrder) (OrderResult, error) {
	if err := o.normalize(e.opts.TdMode, e.opts.DefaultLeverage); err != nil {
		return OrderResult{}, err
	}
	logger.Infof("PlaceSwapLimit %s side=%s posSide=%s usdt=%g px=%g tp=%g sl=%g td=%s lev=%d",
		o.InstID, o.Side, o.PosSide, o.USDT, o.LimitPx, o.TakeProfit, o.StopLoss, o.TdMode, o.Leverage)

	inst, err := e.api.Instrument(ctx, "SWAP", o.InstID)
	if err != nil {
		return OrderResult{}, fmt.Errorf("查询合约 %s 失败: %w", o.InstID, err)
	}
	if !inst.CtVal.IsPositive() {
		return OrderResult{}, fmt.Errorf("无效的 ctVal: %s", inst.CtVal)
	}
	contracts := decimal.NewFromFloat(o.USDT).
		Mul(decimal.NewFromInt(int64(o.Leverage))).
		Div(decimal.NewFromFloat(o.LimitPx)).
		Div(inst.CtVal)
	sz, err := QuantizeSize(contracts, inst.LotSz, inst.MinSz)
	if err != nil {
		return OrderResult{}, fmt.Errorf("%s: %w", o.InstID, err)
	}
	clOrdID := e.swapClOrdID(o)
	req := okx.OrderRequest{
		InstID:  o.InstID,
		TdMode:  o.TdMode,
		Side:    o.Side,
		PosSide: o.PosSide,
		OrdType: "limit",
		Px:      formatFloat(o.LimitPx),
		Sz:      sz,
		ClOrdID: clOrdID,
		AttachAlgoOrds: []okx.AttachedAlgo{{
			TpTriggerPx: formatFloat(o.TakeProfit),
			TpOrdPx:     "-1",
			SlTriggerPx: formatFloat(o.StopLoss),
			SlOrdPx:     "-1",
		}},
	}
	res := OrderResult{
		InstID: o.InstID, Side: o.Side, PosSide: o.PosSide, TdMode: o.TdMode, Leverage: o.Leverage,
		ClOrdID: clOrdID, Price: o.LimitPx, Size: sz, TakeProfit: o.TakeProfit, StopLoss: o.StopLoss,
	}
	entry := JournalEntry{TraceID: traceFrom(ctx), Kind: "swap_limit", InstID: o.InstID, Side: o.Side, PosSide: o.PosSide, ClOrdID: clOrdID, Request: req}
	if !e.opts.Enabled {
		res.DryRun = true
		entry.Status = StatusDryRun
		e.record(ctx, entry)
		logger.Infof("[dry-run] 永续限价单 %s %s %s sz=%s px=%g", o.InstID, o.Side, o.PosSide, sz, o.LimitPx)
		return res, nil
	}

	avail, err := e.usdtAvailable(ctx)
	if err != nil {
		return OrderResult{}, err
	}
	if avail < o.USDT {
		return OrderResult{}, fmt.Errorf("USDT余额不足, 可用 %g, 需要 %g", avail, o.USDT)
	}
	if err := e.ensurePositionMode(ctx, o.PosSide); err != nil {
		return OrderResult{}, err
	}
	levPosSide := ""
	if o.TdMode == "isolated" && o.PosSide != "net" {
		levPosSide = o.PosSide
	}
	if err := e.api.SetLeverage(ctx, o.InstID, o.Leverage, o.TdMode, levPosSide); err != nil {
		return OrderResult{}, fmt.Errorf("设置杠杆失败: %w", err)
	}

	ack, err := e.api.PlaceOrder(ctx, req)
	entry.Response, entry.OrdID, entry.Status, entry.Error = ack, ack.OrdID, statusOf(err), errString(err)
	e.record(ctx, entry)
	if err != nil {
		return OrderResult{}, fmt.Errorf("下单失败: %w", err)
	}
	res.OrdID = ack.OrdID
	logger.Infof("永续限价单已提交 %s ordId=%s clOrdId=%s", o.InstID, ack.OrdID, clOrdID)
	return res, nil
}

// ensurePositionMode 持仓模式需与 posSide 匹配：long/short 用双向持仓，net 用单向。
func (e *Executor) ensurePositionMode(ctx context.Context, posSide string) error {
	want := "long_short_mode"
	if posSide == "net" {
		want = "net_mode"
	}
	cfg, err := e.api.AccountConfig(ctx)
	if err != nil {
		logger.Warnf("查询账户配置失败，尝试直接切换持仓模式: %v", err)
	} else if cfg.PosMode == want {
		return nil
	}
	if err := e.api.SetPositionMode(ctx, want); err != nil {
		return fmt.Errorf("切换持仓模式失败: %w", err)
	}
	return nil
}

// ClosePosition 以 reduce-only 限价单全平指定方向的持仓。
func (e *Executor) ClosePosition(ctx context.Context, instID, posSide string, px float64) (OrderResult, error) {
	instID = symbol.ToInstID(instID)
	posSide = strings.ToLower(strings.TrimSpace(posSide))
	if !symbol.IsSwap(instID) {
		return OrderResult{}, fmt.Errorf("仅支持永续合约, 当前: %s", instID)
	}
	if posSide != "long" && posSide != "short" {
		return OrderResult{}, fmt.Errorf("posSide 需为 long 或 short: %q", posSide)
	}
	if px <= 0 {
		return OrderResult{}, fmt.Errorf("close_px 必须大于0")
	}
	positions, err := e.api.Positions(ctx, "SWAP", instID)
	if err != nil {
		return OrderResult{}, fmt.Errorf("查询持仓失败: %w", err)
	}
	var pos *okx.Position
	for i := range positions {
		if positions[i].Side() == posSide {
			pos = &positions[i]
			break
		}
	}
	if pos == nil {
		return OrderResult{}, fmt.Errorf("未找到 %s %s 持仓", instID, posSide)
	}
	size, err := decimal.NewFromString(pos.Pos)
	if err != nil || size.IsZero() {
		return OrderResult{}, fmt.Errorf("%s %s 持仓数量无效: %q", instID, posSide, pos.Pos)
	}
	inst, err := e.api.Instrument(ctx, "SWAP", instID)
	if err != nil {
		return OrderResult{}, fmt.Errorf("查询合约 %s 失败: %w", instID, err)
	}
	sz, err := QuantizeSize(size.Abs(), inst.LotSz, decimal.Zero)
	if err != nil {
		return OrderResult{}, fmt.Errorf("%s: %w", instID, err)
	}
	side := "sell"
	if posSide == "short" {
		side = "buy"
	}
	tdMode := pos.MgnMode
	if tdMode == "" {
		tdMode = e.opts.TdMode
	}
	req := okx.OrderRequest{
		InstID:     instID,
		TdMode:     tdMode,
		Side:       side,
		OrdType:    "limit",
		Px:         formatFloat(px),
		Sz:         sz,
		ReduceOnly: true,
		ClOrdID:    fmt.Sprintf("close%s%s%s", e.nowFn().Format("20060102"), posSide, e.hexFn()),
	}
	// 单向持仓下 posSide 为 net，不能带 long/short
	if pos.PosSide == "long" || pos.PosSide == "short" {
		req.PosSide = posSide
	}
	res := OrderResult{InstID: instID, Side: side, PosSide: posSide, TdMode: tdMode, ClOrdID: req.ClOrdID, Price: px, Size: sz}
	entry := JournalEntry{TraceID: traceFrom(ctx), Kind: "close", InstID: instID, Side: side, PosSide: posSide, ClOrdID: req.ClOrdID, Request: req}
	if !e.opts.Enabled {
		res.DryRun = true
		entry.Status = StatusDryRun
		e.record(ctx, entry)
		logger.Infof("[dry-run] 平仓 %s %s sz=%s px=%g", instID, posSide, sz, px)
		return res, nil
	}
	ack, err := e.api.PlaceOrder(ctx, req)
	entry.Response, entry.OrdID, entry.Status, entry.Error = ack, ack.OrdID, statusOf(err), errString(err)
	e.record(ctx, entry)
	if err != nil {
		return OrderResult{}, fmt.Errorf("平仓下单失败: %w", err)
	}
	res.OrdID = ack.OrdID
	logger.Infof("平仓单已提交 %s %s ordId=%s", instID, posSide, ack.OrdID)
	return res, nil
}

// QuantizeSize rounds size down to a multiple of lot and formats it with the
// lot's precision. A result of zero or below minSz is an error.
func QuantizeSize(size, lot, minSz decimal.Decimal) (string, error) {
	if !lot.IsPositive() {
		return "", fmt.Errorf("无效的 lotSz: %s", lot)
	}
	multiples := size.Div(lot).Floor()
	q := multiples.Mul(lot)
	if !q.IsPositive() {
		return "", fmt.Errorf("订单数量过小，低于最小下单手数 (size=%s lotSz=%s)", size, lot)
	}
	if minSz.IsPositive() && q.LessThan(minSz) {
		return "", fmt.Errorf("订单数量 %s 低于 minSz %s", q, minSz)
	}
	precision := int32(0)
	if exp := lot.Exponent(); exp < 0 {
		precision = -exp
	}
	return q.StringFixed(precision), nil
}

// swapClOrdID: 日期 + b|s + l|s|n + 币种 + 保证金整数 + 杠杆 + 4 位随机，仅字母数字且不超过 32 位。
func (e *Executor) swapClOrdID(o SwapOrder) string {
	var b strings.Builder
	b.WriteString(e.nowFn().Format("20060102"))
	b.WriteString(o.Side[:1])
	b.WriteString(o.PosSide[:1])
	b.WriteString(symbol.Base(o.InstID))
	b.WriteString(strconv.Itoa(int(o.USDT)))
	b.WriteString(strconv.Itoa(o.Leverage))
	b.WriteString(e.hexFn())
	return alnum(b.String(), 32)
}

func alnum(s string, max int) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s) && len(out) < max; i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			out = append(out, c)
		}
	}
	return string(out)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
