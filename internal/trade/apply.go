package trade

import (
	"context"
	"errors"
	"fmt"
	"math"

	"okxagent/internal/decision"
	"okxagent/internal/logger"
	"okxagent/internal/pkg/symbol"
	"okxagent/internal/snapshot"
)

// Action 单条决策的执行结果。
type Action struct {
	Decision decision.Decision `json:"decision"`
	InstID   string            `json:"inst_id,omitempty"`
	Kind     string            `json:"kind"` // open | close | hold | skip
	Margin   float64           `json:"margin_usdt,omitempty"`
	Orders   []OrderResult     `json:"orders,omitempty"`
	Skipped  string            `json:"skipped,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Apply 把模型决策映射为订单：开仓走 PlaceSwapLimit，close 对该币所有方向
// 的持仓按最新价挂平仓单，hold 不动。单条失败不影响其它决策，错误汇总返回。
func (e *Executor) Apply(ctx context.Context, res decision.Result, snaps []snapshot.PerpSnapshot) ([]Action, error) {
	prices := make(map[string]snapshot.PerpSnapshot, len(snaps))
	for _, s := range snaps {
		prices[symbol.Base(s.Symbol)] = s
	}
	actions := make([]Action, 0, len(res.Decisions))
	budget := &marginBudget{}
	var errs []error
	for i, d := range res.Decisions {
		act := Action{Decision: d, Kind: "hold"}
		if d.Signal == decision.SignalHold {
			actions = append(actions, act)
			continue
		}
		base := symbol.Base(d.Coin)
		snap, ok := prices[base]
		act.InstID = base + "-USDT-SWAP"
		if ok {
			act.InstID = symbol.ToInstID(snap.Symbol)
		}
		var err error
		switch {
		case d.Signal.IsEntry():
			act.Kind = "open"
			if d.Confidence < e.opts.MinConfidence {
				act.Kind = "skip"
				act.Skipped = fmt.Sprintf("confidence %.2f < %.2f", d.Confidence, e.opts.MinConfidence)
				logger.Infof("跳过 %s: %s", d, act.Skipped)
				break
			}
			err = e.applyEntry(ctx, d, snap, &act, budget)
		case d.Signal == decision.SignalClose:
			act.Kind = "close"
			err = e.applyClose(ctx, snap, &act)
		}
		if err != nil {
			act.Error = err.Error()
			errs = append(errs, fmt.Errorf("决策#%d %s: %w", i+1, d.Signal, err))
			logger.Errorf("执行决策失败 %s: %v", d, err)
		}
		actions = append(actions, act)
	}
	return actions, errors.Join(errs...)
}

// marginBudget 本轮可用保证金：可用 USDT 减去 min_balance_usdt，开仓后扣减。
type marginBudget struct {
	loaded bool
	left   float64
}

func (e *Executor) loadBudget(ctx context.Context, b *marginBudget) error {
	if b.loaded {
		return nil
	}
	avail, err := e.usdtAvailable(ctx)
	if err != nil {
		return err
	}
	b.left = avail - e.opts.MinBalanceUSDT
	b.loaded = true
	return nil
}

func (e *Executor) applyEntry(ctx context.Context, d decision.Decision, snap snapshot.PerpSnapshot, act *Action, budget *marginBudget) error {
	entry := d.EntryPrice
	if entry <= 0 {
		entry = snap.CurrentPrice
	}
	if entry <= 0 {
		return fmt.Errorf("缺少入场价且无最新价")
	}
	lev := d.Leverage
	if lev <= 0 {
		lev = e.opts.DefaultLeverage
	}
	if lev > e.opts.MaxLeverage {
		logger.Warnf("%s 杠杆 %dx 超过上限，按 %dx 处理", d.Coin, lev, e.opts.MaxLeverage)
		lev = e.opts.MaxLeverage
	}
	margin := d.Quantity * entry / float64(lev)
	if e.opts.MaxMarginUSDT > 0 && margin > e.opts.MaxMarginUSDT {
		logger.Warnf("%s 保证金 %.2f 超过上限，按 %.2f 处理", d.Coin, margin, e.opts.MaxMarginUSDT)
		margin = e.opts.MaxMarginUSDT
	}
	// dry run 不读余额
	if e.opts.Enabled {
		if err := e.loadBudget(ctx, budget); err != nil {
			return err
		}
		if margin > budget.left {
			logger.Warnf("%s 保证金 %.2f 超过可用额度 %.2f（保留 %.2f USDT）", d.Coin, margin, budget.left, e.opts.MinBalanceUSDT)
			margin = budget.left
		}
	}
	margin = math.Floor(margin*100) / 100
	if margin <= 0 {
		act.Kind = "skip"
		act.Skipped = fmt.Sprintf("可用保证金不足（需保留 %.2f USDT）", e.opts.MinBalanceUSDT)
		logger.Infof("跳过 %s: %s", d, act.Skipped)
		return nil
	}
	act.Margin = margin
	side := "buy"
	if d.Signal == decision.SignalSellToEnter {
		side = "sell"
	}
	res, err := e.PlaceSwapLimit(ctx, SwapOrder{
		InstID:     act.InstID,
		Side:       side,
		PosSide:    d.Signal.PosSide(),
		USDT:       margin,
		LimitPx:    entry,
		TakeProfit: d.ProfitTarget,
		StopLoss:   d.StopLoss,
		Leverage:   lev,
	})
	if err != nil {
		return err
	}
	if e.opts.Enabled {
		budget.left -= margin
	}
	act.Orders = append(act.Orders, res)
	return nil
}

func (e *Executor) applyClose(ctx context.Context, snap snapshot.PerpSnapshot, act *Action) error {
	if snap.CurrentPrice <= 0 {
		return fmt.Errorf("%s 无最新价，无法平仓", act.InstID)
	}
	positions, err := e.api.Positions(ctx, "SWAP", act.InstID)
	if err != nil {
		return fmt.Errorf("查询持仓失败: %w", err)
	}
	if len(positions) == 0 {
		act.Kind = "skip"
		act.Skipped = "无持仓"
		return nil
	}
	var errs []error
	seen := map[string]bool{}
	for _, p := range positions {
		side := p.Side()
		if seen[side] {
			continue
		}
		seen[side] = true
		res, err := e.ClosePosition(ctx, act.InstID, side, snap.CurrentPrice)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		act.Orders = append(act.Orders, res)
	}
	return errors.Join(errs...)
}
