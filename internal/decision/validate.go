package decision

import (
	"fmt"
	"strings"

	"okxagent/internal/pkg/symbol"
)

// Validate 校验业务约束：币种在白名单内，开仓单必须带数量与止盈止损，
// 且止盈止损相对入场价方向正确。allowed 为空时不限制币种。
func (r Result) Validate(allowed []string) error {
	bases := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		if b := symbol.Base(a); b != "" {
			bases[b] = true
		}
	}
	for i, d := range r.Decisions {
		if err := d.validate(bases); err != nil {
			return fmt.Errorf("决策#%d: %w", i+1, err)
		}
	}
	if r.WakeTrigger != nil {
		if err := r.WakeTrigger.Validate(); err != nil {
			return fmt.Errorf("wake_trigger: %w", err)
		}
	}
	return nil
}

func (d Decision) validate(bases map[string]bool) error {
	if !d.Signal.Valid() {
		return fmt.Errorf("无效的 signal %q", d.Signal)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence 需在 [0,1] 内: %g", d.Confidence)
	}
	if d.Signal == SignalHold {
		return nil
	}
	coin := strings.ToUpper(strings.TrimSpace(d.Coin))
	if coin == "" {
		return fmt.Errorf("%s 缺少 coin", d.Signal)
	}
	if len(bases) > 0 && !bases[coin] {
		return fmt.Errorf("coin %s 不在允许列表内", coin)
	}
	if !d.Signal.IsEntry() {
		return nil
	}
	if d.Quantity <= 0 {
		return fmt.Errorf("quantity 必须大于 0")
	}
	if d.ProfitTarget <= 0 || d.StopLoss <= 0 {
		return fmt.Errorf("开仓需提供 profit_target 与 stop_loss")
	}
	if d.Leverage < 0 {
		return fmt.Errorf("leverage 不能为负")
	}
	entry := d.EntryPrice
	switch d.Signal {
	case SignalBuyToEnter:
		if entry > 0 && !(d.StopLoss < entry && entry < d.ProfitTarget) {
			return fmt.Errorf("多单需满足 stop_loss < entry_price < profit_target (%g/%g/%g)", d.StopLoss, entry, d.ProfitTarget)
		}
		if d.StopLoss >= d.ProfitTarget {
			return fmt.Errorf("多单 stop_loss 需低于 profit_target")
		}
	case SignalSellToEnter:
		if entry > 0 && !(d.ProfitTarget < entry && entry < d.StopLoss) {
			return fmt.Errorf("空单需满足 profit_target < entry_price < stop_loss (%g/%g/%g)", d.ProfitTarget, entry, d.StopLoss)
		}
		if d.StopLoss <= d.ProfitTarget {
			return fmt.Errorf("空单 stop_loss 需高于 profit_target")
		}
	}
	return nil
}

// Validate checks direction and a positive price.
func (w WakeTrigger) Validate() error {
	if strings.TrimSpace(w.Symbol) == "" {
		return fmt.Errorf("symbol 为空")
	}
	if w.Direction != "above" && w.Direction != "below" {
		return fmt.Errorf("direction 需为 above 或 below: %q", w.Direction)
	}
	if w.Price <= 0 {
		return fmt.Errorf("price 必须大于 0")
	}
	if w.TimeoutMinutes < 0 {
		return fmt.Errorf("timeout_minutes 不能为负")
	}
	return nil
}
