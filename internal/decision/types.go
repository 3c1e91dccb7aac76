package decision

import (
	"fmt"
	"strings"
)

// Decision 模型针对单个币种给出的决策。
type Decision struct {
	Signal                Signal  `json:"signal"`
	Coin                  string  `json:"coin,omitempty"`
	Quantity              float64 `json:"quantity,omitempty"`
	Leverage              int     `json:"leverage,omitempty"`
	EntryPrice            float64 `json:"entry_price,omitempty"`
	ProfitTarget          float64 `json:"profit_target,omitempty"`
	StopLoss              float64 `json:"stop_loss,omitempty"`
	InvalidationCondition string  `json:"invalidation_condition,omitempty"`
	Confidence            float64 `json:"confidence,omitempty"`
	RiskUSD               float64 `json:"risk_usd,omitempty"`
	Justification         string  `json:"justification,omitempty"`
}

// WakeTrigger asks the loop to start the next cycle early once price crosses.
type WakeTrigger struct {
	Symbol         string  `json:"symbol"`
	Direction      string  `json:"direction"`
	Price          float64 `json:"price"`
	TimeoutMinutes int     `json:"timeout_minutes,omitempty"`
}

// Result 一次模型调用解析后的结果。
type Result struct {
	Decisions        []Decision   `json:"decisions"`
	ActionSummary    string       `json:"action_summary,omitempty"`
	ReasoningSummary string       `json:"reasoning_summary,omitempty"`
	WakeTrigger      *WakeTrigger `json:"wake_trigger,omitempty"`

	RawOutput string `json:"-"`
	RawJSON   string `json:"-"`
}

// Actionable returns decisions other than hold.
func (r Result) Actionable() []Decision {
	out := make([]Decision, 0, len(r.Decisions))
	for _, d := range r.Decisions {
		if d.Signal != SignalHold {
			out = append(out, d)
		}
	}
	return out
}

func (d Decision) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", d.Signal, d.Coin)
	if d.Signal.IsEntry() {
		fmt.Fprintf(&b, " qty=%g lev=%dx entry=%g tp=%g sl=%g conf=%.2f",
			d.Quantity, d.Leverage, d.EntryPrice, d.ProfitTarget, d.StopLoss, d.Confidence)
	}
	return b.String()
}
