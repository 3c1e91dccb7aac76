package trade

import (
	"context"
	"time"
)

// 订单日志状态
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
	StatusDryRun = "dry_run"
)

// JournalEntry 记录一次下单尝试（请求、响应与结果）。
type JournalEntry struct {
	TraceID  string
	Kind     string // swap_limit | close | spot_buy | spot_sell | limit | tpsl | cancel
	InstID   string
	Side     string
	PosSide  string
	ClOrdID  string
	OrdID    string
	Status   string
	Request  any
	Response any
	Error    string
	At       time.Time
}

// Journal persists order attempts; implementations must be safe to call with
// a nil receiver check done by the executor.
type Journal interface {
	Record(ctx context.Context, e JournalEntry) error
}
