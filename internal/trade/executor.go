package trade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"okxagent/internal/config"
	"okxagent/internal/logger"

	"github.com/google/uuid"
)

// ErrDryRun 表示交易开关关闭，订单只被记录。
var ErrDryRun = errors.New("trading disabled (dry run)")

// Options 风控与下单参数。
type Options struct {
	Enabled         bool
	TdMode          string
	DefaultLeverage int
	MaxLeverage     int
	MaxMarginUSDT   float64
	MinConfidence   float64
	SpotBuyCapUSDT  float64
	MinBalanceUSDT  float64
}

// OptionsFromConfig maps the trading section onto executor options.
func OptionsFromConfig(c config.TradingConfig) Options {
	return Options{
		Enabled:         c.Enabled,
		TdMode:          c.TdMode,
		DefaultLeverage: c.DefaultLeverage,
		MaxLeverage:     c.MaxLeverage,
		MaxMarginUSDT:   c.MaxMarginUSDT,
		MinConfidence:   c.MinConfidence,
		SpotBuyCapUSDT:  c.SpotBuyCapUSDT,
		MinBalanceUSDT:  c.MinBalanceUSDT,
	}
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.TdMode) == "" {
		o.TdMode = "isolated"
	}
	if o.DefaultLeverage <= 0 {
		o.DefaultLeverage = 1
	}
	if o.MaxLeverage <= 0 {
		o.MaxLeverage = 10
	}
	if o.SpotBuyCapUSDT <= 0 {
		o.SpotBuyCapUSDT = 20
	}
	if o.MinBalanceUSDT <= 0 {
		o.MinBalanceUSDT = 5
	}
	return o
}

// Executor 把决策与手工指令转换为 OKX 订单。
type Executor struct {
	api     ExchangeAPI
	journal Journal
	opts    Options

	nowFn func() time.Time
	hexFn func() string
}

func NewExecutor(api ExchangeAPI, journal Journal, opts Options) *Executor {
	return &Executor{
		api:     api,
		journal: journal,
		opts:    opts.withDefaults(),
		nowFn:   time.Now,
		hexFn:   randomHex4,
	}
}

func (e *Executor) Options() Options { return e.opts }

// Enabled reports whether orders are actually sent.
func (e *Executor) Enabled() bool { return e.opts.Enabled }

func randomHex4() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
}

func (e *Executor) record(ctx context.Context, entry JournalEntry) {
	if e.journal == nil {
		return
	}
	if entry.At.IsZero() {
		entry.At = e.nowFn()
	}
	if err := e.journal.Record(ctx, entry); err != nil {
		logger.Warnf("订单日志写入失败 %s %s: %v", entry.Kind, entry.InstID, err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func statusOf(err error) string {
	if err != nil {
		return StatusFailed
	}
	return StatusSent
}

func traceFrom(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey{}).(string); ok {
		return v
	}
	return ""
}

type traceKey struct{}

// WithTrace tags journal entries written under ctx with traceID.
func WithTrace(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

func (e *Executor) usdtAvailable(ctx context.Context) (float64, error) {
	bal, err := e.api.Balance(ctx, "USDT")
	if err != nil {
		return 0, fmt.Errorf("查询 USDT 余额失败: %w", err)
	}
	return bal.Available("USDT").InexactFloat64(), nil
}
