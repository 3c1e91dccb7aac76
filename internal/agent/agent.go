// Package agent runs one decision cycle: market snapshots, prompt, model
// call, decision parsing and order application.
package agent

import (
	"context"
	"sync"
	"time"

	"okxagent/internal/chart"
	"okxagent/internal/config"
	"okxagent/internal/decision"
	"okxagent/internal/gateway/notifier"
	"okxagent/internal/gateway/okx"
	"okxagent/internal/gateway/provider"
	"okxagent/internal/prompt"
	"okxagent/internal/snapshot"
	"okxagent/internal/store/decisionlog"
	"okxagent/internal/trade"
)

// SnapshotBuilder 行情快照来源。
type SnapshotBuilder interface {
	BuildAll(ctx context.Context, symbols []string) ([]snapshot.PerpSnapshot, error)
	Summaries(ctx context.Context, symbol string, bars []string, windows map[string]int, history int) ([]snapshot.TimeframeSummary, error)
}

// AccountReader reads balance and open positions; nil when no credentials.
type AccountReader interface {
	Balance(ctx context.Context, ccy string) (okx.Balance, error)
	Positions(ctx context.Context, instType, instID string) ([]okx.Position, error)
}

type PromptRenderer interface {
	System(vars map[string]string) string
	RenderUser(in prompt.UserInput) (string, error)
}

type DecisionStore interface {
	Insert(ctx context.Context, rec decisionlog.Record) (int64, error)
}

// OrderApplier 把决策落到交易所（或 dry-run）。
type OrderApplier interface {
	Apply(ctx context.Context, res decision.Result, snaps []snapshot.PerpSnapshot) ([]trade.Action, error)
	Enabled() bool
}

type ChartRenderer interface {
	RenderSnapshot(ctx context.Context, snap snapshot.PerpSnapshot) (chart.Artifact, error)
}

// Options 每轮循环需要的配置。
type Options struct {
	Symbols        []string
	SummaryBars    []string
	SummaryWindows map[string]int
	SummaryHistory int
	MaxTokens      int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Symbols:        cfg.Market.Symbols,
		SummaryBars:    cfg.Market.SummaryBars,
		SummaryWindows: cfg.Market.SummaryWindows,
		SummaryHistory: cfg.Market.SummaryHistory,
		MaxTokens:      cfg.LLM.MaxTokens,
	}
}

// Deps 组装 Agent 所需的组件；Account、Charts、Store、Notifier 可以为空。
type Deps struct {
	Snapshots SnapshotBuilder
	Account   AccountReader
	Prompts   PromptRenderer
	Model     provider.ModelProvider
	Executor  OrderApplier
	Charts    ChartRenderer
	Store     DecisionStore
	Notifier  notifier.TextNotifier
}

// Agent 串行执行决策周期，并保留最近一次结果供状态接口查询。
type Agent struct {
	deps  Deps
	opts  Options
	nowFn func() time.Time
	newID func() string

	mu          sync.RWMutex
	startedAt   time.Time
	invocations int
	last        *CycleReport
}

func New(deps Deps, opts Options) *Agent {
	return &Agent{
		deps:      deps,
		opts:      opts,
		nowFn:     time.Now,
		newID:     newTraceID,
		startedAt: time.Now(),
	}
}

func (a *Agent) Options() Options { return a.opts }

// Status is what the HTTP API reports.
type Status struct {
	StartedAt   time.Time `json:"started_at"`
	Invocations int       `json:"invocations"`
	Symbols     []string  `json:"symbols"`
	Model       string    `json:"model"`
	Trading     bool      `json:"trading_enabled"`
	LastTraceID string    `json:"last_trace_id,omitempty"`
	LastRunAt   time.Time `json:"last_run_at,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

func (a *Agent) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st := Status{
		StartedAt:   a.startedAt,
		Invocations: a.invocations,
		Symbols:     a.opts.Symbols,
	}
	if a.deps.Model != nil {
		st.Model = a.deps.Model.ID()
	}
	if a.deps.Executor != nil {
		st.Trading = a.deps.Executor.Enabled()
	}
	if a.last != nil {
		st.LastTraceID = a.last.TraceID
		st.LastRunAt = a.last.StartedAt
		st.LastError = a.last.Error
	}
	return st
}

// LastReport 最近一轮的结果。
func (a *Agent) LastReport() (CycleReport, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return CycleReport{}, false
	}
	return *a.last, true
}

func (a *Agent) begin() (seq int, minutes int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.invocations++
	return a.invocations, int(a.nowFn().Sub(a.startedAt).Minutes())
}

func (a *Agent) finish(rep *CycleReport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := *rep
	a.last = &cp
}
