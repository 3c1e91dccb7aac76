// Package trigger watches a price level and reports when it is crossed.
package trigger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"okxagent/internal/config"
	"okxagent/internal/gateway/okx"
	"okxagent/internal/logger"
	"okxagent/internal/market"
	"okxagent/internal/pkg/symbol"
)

type Status string

const (
	StatusTriggered Status = "triggered"
	StatusExpired   Status = "expired"
	StatusTimeout   Status = "timeout"
	StatusCanceled  Status = "canceled"
	StatusError     Status = "error"
)

const (
	ModeWebsocket = "websocket"
	ModePolling   = "polling"
)

// Condition 价格触发条件：above 在 last ≥ target−tol 时命中，below 在 last ≤ target+tol 时命中。
type Condition struct {
	InstID    string  `json:"inst_id"`
	Direction string  `json:"direction"`
	Target    float64 `json:"target"`
	Tolerance float64 `json:"tolerance,omitempty"`
}

func (c Condition) Validate() error {
	if strings.TrimSpace(c.InstID) == "" {
		return fmt.Errorf("trigger: inst_id required")
	}
	if c.Direction != "above" && c.Direction != "below" {
		return fmt.Errorf("trigger: direction 需为 above 或 below: %q", c.Direction)
	}
	if c.Target <= 0 {
		return fmt.Errorf("trigger: target must be > 0")
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("trigger: tolerance must be >= 0")
	}
	return nil
}

func (c Condition) Hit(last float64) bool {
	switch c.Direction {
	case "above":
		return last >= c.Target-c.Tolerance
	case "below":
		return last <= c.Target+c.Tolerance
	}
	return false
}

// Result 触发结果。
type Result struct {
	Condition Condition `json:"condition"`
	Status    Status    `json:"status"`
	Mode      string    `json:"mode,omitempty"`
	Price     float64   `json:"price,omitempty"`
	Checks    int       `json:"checks,omitempty"`
	At        time.Time `json:"at"`
	Err       string    `json:"error,omitempty"`
}

// PriceFetcher is the REST fallback.
type PriceFetcher interface {
	Ticker(ctx context.Context, instID string) (market.Ticker, error)
}

// Streamer is the websocket ticker feed.
type Streamer interface {
	Subscribe(ctx context.Context, instIDs ...string) (*okx.Subscription, error)
}

type Options struct {
	PollInterval time.Duration
	// MaxChecks limits polling attempts; 0 means unlimited.
	MaxChecks    int
	Timeout      time.Duration
	Tolerance    float64
	UseWebsocket bool
}

func OptionsFromConfig(c config.TriggerConfig) Options {
	return Options{
		PollInterval: time.Duration(c.PollIntervalSeconds) * time.Second,
		MaxChecks:    c.MaxChecks,
		Timeout:      time.Duration(c.TimeoutSeconds) * time.Second,
		Tolerance:    c.Tolerance,
		UseWebsocket: c.UseWebsocket,
	}
}

// Manager 管理价格监听：优先 websocket，失败时回退到 REST 轮询。
type Manager struct {
	rest   PriceFetcher
	stream Streamer
	opts   Options
	nowFn  func() time.Time

	mu   sync.RWMutex
	last *Result
}

func NewManager(rest PriceFetcher, stream Streamer, opts Options) *Manager {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	return &Manager{rest: rest, stream: stream, opts: opts, nowFn: time.Now}
}

func (m *Manager) Options() Options { return m.opts }

// Last returns the most recent finished watch result.
func (m *Manager) Last() (Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return Result{}, false
	}
	return *m.last, true
}

func (m *Manager) setLast(r Result) {
	m.mu.Lock()
	m.last = &r
	m.mu.Unlock()
}

// Watch 是一次运行中的监听。
type Watch struct {
	Condition Condition

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	result Result
	mgr    *Manager
}

// Watch starts monitoring cond in the background. Tolerance defaults to the
// manager's configured tolerance.
func (m *Manager) Watch(ctx context.Context, cond Condition) (*Watch, error) {
	cond.InstID = symbol.ToInstID(cond.InstID)
	cond.Direction = strings.ToLower(strings.TrimSpace(cond.Direction))
	if cond.Tolerance == 0 {
		cond.Tolerance = m.opts.Tolerance
	}
	if err := cond.Validate(); err != nil {
		return nil, err
	}
	wctx, cancel := context.WithCancel(ctx)
	w := &Watch{Condition: cond, cancel: cancel, done: make(chan struct{}), mgr: m}
	logger.Infof("价格监听已注册 %s %s %g (tol=%g)", cond.InstID, cond.Direction, cond.Target, cond.Tolerance)
	go func() {
		w.finish(m.run(wctx, cond))
	}()
	return w, nil
}

func (w *Watch) finish(r Result) {
	w.once.Do(func() {
		if r.At.IsZero() {
			r.At = w.mgr.nowFn()
		}
		r.Condition = w.Condition
		w.result = r
		w.mgr.setLast(r)
		w.cancel()
		close(w.done)
		logger.Infof("价格监听结束 %s %s status=%s price=%g", w.Condition.InstID, w.Condition.Direction, r.Status, r.Price)
	})
}

func (w *Watch) Done() <-chan struct{} { return w.done }

// Result is valid after Done is closed.
func (w *Watch) Result() Result {
	<-w.done
	return w.result
}

func (w *Watch) Cancel() {
	w.finish(Result{Status: StatusCanceled})
}

// Wait blocks until the watch finishes or timeout elapses. timeout <= 0 uses
// the configured timeout; if that is also 0 it waits indefinitely.
func (w *Watch) Wait(timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = w.mgr.opts.Timeout
	}
	if timeout <= 0 {
		return w.Result()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.done:
	case <-timer.C:
		w.finish(Result{Status: StatusTimeout})
	}
	return w.Result()
}

func (m *Manager) run(ctx context.Context, cond Condition) Result {
	if m.opts.UseWebsocket && m.stream != nil {
		res, ok := m.runStream(ctx, cond)
		if ok {
			return res
		}
	}
	return m.poll(ctx, cond)
}

// runStream returns ok=false when the caller should fall back to polling.
func (m *Manager) runStream(ctx context.Context, cond Condition) (Result, bool) {
	sub, err := m.stream.Subscribe(ctx, cond.InstID)
	if err != nil {
		logger.Warnf("websocket 订阅 %s 失败，回退轮询: %v", cond.InstID, err)
		return Result{}, false
	}
	for tick := range sub.C {
		if tick.Symbol != "" && symbol.ToInstID(tick.Symbol) != cond.InstID {
			continue
		}
		if cond.Hit(tick.Last) {
			return Result{Status: StatusTriggered, Mode: ModeWebsocket, Price: tick.Last, At: m.nowFn()}, true
		}
	}
	if ctx.Err() != nil {
		return Result{Status: StatusCanceled, Mode: ModeWebsocket}, true
	}
	logger.Warnf("websocket 连接中断 %s，回退轮询: %v", cond.InstID, sub.Err())
	return Result{}, false
}

func (m *Manager) poll(ctx context.Context, cond Condition) Result {
	if m.rest == nil {
		return Result{Status: StatusError, Mode: ModePolling, Err: "no price source"}
	}
	checks := 0
	last := 0.0
	var lastErr error
	for {
		if ctx.Err() != nil {
			return Result{Status: StatusCanceled, Mode: ModePolling, Price: last, Checks: checks}
		}
		t, err := m.rest.Ticker(ctx, cond.InstID)
		checks++
		if err != nil {
			lastErr = err
			logger.Warnf("轮询 %s 价格失败: %v", cond.InstID, err)
		} else {
			last = t.Last
			if cond.Hit(last) {
				return Result{Status: StatusTriggered, Mode: ModePolling, Price: last, Checks: checks, At: m.nowFn()}
			}
		}
		if m.opts.MaxChecks > 0 && checks >= m.opts.MaxChecks {
			res := Result{Status: StatusExpired, Mode: ModePolling, Price: last, Checks: checks}
			if lastErr != nil && last == 0 {
				res.Status = StatusError
				res.Err = lastErr.Error()
			}
			return res
		}
		timer := time.NewTimer(m.opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{Status: StatusCanceled, Mode: ModePolling, Price: last, Checks: checks}
		case <-timer.C:
		}
	}
}
