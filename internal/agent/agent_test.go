package agent

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"okxagent/internal/chart"
	"okxagent/internal/decision"
	"okxagent/internal/gateway/okx"
	"okxagent/internal/gateway/provider"
	"okxagent/internal/logger"
	"okxagent/internal/market"
	"okxagent/internal/prompt"
	"okxagent/internal/scheduler"
	"okxagent/internal/snapshot"
	"okxagent/internal/store/decisionlog"
	"okxagent/internal/trade"
	"okxagent/internal/trigger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSnapshots struct{ mock.Mock }

func (m *MockSnapshots) BuildAll(ctx context.Context, symbols []string) ([]snapshot.PerpSnapshot, error) {
	args := m.Called(ctx, symbols)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]snapshot.PerpSnapshot), args.Error(1)
}

func (m *MockSnapshots) Summaries(ctx context.Context, sym string, bars []string, windows map[string]int, history int) ([]snapshot.TimeframeSummary, error) {
	args := m.Called(ctx, sym, bars, windows, history)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]snapshot.TimeframeSummary), args.Error(1)
}

type MockModel struct {
	mock.Mock
	vision bool
}

func (m *MockModel) ID() string           { return "mock:model" }
func (m *MockModel) Enabled() bool        { return true }
func (m *MockModel) SupportsVision() bool { return m.vision }
func (m *MockModel) ExpectsJSON() bool    { return true }

func (m *MockModel) Call(ctx context.Context, payload provider.ChatPayload) (string, error) {
	args := m.Called(ctx, payload)
	return args.String(0), args.Error(1)
}

type MockApplier struct{ mock.Mock }

func (m *MockApplier) Apply(ctx context.Context, res decision.Result, snaps []snapshot.PerpSnapshot) ([]trade.Action, error) {
	args := m.Called(ctx, res, snaps)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]trade.Action), args.Error(1)
}

func (m *MockApplier) Enabled() bool { return false }

type MockAccount struct{ mock.Mock }

func (m *MockAccount) Balance(ctx context.Context, ccy string) (okx.Balance, error) {
	args := m.Called(ctx, ccy)
	return args.Get(0).(okx.Balance), args.Error(1)
}

func (m *MockAccount) Positions(ctx context.Context, instType, instID string) ([]okx.Position, error) {
	args := m.Called(ctx, instType, instID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]okx.Position), args.Error(1)
}

type recordNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *recordNotifier) SendText(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return nil
}

type fakeCharts struct{}

func (fakeCharts) RenderSnapshot(_ context.Context, snap snapshot.PerpSnapshot) (chart.Artifact, error) {
	return chart.Artifact{
		Symbol:   snap.Symbol,
		HTMLPath: "charts/" + snap.Symbol + ".html",
		Image:    &chart.Image{Bytes: []byte{0x89, 0x50}, Description: "3m: close=64000"},
	}, nil
}

const btc = "BTC/USDT:USDT"

const entryJSON = "```json\n" + `{"decisions":[{"signal":"buy_to_enter","coin":"BTC","quantity":0.01,"leverage":5,
"entry_price":64000,"profit_target":66000,"stop_loss":63000,"confidence":0.8,"justification":"breakout"}],
"action_summary":"开多 BTC","wake_trigger":{"symbol":"BTC","direction":"above","price":65000}}` + "\n```"

func btcSnapshots() []snapshot.PerpSnapshot {
	return []snapshot.PerpSnapshot{{
		Symbol:       btc,
		Source:       "okx",
		CurrentPrice: 64000,
		Intraday:     snapshot.IntradaySeries{Bar: "3m"},
		Swing:        snapshot.SwingContext{Bar: "4h"},
	}}
}

func newPrompts(t *testing.T) *prompt.Store {
	t.Helper()
	s, err := prompt.NewStore("", "", "")
	require.NoError(t, err)
	return s
}

func newTestAgent(deps Deps, opts Options) *Agent {
	a := New(deps, opts)
	fixed := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	a.startedAt = fixed.Add(-90 * time.Minute)
	a.nowFn = func() time.Time { return fixed }
	a.newID = func() string { return "trace-1" }
	return a
}

func TestRunCycleHappyPath(t *testing.T) {
	snaps := new(MockSnapshots)
	model := new(MockModel)
	exec := new(MockApplier)
	acct := new(MockAccount)
	store, err := decisionlog.Open(filepath.Join(t.TempDir(), "decisions.db"))
	require.NoError(t, err)
	defer store.Close()
	note := &recordNotifier{}

	snaps.On("BuildAll", mock.Anything, []string{btc}).Return(btcSnapshots(), nil)
	snaps.On("Summaries", mock.Anything, btc, []string{"1h"}, map[string]int(nil), 5).
		Return([]snapshot.TimeframeSummary{{Bar: "1h", LastClose: 64000}}, nil)
	acct.On("Balance", mock.Anything, "").Return(okx.Balance{
		TotalEq: "1000",
		Details: []okx.BalanceDetail{{Ccy: "USDT", AvailBal: "800"}},
	}, nil)
	acct.On("Positions", mock.Anything, "SWAP", "").Return([]okx.Position{
		{InstID: "BTC-USDT-SWAP", PosSide: "net", Pos: "-2", AvgPx: "65000", Lever: "3"},
	}, nil)
	model.On("Call", mock.Anything, mock.MatchedBy(func(p provider.ChatPayload) bool {
		return p.TraceID == "trace-1" &&
			strings.Contains(p.System, btc) &&
			strings.Contains(p.User, "已过去 90 分钟，这是第 1 次调用") &&
			strings.Contains(p.User, "BTC-USDT-SWAP short") &&
			p.ExpectJSON && len(p.Images) == 0
	})).Return(entryJSON, nil)
	exec.On("Apply", mock.Anything, mock.MatchedBy(func(r decision.Result) bool {
		return len(r.Decisions) == 1 && r.Decisions[0].Signal == decision.SignalBuyToEnter
	}), mock.Anything).Return([]trade.Action{{Kind: "open", InstID: "BTC-USDT-SWAP", Margin: 128}}, nil)

	a := newTestAgent(Deps{
		Snapshots: snaps, Account: acct, Prompts: newPrompts(t), Model: model,
		Executor: exec, Store: store, Notifier: note,
	}, Options{Symbols: []string{btc}, SummaryBars: []string{"1h"}, SummaryHistory: 5})

	rep, err := a.RunCycle(context.Background())
	require.NoError(t, err)
	snaps.AssertExpectations(t)
	model.AssertExpectations(t)
	exec.AssertExpectations(t)

	assert.Equal(t, "trace-1", rep.TraceID)
	assert.Equal(t, 1, rep.Seq)
	require.Len(t, rep.Actions, 1)
	require.NotNil(t, rep.Result.WakeTrigger)
	assert.Equal(t, "above", rep.Result.WakeTrigger.Direction)

	rec, err := store.Get(context.Background(), "trace-1")
	require.NoError(t, err)
	assert.Equal(t, "mock:model", rec.ProviderID)
	assert.Equal(t, "开多 BTC", rec.ActionSummary)
	assert.Contains(t, rec.RawOutput, "```json")
	assert.Empty(t, rec.Error)
	require.Len(t, rec.Decisions, 1)

	require.Len(t, note.texts, 1)
	assert.Contains(t, note.texts[0], "决策周期 #1")
	assert.Contains(t, note.texts[0], "buy_to_enter BTC")
	assert.Contains(t, note.texts[0], "[dry-run] open BTC-USDT-SWAP 保证金=128.00U")

	st := a.Status()
	assert.Equal(t, 1, st.Invocations)
	assert.Equal(t, "trace-1", st.LastTraceID)
	assert.Equal(t, "mock:model", st.Model)
	assert.False(t, st.Trading)
	last, ok := a.LastReport()
	require.True(t, ok)
	assert.Equal(t, rep.TraceID, last.TraceID)
}

func TestRunCycleRejectsDisallowedCoin(t *testing.T) {
	snaps := new(MockSnapshots)
	model := new(MockModel)
	exec := new(MockApplier)
	store, err := decisionlog.Open(filepath.Join(t.TempDir(), "decisions.db"))
	require.NoError(t, err)
	defer store.Close()
	note := &recordNotifier{}

	snaps.On("BuildAll", mock.Anything, []string{btc}).Return(btcSnapshots(), nil)
	model.On("Call", mock.Anything, mock.Anything).Return(`{"decisions":[{"signal":"close","coin":"DOGE"}]}`, nil)

	a := newTestAgent(Deps{Snapshots: snaps, Prompts: newPrompts(t), Model: model, Executor: exec, Store: store, Notifier: note},
		Options{Symbols: []string{btc}})
	rep, err := a.RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decision")
	exec.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything)

	rec, err := store.Get(context.Background(), "trace-1")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Error)
	assert.Equal(t, rep.Error, "decision: "+rec.Error)
	require.Len(t, note.texts, 1)
	assert.Contains(t, note.texts[0], "⚠️")
	assert.Equal(t, rep.Error, a.Status().LastError)
}

func TestRunCycleSnapshotFailure(t *testing.T) {
	snaps := new(MockSnapshots)
	model := new(MockModel)
	snaps.On("BuildAll", mock.Anything, []string{btc}).Return(nil, errors.New("okx down"))
	var logs bytes.Buffer
	logger.SetOutput(&logs)
	defer logger.SetOutput(nil)

	a := newTestAgent(Deps{Snapshots: snaps, Prompts: newPrompts(t), Model: model}, Options{Symbols: []string{btc}})
	_, err := a.RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot: okx down")
	model.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)

	// 开始与失败两行都带 trace 与轮次
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		if strings.Contains(line, "决策周期") {
			assert.Contains(t, line, "trace=trace-1 cycle=1", line)
		}
	}
	assert.Contains(t, logs.String(), "level=ERROR")
}

func TestRunCycleAttachesChartsForVision(t *testing.T) {
	snaps := new(MockSnapshots)
	model := &MockModel{vision: true}
	snaps.On("BuildAll", mock.Anything, []string{btc}).Return(btcSnapshots(), nil)
	model.On("Call", mock.Anything, mock.MatchedBy(func(p provider.ChatPayload) bool {
		return len(p.Images) == 1 &&
			strings.HasPrefix(p.Images[0].DataURI, "data:image/png;base64,") &&
			p.Images[0].Description == btc+" 3m: close=64000"
	})).Return(`{"decisions":[{"signal":"hold","coin":"BTC"}]}`, nil)

	a := newTestAgent(Deps{Snapshots: snaps, Prompts: newPrompts(t), Model: model, Charts: fakeCharts{}}, Options{Symbols: []string{btc}})
	rep, err := a.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Charts, 1)
	assert.Equal(t, decision.SignalHold, rep.Result.Decisions[0].Signal)
	model.AssertExpectations(t)
}

func TestRunCycleMissingDeps(t *testing.T) {
	_, err := New(Deps{}, Options{}).RunCycle(context.Background())
	require.Error(t, err)
}

func TestToPromptPositions(t *testing.T) {
	out := toPromptPositions([]okx.Position{
		{InstID: "ETH-USDT-SWAP", PosSide: "long", Pos: "3", AvgPx: "3000", MarkPx: "3100", Upl: "30", Lever: "5", LiqPx: "2500"},
		{InstID: "BTC-USDT-SWAP", PosSide: "net", Pos: "-1.5"},
	})
	require.Len(t, out, 2)
	assert.Equal(t, prompt.Position{Symbol: "ETH-USDT-SWAP", Side: "long", Size: 3, EntryPrice: 3000, MarkPrice: 3100,
		UnrealizedPnL: 30, Leverage: "5", LiquidationPrice: 2500}, out[0])
	assert.Equal(t, "short", out[1].Side)
	assert.Equal(t, 1.5, out[1].Size)
}

func TestWakeInstID(t *testing.T) {
	a := New(Deps{}, Options{Symbols: []string{btc, "ETH/USDT:USDT"}})
	assert.Equal(t, "BTC-USDT-SWAP", a.wakeInstID("btc"))
	assert.Equal(t, "ETH-USDT-SWAP", a.wakeInstID("ETH/USDT:USDT"))
	assert.Equal(t, "SOL-USDT-SWAP", a.wakeInstID("SOL-USDT-SWAP"))
	assert.Equal(t, "DOGE-USDT-SWAP", a.wakeInstID("DOGE"))
}

type priceFeed struct{ last float64 }

func (p priceFeed) Ticker(_ context.Context, instID string) (market.Ticker, error) {
	return market.Ticker{Symbol: instID, Last: p.last}, nil
}

type chanWaker chan string

func (c chanWaker) Wake(detail string) bool {
	select {
	case c <- detail:
		return true
	default:
		return false
	}
}

func TestArmWakesOnTrigger(t *testing.T) {
	mgr := trigger.NewManager(priceFeed{last: 65100}, nil, trigger.Options{PollInterval: 5 * time.Millisecond})
	l := NewLoop(New(Deps{}, Options{Symbols: []string{btc}}), nil, mgr)
	waker := make(chanWaker, 1)

	l.arm(context.Background(), &decision.WakeTrigger{Symbol: "BTC", Direction: "above", Price: 65000}, waker)
	select {
	case detail := <-waker:
		assert.Contains(t, detail, "BTC-USDT-SWAP above 65000")
	case <-time.After(2 * time.Second):
		t.Fatal("wake_trigger did not fire")
	}
}

func TestArmReplacesAndSkipsInvalid(t *testing.T) {
	mgr := trigger.NewManager(priceFeed{last: 100}, nil, trigger.Options{PollInterval: 5 * time.Millisecond})
	l := NewLoop(New(Deps{}, Options{Symbols: []string{btc}}), nil, mgr)
	waker := make(chanWaker, 1)

	l.arm(context.Background(), &decision.WakeTrigger{Symbol: "BTC", Direction: "above", Price: 65000}, waker)
	l.mu.Lock()
	first := l.watch
	l.mu.Unlock()
	require.NotNil(t, first)

	l.arm(context.Background(), &decision.WakeTrigger{Symbol: "BTC", Direction: "sideways", Price: 1}, waker)
	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("previous watch not canceled")
	}
	assert.Equal(t, trigger.StatusCanceled, first.Result().Status)
	l.mu.Lock()
	assert.Nil(t, l.watch)
	l.mu.Unlock()
	assert.Empty(t, waker)
}

func TestLoopRunsCycles(t *testing.T) {
	snaps := new(MockSnapshots)
	model := new(MockModel)
	snaps.On("BuildAll", mock.Anything, []string{btc}).Return(btcSnapshots(), nil)
	model.On("Call", mock.Anything, mock.Anything).Return(`{"decisions":[{"signal":"hold","coin":"BTC"}]}`, nil)

	a := New(Deps{Snapshots: snaps, Prompts: newPrompts(t), Model: model}, Options{Symbols: []string{btc}})
	sched := scheduler.NewAlignedScheduler(scheduler.Options{Interval: 5 * time.Millisecond, RunImmediately: true, MaxCycles: 2})
	require.NoError(t, NewLoop(a, sched, nil).Run(context.Background()))
	assert.Equal(t, 2, a.Status().Invocations)
	model.AssertNumberOfCalls(t, "Call", 2)
}

func TestBuildMessage(t *testing.T) {
	rep := CycleReport{
		TraceID:   "t-9",
		Seq:       9,
		StartedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		Snapshots: btcSnapshots(),
		Result: decision.Result{
			Decisions:   []decision.Decision{{Signal: decision.SignalClose, Coin: "BTC"}},
			WakeTrigger: &decision.WakeTrigger{Symbol: "BTC", Direction: "below", Price: 60000},
		},
		Actions: []trade.Action{
			{Kind: "close", InstID: "BTC-USDT-SWAP", Orders: []trade.OrderResult{{Side: "buy", ClOrdID: "c1", Price: 64000, Size: "1"}}},
			{Kind: "skip", InstID: "ETH-USDT-SWAP", Skipped: "无持仓"},
		},
	}
	out := BuildMessage(rep, false).RenderMarkdown()
	assert.Contains(t, out, "🤖 决策周期 #9")
	assert.Contains(t, out, "BTC/USDT:USDT 64000 (24h +0.00%)")
	assert.Contains(t, out, "[实盘] close BTC-USDT-SWAP | buy c1 px=64000 sz=1")
	assert.Contains(t, out, "跳过: 无持仓")
	assert.Contains(t, out, "BTC below 60000")
	assert.Contains(t, out, "trace=t-9")
}
