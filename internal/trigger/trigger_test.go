package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"okxagent/internal/gateway/okx"
	"okxagent/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seqFetcher struct {
	mu     sync.Mutex
	prices []float64
	err    error
	calls  int
}

func (f *seqFetcher) Ticker(_ context.Context, instID string) (market.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return market.Ticker{}, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.prices) {
		idx = len(f.prices) - 1
	}
	return market.Ticker{Symbol: instID, Last: f.prices[idx]}, nil
}

type chanStreamer struct {
	ch  chan market.Tick
	err error
}

func (s *chanStreamer) Subscribe(ctx context.Context, instIDs ...string) (*okx.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &okx.Subscription{C: s.ch}, nil
}

func TestConditionHit(t *testing.T) {
	cases := []struct {
		name string
		cond Condition
		last float64
		want bool
	}{
		{"above reached", Condition{Direction: "above", Target: 100}, 100, true},
		{"above below target", Condition{Direction: "above", Target: 100}, 99.9, false},
		{"above within tolerance", Condition{Direction: "above", Target: 100, Tolerance: 0.5}, 99.6, true},
		{"below reached", Condition{Direction: "below", Target: 100}, 98, true},
		{"below above target", Condition{Direction: "below", Target: 100}, 100.1, false},
		{"below within tolerance", Condition{Direction: "below", Target: 100, Tolerance: 0.2}, 100.1, true},
		{"unknown direction", Condition{Direction: "sideways", Target: 100}, 100, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cond.Hit(tc.last))
		})
	}
}

func TestWatchRejectsInvalid(t *testing.T) {
	m := NewManager(&seqFetcher{prices: []float64{1}}, nil, Options{})
	_, err := m.Watch(context.Background(), Condition{InstID: "BTC-USDT-SWAP", Direction: "up", Target: 1})
	require.Error(t, err)
	_, err = m.Watch(context.Background(), Condition{InstID: "BTC-USDT-SWAP", Direction: "above"})
	require.Error(t, err)
}

func TestPollingTriggers(t *testing.T) {
	f := &seqFetcher{prices: []float64{90, 95, 101}}
	m := NewManager(f, nil, Options{PollInterval: time.Millisecond})
	w, err := m.Watch(context.Background(), Condition{InstID: "BTC/USDT:USDT", Direction: "above", Target: 100})
	require.NoError(t, err)
	assert.Equal(t, "BTC-USDT-SWAP", w.Condition.InstID)

	res := w.Wait(2 * time.Second)
	assert.Equal(t, StatusTriggered, res.Status)
	assert.Equal(t, ModePolling, res.Mode)
	assert.Equal(t, 101.0, res.Price)
	assert.Equal(t, 3, res.Checks)

	last, ok := m.Last()
	require.True(t, ok)
	assert.Equal(t, StatusTriggered, last.Status)
}

func TestPollingExpires(t *testing.T) {
	f := &seqFetcher{prices: []float64{90}}
	m := NewManager(f, nil, Options{PollInterval: time.Millisecond, MaxChecks: 4})
	w, err := m.Watch(context.Background(), Condition{InstID: "BTC-USDT-SWAP", Direction: "above", Target: 100})
	require.NoError(t, err)
	res := w.Wait(2 * time.Second)
	assert.Equal(t, StatusExpired, res.Status)
	assert.Equal(t, 4, res.Checks)
	assert.Equal(t, 90.0, res.Price)
}

func TestPollingErrorsOnlyReportError(t *testing.T) {
	f := &seqFetcher{err: errors.New("down")}
	m := NewManager(f, nil, Options{PollInterval: time.Millisecond, MaxChecks: 2})
	w, err := m.Watch(context.Background(), Condition{InstID: "BTC-USDT-SWAP", Direction: "below", Target: 100})
	require.NoError(t, err)
	res := w.Wait(2 * time.Second)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, "down", res.Err)
}

func TestWebsocketTriggers(t *testing.T) {
	ch := make(chan market.Tick, 4)
	ch <- market.Tick{Symbol: "ETH/USDT:USDT", Last: 50}
	ch <- market.Tick{Symbol: "BTC/USDT:USDT", Last: 105}
	ch <- market.Tick{Symbol: "BTC/USDT:USDT", Last: 99}
	f := &seqFetcher{prices: []float64{1000}}
	m := NewManager(f, &chanStreamer{ch: ch}, Options{UseWebsocket: true})
	w, err := m.Watch(context.Background(), Condition{InstID: "BTC-USDT-SWAP", Direction: "below", Target: 100})
	require.NoError(t, err)
	res := w.Wait(2 * time.Second)
	assert.Equal(t, StatusTriggered, res.Status)
	assert.Equal(t, ModeWebsocket, res.Mode)
	assert.Equal(t, 99.0, res.Price)
	assert.Equal(t, 0, f.calls)
}

func TestWebsocketFailureFallsBackToPolling(t *testing.T) {
	f := &seqFetcher{prices: []float64{120}}
	m := NewManager(f, &chanStreamer{err: errors.New("dial failed")}, Options{UseWebsocket: true, PollInterval: time.Millisecond})
	w, err := m.Watch(context.Background(), Condition{InstID: "BTC-USDT-SWAP", Direction: "above", Target: 100})
	require.NoError(t, err)
	res := w.Wait(2 * time.Second)
	assert.Equal(t, StatusTriggered, res.Status)
	assert.Equal(t, ModePolling, res.Mode)
}

func TestClosedStreamFallsBackToPolling(t *testing.T) {
	ch := make(chan market.Tick)
	close(ch)
	f := &seqFetcher{prices: []float64{80}}
	m := NewManager(f, &chanStreamer{ch: ch}, Options{UseWebsocket: true, PollInterval: time.Millisecond})
	w, err := m.Watch(context.Background(), Condition{InstID: "BTC-USDT-SWAP", Direction: "below", Target: 100})
	require.NoError(t, err)
	res := w.Wait(2 * time.Second)
	assert.Equal(t, StatusTriggered, res.Status)
	assert.Equal(t, ModePolling, res.Mode)
}

func TestWaitTimeoutAndCancel(t *testing.T) {
	f := &seqFetcher{prices: []float64{90}}
	m := NewManager(f, nil, Options{PollInterval: 10 * time.Millisecond})
	w, err := m.Watch(context.Background(), Condition{InstID: "BTC-USDT-SWAP", Direction: "above", Target: 100})
	require.NoError(t, err)
	res := w.Wait(30 * time.Millisecond)
	assert.Equal(t, StatusTimeout, res.Status)
	// later results do not overwrite the first
	w.Cancel()
	assert.Equal(t, StatusTimeout, w.Result().Status)

	ctx, cancel := context.WithCancel(context.Background())
	w2, err := m.Watch(ctx, Condition{InstID: "BTC-USDT-SWAP", Direction: "above", Target: 100})
	require.NoError(t, err)
	cancel()
	select {
	case <-w2.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
	assert.Equal(t, StatusCanceled, w2.Result().Status)
}
