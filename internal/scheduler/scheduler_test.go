package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"okxagent/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextAligned(t *testing.T) {
	base := time.Date(2024, 5, 1, 8, 7, 30, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 15, 0, 0, time.UTC), nextAligned(base, 15*time.Minute, 0))
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 40, 0, time.UTC).Add(15*time.Minute), nextAligned(base, 15*time.Minute, 40*time.Second))
	// offset still ahead inside the current bucket
	early := time.Date(2024, 5, 1, 8, 0, 10, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 40, 0, time.UTC), nextAligned(early, 15*time.Minute, 40*time.Second))
	// exactly on a boundary moves to the next one
	on := time.Date(2024, 5, 1, 8, 15, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC), nextAligned(on, 15*time.Minute, 0))
}

func TestNextRunUnaligned(t *testing.T) {
	s := NewAlignedScheduler(Options{Interval: time.Minute})
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(30*time.Second), s.nextRun(now, now.Add(-30*time.Second)))
	assert.Equal(t, now, s.nextRun(now, now.Add(-5*time.Minute)))
}

func TestStartRunsUntilMaxCycles(t *testing.T) {
	s := NewAlignedScheduler(Options{Interval: 5 * time.Millisecond, RunImmediately: true, MaxCycles: 3})
	var ticks []Tick
	err := s.Start(context.Background(), func(ctx context.Context, tk Tick) error {
		ticks = append(ticks, tk)
		if tk.Seq == 2 {
			return errors.New("cycle failed")
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, ticks, 3)
	assert.Equal(t, ReasonImmediate, ticks[0].Reason)
	assert.Equal(t, ReasonInterval, ticks[1].Reason)
	assert.Equal(t, 3, ticks[2].Seq)
}

func TestWakeRunsEarly(t *testing.T) {
	s := NewAlignedScheduler(Options{Interval: time.Hour, MaxCycles: 1})
	done := make(chan Tick, 1)
	go func() {
		_ = s.Start(context.Background(), func(ctx context.Context, tk Tick) error {
			done <- tk
			return nil
		})
	}()
	require.Eventually(t, func() bool { return s.Wake("BTC above 65000") }, time.Second, 5*time.Millisecond)
	select {
	case tk := <-done:
		assert.Equal(t, ReasonWake, tk.Reason)
		assert.Equal(t, "BTC above 65000", tk.Detail)
	case <-time.After(2 * time.Second):
		t.Fatal("wake did not trigger a cycle")
	}
}

func TestWakeIsNonBlocking(t *testing.T) {
	s := NewAlignedScheduler(Options{Interval: time.Hour})
	assert.True(t, s.Wake("a"))
	assert.False(t, s.Wake("b"))
}

func TestStartStopsOnCancel(t *testing.T) {
	s := NewAlignedScheduler(Options{Interval: time.Hour, Align: true})
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	var err error
	go func() {
		defer wg.Done()
		err = s.Start(ctx, func(context.Context, Tick) error { return nil })
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	wg.Wait()
	assert.NoError(t, err)
}

func TestInvalidOptions(t *testing.T) {
	s := NewAlignedScheduler(Options{Offset: -time.Second})
	assert.Equal(t, time.Duration(0), s.Options().Offset)
	require.NoError(t, s.Start(context.Background(), func(context.Context, Tick) error {
		t.Fatal("must not run")
		return nil
	}))
	require.NoError(t, s.Start(context.Background(), nil))
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := OptionsFromConfig(config.LoopConfig{Interval: "15m", Align: true, OffsetSeconds: 5, MaxCycles: 2})
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, opts.Interval)
	assert.Equal(t, 5*time.Second, opts.Offset)
	assert.True(t, opts.Align)
	assert.Equal(t, 2, opts.MaxCycles)

	_, err = OptionsFromConfig(config.LoopConfig{Interval: "soon"})
	require.Error(t, err)
}
