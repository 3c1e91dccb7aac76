package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"okxagent/internal/decision"
	"okxagent/internal/logger"
	"okxagent/internal/pkg/circuit"
	"okxagent/internal/scheduler"
	"okxagent/internal/trigger"
)

// PriceWatcher 注册价格监听。
type PriceWatcher interface {
	Watch(ctx context.Context, cond trigger.Condition) (*trigger.Watch, error)
}

// Waker starts the next cycle early.
type Waker interface {
	Wake(detail string) bool
}

// Loop 按调度器节奏执行 RunCycle，并根据模型给出的 wake_trigger 提前唤醒。
type Loop struct {
	agent   *Agent
	sched   *scheduler.AlignedScheduler
	watcher PriceWatcher
	breaker *circuit.CircuitBreaker

	mu    sync.Mutex
	watch *trigger.Watch
}

func NewLoop(a *Agent, sched *scheduler.AlignedScheduler, watcher PriceWatcher) *Loop {
	return &Loop{
		agent:   a,
		sched:   sched,
		watcher: watcher,
		breaker: circuit.NewCircuitBreaker("AgentLoop", 5, 2*time.Minute),
	}
}

// Run 阻塞直到 ctx 结束或达到 max_cycles。
func (l *Loop) Run(ctx context.Context) error {
	defer l.disarm()
	return l.sched.Start(ctx, l.tick)
}

func (l *Loop) tick(ctx context.Context, tk scheduler.Tick) error {
	if !l.breaker.Allow() {
		logger.Warnf("AgentLoop: circuit breaker open, skip tick #%d", tk.Seq)
		return nil
	}
	if tk.Reason == scheduler.ReasonWake {
		logger.Infof("AgentLoop: 价格触发提前执行: %s", tk.Detail)
	}
	rep, err := l.agent.RunCycle(ctx)
	if err != nil {
		l.breaker.RecordFailure()
		return err
	}
	l.breaker.RecordSuccess()
	l.arm(ctx, rep.Result.WakeTrigger, l.sched)
	return nil
}

// arm 替换上一轮的监听；没有 wake_trigger 时只取消旧的。
func (l *Loop) arm(ctx context.Context, wt *decision.WakeTrigger, waker Waker) {
	l.disarm()
	if wt == nil || l.watcher == nil {
		return
	}
	if err := wt.Validate(); err != nil {
		logger.Warnf("忽略无效 wake_trigger: %v", err)
		return
	}
	wctx, cancel := context.WithCancel(ctx)
	if wt.TimeoutMinutes > 0 {
		cancel()
		wctx, cancel = context.WithTimeout(ctx, time.Duration(wt.TimeoutMinutes)*time.Minute)
	}
	cond := trigger.Condition{InstID: l.agent.wakeInstID(wt.Symbol), Direction: wt.Direction, Target: wt.Price}
	w, err := l.watcher.Watch(wctx, cond)
	if err != nil {
		cancel()
		logger.Warnf("注册 wake_trigger 失败: %v", err)
		return
	}
	l.mu.Lock()
	l.watch = w
	l.mu.Unlock()

	go func() {
		defer cancel()
		res := w.Result()
		if res.Status != trigger.StatusTriggered {
			logger.Infof("wake_trigger %s %s %g 结束 status=%s", cond.InstID, cond.Direction, cond.Target, res.Status)
			return
		}
		waker.Wake(fmt.Sprintf("%s %s %g (last=%g)", res.Condition.InstID, res.Condition.Direction, res.Condition.Target, res.Price))
	}()
}

func (l *Loop) disarm() {
	l.mu.Lock()
	w := l.watch
	l.watch = nil
	l.mu.Unlock()
	if w != nil {
		w.Cancel()
	}
}
