package scheduler

import (
	"context"
	"time"

	"okxagent/internal/config"
	"okxagent/internal/logger"
)

// 触发原因
const (
	ReasonImmediate = "immediate"
	ReasonInterval  = "interval"
	ReasonWake      = "wake"
)

// Tick 描述一次调度。
type Tick struct {
	Seq    int
	Reason string
	Detail string
	At     time.Time
}

type Options struct {
	Interval       time.Duration
	Offset         time.Duration
	Align          bool
	RunImmediately bool
	// MaxCycles 为 0 表示不限次数。
	MaxCycles int
}

func OptionsFromConfig(cfg config.LoopConfig) (Options, error) {
	iv, err := cfg.IntervalDuration()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Interval:       iv,
		Offset:         time.Duration(cfg.OffsetSeconds) * time.Second,
		Align:          cfg.Align,
		RunImmediately: cfg.RunImmediately,
		MaxCycles:      cfg.MaxCycles,
	}, nil
}

// AlignedScheduler 按固定间隔（可对齐 K 线收盘）执行任务，也可以被价格触发器提前唤醒。
type AlignedScheduler struct {
	opts  Options
	wake  chan string
	nowFn func() time.Time
}

func NewAlignedScheduler(opts Options) *AlignedScheduler {
	if opts.Offset < 0 {
		logger.Warnf("AlignedScheduler: negative offset=%s, clamp to 0", opts.Offset)
		opts.Offset = 0
	}
	return &AlignedScheduler{opts: opts, wake: make(chan string, 1), nowFn: time.Now}
}

func (s *AlignedScheduler) Options() Options { return s.opts }

// Wake 请求尽快开始下一轮；已有未处理的唤醒时返回 false。
func (s *AlignedScheduler) Wake(detail string) bool {
	select {
	case s.wake <- detail:
		return true
	default:
		return false
	}
}

// Start 阻塞执行直到 ctx 结束或达到 MaxCycles。task 的错误只记录日志，不会中断循环。
func (s *AlignedScheduler) Start(ctx context.Context, task func(context.Context, Tick) error) error {
	if task == nil {
		logger.Warnf("AlignedScheduler: task is nil, exit")
		return nil
	}
	if s.opts.Interval <= 0 {
		logger.Warnf("AlignedScheduler: invalid interval=%s, exit", s.opts.Interval)
		return nil
	}
	startAt := s.nowFn().UTC()
	logger.Infof("AlignedScheduler: started interval=%s align=%v offset=%s run_immediately=%v max_cycles=%d at=%s",
		s.opts.Interval, s.opts.Align, s.opts.Offset, s.opts.RunImmediately, s.opts.MaxCycles, startAt.Format(time.RFC3339))

	seq := 0
	run := func(reason, detail string) bool {
		seq++
		tick := Tick{Seq: seq, Reason: reason, Detail: detail, At: s.nowFn().UTC()}
		if err := task(ctx, tick); err != nil {
			logger.Errorf("AlignedScheduler: 第 %d 轮执行失败 (%s): %v", seq, reason, err)
		}
		if s.opts.MaxCycles > 0 && seq >= s.opts.MaxCycles {
			logger.Infof("AlignedScheduler: 已达到 max_cycles=%d, exit", s.opts.MaxCycles)
			return false
		}
		return ctx.Err() == nil
	}

	last := startAt
	if s.opts.RunImmediately {
		logger.Infof("AlignedScheduler: RunImmediately=true, execute once before alignment loop")
		if !run(ReasonImmediate, "") {
			return nil
		}
		last = s.nowFn().UTC()
	}

	for {
		now := s.nowFn().UTC()
		nextAt := s.nextRun(now, last)
		wait := nextAt.Sub(now)
		logger.Infof("AlignedScheduler: 下一轮=%s (in %s) | uptime=%s",
			nextAt.Format(time.RFC3339), wait.Truncate(time.Second), now.Sub(startAt).Truncate(time.Second))

		reason, detail := ReasonInterval, ""
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				logger.Infof("AlignedScheduler: ctx done, exit")
				return nil
			case detail = <-s.wake:
				timer.Stop()
				reason = ReasonWake
				logger.Infof("AlignedScheduler: 被提前唤醒: %s", detail)
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return nil
		}
		last = s.nowFn().UTC()
		if !run(reason, detail) {
			return nil
		}
	}
}

// nextRun 对齐模式下取下一个 interval 边界加 offset，否则距上一次开始满 interval。
func (s *AlignedScheduler) nextRun(now, last time.Time) time.Time {
	if s.opts.Align {
		return nextAligned(now, s.opts.Interval, s.opts.Offset)
	}
	next := last.Add(s.opts.Interval)
	if next.Before(now) {
		return now
	}
	return next
}

func nextAligned(now time.Time, interval, offset time.Duration) time.Time {
	now = now.UTC()
	at := now.Truncate(interval).Add(offset)
	for !at.After(now) {
		at = at.Add(interval)
	}
	return at
}
