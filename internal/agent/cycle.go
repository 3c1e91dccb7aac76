package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"okxagent/internal/chart"
	"okxagent/internal/decision"
	"okxagent/internal/gateway/notifier"
	"okxagent/internal/gateway/okx"
	"okxagent/internal/gateway/provider"
	"okxagent/internal/logger"
	"okxagent/internal/pkg/convert"
	"okxagent/internal/pkg/symbol"
	"okxagent/internal/prompt"
	"okxagent/internal/snapshot"
	"okxagent/internal/store/decisionlog"
	"okxagent/internal/trade"

	"github.com/google/uuid"
)

// CycleReport 一轮决策的完整结果。
type CycleReport struct {
	TraceID   string                  `json:"trace_id"`
	Seq       int                     `json:"seq"`
	StartedAt time.Time               `json:"started_at"`
	Duration  time.Duration           `json:"duration"`
	Symbols   []string                `json:"symbols"`
	Snapshots []snapshot.PerpSnapshot `json:"snapshots,omitempty"`
	Result    decision.Result         `json:"result"`
	Actions   []trade.Action          `json:"actions,omitempty"`
	Charts    []chart.Artifact        `json:"charts,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

func newTraceID() string { return uuid.NewString() }

// RunCycle 执行一轮：快照 → 账户 → prompt → 模型 → 解析校验 → 落库 → 通知 → 下单。
// 返回的 report 在出错时也包含已完成的部分。
func (a *Agent) RunCycle(ctx context.Context) (CycleReport, error) {
	seq, minutes := a.begin()
	rep := CycleReport{
		TraceID:   a.newID(),
		Seq:       seq,
		StartedAt: a.nowFn(),
		Symbols:   a.opts.Symbols,
	}
	ctx = trade.WithTrace(ctx, rep.TraceID)
	log := logger.With("trace", rep.TraceID, "cycle", seq)
	log.Info("==== 决策周期开始 ====", "symbols", strings.Join(a.opts.Symbols, ","))

	err := a.runCycle(ctx, &rep, minutes)
	rep.Duration = a.nowFn().Sub(rep.StartedAt)
	if err != nil {
		rep.Error = err.Error()
		log.Error("决策周期失败", "err", err)
	} else {
		log.Info("==== 决策周期完成 ====", "elapsed", rep.Duration.Round(time.Millisecond).String())
	}
	a.notify(ctx, rep)
	a.finish(&rep)
	return rep, err
}

func (a *Agent) runCycle(ctx context.Context, rep *CycleReport, minutes int) error {
	if a.deps.Snapshots == nil || a.deps.Prompts == nil || a.deps.Model == nil {
		return errors.New("agent 依赖未初始化")
	}
	snaps, err := a.deps.Snapshots.BuildAll(ctx, a.opts.Symbols)
	if err != nil {
		a.log(ctx, *rep, "", "", err)
		return fmt.Errorf("snapshot: %w", err)
	}
	rep.Snapshots = snaps

	in := prompt.UserInput{
		Now:               rep.StartedAt,
		MinutesSinceStart: minutes,
		Invocations:       rep.Seq,
		Snapshots:         snaps,
		Summaries:         a.summaries(ctx, snaps),
	}
	in.Account, in.Positions = a.account(ctx)

	system := a.deps.Prompts.System(prompt.SystemVars(a.opts.Symbols))
	user, err := a.deps.Prompts.RenderUser(in)
	if err != nil {
		a.log(ctx, *rep, system, "", err)
		return fmt.Errorf("render prompt: %w", err)
	}

	payload := provider.ChatPayload{
		TraceID:    rep.TraceID,
		System:     system,
		User:       user,
		ExpectJSON: a.deps.Model.ExpectsJSON(),
		MaxTokens:  a.opts.MaxTokens,
	}
	rep.Charts, payload.Images = a.charts(ctx, snaps)

	raw, err := a.deps.Model.Call(ctx, payload)
	if err != nil {
		a.log(ctx, *rep, system, user, err)
		return err
	}
	res, err := decision.Parse(raw)
	if err == nil {
		err = res.Validate(a.opts.Symbols)
	}
	rep.Result = res
	if err != nil {
		a.log(ctx, *rep, system, user, err)
		return fmt.Errorf("decision: %w", err)
	}
	a.log(ctx, *rep, system, user, nil)
	for _, d := range res.Decisions {
		logger.Infof("决策: %s", d.String())
	}

	if a.deps.Executor == nil {
		return nil
	}
	actions, err := a.deps.Executor.Apply(ctx, res, snaps)
	rep.Actions = actions
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	return nil
}

func (a *Agent) summaries(ctx context.Context, snaps []snapshot.PerpSnapshot) map[string][]snapshot.TimeframeSummary {
	if len(a.opts.SummaryBars) == 0 {
		return nil
	}
	out := make(map[string][]snapshot.TimeframeSummary, len(snaps))
	for _, snap := range snaps {
		sums, err := a.deps.Snapshots.Summaries(ctx, snap.Symbol, a.opts.SummaryBars, a.opts.SummaryWindows, a.opts.SummaryHistory)
		if err != nil {
			logger.Warnf("多周期摘要 %s 失败: %v", snap.Symbol, err)
			continue
		}
		out[snap.Symbol] = sums
	}
	return out
}

// account 读取余额与持仓；失败只记 warning，prompt 里显示为空。
func (a *Agent) account(ctx context.Context) (prompt.AccountState, []prompt.Position) {
	var state prompt.AccountState
	if a.deps.Account == nil {
		return state, nil
	}
	if bal, err := a.deps.Account.Balance(ctx, ""); err != nil {
		logger.Warnf("读取账户余额失败: %v", err)
	} else {
		state.TotalEquity = convert.ToFloat64(bal.TotalEq)
		state.AvailableUSDT = bal.Available("USDT").InexactFloat64()
	}
	rows, err := a.deps.Account.Positions(ctx, "SWAP", "")
	if err != nil {
		logger.Warnf("读取持仓失败: %v", err)
		return state, nil
	}
	return state, toPromptPositions(rows)
}

func toPromptPositions(rows []okx.Position) []prompt.Position {
	out := make([]prompt.Position, 0, len(rows))
	for _, p := range rows {
		size := convert.ToFloat64(p.Pos)
		if size < 0 {
			size = -size
		}
		out = append(out, prompt.Position{
			Symbol:           p.InstID,
			Side:             p.Side(),
			Size:             size,
			EntryPrice:       convert.ToFloat64(p.AvgPx),
			MarkPrice:        convert.ToFloat64(p.MarkPx),
			UnrealizedPnL:    convert.ToFloat64(p.Upl),
			Leverage:         p.Lever,
			LiquidationPrice: convert.ToFloat64(p.LiqPx),
		})
	}
	return out
}

// charts 渲染 K 线图；只有支持视觉的模型才附带图片。
func (a *Agent) charts(ctx context.Context, snaps []snapshot.PerpSnapshot) ([]chart.Artifact, []provider.ImagePayload) {
	if a.deps.Charts == nil {
		return nil, nil
	}
	vision := a.deps.Model.SupportsVision()
	var (
		arts   []chart.Artifact
		images []provider.ImagePayload
	)
	for _, snap := range snaps {
		art, err := a.deps.Charts.RenderSnapshot(ctx, snap)
		if err != nil {
			logger.Warnf("渲染 %s 图表失败: %v", snap.Symbol, err)
		}
		if art.HTMLPath == "" {
			continue
		}
		arts = append(arts, art)
		if vision && art.Image != nil {
			if uri := art.Image.DataURI(); uri != "" {
				images = append(images, provider.ImagePayload{DataURI: uri, Description: snap.Symbol + " " + art.Image.Description})
			}
		}
	}
	return arts, images
}

func (a *Agent) log(ctx context.Context, rep CycleReport, system, user string, cause error) {
	if a.deps.Store == nil {
		return
	}
	rec := decisionlog.Record{
		TraceID:          rep.TraceID,
		Timestamp:        rep.StartedAt.UnixMilli(),
		Symbols:          rep.Symbols,
		System:           system,
		User:             user,
		RawOutput:        rep.Result.RawOutput,
		RawJSON:          rep.Result.RawJSON,
		Decisions:        rep.Result.Decisions,
		ActionSummary:    rep.Result.ActionSummary,
		ReasoningSummary: rep.Result.ReasoningSummary,
		DurationMs:       a.nowFn().Sub(rep.StartedAt).Milliseconds(),
	}
	if a.deps.Model != nil {
		rec.ProviderID = a.deps.Model.ID()
	}
	for _, art := range rep.Charts {
		if art.Image != nil {
			rec.ImageCount++
		}
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if _, err := a.deps.Store.Insert(ctx, rec); err != nil {
		logger.Warnf("写入决策日志失败 trace=%s: %v", rep.TraceID, err)
	}
}

func (a *Agent) notify(ctx context.Context, rep CycleReport) {
	if a.deps.Notifier == nil {
		return
	}
	if err := notifier.Send(ctx, a.deps.Notifier, BuildMessage(rep, a.dryRun())); err != nil {
		logger.Warnf("推送通知失败 trace=%s: %v", rep.TraceID, err)
	}
}

func (a *Agent) dryRun() bool {
	return a.deps.Executor == nil || !a.deps.Executor.Enabled()
}

// wakeInstID 把 wake_trigger 的 symbol（可能只是 BTC）映射到配置中的交易对。
func (a *Agent) wakeInstID(raw string) string {
	base := symbol.Base(raw)
	for _, s := range a.opts.Symbols {
		if symbol.Base(s) == base {
			return symbol.ToInstID(s)
		}
	}
	if id := symbol.ToInstID(raw); strings.Contains(id, "-") {
		return id
	}
	return base + "-USDT-SWAP"
}
