package agent

import (
	"fmt"

	"okxagent/internal/gateway/notifier"
)

// BuildMessage 把一轮结果整理成 Telegram 推送。
func BuildMessage(rep CycleReport, dryRun bool) notifier.StructuredMessage {
	msg := notifier.StructuredMessage{
		Icon:      "🤖",
		Title:     fmt.Sprintf("决策周期 #%d", rep.Seq),
		Footer:    "trace=" + rep.TraceID,
		Timestamp: rep.StartedAt,
	}
	if rep.Error != "" {
		msg.Icon = "⚠️"
		msg.AddSection("错误", rep.Error)
	}

	prices := make([]string, 0, len(rep.Snapshots))
	for _, s := range rep.Snapshots {
		prices = append(prices, fmt.Sprintf("%s %g (24h %+.2f%%)", s.Symbol, s.CurrentPrice, s.Change24hPct))
	}
	msg.AddSection("行情", prices...)

	decisions := make([]string, 0, len(rep.Result.Decisions))
	for _, d := range rep.Result.Decisions {
		decisions = append(decisions, d.String())
	}
	msg.AddSection("决策", decisions...)
	msg.AddSection("摘要", rep.Result.ActionSummary)

	mode := "实盘"
	if dryRun {
		mode = "dry-run"
	}
	actions := make([]string, 0, len(rep.Actions))
	for _, act := range rep.Actions {
		line := fmt.Sprintf("[%s] %s %s", mode, act.Kind, act.InstID)
		switch {
		case act.Error != "":
			line += " 失败: " + act.Error
		case act.Skipped != "":
			line += " 跳过: " + act.Skipped
		case act.Margin > 0:
			line += fmt.Sprintf(" 保证金=%.2fU", act.Margin)
		}
		for _, o := range act.Orders {
			line += fmt.Sprintf(" | %s %s px=%v sz=%s", o.Side, o.ClOrdID, o.Price, o.Size)
		}
		actions = append(actions, line)
	}
	msg.AddSection("执行", actions...)

	if wt := rep.Result.WakeTrigger; wt != nil {
		msg.AddSection("唤醒条件", fmt.Sprintf("%s %s %g", wt.Symbol, wt.Direction, wt.Price))
	}
	return msg
}
