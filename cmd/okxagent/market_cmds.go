package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"okxagent/internal/app"
	"okxagent/internal/snapshot"
	"okxagent/internal/trigger"

	"github.com/spf13/cobra"
)

func (c *cli) snapshotCmd() *cobra.Command {
	var withSummary bool
	cmd := &cobra.Command{
		Use:   "snapshot <symbol>",
		Short: "输出单个币种的行情快照",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := app.ProvideMarketSource(c.cfg, app.ProvideOKXClient(c.cfg))
			if err != nil {
				return err
			}
			builder := app.ProvideSnapshotBuilder(c.cfg, src)
			snap, err := builder.Build(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !withSummary {
				return printJSON(cmd.OutOrStdout(), snap)
			}
			bars := c.cfg.Market.SummaryBars
			if len(bars) == 0 {
				bars = []string{"1h", "1d"}
			}
			sums, err := builder.Summaries(cmd.Context(), args[0], bars, c.cfg.Market.SummaryWindows, c.cfg.Market.SummaryHistory)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Snapshot  snapshot.PerpSnapshot       `json:"snapshot"`
				Summaries []snapshot.TimeframeSummary `json:"summaries"`
			}{snap, sums})
		},
	}
	cmd.Flags().BoolVar(&withSummary, "summary", false, "附带多周期摘要")
	return cmd
}

func parseDirection(raw string) (string, error) {
	switch d := strings.ToLower(strings.TrimSpace(raw)); d {
	case "above", "below":
		return d, nil
	default:
		return "", fmt.Errorf("direction 必须是 above 或 below: %q", raw)
	}
}

func parsePositive(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s 必须是正数: %q", name, raw)
	}
	return v, nil
}

func (c *cli) triggerCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "trigger <symbol> above|below <price>",
		Short: "等待价格触发（websocket 优先，失败回退轮询）",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := parseDirection(args[1])
			if err != nil {
				return err
			}
			px, err := parsePositive("price", args[2])
			if err != nil {
				return err
			}
			mgr := app.ProvideTriggerManager(c.cfg, app.ProvideOKXClient(c.cfg))
			w, err := mgr.Watch(cmd.Context(), trigger.Condition{InstID: args[0], Direction: dir, Target: px})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), w.Wait(timeout))
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "最长等待时间（0 使用 trigger.timeout_seconds）")
	return cmd
}
