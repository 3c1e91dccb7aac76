package main

import (
	"okxagent/internal/app"
	"okxagent/internal/logger"

	"github.com/spf13/cobra"
)

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "启动决策循环与 HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Build(c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Run(cmd.Context()); err != nil {
				return err
			}
			logger.Infof("okxagent 已退出")
			return nil
		},
	}
}

func (c *cli) onceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "执行单轮决策并输出结果",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Build(c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			rep, runErr := a.RunOnce(cmd.Context())
			out := map[string]any{
				"trace_id":       rep.TraceID,
				"decisions":      rep.Result.Decisions,
				"action_summary": rep.Result.ActionSummary,
				"wake_trigger":   rep.Result.WakeTrigger,
				"actions":        rep.Actions,
				"charts":         rep.Charts,
			}
			if rep.Error != "" {
				out["error"] = rep.Error
			}
			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			return runErr
		},
	}
}

func (c *cli) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "打印生效配置（密钥已脱敏）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.cfg.Dump()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write([]byte(out))
			return err
		},
	}
}
