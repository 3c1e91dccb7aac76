package main

import (
	"fmt"
	"strings"

	"okxagent/internal/app"
	"okxagent/internal/pkg/symbol"
	"okxagent/internal/trade"

	"github.com/spf13/cobra"
)

// executor 下单相关子命令共用；--execute 覆盖 trading.enabled。
func (c *cli) executor(execute bool) (*trade.Executor, error) {
	orders, cleanup, err := app.ProvideOrderLog(c.cfg)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, closerFunc(cleanup))
	opts := trade.OptionsFromConfig(c.cfg.Trading)
	if execute {
		opts.Enabled = true
	}
	return trade.NewExecutor(app.ProvideOKXClient(c.cfg), orders, opts), nil
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

func (c *cli) orderCmd() *cobra.Command {
	var (
		o       trade.SwapOrder
		sym     string
		execute bool
	)
	cmd := &cobra.Command{
		Use:   "order",
		Short: "挂永续限价单并附带止盈止损",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := c.executor(execute)
			if err != nil {
				return err
			}
			o.InstID = symbol.ToInstID(sym)
			res, err := exec.PlaceSwapLimit(cmd.Context(), o)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	f := cmd.Flags()
	f.StringVar(&sym, "symbol", "", "交易对，如 BTC/USDT:USDT 或 BTC-USDT-SWAP")
	f.StringVar(&o.Side, "side", "", "buy | sell")
	f.StringVar(&o.PosSide, "pos-side", "", "long | short | net")
	f.Float64Var(&o.USDT, "usdt", 0, "保证金（USDT）")
	f.Float64Var(&o.LimitPx, "px", 0, "限价")
	f.Float64Var(&o.TakeProfit, "tp", 0, "止盈触发价")
	f.Float64Var(&o.StopLoss, "sl", 0, "止损触发价")
	f.IntVar(&o.Leverage, "lev", 0, "杠杆（默认 trading.default_leverage）")
	f.StringVar(&o.TdMode, "td-mode", "", "isolated | cross（默认 trading.td_mode）")
	f.BoolVar(&execute, "execute", false, "真实下单（忽略 trading.enabled）")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("side")
	return cmd
}

func parsePosSide(raw string) (string, error) {
	switch s := strings.ToLower(strings.TrimSpace(raw)); s {
	case "long", "short":
		return s, nil
	default:
		return "", fmt.Errorf("posSide 必须是 long 或 short: %q", raw)
	}
}

func (c *cli) closeCmd() *cobra.Command {
	var execute bool
	cmd := &cobra.Command{
		Use:   "close <symbol> long|short <price>",
		Short: "限价只减仓平掉指定方向的持仓",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			posSide, err := parsePosSide(args[1])
			if err != nil {
				return err
			}
			px, err := parsePositive("price", args[2])
			if err != nil {
				return err
			}
			exec, err := c.executor(execute)
			if err != nil {
				return err
			}
			res, err := exec.ClosePosition(cmd.Context(), symbol.ToInstID(args[0]), posSide, px)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&execute, "execute", false, "真实下单（忽略 trading.enabled）")
	return cmd
}

func (c *cli) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [ccy]",
		Short: "查询交易账户余额",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ccy := ""
			if len(args) == 1 {
				ccy = strings.ToUpper(args[0])
			}
			bal, err := app.ProvideOKXClient(c.cfg).Balance(cmd.Context(), ccy)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), bal)
		},
	}
}

func (c *cli) positionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "positions [symbol]",
		Short: "查询永续合约持仓",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instID := ""
			if len(args) == 1 {
				instID = symbol.ToInstID(args[0])
			}
			rows, err := app.ProvideOKXClient(c.cfg).Positions(cmd.Context(), "SWAP", instID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rows)
		},
	}
}

func (c *cli) cancelAllCmd() *cobra.Command {
	var execute bool
	cmd := &cobra.Command{
		Use:   "cancel-all [symbol]",
		Short: "撤销全部挂单（不指定时包含 SWAP 与 SPOT）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := c.executor(execute)
			if err != nil {
				return err
			}
			instID := ""
			if len(args) == 1 {
				instID = symbol.ToInstID(args[0])
			}
			acks, err := exec.CancelAll(cmd.Context(), instID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), acks)
		},
	}
	cmd.Flags().BoolVar(&execute, "execute", false, "真实撤单（忽略 trading.enabled）")
	return cmd
}
