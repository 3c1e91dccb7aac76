package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func parseSide(raw string) (string, error) {
	switch s := strings.ToLower(strings.TrimSpace(raw)); s {
	case "buy", "sell":
		return s, nil
	default:
		return "", fmt.Errorf("side 必须是 buy 或 sell: %q", raw)
	}
}

func (c *cli) spotBuyCmd() *cobra.Command {
	var execute bool
	cmd := &cobra.Command{
		Use:   "spot-buy <symbol> <usdt>",
		Short: "以 USDT 金额市价买入现货（单笔受 trading.spot_buy_cap_usdt 限制）",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			usdt, err := parsePositive("usdt", args[1])
			if err != nil {
				return err
			}
			exec, err := c.executor(execute)
			if err != nil {
				return err
			}
			res, err := exec.MarketBuySpot(cmd.Context(), args[0], usdt)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&execute, "execute", false, "真实下单（忽略 trading.enabled）")
	return cmd
}

func (c *cli) spotSellCmd() *cobra.Command {
	var execute bool
	cmd := &cobra.Command{
		Use:   "spot-sell <symbol> <amount>",
		Short: "市价卖出现货（数量为基础币）",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parsePositive("amount", args[1])
			if err != nil {
				return err
			}
			exec, err := c.executor(execute)
			if err != nil {
				return err
			}
			res, err := exec.MarketSell(cmd.Context(), args[0], amount)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&execute, "execute", false, "真实下单（忽略 trading.enabled）")
	return cmd
}

func (c *cli) limitCmd() *cobra.Command {
	var (
		tdMode  string
		execute bool
	)
	cmd := &cobra.Command{
		Use:   "limit <symbol> buy|sell <price> <size>",
		Short: "普通限价单（现货或永续，不带止盈止损）",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := parseSide(args[1])
			if err != nil {
				return err
			}
			px, err := parsePositive("price", args[2])
			if err != nil {
				return err
			}
			size, err := parsePositive("size", args[3])
			if err != nil {
				return err
			}
			exec, err := c.executor(execute)
			if err != nil {
				return err
			}
			res, err := exec.LimitOrder(cmd.Context(), args[0], side, px, size, strings.ToLower(tdMode))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&tdMode, "td-mode", "", "cash | isolated | cross（默认现货 cash，永续 trading.td_mode）")
	cmd.Flags().BoolVar(&execute, "execute", false, "真实下单（忽略 trading.enabled）")
	return cmd
}

func (c *cli) tpslCmd() *cobra.Command {
	var (
		posSide string
		tp, sl  float64
		execute bool
	)
	cmd := &cobra.Command{
		Use:   "tpsl <symbol> buy|sell <size>",
		Short: "对已有持仓挂市价止盈止损（两者都给出时为 oco）",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := parseSide(args[1])
			if err != nil {
				return err
			}
			size, err := parsePositive("size", args[2])
			if err != nil {
				return err
			}
			exec, err := c.executor(execute)
			if err != nil {
				return err
			}
			ack, err := exec.PlaceTPSLMarket(cmd.Context(), args[0], side, posSide, size, tp, sl)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ack)
		},
	}
	f := cmd.Flags()
	f.StringVar(&posSide, "pos-side", "", "long | short（单向持仓留空）")
	f.Float64Var(&tp, "tp", 0, "止盈触发价")
	f.Float64Var(&sl, "sl", 0, "止损触发价")
	f.BoolVar(&execute, "execute", false, "真实下单（忽略 trading.enabled）")
	return cmd
}

func (c *cli) cancelCmd() *cobra.Command {
	var (
		ordID, clOrdID string
		execute        bool
	)
	cmd := &cobra.Command{
		Use:   "cancel <symbol>",
		Short: "撤销单个订单（--ord-id 或 --cl-ord-id）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := c.executor(execute)
			if err != nil {
				return err
			}
			ack, err := exec.Cancel(cmd.Context(), args[0], ordID, clOrdID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ack)
		},
	}
	f := cmd.Flags()
	f.StringVar(&ordID, "ord-id", "", "交易所订单号")
	f.StringVar(&clOrdID, "cl-ord-id", "", "客户端订单号")
	f.BoolVar(&execute, "execute", false, "真实撤单（忽略 trading.enabled）")
	cmd.MarkFlagsOneRequired("ord-id", "cl-ord-id")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [symbol]",
		Short: "最近 7 天订单（不指定时查询永续合约）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := c.executor(false)
			if err != nil {
				return err
			}
			instID := ""
			if len(args) == 1 {
				instID = args[0]
			}
			rows, err := exec.History(cmd.Context(), instID, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "最多返回条数")
	return cmd
}
