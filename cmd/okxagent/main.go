package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"okxagent/internal/config"
	"okxagent/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

// cli 保存全局 flag 与加载后的配置。
type cli struct {
	configPath string
	envFile    string
	cfg        *config.Config
	closers    []io.Closer
}

func main() {
	c := &cli{}
	root := c.rootCmd()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	c.close()
	if err != nil {
		os.Exit(1)
	}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "okxagent",
		Short:         "LLM 驱动的 OKX 永续合约交易代理",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", envOr("OKXAGENT_CONFIG", defaultConfigPath), "配置文件路径")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "环境变量文件（不存在时忽略）")
	root.AddCommand(
		c.runCmd(),
		c.onceCmd(),
		c.snapshotCmd(),
		c.triggerCmd(),
		c.orderCmd(),
		c.closeCmd(),
		c.balanceCmd(),
		c.positionsCmd(),
		c.spotBuyCmd(),
		c.spotSellCmd(),
		c.limitCmd(),
		c.tpslCmd(),
		c.cancelCmd(),
		c.historyCmd(),
		c.cancelAllCmd(),
		c.configCmd(),
	)
	return root
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// setup 加载 .env 与配置，并把日志接到按日切分的文件。
func (c *cli) setup(cmd *cobra.Command) error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("加载 %s 失败: %w", c.envFile, err)
		}
	}
	path := c.configPath
	if _, err := os.Stat(path); err != nil && !cmd.Flags().Changed("config") && os.Getenv("OKXAGENT_CONFIG") == "" {
		// 默认配置文件不存在时只用环境变量与默认值
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("读取配置失败: %w", err)
	}
	c.cfg = cfg
	logger.SetLevel(cfg.App.LogLevel)

	daily, err := logger.NewDailyFile(cfg.App.LogDir, cfg.App.LogPrefix)
	if err != nil {
		return fmt.Errorf("初始化日志文件失败: %w", err)
	}
	c.closers = append(c.closers, daily)
	logger.SetOutput(io.MultiWriter(os.Stdout, daily))

	if llmPath := strings.TrimSpace(cfg.App.LLMLog); llmPath != "" {
		if err := os.MkdirAll(filepath.Dir(llmPath), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(llmPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("初始化 LLM 日志失败: %w", err)
		}
		c.closers = append(c.closers, f)
		logger.SetLLMWriter(f)
	}
	logger.EnableLLMPayloadDump(cfg.App.LLMDump)
	logger.Debugf("✓ 配置加载成功（环境=%s，symbols=%s）", cfg.App.Env, strings.Join(cfg.Market.Symbols, ","))
	return nil
}

func (c *cli) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i].Close()
	}
	c.closers = nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
