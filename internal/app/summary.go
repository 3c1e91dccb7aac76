package app

import (
	"fmt"
	"strings"

	"okxagent/internal/config"
	"okxagent/internal/prompt"
)

// StartupSummary 启动时打印的配置摘要。
type StartupSummary struct {
	Symbols      []string
	Source       string
	IntradayBar  string
	SwingBar     string
	Keep         int
	Interval     string
	Align        bool
	Model        string
	Vision       bool
	Trading      bool
	TdMode       string
	MaxLeverage  int
	MaxMargin    float64
	Simulated    bool
	HTTPAddr     string
	SystemPrompt string
}

func NewStartupSummary(cfg *config.Config, prompts *prompt.Store) *StartupSummary {
	if cfg == nil {
		return nil
	}
	s := &StartupSummary{
		Symbols:     cfg.Market.Symbols,
		Source:      cfg.Market.Source,
		IntradayBar: cfg.Market.IntradayBar,
		SwingBar:    cfg.Market.SwingBar,
		Keep:        cfg.Market.Keep,
		Interval:    cfg.Loop.Interval,
		Align:       cfg.Loop.Align,
		Model:       cfg.LLM.Provider + ":" + cfg.LLM.Model,
		Vision:      cfg.LLM.Vision,
		Trading:     cfg.Trading.Enabled,
		TdMode:      cfg.Trading.TdMode,
		MaxLeverage: cfg.Trading.MaxLeverage,
		MaxMargin:   cfg.Trading.MaxMarginUSDT,
		Simulated:   cfg.OKX.Simulated,
		HTTPAddr:    cfg.App.HTTPAddr,
	}
	if prompts != nil {
		s.SystemPrompt = prompts.System(prompt.SystemVars(cfg.Market.Symbols))
	}
	return s
}

func (s *StartupSummary) String() string {
	var b strings.Builder
	line := strings.Repeat("=", 80)
	b.WriteString(line + "\n")
	title := "启动配置摘要 (STARTUP SUMMARY)"
	fmt.Fprintf(&b, "%*s\n", 40+len(title)/2, title)
	b.WriteString(line + "\n")

	b.WriteString("[行情 (MARKET)]\n")
	fmt.Fprintf(&b, "  监控币种: %s\n", formatList(s.Symbols))
	fmt.Fprintf(&b, "  数据源: %s  日内周期: %s  波段周期: %s  序列长度: %d\n", s.Source, s.IntradayBar, s.SwingBar, s.Keep)
	b.WriteString("\n[循环 (LOOP)]\n")
	fmt.Fprintf(&b, "  间隔: %s  对齐K线: %v\n", s.Interval, s.Align)
	b.WriteString("\n[模型 (LLM)]\n")
	fmt.Fprintf(&b, "  %s  vision=%v\n", s.Model, s.Vision)
	b.WriteString("\n[交易 (TRADING)]\n")
	mode := "dry-run"
	if s.Trading {
		mode = "实盘下单"
	}
	if s.Simulated {
		mode += " (模拟盘)"
	}
	fmt.Fprintf(&b, "  模式: %s  td_mode=%s  最大杠杆=%d  单笔保证金上限=%.2fU\n", mode, s.TdMode, s.MaxLeverage, s.MaxMargin)
	if s.HTTPAddr != "" {
		fmt.Fprintf(&b, "  HTTP API: %s\n", s.HTTPAddr)
	}
	if s.SystemPrompt != "" {
		b.WriteString("\n[System Prompt]\n")
		preview := s.SystemPrompt
		if lines := strings.Split(preview, "\n"); len(lines) > 5 {
			preview = strings.Join(lines[:5], "\n") + "\n... (truncated)"
		}
		b.WriteString("  " + strings.ReplaceAll(preview, "\n", "\n  ") + "\n")
	}
	b.WriteString(line)
	return b.String()
}

func (s *StartupSummary) Print() {
	fmt.Println(s.String())
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
