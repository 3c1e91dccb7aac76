package config

import (
	"strings"

	"okxagent/internal/pkg/symbol"
)

// 默认值常量
const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppLogDir       = "log"
	defaultAppLogPrefix    = "okx_trade_agent_log"
	defaultAppLLMLogPath   = "log/okx_trade_agent_llm.log"
	defaultAppHTTPAddr     = ":9991"
	defaultOKXBaseURL      = "https://www.okx.com"
	defaultOKXWSLive       = "wss://ws.okx.com:8443/ws/v5/public"
	defaultOKXWSPaper      = "wss://wspap.okx.com:8443/ws/v5/public"
	defaultOKXTimeout      = 15
	defaultOKXRetries      = 2
	defaultOKXRetryCode    = "50001"
	defaultMarketSource    = "okx"
	defaultBinanceBaseURL  = "https://fapi.binance.com"
	defaultIntradayBar     = "3m"
	defaultSwingBar        = "4h"
	defaultKeep            = 10
	defaultSummaryHistory  = 5
	defaultLLMProvider     = "deepseek"
	defaultLLMBaseURL      = "https://api.deepseek.com/v1"
	defaultLLMModel        = "deepseek-chat"
	defaultLLMTemperature  = 0.2
	defaultLLMMaxTokens    = 2048
	defaultLLMTimeout      = 120
	defaultLLMMaxRetries   = 2
	defaultPromptDir       = "prompts"
	defaultPromptSystem    = "system_prompt.txt"
	defaultPromptUser      = "user_prompt.tmpl"
	defaultLoopInterval    = "30m"
	defaultTdMode          = "isolated"
	defaultLeverage        = 1
	defaultMaxLeverage     = 10
	defaultSpotBuyCap      = 20
	defaultMinBalance      = 5
	defaultTriggerTol      = 0
	defaultTriggerPoll     = 5
	defaultTriggerChecks   = 120
	defaultTriggerTimeout  = 600
	defaultDecisionDB      = "data/decisions.db"
	defaultOrderDB         = "data/orders.db"
	defaultChartDir        = "data/charts"
	defaultMinConfidence   = 0
	defaultLoopOffsetSecs  = 0
	defaultSummaryFallback = 20
	defaultSignalBar       = "1m"
	defaultSMAShort        = 20
	defaultSMALong         = 50
)

// DefaultSummaryWindows 各周期摘要窗口（根数）。
var DefaultSummaryWindows = map[string]int{
	"1m":  30,
	"30m": 12,
	"1h":  24,
	"1d":  7,
}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.OKX.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.LLM.applyDefaults(keys)
	c.Prompt.applyDefaults(keys)
	c.Loop.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Trigger.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Chart.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_dir", &a.LogDir, defaultAppLogDir),
		stringFieldDefault("app.log_prefix", &a.LogPrefix, defaultAppLogPrefix),
		stringFieldDefault("app.llm_log_path", &a.LLMLog, defaultAppLLMLogPath),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (o *OKXConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("okx.base_url", &o.BaseURL, defaultOKXBaseURL),
		boolFieldDefault("okx.simulated", &o.Simulated, true),
		intFieldDefault("okx.timeout_seconds", &o.TimeoutSeconds, defaultOKXTimeout),
		stringFieldDefault("okx.retry_code", &o.RetryCode, defaultOKXRetryCode),
		intFieldDefault("okx.retries", &o.Retries, defaultOKXRetries),
	)
	if strings.TrimSpace(o.WSPublicURL) == "" {
		o.WSPublicURL = defaultOKXWSLive
		if o.Simulated {
			o.WSPublicURL = defaultOKXWSPaper
		}
	}
	o.BaseURL = strings.TrimRight(strings.TrimSpace(o.BaseURL), "/")
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("market.source", &m.Source, defaultMarketSource),
		stringFieldDefault("market.binance_base_url", &m.BinanceBaseURL, defaultBinanceBaseURL),
		stringFieldDefault("market.intraday_bar", &m.IntradayBar, defaultIntradayBar),
		stringFieldDefault("market.swing_bar", &m.SwingBar, defaultSwingBar),
		intFieldDefault("market.keep", &m.Keep, defaultKeep),
		intFieldDefault("market.summary_history", &m.SummaryHistory, defaultSummaryHistory),
		stringFieldDefault("market.signal_bar", &m.SignalBar, defaultSignalBar),
		intFieldDefault("market.sma_short", &m.SMAShort, defaultSMAShort),
		intFieldDefault("market.sma_long", &m.SMALong, defaultSMALong),
	)
	m.Source = strings.ToLower(strings.TrimSpace(m.Source))
	if len(m.Symbols) == 0 {
		m.Symbols = symbol.ParseList(DefaultSymbols)
	} else {
		m.Symbols = symbol.ParseList(strings.Join(m.Symbols, ","))
	}
	if len(m.SummaryWindows) == 0 {
		m.SummaryWindows = make(map[string]int, len(DefaultSummaryWindows))
		for k, v := range DefaultSummaryWindows {
			m.SummaryWindows[k] = v
		}
	}
}

// SummaryWindow returns the candle window for a timeframe summary.
func (m MarketConfig) SummaryWindow(bar string) int {
	if w, ok := m.SummaryWindows[strings.ToLower(strings.TrimSpace(bar))]; ok && w > 0 {
		return w
	}
	return defaultSummaryFallback
}

func (l *LLMConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("llm.provider", &l.Provider, defaultLLMProvider),
		stringFieldDefault("llm.base_url", &l.BaseURL, defaultLLMBaseURL),
		stringFieldDefault("llm.model", &l.Model, defaultLLMModel),
		intFieldDefault("llm.max_tokens", &l.MaxTokens, defaultLLMMaxTokens),
		intFieldDefault("llm.timeout_seconds", &l.TimeoutSeconds, defaultLLMTimeout),
		intFieldDefault("llm.max_retries", &l.MaxRetries, defaultLLMMaxRetries),
		boolFieldDefault("llm.json_mode", &l.JSONMode, true),
		fieldDefault{
			key:   "llm.temperature",
			need:  func() bool { return l.Temperature <= 0 },
			apply: func() { l.Temperature = defaultLLMTemperature },
		},
	)
}

func (p *PromptConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("prompt.dir", &p.Dir, defaultPromptDir),
		stringFieldDefault("prompt.system_file", &p.SystemFile, defaultPromptSystem),
		stringFieldDefault("prompt.user_file", &p.UserFile, defaultPromptUser),
	)
}

func (l *LoopConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("loop.interval", &l.Interval, defaultLoopInterval),
		boolFieldDefault("loop.run_immediately", &l.RunImmediately, true),
		intFieldDefault("loop.offset_seconds", &l.OffsetSeconds, defaultLoopOffsetSecs),
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("trading.td_mode", &t.TdMode, defaultTdMode),
		intFieldDefault("trading.default_leverage", &t.DefaultLeverage, defaultLeverage),
		intFieldDefault("trading.max_leverage", &t.MaxLeverage, defaultMaxLeverage),
		floatFieldDefault("trading.spot_buy_cap_usdt", &t.SpotBuyCapUSDT, defaultSpotBuyCap),
		floatFieldDefault("trading.min_balance_usdt", &t.MinBalanceUSDT, defaultMinBalance),
		floatFieldDefault("trading.min_confidence", &t.MinConfidence, defaultMinConfidence),
	)
	t.TdMode = strings.ToLower(strings.TrimSpace(t.TdMode))
	if t.MaxMarginUSDT < 0 {
		t.MaxMarginUSDT = 0
	}
}

func (t *TriggerConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		floatFieldDefault("trigger.tolerance", &t.Tolerance, defaultTriggerTol),
		intFieldDefault("trigger.poll_interval_seconds", &t.PollIntervalSeconds, defaultTriggerPoll),
		intFieldDefault("trigger.max_checks", &t.MaxChecks, defaultTriggerChecks),
		intFieldDefault("trigger.timeout_seconds", &t.TimeoutSeconds, defaultTriggerTimeout),
		boolFieldDefault("trigger.use_websocket", &t.UseWebsocket, true),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("store.decision_db", &s.DecisionDB, defaultDecisionDB),
		stringFieldDefault("store.order_db", &s.OrderDB, defaultOrderDB),
	)
}

func (c *ChartConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("chart.dir", &c.Dir, defaultChartDir),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

// boolFieldDefault 仅在键未显式设置时生效。
func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		apply: func() { *target = def },
	}
}
