package config

import (
	"strings"
	"time"
)

// Config 是 okxagent 的主配置载体。
type Config struct {
	App     AppConfig     `toml:"app" yaml:"app"`
	OKX     OKXConfig     `toml:"okx" yaml:"okx"`
	Market  MarketConfig  `toml:"market" yaml:"market"`
	LLM     LLMConfig     `toml:"llm" yaml:"llm"`
	Prompt  PromptConfig  `toml:"prompt" yaml:"prompt"`
	Loop    LoopConfig    `toml:"loop" yaml:"loop"`
	Trading TradingConfig `toml:"trading" yaml:"trading"`
	Trigger TriggerConfig `toml:"trigger" yaml:"trigger"`
	Store   StoreConfig   `toml:"store" yaml:"store"`
	Chart   ChartConfig   `toml:"chart" yaml:"chart"`
	Notify  NotifyConfig  `toml:"notify" yaml:"notify"`
}

type AppConfig struct {
	Env       string `toml:"env" yaml:"env"`
	LogLevel  string `toml:"log_level" yaml:"log_level"`
	LogDir    string `toml:"log_dir" yaml:"log_dir"`
	LogPrefix string `toml:"log_prefix" yaml:"log_prefix"`
	LLMLog    string `toml:"llm_log_path" yaml:"llm_log_path"`
	LLMDump   bool   `toml:"llm_dump_payload" yaml:"llm_dump_payload"`
	HTTPAddr  string `toml:"http_addr" yaml:"http_addr"`
}

// OKXConfig 交易所访问参数，凭证通常来自环境变量。
type OKXConfig struct {
	BaseURL        string `toml:"base_url" yaml:"base_url"`
	WSPublicURL    string `toml:"ws_public_url" yaml:"ws_public_url"`
	APIKey         string `toml:"api_key" yaml:"api_key"`
	APISecret      string `toml:"api_secret" yaml:"api_secret"`
	Passphrase     string `toml:"passphrase" yaml:"passphrase"`
	Simulated      bool   `toml:"simulated" yaml:"simulated"`
	Proxy          string `toml:"proxy" yaml:"proxy"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
	Retries        int    `toml:"retries" yaml:"retries"`
	RetryCode      string `toml:"retry_code" yaml:"retry_code"`
}

// HasCredentials reports whether private endpoints can be signed.
func (o OKXConfig) HasCredentials() bool {
	return strings.TrimSpace(o.APIKey) != "" &&
		strings.TrimSpace(o.APISecret) != "" &&
		strings.TrimSpace(o.Passphrase) != ""
}

func (o OKXConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// MarketConfig 行情源与快照窗口。
type MarketConfig struct {
	Source         string         `toml:"source" yaml:"source"` // okx | binance
	BinanceBaseURL string         `toml:"binance_base_url" yaml:"binance_base_url"`
	Symbols        []string       `toml:"symbols" yaml:"symbols"`
	IntradayBar    string         `toml:"intraday_bar" yaml:"intraday_bar"`
	SwingBar       string         `toml:"swing_bar" yaml:"swing_bar"`
	Keep           int            `toml:"keep" yaml:"keep"`
	SummaryBars    []string       `toml:"summary_bars" yaml:"summary_bars"`
	SummaryWindows map[string]int `toml:"summary_windows" yaml:"summary_windows"`
	SummaryHistory int            `toml:"summary_history" yaml:"summary_history"`
	// SMA 金叉/死叉信号周期
	SignalBar string `toml:"signal_bar" yaml:"signal_bar"`
	SMAShort  int    `toml:"sma_short" yaml:"sma_short"`
	SMALong   int    `toml:"sma_long" yaml:"sma_long"`
}

// PrimarySymbol is the first configured symbol.
func (m MarketConfig) PrimarySymbol() string {
	if len(m.Symbols) == 0 {
		return ""
	}
	return m.Symbols[0]
}

// LLMConfig OpenAI 兼容接口参数（DeepSeek / OpenAI / 其它网关）。
type LLMConfig struct {
	Provider       string  `toml:"provider" yaml:"provider"`
	BaseURL        string  `toml:"base_url" yaml:"base_url"`
	APIKey         string  `toml:"api_key" yaml:"api_key"`
	Model          string  `toml:"model" yaml:"model"`
	Temperature    float64 `toml:"temperature" yaml:"temperature"`
	MaxTokens      int     `toml:"max_tokens" yaml:"max_tokens"`
	TimeoutSeconds int     `toml:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int     `toml:"max_retries" yaml:"max_retries"`
	JSONMode       bool    `toml:"json_mode" yaml:"json_mode"`
	Vision         bool    `toml:"vision" yaml:"vision"`
}

func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

type PromptConfig struct {
	Dir        string `toml:"dir" yaml:"dir"`
	SystemFile string `toml:"system_file" yaml:"system_file"`
	UserFile   string `toml:"user_file" yaml:"user_file"`
	Watch      bool   `toml:"watch" yaml:"watch"`
}

// LoopConfig 轮询节奏：默认 30 分钟一轮。
type LoopConfig struct {
	Interval       string `toml:"interval" yaml:"interval"`
	Align          bool   `toml:"align" yaml:"align"`
	OffsetSeconds  int    `toml:"offset_seconds" yaml:"offset_seconds"`
	RunImmediately bool   `toml:"run_immediately" yaml:"run_immediately"`
	MaxCycles      int    `toml:"max_cycles" yaml:"max_cycles"`
}

// TradingConfig 下单开关与风控上限。Enabled=false 时只记录计划，不下单。
type TradingConfig struct {
	Enabled         bool    `toml:"enabled" yaml:"enabled"`
	TdMode          string  `toml:"td_mode" yaml:"td_mode"`
	DefaultLeverage int     `toml:"default_leverage" yaml:"default_leverage"`
	MaxLeverage     int     `toml:"max_leverage" yaml:"max_leverage"`
	MaxMarginUSDT   float64 `toml:"max_margin_usdt" yaml:"max_margin_usdt"`
	MinConfidence   float64 `toml:"min_confidence" yaml:"min_confidence"`
	SpotBuyCapUSDT  float64 `toml:"spot_buy_cap_usdt" yaml:"spot_buy_cap_usdt"`
	MinBalanceUSDT  float64 `toml:"min_balance_usdt" yaml:"min_balance_usdt"`
}

type TriggerConfig struct {
	Tolerance           float64 `toml:"tolerance" yaml:"tolerance"`
	PollIntervalSeconds int     `toml:"poll_interval_seconds" yaml:"poll_interval_seconds"`
	MaxChecks           int     `toml:"max_checks" yaml:"max_checks"`
	TimeoutSeconds      int     `toml:"timeout_seconds" yaml:"timeout_seconds"`
	UseWebsocket        bool    `toml:"use_websocket" yaml:"use_websocket"`
}

type StoreConfig struct {
	DecisionDB string `toml:"decision_db" yaml:"decision_db"`
	OrderDB    string `toml:"order_db" yaml:"order_db"`
}

type ChartConfig struct {
	Enabled   bool   `toml:"enabled" yaml:"enabled"`
	Dir       string `toml:"dir" yaml:"dir"`
	RenderPNG bool   `toml:"render_png" yaml:"render_png"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram" yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled" yaml:"enabled"`
	BotToken string `toml:"bot_token" yaml:"bot_token"`
	ChatID   string `toml:"chat_id" yaml:"chat_id"`
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}
