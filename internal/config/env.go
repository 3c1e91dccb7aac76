package config

import (
	"strconv"
	"strings"

	"okxagent/internal/pkg/symbol"
)

// DefaultSymbols 未设置 OKX_SYMBOLS 时使用的永续合约列表。
const DefaultSymbols = "BTC/USDT:USDT,DOGE/USDT:USDT,ETH/USDT:USDT,SOL/USDT:USDT"

type lookupFunc func(string) (string, bool)

type envBinding struct {
	names []string
	key   string
	apply func(string)
}

// applyEnv 环境变量优先于配置文件；被覆盖的键会记入 keys，默认值不再生效。
func (c *Config) applyEnv(lookup lookupFunc, keys keySet) {
	if lookup == nil {
		return
	}
	setString := func(dst *string) func(string) {
		return func(v string) { *dst = v }
	}
	bindings := []envBinding{
		{names: []string{"OKX_API_KEY"}, key: "okx.api_key", apply: setString(&c.OKX.APIKey)},
		{names: []string{"OKX_API_SECRET", "OKX_SECRET_KEY"}, key: "okx.api_secret", apply: setString(&c.OKX.APISecret)},
		{names: []string{"OKX_API_PASSPHRASE", "OKX_PASSPHRASE"}, key: "okx.passphrase", apply: setString(&c.OKX.Passphrase)},
		{names: []string{"OKX_SIMULATED"}, key: "okx.simulated", apply: func(v string) { c.OKX.Simulated = parseBool(v) }},
		{names: []string{"OKX_BASE_URL"}, key: "okx.base_url", apply: setString(&c.OKX.BaseURL)},
		{names: []string{"HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy"}, key: "okx.proxy", apply: setString(&c.OKX.Proxy)},
		{names: []string{"OKX_SYMBOLS"}, key: "market.symbols", apply: func(v string) { c.Market.Symbols = symbol.ParseList(v) }},
		{names: []string{"MARKET_SOURCE"}, key: "market.source", apply: setString(&c.Market.Source)},
		{names: []string{"LLM_API_KEY", "DEEPSEEK_API_KEY", "OPENAI_API_KEY"}, key: "llm.api_key", apply: setString(&c.LLM.APIKey)},
		{names: []string{"LLM_BASE_URL", "OPENAI_BASE_URL"}, key: "llm.base_url", apply: setString(&c.LLM.BaseURL)},
		{names: []string{"LLM_MODEL"}, key: "llm.model", apply: setString(&c.LLM.Model)},
		{names: []string{"TRADING_ENABLED"}, key: "trading.enabled", apply: func(v string) { c.Trading.Enabled = parseBool(v) }},
		{names: []string{"TELEGRAM_BOT_TOKEN"}, key: "notify.telegram.bot_token", apply: setString(&c.Notify.Telegram.BotToken)},
		{names: []string{"TELEGRAM_CHAT_ID"}, key: "notify.telegram.chat_id", apply: setString(&c.Notify.Telegram.ChatID)},
		{names: []string{"LOG_LEVEL"}, key: "app.log_level", apply: setString(&c.App.LogLevel)},
	}
	for _, b := range bindings {
		for _, name := range b.names {
			v, ok := lookup(name)
			v = strings.TrimSpace(v)
			if !ok || v == "" {
				continue
			}
			b.apply(v)
			keys.mark(b.key)
			break
		}
	}
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "yes", "y", "on":
		return true
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
