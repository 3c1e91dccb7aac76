package config

import (
	"fmt"
	"strings"
	"time"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.OKX.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.LLM.validate(); err != nil {
		return err
	}
	if err := c.Loop.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(c.OKX); err != nil {
		return err
	}
	if err := c.Trigger.validate(); err != nil {
		return err
	}
	return c.Notify.validate()
}

func (o *OKXConfig) validate() error {
	if !strings.HasPrefix(o.BaseURL, "http://") && !strings.HasPrefix(o.BaseURL, "https://") {
		return fmt.Errorf("okx.base_url must be an http(s) URL, got %q", o.BaseURL)
	}
	if o.Retries < 0 {
		return fmt.Errorf("okx.retries must be >= 0")
	}
	return nil
}

func (m *MarketConfig) validate() error {
	switch m.Source {
	case "okx", "binance":
	default:
		return fmt.Errorf("market.source must be okx or binance, got %q", m.Source)
	}
	if len(m.Symbols) == 0 {
		return fmt.Errorf("market.symbols requires at least one symbol")
	}
	if m.Keep <= 0 {
		return fmt.Errorf("market.keep must be > 0")
	}
	if m.SMAShort >= m.SMALong {
		return fmt.Errorf("market.sma_short (%d) must be less than market.sma_long (%d)", m.SMAShort, m.SMALong)
	}
	return nil
}

func (l *LLMConfig) validate() error {
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model cannot be empty")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2]")
	}
	return nil
}

func (l *LoopConfig) validate() error {
	d, err := l.IntervalDuration()
	if err != nil {
		return err
	}
	if d < time.Minute {
		return fmt.Errorf("loop.interval must be >= 1m, got %s", d)
	}
	if l.OffsetSeconds < 0 {
		return fmt.Errorf("loop.offset_seconds must be >= 0")
	}
	if l.MaxCycles < 0 {
		return fmt.Errorf("loop.max_cycles must be >= 0")
	}
	return nil
}

// IntervalDuration accepts Go durations ("30m", "1h30m") and bar-style "1d".
func (l LoopConfig) IntervalDuration() (time.Duration, error) {
	raw := strings.TrimSpace(l.Interval)
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	if strings.HasSuffix(raw, "d") {
		if d, err := time.ParseDuration(strings.TrimSuffix(raw, "d") + "h"); err == nil {
			return d * 24, nil
		}
	}
	return 0, fmt.Errorf("loop.interval invalid: %q", l.Interval)
}

func (t *TradingConfig) validate(okx OKXConfig) error {
	switch t.TdMode {
	case "isolated", "cross":
	default:
		return fmt.Errorf("trading.td_mode must be isolated or cross, got %q", t.TdMode)
	}
	if t.DefaultLeverage > t.MaxLeverage {
		return fmt.Errorf("trading.default_leverage (%d) exceeds trading.max_leverage (%d)", t.DefaultLeverage, t.MaxLeverage)
	}
	if t.MinConfidence < 0 || t.MinConfidence > 1 {
		return fmt.Errorf("trading.min_confidence must be within [0, 1]")
	}
	if t.Enabled && !okx.HasCredentials() {
		return fmt.Errorf("trading.enabled requires OKX_API_KEY, OKX_API_SECRET and OKX_API_PASSPHRASE")
	}
	return nil
}

func (t *TriggerConfig) validate() error {
	if t.Tolerance < 0 {
		return fmt.Errorf("trigger.tolerance must be >= 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if tg.Enabled && (strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "") {
		return fmt.Errorf("notify.telegram.enabled requires bot_token and chat_id")
	}
	return nil
}
