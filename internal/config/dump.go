package config

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Dump renders the effective configuration as YAML with secrets masked.
func (c Config) Dump() (string, error) {
	c.OKX.APIKey = mask(c.OKX.APIKey)
	c.OKX.APISecret = mask(c.OKX.APISecret)
	c.OKX.Passphrase = mask(c.OKX.Passphrase)
	c.LLM.APIKey = mask(c.LLM.APIKey)
	c.Notify.Telegram.BotToken = mask(c.Notify.Telegram.BotToken)
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func mask(secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ""
	}
	if len(secret) <= 6 {
		return "***"
	}
	return secret[:3] + "***" + secret[len(secret)-2:]
}
