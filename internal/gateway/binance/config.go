package binance

import (
	"strings"
	"time"
)

const defaultRESTBaseURL = "https://fapi.binance.com"

type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
	// ProxyURL applies to REST calls; empty means direct.
	ProxyURL string
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimRight(strings.TrimSpace(out.RESTBaseURL), "/")
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = defaultRESTBaseURL
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	out.ProxyURL = strings.TrimSpace(out.ProxyURL)
	return out
}
