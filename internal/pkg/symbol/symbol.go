// Package symbol converts between unified symbols (BTC/USDT:USDT) and exchange
// instrument ids (BTC-USDT-SWAP, BTCUSDT).
package symbol

import (
	"strings"
)

// Symbol is a parsed market. Settle is set for perpetual swaps.
type Symbol struct {
	Base   string
	Quote  string
	Settle string
}

// Swap reports whether the symbol denotes a perpetual swap.
func (s Symbol) Swap() bool { return s.Settle != "" }

// Unified renders BASE/QUOTE[:SETTLE].
func (s Symbol) Unified() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	if s.Settle != "" {
		return s.Base + "/" + s.Quote + ":" + s.Settle
	}
	return s.Base + "/" + s.Quote
}

// InstID renders the OKX instrument id.
func (s Symbol) InstID() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	if s.Swap() {
		return s.Base + "-" + s.Quote + "-SWAP"
	}
	return s.Base + "-" + s.Quote
}

// Binance renders the Binance futures symbol.
func (s Symbol) Binance() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

var quoteCurrencies = []string{"USDT", "USDC", "BUSD", "USD", "BTC", "ETH"}

// Parse accepts BTC/USDT:USDT, BTC/USDT, BTC-USDT-SWAP, BTC-USDT and BTCUSDT.
func Parse(raw string) Symbol {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return Symbol{}
	}
	if strings.Contains(s, "/") {
		settle := ""
		if idx := strings.Index(s, ":"); idx >= 0 {
			settle = strings.TrimSpace(s[idx+1:])
			s = s[:idx]
		}
		parts := strings.SplitN(s, "/", 2)
		return Symbol{Base: strings.TrimSpace(parts[0]), Quote: strings.TrimSpace(parts[1]), Settle: settle}
	}
	if strings.Contains(s, "-") {
		parts := strings.Split(s, "-")
		if len(parts) < 2 {
			return Symbol{}
		}
		sym := Symbol{Base: parts[0], Quote: parts[1]}
		if len(parts) >= 3 && parts[2] == "SWAP" {
			sym.Settle = sym.Quote
		}
		return sym
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: s[:len(s)-len(quote)], Quote: quote, Settle: quote}
		}
	}
	return Symbol{}
}

// ToInstID converts a unified symbol to an OKX instId. Strings that already
// look like instIds are upper-cased and returned unchanged.
func ToInstID(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if strings.Contains(s, "-") {
		return s
	}
	if id := Parse(s).InstID(); id != "" {
		return id
	}
	return s
}

// FromInstID converts an OKX instId back to the unified form.
func FromInstID(instID string) string {
	return Parse(instID).Unified()
}

// Base returns the base asset (BTC for BTC/USDT:USDT and BTC-USDT-SWAP).
func Base(raw string) string {
	if sym := Parse(raw); sym.Base != "" {
		return sym.Base
	}
	return strings.ToUpper(strings.TrimSpace(raw))
}

// IsSwap reports whether the symbol or instId is a perpetual swap.
func IsSwap(raw string) bool {
	return Parse(raw).Swap()
}

// BinanceSymbol converts any accepted form to BTCUSDT.
func BinanceSymbol(raw string) string {
	return Parse(raw).Binance()
}

// ParseList trims, drops empties and duplicates, keeping order.
func ParseList(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

var okxBars = map[string]string{
	"1h":  "1H",
	"2h":  "2H",
	"4h":  "4H",
	"6h":  "6H",
	"12h": "12H",
	"1d":  "1D",
	"1w":  "1W",
}

// ToOKXBar maps lower-case bars to OKX's notation; minute bars pass through.
func ToOKXBar(bar string) string {
	b := strings.TrimSpace(bar)
	if mapped, ok := okxBars[strings.ToLower(b)]; ok {
		return mapped
	}
	return b
}
