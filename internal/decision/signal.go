package decision

import (
	"fmt"
	"strings"
)

// Signal is the action the model chose for one coin. Only the four values
// below are valid.
type Signal string

const (
	SignalBuyToEnter  Signal = "buy_to_enter"
	SignalSellToEnter Signal = "sell_to_enter"
	SignalHold        Signal = "hold"
	SignalClose       Signal = "close"
)

var signalAliases = map[string]Signal{
	"buy_to_enter":  SignalBuyToEnter,
	"buy":           SignalBuyToEnter,
	"long":          SignalBuyToEnter,
	"open_long":     SignalBuyToEnter,
	"enter_long":    SignalBuyToEnter,
	"sell_to_enter": SignalSellToEnter,
	"sell":          SignalSellToEnter,
	"short":         SignalSellToEnter,
	"open_short":    SignalSellToEnter,
	"enter_short":   SignalSellToEnter,
	"hold":          SignalHold,
	"wait":          SignalHold,
	"none":          SignalHold,
	"no_action":     SignalHold,
	"skip":          SignalHold,
	"close":         SignalClose,
	"exit":          SignalClose,
	"close_long":    SignalClose,
	"close_short":   SignalClose,
	"flat":          SignalClose,
}

// ParseSignal normalises case, spaces and dashes before alias lookup.
func ParseSignal(raw string) (Signal, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if s, ok := signalAliases[key]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown signal %q", raw)
}

func (s Signal) Valid() bool {
	switch s {
	case SignalBuyToEnter, SignalSellToEnter, SignalHold, SignalClose:
		return true
	}
	return false
}

// IsEntry reports whether the signal opens a position.
func (s Signal) IsEntry() bool {
	return s == SignalBuyToEnter || s == SignalSellToEnter
}

// PosSide maps entries to long/short; other signals return "".
func (s Signal) PosSide() string {
	switch s {
	case SignalBuyToEnter:
		return "long"
	case SignalSellToEnter:
		return "short"
	}
	return ""
}
