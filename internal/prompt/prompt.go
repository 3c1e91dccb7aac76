// Package prompt renders the system and user prompts sent to the model.
package prompt

import (
	"embed"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"okxagent/internal/pkg/symbol"
	"okxagent/internal/snapshot"
)

//go:embed templates/system_prompt.txt templates/user_prompt.tmpl
var defaultFS embed.FS

const (
	defaultSystemName = "templates/system_prompt.txt"
	defaultUserName   = "templates/user_prompt.tmpl"
)

// AccountState 账户摘要。
type AccountState struct {
	TotalEquity   float64 `json:"total_equity"`
	AvailableUSDT float64 `json:"available_usdt"`
}

// Position 是渲染用的持仓视图。
type Position struct {
	Symbol           string  `json:"symbol"`
	Side             string  `json:"side"`
	Size             float64 `json:"size"`
	EntryPrice       float64 `json:"entry_price"`
	MarkPrice        float64 `json:"mark_price"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	Leverage         string  `json:"leverage"`
	LiquidationPrice float64 `json:"liquidation_price"`
}

// UserInput is the data passed to the user prompt template.
type UserInput struct {
	Now               time.Time
	MinutesSinceStart int
	Invocations       int
	Snapshots         []snapshot.PerpSnapshot
	Summaries         map[string][]snapshot.TimeframeSummary
	Account           AccountState
	Positions         []Position
}

var placeholderRE = regexp.MustCompile(`\$(?:\$|([A-Za-z_][A-Za-z0-9_]*)|\{([A-Za-z_][A-Za-z0-9_]*)\})`)

// Substitute replaces $NAME and ${NAME} with vars; unknown names are left
// verbatim and $$ becomes $.
func Substitute(text string, vars map[string]string) string {
	return placeholderRE.ReplaceAllStringFunc(text, func(m string) string {
		if m == "$$" {
			return "$"
		}
		sub := placeholderRE.FindStringSubmatch(m)
		name := sub[1]
		if name == "" {
			name = sub[2]
		}
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// SystemVars builds PRIMARY_SYMBOL, BASE_ASSET and ALLOWED_SYMBOLS from the
// configured symbols; the first symbol is primary.
func SystemVars(symbols []string) map[string]string {
	primary := ""
	if len(symbols) > 0 {
		primary = symbols[0]
	}
	return map[string]string{
		"PRIMARY_SYMBOL":  primary,
		"BASE_ASSET":      symbol.Base(primary),
		"ALLOWED_SYMBOLS": strings.Join(symbols, ", "),
	}
}

var funcs = template.FuncMap{
	"num":    formatNum,
	"pct":    func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) + "%" },
	"opt":    formatOpt,
	"optpct": formatOptPct,
	"nums":   formatNums,
}

func parseUser(name, text string) (*template.Template, error) {
	tpl, err := template.New(name).Funcs(funcs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse user prompt %s: %w", name, err)
	}
	return tpl, nil
}

func formatNum(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "N/A"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOpt(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return formatNum(*v)
}

func formatOptPct(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64) + "%"
}

func formatNums(vs []float64) string {
	if len(vs) == 0 {
		return "[]"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatNum(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
