package decision

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"okxagent/internal/logger"
	"okxagent/internal/pkg/symbol"

	"github.com/tidwall/gjson"
)

// decisionFields 每个字段的候选键按优先级排列，标准名在最前。
var decisionFields = []struct {
	name    string
	aliases []string
}{
	{"signal", []string{"signal", "action"}},
	{"coin", []string{"coin", "symbol", "asset"}},
	{"quantity", []string{"quantity", "qty", "size"}},
	{"leverage", []string{"leverage"}},
	{"entry_price", []string{"entry_price", "entry", "price"}},
	{"profit_target", []string{"profit_target", "take_profit", "tp"}},
	{"stop_loss", []string{"stop_loss", "sl"}},
	{"invalidation_condition", []string{"invalidation_condition"}},
	{"confidence", []string{"confidence"}},
	{"risk_usd", []string{"risk_usd"}},
	{"justification", []string{"justification", "reason", "reasoning"}},
}

var knownDecisionKeys = func() map[string]bool {
	m := make(map[string]bool)
	for _, f := range decisionFields {
		for _, a := range f.aliases {
			m[a] = true
		}
	}
	return m
}()

var numericFields = map[string]bool{
	"quantity":      true,
	"leverage":      true,
	"entry_price":   true,
	"profit_target": true,
	"stop_loss":     true,
	"confidence":    true,
	"risk_usd":      true,
}

var resultFields = map[string]bool{
	"decisions":         true,
	"action_summary":    true,
	"reasoning_summary": true,
	"wake_trigger":      true,
}

// CoerceResultJSON 将模型输出统一成 {"decisions":[...],...} 结构：
// 接受带 decisions 的对象、裸数组或单个决策对象；字段别名、数字字符串、
// signal 别名都在这里归一。
func CoerceResultJSON(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("json 内容为空")
	}
	if !gjson.Valid(raw) {
		return "", fmt.Errorf("json 格式无效")
	}
	parsed := gjson.Parse(raw)
	var root map[string]any
	switch {
	case parsed.IsArray():
		root = map[string]any{"decisions": parsed.Value()}
	case parsed.IsObject():
		if d := parsed.Get("decisions"); d.Exists() {
			if !d.IsArray() {
				return "", fmt.Errorf("decisions 必须是数组")
			}
			obj, _ := parsed.Value().(map[string]any)
			root = obj
		} else if parsed.Get("signal").Exists() || parsed.Get("action").Exists() {
			root = map[string]any{"decisions": []any{parsed.Value()}}
		} else {
			return "", fmt.Errorf("根节点为对象但未包含 decisions 数组或 signal 字段")
		}
	default:
		return "", fmt.Errorf("根节点必须是 JSON 数组或对象")
	}

	out := make(map[string]any, len(root))
	for k, v := range root {
		key := strings.ToLower(strings.TrimSpace(k))
		if !resultFields[key] {
			logger.Debugf("忽略模型输出中的未知字段 %s", k)
			continue
		}
		if v == nil {
			continue
		}
		out[key] = v
	}
	items, _ := out["decisions"].([]any)
	decisions := make([]any, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return "", fmt.Errorf("决策#%d 需为对象", i+1)
		}
		norm, err := coerceDecision(i+1, obj)
		if err != nil {
			return "", err
		}
		decisions = append(decisions, norm)
	}
	out["decisions"] = decisions
	if wt, ok := out["wake_trigger"].(map[string]any); ok {
		out["wake_trigger"] = coerceWakeTrigger(wt)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode normalized decisions: %w", err)
	}
	return string(data), nil
}

func coerceDecision(idx int, obj map[string]any) (map[string]any, error) {
	lowered := make(map[string]any, len(obj))
	for k, v := range obj {
		lk := strings.ToLower(strings.TrimSpace(k))
		if !knownDecisionKeys[lk] {
			logger.Debugf("决策#%d 忽略未知字段 %s", idx, k)
			continue
		}
		lowered[lk] = v
	}
	out := make(map[string]any, len(decisionFields))
	for _, f := range decisionFields {
		for _, alias := range f.aliases {
			v, ok := lowered[alias]
			if !ok || v == nil {
				continue
			}
			if numericFields[f.name] {
				n, ok := toNumber(v)
				if !ok {
					if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
						continue
					}
					return nil, fmt.Errorf("决策#%d 字段 %s 不是数字: %v", idx, f.name, v)
				}
				v = n
			}
			out[f.name] = v
			break
		}
	}
	rawSignal, _ := out["signal"].(string)
	sig, err := ParseSignal(rawSignal)
	if err != nil {
		return nil, fmt.Errorf("决策#%d: %w", idx, err)
	}
	out["signal"] = string(sig)
	if coin, ok := out["coin"].(string); ok {
		out["coin"] = symbol.Base(coin)
	}
	if lev, ok := out["leverage"].(float64); ok {
		out["leverage"] = math.Round(lev)
	}
	// 置信度写成百分比时折算到 0~1
	if conf, ok := out["confidence"].(float64); ok && conf > 1 && conf <= 100 {
		out["confidence"] = conf / 100
	}
	return out, nil
}

func coerceWakeTrigger(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		key := strings.ToLower(strings.TrimSpace(k))
		if v == nil {
			continue
		}
		switch key {
		case "price":
			if f, ok := toNumber(v); ok {
				v = f
			}
		case "timeout_minutes":
			if f, ok := toNumber(v); ok {
				v = math.Round(f)
			}
		case "direction":
			if s, ok := v.(string); ok {
				v = strings.ToLower(strings.TrimSpace(s))
			}
		}
		out[key] = v
	}
	return out
}

func toNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "%"))
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case bool:
		return 0, false
	}
	return 0, false
}
