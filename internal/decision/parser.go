package decision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"okxagent/internal/pkg/jsonutil"
)

// ErrNoJSON 表示模型输出中找不到 JSON。
var ErrNoJSON = errors.New("model output contains no json")

// Parse 从模型原始输出中提取决策：抽取 JSON、归一字段、schema 校验、严格解码。
func Parse(raw string) (Result, error) {
	block, ok := jsonutil.ExtractJSON(raw)
	if !ok {
		return Result{RawOutput: raw}, ErrNoJSON
	}
	normalized, err := CoerceResultJSON(block)
	if err != nil {
		return Result{RawOutput: raw, RawJSON: block}, err
	}
	if err := ValidateSchema(normalized); err != nil {
		return Result{RawOutput: raw, RawJSON: normalized}, err
	}
	var res Result
	dec := json.NewDecoder(bytes.NewReader([]byte(normalized)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&res); err != nil {
		return Result{RawOutput: raw, RawJSON: normalized}, fmt.Errorf("decode decisions: %w", err)
	}
	res.RawOutput = raw
	res.RawJSON = normalized
	return res, nil
}
