package jsonutil

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Pretty indents a JSON document for log output. Numbers keep their original
// text; input that is not valid JSON is returned trimmed and unchanged.
func Pretty(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !json.Valid([]byte(raw)) {
		return raw
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		return raw
	}
	return buf.String()
}
