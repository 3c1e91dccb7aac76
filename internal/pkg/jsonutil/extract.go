// Package jsonutil pulls JSON payloads out of free-form model output.
package jsonutil

import (
	"strings"
)

const codeFence = "```"

// ExtractJSON returns the first JSON document found in raw. A fenced code
// block wins, then the first balanced array, then the first balanced object.
func ExtractJSON(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if block, ok := fencedBlock(raw); ok {
		if doc, ok := firstBalanced(block); ok {
			return doc, true
		}
		return block, true
	}
	return firstBalanced(raw)
}

func fencedBlock(raw string) (string, bool) {
	start := strings.Index(raw, codeFence)
	if start == -1 {
		return "", false
	}
	rest := raw[start+len(codeFence):]
	end := strings.Index(rest, codeFence)
	if end == -1 {
		return "", false
	}
	block := strings.TrimLeft(rest[:end], "\r\n")
	// drop a language tag such as ```json
	if idx := strings.Index(block, "\n"); idx != -1 {
		if first := strings.TrimSpace(block[:idx]); first != "" && !strings.ContainsAny(first, "[{") {
			block = block[idx+1:]
		}
	}
	block = strings.TrimSpace(block)
	return block, block != ""
}

// firstBalanced picks whichever of '[' or '{' opens first and scans to its
// matching close, skipping brackets inside strings.
func firstBalanced(raw string) (string, bool) {
	obj := strings.Index(raw, "{")
	arr := strings.Index(raw, "[")
	switch {
	case obj == -1 && arr == -1:
		return "", false
	case obj == -1 || (arr != -1 && arr < obj):
		if doc, ok := scan(raw, arr, '[', ']'); ok {
			return doc, true
		}
		if obj != -1 {
			return scan(raw, obj, '{', '}')
		}
		return "", false
	default:
		return scan(raw, obj, '{', '}')
	}
}

func scan(raw string, start int, open, close byte) (string, bool) {
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return strings.TrimSpace(raw[start : i+1]), true
			}
		}
	}
	return "", false
}
