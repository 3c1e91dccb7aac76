package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{name: "fenced object", raw: "thinking...\n```json\n{\"a\": 1}\n```\ntrailing", want: `{"a": 1}`, ok: true},
		{name: "fenced array", raw: "```\n[{\"a\": \"]\"}]\n```", want: `[{"a": "]"}]`, ok: true},
		{name: "bare object first", raw: `result: {"decisions": [{"signal": "hold"}]} done`, want: `{"decisions": [{"signal": "hold"}]}`, ok: true},
		{name: "bare array first", raw: `ok [1, {"b": 2}] {"c": 3}`, want: `[1, {"b": 2}]`, ok: true},
		{name: "escaped quote", raw: `{"a": "say \"}\" now"}`, want: `{"a": "say \"}\" now"}`, ok: true},
		{name: "unbalanced", raw: `{"a": 1`, ok: false},
		{name: "empty", raw: "  ", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractJSON(tc.raw)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestPretty(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", Pretty(`{"a":1}`))
	assert.Equal(t, "not json", Pretty("not json"))
	assert.Equal(t, "{\n  \"px\": 1.50\n}", Pretty(` {"px":1.50} `))
}
