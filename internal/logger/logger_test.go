package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	defer SetLevel("info")

	SetLevel("info")
	Debugf("hidden %d", 1)
	Infof("shown %d", 2)
	assert.NotContains(t, buf.String(), "hidden 1")
	assert.Contains(t, buf.String(), "shown 2")

	SetLevel("debug")
	Debugf("hidden %d", 1)
	assert.Contains(t, buf.String(), "hidden 1")

	SetLevel(" WARNING ")
	Infof("quiet %d", 4)
	Warnf("loud %d", 5)
	assert.NotContains(t, buf.String(), "quiet 4")
	assert.Contains(t, buf.String(), "level=WARN msg=\"loud 5\"")

	SetLevel("nonsense")
	Debugf("dropped %d", 3)
	Infof("kept %d", 6)
	assert.NotContains(t, buf.String(), "dropped 3")
	assert.Contains(t, buf.String(), "kept 6")
}

func TestWithCarriesAttributes(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	With("trace", "t-1", "cycle", 3).Info("cycle done")
	out := buf.String()
	assert.Contains(t, out, "trace=t-1")
	assert.Contains(t, out, "cycle=3")
	assert.Contains(t, out, `msg="cycle done"`)
}

func TestDailyFileRotatesOnDateChange(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDailyFile(dir, "agent")
	require.NoError(t, err)
	defer d.Close()

	day := time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC)
	d.mu.Lock()
	d.nowFn = func() time.Time { return day }
	d.mu.Unlock()

	_, err = d.Write([]byte("first\n"))
	require.NoError(t, err)
	day = day.Add(2 * time.Minute)
	_, err = d.Write([]byte("second\n"))
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(dir, "agent_20250301.log"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "agent_20250302.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(first))
	assert.Equal(t, "second\n", string(second))
	assert.True(t, strings.HasSuffix(d.Path(), "agent_20250302.log"))
}

func TestLLMLogSections(t *testing.T) {
	var buf bytes.Buffer
	SetLLMWriter(&buf)
	defer SetLLMWriter(nil)

	LogLLMRequest("deepseek", "trace-1", "sys", "user", []string{"chart BTC"}, "{}")
	LogLLMResponse("deepseek", "trace-1", `{"decisions":[]}`)

	out := buf.String()
	assert.Contains(t, out, "[LLM][request][deepseek][trace-1]")
	assert.Contains(t, out, "--- SYSTEM ---\nsys")
	assert.Contains(t, out, "--- IMAGE#1 ---\nchart BTC")
	assert.NotContains(t, out, "--- PAYLOAD ---")
	assert.Contains(t, out, "[LLM][response][deepseek][trace-1]")
}
