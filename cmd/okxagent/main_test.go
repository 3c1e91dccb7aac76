package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := (&cli{}).rootCmd()
	for _, name := range []string{"run", "once", "snapshot", "trigger", "order", "close", "balance", "positions",
		"spot-buy", "spot-sell", "limit", "tpsl", "cancel", "history", "cancel-all", "config"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestArgValidation(t *testing.T) {
	root := (&cli{}).rootCmd()
	trig, _, err := root.Find([]string{"trigger"})
	require.NoError(t, err)
	assert.Error(t, trig.Args(trig, []string{"BTC", "above"}))
	assert.NoError(t, trig.Args(trig, []string{"BTC", "above", "1"}))

	snap, _, err := root.Find([]string{"snapshot"})
	require.NoError(t, err)
	assert.Error(t, snap.Args(snap, nil))

	limit, _, err := root.Find([]string{"limit"})
	require.NoError(t, err)
	assert.Error(t, limit.Args(limit, []string{"BTC-USDT", "buy", "1"}))
	assert.NoError(t, limit.Args(limit, []string{"BTC-USDT", "buy", "1", "2"}))
	assert.NotNil(t, limit.Flags().Lookup("td-mode"))

	tpsl, _, err := root.Find([]string{"tpsl"})
	require.NoError(t, err)
	for _, name := range []string{"pos-side", "tp", "sl", "execute"} {
		assert.NotNil(t, tpsl.Flags().Lookup(name), name)
	}

	hist, _, err := root.Find([]string{"history"})
	require.NoError(t, err)
	assert.NoError(t, hist.Args(hist, nil))
	assert.Equal(t, "20", hist.Flags().Lookup("limit").DefValue)
}

func TestParseHelpers(t *testing.T) {
	d, err := parseDirection(" ABOVE ")
	require.NoError(t, err)
	assert.Equal(t, "above", d)
	_, err = parseDirection("sideways")
	assert.Error(t, err)

	s, err := parsePosSide("Short")
	require.NoError(t, err)
	assert.Equal(t, "short", s)
	_, err = parsePosSide("net")
	assert.Error(t, err)

	side, err := parseSide(" Sell")
	require.NoError(t, err)
	assert.Equal(t, "sell", side)
	_, err = parseSide("long")
	assert.Error(t, err)

	px, err := parsePositive("price", "64000.5")
	require.NoError(t, err)
	assert.Equal(t, 64000.5, px)
	_, err = parsePositive("price", "-1")
	assert.Error(t, err)
	_, err = parsePositive("price", "abc")
	assert.Error(t, err)
}

func TestEnvOr(t *testing.T) {
	t.Setenv("OKXAGENT_TEST_KEY", "  x.yaml ")
	assert.Equal(t, "x.yaml", envOr("OKXAGENT_TEST_KEY", "d"))
	assert.Equal(t, "d", envOr("OKXAGENT_TEST_MISSING", "d"))
}
