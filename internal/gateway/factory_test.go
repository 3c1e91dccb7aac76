package gateway

import (
	"testing"

	"okxagent/internal/config"
	"okxagent/internal/gateway/okx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSourceFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Market.Source = "okx"
	src, err := NewSourceFromConfig(cfg, okx.NewClient(okx.Config{}))
	require.NoError(t, err)
	assert.Equal(t, "okx", src.Name())

	_, err = NewSourceFromConfig(cfg, nil)
	require.Error(t, err)

	cfg.Market.Source = "Binance"
	src, err = NewSourceFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "binance", src.Name())

	cfg.Market.Source = "kraken"
	_, err = NewSourceFromConfig(cfg, nil)
	require.Error(t, err)

	_, err = NewSourceFromConfig(nil, nil)
	require.Error(t, err)
}
