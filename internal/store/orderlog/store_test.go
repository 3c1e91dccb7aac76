package orderlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"okxagent/internal/trade"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, trade.JournalEntry{
		TraceID: "t1", Kind: "swap_limit", InstID: "BTC-USDT-SWAP", Side: "buy", PosSide: "long",
		ClOrdID: "c1", OrdID: "o1", Status: trade.StatusSent,
		Request:  map[string]any{"sz": "2.77", "px": "64000"},
		Response: []byte(`{"ordId":"o1"}`),
		At:       base,
	}))
	require.NoError(t, s.Record(ctx, trade.JournalEntry{
		TraceID: "t1", Kind: "tpsl", InstID: "ETH-USDT-SWAP", Status: trade.StatusFailed,
		Error: "51008", At: base.Add(time.Minute),
	}))
	require.NoError(t, s.Record(ctx, trade.JournalEntry{
		TraceID: "t2", Kind: "spot_buy", InstID: "BTC-USDT", Status: trade.StatusDryRun, At: base.Add(2 * time.Minute),
	}))

	rows, err := s.Recent(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "spot_buy", rows[0].Kind)
	assert.Equal(t, "swap_limit", rows[2].Kind)
	assert.Equal(t, "2.77", gjson.GetBytes(rows[2].Request, "sz").String())
	assert.Equal(t, "o1", gjson.GetBytes(rows[2].Response, "ordId").String())
	assert.Empty(t, rows[1].Request)
	assert.Equal(t, "51008", rows[1].Error)

	btc, err := s.Recent(ctx, 10, "btc-usdt-swap")
	require.NoError(t, err)
	require.Len(t, btc, 1)
	assert.Equal(t, "c1", btc[0].ClOrdID)

	limited, err := s.Recent(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, limited, 1)

	trace, err := s.ByTrace(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, trace, 2)
	assert.Equal(t, "swap_limit", trace[0].Kind)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
	_, err = NewFromDB(nil)
	require.Error(t, err)
}
