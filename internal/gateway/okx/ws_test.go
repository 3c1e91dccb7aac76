package okx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTickerMessage(t *testing.T) {
	ticks, err := parseTickerMessage([]byte("pong"))
	require.NoError(t, err)
	assert.Empty(t, ticks)

	ticks, err = parseTickerMessage([]byte(`{"event":"subscribe","arg":{"channel":"tickers","instId":"BTC-USDT-SWAP"}}`))
	require.NoError(t, err)
	assert.Empty(t, ticks)

	_, err = parseTickerMessage([]byte(`{"event":"error","code":"60012","msg":"Invalid request"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "60012")

	ticks, err = parseTickerMessage([]byte(`{"arg":{"channel":"tickers"},"data":[{"instId":"ETH-USDT-SWAP","last":"3100.5","ts":"1714550400000"},{"instId":"X","last":"0"}]}`))
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, "ETH/USDT:USDT", ticks[0].Symbol)
	assert.Equal(t, 3100.5, ticks[0].Last)
	assert.Equal(t, int64(1714550400000), ticks[0].Time.UnixMilli())
}

func TestTickerStreamSubscribe(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub struct {
			Op   string              `json:"op"`
			Args []map[string]string `json:"args"`
		}
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		if sub.Op != "subscribe" || len(sub.Args) != 1 || sub.Args[0]["instId"] != "BTC-USDT-SWAP" {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"subscribe"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"data":[{"instId":"BTC-USDT-SWAP","last":"65000","ts":"1714550400000"}]}`))
		// hold the connection until the client goes away
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream := NewTickerStream("ws"+strings.TrimPrefix(srv.URL, "http"), "")
	sub, err := stream.Subscribe(ctx, "BTC-USDT-SWAP")
	require.NoError(t, err)

	select {
	case tick := <-sub.C:
		assert.Equal(t, "BTC/USDT:USDT", tick.Symbol)
		assert.Equal(t, 65000.0, tick.Last)
	case <-ctx.Done():
		t.Fatal("no tick received")
	}

	cancel()
	for range sub.C {
	}
	assert.NoError(t, sub.Err())
}

func TestTickerStreamRequiresInstrument(t *testing.T) {
	_, err := NewTickerStream(PublicWSPaper, "").Subscribe(context.Background())
	require.Error(t, err)
}
