package okx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"okxagent/internal/logger"
	"okxagent/internal/market"
	"okxagent/internal/pkg/symbol"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

const (
	PublicWSLive  = "wss://ws.okx.com:8443/ws/v5/public"
	PublicWSPaper = "wss://wspap.okx.com:8443/ws/v5/public"

	defaultPingEvery = 20 * time.Second
)

// TickerStream 订阅 OKX 公共 tickers 频道。
type TickerStream struct {
	URL       string
	Proxy     string
	PingEvery time.Duration
}

func NewTickerStream(wsURL, proxy string) *TickerStream {
	return &TickerStream{URL: wsURL, Proxy: proxy, PingEvery: defaultPingEvery}
}

// Subscription delivers ticks on C until the connection ends; C is then closed
// and Err reports why (nil after ctx cancellation).
type Subscription struct {
	C <-chan market.Tick

	mu  sync.Mutex
	err error
}

func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (t *TickerStream) Subscribe(ctx context.Context, instIDs ...string) (*Subscription, error) {
	if len(instIDs) == 0 {
		return nil, fmt.Errorf("okx ws: at least one instId required")
	}
	dialer := *websocket.DefaultDialer
	if p := strings.TrimSpace(t.Proxy); p != "" {
		proxyURL, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("okx ws: invalid proxy: %w", err)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
	}
	conn, _, err := dialer.DialContext(ctx, t.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("okx ws dial %s: %w", t.URL, err)
	}
	args := make([]map[string]string, 0, len(instIDs))
	for _, id := range instIDs {
		args = append(args, map[string]string{"channel": "tickers", "instId": id})
	}
	if err := conn.WriteJSON(map[string]any{"op": "subscribe", "args": args}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("okx ws subscribe: %w", err)
	}

	out := make(chan market.Tick, 64)
	sub := &Subscription{C: out}
	var writeMu sync.Mutex
	done := make(chan struct{})

	go func() {
		pingEvery := t.PingEvery
		if pingEvery <= 0 {
			pingEvery = defaultPingEvery
		}
		ticker := time.NewTicker(pingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteMessage(websocket.TextMessage, []byte("ping"))
				writeMu.Unlock()
				if err != nil {
					logger.Debugf("okx ws ping failed: %v", err)
				}
			}
		}
	}()

	go func() {
		defer close(out)
		defer close(done)
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					sub.setErr(err)
				}
				return
			}
			ticks, err := parseTickerMessage(msg)
			if err != nil {
				sub.setErr(err)
				return
			}
			for _, tick := range ticks {
				select {
				case out <- tick:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return sub, nil
}

// parseTickerMessage handles pong, subscribe acks, error events and data pushes.
func parseTickerMessage(msg []byte) ([]market.Tick, error) {
	if string(msg) == "pong" {
		return nil, nil
	}
	if !gjson.ValidBytes(msg) {
		return nil, nil
	}
	root := gjson.ParseBytes(msg)
	if root.Get("event").String() == "error" {
		return nil, fmt.Errorf("okx ws error code=%s msg=%s", root.Get("code").String(), root.Get("msg").String())
	}
	data := root.Get("data")
	if !data.IsArray() {
		return nil, nil
	}
	var ticks []market.Tick
	data.ForEach(func(_, item gjson.Result) bool {
		last := item.Get("last").Float()
		if last <= 0 {
			return true
		}
		ticks = append(ticks, market.Tick{
			Symbol: symbol.FromInstID(item.Get("instId").String()),
			Last:   last,
			Time:   time.UnixMilli(item.Get("ts").Int()).UTC(),
		})
		return true
	})
	return ticks, nil
}
