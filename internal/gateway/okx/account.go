package okx

import (
	"context"
	"fmt"
	"net/url"
)

// Balance 查询交易账户余额；ccy 为空时返回全部币种。
func (c *Client) Balance(ctx context.Context, ccy string) (Balance, error) {
	q := url.Values{}
	if ccy != "" {
		q.Set("ccy", ccy)
	}
	var rows []Balance
	if err := c.get(ctx, "/api/v5/account/balance", q, true, &rows); err != nil {
		return Balance{}, err
	}
	if len(rows) == 0 {
		return Balance{}, nil
	}
	return rows[0], nil
}

// Positions lists open positions. Zero-size rows are dropped.
func (c *Client) Positions(ctx context.Context, instType, instID string) ([]Position, error) {
	q := url.Values{}
	if instType != "" {
		q.Set("instType", instType)
	}
	if instID != "" {
		q.Set("instId", instID)
	}
	var rows []Position
	if err := c.get(ctx, "/api/v5/account/positions", q, true, &rows); err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, p := range rows {
		if dec(p.Pos).IsZero() {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Client) AccountConfig(ctx context.Context) (AccountConfig, error) {
	var rows []AccountConfig
	if err := c.get(ctx, "/api/v5/account/config", nil, true, &rows); err != nil {
		return AccountConfig{}, err
	}
	if len(rows) == 0 {
		return AccountConfig{}, fmt.Errorf("okx account config: empty data")
	}
	return rows[0], nil
}

// SetPositionMode accepts long_short_mode or net_mode.
func (c *Client) SetPositionMode(ctx context.Context, mode string) error {
	return c.post(ctx, "/api/v5/account/set-position-mode", map[string]string{"posMode": mode}, nil)
}

// SetLeverage sets leverage for an instrument; posSide only applies to
// isolated margin in long/short mode.
func (c *Client) SetLeverage(ctx context.Context, instID string, lever int, mgnMode, posSide string) error {
	body := map[string]string{
		"instId":  instID,
		"lever":   fmt.Sprint(lever),
		"mgnMode": mgnMode,
	}
	if posSide != "" {
		body["posSide"] = posSide
	}
	return c.post(ctx, "/api/v5/account/set-leverage", body, nil)
}
