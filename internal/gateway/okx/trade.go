package okx

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error) {
	var rows []OrderAck
	if err := c.post(ctx, "/api/v5/trade/order", req, &rows); err != nil {
		return OrderAck{}, err
	}
	if len(rows) == 0 {
		return OrderAck{}, fmt.Errorf("okx place order %s: empty ack", req.InstID)
	}
	return rows[0], nil
}

// PlaceAlgoOrder sends a conditional/oco order (stand-alone TP/SL).
func (c *Client) PlaceAlgoOrder(ctx context.Context, req AlgoOrderRequest) (AlgoAck, error) {
	var rows []AlgoAck
	if err := c.post(ctx, "/api/v5/trade/order-algo", req, &rows); err != nil {
		return AlgoAck{}, err
	}
	if len(rows) == 0 {
		return AlgoAck{}, fmt.Errorf("okx algo order %s: empty ack", req.InstID)
	}
	return rows[0], nil
}

// CancelOrder needs either ordId or clOrdId.
func (c *Client) CancelOrder(ctx context.Context, req CancelRequest) (OrderAck, error) {
	if req.OrdID == "" && req.ClOrdID == "" {
		return OrderAck{}, fmt.Errorf("okx cancel %s: ordId or clOrdId required", req.InstID)
	}
	var rows []OrderAck
	if err := c.post(ctx, "/api/v5/trade/cancel-order", req, &rows); err != nil {
		return OrderAck{}, err
	}
	if len(rows) == 0 {
		return OrderAck{}, nil
	}
	return rows[0], nil
}

// CancelBatch cancels up to 20 orders per call.
func (c *Client) CancelBatch(ctx context.Context, reqs []CancelRequest) ([]OrderAck, error) {
	var acks []OrderAck
	for start := 0; start < len(reqs); start += 20 {
		end := start + 20
		if end > len(reqs) {
			end = len(reqs)
		}
		var rows []OrderAck
		if err := c.post(ctx, "/api/v5/trade/cancel-batch-orders", reqs[start:end], &rows); err != nil {
			return acks, err
		}
		acks = append(acks, rows...)
	}
	return acks, nil
}

func (c *Client) PendingOrders(ctx context.Context, instType, instID string) ([]Order, error) {
	q := url.Values{}
	if instType != "" {
		q.Set("instType", instType)
	}
	if instID != "" {
		q.Set("instId", instID)
	}
	var rows []Order
	if err := c.get(ctx, "/api/v5/trade/orders-pending", q, true, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// OrderHistory returns orders of the last 7 days; instType is required by OKX.
func (c *Client) OrderHistory(ctx context.Context, instType, instID string, limit int) ([]Order, error) {
	if instType == "" {
		return nil, fmt.Errorf("okx order history: instType required")
	}
	q := url.Values{"instType": {instType}}
	if instID != "" {
		q.Set("instId", instID)
	}
	if limit > 0 {
		if limit > 100 {
			limit = 100
		}
		q.Set("limit", strconv.Itoa(limit))
	}
	var rows []Order
	if err := c.get(ctx, "/api/v5/trade/orders-history", q, true, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
