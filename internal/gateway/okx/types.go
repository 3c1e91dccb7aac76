package okx

import (
	"github.com/shopspring/decimal"
)

// Instrument 合约/现货规格，数量相关字段保留 decimal 精度。
type Instrument struct {
	InstID   string
	InstType string
	CtVal    decimal.Decimal
	LotSz    decimal.Decimal
	MinSz    decimal.Decimal
	TickSz   decimal.Decimal
	MaxLever string
}

type instrumentRaw struct {
	InstID   string `json:"instId"`
	InstType string `json:"instType"`
	CtVal    string `json:"ctVal"`
	LotSz    string `json:"lotSz"`
	MinSz    string `json:"minSz"`
	TickSz   string `json:"tickSz"`
	Lever    string `json:"lever"`
}

func (r instrumentRaw) toInstrument() Instrument {
	return Instrument{
		InstID:   r.InstID,
		InstType: r.InstType,
		CtVal:    dec(r.CtVal),
		LotSz:    dec(r.LotSz),
		MinSz:    dec(r.MinSz),
		TickSz:   dec(r.TickSz),
		MaxLever: r.Lever,
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// BalanceDetail is one currency row of the trading account.
type BalanceDetail struct {
	Ccy       string `json:"ccy"`
	Eq        string `json:"eq"`
	CashBal   string `json:"cashBal"`
	AvailBal  string `json:"availBal"`
	FrozenBal string `json:"frozenBal"`
	EqUsd     string `json:"eqUsd"`
}

type Balance struct {
	TotalEq string          `json:"totalEq"`
	UTime   string          `json:"uTime"`
	Details []BalanceDetail `json:"details"`
}

// Available returns availBal for ccy (0 when absent).
func (b Balance) Available(ccy string) decimal.Decimal {
	for _, d := range b.Details {
		if d.Ccy == ccy {
			if v := dec(d.AvailBal); !v.IsZero() {
				return v
			}
			return dec(d.CashBal)
		}
	}
	return decimal.Zero
}

type Position struct {
	InstID      string `json:"instId"`
	InstType    string `json:"instType"`
	PosSide     string `json:"posSide"`
	Pos         string `json:"pos"`
	AvgPx       string `json:"avgPx"`
	MarkPx      string `json:"markPx"`
	Upl         string `json:"upl"`
	UplRatio    string `json:"uplRatio"`
	Lever       string `json:"lever"`
	MgnMode     string `json:"mgnMode"`
	LiqPx       string `json:"liqPx"`
	Margin      string `json:"margin"`
	NotionalUsd string `json:"notionalUsd"`
	CTime       string `json:"cTime"`
}

// Side resolves long/short for net-mode positions from the sign of pos.
func (p Position) Side() string {
	if p.PosSide == "long" || p.PosSide == "short" {
		return p.PosSide
	}
	if dec(p.Pos).IsNegative() {
		return "short"
	}
	return "long"
}

type AccountConfig struct {
	UID     string `json:"uid"`
	PosMode string `json:"posMode"`
	AcctLv  string `json:"acctLv"`
}

// AttachedAlgo 随主单附带的止盈止损，OrdPx "-1" 表示市价。
type AttachedAlgo struct {
	TpTriggerPx string `json:"tpTriggerPx,omitempty"`
	TpOrdPx     string `json:"tpOrdPx,omitempty"`
	SlTriggerPx string `json:"slTriggerPx,omitempty"`
	SlOrdPx     string `json:"slOrdPx,omitempty"`
}

type OrderRequest struct {
	InstID         string         `json:"instId"`
	TdMode         string         `json:"tdMode"`
	Side           string         `json:"side"`
	PosSide        string         `json:"posSide,omitempty"`
	OrdType        string         `json:"ordType"`
	Sz             string         `json:"sz"`
	Px             string         `json:"px,omitempty"`
	TgtCcy         string         `json:"tgtCcy,omitempty"`
	ReduceOnly     bool           `json:"reduceOnly,omitempty"`
	ClOrdID        string         `json:"clOrdId,omitempty"`
	AttachAlgoOrds []AttachedAlgo `json:"attachAlgoOrds,omitempty"`
}

type OrderAck struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

// AlgoOrderRequest for /trade/order-algo (conditional / oco).
type AlgoOrderRequest struct {
	InstID      string `json:"instId"`
	TdMode      string `json:"tdMode"`
	Side        string `json:"side"`
	PosSide     string `json:"posSide,omitempty"`
	OrdType     string `json:"ordType"`
	Sz          string `json:"sz"`
	ReduceOnly  bool   `json:"reduceOnly,omitempty"`
	TpTriggerPx string `json:"tpTriggerPx,omitempty"`
	TpOrdPx     string `json:"tpOrdPx,omitempty"`
	SlTriggerPx string `json:"slTriggerPx,omitempty"`
	SlOrdPx     string `json:"slOrdPx,omitempty"`
}

type AlgoAck struct {
	AlgoID      string `json:"algoId"`
	AlgoClOrdID string `json:"algoClOrdId"`
	SCode       string `json:"sCode"`
	SMsg        string `json:"sMsg"`
}

type CancelRequest struct {
	InstID  string `json:"instId"`
	OrdID   string `json:"ordId,omitempty"`
	ClOrdID string `json:"clOrdId,omitempty"`
}

// Order is a pending or historical order as reported by OKX.
type Order struct {
	InstID    string `json:"instId"`
	InstType  string `json:"instType"`
	OrdID     string `json:"ordId"`
	ClOrdID   string `json:"clOrdId"`
	Side      string `json:"side"`
	PosSide   string `json:"posSide"`
	OrdType   string `json:"ordType"`
	Px        string `json:"px"`
	Sz        string `json:"sz"`
	AccFillSz string `json:"accFillSz"`
	AvgPx     string `json:"avgPx"`
	State     string `json:"state"`
	Lever     string `json:"lever"`
	TdMode    string `json:"tdMode"`
	CTime     string `json:"cTime"`
	UTime     string `json:"uTime"`
}
