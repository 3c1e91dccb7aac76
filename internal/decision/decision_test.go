package decision

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestParseSignalAliases(t *testing.T) {
	cases := map[string]Signal{
		"buy_to_enter": SignalBuyToEnter,
		"Long":         SignalBuyToEnter,
		"open-short":   SignalSellToEnter,
		"SELL":         SignalSellToEnter,
		" hold ":       SignalHold,
		"no action":    SignalHold,
		"exit":         SignalClose,
	}
	for raw, want := range cases {
		got, err := ParseSignal(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := ParseSignal("moon")
	require.Error(t, err)
	assert.Equal(t, "long", SignalBuyToEnter.PosSide())
	assert.Equal(t, "", SignalClose.PosSide())
}

func TestCoerceWrapsArrayAndSingleObject(t *testing.T) {
	out, err := CoerceResultJSON(`[{"action":"long","symbol":"BTC/USDT:USDT","qty":"0.01","tp":"70000","sl":69000.5,"confidence":72,"extra":1,"risk_usd":null}]`)
	require.NoError(t, err)
	doc := gjson.Parse(out)
	d := doc.Get("decisions.0")
	assert.Equal(t, "buy_to_enter", d.Get("signal").String())
	assert.Equal(t, "BTC", d.Get("coin").String())
	assert.Equal(t, 0.01, d.Get("quantity").Float())
	assert.Equal(t, 70000.0, d.Get("profit_target").Float())
	assert.Equal(t, 69000.5, d.Get("stop_loss").Float())
	assert.InDelta(t, 0.72, d.Get("confidence").Float(), 1e-9)
	assert.False(t, d.Get("extra").Exists())
	assert.False(t, d.Get("risk_usd").Exists())

	single, err := CoerceResultJSON(`{"signal":"hold","coin":"eth"}`)
	require.NoError(t, err)
	assert.Equal(t, "ETH", gjson.Get(single, "decisions.0.coin").String())
}

func TestCoerceAliasPrecedence(t *testing.T) {
	cases := []struct {
		raw   string
		field string
		want  any
	}{
		{`{"signal":"buy","entry_price":3,"entry":2,"price":1}`, "entry_price", 3.0},
		{`{"signal":"buy","price":1,"entry":2}`, "entry_price", 2.0},
		{`{"signal":"buy","Entry_Price":" ","price":"5"}`, "entry_price", 5.0},
		{`{"signal":"buy","sl":1,"stop_loss":9}`, "stop_loss", 9.0},
		{`{"signal":"hold","reasoning":"b","reason":"a"}`, "justification", "a"},
		{`{"signal":"hold","asset":"SOL","symbol":"ETH-USDT-SWAP"}`, "coin", "ETH"},
	}
	for _, tc := range cases {
		// map 遍历顺序随机，多跑几轮
		for i := 0; i < 20; i++ {
			out, err := CoerceResultJSON(tc.raw)
			require.NoError(t, err, tc.raw)
			assert.Equal(t, tc.want, gjson.Get(out, "decisions.0."+tc.field).Value(), tc.raw)
		}
	}
}

func TestCoerceRejects(t *testing.T) {
	for _, raw := range []string{
		"",
		"not json",
		`"str"`,
		`{"foo":1}`,
		`{"decisions":{"signal":"hold"}}`,
		`{"decisions":[1]}`,
		`{"decisions":[{"signal":"moon"}]}`,
		`{"decisions":[{"signal":"buy","quantity":"lots"}]}`,
	} {
		_, err := CoerceResultJSON(raw)
		assert.Error(t, err, raw)
	}
}

const fencedOutput = "分析如下。\n```json\n" + `{
  "decisions": [
    {"signal":"buy_to_enter","coin":"BTC","quantity":0.01,"leverage":5.4,"entry_price":65000,"profit_target":67000,"stop_loss":64000,"confidence":0.7,"justification":"趋势向上"},
    {"signal":"hold","coin":"ETH"}
  ],
  "action_summary":"开多 BTC",
  "wake_trigger":{"symbol":"BTC/USDT:USDT","direction":"Below","price":"64500","timeout_minutes":30}
}` + "\n```\n"

func TestParseFullResult(t *testing.T) {
	res, err := Parse(fencedOutput)
	require.NoError(t, err)
	require.Len(t, res.Decisions, 2)
	d := res.Decisions[0]
	assert.Equal(t, SignalBuyToEnter, d.Signal)
	assert.Equal(t, 5, d.Leverage)
	assert.Equal(t, 65000.0, d.EntryPrice)
	assert.Equal(t, "开多 BTC", res.ActionSummary)
	require.NotNil(t, res.WakeTrigger)
	assert.Equal(t, "below", res.WakeTrigger.Direction)
	assert.Equal(t, 64500.0, res.WakeTrigger.Price)
	assert.Equal(t, 30, res.WakeTrigger.TimeoutMinutes)
	assert.Equal(t, fencedOutput, res.RawOutput)
	assert.NotEmpty(t, res.RawJSON)
	assert.Len(t, res.Actionable(), 1)

	require.NoError(t, res.Validate([]string{"BTC/USDT:USDT", "ETH/USDT:USDT"}))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("I have no idea")
	assert.True(t, errors.Is(err, ErrNoJSON))

	// schema rejects out-of-range confidence
	res, err := Parse(`{"decisions":[{"signal":"hold","confidence":250}]}`)
	require.Error(t, err)
	assert.Contains(t, res.RawJSON, "250")

	_, err = Parse(`{"decisions":[],"wake_trigger":{"symbol":"BTC","direction":"sideways","price":1}}`)
	require.Error(t, err)
}

func TestValidateEntries(t *testing.T) {
	long := Decision{Signal: SignalBuyToEnter, Coin: "BTC", Quantity: 1, EntryPrice: 100, ProfitTarget: 110, StopLoss: 95}
	short := Decision{Signal: SignalSellToEnter, Coin: "BTC", Quantity: 1, EntryPrice: 100, ProfitTarget: 90, StopLoss: 105}
	allowed := []string{"BTC/USDT:USDT"}

	require.NoError(t, Result{Decisions: []Decision{long, short}}.Validate(allowed))

	badLong := long
	badLong.StopLoss = 101
	err := Result{Decisions: []Decision{badLong}}.Validate(allowed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "决策#1")

	badShort := short
	badShort.EntryPrice = 0
	badShort.ProfitTarget = 110
	require.Error(t, Result{Decisions: []Decision{short, badShort}}.Validate(allowed))

	noQty := long
	noQty.Quantity = 0
	require.Error(t, Result{Decisions: []Decision{noQty}}.Validate(allowed))

	other := long
	other.Coin = "DOGE"
	require.Error(t, Result{Decisions: []Decision{other}}.Validate(allowed))
	require.NoError(t, Result{Decisions: []Decision{other}}.Validate(nil))

	closeNoCoin := Decision{Signal: SignalClose}
	require.Error(t, Result{Decisions: []Decision{closeNoCoin}}.Validate(allowed))
	require.NoError(t, Result{Decisions: []Decision{{Signal: SignalHold}}}.Validate(allowed))
}

func TestValidateWakeTrigger(t *testing.T) {
	res := Result{WakeTrigger: &WakeTrigger{Symbol: "BTC", Direction: "above", Price: 0}}
	require.Error(t, res.Validate(nil))
	res.WakeTrigger.Price = 1
	require.NoError(t, res.Validate(nil))
}
