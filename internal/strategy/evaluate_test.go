// internal/strategy/evaluate_test.go
package strategy

import (
	"testing"
	"time"

	"github.com/holoworlds/tradingmonitor/internal/model"
)

var fixedNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// warmupCandles returns n flat candles with defined (but crossless) EMAs, so
// the 50-candle precondition and the "EMAs must be defined" guard are
// satisfied without themselves producing a cross on the final tick.
func warmupCandles(n int, ema7, ema25, ema99 float64) []model.Candle {
	out := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		out[i] = model.Candle{
			Symbol: "BTCUSDT", OpenTime: int64(i) * 60000,
			Open: 50, High: 50, Low: 50, Close: 50, IsClosed: true,
			EMA7: ema7, EMA25: ema25, EMA99: ema99,
			MACDLine: 0, MACDSignal: 0,
		}
	}
	return out
}

func baseConfig() model.StrategyConfig {
	return model.StrategyConfig{
		ID: "s1", Name: "test-strategy", Symbol: "BTCUSDT", Interval: model.Interval1h,
		IsActive: true, TradeAmount: 100, MaxDailyTrades: 10,
		UseEMA7_25: true, EMA7_25Long: true, EMA7_25Short: true,
	}
}

func flatStats() model.TradeStats {
	return model.TradeStats{LastTradeDate: "2026-01-15", DailyTradeCount: 0}
}

// Scenario 1: golden-cross entry.
func TestEvaluate_GoldenCrossEntry(t *testing.T) {
	candles := warmupCandles(50, 24, 25, 30)
	candles[len(candles)-2].EMA7, candles[len(candles)-2].EMA25 = 24, 25
	last := &candles[len(candles)-1]
	last.EMA7, last.EMA25, last.EMA99 = 26, 25, 30
	last.Close = 50

	cfg := baseConfig()
	pos, stats, orders := Evaluate(candles, cfg, model.EmptyPosition(), flatStats(), fixedNow)

	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	o := orders[0]
	if o.Action != "buy" || o.Position != "long" {
		t.Fatalf("expected buy/long, got %s/%s", o.Action, o.Position)
	}
	if o.Quantity != "2" {
		t.Fatalf("expected quantity 2, got %s", o.Quantity)
	}
	if o.TradeAmount != 100 {
		t.Fatalf("expected trade_amount 100, got %v", o.TradeAmount)
	}
	if o.TPLevel != "EMA7 crosses above 25 open long" {
		t.Fatalf("unexpected reason: %s", o.TPLevel)
	}
	if pos.Direction != model.DirectionLong {
		t.Fatalf("expected resulting position LONG, got %s", pos.Direction)
	}
	if stats.DailyTradeCount != 0 {
		t.Fatalf("opening should not increment daily trade count, got %d", stats.DailyTradeCount)
	}
}

// Scenario 2: fixed TP close.
func TestEvaluate_FixedTakeProfit(t *testing.T) {
	candles := warmupCandles(50, 24, 23, 20)
	last := &candles[len(candles)-1]
	last.High = 102.5
	last.Low = 99
	last.Close = 102.0

	cfg := baseConfig()
	cfg.UseFixedTPSL = true
	cfg.TakeProfitPct = 2
	cfg.StopLossPct = 5

	pos := model.PositionState{Direction: model.DirectionLong, InitialQty: 1, RemainingQty: 1, EntryPrice: 100}
	newPos, stats, orders := Evaluate(candles, cfg, pos, flatStats(), fixedNow)

	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	o := orders[0]
	if o.Action != "sell" || o.Position != "flat" {
		t.Fatalf("expected sell/flat, got %s/%s", o.Action, o.Position)
	}
	if o.Quantity != "1" {
		t.Fatalf("expected quantity 1, got %s", o.Quantity)
	}
	if o.ExecutionPrice != 102.0 {
		t.Fatalf("expected execution price 102.0, got %v", o.ExecutionPrice)
	}
	if o.TPLevel != "fixed TP" {
		t.Fatalf("expected reason 'fixed TP', got %s", o.TPLevel)
	}
	if !newPos.IsFlat() {
		t.Fatalf("expected position FLAT after close, got %s", newPos.Direction)
	}
	if stats.DailyTradeCount != 1 {
		t.Fatalf("expected daily trade count 1, got %d", stats.DailyTradeCount)
	}
}

// Scenario 3: multi-level TP ladder, both levels hit same tick.
func TestEvaluate_MultiTPLadder(t *testing.T) {
	candles := warmupCandles(50, 24, 23, 20)
	last := &candles[len(candles)-1]
	last.Low = 196
	last.High = 200
	last.Close = 197

	cfg := baseConfig()
	cfg.UseMultiTPSL = true
	cfg.TPLevels = []model.TPSLLevel{
		{Active: true, Pct: 1, QtyPct: 50},
		{Active: true, Pct: 2, QtyPct: 50},
	}

	pos := model.PositionState{
		Direction: model.DirectionShort, InitialQty: 4, RemainingQty: 4, EntryPrice: 200,
		TPLevelsHit: []bool{false, false},
	}
	newPos, stats, orders := Evaluate(candles, cfg, pos, flatStats(), fixedNow)

	if len(orders) != 2 {
		t.Fatalf("expected 2 partial orders, got %d", len(orders))
	}
	for i, o := range orders {
		if o.Action != "buy" || o.Position != "short" {
			t.Fatalf("order %d: expected buy/short, got %s/%s", i, o.Action, o.Position)
		}
		if o.Quantity != "2" {
			t.Fatalf("order %d: expected quantity 2, got %s", i, o.Quantity)
		}
	}
	if !newPos.IsFlat() {
		t.Fatalf("expected position FLAT after both levels hit, got %s", newPos.Direction)
	}
	if newPos.RemainingQty != 0 {
		t.Fatalf("expected remaining qty 0, got %v", newPos.RemainingQty)
	}
	if stats.DailyTradeCount != 1 {
		t.Fatalf("expected daily trade count 1 (single cleanup close), got %d", stats.DailyTradeCount)
	}
}

// Scenario 4: reversal on signal exit.
func TestEvaluate_ReversalOnSignalExit(t *testing.T) {
	candles := warmupCandles(50, 26, 25, 20)
	candles[len(candles)-2].EMA7, candles[len(candles)-2].EMA25 = 26, 25
	last := &candles[len(candles)-1]
	last.EMA7, last.EMA25, last.EMA99 = 24, 25, 20
	last.Close = 10

	cfg := baseConfig()
	cfg.UseReverse = true
	cfg.ReverseLongToShort = true
	cfg.TradeAmount = 50

	pos := model.PositionState{Direction: model.DirectionLong, InitialQty: 3, RemainingQty: 3, EntryPrice: 8}
	newPos, stats, orders := Evaluate(candles, cfg, pos, flatStats(), fixedNow)

	if len(orders) != 2 {
		t.Fatalf("expected 2 orders (close + reverse open), got %d", len(orders))
	}
	closeOrder, openOrder := orders[0], orders[1]
	if closeOrder.Action != "sell" || closeOrder.Position != "flat" {
		t.Fatalf("expected close order sell/flat, got %s/%s", closeOrder.Action, closeOrder.Position)
	}
	if openOrder.Action != "sell" || openOrder.Position != "short" {
		t.Fatalf("expected reverse-open sell/short, got %s/%s", openOrder.Action, openOrder.Position)
	}
	if openOrder.Quantity != "5" {
		t.Fatalf("expected reverse-open quantity 5, got %s", openOrder.Quantity)
	}
	if openOrder.TPLevel != "reverse open" {
		t.Fatalf("expected reason 'reverse open', got %s", openOrder.TPLevel)
	}
	if newPos.Direction != model.DirectionShort {
		t.Fatalf("expected resulting position SHORT, got %s", newPos.Direction)
	}
	if stats.DailyTradeCount != 1 {
		t.Fatalf("expected daily trade count 1, got %d", stats.DailyTradeCount)
	}
}

// Scenario 5: deferred pullback-to-EMA7 entry, across two ticks.
func TestEvaluate_PullbackToEMA7Entry(t *testing.T) {
	cfg := baseConfig()
	cfg.UseReversionEntry = true
	cfg.ReversionPct = 0

	candlesTick1 := warmupCandles(50, 24, 23, 20)
	candlesTick1[len(candlesTick1)-2].EMA7, candlesTick1[len(candlesTick1)-2].EMA25 = 24, 25
	last1 := &candlesTick1[len(candlesTick1)-1]
	last1.EMA7, last1.EMA25, last1.EMA99 = 26, 25, 20
	last1.Close = 105

	pos, stats, orders := Evaluate(candlesTick1, cfg, model.EmptyPosition(), flatStats(), fixedNow)
	if len(orders) != 0 {
		t.Fatalf("expected no order on the deferred tick, got %d", len(orders))
	}
	if pos.PendingReversion != model.DirectionLong {
		t.Fatalf("expected pendingReversion LONG, got %s", pos.PendingReversion)
	}

	candlesTick2 := warmupCandles(50, 26, 25, 20)
	last2 := &candlesTick2[len(candlesTick2)-1]
	last2.EMA7 = 100
	last2.Close = 99.5

	pos2, _, orders2 := Evaluate(candlesTick2, cfg, pos, stats, fixedNow)
	if len(orders2) != 1 {
		t.Fatalf("expected 1 order on trigger tick, got %d", len(orders2))
	}
	o := orders2[0]
	if o.Action != "buy" || o.Position != "long" {
		t.Fatalf("expected buy/long, got %s/%s", o.Action, o.Position)
	}
	if o.ExecutionPrice != 99.5 {
		t.Fatalf("expected execution price 99.5, got %v", o.ExecutionPrice)
	}
	if pos2.PendingReversion != "" && pos2.PendingReversion != model.DirectionFlat {
		t.Fatalf("expected pendingReversion cleared, got %s", pos2.PendingReversion)
	}
	if pos2.Direction != model.DirectionLong {
		t.Fatalf("expected resulting position LONG, got %s", pos2.Direction)
	}
}

// Scenario 6: identity guard — symbol mismatch produces no orders and no
// state change. The Evaluation Core itself is symbol-agnostic; the check
// lives in the Strategy Runtime (§4.7), exercised in runtime_test.go. Here
// we instead pin the universal invariant that isActive=false is a pure
// passthrough regardless of candle content.
func TestEvaluate_InactiveConfigIsPassthrough(t *testing.T) {
	candles := warmupCandles(60, 26, 25, 20)
	candles[len(candles)-2].EMA7, candles[len(candles)-2].EMA25 = 24, 25
	last := &candles[len(candles)-1]
	last.EMA7, last.EMA25 = 26, 25

	cfg := baseConfig()
	cfg.IsActive = false

	pos := model.EmptyPosition()
	stats := flatStats()
	newPos, newStats, orders := Evaluate(candles, cfg, pos, stats, fixedNow)

	if len(orders) != 0 {
		t.Fatalf("expected no orders when inactive, got %d", len(orders))
	}
	if newPos.Direction != pos.Direction || newStats != stats {
		t.Fatalf("expected unchanged position/stats when inactive")
	}
}

func TestEvaluate_RemainingQtyNeverIncreases(t *testing.T) {
	candles := warmupCandles(50, 24, 23, 20)
	last := &candles[len(candles)-1]
	last.Low = 196
	last.High = 200
	last.Close = 197

	cfg := baseConfig()
	cfg.UseMultiTPSL = true
	cfg.TPLevels = []model.TPSLLevel{{Active: true, Pct: 1, QtyPct: 50}}

	pos := model.PositionState{
		Direction: model.DirectionShort, InitialQty: 4, RemainingQty: 4, EntryPrice: 200,
		TPLevelsHit: []bool{false},
	}
	newPos, _, _ := Evaluate(candles, cfg, pos, flatStats(), fixedNow)
	if newPos.RemainingQty > pos.RemainingQty {
		t.Fatalf("remaining qty increased: %v -> %v", pos.RemainingQty, newPos.RemainingQty)
	}
}
