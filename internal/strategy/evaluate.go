// internal/strategy/evaluate.go
package strategy

import (
	"math"
	"strconv"
	"time"

	"github.com/holoworlds/tradingmonitor/internal/indicator"
	"github.com/holoworlds/tradingmonitor/internal/model"
)

const minCandlesForEvaluation = 50
const epsilon = 1e-6

// Evaluate — Evaluation Core: чистая функция без побочных эффектов.
// candles — окно, уже обогащённое Indicator Kernel'ом (EMA7/25/99, MACD).
// now инжектируется вызывающим (Strategy Runtime), чтобы граница суток и
// временные метки ордеров были детерминированы в тестах.
func Evaluate(candles []model.Candle, cfg model.StrategyConfig, pos model.PositionState, stats model.TradeStats, now time.Time) (model.PositionState, model.TradeStats, []model.Order) {
	if len(candles) < minCandlesForEvaluation || !cfg.IsActive {
		return pos, stats, nil
	}

	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	if !indicator.IsDefined(last.EMA7) || !indicator.IsDefined(last.EMA25) || !indicator.IsDefined(last.EMA99) {
		return pos, stats, nil
	}

	today := now.UTC().Format("2006-01-02")
	if stats.LastTradeDate != today {
		stats.LastTradeDate = today
		stats.DailyTradeCount = 0
	}
	canOpen := stats.DailyTradeCount < cfg.MaxDailyTrades

	signalGate := true
	if cfg.TriggerOnClose {
		signalGate = last.IsClosed
	}
	signals := buildSignals(cfg, prev, last, signalGate)

	if !pos.IsFlat() {
		return evaluateOpenPosition(cfg, pos, stats, signals, last, now, canOpen)
	}

	if cfg.ManualTakeover || !canOpen {
		return pos, stats, nil
	}
	return evaluateEntry(cfg, pos, stats, signals, last, now)
}

// evaluateOpenPosition drives the "not FLAT" lifecycle (§4.8), trying in
// order: signal exit, fixed TP/SL, trailing stop, multi-level TP/SL ladder,
// then the "all levels reached" cleanup.
func evaluateOpenPosition(cfg model.StrategyConfig, pos model.PositionState, stats model.TradeStats, signals []signal, last model.Candle, now time.Time, canOpen bool) (model.PositionState, model.TradeStats, []model.Order) {
	var orders []model.Order

	closeReason := ""
	isSignalExit := false

	if reason, fired := exitReason(signals, pos.Direction); fired {
		closeReason = reason
		isSignalExit = true
	}

	if closeReason == "" && cfg.UseFixedTPSL && !cfg.UseTrailingStop && !cfg.UseMultiTPSL {
		if reason, fired := fixedTPSLHit(cfg, pos, last); fired {
			closeReason = reason
		}
	}

	if closeReason == "" && cfg.UseTrailingStop {
		if reason, fired := trailingStopHit(cfg, &pos, last); fired {
			closeReason = reason
		}
	}

	if closeReason == "" && cfg.UseMultiTPSL && !cfg.UseTrailingStop {
		orders = append(orders, evaluateMultiTPSL(cfg, &pos, last, now)...)
	}

	if closeReason == "" && pos.RemainingQty <= epsilon {
		closeReason = "all levels reached"
	}

	if closeReason == "" {
		return pos, stats, orders
	}

	if pos.RemainingQty > epsilon {
		orders = append(orders, buildCloseOrder(cfg, pos.Direction, pos.RemainingQty, last.Close, closeReason, true, now))
	}

	closedDirection := pos.Direction
	pos = model.EmptyPosition()
	stats.DailyTradeCount++

	if cfg.UseReverse && isSignalExit && !cfg.ManualTakeover && canOpen {
		var reverseDirection model.Direction
		allowed := false
		if closedDirection == model.DirectionLong && cfg.ReverseLongToShort {
			reverseDirection = model.DirectionShort
			allowed = true
		} else if closedDirection == model.DirectionShort && cfg.ReverseShortToLong {
			reverseDirection = model.DirectionLong
			allowed = true
		}
		if allowed {
			newPos := openPosition(cfg, reverseDirection, last)
			orders = append(orders, buildOpenOrder(cfg, reverseDirection, newPos.InitialQty, last.Close, "reverse open", now))
			pos = newPos
		}
	}

	return pos, stats, orders
}

func fixedTPSLHit(cfg model.StrategyConfig, pos model.PositionState, last model.Candle) (string, bool) {
	if pos.Direction == model.DirectionLong {
		tp := pos.EntryPrice * (1 + cfg.TakeProfitPct/100)
		sl := pos.EntryPrice * (1 - cfg.StopLossPct/100)
		if last.High >= tp {
			return "fixed TP", true
		}
		if last.Low <= sl {
			return "fixed SL", true
		}
		return "", false
	}
	tp := pos.EntryPrice * (1 - cfg.TakeProfitPct/100)
	sl := pos.EntryPrice * (1 + cfg.StopLossPct/100)
	if last.Low <= tp {
		return "fixed TP", true
	}
	if last.High >= sl {
		return "fixed SL", true
	}
	return "", false
}

// trailingStopHit updates pos.HighestPrice/LowestPrice unconditionally and
// reports whether the trailing distance has been breached. Arming is
// one-shot: activation is a threshold on the running extremum, not a
// latched flag, so once the extremum has passed activation it never
// un-arms even if price later retreats below it.
func trailingStopHit(cfg model.StrategyConfig, pos *model.PositionState, last model.Candle) (string, bool) {
	if pos.Direction == model.DirectionLong {
		if last.High > pos.HighestPrice {
			pos.HighestPrice = last.High
		}
		activation := pos.EntryPrice * (1 + cfg.TrailingActivationPct/100)
		if pos.HighestPrice < activation {
			return "", false
		}
		stop := pos.HighestPrice * (1 - cfg.TrailingDistancePct/100)
		if last.Low <= stop {
			return "trailing stop", true
		}
		return "", false
	}

	if last.Low < pos.LowestPrice || pos.LowestPrice == 0 {
		pos.LowestPrice = last.Low
	}
	activation := pos.EntryPrice * (1 - cfg.TrailingActivationPct/100)
	if pos.LowestPrice > activation {
		return "", false
	}
	stop := pos.LowestPrice * (1 + cfg.TrailingDistancePct/100)
	if last.High >= stop {
		return "trailing stop", true
	}
	return "", false
}

// evaluateMultiTPSL walks TP levels then SL levels in configured order,
// emitting a partial-close order (never final — the position stays open
// under its current direction label) for each newly-hit level and reducing
// RemainingQty in place.
func evaluateMultiTPSL(cfg model.StrategyConfig, pos *model.PositionState, last model.Candle, now time.Time) []model.Order {
	var orders []model.Order

	for i, level := range cfg.TPLevels {
		if !level.Active || i >= len(pos.TPLevelsHit) || pos.TPLevelsHit[i] || pos.RemainingQty <= epsilon {
			continue
		}
		var hit bool
		if pos.Direction == model.DirectionLong {
			target := pos.EntryPrice * (1 + level.Pct/100)
			hit = last.High >= target
		} else {
			target := pos.EntryPrice * (1 - level.Pct/100)
			hit = last.Low <= target
		}
		if !hit {
			continue
		}
		reduce := math.Min(pos.InitialQty*level.QtyPct/100, pos.RemainingQty)
		orders = append(orders, buildCloseOrder(cfg, pos.Direction, reduce, last.Close, tpLevelReason(i), false, now))
		pos.TPLevelsHit[i] = true
		pos.RemainingQty -= reduce
	}

	for i, level := range cfg.SLLevels {
		if !level.Active || i >= len(pos.SLLevelsHit) || pos.SLLevelsHit[i] || pos.RemainingQty <= epsilon {
			continue
		}
		var hit bool
		if pos.Direction == model.DirectionLong {
			target := pos.EntryPrice * (1 - level.Pct/100)
			hit = last.Low <= target
		} else {
			target := pos.EntryPrice * (1 + level.Pct/100)
			hit = last.High >= target
		}
		if !hit {
			continue
		}
		reduce := math.Min(pos.InitialQty*level.QtyPct/100, pos.RemainingQty)
		orders = append(orders, buildCloseOrder(cfg, pos.Direction, reduce, last.Close, slLevelReason(i), false, now))
		pos.SLLevelsHit[i] = true
		pos.RemainingQty -= reduce
	}

	return orders
}

func tpLevelReason(i int) string { return levelReason("TP", i) }
func slLevelReason(i int) string { return levelReason("SL", i) }

func levelReason(kind string, i int) string {
	return kind + " level " + strconv.Itoa(i+1)
}

// evaluateEntry drives the "FLAT" entry lifecycle (§4.8): immediate mode
// opens directly on a fired entry reason; deferred reversion mode instead
// arms pendingReversion and waits for price to pull back to EMA7 before
// opening.
func evaluateEntry(cfg model.StrategyConfig, pos model.PositionState, stats model.TradeStats, signals []signal, last model.Candle, now time.Time) (model.PositionState, model.TradeStats, []model.Order) {
	longReason, longFired := entryReason(signals, model.DirectionLong)
	shortReason, shortFired := entryReason(signals, model.DirectionShort)

	trendLong := last.EMA7 > last.EMA25 && last.EMA25 > last.EMA99
	trendShort := last.EMA7 < last.EMA25 && last.EMA25 < last.EMA99
	if cfg.TrendFilterBlockLong && trendShort {
		longFired = false
	}
	if cfg.TrendFilterBlockShort && trendLong {
		shortFired = false
	}

	if !cfg.UseReversionEntry {
		if longFired {
			newPos := openPosition(cfg, model.DirectionLong, last)
			return newPos, stats, []model.Order{buildOpenOrder(cfg, model.DirectionLong, newPos.InitialQty, last.Close, longReason, now)}
		}
		if shortFired {
			newPos := openPosition(cfg, model.DirectionShort, last)
			return newPos, stats, []model.Order{buildOpenOrder(cfg, model.DirectionShort, newPos.InitialQty, last.Close, shortReason, now)}
		}
		return pos, stats, nil
	}

	if pos.PendingReversion == "" || pos.PendingReversion == model.DirectionFlat {
		if longFired {
			pos.PendingReversion = model.DirectionLong
			pos.PendingReversionReason = longReason
		} else if shortFired {
			pos.PendingReversion = model.DirectionShort
			pos.PendingReversionReason = shortReason
		}
		return pos, stats, nil
	}

	target := last.EMA7 * (1 + cfg.ReversionPct/100)
	triggered := false
	if pos.PendingReversion == model.DirectionLong && last.Close <= target {
		triggered = true
	}
	if pos.PendingReversion == model.DirectionShort && last.Close >= target {
		triggered = true
	}

	if triggered {
		direction := pos.PendingReversion
		reason := pos.PendingReversionReason + " (reverted to EMA7)"
		newPos := openPosition(cfg, direction, last)
		return newPos, stats, []model.Order{buildOpenOrder(cfg, direction, newPos.InitialQty, last.Close, reason, now)}
	}

	if pos.PendingReversion == model.DirectionLong && shortFired {
		pos.PendingReversion = model.DirectionShort
		pos.PendingReversionReason = shortReason
	} else if pos.PendingReversion == model.DirectionShort && longFired {
		pos.PendingReversion = model.DirectionLong
		pos.PendingReversionReason = longReason
	}

	return pos, stats, nil
}
