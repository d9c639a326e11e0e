// internal/strategy/signals.go
package strategy

import (
	"github.com/holoworlds/tradingmonitor/internal/indicator"
	"github.com/holoworlds/tradingmonitor/internal/model"
)

// signal описывает один из пяти сигналов пересечения (§4.8 "Entry reason
// selection"), с текстами причин для входа и выхода в обе стороны.
type signal struct {
	enabled      bool
	longEnabled  bool
	shortEnabled bool
	crossOver    bool // A пересекла B снизу вверх на этом тике
	crossUnder   bool // A пересекла B сверху вниз на этом тике

	openLongText   string
	openShortText  string
	closeLongText  string
	closeShortText string
}

func crossOver(prevA, prevB, lastA, lastB float64) bool {
	return prevA <= prevB && lastA > lastB
}

func crossUnder(prevA, prevB, lastA, lastB float64) bool {
	return prevA >= prevB && lastA < lastB
}

// buildSignals собирает пять сигналов в порядке приоритета (§4.8):
// EMA7/25, EMA7/99, EMA25/99, EMA double, MACD. signalGate=false гасит все
// пересечения (TP/SL/трейлинг эту функцию не используют — они считаются
// всегда).
func buildSignals(cfg model.StrategyConfig, prev, last model.Candle, signalGate bool) []signal {
	ema7v25Over := crossOver(prev.EMA7, prev.EMA25, last.EMA7, last.EMA25)
	ema7v25Under := crossUnder(prev.EMA7, prev.EMA25, last.EMA7, last.EMA25)

	ema7v99Over := crossOver(prev.EMA7, prev.EMA99, last.EMA7, last.EMA99)
	ema7v99Under := crossUnder(prev.EMA7, prev.EMA99, last.EMA7, last.EMA99)

	ema25v99Over := crossOver(prev.EMA25, prev.EMA99, last.EMA25, last.EMA99)
	ema25v99Under := crossUnder(prev.EMA25, prev.EMA99, last.EMA25, last.EMA99)

	doubleOver := ema7v99Over || ema25v99Over
	doubleUnder := ema7v99Under || ema25v99Under

	macdOver := false
	macdUnder := false
	if indicator.IsDefined(prev.MACDLine) && indicator.IsDefined(prev.MACDSignal) &&
		indicator.IsDefined(last.MACDLine) && indicator.IsDefined(last.MACDSignal) {
		macdOver = crossOver(prev.MACDLine, prev.MACDSignal, last.MACDLine, last.MACDSignal)
		macdUnder = crossUnder(prev.MACDLine, prev.MACDSignal, last.MACDLine, last.MACDSignal)
	}

	gate := func(v bool) bool { return v && signalGate }

	return []signal{
		{
			enabled: cfg.UseEMA7_25, longEnabled: cfg.EMA7_25Long, shortEnabled: cfg.EMA7_25Short,
			crossOver: gate(ema7v25Over), crossUnder: gate(ema7v25Under),
			openLongText: "EMA7 crosses above 25 open long", openShortText: "EMA7 crosses below 25 open short",
			closeLongText: "EMA7 crosses below 25 close long", closeShortText: "EMA7 crosses above 25 close short",
		},
		{
			enabled: cfg.UseEMA7_99, longEnabled: cfg.EMA7_99Long, shortEnabled: cfg.EMA7_99Short,
			crossOver: gate(ema7v99Over), crossUnder: gate(ema7v99Under),
			openLongText: "EMA7 crosses above 99 open long", openShortText: "EMA7 crosses below 99 open short",
			closeLongText: "EMA7 crosses below 99 close long", closeShortText: "EMA7 crosses above 99 close short",
		},
		{
			enabled: cfg.UseEMA25_99, longEnabled: cfg.EMA25_99Long, shortEnabled: cfg.EMA25_99Short,
			crossOver: gate(ema25v99Over), crossUnder: gate(ema25v99Under),
			openLongText: "EMA25 crosses above 99 open long", openShortText: "EMA25 crosses below 99 open short",
			closeLongText: "EMA25 crosses below 99 close long", closeShortText: "EMA25 crosses above 99 close short",
		},
		{
			enabled: cfg.UseEMADouble, longEnabled: cfg.EMADoubleLong, shortEnabled: cfg.EMADoubleShort,
			crossOver: gate(doubleOver), crossUnder: gate(doubleUnder),
			openLongText: "EMA7/25 crosses above 99 open long", openShortText: "EMA7/25 crosses below 99 open short",
			closeLongText: "EMA7/25 crosses below 99 close long", closeShortText: "EMA7/25 crosses above 99 close short",
		},
		{
			enabled: cfg.UseMACD, longEnabled: cfg.MACDLong, shortEnabled: cfg.MACDShort,
			crossOver: gate(macdOver), crossUnder: gate(macdUnder),
			openLongText: "MACD crosses above signal open long", openShortText: "MACD crosses below signal open short",
			closeLongText: "MACD crosses below signal close long", closeShortText: "MACD crosses above signal close short",
		},
	}
}

// entryReason walks signals in priority order and returns the first fired
// entry reason for direction.
func entryReason(signals []signal, direction model.Direction) (string, bool) {
	for _, s := range signals {
		if !s.enabled {
			continue
		}
		switch direction {
		case model.DirectionLong:
			if s.longEnabled && s.crossOver {
				return s.openLongText, true
			}
		case model.DirectionShort:
			if s.shortEnabled && s.crossUnder {
				return s.openShortText, true
			}
		}
	}
	return "", false
}

// exitReason walks signals in the same priority order and returns the first
// fired exit reason for a currently-open position of the given direction.
// A signal exits a position via the opposite cross of the one that would
// open it (long entered on cross-over, exits on cross-under; and
// symmetrically for short).
func exitReason(signals []signal, direction model.Direction) (string, bool) {
	for _, s := range signals {
		if !s.enabled {
			continue
		}
		switch direction {
		case model.DirectionLong:
			if s.longEnabled && s.crossUnder {
				return s.closeLongText, true
			}
		case model.DirectionShort:
			if s.shortEnabled && s.crossOver {
				return s.closeShortText, true
			}
		}
	}
	return "", false
}
