// internal/indicator/kernel.go
package indicator

import (
	"math"

	"github.com/holoworlds/tradingmonitor/internal/model"
)

// MACDParams — периоды MACD, приходящие из StrategyConfig.
type MACDParams struct {
	Fast   int
	Slow   int
	Signal int
}

// DefaultMACDParams — стандартные 12/26/9, используются, если стратегия не
// задала свои значения.
var DefaultMACDParams = MACDParams{Fast: 12, Slow: 26, Signal: 9}

// undefined — маркер "значение не определено" для ещё не готового окна EMA.
var undefined = math.NaN()

// IsDefined сообщает, посчитан ли индикатор для данной точки.
func IsDefined(v float64) bool {
	return !math.IsNaN(v)
}

// Enrich — чистая функция: возвращает новый срез свечей, дополненный
// EMA(7/25/99) и MACD(fast/slow/signal). Не изменяет входной срез.
// Повторный вызов с теми же входами всегда даёт тот же результат.
func Enrich(candles []model.Candle, params MACDParams) []model.Candle {
	if params.Fast == 0 && params.Slow == 0 && params.Signal == 0 {
		params = DefaultMACDParams
	}

	out := model.CloneCandles(candles)
	if len(out) == 0 {
		return out
	}

	closes := make([]float64, len(out))
	for i, c := range out {
		closes[i] = c.Close
	}

	ema7 := ema(closes, 7)
	ema25 := ema(closes, 25)
	ema99 := ema(closes, 99)

	emaFast := ema(closes, params.Fast)
	emaSlow := ema(closes, params.Slow)

	macdLine := make([]float64, len(out))
	for i := range macdLine {
		if IsDefined(emaFast[i]) && IsDefined(emaSlow[i]) {
			macdLine[i] = emaFast[i] - emaSlow[i]
		} else {
			macdLine[i] = undefined
		}
	}
	macdSignal := emaSkippingUndefined(macdLine, params.Signal)

	for i := range out {
		out[i].EMA7 = ema7[i]
		out[i].EMA25 = ema25[i]
		out[i].EMA99 = ema99[i]
		out[i].MACDLine = macdLine[i]
		out[i].MACDSignal = macdSignal[i]
		if IsDefined(macdLine[i]) && IsDefined(macdSignal[i]) {
			out[i].MACDHist = macdLine[i] - macdSignal[i]
		} else {
			out[i].MACDHist = undefined
		}
	}

	return out
}

// ema считает экспоненциальную скользящую среднюю периода n над values.
// Затравка — простое среднее первых n значений; для индексов < n-1
// значение не определено (NaN).
func ema(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = undefined
	}
	if n <= 0 || len(values) < n {
		return out
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		sum += values[i]
	}
	seed := sum / float64(n)
	out[n-1] = seed

	alpha := 2.0 / float64(n+1)
	prev := seed
	for i := n; i < len(values); i++ {
		v := values[i]*alpha + prev*(1-alpha)
		out[i] = v
		prev = v
	}
	return out
}

// emaSkippingUndefined считает EMA периода n над серии, часть значений
// которой может быть undefined (NaN) в начале — семантика та же, что у ema,
// но окно затравки начинается с первого определённого значения.
func emaSkippingUndefined(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = undefined
	}
	if n <= 0 {
		return out
	}

	start := -1
	for i, v := range values {
		if IsDefined(v) {
			start = i
			break
		}
	}
	if start < 0 || len(values)-start < n {
		return out
	}

	sum := 0.0
	for i := start; i < start+n; i++ {
		sum += values[i]
	}
	seed := sum / float64(n)
	seedIdx := start + n - 1
	out[seedIdx] = seed

	alpha := 2.0 / float64(n+1)
	prev := seed
	for i := seedIdx + 1; i < len(values); i++ {
		v := values[i]*alpha + prev*(1-alpha)
		out[i] = v
		prev = v
	}
	return out
}
