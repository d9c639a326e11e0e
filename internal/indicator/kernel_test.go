// internal/indicator/kernel_test.go
package indicator

import (
	"math"
	"testing"

	"github.com/holoworlds/tradingmonitor/internal/model"
)

func closesToCandles(closes []float64) []model.Candle {
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = model.Candle{Symbol: "BTCUSDT", OpenTime: int64(i) * 60000, Open: c, High: c, Low: c, Close: c, IsClosed: true}
	}
	return out
}

func TestEnrich_UndefinedBeforeWindow(t *testing.T) {
	closes := make([]float64, 6)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	candles := closesToCandles(closes)
	out := Enrich(candles, MACDParams{Fast: 2, Slow: 4, Signal: 2})

	for i := 0; i < 6; i++ {
		if i < 6 && IsDefined(out[i].EMA7) {
			t.Fatalf("expected EMA7 undefined at index %d (need 7 candles, have 6)", i)
		}
	}
}

func TestEnrich_EMASeedIsSimpleMean(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7}
	candles := closesToCandles(closes)
	out := Enrich(candles, MACDParams{Fast: 2, Slow: 3, Signal: 2})

	want := 4.0 // mean(1..7)
	if math.Abs(out[6].EMA7-want) > 1e-9 {
		t.Fatalf("EMA7 seed = %v, want %v", out[6].EMA7, want)
	}
}

func TestEnrich_Deterministic(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 12, 11, 14, 15, 16, 17}
	candles := closesToCandles(closes)

	a := Enrich(candles, MACDParams{Fast: 2, Slow: 4, Signal: 2})
	b := Enrich(candles, MACDParams{Fast: 2, Slow: 4, Signal: 2})

	for i := range a {
		if a[i].EMA7 != b[i].EMA7 || a[i].MACDLine != b[i].MACDLine {
			if !math.IsNaN(a[i].EMA7) || !math.IsNaN(b[i].EMA7) {
				t.Fatalf("non-deterministic output at index %d", i)
			}
		}
	}
}

func TestEnrich_DoesNotMutateInput(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	candles := closesToCandles(closes)
	original := candles[0].Close

	_ = Enrich(candles, MACDParams{Fast: 2, Slow: 3, Signal: 2})

	if candles[0].Close != original {
		t.Fatalf("Enrich mutated input slice")
	}
	if candles[0].EMA7 != 0 {
		t.Fatalf("input candle unexpectedly enriched in place")
	}
}

func TestEnrich_MACDHistogram(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}
	candles := closesToCandles(closes)
	out := Enrich(candles, MACDParams{Fast: 3, Slow: 6, Signal: 3})

	last := out[len(out)-1]
	if !IsDefined(last.MACDLine) || !IsDefined(last.MACDSignal) {
		t.Fatalf("expected MACD to be defined by candle %d", len(out))
	}
	if math.Abs(last.MACDHist-(last.MACDLine-last.MACDSignal)) > 1e-9 {
		t.Fatalf("MACDHist = %v, want line-signal = %v", last.MACDHist, last.MACDLine-last.MACDSignal)
	}
}
