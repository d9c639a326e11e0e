// internal/resample/resample.go
package resample

import (
	"github.com/holoworlds/tradingmonitor/internal/model"
)

// Resample агрегирует свечи базового интервала в целевой интервал по
// корзинам ⌊openTime/targetMs⌋×targetMs. Вызывается только когда target
// не является нативным для биржи; base должен быть базовым интервалом
// target'а (model.Interval.BaseInterval()).
func Resample(baseCandles []model.Candle, base, target model.Interval) ([]model.Candle, error) {
	if base == target {
		return model.CloneCandles(baseCandles), nil
	}

	targetMs, err := target.Millis()
	if err != nil {
		return nil, err
	}
	baseMs, err := base.Millis()
	if err != nil {
		return nil, err
	}

	if len(baseCandles) == 0 {
		return nil, nil
	}

	var out []model.Candle
	var order []int64 // порядок появления bucket start, для стабильного вывода

	buckets := make(map[int64]int) // bucket start -> index in out

	for _, c := range baseCandles {
		bucketStart := (c.OpenTime / targetMs) * targetMs

		idx, exists := buckets[bucketStart]
		if !exists {
			agg := model.Candle{
				Symbol:   c.Symbol,
				OpenTime: bucketStart,
				Open:     c.Open,
				High:     c.High,
				Low:      c.Low,
				Close:    c.Close,
				Volume:   c.Volume,
				IsClosed: false,
			}
			out = append(out, agg)
			idx = len(out) - 1
			buckets[bucketStart] = idx
			order = append(order, bucketStart)
		} else {
			agg := &out[idx]
			if c.High > agg.High {
				agg.High = c.High
			}
			if c.Low < agg.Low {
				agg.Low = c.Low
			}
			agg.Close = c.Close
			agg.Volume += c.Volume
		}

		if c.IsClosed && c.OpenTime+baseMs >= bucketStart+targetMs {
			out[idx].IsClosed = true
		}
	}

	return out, nil
}
