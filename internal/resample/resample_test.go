// internal/resample/resample_test.go
package resample

import (
	"testing"

	"github.com/holoworlds/tradingmonitor/internal/model"
)

func mkCandle(openTime int64, o, h, l, c, v float64, closed bool) model.Candle {
	return model.Candle{Symbol: "BTCUSDT", OpenTime: openTime, Open: o, High: h, Low: l, Close: c, Volume: v, IsClosed: closed}
}

func TestResample_BucketAlignment(t *testing.T) {
	// 1m base into 5m target: five 1m candles should form one bucket.
	base := []model.Candle{
		mkCandle(0, 1, 2, 0.5, 1.5, 10, true),
		mkCandle(60000, 1.5, 3, 1, 2, 10, true),
		mkCandle(120000, 2, 2.5, 1.8, 2.2, 10, true),
		mkCandle(180000, 2.2, 2.6, 2.0, 2.4, 10, true),
		mkCandle(240000, 2.4, 2.8, 2.1, 2.5, 10, true),
	}

	out, err := Resample(base, model.Interval1m, "5m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(out))
	}
	got := out[0]
	if got.OpenTime != 0 {
		t.Fatalf("bucket start = %d, want 0", got.OpenTime)
	}
	if got.Open != 1 || got.Close != 2.5 {
		t.Fatalf("open/close = %v/%v, want 1/2.5", got.Open, got.Close)
	}
	if got.High != 3 {
		t.Fatalf("high = %v, want max 3", got.High)
	}
	if got.Low != 0.5 {
		t.Fatalf("low = %v, want min 0.5", got.Low)
	}
	if got.Volume != 50 {
		t.Fatalf("volume = %v, want 50", got.Volume)
	}
	if !got.IsClosed {
		t.Fatalf("expected bucket closed once last base candle closes and reaches bucket end")
	}
}

func TestResample_OpenBucketNotClosedEarly(t *testing.T) {
	base := []model.Candle{
		mkCandle(0, 1, 2, 0.5, 1.5, 10, true),
		mkCandle(60000, 1.5, 3, 1, 2, 10, false), // still open, hasn't reached bucket end
	}
	out, err := Resample(base, model.Interval1m, "5m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(out))
	}
	if out[0].IsClosed {
		t.Fatalf("bucket should not be closed while base candle is open and short of bucket end")
	}
}

func TestResample_IdentityWhenBaseEqualsTarget(t *testing.T) {
	base := []model.Candle{mkCandle(0, 1, 2, 0.5, 1.5, 10, true)}
	out, err := Resample(base, model.Interval1m, model.Interval1m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0] != base[0] {
		t.Fatalf("identity resample should return the same candles")
	}
}

func TestResample_MultipleBuckets(t *testing.T) {
	base := []model.Candle{
		mkCandle(0, 1, 2, 0.5, 1.5, 10, true),
		mkCandle(60000, 1.5, 3, 1, 2, 10, true),
		mkCandle(300000, 2, 2.5, 1.8, 2.2, 5, true),
	}
	out, err := Resample(base, model.Interval1m, "5m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(out))
	}
	if out[0].OpenTime != 0 || out[1].OpenTime != 300000 {
		t.Fatalf("unexpected bucket starts: %v %v", out[0].OpenTime, out[1].OpenTime)
	}
}
