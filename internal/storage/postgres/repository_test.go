// internal/storage/postgres/repository_test.go
package postgres

import (
	"encoding/json"
	"testing"

	"github.com/holoworlds/tradingmonitor/internal/model"
)

// These pin the JSON round trip the *Repository types rely on without
// requiring a live Postgres connection.

func TestStrategySnapshot_JSONRoundTrip(t *testing.T) {
	snap := model.StrategySnapshot{
		Config: model.StrategyConfig{ID: "s1", Symbol: "BTCUSDT", Interval: model.Interval1h, TradeAmount: 100},
		Position: model.PositionState{
			Direction: model.DirectionLong, InitialQty: 2, RemainingQty: 2, EntryPrice: 50,
			TPLevelsHit: []bool{false, true},
		},
		Stats: model.TradeStats{DailyTradeCount: 3, LastTradeDate: "2026-01-15"},
	}

	configJSON, err := json.Marshal(snap.Config)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	positionJSON, err := json.Marshal(snap.Position)
	if err != nil {
		t.Fatalf("marshal position: %v", err)
	}
	statsJSON, err := json.Marshal(snap.Stats)
	if err != nil {
		t.Fatalf("marshal stats: %v", err)
	}

	var roundTripped model.StrategySnapshot
	if err := json.Unmarshal(configJSON, &roundTripped.Config); err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	if err := json.Unmarshal(positionJSON, &roundTripped.Position); err != nil {
		t.Fatalf("unmarshal position: %v", err)
	}
	if err := json.Unmarshal(statsJSON, &roundTripped.Stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}

	if roundTripped.Config.ID != "s1" || roundTripped.Config.Symbol != "BTCUSDT" {
		t.Fatalf("config did not round-trip: %+v", roundTripped.Config)
	}
	if roundTripped.Position.Direction != model.DirectionLong || len(roundTripped.Position.TPLevelsHit) != 2 {
		t.Fatalf("position did not round-trip: %+v", roundTripped.Position)
	}
	if roundTripped.Stats.DailyTradeCount != 3 {
		t.Fatalf("stats did not round-trip: %+v", roundTripped.Stats)
	}
}

func TestStrategySnapshot_MalformedPositionFallsBackToFlat(t *testing.T) {
	var pos model.PositionState
	err := json.Unmarshal([]byte(`not json`), &pos)
	if err == nil {
		t.Fatalf("expected unmarshal error on malformed JSON")
	}
	// LoadAll's fallback path substitutes model.EmptyPosition() in this case;
	// confirm that helper itself always yields a flat, zero-quantity state.
	empty := model.EmptyPosition()
	if !empty.IsFlat() || empty.RemainingQty != 0 {
		t.Fatalf("expected EmptyPosition to be flat with zero quantity")
	}
}
