// internal/supervisor/supervisor_test.go
package supervisor

import (
	"sync"
	"testing"

	"github.com/holoworlds/tradingmonitor/internal/config"
	"github.com/holoworlds/tradingmonitor/internal/model"
	"github.com/holoworlds/tradingmonitor/internal/webhook"
)

// memStore is an in-memory stand-in for both cachedStore and
// persistentStore, used so these tests never touch Redis or Postgres.
type memStore struct {
	mu   sync.Mutex
	data map[string]model.StrategySnapshot
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]model.StrategySnapshot)}
}

func (m *memStore) Save(snap model.StrategySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[snap.Config.ID] = snap
	return nil
}

func (m *memStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func (m *memStore) LoadAll() []model.StrategySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.StrategySnapshot, 0, len(m.data))
	for _, snap := range m.data {
		out = append(out, snap)
	}
	return out
}

func testConfig(id, symbol string) model.StrategyConfig {
	return model.StrategyConfig{
		ID: id, Name: "t", Symbol: symbol, Interval: model.Interval1h,
		IsActive: true, TradeAmount: 100, MaxDailyTrades: 10,
	}
}

func TestSupervisor_AddStrategy_PersistsImmediately(t *testing.T) {
	cache := newMemStore()
	sup := New(nil, webhook.NewDispatcher(""), cache, nil, config.SupervisorConfig{})

	if err := sup.AddStrategy(testConfig("s1", "BTCUSDT")); err != nil {
		t.Fatalf("AddStrategy: %v", err)
	}
	if _, err := sup.Snapshot("s1"); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(cache.LoadAll()) != 1 {
		t.Fatalf("expected 1 cached snapshot, got %d", len(cache.LoadAll()))
	}
}

func TestSupervisor_AddStrategy_DuplicateIDRejected(t *testing.T) {
	sup := New(nil, webhook.NewDispatcher(""), nil, nil, config.SupervisorConfig{})
	if err := sup.AddStrategy(testConfig("s1", "BTCUSDT")); err != nil {
		t.Fatalf("AddStrategy: %v", err)
	}
	if err := sup.AddStrategy(testConfig("s1", "ETHUSDT")); err != ErrStrategyExists {
		t.Fatalf("expected ErrStrategyExists, got %v", err)
	}
}

func TestSupervisor_RemoveStrategy_ClearsPersistence(t *testing.T) {
	cache := newMemStore()
	persistent := newMemStore()
	sup := New(nil, webhook.NewDispatcher(""), cache, persistent, config.SupervisorConfig{})

	_ = sup.AddStrategy(testConfig("s1", "BTCUSDT"))
	if err := sup.RemoveStrategy("s1"); err != nil {
		t.Fatalf("RemoveStrategy: %v", err)
	}
	if _, err := sup.Snapshot("s1"); err != ErrStrategyNotFound {
		t.Fatalf("expected ErrStrategyNotFound after removal, got %v", err)
	}
	if len(cache.LoadAll()) != 0 || len(persistent.LoadAll()) != 0 {
		t.Fatalf("expected both stores cleared on removal")
	}
}

func TestSupervisor_UpdateConfig_UnknownIDErrors(t *testing.T) {
	sup := New(nil, webhook.NewDispatcher(""), nil, nil, config.SupervisorConfig{})
	if err := sup.UpdateConfig("missing", testConfig("missing", "BTCUSDT")); err != ErrStrategyNotFound {
		t.Fatalf("expected ErrStrategyNotFound, got %v", err)
	}
}

func TestSupervisor_ManualOrder_UnknownIDErrors(t *testing.T) {
	sup := New(nil, webhook.NewDispatcher(""), nil, nil, config.SupervisorConfig{})
	if err := sup.ManualOrder("missing", model.DirectionLong); err != ErrStrategyNotFound {
		t.Fatalf("expected ErrStrategyNotFound, got %v", err)
	}
}

func TestSupervisor_Restore_PrefersCacheOverPersistent(t *testing.T) {
	cache := newMemStore()
	persistent := newMemStore()

	cached := model.StrategySnapshot{Config: testConfig("s1", "BTCUSDT"), Position: model.EmptyPosition()}
	stale := model.StrategySnapshot{Config: testConfig("s1", "ETHUSDT"), Position: model.EmptyPosition()}
	_ = cache.Save(cached)
	_ = persistent.Save(stale)

	sup := New(nil, webhook.NewDispatcher(""), cache, persistent, config.SupervisorConfig{})
	sup.Restore()

	snap, err := sup.Snapshot("s1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Config.Symbol != "BTCUSDT" {
		t.Fatalf("expected restore to prefer the cache's symbol, got %s", snap.Config.Symbol)
	}
}

func TestSupervisor_Restore_FallsBackToPersistentWhenCacheEmpty(t *testing.T) {
	persistent := newMemStore()
	_ = persistent.Save(model.StrategySnapshot{Config: testConfig("s1", "ETHUSDT"), Position: model.EmptyPosition()})

	sup := New(nil, webhook.NewDispatcher(""), nil, persistent, config.SupervisorConfig{})
	sup.Restore()

	snap, err := sup.Snapshot("s1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Config.Symbol != "ETHUSDT" {
		t.Fatalf("expected restore to fall back to persistent store, got %s", snap.Config.Symbol)
	}
}
