// internal/supervisor/supervisor.go
package supervisor

import (
	"errors"
	"sync"
	"time"

	"github.com/holoworlds/tradingmonitor/internal/config"
	"github.com/holoworlds/tradingmonitor/internal/engine"
	"github.com/holoworlds/tradingmonitor/internal/model"
	"github.com/holoworlds/tradingmonitor/internal/strategy"
	"github.com/holoworlds/tradingmonitor/internal/webhook"
	"github.com/holoworlds/tradingmonitor/pkg/logger"
)

// ErrStrategyNotFound возвращается операциями над несуществующим ID.
var ErrStrategyNotFound = errors.New("supervisor: стратегия не найдена")

// ErrStrategyExists возвращается при попытке добавить уже существующий ID.
var ErrStrategyExists = errors.New("supervisor: стратегия уже существует")

// cachedStore и persistentStore абстрагируют реальные Redis/Postgres
// хранилища снапшотов, чтобы Supervisor оставался тестируемым без живых
// подключений (см. supervisor_test.go).
type cachedStore interface {
	Save(model.StrategySnapshot) error
	Delete(string) error
	LoadAll() []model.StrategySnapshot
}

type persistentStore interface {
	Save(model.StrategySnapshot) error
	Delete(id string) error
	LoadAll() []model.StrategySnapshot
}

// Supervisor владеет жизненным циклом всех запущенных Runtime'ов стратегий
// (§4.9): создание, удаление, обновление конфигурации, ручные ордера, а
// также их восстановление и персистентность между рестартами процесса.
type Supervisor struct {
	mu         sync.RWMutex
	runtimes   map[string]*strategy.Runtime
	configs    map[string]model.StrategyConfig
	dataEngine *engine.DataEngine
	dispatcher *webhook.Dispatcher
	cache      cachedStore
	persistent persistentStore

	persistInterval time.Duration
	stopChan        chan struct{}
	wg              sync.WaitGroup
	started         bool
}

// New собирает супервизор поверх уже сконфигурированных движка данных,
// вебхук-диспетчера и хранилищ снапшотов. cache/persistent могут быть nil
// по отдельности (например в тестах) — соответствующий слой персистентности
// тогда просто пропускается.
func New(dataEngine *engine.DataEngine, dispatcher *webhook.Dispatcher, cache cachedStore, persistent persistentStore, cfg config.SupervisorConfig) *Supervisor {
	interval := cfg.PersistInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Supervisor{
		runtimes:        make(map[string]*strategy.Runtime),
		configs:         make(map[string]model.StrategyConfig),
		dataEngine:      dataEngine,
		dispatcher:      dispatcher,
		cache:           cache,
		persistent:      persistent,
		persistInterval: interval,
		stopChan:        make(chan struct{}),
	}
}

// Restore поднимает ранее сохранённые стратегии при старте процесса.
// Redis-кэш проверяется первым как быстрый путь; если он пуст или
// недоступен, супервизор откатывается на Postgres (§7 "восстановление
// после рестарта"). Каждый найденный снапшот тут же поднимает Runtime и
// прогревает соответствующий символ в движке данных.
func (s *Supervisor) Restore() {
	var snapshots []model.StrategySnapshot
	if s.cache != nil {
		snapshots = s.cache.LoadAll()
	}
	if len(snapshots) == 0 && s.persistent != nil {
		snapshots = s.persistent.LoadAll()
	}

	for _, snap := range snapshots {
		if err := s.addRuntime(snap.Config, snap.Position, snap.Stats); err != nil {
			logger.Warn("⚠️ supervisor: не удалось восстановить стратегию %s: %v", snap.Config.ID, err)
			continue
		}
		logger.Info("♻️ супервизор: стратегия %s восстановлена (%s)", snap.Config.ID, snap.Position.Direction)
	}
}

// Start запускает все восстановленные Runtime'ы и фоновую персистентность.
// Идемпотентен.
func (s *Supervisor) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	for _, rt := range s.runtimes {
		rt.Start()
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.persistLoop()
}

// Stop останавливает все Runtime'ы и фоновую персистентность, сохраняя
// финальное состояние каждой стратегии перед выходом.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()

	s.mu.RLock()
	for _, rt := range s.runtimes {
		rt.Stop()
	}
	s.mu.RUnlock()

	s.persistAll()
}

func (s *Supervisor) persistLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.persistInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.persistAll()
		case <-s.stopChan:
			return
		}
	}
}

func (s *Supervisor) persistAll() {
	s.mu.RLock()
	snapshots := make([]model.StrategySnapshot, 0, len(s.runtimes))
	for _, rt := range s.runtimes {
		snapshots = append(snapshots, rt.Snapshot())
	}
	s.mu.RUnlock()

	for _, snap := range snapshots {
		if s.cache != nil {
			if err := s.cache.Save(snap); err != nil {
				logger.Warn("⚠️ supervisor: кэш снапшота %s не записан: %v", snap.Config.ID, err)
			}
		}
		if s.persistent != nil {
			if err := s.persistent.Save(snap); err != nil {
				logger.Warn("⚠️ supervisor: постоянный снапшот %s не записан: %v", snap.Config.ID, err)
			}
		}
	}
}

// AddStrategy создаёт и (если супервизор уже запущен) сразу стартует новую
// стратегию с чистым состоянием (FLAT, нулевая статистика). Прогревает
// символ в движке данных, чтобы первый тик пришёл без задержки холодного
// старта (§4.5 EnsureActive).
func (s *Supervisor) AddStrategy(cfg model.StrategyConfig) error {
	s.mu.Lock()
	if _, exists := s.runtimes[cfg.ID]; exists {
		s.mu.Unlock()
		return ErrStrategyExists
	}
	s.mu.Unlock()

	if err := s.addRuntime(cfg, model.EmptyPosition(), model.TradeStats{}); err != nil {
		return err
	}

	s.mu.RLock()
	rt := s.runtimes[cfg.ID]
	started := s.started
	s.mu.RUnlock()

	if started {
		rt.Start()
	}

	s.persistOne(cfg.ID)
	logger.Info("➕ супервизор: стратегия %s (%s %s) добавлена", cfg.ID, cfg.Symbol, cfg.Interval)
	return nil
}

func (s *Supervisor) addRuntime(cfg model.StrategyConfig, pos model.PositionState, stats model.TradeStats) error {
	if s.dataEngine != nil {
		s.dataEngine.EnsureActive(cfg.Symbol)
	}

	rt := strategy.NewRuntime(cfg, s.dataEngine, s.dispatcher, func(model.StrategySnapshot) {
		s.persistOne(cfg.ID)
	})
	rt.Restore(pos, stats)

	s.mu.Lock()
	s.runtimes[cfg.ID] = rt
	s.configs[cfg.ID] = cfg
	s.mu.Unlock()
	return nil
}

// RemoveStrategy останавливает и вычёркивает стратегию, включая её
// персистентные снапшоты в обоих хранилищах.
func (s *Supervisor) RemoveStrategy(id string) error {
	s.mu.Lock()
	rt, exists := s.runtimes[id]
	if !exists {
		s.mu.Unlock()
		return ErrStrategyNotFound
	}
	delete(s.runtimes, id)
	delete(s.configs, id)
	s.mu.Unlock()

	rt.Stop()

	if s.cache != nil {
		if err := s.cache.Delete(id); err != nil {
			logger.Warn("⚠️ supervisor: не удалось удалить кэш снапшота %s: %v", id, err)
		}
	}
	if s.persistent != nil {
		if err := s.persistent.Delete(id); err != nil {
			logger.Warn("⚠️ supervisor: не удалось удалить постоянный снапшот %s: %v", id, err)
		}
	}
	logger.Info("➖ супервизор: стратегия %s удалена", id)
	return nil
}

// UpdateConfig применяет новую конфигурацию к уже работающей стратегии.
func (s *Supervisor) UpdateConfig(id string, newCfg model.StrategyConfig) error {
	s.mu.Lock()
	rt, exists := s.runtimes[id]
	if !exists {
		s.mu.Unlock()
		return ErrStrategyNotFound
	}
	s.configs[id] = newCfg
	s.mu.Unlock()

	rt.UpdateConfig(newCfg)
	s.persistOne(id)
	return nil
}

// ManualOrder делегирует ручной ордер конкретной стратегии, минуя движок
// оценки (§4.7 "ручное управление").
func (s *Supervisor) ManualOrder(id string, direction model.Direction) error {
	s.mu.RLock()
	rt, exists := s.runtimes[id]
	s.mu.RUnlock()
	if !exists {
		return ErrStrategyNotFound
	}
	rt.ManualOrder(direction)
	s.persistOne(id)
	return nil
}

// Snapshot возвращает текущее состояние одной стратегии.
func (s *Supervisor) Snapshot(id string) (model.StrategySnapshot, error) {
	s.mu.RLock()
	rt, exists := s.runtimes[id]
	s.mu.RUnlock()
	if !exists {
		return model.StrategySnapshot{}, ErrStrategyNotFound
	}
	return rt.Snapshot(), nil
}

// SnapshotAll возвращает состояние всех стратегий, для админ-эндпоинтов и
// периодических отчётов о статусе.
func (s *Supervisor) SnapshotAll() []model.StrategySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.StrategySnapshot, 0, len(s.runtimes))
	for _, rt := range s.runtimes {
		out = append(out, rt.Snapshot())
	}
	return out
}

func (s *Supervisor) persistOne(id string) {
	s.mu.RLock()
	rt, exists := s.runtimes[id]
	s.mu.RUnlock()
	if !exists {
		return
	}
	snap := rt.Snapshot()
	if s.cache != nil {
		if err := s.cache.Save(snap); err != nil {
			logger.Warn("⚠️ supervisor: кэш снапшота %s не записан: %v", id, err)
		}
	}
	if s.persistent != nil {
		if err := s.persistent.Save(snap); err != nil {
			logger.Warn("⚠️ supervisor: постоянный снапшот %s не записан: %v", id, err)
		}
	}
}
