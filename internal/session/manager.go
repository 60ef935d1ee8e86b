package session

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ripplefeed/ripple/backend/internal/feed"
	"github.com/ripplefeed/ripple/backend/internal/source"
)

var errMissingOrigin = errors.New("session: feed origin required")

// ManagerConfig describes the collaborators for per-user engine management.
type ManagerConfig struct {
	Origin   *source.Service
	PageSize int
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Manager hands out one sync engine per signed-in user. Engines hold the
// user's materialized feed between requests and are dropped on logout.
type Manager struct {
	mu       sync.Mutex
	engines  map[string]*feed.Engine
	origin   *source.Service
	pageSize int
	clock    func() time.Time
	logger   *zap.Logger
}

// NewManager validates the configuration and returns an empty registry.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Origin == nil {
		return nil, errMissingOrigin
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = feed.DefaultPageSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		engines:  make(map[string]*feed.Engine),
		origin:   cfg.Origin,
		pageSize: pageSize,
		clock:    clock,
		logger:   logger,
	}, nil
}

// EngineFor returns the user's engine, constructing one on first use.
func (m *Manager) EngineFor(userID string) (*feed.Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if engine, ok := m.engines[userID]; ok {
		return engine, nil
	}

	facade := m.origin.ForViewer(userID)
	engine, err := feed.NewEngine(feed.EngineConfig{
		Fetcher:  facade,
		Actions:  facade,
		PageSize: m.pageSize,
		Clock:    m.clock,
		Logger:   m.logger,
	})
	if err != nil {
		return nil, err
	}
	m.engines[userID] = engine
	return engine, nil
}

// Drop discards the user's engine so the next request starts from scratch.
func (m *Manager) Drop(userID string) {
	m.mu.Lock()
	delete(m.engines, userID)
	m.mu.Unlock()
}

// Size reports how many engines are live.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.engines)
}
