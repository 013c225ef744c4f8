package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ateli/materialflow/internal/engine"
)

// Manager hands out one engine Store per project, loading it from the
// record store on first use and keeping it reconciled in the background.
type Manager struct {
	records      engine.RecordStore
	logger       *slog.Logger
	pollInterval time.Duration
	baseCtx      context.Context

	mu     sync.Mutex
	stores map[string]*engine.Store
}

// NewManager uses baseCtx to bound the background pollers; cancelling it
// stops reconciliation for every project.
func NewManager(baseCtx context.Context, records engine.RecordStore, logger *slog.Logger, pollInterval time.Duration) *Manager {
	return &Manager{
		records:      records,
		logger:       logger,
		pollInterval: pollInterval,
		baseCtx:      baseCtx,
		stores:       make(map[string]*engine.Store),
	}
}

// Store returns the engine store for a project, creating and loading it on
// first use.
func (m *Manager) Store(ctx context.Context, projectID string) (*engine.Store, error) {
	m.mu.Lock()
	if s, ok := m.stores[projectID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s := engine.NewStore(projectID, m.records, engine.WithLogger(m.logger))
	if err := s.Load(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have raced us here; keep the first store so its
	// poller remains the only one.
	if existing, ok := m.stores[projectID]; ok {
		return existing, nil
	}
	m.stores[projectID] = s

	if m.pollInterval > 0 {
		go s.Poll(m.baseCtx, m.pollInterval)
	}
	return s, nil
}
