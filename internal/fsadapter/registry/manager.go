package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/internal/fsadapter"
	"github.com/shelfd/shelfd/internal/logging"
)

// entry is a cached adapter together with the config it was built from.
type entry struct {
	adapter     fsadapter.Adapter
	backendType string
	config      json.RawMessage
}

// Manager resolves the storage adapter bound to each user. Adapters are
// cached per user and reused across requests until the stored configuration
// changes, at which point the old adapter is closed and replaced.
type Manager struct {
	store *BackendStore

	mu      sync.RWMutex
	entries map[int]*entry
}

// NewManager creates a Manager backed by the given store.
func NewManager(store *BackendStore) *Manager {
	return &Manager{
		store:   store,
		entries: make(map[int]*entry),
	}
}

// ForUser returns the adapter for a user, creating it from the stored
// configuration on first use. Returns fsadapter.ErrNoBackend when the user
// has no backend configured.
func (m *Manager) ForUser(ctx context.Context, userID int) (fsadapter.Adapter, error) {
	row, err := m.store.GetForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fsadapter.ErrNoBackend
	}

	m.mu.RLock()
	cached, ok := m.entries[userID]
	m.mu.RUnlock()
	if ok && cached.backendType == row.BackendType && bytes.Equal(cached.config, row.Config) {
		return cached.adapter, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check under the write lock; another request may have won the race.
	if cached, ok := m.entries[userID]; ok &&
		cached.backendType == row.BackendType && bytes.Equal(cached.config, row.Config) {
		return cached.adapter, nil
	}

	adapter, err := NewAdapterFromConfig(ctx, row.BackendType, row.Config)
	if err != nil {
		return nil, fmt.Errorf("create %s adapter for user %d: %w", row.BackendType, userID, err)
	}

	if old, ok := m.entries[userID]; ok {
		if cerr := old.adapter.Close(); cerr != nil {
			logging.Warn("failed to close replaced adapter",
				zap.Int("user_id", userID),
				zap.String("backend", old.backendType),
				zap.Error(cerr))
		}
	}

	m.entries[userID] = &entry{
		adapter:     adapter,
		backendType: row.BackendType,
		config:      row.Config,
	}
	logging.Info("storage adapter created",
		zap.Int("user_id", userID),
		zap.String("backend", row.BackendType))
	return adapter, nil
}

// Evict drops a user's cached adapter and closes it. Called after the
// stored configuration is deleted.
func (m *Manager) Evict(userID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.entries[userID]; ok {
		if err := cached.adapter.Close(); err != nil {
			logging.Warn("failed to close evicted adapter",
				zap.Int("user_id", userID),
				zap.Error(err))
		}
		delete(m.entries, userID)
	}
}

// Close closes all cached adapters.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, cached := range m.entries {
		if err := cached.adapter.Close(); err != nil {
			logging.Warn("failed to close adapter",
				zap.Int("user_id", userID),
				zap.Error(err))
		}
		delete(m.entries, userID)
	}
}
