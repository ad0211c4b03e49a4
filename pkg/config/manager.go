package config

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

// Manager holds the active configuration and the sources it was built from.
type Manager struct {
	Service   Service
	current   atomic.Pointer[Config]
	sources   []Source
	callbacks []func(*Config)
	mu        sync.Mutex
	closeOnce sync.Once
}

// NewManager creates a manager; a nil service gets the default loader.
func NewManager(service Service) *Manager {
	if service == nil {
		service = NewService()
	}
	return &Manager{Service: service}
}

// Load builds the configuration from sources and makes it current.
func (m *Manager) Load(ctx context.Context, sources ...Source) (*Config, error) {
	m.mu.Lock()
	m.sources = append([]Source(nil), sources...)
	m.mu.Unlock()
	cfg, err := m.Service.Load(ctx, sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	m.apply(cfg)
	return cfg, nil
}

// Get returns the current configuration, nil before the first Load.
func (m *Manager) Get() *Config {
	return m.current.Load()
}

// Reload rebuilds the configuration from the sources of the last Load.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	sources := append([]Source(nil), m.sources...)
	m.mu.Unlock()
	cfg, err := m.Service.Load(ctx, sources...)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	m.apply(cfg)
	return nil
}

// OnChange registers a callback invoked when a load changes the configuration.
func (m *Manager) OnChange(callback func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// Close releases every source once.
func (m *Manager) Close(ctx context.Context) error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		sources := append([]Source(nil), m.sources...)
		m.mu.Unlock()
		for _, source := range sources {
			if source == nil {
				continue
			}
			if err := source.Close(); err != nil {
				logger.FromContext(ctx).Error("failed to close configuration source", "error", err)
			}
		}
	})
	return nil
}

func (m *Manager) apply(cfg *Config) {
	old := m.current.Swap(cfg)
	if old != nil && reflect.DeepEqual(old, cfg) {
		return
	}
	m.mu.Lock()
	callbacks := append(([]func(*Config))(nil), m.callbacks...)
	m.mu.Unlock()
	for _, cb := range callbacks {
		if cb != nil {
			cb(cfg)
		}
	}
}
