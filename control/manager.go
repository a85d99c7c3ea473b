// control/manager.go
// Author: momentics <momentics@gmail.com>
//
// Layered configuration loading on top of koanf.

package control

import (
	"fmt"
	"sort"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/momentics/hioload-jobs/internal/concurrency"
)

// Manager loads and holds the effective configuration.
//
// Precedence, highest first:
//  1. Command-line flags (--worker_count=8)
//  2. Environment variables (HIOLOAD_JOBS_WORKER_COUNT=8)
//  3. Config file (YAML)
//  4. Defaults
type Manager struct {
	mu      concurrency.RWMutex
	k       *koanf.Koanf
	current Config
}

// NewManager creates a manager holding DefaultConfig.
func NewManager() *Manager {
	return &Manager{
		k:       koanf.New("."),
		current: DefaultConfig(),
	}
}

// Load merges the default sources.
func (m *Manager) Load(flags *pflag.FlagSet, configFile string) error {
	return m.LoadWithSources(DefaultSources(configFile, flags)...)
}

// LoadWithSources merges sources from lowest to highest priority into a
// fresh koanf instance and replaces the current configuration.
func (m *Manager) LoadWithSources(sources ...ConfigSource) error {
	sorted := append([]ConfigSource(nil), sources...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	k := koanf.New(".")
	for _, src := range sorted {
		if err := src.Load(k); err != nil {
			return describe(src, err)
		}
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := cfg.PoolConfig(); err != nil {
		return err
	}

	m.mu.Lock()
	m.k = k
	m.current = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.current
	cfg.Groups = append([]GroupConfig(nil), m.current.Groups...)
	return cfg
}

// Value returns the raw value at a dotted key path, or nil.
func (m *Manager) Value(key string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.k.Get(key)
}

// Snapshot returns every loaded key flattened to dotted paths.
func (m *Manager) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.k.All()
}
