package task

import "sync"

// ConfigStore holds the "current" processing configuration set by the
// configure endpoint and consumed by the next start request. It is an
// explicitly owned, synchronized store injected where needed rather than a
// package-level singleton.
type ConfigStore struct {
	mu  sync.RWMutex
	cfg Config
	set bool
}

// NewConfigStore creates a store holding defaults as the current config.
func NewConfigStore(defaults Config) *ConfigStore {
	return &ConfigStore{cfg: defaults}
}

// Set replaces the current configuration.
func (s *ConfigStore) Set(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.set = true
}

// Current returns the stored configuration and whether Set was ever called.
func (s *ConfigStore) Current() (Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, s.set
}
