// hotreload.go: dynamic reclamation tuning with Argus integration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cdrc

import (
	"fmt"
	"sync"
	"time"

	"github.com/agilira/argus"
)

// tunable is satisfied by the two concrete backends for the parameters that
// can change after construction. MaxThreads cannot: the participant slot
// table is sized once at NewBackend time.
type tunable interface {
	SetFrequency(n uint64)
	SetScanThreshold(n uint64)
}

// HotConfig watches a configuration file via Argus and retunes a live
// backend's reclamation cadence (EpochFrequency or ScanThreshold,
// whichever applies to its kind) as the file changes.
type HotConfig struct {
	backend tunable
	kind    BackendKind
	watcher *argus.Watcher
	mu      sync.RWMutex
	current Config

	// OnReload is called after a change is successfully applied. Optional,
	// must be fast and non-blocking.
	OnReload func(oldConfig, newConfig Config)
}

// HotConfigOptions configures hot-reload behavior.
type HotConfigOptions struct {
	// ConfigPath is the path to the configuration file to watch. Supports
	// JSON, YAML, TOML, HCL, INI, Properties formats.
	ConfigPath string

	// PollInterval is how often to check for configuration changes.
	// Default: 1 second. Minimum: 100ms.
	PollInterval time.Duration

	// OnReload is called after configuration is successfully reloaded.
	OnReload func(oldConfig, newConfig Config)
}

// NewHotConfig starts watching opts.ConfigPath and retunes backend, which
// must have been built from the given BackendKind (the kind distinguishes
// which field of the watched file applies: epoch_frequency or
// scan_threshold). MaxThreads in the watched file is ignored; changing the
// participant count requires building a new backend.
func NewHotConfig(backend tunable, kind BackendKind, opts HotConfigOptions) (*HotConfig, error) {
	if opts.ConfigPath == "" {
		return nil, fmt.Errorf("cdrc: config_path is required")
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Second
	} else if opts.PollInterval < 100*time.Millisecond {
		opts.PollInterval = 100 * time.Millisecond
	}

	hc := &HotConfig{
		backend: backend,
		kind:    kind,
		OnReload: opts.OnReload,
		current:  DefaultConfig(),
	}
	hc.current.Backend = kind

	watcher, err := argus.UniversalConfigWatcherWithConfig(opts.ConfigPath, hc.handleConfigChange, argus.Config{
		PollInterval: opts.PollInterval,
	})
	if err != nil {
		return nil, err
	}
	hc.watcher = watcher
	return hc, nil
}

// Start begins watching the configuration file for changes.
func (hc *HotConfig) Start() error {
	if hc.watcher.IsRunning() {
		return nil
	}
	return hc.watcher.Start()
}

// Stop stops watching the configuration file.
func (hc *HotConfig) Stop() error {
	return hc.watcher.Stop()
}

// GetConfig returns the last configuration observed (thread-safe).
func (hc *HotConfig) GetConfig() Config {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.current
}

func (hc *HotConfig) handleConfigChange(data map[string]interface{}) {
	hc.mu.Lock()
	old := hc.current
	next := old
	hc.parseInto(&next, data)
	hc.current = next
	hc.mu.Unlock()

	switch hc.kind {
	case BackendHazardPointer:
		if next.ScanThreshold != old.ScanThreshold {
			hc.backend.SetScanThreshold(next.ScanThreshold)
		}
	default:
		if next.EpochFrequency != old.EpochFrequency {
			hc.backend.SetFrequency(next.EpochFrequency)
		}
	}

	if hc.OnReload != nil {
		hc.OnReload(old, next)
	}
}

func (hc *HotConfig) parseInto(c *Config, data map[string]interface{}) {
	section, ok := data["cdrc"].(map[string]interface{})
	if !ok {
		if _, has := data["epoch_frequency"]; has {
			section = data
		} else if _, has := data["scan_threshold"]; has {
			section = data
		} else {
			return
		}
	}

	if v, ok := parsePositiveUint(section["epoch_frequency"]); ok {
		c.EpochFrequency = v
	}
	if v, ok := parsePositiveUint(section["scan_threshold"]); ok {
		c.ScanThreshold = v
	}
}

func parsePositiveUint(value interface{}) (uint64, bool) {
	switch v := value.(type) {
	case int:
		if v > 0 {
			return uint64(v), true
		}
	case float64:
		if v > 0 {
			return uint64(v), true
		}
	}
	return 0, false
}
