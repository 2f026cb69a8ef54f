package config

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// loaded is a configuration together with the file it came from. An empty
// path means defaults plus environment overrides.
type loaded struct {
	cfg  *Config
	path string
}

var (
	// global is replaced wholesale on every load; readers never lock.
	global atomic.Pointer[loaded]

	// loadMu serializes Initialize and ReloadConfig.
	loadMu sync.Mutex
)

// Initialize loads configuration from path with environment variable
// overrides and installs it as the global configuration. Once a
// configuration is installed, further calls do nothing.
func Initialize(path string) error {
	loadMu.Lock()
	defer loadMu.Unlock()

	if global.Load() != nil {
		return nil
	}
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return err
	}
	global.Store(&loaded{cfg: cfg, path: path})
	return nil
}

// GetConfig returns the global configuration, or nil before Initialize.
func GetConfig() *Config {
	if l := global.Load(); l != nil {
		return l.cfg
	}
	return nil
}

// Path returns the file the global configuration was loaded from.
func Path() string {
	if l := global.Load(); l != nil {
		return l.path
	}
	return ""
}

// SetConfig replaces the global configuration. A nil cfg clears it so that
// the next Initialize loads again. Intended for tests.
func SetConfig(cfg *Config) {
	if cfg == nil {
		global.Store(nil)
		return
	}
	global.Store(&loaded{cfg: cfg, path: Path()})
}

// ReloadConfig reloads the configuration and installs it globally. An
// empty path reloads the file the current configuration came from. On
// failure the current configuration stays in place.
func ReloadConfig(path string) (*Config, error) {
	loadMu.Lock()
	defer loadMu.Unlock()

	if path == "" {
		path = Path()
	}
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, fmt.Errorf("failed to reload configuration: %w", err)
	}
	global.Store(&loaded{cfg: cfg, path: path})
	return cfg, nil
}

// MustGetConfig returns the global configuration and panics if none is
// installed.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic("config: no configuration installed, call Initialize first")
	}
	return cfg
}
