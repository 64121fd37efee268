// Package config loads user settings and the API credential.
//
// Every setting resolves in the same order: environment variable, then
// config.json, then a built-in default.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/marcus/mb/internal/lockfile"
)

const (
	configFile = "config.json"
	lockFile   = "config.json.lock"
	dirName    = "markbase"
)

// Defaults
const (
	DefaultAPIURL           = "https://api.markbase.xyz"
	DefaultAutoSyncInterval = 5 * time.Minute
	MinAutoSyncInterval     = time.Minute
	DefaultVerifyDebounce   = 500 * time.Millisecond
)

// ErrUnknownKey is returned by Get and Set for keys outside Keys().
var ErrUnknownKey = errors.New("unknown config key")

// AutoSyncConfig holds periodic sync settings.
type AutoSyncConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`  // nil = default false
	OnStart  *bool  `json:"on_start,omitempty"` // nil = default true
	Interval string `json:"interval,omitempty"` // duration string, default "5m"
}

// Config is the global config stored at <Dir>/config.json.
type Config struct {
	APIURL         string         `json:"api_url,omitempty"`
	Workspace      string         `json:"workspace,omitempty"`
	VerifyDebounce string         `json:"verify_debounce,omitempty"`
	AutoSync       AutoSyncConfig `json:"auto_sync"`
}

// Dir returns $XDG_CONFIG_HOME/markbase, or ~/.config/markbase.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, dirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".config", dirName), nil
}

// Load reads config.json. A missing file yields an empty Config.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configFile, err)
	}
	return &cfg, nil
}

// Save writes config.json using atomic write (temp file + rename).
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(dir, configFile, data, 0o644)
}

func writeAtomic(dir, name string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(dir, name+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, name))
}

// Update loads, modifies and saves the config while holding the config
// lock, so concurrent mb processes do not lose writes.
func Update(fn func(*Config) error) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return lockfile.With(filepath.Join(dir, lockFile), 2*time.Second, func() error {
		cfg, err := Load()
		if err != nil {
			return err
		}
		if err := fn(cfg); err != nil {
			return err
		}
		return Save(cfg)
	})
}

// field binds a config key to its storage in Config.
type field struct {
	get func(*Config) string
	set func(*Config, string) error
}

var fields = map[string]field{
	"api_url": {
		get: func(c *Config) string { return c.APIURL },
		set: func(c *Config, v string) error { c.APIURL = strings.TrimRight(v, "/"); return nil },
	},
	"workspace": {
		get: func(c *Config) string { return c.Workspace },
		set: func(c *Config, v string) error { c.Workspace = v; return nil },
	},
	"verify_debounce": {
		get: func(c *Config) string { return c.VerifyDebounce },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil && v != "" {
				return fmt.Errorf("verify_debounce: %w", err)
			}
			c.VerifyDebounce = v
			return nil
		},
	},
	"auto_sync.enabled": {
		get: func(c *Config) string { return formatBool(c.AutoSync.Enabled) },
		set: func(c *Config, v string) error { return setBool(&c.AutoSync.Enabled, v) },
	},
	"auto_sync.on_start": {
		get: func(c *Config) string { return formatBool(c.AutoSync.OnStart) },
		set: func(c *Config, v string) error { return setBool(&c.AutoSync.OnStart, v) },
	},
	"auto_sync.interval": {
		get: func(c *Config) string { return c.AutoSync.Interval },
		set: func(c *Config, v string) error {
			if v == "" {
				c.AutoSync.Interval = ""
				return nil
			}
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("auto_sync.interval: %w", err)
			}
			if d < MinAutoSyncInterval {
				return fmt.Errorf("auto_sync.interval must be at least %s", MinAutoSyncInterval)
			}
			c.AutoSync.Interval = v
			return nil
		},
	},
}

// Keys lists the settable config keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the stored value for key, or "" when unset.
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return f.get(c), nil
}

// Set validates and stores value for key. An empty value unsets it.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return f.set(c, strings.TrimSpace(value))
}

func formatBool(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func setBool(dst **bool, v string) error {
	if v == "" {
		*dst = nil
		return nil
	}
	b := parseBool(v)
	if b == nil {
		return fmt.Errorf("invalid boolean %q", v)
	}
	*dst = b
	return nil
}
