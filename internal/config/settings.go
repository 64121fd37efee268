package config

import (
	"os"
	"strings"
	"time"
)

// parseBool returns nil unless v is a recognised boolean.
func parseBool(v string) *bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		b := true
		return &b
	case "0", "false", "no", "off":
		b := false
		return &b
	}
	return nil
}

// parseBoolEnv returns nil if env not set, pointer to bool if set.
func parseBoolEnv(envKey string) *bool {
	v := os.Getenv(envKey)
	if v == "" {
		return nil
	}
	return parseBool(v)
}

func parseDuration(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

// loadOrEmpty returns the config, or an empty one if it cannot be read.
func loadOrEmpty() *Config {
	cfg, err := Load()
	if err != nil {
		return &Config{}
	}
	return cfg
}

// APIURL returns the Markbase API base URL.
// Priority: MB_API_URL env > config.json api_url > default.
func APIURL() string {
	if v := os.Getenv("MB_API_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	if u := strings.TrimRight(loadOrEmpty().APIURL, "/"); u != "" {
		return u
	}
	return DefaultAPIURL
}

// Workspace returns the directory project folders are relative to.
// Priority: MB_WORKSPACE env > config.json workspace > current directory.
func Workspace() string {
	if v := os.Getenv("MB_WORKSPACE"); v != "" {
		return v
	}
	if cfg := loadOrEmpty(); cfg.Workspace != "" {
		return cfg.Workspace
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// AutoSyncEnabled returns whether periodic sync runs in mb watch.
// Priority: MB_AUTO_SYNC env > config.json auto_sync.enabled > false
func AutoSyncEnabled() bool {
	if v := parseBoolEnv("MB_AUTO_SYNC"); v != nil {
		return *v
	}
	if cfg := loadOrEmpty(); cfg.AutoSync.Enabled != nil {
		return *cfg.AutoSync.Enabled
	}
	return false
}

// AutoSyncOnStart returns whether mb watch syncs once at startup.
// Priority: MB_AUTO_SYNC_ON_START env > config.json auto_sync.on_start > true
func AutoSyncOnStart() bool {
	if v := parseBoolEnv("MB_AUTO_SYNC_ON_START"); v != nil {
		return *v
	}
	if cfg := loadOrEmpty(); cfg.AutoSync.OnStart != nil {
		return *cfg.AutoSync.OnStart
	}
	return true
}

// AutoSyncInterval returns the periodic sync interval, never below
// MinAutoSyncInterval.
// Priority: MB_AUTO_SYNC_INTERVAL env > config.json auto_sync.interval > 5m
func AutoSyncInterval() time.Duration {
	d, ok := parseDuration(os.Getenv("MB_AUTO_SYNC_INTERVAL"))
	if !ok {
		d, ok = parseDuration(loadOrEmpty().AutoSync.Interval)
	}
	if !ok {
		return DefaultAutoSyncInterval
	}
	return max(d, MinAutoSyncInterval)
}

// VerifyDebounce returns the quiet period before a changed token is verified.
// Priority: MB_VERIFY_DEBOUNCE env > config.json verify_debounce > 500ms
func VerifyDebounce() time.Duration {
	if d, ok := parseDuration(os.Getenv("MB_VERIFY_DEBOUNCE")); ok && d >= 0 {
		return d
	}
	if d, ok := parseDuration(loadOrEmpty().VerifyDebounce); ok && d >= 0 {
		return d
	}
	return DefaultVerifyDebounce
}
