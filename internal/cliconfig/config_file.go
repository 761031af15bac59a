package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	BeaconURL      string `toml:"beacon_url"`
	Method         string `toml:"method"`
	DisableSending *bool  `toml:"disable_sending"`
	SendDeferred   *bool  `toml:"send_deferred"`
	HTTPTimeout    string `toml:"http_timeout"`

	MinEvents    int      `toml:"min_events"`
	MaxEvents    int      `toml:"max_events"`
	MinLength    int      `toml:"min_length"`
	MaxLength    int      `toml:"max_length"`
	KeysToIgnore []string `toml:"keys_to_ignore"`

	ErrorLimit          int    `toml:"error_limit"`
	StackLimit          int    `toml:"stack_limit"`
	IgnoreStack         string `toml:"ignore_stack"`
	FlushInterval       string `toml:"flush_interval"`
	DedupComponentReady *bool  `toml:"dedup_component_ready"`

	CollectAddr string `toml:"collect_addr"`
	BeaconPath  string `toml:"beacon_path"`
	LogLevel    string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.tracebeacon/config.toml, or "" when the
// home directory cannot be resolved.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".tracebeacon", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("beacon-url", fc.BeaconURL, &cfg.BeaconURL)
	s.setString("method", fc.Method, &cfg.Method)
	s.setString("ignore-stack", fc.IgnoreStack, &cfg.IgnoreStack)
	s.setString("addr", fc.CollectAddr, &cfg.CollectAddr)
	s.setString("path", fc.BeaconPath, &cfg.BeaconPath)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("flush-interval", fc.FlushInterval, &cfg.FlushInterval); err != nil {
		return err
	}

	s.setInt("min-events", fc.MinEvents, &cfg.MinEvents)
	s.setInt("max-events", fc.MaxEvents, &cfg.MaxEvents)
	s.setInt("min-length", fc.MinLength, &cfg.MinLength)
	s.setInt("max-length", fc.MaxLength, &cfg.MaxLength)
	s.setInt("error-limit", fc.ErrorLimit, &cfg.ErrorLimit)
	s.setInt("stack-limit", fc.StackLimit, &cfg.StackLimit)
	s.setStrings("ignore-keys", fc.KeysToIgnore, &cfg.KeysToIgnore)

	s.setBool("disable-sending", fc.DisableSending, &cfg.DisableSending)
	s.setBool("deferred", fc.SendDeferred, &cfg.SendDeferred)
	s.setBool("dedup-ready", fc.DedupComponentReady, &cfg.DedupComponentReady)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
