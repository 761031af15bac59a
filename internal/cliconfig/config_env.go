package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (TRACEBEACON_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("beacon-url", os.Getenv("TRACEBEACON_BEACON_URL"), &cfg.BeaconURL)
	s.setString("method", os.Getenv("TRACEBEACON_METHOD"), &cfg.Method)
	s.setString("ignore-stack", os.Getenv("TRACEBEACON_IGNORE_STACK"), &cfg.IgnoreStack)
	s.setString("addr", os.Getenv("TRACEBEACON_COLLECT_ADDR"), &cfg.CollectAddr)
	s.setString("path", os.Getenv("TRACEBEACON_BEACON_PATH"), &cfg.BeaconPath)
	s.setString("log-level", os.Getenv("TRACEBEACON_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("timeout", os.Getenv("TRACEBEACON_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("flush-interval", os.Getenv("TRACEBEACON_FLUSH_INTERVAL"), &cfg.FlushInterval); err != nil {
		return err
	}

	ints := []struct {
		flag, env string
		dst       *int
	}{
		{"min-events", "TRACEBEACON_MIN_EVENTS", &cfg.MinEvents},
		{"max-events", "TRACEBEACON_MAX_EVENTS", &cfg.MaxEvents},
		{"min-length", "TRACEBEACON_MIN_LENGTH", &cfg.MinLength},
		{"max-length", "TRACEBEACON_MAX_LENGTH", &cfg.MaxLength},
		{"error-limit", "TRACEBEACON_ERROR_LIMIT", &cfg.ErrorLimit},
		{"stack-limit", "TRACEBEACON_STACK_LIMIT", &cfg.StackLimit},
	}
	for _, v := range ints {
		if err := s.setIntFromString(v.flag, os.Getenv(v.env), v.dst); err != nil {
			return err
		}
	}

	s.setStringsFromString("ignore-keys", os.Getenv("TRACEBEACON_KEYS_TO_IGNORE"), &cfg.KeysToIgnore)

	s.setBoolFromString("disable-sending", os.Getenv("TRACEBEACON_DISABLE_SENDING"), &cfg.DisableSending)
	s.setBoolFromString("deferred", os.Getenv("TRACEBEACON_SEND_DEFERRED"), &cfg.SendDeferred)
	s.setBoolFromString("dedup-ready", os.Getenv("TRACEBEACON_DEDUP_COMPONENT_READY"), &cfg.DedupComponentReady)

	return nil
}
