package cliconfig

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/bft-labs/tracebeacon/internal/domain"
)

// DefaultBeaconURL is where the replay command sends batches unless told otherwise.
const DefaultBeaconURL = "http://localhost:8787/beacon"

// Config holds CLI configuration for tracebeacon.
type Config struct {
	BeaconURL      string
	Method         string
	DisableSending bool
	SendDeferred   bool
	HTTPTimeout    time.Duration

	MinEvents    int
	MaxEvents    int
	MinLength    int
	MaxLength    int
	KeysToIgnore []string

	ErrorLimit          int
	StackLimit          int
	IgnoreStack         string
	FlushInterval       time.Duration
	DedupComponentReady bool

	CollectAddr string
	BeaconPath  string

	LogLevel string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		BeaconURL:     DefaultBeaconURL,
		Method:        "POST",
		SendDeferred:  true,
		HTTPTimeout:   10 * time.Second,
		MinEvents:     40,
		MaxEvents:     100,
		MinLength:     1700,
		MaxLength:     2000,
		ErrorLimit:    25,
		StackLimit:    20,
		FlushInterval: 0, // periodic flush off
		CollectAddr:   ":8787",
		BeaconPath:    "/beacon",
		LogLevel:      "info",
	}
}

// Validate checks the configuration and normalizes the method name.
// Every problem found is reported, not just the first one.
func (c *Config) Validate() error {
	var result *multierror.Error

	c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
	if c.Method != "POST" && c.Method != "GET" {
		result = multierror.Append(result, fmt.Errorf("method must be POST or GET, got %q", c.Method))
	}

	if !c.DisableSending {
		if u, err := url.Parse(c.BeaconURL); err != nil || u.Scheme == "" || u.Host == "" {
			result = multierror.Append(result, fmt.Errorf("beacon-url %q is not an absolute URL", c.BeaconURL))
		}
	}

	if c.MinEvents <= 0 {
		result = multierror.Append(result, fmt.Errorf("min-events must be positive"))
	}
	if c.MaxEvents < c.MinEvents {
		result = multierror.Append(result, fmt.Errorf("max-events (%d) must be >= min-events (%d)", c.MaxEvents, c.MinEvents))
	}
	if c.Method == "GET" && c.MaxLength <= c.MinLength {
		result = multierror.Append(result, fmt.Errorf("max-length (%d) must be > min-length (%d)", c.MaxLength, c.MinLength))
	}
	if c.ErrorLimit < 0 {
		result = multierror.Append(result, fmt.Errorf("error-limit must not be negative"))
	}
	if c.StackLimit < 0 {
		result = multierror.Append(result, fmt.Errorf("stack-limit must not be negative"))
	}
	if c.FlushInterval < 0 {
		result = multierror.Append(result, fmt.Errorf("flush-interval must not be negative"))
	}
	if c.IgnoreStack != "" {
		if _, err := regexp.Compile(c.IgnoreStack); err != nil {
			result = multierror.Append(result, fmt.Errorf("ignore-stack: %w", err))
		}
	}
	if !strings.HasPrefix(c.BeaconPath, "/") {
		result = multierror.Append(result, fmt.Errorf("beacon-path must start with /"))
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	return nil
}

// IgnoreStackMatcher compiles IgnoreStack. Call after Validate.
func (c *Config) IgnoreStackMatcher() *regexp.Regexp {
	if c.IgnoreStack == "" {
		return nil
	}
	return regexp.MustCompile(c.IgnoreStack)
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a list if not empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setStringsFromString splits a comma separated list.
func (s *configSetter) setStringsFromString(flag, value string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
