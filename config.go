package tracebeacon

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/bft-labs/tracebeacon/internal/app"
	"github.com/bft-labs/tracebeacon/internal/domain"
)

// Config holds the configuration for a Client.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config struct {
	// BeaconURL is the collection endpoint. Required unless DisableSending.
	BeaconURL string

	// Method is "POST" (count batching, JSON body) or "GET" (length
	// batching, query string). Default: POST.
	Method string

	// DisableSending starts with sending switched off. Events are discarded.
	DisableSending bool

	// SendSync sends batches on the calling goroutine while the recording
	// call waits. By default sends run on their own goroutine.
	SendSync bool

	// KeysToIgnore lists event fields never sent. Globs are allowed.
	// Default: cmp, component, whenLongerThan.
	KeysToIgnore []string

	// MinNumberOfEvents and MaxNumberOfEvents bound POST batches.
	// Default: 40 and 100.
	MinNumberOfEvents int
	MaxNumberOfEvents int

	// MaxPayloadChars caps error messages for POST senders. 0 means no cap.
	MaxPayloadChars int

	// MinLength and MaxLength bound the URL length of GET batches.
	// Default: 1700 and 2000.
	MinLength int
	MaxLength int

	// ErrorLimit is the number of errors recorded per session. Default: 25.
	ErrorLimit int

	// StackLimit is the number of stack lines kept per error. Default: 20.
	StackLimit int

	// IgnoreStackMatcher drops matching stack lines when set.
	IgnoreStackMatcher *regexp.Regexp

	// FlushInterval forces a flush at least this often. 0 disables it.
	FlushInterval time.Duration

	// DedupComponentReady records one component-ready event per hierarchy
	// and session.
	DedupComponentReady bool

	// DataRequestTTL is how long an unfinished data request is remembered.
	// Default: 5m.
	DataRequestTTL time.Duration

	// HTTPTimeout bounds each beacon request. Default: 10s.
	HTTPTimeout time.Duration

	// InstallErrorHook makes the client the process-wide error hook.
	InstallErrorHook bool
}

// DefaultConfig returns a Config with sensible default values.
// At minimum, BeaconURL must be set before calling New.
func DefaultConfig() Config {
	s := app.DefaultBatchSenderConfig()
	a := app.DefaultAggregatorConfig()
	return Config{
		Method:            s.Method,
		KeysToIgnore:      s.KeysToIgnore,
		MinNumberOfEvents: s.MinNumberOfEvents,
		MaxNumberOfEvents: s.MaxNumberOfEvents,
		MinLength:         s.MinLength,
		MaxLength:         s.MaxLength,
		ErrorLimit:        a.ErrorLimit,
		StackLimit:        a.StackLimit,
		DataRequestTTL:    a.DataRequestTTL,
		HTTPTimeout:       DefaultHTTPTimeout,
	}
}

// DefaultHTTPTimeout bounds beacon requests when Config.HTTPTimeout is zero.
const DefaultHTTPTimeout = 10 * time.Second

// SetDefaults fills zero values with defaults.
// KeysToIgnore is only defaulted when nil; an empty slice keeps every key.
func (c *Config) SetDefaults() {
	d := DefaultConfig()

	c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
	if c.Method == "" {
		c.Method = d.Method
	}
	if c.KeysToIgnore == nil {
		c.KeysToIgnore = d.KeysToIgnore
	}
	if c.MinNumberOfEvents <= 0 {
		c.MinNumberOfEvents = d.MinNumberOfEvents
	}
	if c.MaxNumberOfEvents <= 0 {
		c.MaxNumberOfEvents = d.MaxNumberOfEvents
	}
	if c.MinLength <= 0 {
		c.MinLength = d.MinLength
	}
	if c.MaxLength <= 0 {
		c.MaxLength = d.MaxLength
	}
	if c.ErrorLimit <= 0 {
		c.ErrorLimit = d.ErrorLimit
	}
	if c.StackLimit <= 0 {
		c.StackLimit = d.StackLimit
	}
	if c.DataRequestTTL <= 0 {
		c.DataRequestTTL = d.DataRequestTTL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = d.HTTPTimeout
	}
}

// Validate checks the configuration. Every problem is reported; the
// returned error wraps domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Method != http.MethodPost && c.Method != http.MethodGet {
		result = multierror.Append(result, fmt.Errorf("method must be POST or GET, got %q", c.Method))
	}
	if !c.DisableSending {
		if u, err := url.Parse(c.BeaconURL); err != nil || u.Scheme == "" || u.Host == "" {
			result = multierror.Append(result, fmt.Errorf("beacon URL %q is not an absolute URL", c.BeaconURL))
		}
	}
	if c.MaxNumberOfEvents < c.MinNumberOfEvents {
		result = multierror.Append(result, fmt.Errorf("max events (%d) must be >= min events (%d)", c.MaxNumberOfEvents, c.MinNumberOfEvents))
	}
	if c.Method == http.MethodGet && c.MaxLength <= c.MinLength {
		result = multierror.Append(result, fmt.Errorf("max length (%d) must be > min length (%d)", c.MaxLength, c.MinLength))
	}
	if c.MaxPayloadChars < 0 {
		result = multierror.Append(result, fmt.Errorf("max payload chars must not be negative"))
	}
	if c.FlushInterval < 0 {
		result = multierror.Append(result, fmt.Errorf("flush interval must not be negative"))
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) senderConfig() app.BatchSenderConfig {
	return app.BatchSenderConfig{
		BeaconURL:         c.BeaconURL,
		Method:            c.Method,
		KeysToIgnore:      c.KeysToIgnore,
		MinNumberOfEvents: c.MinNumberOfEvents,
		MaxNumberOfEvents: c.MaxNumberOfEvents,
		MaxPayloadChars:   c.MaxPayloadChars,
		MinLength:         c.MinLength,
		MaxLength:         c.MaxLength,
		DisableSending:    c.DisableSending,
		SendSync:          c.SendSync,
	}
}

func (c Config) aggregatorConfig() app.AggregatorConfig {
	return app.AggregatorConfig{
		ErrorLimit:          c.ErrorLimit,
		StackLimit:          c.StackLimit,
		IgnoreStackMatcher:  c.IgnoreStackMatcher,
		FlushInterval:       c.FlushInterval,
		DedupComponentReady: c.DedupComponentReady,
		DataRequestTTL:      c.DataRequestTTL,
	}
}

// Errors re-exported so callers can match them with errors.Is.
var (
	ErrInvalidConfig        = domain.ErrInvalidConfig
	ErrTransportUnavailable = domain.ErrTransportUnavailable
	ErrBeaconRejected       = domain.ErrBeaconRejected
)
