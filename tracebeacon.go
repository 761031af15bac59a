package tracebeacon

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	httpAdapter "github.com/bft-labs/tracebeacon/internal/adapters/http"
	"github.com/bft-labs/tracebeacon/internal/adapters/ids"
	logAdapter "github.com/bft-labs/tracebeacon/internal/adapters/log"
	"github.com/bft-labs/tracebeacon/internal/adapters/metrics"
	"github.com/bft-labs/tracebeacon/internal/app"
	"github.com/bft-labs/tracebeacon/internal/errorhook"
	"github.com/bft-labs/tracebeacon/pkg/log"
)

// Client records instrumentation events and ships them to a beacon.
// The embedded Aggregator carries the recording API.
type Client struct {
	*app.Aggregator

	sender *app.BatchSender
	hook   *errorhook.Listener
	logger log.Logger
}

// New creates a Client. Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		logger: log.NewNoopLogger(),
		ids:    ids.NewUUIDGenerator(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewNoopLogger()
	}

	transport := o.transport
	if transport == nil {
		client := o.httpClient
		if client == nil {
			client = &http.Client{Timeout: cfg.HTTPTimeout}
		}
		transport = httpAdapter.NewTransport(client, logAdapter.With(o.logger, log.String("component", "transport")), cfg.HTTPTimeout, nil)
	}

	senderOpts := []app.SenderOption{
		app.WithSenderLogger(logAdapter.With(o.logger, log.String("component", "sender"))),
	}
	if o.metrics != nil {
		senderOpts = append(senderOpts, app.WithSenderMetrics(o.metrics))
	}
	sender := app.NewBatchSender(cfg.senderConfig(), transport, senderOpts...)

	aggOpts := []app.AggregatorOption{
		app.WithLogger(logAdapter.With(o.logger, log.String("component", "aggregator"))),
		app.WithIDGenerator(o.ids),
	}
	if o.clock != nil {
		aggOpts = append(aggOpts, app.WithClock(o.clock))
	}

	c := &Client{
		Aggregator: app.NewAggregator(cfg.aggregatorConfig(), sender, aggOpts...),
		sender:     sender,
		logger:     o.logger,
	}

	if cfg.InstallErrorHook {
		c.hook = errorhook.New(c.Aggregator)
		c.hook.Install()
	}

	o.logger.Debug("tracebeacon client ready",
		log.String("beacon", cfg.BeaconURL),
		log.String("method", cfg.Method),
		log.Bool("sending", !sender.IsDisabled()),
	)
	return c, nil
}

// IsSending reports whether batches still reach the beacon. It turns false
// for good after the first transport failure.
func (c *Client) IsSending() bool {
	return !c.sender.IsDisabled()
}

// PendingEvents returns a copy of the events waiting for a batch.
func (c *Client) PendingEvents() []Event {
	return c.sender.PendingEvents()
}

// Close uninstalls the error hook, stops the periodic flush, sends every
// queued event and waits for in-flight requests.
func (c *Client) Close() {
	if c.hook != nil {
		c.hook.Uninstall()
	}
	c.Aggregator.Close()
	c.Aggregator.SendAllRemainingEvents()
	c.sender.Wait()
}

// Metrics exposes sender counters through a Prometheus registry.
type Metrics struct {
	m *metrics.Metrics
}

// NewMetrics creates sender metrics backed by a private registry.
// Pass the result to WithMetrics.
func NewMetrics() *Metrics {
	return &Metrics{m: metrics.New()}
}

// Registry returns the registry holding the counters.
func (m *Metrics) Registry() *prometheus.Registry { return m.m.Registry() }

// BatchSent counts a batch handed to the transport and the events in it.
func (m *Metrics) BatchSent(events int) { m.m.BatchSent(events) }

// EventsDropped counts events discarded without reaching the transport.
func (m *Metrics) EventsDropped(events int) { m.m.EventsDropped(events) }

// SenderDisabled counts senders switched off after a transport failure.
func (m *Metrics) SenderDisabled() { m.m.SenderDisabled() }

// ReportError sends an error to the installed error hook.
// It reports whether a hook was installed.
func ReportError(message, file string, line, column int, err error) bool {
	return errorhook.Report(message, file, line, column, err)
}

// Recover reports a panic through the installed error hook and panics again.
// Use it as a deferred call: defer tracebeacon.Recover().
func Recover() {
	r := recover()
	if r == nil {
		return
	}
	errorhook.ReportPanic(r)
	panic(r)
}
