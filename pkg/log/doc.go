// Package log provides the logging abstraction used by tracebeacon components.
//
// Telemetry must never disturb the host application, so the library logs
// nothing unless a Logger is injected. The zerolog adapter is what the
// tracebeacon CLI uses:
//
//	logger := log.NewZerologAdapter(os.Stderr, "info")
//
// Tests and embedders that want silence use the no-op logger:
//
//	logger := log.NewNoopLogger()
//
// Implement the Logger interface to route messages into an existing
// logging stack.
package log
