// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// In Clean Architecture / Hexagonal Architecture, ports are the boundaries
// between the application core and the outside world. They define what the
// application needs from external systems without specifying how those needs
// are fulfilled.
//
// # Port Interfaces
//
//   - [Sender]: Accepts finished events and flushes them (implemented by app.BatchSender)
//   - [Transport]: Creates one-shot handles that ship a payload to the beacon
//   - [IDGenerator]: Produces unique event and trace identifiers
//   - [Clock]: Source of wall-clock time
//   - [Scheduler]: Defers transport sends off the caller's path
//   - [SenderMetrics]: Counters for shipped and dropped events
//   - [Logger]: Structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement these interfaces
// with concrete implementations (net/http, uuid, prometheus, zerolog).
package ports
