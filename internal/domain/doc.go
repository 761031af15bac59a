// Package domain contains the core domain entities and value objects for tracebeacon.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (HTTP, logging, timers) and
// contains only the event model and the rules for merging event fields.
//
// # Entities
//
//   - [Event]: A flat telemetry record (action, load, dataRequest or error)
//   - [EventType]: The category of an event
//
// # Design Principles
//
// Events are plain maps while a span is open. Once an event is handed to a
// sender it is never mutated again; every layer that needs to change a record
// works on a [Event.Clone].
package domain
