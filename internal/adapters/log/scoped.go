package log

import "github.com/bft-labs/tracebeacon/internal/ports"

// Scoped implements ports.Logger by adding fixed fields to every message
// before handing it to the wrapped logger.
type Scoped struct {
	next   ports.Logger
	fields []ports.Field
}

// With returns a logger that tags every message with fields.
func With(next ports.Logger, fields ...ports.Field) *Scoped {
	if s, ok := next.(*Scoped); ok {
		return &Scoped{next: s.next, fields: append(append([]ports.Field(nil), s.fields...), fields...)}
	}
	return &Scoped{next: next, fields: fields}
}

// Debug logs at debug level.
func (s *Scoped) Debug(msg string, fields ...ports.Field) { s.next.Debug(msg, s.merge(fields)...) }

// Info logs at info level.
func (s *Scoped) Info(msg string, fields ...ports.Field) { s.next.Info(msg, s.merge(fields)...) }

// Warn logs at warn level.
func (s *Scoped) Warn(msg string, fields ...ports.Field) { s.next.Warn(msg, s.merge(fields)...) }

// Error logs at error level.
func (s *Scoped) Error(msg string, fields ...ports.Field) { s.next.Error(msg, s.merge(fields)...) }

func (s *Scoped) merge(fields []ports.Field) []ports.Field {
	out := make([]ports.Field, 0, len(s.fields)+len(fields))
	out = append(out, s.fields...)
	return append(out, fields...)
}
