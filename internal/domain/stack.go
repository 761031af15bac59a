package domain

import (
	"runtime/debug"
	"strings"
)

// StackTracer is implemented by errors that carry their own stack trace.
type StackTracer interface {
	Stack() string
}

// StackError attaches a captured stack trace to an error.
type StackError struct {
	Err   error
	Trace string
}

// WithStack wraps err with the current goroutine's stack.
// It returns nil for a nil error.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	return &StackError{Err: err, Trace: string(debug.Stack())}
}

func (e *StackError) Error() string { return e.Err.Error() }

func (e *StackError) Unwrap() error { return e.Err }

// Stack implements StackTracer.
func (e *StackError) Stack() string { return e.Trace }

// StackLines splits a stack trace into non-empty lines.
func StackLines(stack string) []string {
	if stack == "" {
		return nil
	}
	raw := strings.Split(strings.ReplaceAll(stack, "\r\n", "\n"), "\n")
	out := raw[:0]
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
