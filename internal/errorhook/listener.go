// Package errorhook owns the process-wide error hook and forwards reported
// errors to an error recorder such as the aggregator.
package errorhook

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/bft-labs/tracebeacon/internal/domain"
)

// ErrorRecorder receives formatted error reports.
type ErrorRecorder interface {
	RecordErrorMessage(msg string, misc map[string]any)
}

var (
	slotMu sync.Mutex
	// installed holds the active listeners, oldest first. The last one owns
	// unhandled reports.
	installed []*Listener
)

// Listener formats hook reports and forwards them to a recorder.
type Listener struct {
	recorder   ErrorRecorder
	stackLimit int
}

// Option configures a Listener.
type Option func(*Listener)

// WithStackLimit truncates forwarded stacks to n lines. The cut happens
// before the recorder filters lines, so a recorder that drops frames keeps
// fewer than n. Leave it unset when the recorder applies its own limit.
func WithStackLimit(n int) Option {
	return func(l *Listener) { l.stackLimit = n }
}

// New creates a listener. It does nothing until installed.
func New(recorder ErrorRecorder, opts ...Option) *Listener {
	l := &Listener{recorder: recorder}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Install adds l to the process-wide hook. Listeners installed earlier keep
// receiving reports, and are called first. Installing twice is a no-op.
func (l *Listener) Install() {
	slotMu.Lock()
	defer slotMu.Unlock()

	for _, other := range installed {
		if other == l {
			return
		}
	}
	installed = append(installed, l)
}

// Uninstall removes l from the hook wherever it sits. Listeners installed
// before and after it are unaffected. It is a no-op if l is not installed.
func (l *Listener) Uninstall() {
	slotMu.Lock()
	defer slotMu.Unlock()

	for i, other := range installed {
		if other == l {
			installed = append(installed[:i:i], installed[i+1:]...)
			return
		}
	}
}

func snapshot() []*Listener {
	slotMu.Lock()
	defer slotMu.Unlock()
	return append([]*Listener(nil), installed...)
}

// Report sends an error to every installed listener and reports whether
// there was one.
func Report(message, file string, line, column int, err error) bool {
	ls := snapshot()
	for _, l := range ls {
		l.handle(message, file, line, column, err)
	}
	return len(ls) > 0
}

// ReportUnhandled reports an error that arrived without a usable error
// value to the most recently installed listener. file and line may be empty.
func ReportUnhandled(message, file string, line int) bool {
	ls := snapshot()
	if len(ls) == 0 {
		return false
	}
	ls[len(ls)-1].recordUnhandled(message, file, line)
	return true
}

// Recover reports a panic through the installed hook and panics again.
// Use it as a deferred call: defer errorhook.Recover().
func Recover() {
	r := recover()
	if r == nil {
		return
	}
	ReportPanic(r)
	panic(r)
}

// ReportPanic reports a recovered panic value through the installed hook.
// It is for callers that recover themselves and must not re-panic here.
func ReportPanic(r any) bool {
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("%v", r)
	}
	file, line := panicSite()
	return Report(err.Error(), file, line, 0, domain.WithStack(err))
}

func (l *Listener) handle(message, file string, line, column int, err error) {
	misc := map[string]any{}
	if column > 0 {
		misc[domain.FieldColumnNumber] = column
	}
	var st domain.StackTracer
	if err != nil && errors.As(err, &st) {
		misc[domain.FieldStack] = l.limit(st.Stack())
	}

	l.recorder.RecordErrorMessage(formatError("", message, "unknown message", file, line), misc)
}

func (l *Listener) recordUnhandled(message, file string, line int) {
	var msg string
	if file == "" && line <= 0 {
		if message == "" {
			message = "unknown error"
		}
		msg = "onerror::" + message
	} else {
		msg = formatError("onerror::", message, "unknown message", file, line)
	}
	l.recorder.RecordErrorMessage(msg, nil)
}

func (l *Listener) limit(stack string) string {
	if l.stackLimit <= 0 {
		return stack
	}
	lines := strings.Split(stack, "\n")
	if len(lines) > l.stackLimit {
		lines = lines[:l.stackLimit]
	}
	return strings.Join(lines, "\n")
}

// formatError renders "<prefix><message>, <file>:<line>".
func formatError(prefix, message, fallback, file string, line int) string {
	if message == "" {
		message = fallback
	}
	if file == "" {
		file = "??"
	}
	lineStr := "??"
	if line > 0 {
		lineStr = strconv.Itoa(line)
	}
	return prefix + message + ", " + file + ":" + lineStr
}

// panicSite finds the frame that panicked: the first non-runtime frame
// below runtime.gopanic. Without a panic in progress it falls back to the
// first frame outside the runtime and this package.
func panicSite() (string, int) {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var fallback runtime.Frame
	panicking := false
	for {
		f, more := frames.Next()
		runtimeFrame := strings.HasPrefix(f.Function, "runtime.")
		switch {
		case f.Function == "runtime.gopanic":
			panicking = true
		case panicking && !runtimeFrame:
			return f.File, f.Line
		case fallback.Function == "" && !runtimeFrame && !strings.Contains(f.Function, "internal/errorhook."):
			fallback = f
		}
		if !more {
			return fallback.File, fallback.Line
		}
	}
}
