package replay

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bft-labs/tracebeacon/internal/app"
	"github.com/bft-labs/tracebeacon/internal/domain"
	"github.com/bft-labs/tracebeacon/internal/ports"
)

// ErrUnknownOp is returned for a command the runner does not understand.
var ErrUnknownOp = errors.New("replay: unknown op")

// Aggregator is the part of app.Aggregator the runner drives.
type Aggregator interface {
	StartSession(defaultParams map[string]any)
	RecordAction(opts app.ActionOptions) string
	StartSpan(opts app.SpanOptions) *app.Span
	RecordComponentReady(opts app.ComponentReadyOptions)
	RecordErrorMessage(msg string, misc map[string]any)
	BeginDataRequest(opts app.DataRequestOptions) (app.DataRequest, bool)
	EndDataRequest(eventID string, opts app.EndDataRequestOptions)
	SendAllRemainingEvents()
}

// Runner applies commands to an aggregator. It is not safe for concurrent use.
type Runner struct {
	agg    Aggregator
	logger ports.Logger

	spans    map[string]*app.Span
	requests map[string]app.DataRequest
	applied  int
}

// NewRunner creates a runner.
func NewRunner(agg Aggregator, logger ports.Logger) *Runner {
	return &Runner{
		agg:      agg,
		logger:   logger,
		spans:    make(map[string]*app.Span),
		requests: make(map[string]app.DataRequest),
	}
}

// Applied returns the number of commands applied so far.
func (r *Runner) Applied() int { return r.applied }

// Apply executes one command. Commands that need a trace return
// domain.ErrNoTrace when there is none.
func (r *Runner) Apply(cmd Command) error {
	switch cmd.Op {
	case OpSession:
		r.agg.StartSession(cmd.Params)
		r.spans = make(map[string]*app.Span)
		r.requests = make(map[string]app.DataRequest)

	case OpAction:
		r.agg.RecordAction(app.ActionOptions{
			Description: cmd.Description,
			Hierarchy:   cmd.Hierarchy,
			Name:        cmd.Name,
			StartTime:   cmd.At,
			MiscData:    cmd.Misc,
		})

	case OpSpan:
		span := r.agg.StartSpan(app.SpanOptions{
			Description:    cmd.Description,
			Hierarchy:      cmd.Hierarchy,
			Name:           cmd.Name,
			Type:           cmd.eventType(),
			ParentID:       r.parentID(cmd.Parent),
			StartTime:      cmd.At,
			WhenLongerThan: cmd.WhenLongerThan,
			MiscData:       cmd.Misc,
		})
		if span == nil {
			return fmt.Errorf("span %q: %w", cmd.ID, domain.ErrNoTrace)
		}
		if cmd.ID != "" {
			r.spans[cmd.ID] = span
		}

	case OpEnd:
		span, ok := r.spans[cmd.ID]
		if !ok {
			return fmt.Errorf("end: no open span %q", cmd.ID)
		}
		delete(r.spans, cmd.ID)
		span.End(app.EndOptions{StopTime: cmd.At, WhenLongerThan: cmd.WhenLongerThan, Fields: cmd.Fields})

	case OpReady:
		r.agg.RecordComponentReady(app.ComponentReadyOptions{
			Hierarchy: cmd.Hierarchy,
			Name:      cmd.Name,
			StopTime:  cmd.At,
			MiscData:  cmd.Misc,
		})

	case OpError:
		misc := cmd.Misc
		if cmd.Stack != "" {
			misc = domain.Layered(misc, map[string]any{domain.FieldStack: cmd.Stack})
		}
		r.agg.RecordErrorMessage(cmd.Message, misc)

	case OpRequest:
		req, ok := r.agg.BeginDataRequest(app.DataRequestOptions{
			Description: cmd.Description,
			Hierarchy:   cmd.Hierarchy,
			Name:        cmd.Name,
			URL:         cmd.URL,
			ParentID:    r.parentID(cmd.Parent),
			StartTime:   cmd.At,
			MiscData:    cmd.Misc,
		})
		if !ok {
			return fmt.Errorf("request %q: %w", cmd.ID, domain.ErrNoTrace)
		}
		r.requests[cmd.ID] = req

	case OpResponse:
		req, ok := r.requests[cmd.ID]
		if !ok {
			return fmt.Errorf("response: no pending request %q", cmd.ID)
		}
		delete(r.requests, cmd.ID)
		r.agg.EndDataRequest(req.EventID, app.EndDataRequestOptions{
			Response: cmd.RequestID,
			StopTime: cmd.At,
			Fields:   cmd.Fields,
		})

	case OpFlush:
		r.agg.SendAllRemainingEvents()

	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, cmd.Op)
	}

	r.applied++
	return nil
}

func (r *Runner) parentID(alias string) string {
	if alias == "" {
		return ""
	}
	if span, ok := r.spans[alias]; ok {
		return span.ID()
	}
	if req, ok := r.requests[alias]; ok {
		return req.EventID
	}
	return alias
}

// Run applies every command read from in. Blank lines and lines starting
// with '#' are skipped. A command that cannot run for lack of a trace is
// logged and skipped; any other failure stops the run.
func (r *Runner) Run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lineNo := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		if err := r.applyLine(lineNo, sc.Bytes()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read commands: %w", err)
	}
	return nil
}

func (r *Runner) applyLine(lineNo int, line []byte) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] == '#' {
		return nil
	}

	cmd, err := ParseCommand(line)
	if err != nil {
		return fmt.Errorf("line %d: %w", lineNo, err)
	}
	if err := r.Apply(cmd); err != nil {
		if errors.Is(err, domain.ErrNoTrace) {
			r.logger.Warn("command skipped", ports.Int("line", lineNo), ports.Err(err))
			return nil
		}
		return fmt.Errorf("line %d: %w", lineNo, err)
	}
	return nil
}
