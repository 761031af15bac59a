// Package replay drives an aggregator from a JSON-lines log of
// instrumentation commands.
package replay

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/bft-labs/tracebeacon/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Operations understood by the runner.
const (
	OpSession  = "session"
	OpAction   = "action"
	OpSpan     = "span"
	OpEnd      = "end"
	OpReady    = "ready"
	OpError    = "error"
	OpRequest  = "request"
	OpResponse = "response"
	OpFlush    = "flush"
)

// Command is one line of a replay log.
//
//	{"op":"action","description":"click","name":"Button"}
//	{"op":"span","id":"grid","description":"grid load"}
//	{"op":"end","id":"grid","whenLongerThan":50}
type Command struct {
	Op string `json:"op"`

	// ID names a span or data request so a later end or response can find it.
	ID string `json:"id,omitempty"`

	// Parent names an open span to parent a new span or request under.
	Parent string `json:"parent,omitempty"`

	Type        string `json:"type,omitempty"`
	Name        string `json:"name,omitempty"`
	Hierarchy   string `json:"hierarchy,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Message     string `json:"message,omitempty"`
	Stack       string `json:"stack,omitempty"`
	RequestID   string `json:"requestId,omitempty"`

	// At is an absolute ms timestamp used as start or stop time. 0 means now.
	At int64 `json:"at,omitempty"`

	WhenLongerThan int64 `json:"whenLongerThan,omitempty"`

	Params map[string]any `json:"params,omitempty"`
	Misc   map[string]any `json:"misc,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// ParseCommand decodes one line.
func ParseCommand(line []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(line, &cmd); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	if cmd.Op == "" {
		return Command{}, errors.New("decode command: missing op")
	}
	return cmd, nil
}

func (c Command) eventType() domain.EventType {
	return domain.EventType(c.Type)
}
