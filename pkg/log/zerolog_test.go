package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestZerologAdapter_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	a := NewZerologAdapterWithLogger(zerolog.New(&buf))

	a.Warn("sender disabled", String("url", "http://beacon"), Int("events", 3), Err(errors.New("boom")))

	out := buf.String()
	for _, want := range []string{`"level":"warn"`, `"url":"http://beacon"`, `"events":3`, `"error":"boom"`, `"message":"sender disabled"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s missing %s", out, want)
		}
	}
}

func TestZerologAdapter_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	a := NewZerologAdapter(&buf, "error")

	a.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info message written at error level: %q", buf.String())
	}

	a.Error("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("error message missing: %q", buf.String())
	}
}
