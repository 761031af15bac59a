package app

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/tracebeacon/internal/domain"
)

func TestStringify(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: "null"},
		{name: "string", in: "abc", want: "abc"},
		{name: "event type", in: domain.EventAction, want: "action"},
		{name: "true", in: true, want: "true"},
		{name: "false", in: false, want: "false"},
		{name: "int", in: 42, want: "42"},
		{name: "int64", in: int64(-7), want: "-7"},
		{name: "float", in: 1.5, want: "1.5"},
		{name: "whole float", in: float64(3), want: "3"},
		{name: "error", in: errors.New("boom"), want: "boom"},
		{name: "map", in: map[string]int{"a": 1}, want: `{"a":1}`},
		{name: "slice", in: []string{"a", "b"}, want: `["a","b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stringify(tt.in))
		})
	}
}

func TestCleanEvent(t *testing.T) {
	ev := domain.Event{"cmp": 1, "cmpType": "Grid", "cmpH": "Grid:Board", "eId": "e1"}

	assert.Equal(t, domain.Event{"cmpType": "Grid", "cmpH": "Grid:Board", "eId": "e1"}, cleanEvent(ev, []string{"cmp"}))
	assert.Equal(t, domain.Event{"eId": "e1"}, cleanEvent(ev, []string{"cmp*"}))
	assert.Len(t, ev, 4)
}

func TestEncodeQuery(t *testing.T) {
	batch := []domain.Event{
		{"eId": "a b", "n": 1},
		{"eId": "c&d"},
	}

	values, err := url.ParseQuery(encodeQuery(batch))
	require.NoError(t, err)
	assert.Equal(t, "a b", values.Get("eId.0"))
	assert.Equal(t, "1", values.Get("n.0"))
	assert.Equal(t, "c&d", values.Get("eId.1"))
}

func TestQueryLengthMatchesEncoding(t *testing.T) {
	batch := []domain.Event{
		{"eId": "a b", "n": 1, "desc": "ünïcode & more"},
		{"eId": "c"},
	}

	total := 0
	pairs := 0
	for i, ev := range batch {
		l, c := queryLength(ev, i)
		total += l
		pairs += c
	}

	assert.Equal(t, len(encodeQuery(batch)), total+pairs-1)
}

func TestEncodeJSON_StableBytes(t *testing.T) {
	batch := []domain.Event{{"b": "<x>&", "a": 1}}

	b, err := encodeJSON(batch)
	require.NoError(t, err)
	assert.Equal(t, `{"a.0":"1","b.0":"\u003cx\u003e\u0026"}`, string(b))
}
