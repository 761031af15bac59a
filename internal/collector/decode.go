package collector

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/bft-labs/tracebeacon/internal/domain"
)

var json = jsoniter.ConfigFastest

// DecodeJSON reads a POST body: one flat JSON object of indexed keys.
func DecodeJSON(r io.Reader) ([]domain.Event, error) {
	d := json.NewDecoder(r)
	d.UseNumber()

	var raw map[string]any
	if err := d.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedBatch, err)
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch x := v.(type) {
		case string:
			fields[k] = x
		case nil:
			fields[k] = "null"
		default:
			fields[k] = fmt.Sprint(x)
		}
	}
	return DecodeBatch(fields)
}

// DecodeQuery reads a GET batch from query values. Only the first value of
// each key is used.
func DecodeQuery(values map[string][]string) ([]domain.Event, error) {
	fields := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			fields[k] = vs[0]
		}
	}
	return DecodeBatch(fields)
}

// DecodeBatch splits "<key>.<index>" fields back into events ordered by index.
func DecodeBatch(fields map[string]string) ([]domain.Event, error) {
	byIndex := make(map[int]domain.Event)
	for k, v := range fields {
		dot := strings.LastIndexByte(k, '.')
		if dot <= 0 {
			return nil, fmt.Errorf("%w: key %q has no index", domain.ErrMalformedBatch, k)
		}
		idx, err := strconv.Atoi(k[dot+1:])
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: key %q has a bad index", domain.ErrMalformedBatch, k)
		}
		ev, ok := byIndex[idx]
		if !ok {
			ev = domain.Event{}
			byIndex[idx] = ev
		}
		ev[k[:dot]] = v
	}

	indexes := make([]int, 0, len(byIndex))
	for i := range byIndex {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	out := make([]domain.Event, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, byIndex[i])
	}
	return out, nil
}
