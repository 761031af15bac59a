package app

import (
	"fmt"
	"net/url"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/ryanuber/go-glob"

	"github.com/bft-labs/tracebeacon/internal/domain"
)

// json matches encoding/json output byte for byte: sorted keys, HTML escaping.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// cleanEvent returns a copy of ev without the keys matching any ignore pattern.
// Patterns are exact names or globs such as "cmp*".
func cleanEvent(ev domain.Event, ignore []string) domain.Event {
	out := make(domain.Event, len(ev))
	for k, v := range ev {
		if ignored(k, ignore) {
			continue
		}
		out[k] = v
	}
	return out
}

func ignored(key string, patterns []string) bool {
	for _, p := range patterns {
		if p == key || glob.Glob(p, key) {
			return true
		}
	}
	return false
}

// stringify renders a value the way a form field would carry it.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case domain.EventType:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// indexedFields flattens the event at position index into string fields
// whose keys carry the ".index" suffix, so several events share one payload.
func indexedFields(ev domain.Event, index int, dst map[string]string) {
	suffix := "." + strconv.Itoa(index)
	for k, v := range ev {
		dst[k+suffix] = stringify(v)
	}
}

// flatten builds the indexed payload for a batch.
func flatten(batch []domain.Event) map[string]string {
	n := 0
	for _, ev := range batch {
		n += len(ev)
	}
	out := make(map[string]string, n)
	for i, ev := range batch {
		indexedFields(ev, i, out)
	}
	return out
}

// encodeJSON renders a batch as the POST body.
func encodeJSON(batch []domain.Event) ([]byte, error) {
	b, err := json.Marshal(flatten(batch))
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}
	return b, nil
}

// encodeQuery renders a batch as a GET query string.
func encodeQuery(batch []domain.Event) string {
	values := url.Values{}
	for k, v := range flatten(batch) {
		values.Set(k, v)
	}
	return values.Encode()
}

// queryLength is the encoded length of one event's pairs at position index,
// without the separating '&'s between them.
func queryLength(ev domain.Event, index int) (length, pairs int) {
	suffix := "." + strconv.Itoa(index)
	for k, v := range ev {
		length += len(url.QueryEscape(k+suffix)) + 1 + len(url.QueryEscape(stringify(v)))
		pairs++
	}
	return length, pairs
}
