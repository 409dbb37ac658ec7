package payload

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/mcpcat/mcpcat-go-sdk/internal/event"
)

// Size limits applied by Truncate.
const (
	MaxEventBytes    = 100 * 1024
	MaxStringBytes   = 10 * 1024
	MaxDepth         = 5
	MaxBreadth       = 500
	MaxErrorBytes    = 2 * 1024
	truncatedItemKey = "__truncated__"
)

// Limits bounds one truncation pass.
type Limits struct {
	Depth       int
	StringBytes int
	Breadth     int
}

// DefaultLimits returns the first-pass limits.
func DefaultLimits() Limits {
	return Limits{Depth: MaxDepth, StringBytes: MaxStringBytes, Breadth: MaxBreadth}
}

// TruncateString cuts s to at most maxBytes, ending with a marker that
// records the original size. The cut never splits a UTF-8 sequence.
func TruncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}

	marker := fmt.Sprintf("[string truncated from %d bytes]", len(s))

	keep := maxBytes - len(marker)
	if keep <= 0 {
		return marker
	}

	return strings.ToValidUTF8(s[:keep], "") + marker
}

// TruncateValue applies l to v. Containers below the depth limit are
// replaced with a marker; maps and slices beyond the breadth limit are cut.
func TruncateValue(v any, l Limits) any {
	return truncateValue(v, l, 0)
}

func truncateValue(v any, l Limits, depth int) any {
	switch t := v.(type) {
	case nil, bool, float64, float32, int, int64, int32, uint, uint64, uint32, json.Number:
		return v
	case string:
		return TruncateString(t, l.StringBytes)
	case map[string]any:
		if depth >= l.Depth {
			return depthMarker(l.Depth)
		}

		out := make(map[string]any, min(len(t), l.Breadth+1))

		n := 0
		for _, k := range slices.Sorted(maps.Keys(t)) {
			if n >= l.Breadth {
				out[truncatedItemKey] = fmt.Sprintf("[%d more items truncated]", len(t)-l.Breadth)

				break
			}

			out[k] = truncateValue(t[k], l, depth+1)
			n++
		}

		return out
	case []any:
		if depth >= l.Depth {
			return depthMarker(l.Depth)
		}

		out := make([]any, 0, min(len(t), l.Breadth+1))
		for i, item := range t {
			if i >= l.Breadth {
				out = append(out, fmt.Sprintf("[%d more items truncated]", len(t)-l.Breadth))

				break
			}

			out = append(out, truncateValue(item, l, depth+1))
		}

		return out
	default:
		rv := reflect.ValueOf(v)
		if k := rv.Kind(); k == reflect.Map || k == reflect.Slice || k == reflect.Array || k == reflect.Struct || k == reflect.Pointer {
			return truncateValue(normalize(v), l, depth)
		}

		return TruncateString(fmt.Sprint(v), l.StringBytes)
	}
}

// normalize converts arbitrary values into their JSON-decoded form.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}

	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return string(data)
	}

	return out
}

func depthMarker(depth int) string {
	return fmt.Sprintf("[nested content truncated at depth %d]", depth)
}

// Size returns the JSON-encoded size of ev.
func Size(ev event.UsageEvent) int {
	data, err := json.Marshal(ev)
	if err != nil {
		return 0
	}

	return len(data)
}

// Truncate caps error messages and, if the event is still larger than
// MaxEventBytes, shrinks arguments and user intent in passes: each pass
// lowers the depth limit by one and halves the string limit.
func Truncate(ev event.UsageEvent) event.UsageEvent {
	if ev.Error != nil {
		ev.Error = truncateError(ev.Error)
	}

	if Size(ev) <= MaxEventBytes {
		return ev
	}

	original := ev
	limits := DefaultLimits()

	for limits.Depth >= 0 {
		ev.UserIntent = TruncateString(original.UserIntent, limits.StringBytes)

		if original.Arguments != nil {
			ev.Arguments, _ = TruncateValue(original.Arguments, limits).(map[string]any)
			if ev.Arguments == nil {
				ev.Arguments = map[string]any{truncatedItemKey: depthMarker(limits.Depth)}
			}
		}

		if Size(ev) <= MaxEventBytes {
			return ev
		}

		limits.Depth--
		limits.StringBytes /= 2
	}

	return ev
}

func truncateError(d *event.ErrorDetail) *event.ErrorDetail {
	long := len(d.Message) > MaxErrorBytes
	for _, c := range d.Chain {
		long = long || len(c.Message) > MaxErrorBytes
	}

	if !long {
		return d
	}

	detail := *d
	detail.Message = TruncateString(detail.Message, MaxErrorBytes)

	if len(detail.Chain) > 0 {
		detail.Chain = slices.Clone(detail.Chain)
		for i := range detail.Chain {
			detail.Chain[i].Message = TruncateString(detail.Chain[i].Message, MaxErrorBytes)
		}
	}

	return &detail
}
