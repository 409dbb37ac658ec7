package payload

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mcpcat/mcpcat-go-sdk/internal/event"
)

// Base64Threshold is the length from which strings are checked for base64.
const Base64Threshold = 10 * 1024

var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/\r\n]+=*$`)

func binaryMarker(n int) string {
	return fmt.Sprintf("[binary data removed: %d bytes]", n)
}

// IsBinary reports whether s looks like encoded binary content.
func IsBinary(s string) bool {
	if strings.HasPrefix(s, "data:") && strings.Contains(s[:min(len(s), 256)], ";base64,") {
		return true
	}

	return len(s) >= Base64Threshold && base64Pattern.MatchString(s)
}

// SanitizeValue returns v with binary strings replaced. Containers are copied.
func SanitizeValue(v any) any {
	switch t := v.(type) {
	case string:
		if IsBinary(t) {
			return binaryMarker(len(t))
		}

		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = SanitizeValue(item)
		}

		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = SanitizeValue(item)
		}

		return out
	default:
		return v
	}
}

// Sanitize strips binary content from the event's arguments.
func Sanitize(ev event.UsageEvent) event.UsageEvent {
	if ev.Arguments == nil {
		return ev
	}

	ev.Arguments, _ = SanitizeValue(ev.Arguments).(map[string]any)

	return ev
}
