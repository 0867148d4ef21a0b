package event

import (
	"fmt"
	"unicode/utf8"
)

// Sanitization limits. Event payloads are client-supplied and otherwise
// unbounded; clamping here protects the event store from pathological
// input (oversized strings, huge arrays, unbounded nesting).
const (
	// MaxKeyLength - keys longer than this are dropped entirely.
	MaxKeyLength = 50

	// MaxStringLength - string values are truncated to this many runes.
	MaxStringLength = 500

	// MaxArrayLength - arrays keep only this many leading elements.
	MaxArrayLength = 10

	// MaxDepth - containers nested past this depth are replaced wholesale.
	MaxDepth = 3

	// TruncationMarker is appended to truncated strings.
	TruncationMarker = "..."

	// TooDeepSentinel replaces any container nested past MaxDepth.
	TooDeepSentinel = "[too deep]"
)

// Sanitize clamps a client-supplied payload to the storage limits. It is a
// total, pure function: it never fails, never mutates its input, and is
// idempotent - sanitizing an already-sanitized payload returns an equal
// payload. Fidelity degrades instead of the payload being rejected, since
// partial analytics signal beats none.
//
// Rules, applied recursively with the root at depth 0:
//   - keys longer than MaxKeyLength are dropped
//   - strings longer than MaxStringLength runes are truncated and marked
//   - arrays are cut to their first MaxArrayLength elements
//   - maps and arrays nested past MaxDepth become TooDeepSentinel
//   - numbers, booleans and nil pass through unchanged
//   - anything else is coerced to its string representation
func Sanitize(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return map[string]interface{}{}
	}
	return sanitizeMap(payload, 0)
}

func sanitizeMap(m map[string]interface{}, depth int) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if utf8.RuneCountInString(k) > MaxKeyLength {
			continue
		}
		out[k] = sanitizeValue(v, depth)
	}
	return out
}

// sanitizeValue sanitizes a single value found at the given depth. The
// root payload's direct values sit at depth 0; entering a container takes
// its contents one level deeper. A container encountered at MaxDepth would
// place its contents past the limit, so it is replaced by the sentinel.
func sanitizeValue(v interface{}, depth int) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		return t
	case string:
		return truncateString(t)
	case float64, float32,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return t
	case []interface{}:
		if depth >= MaxDepth {
			return TooDeepSentinel
		}
		n := len(t)
		if n > MaxArrayLength {
			n = MaxArrayLength
		}
		out := make([]interface{}, n)
		for i := 0; i < n; i++ {
			out[i] = sanitizeValue(t[i], depth+1)
		}
		return out
	case map[string]interface{}:
		if depth >= MaxDepth {
			return TooDeepSentinel
		}
		return sanitizeMap(t, depth+1)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// truncateString cuts s to MaxStringLength runes and appends the marker.
// The marker goes on after slicing to exactly MaxStringLength, which is
// what makes the operation idempotent: re-truncating a marked string
// reproduces it byte for byte.
func truncateString(s string) string {
	if utf8.RuneCountInString(s) <= MaxStringLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxStringLength]) + TruncationMarker
}
