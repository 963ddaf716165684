package security

import (
	"encoding/json"
	"fmt"
)

// TruncateResult shrinks value so that its JSON serialization fits
// within maxBytes, if it doesn't already. The strategy depends on the
// JSON type of value:
//
//   - string: truncated to fit, minus a trailing
//     "... [truncated, original size: N bytes]" marker.
//   - array: kept as a prefix of elements plus a trailing sentinel
//     {"_truncated":true,"original_count":N}.
//   - anything else (object, number, bool, null): wrapped as
//     {"_truncated_json":"<prefix>...","original_bytes":N}.
func TruncateResult(value any, maxBytes int) any {
	serialized, err := json.Marshal(value)
	if err != nil || len(serialized) <= maxBytes {
		return value
	}

	switch v := value.(type) {
	case string:
		return truncateStringValue(v, maxBytes)
	case []any:
		return truncateArrayValue(v, maxBytes)
	default:
		return truncateRawValue(serialized, maxBytes)
	}
}

func truncateStringValue(s string, maxBytes int) string {
	originalLen := len(s)
	suffix := fmt.Sprintf("... [truncated, original size: %d bytes]", originalLen)

	const quoteOverhead = 2 // the two JSON string quote characters
	available := maxBytes - quoteOverhead - len(suffix)
	if available < 0 {
		available = 0
	}

	runes := []rune(s)
	if available > len(runes) {
		available = len(runes)
	}

	for {
		candidate := string(runes[:available]) + suffix
		if available == 0 {
			return candidate
		}
		if out, err := json.Marshal(candidate); err == nil && len(out) <= maxBytes {
			return candidate
		}
		available--
	}
}

func truncateArrayValue(arr []any, maxBytes int) []any {
	originalCount := len(arr)
	sentinel := map[string]any{"_truncated": true, "original_count": originalCount}
	sentinelSer, _ := json.Marshal(sentinel)

	result := make([]any, 0, len(arr))
	currentLen := len("[") + len(sentinelSer) + len("]")

	for _, elem := range arr {
		elemSer, err := json.Marshal(elem)
		if err != nil {
			break
		}
		addition := len(elemSer) + len(",")
		if currentLen+addition > maxBytes {
			break
		}
		result = append(result, elem)
		currentLen += addition
	}

	result = append(result, sentinel)
	return result
}

func truncateRawValue(serialized []byte, maxBytes int) any {
	originalLen := len(serialized)
	runes := []rune(string(serialized))
	available := len(runes)

	for {
		prefix := string(runes[:available]) + "..."
		candidate := map[string]any{"_truncated_json": prefix, "original_bytes": originalLen}
		out, err := json.Marshal(candidate)
		if err == nil && (len(out) <= maxBytes || available == 0) {
			return candidate
		}
		if available >= 4 {
			available -= 4
		} else {
			available = 0
		}
	}
}
