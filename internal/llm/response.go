// Package llm — response parsing helpers.
//
// Gemini frequently wraps structured output in markdown fences or adds
// prose around it. The helpers here normalize that before json.Unmarshal
// and coerce loosely typed fields, so callers can apply their own defaults
// when the model returns garbage instead of failing the turn.
package llm

import (
	"strings"
)

// ExtractJSON strips markdown code fences and surrounding noise from a raw
// model response, returning the innermost JSON-looking payload. When no
// fence is present it falls back to the outermost {...} span, and finally
// to the trimmed input.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
		return strings.TrimSpace(strings.Trim(raw, "`"))
	}

	// No fence: take the outermost object if the model added prose.
	if start := strings.Index(raw, "{"); start != -1 {
		if end := strings.LastIndex(raw, "}"); end > start {
			return strings.TrimSpace(raw[start : end+1])
		}
	}
	return strings.Trim(raw, "`")
}

// CoerceBool interprets sloppy truthiness values from model JSON.
func CoerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

// CoerceString returns a trimmed string for string-ish model JSON values,
// or "" when the value is absent or not a string.
func CoerceString(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
