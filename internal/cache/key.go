package cache

import (
	"encoding/json"
	"sort"
	"strings"
)

// Key builds a deterministic cache key from an operation name and its
// parameters. Map keys are sorted at every nesting level, so two parameter
// sets that differ only in insertion order produce the same key.
//
//	Key("search", map[string]any{"query": "pasta", "number": 5})
//	// search:{"number":5,"query":"pasta"}
func Key(operation string, params map[string]any) string {
	if len(params) == 0 {
		return operation
	}
	var b strings.Builder
	b.WriteString(operation)
	b.WriteByte(':')
	writeCanonical(&b, params)
	return b.String()
}

func writeCanonical(b *strings.Builder, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			writeJSON(b, k)
			b.WriteByte(':')
			writeCanonical(b, val[k])
		}
		b.WriteByte('}')
	case map[string]string:
		converted := make(map[string]any, len(val))
		for k, s := range val {
			converted[k] = s
		}
		writeCanonical(b, converted)
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, item)
		}
		b.WriteByte(']')
	default:
		writeJSON(b, val)
	}
}

// EncodeString returns s as it appears inside a key, without the surrounding
// quotes. Patterns matched against keys must be built from this form.
func EncodeString(s string) string {
	data, err := json.Marshal(s)
	if err != nil {
		return s
	}
	return string(data[1 : len(data)-1])
}

func writeJSON(b *strings.Builder, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		b.WriteString(`"!unserializable"`)
		return
	}
	b.Write(data)
}
