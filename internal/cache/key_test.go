package cache

import "testing"

func TestKey(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		params    map[string]any
		expected  string
	}{
		{
			name:      "no params",
			operation: "random",
			params:    nil,
			expected:  "random",
		},
		{
			name:      "sorted keys",
			operation: "search",
			params:    map[string]any{"query": "pasta", "number": 5},
			expected:  `search:{"number":5,"query":"pasta"}`,
		},
		{
			name:      "nested maps are sorted",
			operation: "search",
			params: map[string]any{
				"z": map[string]any{"b": true, "a": "x"},
				"a": []any{map[string]any{"d": 1, "c": 2}},
			},
			expected: `search:{"a":[{"c":2,"d":1}],"z":{"a":"x","b":true}}`,
		},
		{
			name:      "string maps",
			operation: "details",
			params:    map[string]any{"extra": map[string]string{"y": "2", "x": "1"}},
			expected:  `details:{"extra":{"x":"1","y":"2"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.operation, tt.params); got != tt.expected {
				t.Errorf("Key() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestKey_InsertionOrderIndependent(t *testing.T) {
	first := map[string]any{}
	first["b"] = 1
	first["a"] = 2

	second := map[string]any{}
	second["a"] = 2
	second["b"] = 1

	if Key("search", first) != Key("search", second) {
		t.Errorf("keys differ: %s vs %s", Key("search", first), Key("search", second))
	}
}

func TestKey_DistinguishesOperations(t *testing.T) {
	params := map[string]any{"id": 1}
	if Key("details", params) == Key("search", params) {
		t.Error("different operations must not collide")
	}
}

func TestEncodeString_MatchesKeyEncoding(t *testing.T) {
	term := "mac & <cheese>"
	key := Key("search", map[string]any{"query": term})
	want := `search:{"query":"` + EncodeString(term) + `"}`
	if key != want {
		t.Errorf("expected %s, got %s", want, key)
	}
	if EncodeString(term) == term {
		t.Error("expected HTML-sensitive characters to be escaped")
	}
}
