package core

import (
	"reflect"
	"testing"
)

func TestSearchOptions_Params(t *testing.T) {
	opts := SearchOptions{
		Number:          5,
		Diet:            "vegetarian",
		FillIngredients: true,
		Extra:           map[string]string{"maxReadyTime": "30", "number": "99"},
	}

	got := opts.Params()
	want := map[string]any{
		"number":          5,
		"diet":            "vegetarian",
		"fillIngredients": true,
		"maxReadyTime":    "30",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Params() = %v, want %v", got, want)
	}
}

func TestSearchOptions_ParamsOmitsZeroValues(t *testing.T) {
	if got := (SearchOptions{}).Params(); len(got) != 0 {
		t.Errorf("expected empty params, got %v", got)
	}
}

func TestEncodeParams(t *testing.T) {
	values := EncodeParams(map[string]any{
		"query":        "pasta",
		"number":       3,
		"ignorePantry": true,
		"ingredients":  []string{"tomato", "basil"},
	})

	if got := values.Encode(); got != "ignorePantry=true&ingredients=tomato%2Cbasil&number=3&query=pasta" {
		t.Errorf("Encode() = %s", got)
	}
}

func TestNormalizeIngredients(t *testing.T) {
	got := NormalizeIngredients([]string{" Tomato", "onion", "", "TOMATO", "basil "})
	want := []string{"tomato", "onion", "basil"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeIngredients() = %v, want %v", got, want)
	}
}
