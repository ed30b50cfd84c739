// variant_test.go - Tests fuer die GGUF-Varianten-Aufloesung
package huggingface

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFilterGGUF(t *testing.T) {
	files := []string{
		"README.md",
		"model-Q4_0.gguf",
		"model-Q8_0.gguf",
		"mmproj-model-f16.gguf",
		"config.json",
	}
	want := []string{"model-Q4_0.gguf", "model-Q8_0.gguf"}
	if diff := cmp.Diff(want, FilterGGUF(files)); diff != "" {
		t.Errorf("FilterGGUF mismatch (-want +got):\n%s", diff)
	}
}

func TestFindMMProj(t *testing.T) {
	got, ok := FindMMProj([]string{"model.gguf", "mmproj-f16.gguf"})
	if !ok || got != "mmproj-f16.gguf" {
		t.Errorf("FindMMProj = %q, %v", got, ok)
	}
	if _, ok := FindMMProj([]string{"model.gguf"}); ok {
		t.Error("no mmproj expected")
	}
}

func TestMatchGGUFVariant(t *testing.T) {
	files := []string{
		"model-Q4_K_M.gguf",
		"model-Q8_0.gguf",
		"F16/model-00001.gguf",
	}

	tests := []struct {
		name    string
		variant string
		want    string
		wantOK  bool
	}{
		{"leer nimmt erste Datei", "", "F16/model-00001.gguf", true},
		{"stern nimmt erste Datei", "*", "F16/model-00001.gguf", true},
		{"exakter dateiname", "model-Q8_0.gguf", "model-Q8_0.gguf", true},
		{"quant-suffix", "Q4_K_M", "model-Q4_K_M.gguf", true},
		{"quant-suffix case-insensitive", "q8_0", "model-Q8_0.gguf", true},
		{"ordner-praefix", "F16", "F16/model-00001.gguf", true},
		{"kein treffer faellt auf erste zurueck", "Q2_K", "F16/model-00001.gguf", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MatchGGUFVariant(files, tt.variant)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("MatchGGUFVariant(%q) = %q, %v; want %q, %v",
					tt.variant, got, ok, tt.want, tt.wantOK)
			}
		})
	}

	if got, ok := MatchGGUFVariant(nil, "Q4"); got != "" || ok {
		t.Errorf("empty file list should return nothing, got %q, %v", got, ok)
	}
}
