// options_test.go - Tests fuer Sanitize und Merge der Recipe-Optionen
package api

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRecipeOptionsSanitize(t *testing.T) {
	cases := []struct {
		name   string
		recipe Recipe
		in     RecipeOptions
		want   RecipeOptions
	}{
		{
			name:   "unbekannte Keys fliegen raus",
			recipe: RecipeLlamaCPP,
			in:     RecipeOptions{OptionCtxSize: 4096, "voice": "af_sky"},
			want:   RecipeOptions{OptionCtxSize: 4096},
		},
		{
			name:   "Sentinels zaehlen als nicht gesetzt",
			recipe: RecipeLlamaCPP,
			in:     RecipeOptions{OptionCtxSize: -1, OptionBackend: "", OptionThreads: 8},
			want:   RecipeOptions{OptionThreads: 8},
		},
		{
			name:   "leeres Ergebnis wird nil",
			recipe: RecipeKokoro,
			in:     RecipeOptions{OptionVoice: ""},
			want:   nil,
		},
		{
			name:   "nil bleibt nil",
			recipe: RecipeLlamaCPP,
			in:     nil,
			want:   nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Sanitize(tc.recipe)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Sanitize mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRecipeOptionsMerge(t *testing.T) {
	request := RecipeOptions{OptionCtxSize: 8192, OptionBackend: ""}
	catalog := RecipeOptions{OptionCtxSize: 4096, OptionBackend: "vulkan", OptionThreads: -1}

	got := request.Merge(catalog)
	want := RecipeOptions{OptionCtxSize: 8192, OptionBackend: "vulkan"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitCheckpoint(t *testing.T) {
	cases := []struct {
		ref     string
		repo    string
		variant string
	}{
		{"unsloth/Qwen3-4B-GGUF:Q4_K_M", "unsloth/Qwen3-4B-GGUF", "Q4_K_M"},
		{"unsloth/Qwen3-4B-GGUF", "unsloth/Qwen3-4B-GGUF", ""},
		{"/models/local.gguf", "/models/local.gguf", ""},
		{`C:\models\local.gguf`, `C:\models\local.gguf`, ""},
	}
	for _, tc := range cases {
		repo, variant := SplitCheckpoint(tc.ref)
		if repo != tc.repo || variant != tc.variant {
			t.Errorf("SplitCheckpoint(%q) = (%q, %q), want (%q, %q)",
				tc.ref, repo, variant, tc.repo, tc.variant)
		}
	}
}

func TestTypeFromLabels(t *testing.T) {
	if got := TypeFromLabels([]string{"reasoning"}); got != ModelTypeLLM {
		t.Errorf("reasoning label should stay llm, got %q", got)
	}
	if got := TypeFromLabels([]string{"embeddings"}); got != ModelTypeEmbedding {
		t.Errorf("got %q, want embedding", got)
	}
	if got := TypeFromLabels(nil); got != ModelTypeLLM {
		t.Errorf("default type should be llm, got %q", got)
	}
}
