// catalog_test.go - Tests fuer Laden, Filterung und Nutzer-Models
package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/discover"
)

const testServerModels = `{
  "Qwen3-4B-GGUF": {
    "checkpoint": "unsloth/Qwen3-4B-GGUF:Q4_K_M",
    "recipe": "llamacpp",
    "labels": ["reasoning"],
    "suggested": true
  },
  "Llama-NPU": {
    "checkpoint": "amd/Llama-3.2-1B-npu",
    "recipe": "ryzenai-llm"
  },
  "Whisper-Base": {
    "checkpoint": "ggerganov/whisper.cpp:ggml-base.bin",
    "recipe": "whispercpp",
    "labels": ["audio"]
  }
}`

// testCatalog baut einen Katalog aus testServerModels in einem
// frischen Cache-Verzeichnis
func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LEMONADE_CACHE_DIR", dir)
	t.Setenv("HF_HUB_CACHE", filepath.Join(dir, "hub"))
	t.Setenv("LEMONADE_EXTRA_MODELS_DIR", "")

	path := filepath.Join(dir, ServerModelsFile)
	if err := os.WriteFile(path, []byte(testServerModels), 0o644); err != nil {
		t.Fatal(err)
	}

	hw := &discover.SystemInfo{OS: runtime.GOOS, CPU: discover.CPUInfo{TotalRAMMB: 64 * 1024}}
	c, err := New(path, hw)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNewFatalOnMissingCatalog(t *testing.T) {
	t.Setenv("LEMONADE_CACHE_DIR", t.TempDir())
	hw := &discover.SystemInfo{}
	if _, err := New(filepath.Join(t.TempDir(), "missing.json"), hw); err == nil {
		t.Fatal("missing built-in catalog must be fatal")
	}
}

func TestNewFatalOnMalformedCatalog(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LEMONADE_CACHE_DIR", dir)
	path := filepath.Join(dir, ServerModelsFile)
	os.WriteFile(path, []byte("{not json"), 0o644)
	if _, err := New(path, &discover.SystemInfo{}); err == nil {
		t.Fatal("malformed built-in catalog must be fatal")
	}
}

func TestListFiltersUnsupported(t *testing.T) {
	c := testCatalog(t)

	names := func(entries []api.ModelEntry) map[string]bool {
		out := map[string]bool{}
		for _, e := range entries {
			out[e.Name] = true
		}
		return out
	}

	// Der ryzenai-Eintrag ist ohne NPU aus beiden Sichten gefiltert
	all := names(c.List(true))
	if all["Llama-NPU"] {
		t.Error("NPU model should be hidden without NPU hardware")
	}
	if !all["Qwen3-4B-GGUF"] {
		t.Error("llamacpp model should be visible with showAll")
	}

	// Ohne showAll erscheinen nur heruntergeladene Eintraege
	if visible := names(c.List(false)); visible["Qwen3-4B-GGUF"] {
		t.Error("not-downloaded model should be hidden without showAll")
	}

	// Get unterscheidet unbekannt von nicht unterstuetzt
	var apiErr *api.Error
	_, err := c.Get("Llama-NPU")
	if !errors.As(err, &apiErr) || apiErr.Code != api.CodeModelNotSupported {
		t.Errorf("expected model_not_supported, got %v", err)
	}
	_, err = c.Get("does-not-exist")
	if !errors.As(err, &apiErr) || apiErr.Code != api.CodeModelNotFound {
		t.Errorf("expected model_not_found, got %v", err)
	}
	if c.FilterReason("Llama-NPU") == "" {
		t.Error("hidden entry should carry a filter reason")
	}

	if _, err := c.GetUnfiltered("Llama-NPU"); err != nil {
		t.Errorf("GetUnfiltered should bypass the filter, got %v", err)
	}
	if c.Exists("Llama-NPU") {
		t.Error("Exists should honor the filter")
	}
	if !c.ExistsUnfiltered("Llama-NPU") {
		t.Error("ExistsUnfiltered should bypass the filter")
	}
	if c.ExistsUnfiltered("does-not-exist") {
		t.Error("ExistsUnfiltered should not invent entries")
	}
}

func TestSmallestBinIsLexicographic(t *testing.T) {
	files := []string{"ggml-tiny.bin", "ggml-base.bin", "README.md", "ggml-base.en.bin"}
	want := filepath.Join("snap", "ggml-base.bin")
	if got := smallestBin("snap", files); got != want {
		t.Errorf("smallestBin = %q, want %q", got, want)
	}
	if got := smallestBin("snap", []string{"README.md"}); got != "" {
		t.Errorf("expected empty result without .bin files, got %q", got)
	}
}

func TestRegisterAndRemoveUserModel(t *testing.T) {
	c := testCatalog(t)

	_, err := c.Register(api.PullRequest{
		Model: "no-prefix", Recipe: "llamacpp", Checkpoint: "org/repo:Q4_0",
	})
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Code != api.CodeInvalidRequest {
		t.Fatalf("missing user. prefix should be rejected, got %v", err)
	}

	entry, err := c.Register(api.PullRequest{
		Model: "user.my-model", Recipe: "llamacpp", Checkpoint: "org/repo:Q4_0",
		Labels: []string{"reasoning"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if entry.Type != api.ModelTypeLLM || !entry.HasLabel("reasoning") {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if !c.Exists("user.my-model") {
		t.Error("registered model should exist")
	}

	// Doppelte Registrierung
	_, err = c.Register(api.PullRequest{
		Model: "user.my-model", Recipe: "llamacpp", Checkpoint: "org/repo:Q4_0",
	})
	if err == nil {
		t.Error("duplicate registration should fail")
	}

	// Persistenz ueberlebt einen Neustart
	path := filepath.Join(os.Getenv("LEMONADE_CACHE_DIR"), ServerModelsFile)
	hw := &discover.SystemInfo{OS: runtime.GOOS, CPU: discover.CPUInfo{TotalRAMMB: 64 * 1024}}
	c2, err := New(path, hw)
	if err != nil {
		t.Fatal(err)
	}
	if !c2.Exists("user.my-model") {
		t.Error("user model should survive a reload")
	}

	if err := c2.Remove("user.my-model"); err != nil {
		t.Fatal(err)
	}
	if c2.Exists("user.my-model") {
		t.Error("removed user model should be gone")
	}
	if err := c2.Remove("user.my-model"); err == nil {
		t.Error("removing a missing model should fail")
	}
}

func TestSaveOptions(t *testing.T) {
	c := testCatalog(t)

	err := c.SaveOptions("Qwen3-4B-GGUF", api.RecipeOptions{
		"ctx_size": 16384,
		"bogus":    true, // unbekannte Keys werden verworfen
	})
	if err != nil {
		t.Fatal(err)
	}

	entry, err := c.Get("Qwen3-4B-GGUF")
	if err != nil {
		t.Fatal(err)
	}
	if got := entry.RecipeOptions.Int("ctx_size", 0); got != 16384 {
		t.Errorf("ctx_size = %d, want 16384", got)
	}
	if _, ok := entry.RecipeOptions["bogus"]; ok {
		t.Error("unknown option key should be dropped")
	}

	if err := c.SaveOptions("missing", api.RecipeOptions{}); err == nil {
		t.Error("saving options for a missing model should fail")
	}
}

func TestScanExtras(t *testing.T) {
	extra := t.TempDir()

	// Root-Datei und Unterordner mit mmproj
	os.WriteFile(filepath.Join(extra, "tiny.gguf"), []byte("x"), 0o644)
	sub := filepath.Join(extra, "my-vision-model")
	os.MkdirAll(sub, 0o755)
	os.WriteFile(filepath.Join(sub, "model-q4.gguf"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(sub, "model-q8.gguf"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(sub, "mmproj-f16.gguf"), []byte("x"), 0o644)

	c := testCatalog(t)
	t.Setenv("LEMONADE_EXTRA_MODELS_DIR", extra)
	c.RescanExtras()

	entry, err := c.GetUnfiltered("extra.tiny.gguf")
	if err != nil {
		t.Fatalf("root gguf entry missing: %v", err)
	}
	if entry.Recipe != api.RecipeLlamaCPP || !entry.HasLabel(api.LabelCustom) {
		t.Errorf("unexpected root entry: %+v", entry)
	}

	vision, err := c.GetUnfiltered("extra.my-vision-model")
	if err != nil {
		t.Fatalf("subdir entry missing: %v", err)
	}
	if !vision.HasLabel(api.LabelVision) {
		t.Error("mmproj should add the vision label")
	}
	if got := filepath.Base(vision.MainCheckpoint()); got != "model-q4.gguf" {
		t.Errorf("main checkpoint = %q, want the smallest non-mmproj file", got)
	}

	// Entfernte Dateien verschwinden beim naechsten Scan
	os.RemoveAll(sub)
	c.RescanExtras()
	if _, err := c.GetUnfiltered("extra.my-vision-model"); err == nil {
		t.Error("removed subdir should disappear from the catalog")
	}
}
