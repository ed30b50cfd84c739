// cache_test.go - Tests fuer Cache-Layout und Vollstaendigkeits-Pruefung
package huggingface

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRepoIDToCacheDir(t *testing.T) {
	tests := []struct {
		repoID string
		want   string
	}{
		{"org/repo", "models--org--repo"},
		{"unsloth/Qwen3-4B-GGUF", "models--unsloth--Qwen3-4B-GGUF"},
		{"single", "models--single"},
	}
	for _, tt := range tests {
		if got := RepoIDToCacheDir(tt.repoID); got != tt.want {
			t.Errorf("RepoIDToCacheDir(%q) = %q, want %q", tt.repoID, got, tt.want)
		}
	}
}

func TestGetCacheDirPriority(t *testing.T) {
	t.Setenv(EnvHFHubCache, "/custom/cache")
	t.Setenv(EnvHFHome, "/custom/home")
	if got := GetCacheDir(); got != "/custom/cache" {
		t.Errorf("HF_HUB_CACHE should win, got %q", got)
	}

	t.Setenv(EnvHFHubCache, "")
	want := filepath.Join("/custom/home", "hub")
	if got := GetCacheDir(); got != want {
		t.Errorf("HF_HOME/hub expected, got %q", got)
	}
}

func TestReadWriteRef(t *testing.T) {
	t.Setenv(EnvHFHubCache, t.TempDir())

	if got := ReadRef("org/repo"); got != "" {
		t.Errorf("missing ref should read empty, got %q", got)
	}
	if err := WriteRef("org/repo", "abc123"); err != nil {
		t.Fatal(err)
	}
	if got := ReadRef("org/repo"); got != "abc123" {
		t.Errorf("ReadRef = %q, want abc123", got)
	}
}

func TestIsComplete(t *testing.T) {
	dir := t.TempDir()

	// Nicht existierender Pfad
	if IsComplete(filepath.Join(dir, "missing.gguf")) {
		t.Error("missing path should not be complete")
	}

	// Vollstaendige Datei
	file := filepath.Join(dir, "model.gguf")
	os.WriteFile(file, []byte("x"), 0o644)
	if !IsComplete(file) {
		t.Error("plain file should be complete")
	}

	// Partial-Nachbar macht die Datei unvollstaendig
	os.WriteFile(file+PartialSuffix, []byte("y"), 0o644)
	if IsComplete(file) {
		t.Error("file with partial sibling should not be complete")
	}
	os.Remove(file + PartialSuffix)

	// Manifest im Verzeichnis macht die Datei unvollstaendig
	os.WriteFile(filepath.Join(dir, ManifestName), []byte("{}"), 0o644)
	if IsComplete(file) {
		t.Error("file next to manifest should not be complete")
	}
	os.Remove(filepath.Join(dir, ManifestName))

	// Vollstaendiges Verzeichnis
	if !IsComplete(dir) {
		t.Error("clean directory should be complete")
	}

	// Partial-Kind macht das Verzeichnis unvollstaendig
	os.WriteFile(filepath.Join(dir, "part.bin"+PartialSuffix), []byte("y"), 0o644)
	if IsComplete(dir) {
		t.Error("directory with partial child should not be complete")
	}
}
