// download_test.go - Tests fuer Store-Downloads, Resume und Manifest
package huggingface

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/lemonade-sdk/lemonade/api"
)

// newHubServer simuliert einen Repository-Host mit einem Repo und
// Range-Unterstuetzung fuer die Datei-Downloads
func newHubServer(t *testing.T, repoID, revision string, files map[string][]byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/models/"+repoID+"/tree/main", func(w http.ResponseWriter, r *http.Request) {
		var entries []string
		for name, data := range files {
			entries = append(entries, fmt.Sprintf(`{"type":"file","path":%q,"size":%d}`, name, len(data)))
		}
		fmt.Fprintf(w, "[%s]", strings.Join(entries, ","))
	})
	mux.HandleFunc("/api/models/"+repoID, func(w http.ResponseWriter, r *http.Request) {
		var siblings []string
		for name := range files {
			siblings = append(siblings, fmt.Sprintf(`{"rfilename":%q}`, name))
		}
		fmt.Fprintf(w, `{"sha":%q,"siblings":[%s]}`, revision, strings.Join(siblings, ","))
	})
	mux.HandleFunc("/"+repoID+"/resolve/", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		data, ok := files[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if rng := r.Header.Get("Range"); rng != "" {
			offset, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(rng, "bytes="), "-"), 10, 64)
			if err != nil || offset >= int64(len(data)) {
				w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
				return
			}
			w.WriteHeader(http.StatusPartialContent)
			w.Write(data[offset:])
			return
		}
		w.Write(data)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testEntry(name, checkpoint string) api.ModelEntry {
	return api.ModelEntry{
		Name:        name,
		Recipe:      api.RecipeLlamaCPP,
		Type:        api.ModelTypeLLM,
		Checkpoints: map[string]string{api.CheckpointMain: checkpoint},
	}
}

func TestStoreDownload(t *testing.T) {
	files := map[string][]byte{
		"model-Q4_0.gguf": []byte(strings.Repeat("a", 256)),
		"config.json":     []byte(`{"arch":"llama"}`),
		"README.md":       []byte("readme"),
	}
	srv := newHubServer(t, "org/repo", "rev1", files)
	t.Setenv(EnvHFEndpoint, srv.URL)
	t.Setenv(EnvHFHubCache, t.TempDir())

	store := NewStore(NewClient(), nil)

	var sawComplete bool
	err := store.Download(context.Background(), testEntry("test-model", "org/repo:Q4_0"), false,
		func(p api.PullProgress) error {
			if p.Status == "complete" {
				sawComplete = true
			}
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
	if !sawComplete {
		t.Error("no complete event emitted")
	}

	snapshot := SnapshotDir("org/repo", "rev1")

	// Varianten-Download nimmt die GGUF-Datei plus vorhandene Configs,
	// aber nicht den Rest des Repositories
	if _, err := os.Stat(filepath.Join(snapshot, "model-Q4_0.gguf")); err != nil {
		t.Errorf("gguf file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(snapshot, "config.json")); err != nil {
		t.Errorf("config.json missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(snapshot, "README.md")); err == nil {
		t.Error("README.md should not be downloaded for a variant pull")
	}

	// Nach erfolgreicher Validierung existiert kein Manifest mehr
	if _, err := os.Stat(filepath.Join(snapshot, ManifestName)); err == nil {
		t.Error("manifest should be deleted after validation")
	}
	if !IsComplete(filepath.Join(snapshot, "model-Q4_0.gguf")) {
		t.Error("downloaded file should be complete")
	}
	if got := ReadRef("org/repo"); got != "rev1" {
		t.Errorf("refs/main = %q, want rev1", got)
	}
}

func TestStoreDownloadResume(t *testing.T) {
	content := []byte(strings.Repeat("b", 512))
	files := map[string][]byte{"model-Q4_0.gguf": content}
	srv := newHubServer(t, "org/repo", "rev1", files)
	t.Setenv(EnvHFEndpoint, srv.URL)
	t.Setenv(EnvHFHubCache, t.TempDir())

	// Zustand eines unterbrochenen Downloads: Partial-Datei plus Manifest
	snapshot := SnapshotDir("org/repo", "rev1")
	if err := os.MkdirAll(snapshot, 0o755); err != nil {
		t.Fatal(err)
	}
	partial := filepath.Join(snapshot, "model-Q4_0.gguf"+PartialSuffix)
	if err := os.WriteFile(partial, content[:200], 0o644); err != nil {
		t.Fatal(err)
	}
	WriteManifest(snapshot, &Manifest{Model: "test-model", Revision: "rev1",
		Files: []ManifestFile{{Path: "model-Q4_0.gguf", Size: int64(len(content))}}})
	if err := WriteRef("org/repo", "rev1"); err != nil {
		t.Fatal(err)
	}

	if IsComplete(filepath.Join(snapshot, "model-Q4_0.gguf")) {
		t.Fatal("interrupted download must not count as complete")
	}

	store := NewStore(NewClient(), nil)
	var firstBytes int64 = -1
	err := store.Download(context.Background(), testEntry("test-model", "org/repo:Q4_0"), true,
		func(p api.PullProgress) error {
			if firstBytes < 0 {
				firstBytes = p.BytesDownloaded
			}
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}

	// Die vorhandenen Partial-Bytes zaehlen von Anfang an zum Fortschritt
	if firstBytes != 200 {
		t.Errorf("first progress event reported %d bytes, want 200", firstBytes)
	}

	data, err := os.ReadFile(filepath.Join(snapshot, "model-Q4_0.gguf"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != len(content) {
		t.Errorf("resumed file has %d bytes, want %d", len(data), len(content))
	}
	if _, err := os.Stat(partial); err == nil {
		t.Error("partial file should be gone after resume")
	}
	if _, err := os.Stat(filepath.Join(snapshot, ManifestName)); err == nil {
		t.Error("manifest should be deleted after resume")
	}
}

func TestStoreDownloadRestartWithoutRange(t *testing.T) {
	content := []byte(strings.Repeat("c", 512))
	mux := http.NewServeMux()
	mux.HandleFunc("/api/models/org/repo/tree/main", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"type":"file","path":"model-Q4_0.gguf","size":%d}]`, len(content))
	})
	mux.HandleFunc("/api/models/org/repo", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sha":"rev1","siblings":[{"rfilename":"model-Q4_0.gguf"}]}`)
	})
	mux.HandleFunc("/org/repo/resolve/", func(w http.ResponseWriter, r *http.Request) {
		// Range wird ignoriert, jede Antwort ist der volle Body
		w.Write(content)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Setenv(EnvHFEndpoint, srv.URL)
	t.Setenv(EnvHFHubCache, t.TempDir())

	snapshot := SnapshotDir("org/repo", "rev1")
	if err := os.MkdirAll(snapshot, 0o755); err != nil {
		t.Fatal(err)
	}
	partial := filepath.Join(snapshot, "model-Q4_0.gguf"+PartialSuffix)
	if err := os.WriteFile(partial, content[:200], 0o644); err != nil {
		t.Fatal(err)
	}
	WriteManifest(snapshot, &Manifest{Model: "test-model", Revision: "rev1",
		Files: []ManifestFile{{Path: "model-Q4_0.gguf", Size: int64(len(content))}}})
	if err := WriteRef("org/repo", "rev1"); err != nil {
		t.Fatal(err)
	}

	store := NewStore(NewClient(), nil)
	var maxBytes int64
	err := store.Download(context.Background(), testEntry("test-model", "org/repo:Q4_0"), true,
		func(p api.PullProgress) error {
			if p.BytesDownloaded > maxBytes {
				maxBytes = p.BytesDownloaded
			}
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}

	// Der Neustart nimmt die vorab gemeldeten Partial-Bytes zurueck;
	// der Fortschritt bleibt innerhalb der Gesamtgroesse
	if maxBytes > int64(len(content)) {
		t.Errorf("reported %d bytes for a %d byte file", maxBytes, len(content))
	}
	data, err := os.ReadFile(filepath.Join(snapshot, "model-Q4_0.gguf"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != len(content) {
		t.Errorf("restarted file has %d bytes, want %d", len(data), len(content))
	}
}

func TestStoreDownloadCancel(t *testing.T) {
	files := map[string][]byte{"model-Q4_0.gguf": []byte(strings.Repeat("c", 128))}
	srv := newHubServer(t, "org/repo", "rev1", files)
	t.Setenv(EnvHFEndpoint, srv.URL)
	t.Setenv(EnvHFHubCache, t.TempDir())

	store := NewStore(NewClient(), nil)
	stop := errors.New("user hit cancel")
	err := store.Download(context.Background(), testEntry("test-model", "org/repo:Q4_0"), false,
		func(p api.PullProgress) error {
			if p.BytesDownloaded > 0 {
				return stop
			}
			return nil
		})
	if !errors.Is(err, api.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}

	// Das Manifest bleibt liegen; der Download gilt als unvollstaendig
	snapshot := SnapshotDir("org/repo", "rev1")
	if _, err := os.Stat(filepath.Join(snapshot, ManifestName)); err != nil {
		t.Error("manifest should remain after cancellation")
	}
	if IsComplete(filepath.Join(snapshot, "model-Q4_0.gguf")) {
		t.Error("cancelled download must not count as complete")
	}
}

func TestStoreDownloadOffline(t *testing.T) {
	t.Setenv("LEMONADE_OFFLINE", "1")
	t.Setenv(EnvHFHubCache, t.TempDir())

	store := NewStore(NewClient(), nil)
	err := store.Download(context.Background(), testEntry("test-model", "org/repo:Q4_0"), false, nil)
	if !errors.Is(err, api.ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v", err)
	}
}

func TestManifestValidate(t *testing.T) {
	dir := t.TempDir()
	m := &Manifest{Model: "m", Revision: "rev1", Files: []ManifestFile{
		{Path: "a.gguf", Size: 4},
		{Path: "sub/b.json", Size: 2},
	}}

	// Fehlende Datei
	if err := m.Validate(dir); !errors.Is(err, api.ErrDownloadIncomplete) {
		t.Errorf("missing file: got %v", err)
	}

	os.WriteFile(filepath.Join(dir, "a.gguf"), []byte("abcd"), 0o644)
	os.MkdirAll(filepath.Join(dir, "sub"), 0o755)
	os.WriteFile(filepath.Join(dir, "sub", "b.json"), []byte("{}"), 0o644)
	if err := m.Validate(dir); err != nil {
		t.Errorf("complete download should validate, got %v", err)
	}

	// Groessen-Abweichung
	os.WriteFile(filepath.Join(dir, "a.gguf"), []byte("abc"), 0o644)
	if err := m.Validate(dir); !errors.Is(err, api.ErrDownloadIncomplete) {
		t.Errorf("size mismatch: got %v", err)
	}
	os.WriteFile(filepath.Join(dir, "a.gguf"), []byte("abcd"), 0o644)

	// Partial-Rest
	os.WriteFile(filepath.Join(dir, "a.gguf"+PartialSuffix), []byte("x"), 0o644)
	if err := m.Validate(dir); !errors.Is(err, api.ErrDownloadIncomplete) {
		t.Errorf("partial sibling: got %v", err)
	}
}
