// cache.go - Cache-Management fuer Model-Repositories
// Kompatibel mit der huggingface_hub Cache-Struktur:
// <cache>/models--org--repo/snapshots/<revision>/... plus refs/main.
// Waehrend eines Downloads liegt .download_manifest.json im Snapshot-Root
// und jede in-flight Datei hat einen <file>.partial-Nachbarn.
package huggingface

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Cache-Konstanten
const (
	DefaultCacheSubdir = "huggingface/hub"
	CacheRefDir        = "refs"
	CacheSnapshotDir   = "snapshots"
	CacheModelPrefix   = "models--"

	// ManifestName markiert einen unvollstaendigen Multi-File-Download
	ManifestName = ".download_manifest.json"

	// PartialSuffix markiert eine in-flight Datei
	PartialSuffix = ".partial"
)

// Environment-Variablen
const (
	EnvHFHubCache = "HF_HUB_CACHE"
	EnvHFHome     = "HF_HOME"
	EnvHFToken    = "HF_TOKEN"
	EnvHFEndpoint = "HF_ENDPOINT"
)

// GetCacheDir gibt das Repository-Cache-Verzeichnis zurueck
// Prioritaet: HF_HUB_CACHE, HF_HOME/hub, OS-Default
func GetCacheDir() string {
	if cacheDir := os.Getenv(EnvHFHubCache); cacheDir != "" {
		return cacheDir
	}
	if hfHome := os.Getenv(EnvHFHome); hfHome != "" {
		return filepath.Join(hfHome, "hub")
	}
	return getDefaultCacheDir()
}

func getDefaultCacheDir() string {
	var baseDir string
	switch runtime.GOOS {
	case "windows":
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			baseDir = filepath.Join(userProfile, ".cache")
		} else {
			baseDir = filepath.Join(os.TempDir(), "huggingface_cache")
		}
	default:
		if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
			baseDir = xdgCache
		} else if home, err := os.UserHomeDir(); err == nil {
			baseDir = filepath.Join(home, ".cache")
		} else {
			baseDir = filepath.Join(os.TempDir(), "huggingface_cache")
		}
	}
	return filepath.Join(baseDir, DefaultCacheSubdir)
}

// ModelCacheDir gibt das Verzeichnis models--org--repo zurueck
func ModelCacheDir(repoID string) string {
	return filepath.Join(GetCacheDir(), RepoIDToCacheDir(repoID))
}

// RepoIDToCacheDir bildet org/repo auf models--org--repo ab
func RepoIDToCacheDir(repoID string) string {
	return CacheModelPrefix + strings.ReplaceAll(repoID, "/", "--")
}

// SnapshotDir gibt das Snapshot-Verzeichnis einer Revision zurueck
func SnapshotDir(repoID, revision string) string {
	return filepath.Join(ModelCacheDir(repoID), CacheSnapshotDir, revision)
}

// ReadRef liest refs/main eines Repositories; leer wenn nicht vorhanden
func ReadRef(repoID string) string {
	data, err := os.ReadFile(filepath.Join(ModelCacheDir(repoID), CacheRefDir, "main"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// WriteRef schreibt refs/main eines Repositories
func WriteRef(repoID, revision string) error {
	refDir := filepath.Join(ModelCacheDir(repoID), CacheRefDir)
	if err := os.MkdirAll(refDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(refDir, "main"), []byte(revision), 0o644)
}

// IsComplete prueft ob ein aufgeloester Pfad vollstaendig heruntergeladen
// ist. Fuer Dateien: kein <p>.partial-Nachbar und kein Manifest im
// Verzeichnis. Fuer Verzeichnisse: kein Kind mit .partial-Suffix und
// kein Manifest. Nicht existierende Pfade sind nicht vollstaendig.
func IsComplete(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}

	if !info.IsDir() {
		if _, err := os.Stat(p + PartialSuffix); err == nil {
			return false
		}
		if _, err := os.Stat(filepath.Join(filepath.Dir(p), ManifestName)); err == nil {
			return false
		}
		return true
	}

	entries, err := os.ReadDir(p)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if entry.Name() == ManifestName {
			return false
		}
		if strings.HasSuffix(entry.Name(), PartialSuffix) {
			return false
		}
	}
	return true
}

// WalkModelFiles listet alle regulaeren Dateien unterhalb des
// Model-Cache-Verzeichnisses, Pfade relativ zum Model-Verzeichnis
func WalkModelFiles(repoID string) []string {
	root := ModelCacheDir(repoID)
	var files []string
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			if rel, err := filepath.Rel(root, path); err == nil {
				files = append(files, rel)
			}
		}
		return nil
	})
	return files
}

// RemoveModel loescht den gesamten Cache eines Repositories
func RemoveModel(repoID string) error {
	dir := ModelCacheDir(repoID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	return os.RemoveAll(dir)
}
