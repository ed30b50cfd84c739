// scan.go - Scan des Extra-Models-Verzeichnisses
//
// Diese Datei enthaelt:
// - scanExtrasLocked: rekursiver GGUF-Scan von LEMONADE_EXTRA_MODELS_DIR
// - Namensregeln: Root-Dateien als extra.<dateiname>, Unterordner als
//   extra.<ordnername> mit mmproj-Erkennung
package catalog

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/envconfig"
)

// scanExtrasLocked liest das Extra-Verzeichnis und registriert die
// Funde als extra.-Eintraege. Bestehende extra.-Eintraege werden vorher
// verworfen, damit entfernte Dateien verschwinden. Aufrufer haelt c.mu.
func (c *Catalog) scanExtrasLocked() {
	dir := envconfig.ExtraModelsDir()
	for name := range c.entries {
		if strings.HasPrefix(name, api.ExtraPrefix) {
			delete(c.entries, name)
			delete(c.reasons, name)
		}
	}
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); err != nil {
		slog.Warn("extra models directory not accessible", "dir", dir, "error", err)
		return
	}

	for _, entry := range scanExtraDir(dir) {
		if _, exists := c.entries[entry.Name]; exists {
			slog.Warn("extra model name collides with existing entry, dropping",
				"model", entry.Name)
			continue
		}
		c.entries[entry.Name] = entry
	}
}

// scanExtraDir baut Eintraege aus einem Extra-Verzeichnis:
// GGUF-Dateien direkt im Root werden je eigener Eintrag, jeder
// Unterordner mit GGUF-Dateien wird ein Eintrag (kleinste
// Nicht-mmproj-Datei als Haupt-Checkpoint)
func scanExtraDir(dir string) []api.ModelEntry {
	var out []api.ModelEntry

	rootEntries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("cannot read extra models directory", "dir", dir, "error", err)
		return nil
	}

	for _, de := range rootEntries {
		name := de.Name()
		full := filepath.Join(dir, name)

		if !de.IsDir() {
			if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
				continue
			}
			out = append(out, extraEntry(api.ExtraPrefix+name, full, "", nil))
			continue
		}

		main, mmproj := scanExtraSubdir(full)
		if main == "" {
			continue
		}
		labels := []string{api.LabelCustom}
		if mmproj != "" {
			labels = append(labels, api.LabelVision)
		}
		out = append(out, extraEntry(api.ExtraPrefix+name, main, mmproj, labels))
	}
	return out
}

// scanExtraSubdir sucht rekursiv die Haupt-GGUF-Datei (lexikographisch
// kleinste Nicht-mmproj-Datei) und eine optionale mmproj-Datei
func scanExtraSubdir(dir string) (main, mmproj string) {
	var ggufs, mmprojs []string
	filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		base := strings.ToLower(filepath.Base(p))
		if !strings.HasSuffix(base, ".gguf") {
			return nil
		}
		if strings.Contains(base, "mmproj") {
			mmprojs = append(mmprojs, p)
		} else {
			ggufs = append(ggufs, p)
		}
		return nil
	})

	sort.Strings(ggufs)
	sort.Strings(mmprojs)
	if len(ggufs) == 0 {
		return "", ""
	}
	if len(mmprojs) > 0 {
		mmproj = mmprojs[0]
	}
	return ggufs[0], mmproj
}

func extraEntry(name, main, mmproj string, labels []string) api.ModelEntry {
	if labels == nil {
		labels = []string{api.LabelCustom}
	}
	checkpoints := map[string]string{api.CheckpointMain: main}
	if mmproj != "" {
		checkpoints[api.CheckpointMMProj] = mmproj
	}
	return api.ModelEntry{
		Name:        name,
		Recipe:      api.RecipeLlamaCPP,
		Device:      api.RecipeLlamaCPP.DeviceClass(),
		Type:        api.ModelTypeLLM,
		Labels:      labels,
		Checkpoints: checkpoints,
		Source:      api.SourceExtraModelsDir,
	}
}

// RescanExtras liest das Extra-Verzeichnis neu ein und bewertet die
// Funde. Wird vom Verzeichnis-Watcher und auf Anfrage aufgerufen.
func (c *Catalog) RescanExtras() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanExtrasLocked()
	c.refreshLocked()
}
