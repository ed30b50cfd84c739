// resolve.go - Aufloesung von Checkpoint-Referenzen zu lokalen Pfaden
//
// Diese Datei enthaelt:
// - resolveEntry: setzt ResolvedPaths und Downloaded eines Eintrags
// - die Recipe-spezifischen Regeln (GGUF-Variante, genai_config.json,
//   index.json, kleinste *.bin, exakter Treffer)
package catalog

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/huggingface"
)

// resolveEntry loest alle Checkpoint-Rollen eines Eintrags auf lokale
// Pfade auf und bestimmt den Downloaded-Status. FLM-Eintraege verwalten
// ihren Speicher selbst und werden hier nicht angefasst.
func resolveEntry(entry *api.ModelEntry) {
	if entry.Recipe == api.RecipeFLM {
		entry.ResolvedPaths = map[string]string{api.CheckpointMain: entry.MainCheckpoint()}
		return
	}

	entry.ResolvedPaths = make(map[string]string, len(entry.Checkpoints))
	for role, ref := range entry.Checkpoints {
		entry.ResolvedPaths[role] = resolveRole(entry, role, ref)
	}

	entry.Downloaded = true
	for _, p := range entry.ResolvedPaths {
		if p == "" || !huggingface.IsComplete(p) {
			entry.Downloaded = false
			return
		}
	}
}

func resolveRole(entry *api.ModelEntry, role, ref string) string {
	// Lokale Quellen brauchen keine Snapshot-Suche
	if api.IsLocalCheckpoint(ref) {
		return ref
	}
	if entry.Source == api.SourceLocalUpload {
		return filepath.Join(huggingface.GetCacheDir(), filepath.FromSlash(ref))
	}

	repoID, variant := api.SplitCheckpoint(ref)
	revision := huggingface.ReadRef(repoID)
	if revision == "" {
		return ""
	}
	snapshot := huggingface.SnapshotDir(repoID, revision)
	files := listSnapshotFiles(snapshot)
	if len(files) == 0 {
		return ""
	}

	// Nicht-Haupt-Rollen sind immer exakt benannte Dateien
	if role != api.CheckpointMain {
		return exactFile(snapshot, files, variant)
	}

	switch entry.Recipe {
	case api.RecipeLlamaCPP:
		match, _ := huggingface.MatchGGUFVariant(huggingface.FilterGGUF(files), variant)
		if match == "" {
			return ""
		}
		return filepath.Join(snapshot, filepath.FromSlash(match))

	case api.RecipeRyzenAILLM:
		// Das Model-Verzeichnis ist der Ordner der genai_config.json
		for _, f := range files {
			if filepath.Base(f) == "genai_config.json" {
				return filepath.Dir(filepath.Join(snapshot, filepath.FromSlash(f)))
			}
		}
		return ""

	case api.RecipeKokoro:
		// Kokoro braucht den Ordner mit dem Voice-Index
		for _, f := range files {
			if filepath.Base(f) == "index.json" {
				return filepath.Dir(filepath.Join(snapshot, filepath.FromSlash(f)))
			}
		}
		return snapshot

	case api.RecipeWhisperCPP:
		if variant != "" {
			return exactFile(snapshot, files, variant)
		}
		return smallestBin(snapshot, files)

	default:
		if variant != "" {
			return exactFile(snapshot, files, variant)
		}
		return snapshot
	}
}

// listSnapshotFiles listet alle Dateien eines Snapshots, Pfade relativ
// und slash-separiert. Das Download-Manifest zaehlt nicht als Model-Datei.
func listSnapshotFiles(snapshot string) []string {
	var files []string
	filepath.Walk(snapshot, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(snapshot, p)
		if err != nil {
			return nil
		}
		if filepath.Base(rel) == huggingface.ManifestName {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files
}

// exactFile sucht eine Datei mit exakt passendem Namen (case-insensitive
// auf dem Basename)
func exactFile(snapshot string, files []string, name string) string {
	if name == "" {
		return ""
	}
	for _, f := range files {
		if f == name || strings.EqualFold(filepath.Base(f), name) {
			return filepath.Join(snapshot, filepath.FromSlash(f))
		}
	}
	return ""
}

// smallestBin waehlt die lexikographisch kleinste *.bin-Datei.
// Whisper-Repos tragen mehrere Quantisierungen; ohne Variante ist die
// Wahl damit ueber Laeufe hinweg stabil.
func smallestBin(snapshot string, files []string) string {
	var best string
	for _, f := range files {
		if !strings.HasSuffix(strings.ToLower(f), ".bin") {
			continue
		}
		if best == "" || f < best {
			best = f
		}
	}
	if best == "" {
		return ""
	}
	return filepath.Join(snapshot, filepath.FromSlash(best))
}
