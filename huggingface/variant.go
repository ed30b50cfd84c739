// variant.go - Varianten-Aufloesung fuer GGUF-Checkpoints
//
// Eine Checkpoint-Referenz repo_id:variant waehlt eine konkrete Datei
// aus dem Repository. Die Regeln gelten identisch fuer die lokale
// Pfad-Aufloesung des Katalogs und die Datei-Auswahl des Downloads.
package huggingface

import (
	"log/slog"
	"path"
	"sort"
	"strings"
)

// FilterGGUF gibt alle *.gguf-Dateien zurueck, mmproj-Dateien
// (case-insensitive) ausgenommen
func FilterGGUF(files []string) []string {
	var out []string
	for _, f := range files {
		base := path.Base(f)
		if !strings.HasSuffix(strings.ToLower(base), ".gguf") {
			continue
		}
		if strings.Contains(strings.ToLower(base), "mmproj") {
			continue
		}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// FindMMProj sucht eine mmproj-Datei (case-insensitive) in einer Dateiliste
func FindMMProj(files []string) (string, bool) {
	var candidates []string
	for _, f := range files {
		if strings.Contains(strings.ToLower(path.Base(f)), "mmproj") {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Strings(candidates)
	return candidates[0], true
}

// MatchGGUFVariant waehlt aus einer sortierten GGUF-Dateiliste die zur
// Variante passende Datei. Regeln in dieser Reihenfolge:
//   - Variante "*" oder leer: erste Datei
//   - Variante endet auf .gguf/.bin: exakter Dateiname
//   - case-insensitives Suffix <variant>.gguf
//   - case-insensitives Ordner-Praefix <variant>/
//
// Ohne Treffer wird die erste Datei als Fallback geliefert (ok=false).
// Der Aufrufer entscheidet ob der Fallback akzeptiert wird.
func MatchGGUFVariant(files []string, variant string) (match string, ok bool) {
	if len(files) == 0 {
		return "", false
	}
	sorted := make([]string, len(files))
	copy(sorted, files)
	sort.Strings(sorted)

	if variant == "" || variant == "*" {
		return sorted[0], true
	}

	lower := strings.ToLower(variant)

	if strings.HasSuffix(lower, ".gguf") || strings.HasSuffix(lower, ".bin") {
		for _, f := range sorted {
			if strings.EqualFold(path.Base(f), variant) {
				return f, true
			}
		}
	}

	for _, f := range sorted {
		if strings.HasSuffix(strings.ToLower(f), lower+".gguf") {
			return f, true
		}
	}

	for _, f := range sorted {
		if strings.HasPrefix(strings.ToLower(f), lower+"/") {
			return f, true
		}
	}

	slog.Warn("no file matches checkpoint variant, falling back to first file",
		"variant", variant, "fallback", sorted[0])
	return sorted[0], false
}

// WellKnownConfigFiles sind Konfigurationsdateien, die bei einem
// Varianten-Download mitgenommen werden, sofern das Repository sie hat
var WellKnownConfigFiles = []string{
	"config.json",
	"tokenizer.json",
	"tokenizer_config.json",
	"tokenizer.model",
}
