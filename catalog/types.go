// types.go - Persistierte JSON-Formen des Model-Katalogs
//
// Diese Datei enthaelt:
// - modelJSON: ein Eintrag in server_models.json bzw. user_models.json
// - Loader fuer die eingebaute und die Nutzer-Katalogdatei
// - Persistenz der pro Model gespeicherten Recipe-Optionen
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lemonade-sdk/lemonade/api"
)

// Dateinamen der Katalog-Persistenz
const (
	ServerModelsFile  = "server_models.json"
	UserModelsFile    = "user_models.json"
	RecipeOptionsFile = "recipe_options.json"
)

// modelJSON ist die JSON-Form eines Katalog-Eintrags
type modelJSON struct {
	Checkpoint    string             `json:"checkpoint"`
	MMProj        string             `json:"mmproj,omitempty"`
	NPUCache      string             `json:"npu_cache,omitempty"`
	Recipe        string             `json:"recipe"`
	Labels        []string           `json:"labels,omitempty"`
	SizeGB        float64            `json:"size,omitempty"`
	Suggested     bool               `json:"suggested,omitempty"`
	Source        string             `json:"source,omitempty"`
	RecipeOptions api.RecipeOptions  `json:"recipe_options,omitempty"`
	ImageDefaults *api.ImageDefaults `json:"image_defaults,omitempty"`
}

// toEntry baut den Laufzeit-Eintrag aus der JSON-Form
func (m modelJSON) toEntry(name string) (api.ModelEntry, error) {
	recipe, err := api.ParseRecipe(m.Recipe)
	if err != nil {
		return api.ModelEntry{}, fmt.Errorf("model %q: %w", name, err)
	}
	if m.Checkpoint == "" {
		return api.ModelEntry{}, fmt.Errorf("model %q: missing checkpoint", name)
	}

	checkpoints := map[string]string{api.CheckpointMain: m.Checkpoint}
	if m.MMProj != "" {
		checkpoints[api.CheckpointMMProj] = m.MMProj
	}
	if m.NPUCache != "" {
		checkpoints[api.CheckpointNPUCache] = m.NPUCache
	}

	entry := api.ModelEntry{
		Name:          name,
		Recipe:        recipe,
		Device:        recipe.DeviceClass(),
		Type:          api.TypeFromLabels(m.Labels),
		Labels:        m.Labels,
		Checkpoints:   checkpoints,
		SizeGB:        m.SizeGB,
		Suggested:     m.Suggested,
		Source:        m.Source,
		RecipeOptions: m.RecipeOptions.Sanitize(recipe),
		ImageDefaults: m.ImageDefaults,
	}
	return entry, nil
}

// fromEntry baut die JSON-Form eines Eintrags fuer die Persistenz
func fromEntry(entry api.ModelEntry) modelJSON {
	return modelJSON{
		Checkpoint:    entry.Checkpoints[api.CheckpointMain],
		MMProj:        entry.Checkpoints[api.CheckpointMMProj],
		NPUCache:      entry.Checkpoints[api.CheckpointNPUCache],
		Recipe:        string(entry.Recipe),
		Labels:        entry.Labels,
		SizeGB:        entry.SizeGB,
		Source:        entry.Source,
		RecipeOptions: entry.RecipeOptions,
		ImageDefaults: entry.ImageDefaults,
	}
}

// loadServerModels liest die eingebaute Katalogdatei. Fehlt sie oder
// ist sie fehlerhaft, startet der Server nicht.
func loadServerModels(path string) (map[string]api.ModelEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading built-in model catalog: %w", err)
	}
	var raw map[string]modelJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing built-in model catalog %s: %w", path, err)
	}

	entries := make(map[string]api.ModelEntry, len(raw))
	for name, m := range raw {
		entry, err := m.toEntry(name)
		if err != nil {
			return nil, err
		}
		entries[name] = entry
	}
	return entries, nil
}

// loadUserModels liest die Nutzer-Katalogdatei. Fehler sind nicht
// fatal: es wird gewarnt und mit leerem Nutzer-Katalog gestartet.
func loadUserModels(path string) map[string]api.ModelEntry {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]api.ModelEntry{}
	}
	if err != nil {
		slog.Warn("cannot read user model catalog, starting empty", "path", path, "error", err)
		return map[string]api.ModelEntry{}
	}

	var raw map[string]modelJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Warn("malformed user model catalog, starting empty", "path", path, "error", err)
		return map[string]api.ModelEntry{}
	}

	entries := make(map[string]api.ModelEntry, len(raw))
	for name, m := range raw {
		entry, err := m.toEntry(name)
		if err != nil {
			slog.Warn("skipping invalid user model", "model", name, "error", err)
			continue
		}
		entries[name] = entry
	}
	return entries
}

// saveUserModels schreibt die Nutzer-Katalogdatei atomar
func saveUserModels(path string, entries map[string]api.ModelEntry) error {
	raw := make(map[string]modelJSON, len(entries))
	for name, entry := range entries {
		raw[name] = fromEntry(entry)
	}
	return writeJSONAtomic(path, raw)
}

// loadRecipeOptions liest die gespeicherten Optionen pro Model.
// Fehler sind nicht fatal.
func loadRecipeOptions(path string) map[string]api.RecipeOptions {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("cannot read saved recipe options", "path", path, "error", err)
		}
		return map[string]api.RecipeOptions{}
	}
	var opts map[string]api.RecipeOptions
	if err := json.Unmarshal(data, &opts); err != nil {
		slog.Warn("malformed recipe options file, ignoring", "path", path, "error", err)
		return map[string]api.RecipeOptions{}
	}
	return opts
}

func saveRecipeOptions(path string, opts map[string]api.RecipeOptions) error {
	return writeJSONAtomic(path, opts)
}

func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
