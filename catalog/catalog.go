// catalog.go - Der Model-Katalog des Gateways
//
// Diese Datei enthaelt:
// - Catalog: In-Memory-Cache aller Eintraege hinter einem Mutex
// - Zusammenfuehrung von eingebautem Katalog, Nutzer-Models,
//   Extra-Verzeichnis und FLM-Bestand
// - Hardware-Filterung mit Begruendung pro verstecktem Eintrag
package catalog

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/discover"
	"github.com/lemonade-sdk/lemonade/envconfig"
)

// Catalog haelt alle bekannten Model-Eintraege. Leser erhalten immer
// Kopien; der interne Zustand verlaesst den Mutex nie.
type Catalog struct {
	mu sync.Mutex

	// entries ist der ungefilterte Gesamtbestand nach Name
	entries map[string]api.ModelEntry

	// reasons begruendet pro Name, warum der Hardware-Filter den
	// Eintrag versteckt; fehlender Key = unterstuetzt
	reasons map[string]string

	hw *discover.SystemInfo

	userPath    string
	optionsPath string

	// savedOptions sind die per save_options persistierten Optionen
	savedOptions map[string]api.RecipeOptions

	// flmInstalled sind die Checkpoints, die die FLM-Engine als
	// installiert meldet
	flmInstalled map[string]bool
}

// New laedt den Katalog. Eine fehlende oder fehlerhafte eingebaute
// Katalogdatei ist fatal; Nutzer-Dateien werden tolerant behandelt.
func New(serverModelsPath string, hw *discover.SystemInfo) (*Catalog, error) {
	builtin, err := loadServerModels(serverModelsPath)
	if err != nil {
		return nil, err
	}

	cacheDir := envconfig.CacheDir()
	c := &Catalog{
		entries:      make(map[string]api.ModelEntry),
		reasons:      make(map[string]string),
		hw:           hw,
		userPath:     filepath.Join(cacheDir, UserModelsFile),
		optionsPath:  filepath.Join(cacheDir, RecipeOptionsFile),
		flmInstalled: make(map[string]bool),
	}

	for name, entry := range builtin {
		c.entries[name] = entry
	}
	for name, entry := range loadUserModels(c.userPath) {
		if _, exists := c.entries[name]; exists {
			slog.Warn("user model shadows built-in entry, skipping", "model", name)
			continue
		}
		c.entries[name] = entry
	}
	c.savedOptions = loadRecipeOptions(c.optionsPath)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanExtrasLocked()
	c.refreshLocked()

	slog.Info("model catalog loaded", "entries", len(c.entries))
	return c, nil
}

// refreshLocked loest Pfade auf und bewertet die Hardware-Eignung
// aller Eintraege. Aufrufer haelt c.mu.
func (c *Catalog) refreshLocked() {
	for name, entry := range c.entries {
		if saved, ok := c.savedOptions[name]; ok {
			entry.RecipeOptions = saved.Merge(entry.RecipeOptions).Sanitize(entry.Recipe)
		}
		resolveEntry(&entry)
		if entry.Recipe == api.RecipeFLM {
			entry.Downloaded = c.flmInstalled[entry.MainCheckpoint()]
		}
		c.entries[name] = entry

		if ok, reason := discover.Supported(c.hw, entry); !ok {
			c.reasons[name] = reason
		} else {
			delete(c.reasons, name)
		}
	}
}

// List gibt die unterstuetzten Eintraege sortiert nach Name zurueck.
// Ohne showAll erscheinen nur heruntergeladene Eintraege; vom
// Hardware-Filter versteckte erscheinen nie.
func (c *Catalog) List(showAll bool) []api.ModelEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]api.ModelEntry, 0, len(c.entries))
	for name, entry := range c.entries {
		if _, hidden := c.reasons[name]; hidden {
			continue
		}
		if !showAll && !entry.Downloaded {
			continue
		}
		out = append(out, entry.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get gibt einen unterstuetzten Eintrag zurueck. Unbekannte Namen und
// vom Hardware-Filter versteckte Eintraege liefern unterscheidbare Fehler.
func (c *Catalog) Get(name string) (api.ModelEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[name]
	if !ok {
		return api.ModelEntry{}, api.ErrModelNotFound(name)
	}
	if reason, hidden := c.reasons[name]; hidden {
		return api.ModelEntry{}, api.ErrModelNotSupported(name, reason)
	}
	return entry.Clone(), nil
}

// GetUnfiltered gibt einen Eintrag auch dann zurueck, wenn der
// Hardware-Filter ihn versteckt
func (c *Catalog) GetUnfiltered(name string) (api.ModelEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[name]
	if !ok {
		return api.ModelEntry{}, api.ErrModelNotFound(name)
	}
	return entry.Clone(), nil
}

// Exists prueft ob ein unterstuetzter Eintrag existiert
func (c *Catalog) Exists(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, hidden := c.reasons[name]; hidden {
		return false
	}
	_, ok := c.entries[name]
	return ok
}

// ExistsUnfiltered prueft ob ein Eintrag in der Rohquelle existiert,
// auch wenn der Hardware-Filter ihn versteckt
func (c *Catalog) ExistsUnfiltered(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[name]
	return ok
}

// FilterReason gibt die Begruendung des Hardware-Filters zurueck;
// leer wenn der Eintrag unterstuetzt oder unbekannt ist
func (c *Catalog) FilterReason(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reasons[name]
}

// Refresh loest Pfade und Downloaded-Status aller Eintraege neu auf
func (c *Catalog) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshLocked()
}

// MarkDownloaded aktualisiert einen Eintrag nach erfolgreichem Download
func (c *Catalog) MarkDownloaded(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[name]
	if !ok {
		return
	}
	resolveEntry(&entry)
	if entry.Recipe == api.RecipeFLM {
		entry.Downloaded = true
		c.flmInstalled[entry.MainCheckpoint()] = true
	}
	c.entries[name] = entry
}

// RefreshFLM uebernimmt die Liste der von der FLM-Engine installierten
// Checkpoints und aktualisiert den Downloaded-Status der FLM-Eintraege
func (c *Catalog) RefreshFLM(installed []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.flmInstalled = make(map[string]bool, len(installed))
	for _, checkpoint := range installed {
		c.flmInstalled[checkpoint] = true
	}
	for name, entry := range c.entries {
		if entry.Recipe != api.RecipeFLM {
			continue
		}
		entry.Downloaded = c.flmInstalled[entry.MainCheckpoint()]
		c.entries[name] = entry
	}
}

// SaveOptions persistiert Recipe-Optionen fuer ein Model und wendet
// sie sofort auf den Cache an
func (c *Catalog) SaveOptions(name string, opts api.RecipeOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[name]
	if !ok {
		return api.ErrModelNotFound(name)
	}

	sanitized := opts.Sanitize(entry.Recipe)
	c.savedOptions[name] = sanitized
	entry.RecipeOptions = sanitized.Merge(entry.RecipeOptions).Sanitize(entry.Recipe)
	c.entries[name] = entry

	if err := saveRecipeOptions(c.optionsPath, c.savedOptions); err != nil {
		return fmt.Errorf("persisting recipe options: %w", err)
	}
	return nil
}
