// user.go - Registrierung und Entfernung von Nutzer-Models
//
// Nutzer-Models tragen den Praefix "user." und leben in
// user_models.json. Ein local_import registriert ein bereits
// hochgeladenes Verzeichnis unterhalb des Cache-Roots.
package catalog

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/discover"
	"github.com/lemonade-sdk/lemonade/huggingface"
)

// Register legt ein Nutzer-Model an. Der Name muss den Praefix "user."
// tragen und darf keinen bestehenden Eintrag ueberdecken.
func (c *Catalog) Register(req api.PullRequest) (api.ModelEntry, error) {
	name := strings.TrimSpace(req.Model)
	if !strings.HasPrefix(name, api.UserPrefix) {
		return api.ModelEntry{}, api.ErrInvalidRequest(
			"user model names must start with %q, got %q", api.UserPrefix, name)
	}
	recipe, err := api.ParseRecipe(string(req.Recipe))
	if err != nil {
		return api.ModelEntry{}, api.ErrInvalidRequest("%v", err)
	}
	if req.Checkpoint == "" {
		return api.ModelEntry{}, api.ErrInvalidRequest("checkpoint is required to register %q", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[name]; exists {
		return api.ModelEntry{}, api.ErrInvalidRequest("model %q is already registered", name)
	}

	entry := api.ModelEntry{
		Name:        name,
		Recipe:      recipe,
		Device:      recipe.DeviceClass(),
		Labels:      slices.Clone(req.Labels),
		Checkpoints: map[string]string{api.CheckpointMain: req.Checkpoint},
	}
	if req.MMProj != "" {
		entry.Checkpoints[api.CheckpointMMProj] = req.MMProj
		if !slices.Contains(entry.Labels, api.LabelVision) {
			entry.Labels = append(entry.Labels, api.LabelVision)
		}
	}

	if req.LocalImport {
		imported, err := huggingface.ResolveLocalImport(req.Checkpoint)
		if err != nil {
			return api.ModelEntry{}, api.ErrInvalidRequest("local import failed: %v", err)
		}
		entry.Source = api.SourceLocalUpload
		entry.Checkpoints[api.CheckpointMain] = imported.MainRel
		if imported.MMProjRel != "" {
			entry.Checkpoints[api.CheckpointMMProj] = imported.MMProjRel
			if !slices.Contains(entry.Labels, api.LabelVision) {
				entry.Labels = append(entry.Labels, api.LabelVision)
			}
		}
	} else if api.IsLocalCheckpoint(req.Checkpoint) {
		entry.Source = api.SourceLocalPath
	}

	entry.Type = api.TypeFromLabels(entry.Labels)

	resolveEntry(&entry)
	c.entries[name] = entry
	if ok, reason := discover.Supported(c.hw, entry); !ok {
		c.reasons[name] = reason
	}

	if err := c.saveUserLocked(); err != nil {
		delete(c.entries, name)
		delete(c.reasons, name)
		return api.ModelEntry{}, err
	}

	slog.Info("registered user model", "model", name, "recipe", recipe, "source", entry.Source)
	return entry.Clone(), nil
}

// Remove loescht die Cache-Dateien eines Models und, bei Nutzer-Models,
// den Katalog-Eintrag selbst
func (c *Catalog) Remove(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[name]
	if !ok {
		return api.ErrModelNotFound(name)
	}

	// Heruntergeladene Artefakte entfernen; lokale Pfade und
	// FLM-Bestaende gehoeren nicht dem Gateway
	if entry.Source != api.SourceLocalPath && entry.Recipe != api.RecipeFLM {
		for _, ref := range entry.Checkpoints {
			if api.IsLocalCheckpoint(ref) || entry.Source == api.SourceLocalUpload {
				continue
			}
			repoID, _ := api.SplitCheckpoint(ref)
			if err := huggingface.RemoveModel(repoID); err != nil {
				return fmt.Errorf("removing cached files of %s: %w", name, err)
			}
		}
	}

	if strings.HasPrefix(name, api.UserPrefix) {
		delete(c.entries, name)
		delete(c.reasons, name)
		delete(c.savedOptions, name)
		if err := c.saveUserLocked(); err != nil {
			return err
		}
	} else {
		resolveEntry(&entry)
		entry.Downloaded = false
		c.entries[name] = entry
	}

	slog.Info("removed model", "model", name)
	return nil
}

// saveUserLocked persistiert alle user.-Eintraege. Aufrufer haelt c.mu.
func (c *Catalog) saveUserLocked() error {
	users := make(map[string]api.ModelEntry)
	for name, entry := range c.entries {
		if strings.HasPrefix(name, api.UserPrefix) {
			users[name] = entry
		}
	}
	if err := saveUserModels(c.userPath, users); err != nil {
		return fmt.Errorf("persisting user models: %w", err)
	}
	return nil
}
