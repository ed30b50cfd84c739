// download.go - Artifact Store: Model-Downloads mit Manifest und Resume
//
// Diese Datei enthaelt:
// - Store: oeffentliche Download-Operation des Gateways
// - Datei-Auswahl nach Checkpoint-Variante und Rollen
// - Manifest-Schreiben, sequentielle Transfers, Validierung
// - Singleflight-Dedupe gleichzeitiger Pulls desselben Models
// - Delegation an den engine-eigenen Pull des FLM-Recipes
package huggingface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/envconfig"
)

// NativePuller laedt Checkpoints ueber den Pull-Befehl einer Engine,
// die ihren Speicher selbst verwaltet (FLM)
type NativePuller interface {
	Pull(ctx context.Context, checkpoint string, fn api.ProgressFunc) error
}

// Store ist der Artifact Store des Gateways
type Store struct {
	client *Client
	native NativePuller
	group  singleflight.Group
}

// NewStore erstellt einen Store. native darf nil sein, dann schlagen
// FLM-Downloads fehl.
func NewStore(client *Client, native NativePuller) *Store {
	return &Store{client: client, native: native}
}

// downloadJob ist eine geplante Datei eines Downloads
type downloadJob struct {
	repoID   string
	revision string
	relPath  string // slash-separiert, relativ zum Snapshot-Root
	url      string
	size     int64
}

// Download laedt die Artefakte eines Katalog-Eintrags herunter.
// Gleichzeitige Aufrufe fuer denselben Namen teilen sich einen
// Transfer; nur der initiierende Aufrufer erhaelt Progress-Events.
func (s *Store) Download(ctx context.Context, entry api.ModelEntry, doNotUpgrade bool, fn api.ProgressFunc) error {
	if entry.Recipe == api.RecipeFLM {
		if s.native == nil {
			return fmt.Errorf("no native puller configured for recipe %s", entry.Recipe)
		}
		return s.native.Pull(ctx, entry.MainCheckpoint(), fn)
	}

	_, err, _ := s.group.Do(entry.Name, func() (any, error) {
		return nil, s.download(ctx, entry, doNotUpgrade, fn)
	})
	return err
}

func (s *Store) download(ctx context.Context, entry api.ModelEntry, doNotUpgrade bool, fn api.ProgressFunc) error {
	mainRef := entry.MainCheckpoint()
	if mainRef == "" {
		return api.ErrInvalidRequest("model %q has no main checkpoint", entry.Name)
	}
	if api.IsLocalCheckpoint(mainRef) {
		// Lokale Modelle haben nichts herunterzuladen
		return nil
	}
	if envconfig.Offline() {
		return api.ErrOffline
	}

	jobs, err := s.plan(ctx, entry, doNotUpgrade)
	if err != nil {
		return err
	}

	// Manifeste pro Repository schreiben, bevor Daten fliessen
	snapshotDirs, err := writeManifests(entry.Name, jobs)
	if err != nil {
		return err
	}

	var totalBytes int64
	for _, job := range jobs {
		totalBytes += job.size
	}

	var downloaded int64
	emit := func(status, file string, index int) error {
		if fn == nil {
			return nil
		}
		progress := api.PullProgress{
			Status:          status,
			Model:           entry.Name,
			File:            file,
			FileIndex:       index,
			TotalFiles:      len(jobs),
			BytesDownloaded: downloaded,
			BytesTotal:      totalBytes,
		}
		if totalBytes > 0 {
			progress.Percent = float64(downloaded) / float64(totalBytes) * 100
		}
		if err := fn(progress); err != nil {
			return fmt.Errorf("%w: %v", api.ErrCancelled, err)
		}
		return nil
	}

	for i, job := range jobs {
		dest := filepath.Join(SnapshotDir(job.repoID, job.revision), filepath.FromSlash(job.relPath))

		if info, err := os.Stat(dest); err == nil && (job.size == 0 || info.Size() == job.size) {
			// Bereits vorhanden, nur Fortschritt melden
			downloaded += info.Size()
			if err := emit("progress", job.relPath, i+1); err != nil {
				return err
			}
			continue
		}

		// Vorhandene Partial-Bytes zaehlen zum Fortschritt; der
		// Transfer setzt an dieser Stelle fort
		if info, err := os.Stat(dest + PartialSuffix); err == nil {
			downloaded += info.Size()
		}

		if err := emit("progress", job.relPath, i+1); err != nil {
			return err
		}

		slog.Info("downloading file", "model", entry.Name, "file", job.relPath,
			"index", i+1, "total", len(jobs))

		err := s.client.DownloadFile(ctx, job.url, dest, func(n int64) error {
			downloaded += n
			return emit("progress", job.relPath, i+1)
		})
		if err != nil {
			if errors.Is(err, api.ErrCancelled) || errors.Is(err, context.Canceled) {
				// Partial-Dateien bleiben fuer Resume liegen
				return fmt.Errorf("%w: %s", api.ErrCancelled, job.relPath)
			}
			return fmt.Errorf("downloading %s: %w", job.relPath, err)
		}
	}

	// Validierung pro Snapshot; erst danach faellt das Manifest
	for dir := range snapshotDirs {
		m, err := ReadManifest(dir)
		if err != nil {
			return err
		}
		if m == nil {
			continue
		}
		if err := m.Validate(dir); err != nil {
			return err
		}
		if err := DeleteManifest(dir); err != nil {
			return err
		}
	}

	downloaded = totalBytes
	return emit("complete", "", len(jobs))
}

// plan bestimmt die herunterzuladenden Dateien aller Checkpoint-Rollen
func (s *Store) plan(ctx context.Context, entry api.ModelEntry, doNotUpgrade bool) ([]downloadJob, error) {
	repoID, variant := api.SplitCheckpoint(entry.MainCheckpoint())

	info, err := s.client.RepoInfo(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("fetching metadata for %s: %w", repoID, err)
	}

	revision, err := s.pinRevision(repoID, info.SHA, doNotUpgrade)
	if err != nil {
		return nil, err
	}

	var files []string
	switch {
	case variant != "" && strings.HasSuffix(strings.ToLower(variant), ".safetensors"):
		files = []string{variant}
	case entry.Recipe == api.RecipeLlamaCPP && variant != "":
		gguf, _ := MatchGGUFVariant(FilterGGUF(info.Paths()), variant)
		if gguf == "" {
			return nil, fmt.Errorf("no gguf files in repository %s", repoID)
		}
		files = []string{gguf}
		for _, cfg := range WellKnownConfigFiles {
			if info.Has(cfg) {
				files = append(files, cfg)
			}
		}
	default:
		files = info.Paths()
	}

	var jobs []downloadJob
	for _, f := range files {
		jobs = append(jobs, downloadJob{
			repoID:   repoID,
			revision: revision,
			relPath:  f,
			url:      s.client.FileURL(repoID, revision, f),
			size:     info.SizeOf(f),
		})
	}

	// Zusaetzliche Rollen: exakt benannte Varianten-Datei aus dem
	// jeweils eigenen Repository
	for role, ref := range entry.Checkpoints {
		if role == api.CheckpointMain || role == api.CheckpointNPUCache {
			continue
		}
		if api.IsLocalCheckpoint(ref) {
			continue
		}
		roleRepo, roleFile := api.SplitCheckpoint(ref)
		if roleFile == "" {
			continue
		}
		if roleRepo == repoID {
			jobs = append(jobs, downloadJob{
				repoID:   repoID,
				revision: revision,
				relPath:  roleFile,
				url:      s.client.FileURL(repoID, revision, roleFile),
				size:     info.SizeOf(roleFile),
			})
			continue
		}
		roleInfo, err := s.client.RepoInfo(ctx, roleRepo)
		if err != nil {
			return nil, fmt.Errorf("fetching metadata for %s: %w", roleRepo, err)
		}
		roleRev, err := s.pinRevision(roleRepo, roleInfo.SHA, doNotUpgrade)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, downloadJob{
			repoID:   roleRepo,
			revision: roleRev,
			relPath:  roleFile,
			url:      s.client.FileURL(roleRepo, roleRev, roleFile),
			size:     roleInfo.SizeOf(roleFile),
		})
	}

	return jobs, nil
}

// pinRevision schreibt refs/main und gibt die zu nutzende Revision
// zurueck. Mit doNotUpgrade bleibt eine vorhandene Referenz bestehen.
func (s *Store) pinRevision(repoID, sha string, doNotUpgrade bool) (string, error) {
	revision := sha
	if revision == "" {
		revision = "main"
	}
	if doNotUpgrade {
		if ref := ReadRef(repoID); ref != "" {
			revision = ref
		}
	}
	return revision, WriteRef(repoID, revision)
}

// writeManifests schreibt pro Snapshot-Root ein Manifest und gibt die
// betroffenen Verzeichnisse zurueck
func writeManifests(model string, jobs []downloadJob) (map[string]struct{}, error) {
	manifests := make(map[string]*Manifest)
	for _, job := range jobs {
		dir := SnapshotDir(job.repoID, job.revision)
		m := manifests[dir]
		if m == nil {
			m = &Manifest{Model: model, Revision: job.revision}
			manifests[dir] = m
		}
		m.Files = append(m.Files, ManifestFile{Path: job.relPath, URL: job.url, Size: job.size})
	}

	dirs := make(map[string]struct{}, len(manifests))
	for dir, m := range manifests {
		if err := WriteManifest(dir, m); err != nil {
			return nil, err
		}
		dirs[dir] = struct{}{}
	}
	return dirs, nil
}
