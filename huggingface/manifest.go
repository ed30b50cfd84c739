// manifest.go - Download-Manifest fuer Multi-File-Downloads
//
// Das Manifest wird vor dem ersten Transfer in das Snapshot-Root
// geschrieben und erst nach erfolgreicher Validierung geloescht.
// Seine Existenz bedeutet: das Model ist nicht vollstaendig.
package huggingface

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lemonade-sdk/lemonade/api"
)

// ManifestFile ist eine erwartete Datei des Downloads
type ManifestFile struct {
	Path string `json:"path"`
	URL  string `json:"url"`
	Size int64  `json:"size,omitempty"`
}

// Manifest listet die erwarteten Dateien eines Downloads
type Manifest struct {
	Model    string         `json:"model"`
	Revision string         `json:"revision"`
	Files    []ManifestFile `json:"files"`
}

// WriteManifest schreibt das Manifest in das Snapshot-Root
func WriteManifest(snapshotDir string, m *Manifest) error {
	if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(snapshotDir, ManifestName), data, 0o644)
}

// ReadManifest liest das Manifest; nil wenn keines existiert
func ReadManifest(snapshotDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(snapshotDir, ManifestName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteManifest entfernt das Manifest nach erfolgreicher Validierung
func DeleteManifest(snapshotDir string) error {
	err := os.Remove(filepath.Join(snapshotDir, ManifestName))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Validate prueft den Download gegen das Manifest: jede Datei existiert,
// kein .partial-Rest liegt daneben und deklarierte Groessen stimmen.
func (m *Manifest) Validate(snapshotDir string) error {
	for _, f := range m.Files {
		dest := filepath.Join(snapshotDir, filepath.FromSlash(f.Path))

		info, err := os.Stat(dest)
		if err != nil {
			return fmt.Errorf("%w: missing file %s", api.ErrDownloadIncomplete, f.Path)
		}
		if _, err := os.Stat(dest + PartialSuffix); err == nil {
			return fmt.Errorf("%w: partial file remains for %s", api.ErrDownloadIncomplete, f.Path)
		}
		if f.Size > 0 && info.Size() != f.Size {
			return fmt.Errorf("%w: size mismatch for %s: got %d, want %d",
				api.ErrDownloadIncomplete, f.Path, info.Size(), f.Size)
		}
	}

	// Reste frueherer Transfers im Snapshot-Root zaehlen ebenfalls
	entries, err := os.ReadDir(snapshotDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), PartialSuffix) {
			return fmt.Errorf("%w: stray partial file %s", api.ErrDownloadIncomplete, entry.Name())
		}
	}
	return nil
}
