// local.go - Aufloesung lokal hochgeladener Model-Verzeichnisse
//
// Ein local_upload-Eintrag referenziert ein Verzeichnis unterhalb des
// Cache-Roots. Pfade im Katalog sind relativ zum Cache-Root, damit der
// Cache als Ganzes verschoben werden kann.
package huggingface

import (
	"fmt"
	"os"
	"path/filepath"
)

// LocalImport ist das Ergebnis einer local_upload-Aufloesung
type LocalImport struct {
	// MainRel ist der Pfad der Haupt-GGUF-Datei, relativ zum Cache-Root
	MainRel string

	// MMProjRel ist der Pfad einer mmproj-Datei, leer wenn keine existiert
	MMProjRel string
}

// ResolveLocalImport sucht die Haupt-GGUF-Datei (lexikographisch
// kleinste Nicht-mmproj-Datei) und eine optionale mmproj-Datei in
// einem hochgeladenen Verzeichnis
func ResolveLocalImport(dir string) (*LocalImport, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("upload directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("upload path %s is not a directory", dir)
	}

	var files []string
	err = filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			if rel, err := filepath.Rel(dir, p); err == nil {
				files = append(files, filepath.ToSlash(rel))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ggufs := FilterGGUF(files)
	if len(ggufs) == 0 {
		return nil, fmt.Errorf("no gguf files in upload directory %s", dir)
	}

	cacheRoot := GetCacheDir()
	mainRel, err := filepath.Rel(cacheRoot, filepath.Join(dir, filepath.FromSlash(ggufs[0])))
	if err != nil {
		return nil, fmt.Errorf("upload directory must live under the cache root: %w", err)
	}

	out := &LocalImport{MainRel: filepath.ToSlash(mainRel)}
	if mmproj, ok := FindMMProj(files); ok {
		rel, err := filepath.Rel(cacheRoot, filepath.Join(dir, filepath.FromSlash(mmproj)))
		if err == nil {
			out.MMProjRel = filepath.ToSlash(rel)
		}
	}
	return out, nil
}
