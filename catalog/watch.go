// watch.go - Verzeichnis-Watcher fuer das Extra-Models-Verzeichnis
//
// Aenderungen im Extra-Verzeichnis stossen einen entprellten Rescan an,
// damit neue GGUF-Dateien ohne Neustart im Katalog erscheinen.
package catalog

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lemonade-sdk/lemonade/envconfig"
)

// rescanDebounce buendelt Event-Stuerme beim Kopieren grosser Dateien
const rescanDebounce = 2 * time.Second

// Watch beobachtet das Extra-Models-Verzeichnis bis der Context endet.
// Ohne konfiguriertes Verzeichnis kehrt Watch sofort zurueck.
func (c *Catalog) Watch(ctx context.Context) error {
	dir := envconfig.ExtraModelsDir()
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}
	slog.Info("watching extra models directory", "dir", dir)

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(rescanDebounce)
				timerC = timer.C
			} else {
				timer.Reset(rescanDebounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			slog.Debug("extra models directory changed, rescanning")
			c.RescanExtras()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("extra models watcher error", "error", err)
		}
	}
}
