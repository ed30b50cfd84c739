// sched_load.go - Admission, Eviction und Nuclear-Retry
//
// Diese Datei enthaelt:
// - EnsureLoaded: der serialisierte Lade-Pfad mit NPU-Exklusivitaet,
//   Slot-Limits pro Typ und LRU-Eviction innerhalb des Typs
// - den Nuclear-Retry: bei generischem Lade-Fehler alles entladen und
//   genau einmal erneut versuchen
// - Unload/UnloadAll und die Telemetrie-Getter
package server

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/lemonade-sdk/lemonade/api"
)

// EnsureLoaded macht ein Model resident und gibt seine Instanz zurueck.
// Laeuft bereits eine Admission, wartet der Aufrufer bis sie fertig
// ist; Inferenz auf residenten Models ist davon nicht betroffen.
func (s *Scheduler) EnsureLoaded(ctx context.Context, name string, reqOptions api.RecipeOptions) (*instance, error) {
	return s.ensure(ctx, name, reqOptions, false)
}

// Acquire macht ein Model resident und markiert es busy, bevor der
// Scheduler-Mutex faellt. Der Aufrufer muss release() aufrufen.
// Busy wird nur unter dem Scheduler-Mutex gesetzt; dadurch kann eine
// Eviction nie mit startender Inferenz wettlaufen.
func (s *Scheduler) Acquire(ctx context.Context, name string, reqOptions api.RecipeOptions) (*instance, error) {
	return s.ensure(ctx, name, reqOptions, true)
}

func (s *Scheduler) ensure(ctx context.Context, name string, reqOptions api.RecipeOptions, acquire bool) (*instance, error) {
	s.mu.Lock()
	for {
		if inst, ok := s.instances[name]; ok {
			inst.touch()
			if acquire {
				inst.acquire()
			}
			s.mu.Unlock()
			return inst, nil
		}
		// Nur fehlende Models reihen sich hinter der laufenden
		// Admission ein; residente Models antworten sofort
		if !s.loading {
			break
		}
		s.cond.Wait()
	}
	s.loading = true
	s.mu.Unlock()

	inst, err := s.admit(ctx, name, reqOptions)

	s.mu.Lock()
	s.loading = false
	if inst != nil {
		s.instances[name] = inst
		if acquire {
			inst.acquire()
		}
	}
	s.cond.Broadcast()
	s.mu.Unlock()

	return inst, err
}

// admit laedt ein Model. Aufrufer hat das loading-Flag gesetzt; kein
// weiterer Load kann parallel laufen.
func (s *Scheduler) admit(ctx context.Context, name string, reqOptions api.RecipeOptions) (*instance, error) {
	entry, err := s.catalog.Get(name)
	if err != nil {
		return nil, err
	}
	if !entry.Downloaded {
		return nil, api.ErrModelLoadError(name, api.ErrDownloadIncomplete)
	}

	// Request-Optionen gewinnen ueber Katalog-Optionen
	options := reqOptions.Sanitize(entry.Recipe).Merge(entry.RecipeOptions)

	s.makeRoom(ctx, entry)

	inst, err := s.loadOnce(ctx, entry, options)
	if err == nil {
		return inst, nil
	}

	// Nicht reparierbare Fehler nie wiederholen: fehlende Dateien und
	// invalidierte Models werden durch einen Retry nicht besser
	if api.IsFileNotFound(err) || api.IsModelInvalidated(err) {
		return nil, err
	}

	// Nuclear-Retry: alles entladen, einmal erneut versuchen
	slog.Warn("model load failed, unloading everything and retrying once",
		"model", name, "error", err)
	s.evictAll(ctx)
	inst, retryErr := s.loadOnce(ctx, entry, options)
	if retryErr != nil {
		return nil, retryErr
	}
	return inst, nil
}

func (s *Scheduler) loadOnce(ctx context.Context, entry api.ModelEntry, options api.RecipeOptions) (*instance, error) {
	engine, err := s.newEngine(entry, options)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	if err := engine.Load(ctx); err != nil {
		return nil, err
	}
	slog.Info("model loaded", "model", entry.Name, "recipe", entry.Recipe,
		"duration", time.Since(start))
	return newInstance(entry, engine, options), nil
}

// makeRoom erzwingt NPU-Exklusivitaet und die Slot-Limits pro Typ,
// bevor ein neues Model geladen wird
func (s *Scheduler) makeRoom(ctx context.Context, entry api.ModelEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Die NPU gehoert immer genau einem Model: ein NPU-Neuzugang
	// verdraengt jeden NPU-Residenten, unabhaengig vom Typ
	if entry.Device.HasNPU() {
		var residents []*instance
		for _, inst := range s.instances {
			if inst.entry.Device.HasNPU() {
				residents = append(residents, inst)
			}
		}
		for _, inst := range residents {
			slog.Info("evicting NPU resident for new NPU model",
				"evicted", inst.entry.Name, "incoming", entry.Name)
			s.evict(ctx, inst)
		}
	}

	limit := s.maxLoaded(string(entry.Type))
	if limit < 0 {
		return
	}

	// LRU innerhalb des Typs, bis ein Slot frei ist
	for {
		var sameType []*instance
		for _, inst := range s.instances {
			if inst.entry.Type == entry.Type {
				sameType = append(sameType, inst)
			}
		}
		if len(sameType) == 0 || len(sameType) < limit {
			return
		}
		sort.Slice(sameType, func(i, j int) bool {
			return sameType[i].lastAccess().Before(sameType[j].lastAccess())
		})
		victim := sameType[0]
		slog.Info("evicting least recently used model",
			"evicted", victim.entry.Name, "type", entry.Type, "incoming", entry.Name)
		s.evict(ctx, victim)
	}
}

// evict nimmt die Instanz aus der Map und entlaedt sie, sobald keine
// Inferenz mehr laeuft. Aufrufer haelt s.mu; fuer das Busy-Warten und
// den Engine-Stopp wird der Mutex freigegeben, damit andere
// Scheduler-Operationen nicht hinter einer busy Instanz haengen.
// Laufende Inferenz behaelt ihre Referenz, Neuzugriffe finden die
// Instanz nicht mehr.
func (s *Scheduler) evict(ctx context.Context, inst *instance) {
	if cur, ok := s.instances[inst.entry.Name]; !ok || cur != inst {
		return // eine andere Eviction war schneller
	}
	delete(s.instances, inst.entry.Name)

	s.mu.Unlock()
	inst.waitIdle()
	if err := inst.engine.Unload(ctx); err != nil {
		slog.Warn("engine unload failed", "model", inst.entry.Name, "error", err)
	}
	s.mu.Lock()
}

// evictAll entlaedt alle residenten Models
func (s *Scheduler) evictAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.instances) > 0 {
		for _, inst := range s.instances {
			s.evict(ctx, inst)
			break // evict gibt s.mu frei, Map neu lesen
		}
	}
}

// Unload entlaedt ein Model. Nicht residente Models melden
// model_not_loaded; UnloadAll bleibt davon unberuehrt.
func (s *Scheduler) Unload(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[name]
	if !ok {
		return api.ErrModelNotLoaded(name)
	}
	s.evict(ctx, inst)
	return nil
}

// UnloadAll entlaedt alle Models. Wird beim Shutdown aufgerufen.
func (s *Scheduler) UnloadAll(ctx context.Context) {
	s.evictAll(ctx)
}

// GetLoadedModel gibt die Instanz eines residenten Models zurueck
func (s *Scheduler) GetLoadedModel(name string) (*instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[name]
	return inst, ok
}

// LoadedModels gibt die Telemetrie-Sicht aller residenten Models
// zurueck, juengst benutzte zuerst
func (s *Scheduler) LoadedModels() []LoadedModel {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LoadedModel, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, LoadedModel{
			Name:     inst.entry.Name,
			Recipe:   inst.entry.Recipe,
			Type:     inst.entry.Type,
			Device:   inst.entry.Device.String(),
			LoadedAt: inst.loadedAt,
			LastUsed: inst.lastAccess(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUsed.After(out[j].LastUsed) })
	return out
}
