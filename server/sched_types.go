// sched_types.go - Datentypen des Model-Schedulers
//
// Diese Datei enthaelt:
// - instance: ein residentes Model mit Busy-Zaehler
// - Scheduler: Verwaltung aller residenten Models hinter einem Mutex
// - LoadedModel: Telemetrie-Sicht einer Instanz
package server

import (
	"sync"
	"time"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/catalog"
	"github.com/lemonade-sdk/lemonade/engines"
	"github.com/lemonade-sdk/lemonade/envconfig"
	"github.com/lemonade-sdk/lemonade/huggingface"
)

// instance ist ein residentes Model. Der Busy-Zaehler schuetzt laufende
// Inferenz vor Eviction: busy impliziert nicht-entfernt.
type instance struct {
	entry   api.ModelEntry
	engine  engines.Engine
	options api.RecipeOptions

	loadedAt time.Time
	lastUsed time.Time // unter busyMu

	busyMu   sync.Mutex
	busyCond *sync.Cond
	refCount int
}

func newInstance(entry api.ModelEntry, engine engines.Engine, options api.RecipeOptions) *instance {
	inst := &instance{
		entry:    entry,
		engine:   engine,
		options:  options,
		loadedAt: time.Now(),
		lastUsed: time.Now(),
	}
	inst.busyCond = sync.NewCond(&inst.busyMu)
	return inst
}

// acquire markiert die Instanz als busy
func (i *instance) acquire() {
	i.busyMu.Lock()
	i.refCount++
	i.busyMu.Unlock()
}

// release gibt die Instanz frei und weckt wartende Evictors. Der
// Abschluss der Inferenz zaehlt als Zugriff fuer die LRU-Reihenfolge.
func (i *instance) release() {
	i.busyMu.Lock()
	i.lastUsed = time.Now()
	i.refCount--
	if i.refCount == 0 {
		i.busyCond.Broadcast()
	}
	i.busyMu.Unlock()
}

// touch aktualisiert den letzten Zugriff
func (i *instance) touch() {
	i.busyMu.Lock()
	i.lastUsed = time.Now()
	i.busyMu.Unlock()
}

// lastAccess liest den letzten Zugriff
func (i *instance) lastAccess() time.Time {
	i.busyMu.Lock()
	defer i.busyMu.Unlock()
	return i.lastUsed
}

// waitIdle blockiert bis keine Inferenz mehr laeuft. Der Aufrufer darf
// den Scheduler-Mutex dabei nicht halten: Inferenz ist unbegrenzt, und
// andere Scheduler-Operationen muessen weiterlaufen koennen.
func (i *instance) waitIdle() {
	i.busyMu.Lock()
	for i.refCount > 0 {
		i.busyCond.Wait()
	}
	i.busyMu.Unlock()
}

// LoadedModel ist die Telemetrie-Sicht einer residenten Instanz
type LoadedModel = api.LoadedModel

// Scheduler verwaltet die residenten Models. Genau ein Load laeuft
// gleichzeitig; das loading-Flag serialisiert Admissions, waehrend
// Inferenz auf bereits geladenen Models parallel weiterlaeuft.
type Scheduler struct {
	mu   sync.Mutex
	cond *sync.Cond

	// loading ist gesetzt solange eine Admission laeuft
	loading bool

	// instances sind die residenten Models nach Katalog-Name
	instances map[string]*instance

	catalog *catalog.Catalog
	store   *huggingface.Store

	// newEngine baut den Adapter; im Test austauschbar
	newEngine func(api.ModelEntry, api.RecipeOptions) (engines.Engine, error)

	// maxLoaded liefert das Slot-Limit pro Model-Typ; im Test austauschbar
	maxLoaded func(typ string) int
}

// NewScheduler erstellt den Scheduler
func NewScheduler(cat *catalog.Catalog, store *huggingface.Store) *Scheduler {
	s := &Scheduler{
		instances: make(map[string]*instance),
		catalog:   cat,
		store:     store,
		newEngine: engines.New,
		maxLoaded: envconfig.MaxLoadedModels,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}
