// engine.go - Engine-Abstraktion und Faehigkeits-Interfaces
//
// Diese Datei enthaelt:
// - Engine: Lebenszyklus eines Engine-Subprozesses
// - die Faehigkeits-Interfaces pro Operation; ob eine geladene Engine
//   eine Operation beherrscht, entscheidet ein Type-Assert
// - New: Adapter-Fabrik nach Recipe
package engines

import (
	"context"
	"net/http"

	"github.com/lemonade-sdk/lemonade/api"
)

// Engine ist ein laufender oder startbarer Engine-Subprozess fuer
// genau ein Model
type Engine interface {
	// Model gibt den Katalog-Namen des bedienten Models zurueck
	Model() string

	// Recipe gibt die Engine-Familie zurueck
	Recipe() api.Recipe

	// Load startet den Subprozess und wartet bis er Anfragen annimmt
	Load(ctx context.Context) error

	// Unload beendet den Subprozess. Idempotent.
	Unload(ctx context.Context) error

	// Ping prueft ob der Subprozess noch antwortet
	Ping(ctx context.Context) error
}

// Die Faehigkeits-Interfaces. Jede Methode leitet die Anfrage an den
// Subprozess weiter; body ist der bereits gelesene Request-Body.
type (
	ChatCompleter interface {
		ChatCompletions(w http.ResponseWriter, r *http.Request, body []byte) error
	}
	Completer interface {
		Completions(w http.ResponseWriter, r *http.Request, body []byte) error
	}
	Responder interface {
		Responses(w http.ResponseWriter, r *http.Request, body []byte) error
	}
	Embedder interface {
		Embeddings(w http.ResponseWriter, r *http.Request, body []byte) error
	}
	Reranker interface {
		Rerank(w http.ResponseWriter, r *http.Request, body []byte) error
	}
	Transcriber interface {
		// Transcriptions erhaelt den multipart-Request unveraendert
		Transcriptions(w http.ResponseWriter, r *http.Request) error
	}
	Speaker interface {
		Speech(w http.ResponseWriter, r *http.Request, body []byte) error
	}
	ImageGenerator interface {
		Generations(w http.ResponseWriter, r *http.Request, body []byte) error
	}
)

// New baut den Adapter fuer einen Katalog-Eintrag. options sind die
// bereits zusammengefuehrten Recipe-Optionen (Request vor Katalog).
func New(entry api.ModelEntry, options api.RecipeOptions) (Engine, error) {
	switch entry.Recipe {
	case api.RecipeLlamaCPP:
		return newLlamaCPP(entry, options)
	case api.RecipeRyzenAILLM:
		return newRyzenAI(entry, options)
	case api.RecipeFLM:
		return newFLM(entry, options)
	case api.RecipeWhisperCPP:
		return newWhisperCPP(entry, options)
	case api.RecipeKokoro:
		return newKokoro(entry, options)
	case api.RecipeSDCPP:
		return newSDCPP(entry, options)
	default:
		return nil, api.ErrInvalidRequest("no engine adapter for recipe %q", entry.Recipe)
	}
}
