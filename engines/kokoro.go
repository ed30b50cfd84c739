// kokoro.go - Adapter fuer den Kokoro-TTS-Server
//
// Speech-Antworten streamen rohes PCM bzw. kodiertes Audio; die
// Weiterleitung flusht pro Chunk, damit die Wiedergabe frueh beginnt.
package engines

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lemonade-sdk/lemonade/api"
)

type kokoro struct {
	proc
	entry   api.ModelEntry
	options api.RecipeOptions
}

func newKokoro(entry api.ModelEntry, options api.RecipeOptions) (Engine, error) {
	if entry.MainPath() == "" {
		return nil, api.ErrModelLoadError(entry.Name, fmt.Errorf("no resolved model directory"))
	}
	e := &kokoro{entry: entry, options: options}
	e.proc.model = entry.Name
	e.proc.recipe = entry.Recipe
	e.proc.healthPath = "/health"
	return e, nil
}

func (e *kokoro) Load(ctx context.Context) error {
	exe, err := EnsureInstalled(ctx, e.entry.Recipe, "")
	if err != nil {
		return api.ErrModelLoadError(e.entry.Name, err)
	}

	e.proc.exe = exe
	e.proc.args = []string{"--model-dir", e.entry.MainPath()}
	if err := e.proc.start(ctx, portFlag); err != nil {
		return api.ErrModelLoadError(e.entry.Name, err)
	}
	return nil
}

func (e *kokoro) Speech(w http.ResponseWriter, r *http.Request, body []byte) error {
	body, err := rewriteJSON(body, func(m map[string]any) {
		// Katalog-Defaults fuellen fehlende Request-Felder
		if _, ok := m["voice"]; !ok {
			if voice := e.options.String(api.OptionVoice); voice != "" {
				m["voice"] = voice
			}
		}
		if _, ok := m["speed"]; !ok {
			if speed := e.options.Float(api.OptionSpeed, 0); speed > 0 {
				m["speed"] = speed
			}
		}
	})
	if err != nil {
		return api.ErrInvalidRequest("malformed request body: %v", err)
	}
	return e.forwardJSON(w, r, "/v1/audio/speech", body)
}
