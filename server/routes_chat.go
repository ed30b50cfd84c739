// routes_chat.go - Inferenz-Endpoints mit Auto-Load
//
// Diese Datei enthaelt:
// - inferenceHandler: Model-Feld lesen, Model beschaffen und laden,
//   Operation busy-geklammert an die Engine geben
// - die Auto-Load-Strecke: fehlende Downloads werden ohne Upgrade
//   bestehender Snapshots nachgeholt
package server

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/lemonade-sdk/lemonade/api"
)

// maxInferenceBody begrenzt JSON-Inferenz-Bodies (Bilder kommen base64)
const maxInferenceBody = 512 << 20

func (s *Server) inferenceHandler(op operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInferenceBody))
		if err != nil {
			abortError(c, api.ErrInvalidRequest("reading request body: %v", err))
			return
		}

		var probe struct {
			Model string `json:"model"`
		}
		if err := json.Unmarshal(body, &probe); err != nil {
			abortError(c, api.ErrInvalidRequest("malformed request body: %v", err))
			return
		}
		if probe.Model == "" {
			abortError(c, api.ErrInvalidRequest("missing required field: model"))
			return
		}

		inst, err := s.acquireForInference(c, probe.Model, opRequiredType(op))
		if err != nil {
			abortError(c, err)
			return
		}
		defer inst.release()

		if err := dispatch(inst, op, c.Writer, c.Request, body); err != nil {
			// Nach begonnenem Stream ist keine Envelope mehr moeglich
			if c.Writer.Written() {
				slog.Warn("inference failed mid-stream", "model", probe.Model,
					"operation", op, "error", err)
				return
			}
			abortError(c, err)
		}
	}
}

// handleTranscriptions liest das Model aus dem multipart-Formular
func (s *Server) handleTranscriptions(c *gin.Context) {
	model := c.Request.FormValue("model")
	if model == "" {
		abortError(c, api.ErrInvalidRequest("missing required field: model"))
		return
	}

	inst, err := s.acquireForInference(c, model, opRequiredType(opTranscriptions))
	if err != nil {
		abortError(c, err)
		return
	}
	defer inst.release()

	if err := dispatch(inst, opTranscriptions, c.Writer, c.Request, nil); err != nil {
		if !c.Writer.Written() {
			abortError(c, err)
		}
	}
}

// opRequiredType nennt den Model-Typ, den eine Operation zwingend
// voraussetzt; leer bedeutet: nur die Faehigkeits-Interfaces zaehlen
func opRequiredType(op operation) api.ModelType {
	switch op {
	case opChatCompletions, opCompletions, opResponses:
		return api.ModelTypeLLM
	case opEmbeddings:
		return api.ModelTypeEmbedding
	case opRerank:
		return api.ModelTypeReranking
	case opTranscriptions:
		return api.ModelTypeAudio
	case opGenerations:
		return api.ModelTypeImage
	}
	return ""
}

// acquireForInference beschafft ein busy-markiertes, residentes Model.
// Fehlt der Download, wird er nachgeholt; bestehende Snapshots werden
// dabei nie auf eine neuere Revision gehoben.
func (s *Server) acquireForInference(c *gin.Context, model string, want api.ModelType) (*instance, error) {
	entry, err := s.catalog.Get(model)
	if err != nil {
		return nil, err
	}
	if want != "" && entry.Type != want {
		return nil, api.ErrInvalidRequest(
			"model %s has type %s, this endpoint requires a %s model", model, entry.Type, want)
	}

	if _, loaded := s.sched.GetLoadedModel(model); !loaded {
		if !entry.Downloaded {
			if entry.Recipe == api.RecipeFLM {
				return nil, api.ErrModelLoadError(model, api.ErrDownloadIncomplete)
			}
			slog.Info("model not downloaded, pulling before load", "model", model)
			if err := s.store.Download(c.Request.Context(), entry, true, nil); err != nil {
				return nil, err
			}
			s.catalog.MarkDownloaded(model)
		}
	}
	return s.sched.Acquire(c.Request.Context(), model, nil)
}
