// sched_route.go - Faehigkeits-Dispatch auf residente Instanzen
//
// Ob eine Instanz eine Operation beherrscht, entscheidet ein
// Type-Assert auf das jeweilige Faehigkeits-Interface. Fehlt es,
// antwortet das Gateway selbst mit unsupported_operation.
package server

import (
	"net/http"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/engines"
)

// operation benennt die Inferenz-Operationen des Gateways
type operation string

const (
	opChatCompletions operation = "chat.completions"
	opCompletions     operation = "completions"
	opResponses       operation = "responses"
	opEmbeddings      operation = "embeddings"
	opRerank          operation = "reranking"
	opSpeech          operation = "audio.speech"
	opTranscriptions  operation = "audio.transcriptions"
	opGenerations     operation = "images.generations"
)

// dispatch leitet eine Operation an die Engine einer busy-markierten
// Instanz weiter
func dispatch(inst *instance, op operation, w http.ResponseWriter, r *http.Request, body []byte) error {
	e := inst.engine

	switch op {
	case opChatCompletions:
		if c, ok := e.(engines.ChatCompleter); ok {
			return c.ChatCompletions(w, r, body)
		}
	case opCompletions:
		if c, ok := e.(engines.Completer); ok {
			return c.Completions(w, r, body)
		}
	case opResponses:
		if c, ok := e.(engines.Responder); ok {
			return c.Responses(w, r, body)
		}
	case opEmbeddings:
		if c, ok := e.(engines.Embedder); ok {
			return c.Embeddings(w, r, body)
		}
	case opRerank:
		if c, ok := e.(engines.Reranker); ok {
			return c.Rerank(w, r, body)
		}
	case opSpeech:
		if c, ok := e.(engines.Speaker); ok {
			return c.Speech(w, r, body)
		}
	case opTranscriptions:
		if c, ok := e.(engines.Transcriber); ok {
			return c.Transcriptions(w, r)
		}
	case opGenerations:
		if c, ok := e.(engines.ImageGenerator); ok {
			return c.Generations(w, r, body)
		}
	}
	return api.ErrUnsupportedOperation(string(op), inst.entry.Device)
}
