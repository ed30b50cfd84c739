// llamacpp.go - Adapter fuer den llama.cpp-Server
//
// Diese Datei enthaelt:
// - Argument-Aufbau fuer LLM-, Embedding- und Reranking-Modelle
// - Weiterleitung der OpenAI-Endpoints an den Subprozess
// - Feld-Umschreibung max_completion_tokens -> max_tokens
package engines

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/lemonade-sdk/lemonade/api"
)

// Kontext-Groessen: Default fuer LLMs, Minimum fuer Embeddings
const (
	defaultCtxSize      = 4096
	embeddingMinCtxSize = 8192
)

type llamaCPP struct {
	proc
	entry   api.ModelEntry
	options api.RecipeOptions
}

func newLlamaCPP(entry api.ModelEntry, options api.RecipeOptions) (Engine, error) {
	if entry.MainPath() == "" {
		return nil, api.ErrModelLoadError(entry.Name, fmt.Errorf("no resolved model file"))
	}
	e := &llamaCPP{entry: entry, options: options}
	e.proc.model = entry.Name
	e.proc.recipe = entry.Recipe
	e.proc.healthPath = "/health"
	return e, nil
}

func (e *llamaCPP) Load(ctx context.Context) error {
	backend := e.options.String(api.OptionBackend)
	exe, err := EnsureInstalled(ctx, e.entry.Recipe, backend)
	if err != nil {
		return api.ErrModelLoadError(e.entry.Name, err)
	}

	args := []string{
		"--jinja",
		"--no-webui",
		"-m", e.entry.MainPath(),
	}
	if mmproj := e.entry.ResolvedPaths[api.CheckpointMMProj]; mmproj != "" {
		args = append(args, "--mmproj", mmproj)
	}

	ctxSize := e.options.Int(api.OptionCtxSize, defaultCtxSize)
	switch e.entry.Type {
	case api.ModelTypeEmbedding:
		if ctxSize < embeddingMinCtxSize {
			ctxSize = embeddingMinCtxSize
		}
		args = append(args, "--embeddings")
	case api.ModelTypeReranking:
		args = append(args, "--reranking")
	}
	args = append(args, "--ctx-size", strconv.Itoa(ctxSize))

	if threads := e.options.Int(api.OptionThreads, 0); threads > 0 {
		args = append(args, "--threads", strconv.Itoa(threads))
	}

	onGPU := backend == "vulkan" || backend == "rocm" || backend == "cuda" || backend == "metal"
	if onGPU {
		layers := e.options.Int(api.OptionGPULayers, 999)
		args = append(args, "--n-gpu-layers", strconv.Itoa(layers))
		// Lange Chats sollen auf der GPU nicht am Kontextende abbrechen
		args = append(args, "--context-shift")
	} else if layers := e.options.Int(api.OptionGPULayers, -1); layers >= 0 {
		args = append(args, "--n-gpu-layers", strconv.Itoa(layers))
	}

	custom, err := customArgs(e.entry.Recipe, e.options)
	if err != nil {
		return err
	}
	args = append(args, custom...)

	e.proc.exe = exe
	e.proc.args = args
	if err := e.proc.start(ctx, portFlag); err != nil {
		return api.ErrModelLoadError(e.entry.Name, err)
	}
	return nil
}

func (e *llamaCPP) ChatCompletions(w http.ResponseWriter, r *http.Request, body []byte) error {
	body, err := rewriteJSON(body, func(m map[string]any) {
		// llama.cpp kennt nur den klassischen Feldnamen
		if v, ok := m["max_completion_tokens"]; ok {
			if _, exists := m["max_tokens"]; !exists {
				m["max_tokens"] = v
			}
			delete(m, "max_completion_tokens")
		}
	})
	if err != nil {
		return api.ErrInvalidRequest("malformed request body: %v", err)
	}
	return e.forwardJSON(w, r, "/v1/chat/completions", body)
}

func (e *llamaCPP) Completions(w http.ResponseWriter, r *http.Request, body []byte) error {
	return e.forwardJSON(w, r, "/v1/completions", body)
}

func (e *llamaCPP) Responses(w http.ResponseWriter, r *http.Request, body []byte) error {
	return e.forwardJSON(w, r, "/v1/responses", body)
}

func (e *llamaCPP) Embeddings(w http.ResponseWriter, r *http.Request, body []byte) error {
	if e.entry.Type != api.ModelTypeEmbedding {
		return api.ErrUnsupportedOperation("embeddings", e.entry.Device)
	}
	return e.forwardJSON(w, r, "/v1/embeddings", body)
}

func (e *llamaCPP) Rerank(w http.ResponseWriter, r *http.Request, body []byte) error {
	if e.entry.Type != api.ModelTypeReranking {
		return api.ErrUnsupportedOperation("reranking", e.entry.Device)
	}
	return e.forwardJSON(w, r, "/v1/rerank", body)
}

// rewriteJSON dekodiert den Body, laesst mutate auf der Map arbeiten
// und kodiert neu
func rewriteJSON(body []byte, mutate func(map[string]any)) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	mutate(m)
	return json.Marshal(m)
}
