// routes_models.go - Model-Management-Endpoints
//
// Diese Datei enthaelt:
// - GET /models und GET /models/:id im OpenAI-Listenformat
// - POST /pull mit SSE-Fortschritt und user.-Registrierung
// - POST /load, /unload, /delete
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lemonade-sdk/lemonade/api"
)

// toOpenAIModel baut die Listen-Sicht eines Katalog-Eintrags
func toOpenAIModel(entry api.ModelEntry) api.OpenAIModel {
	return api.OpenAIModel{
		ID:            entry.Name,
		Object:        "model",
		OwnedBy:       "lemonade",
		Checkpoint:    entry.MainCheckpoint(),
		Recipe:        entry.Recipe,
		Downloaded:    entry.Downloaded,
		Suggested:     entry.Suggested,
		Labels:        entry.Labels,
		RecipeOptions: entry.RecipeOptions,
		Size:          entry.SizeGB,
		ImageDefaults: entry.ImageDefaults,
	}
}

func (s *Server) handleListModels(c *gin.Context) {
	showAll := c.Query("show_all") == "true"
	s.catalog.Refresh()

	entries := s.catalog.List(showAll)
	list := api.ModelList{Object: "list", Data: make([]api.OpenAIModel, 0, len(entries))}
	for _, entry := range entries {
		list.Data = append(list.Data, toOpenAIModel(entry))
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleShowModel(c *gin.Context) {
	entry, err := s.catalog.Get(c.Param("id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOpenAIModel(entry))
}

func (s *Server) handlePull(c *gin.Context) {
	var req api.PullRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, api.ErrInvalidRequest("malformed request body: %v", err))
		return
	}
	if req.Model == "" {
		abortError(c, api.ErrInvalidRequest("missing required field: model"))
		return
	}

	// Neue user.-Eintraege werden im selben Aufruf registriert; die
	// Rohquelle zaehlt, sonst wuerde ein gefilterter Eintrag doppelt
	// registriert
	if strings.HasPrefix(req.Model, api.UserPrefix) && !s.catalog.ExistsUnfiltered(req.Model) {
		if _, err := s.catalog.Register(req); err != nil {
			abortError(c, err)
			return
		}
	}

	entry, err := s.catalog.Get(req.Model)
	if err != nil {
		abortError(c, err)
		return
	}

	// Lokale Quellen haben nichts herunterzuladen
	if entry.Source == api.SourceLocalUpload || entry.Source == api.SourceLocalPath {
		c.JSON(http.StatusOK, gin.H{"status": "complete", "model": entry.Name})
		return
	}

	if !req.Stream {
		if err := s.store.Download(c.Request.Context(), entry, false, nil); err != nil {
			abortError(c, err)
			return
		}
		s.catalog.MarkDownloaded(entry.Name)
		c.JSON(http.StatusOK, gin.H{"status": "complete", "model": entry.Name})
		return
	}

	// SSE-Fortschritt: progress-Events, abschliessend complete oder error
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	emit := func(p api.PullProgress) error {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err // Client weg, Download abbrechen
		}
		c.Writer.Flush()
		return nil
	}

	if err := s.store.Download(c.Request.Context(), entry, false, emit); err != nil {
		emit(api.PullProgress{Status: "error", Model: entry.Name, Error: err.Error()})
		return
	}
	s.catalog.MarkDownloaded(entry.Name)
}

func (s *Server) handleLoad(c *gin.Context) {
	var req api.LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, api.ErrInvalidRequest("malformed request body: %v", err))
		return
	}
	if req.Model == "" {
		abortError(c, api.ErrInvalidRequest("missing required field: model"))
		return
	}

	if req.SaveOptions && len(req.RecipeOptions) > 0 {
		if err := s.catalog.SaveOptions(req.Model, req.RecipeOptions); err != nil {
			abortError(c, err)
			return
		}
	}

	entry, err := s.catalog.Get(req.Model)
	if err != nil {
		abortError(c, err)
		return
	}
	if !entry.Downloaded {
		if entry.Recipe == api.RecipeFLM {
			abortError(c, api.ErrModelLoadError(req.Model, api.ErrDownloadIncomplete))
			return
		}
		if err := s.store.Download(c.Request.Context(), entry, true, nil); err != nil {
			abortError(c, err)
			return
		}
		s.catalog.MarkDownloaded(req.Model)
	}

	if _, err := s.sched.EnsureLoaded(c.Request.Context(), req.Model, req.RecipeOptions); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "loaded", "model": req.Model})
}

func (s *Server) handleUnload(c *gin.Context) {
	var req api.UnloadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortError(c, api.ErrInvalidRequest("malformed request body: %v", err))
			return
		}
	}

	if req.Model == "" {
		s.sched.UnloadAll(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"status": "unloaded", "model": "all"})
		return
	}
	if err := s.sched.Unload(c.Request.Context(), req.Model); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unloaded", "model": req.Model})
}

func (s *Server) handleDelete(c *gin.Context) {
	var req api.DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, api.ErrInvalidRequest("malformed request body: %v", err))
		return
	}
	if req.Model == "" {
		abortError(c, api.ErrInvalidRequest("missing required field: model"))
		return
	}

	// Residente Models vor dem Loeschen entladen; nicht resident ist
	// beim Loeschen kein Fehler
	_ = s.sched.Unload(c.Request.Context(), req.Model)

	if err := s.catalog.Remove(req.Model); err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Code == api.CodeModelNotFound {
			// Loeschen ohne Bestand ist eine Validierungsfrage
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, api.ErrorResponse{Error: apiErr})
			return
		}
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "model": req.Model})
}
