// routes.go - HTTP-Server, Routing-Tabelle und Lebenszyklus
//
// Diese Datei enthaelt:
// - Server: buendelt Scheduler, Katalog, Store und Hardware-Info
// - GenerateRoutes: alle Endpoints unter den Praefix-Aliassen
//   "", /api, /v0, /v1, /api/v0, /api/v1
// - Bearer-Auth bei gesetztem LEMONADE_API_KEY
// - Serve: Start, Verzeichnis-Watcher, SIGINT/SIGTERM-Shutdown mit
//   Entladen aller Models
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/catalog"
	"github.com/lemonade-sdk/lemonade/discover"
	"github.com/lemonade-sdk/lemonade/envconfig"
	"github.com/lemonade-sdk/lemonade/huggingface"
	"github.com/lemonade-sdk/lemonade/version"
)

// routePrefixes sind die gleichwertigen Praefixe der API-Oberflaeche
var routePrefixes = []string{"", "/api", "/v0", "/v1", "/api/v0", "/api/v1"}

// Server ist das HTTP-Frontend des Gateways
type Server struct {
	sched   *Scheduler
	catalog *catalog.Catalog
	store   *huggingface.Store
	hw      *discover.SystemInfo
}

// NewServer baut den Server aus seinen Abhaengigkeiten
func NewServer(cat *catalog.Catalog, store *huggingface.Store, hw *discover.SystemInfo) *Server {
	return &Server{
		sched:   NewScheduler(cat, store),
		catalog: cat,
		store:   store,
		hw:      hw,
	}
}

// abortError schreibt die OpenAI-kompatible Fehler-Envelope
func abortError(c *gin.Context, err error) {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		apiErr = api.NewError(api.CodeInternalError, err.Error())
	}
	c.AbortWithStatusJSON(apiErr.HTTPStatus(), api.ErrorResponse{Error: apiErr})
}

// authMiddleware verlangt den konfigurierten Bearer-Token
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer "+apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{
				Error: api.NewError(api.CodeInvalidRequest, "invalid or missing API key"),
			})
			return
		}
		c.Next()
	}
}

// GenerateRoutes baut die Routing-Tabelle
func (s *Server) GenerateRoutes() *gin.Engine {
	if envconfig.LogLevel() > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowBrowserExtensions = true
	corsConfig.AllowHeaders = []string{"Authorization", "Content-Type", "Accept", "X-Requested-With"}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.New()
	r.Use(gin.Recovery(), cors.New(corsConfig))

	// Version und Root-Health liegen ausserhalb der Auth
	r.GET("/api/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": version.Version})
	})

	var middlewares []gin.HandlerFunc
	if apiKey := envconfig.APIKey(); apiKey != "" {
		middlewares = append(middlewares, authMiddleware(apiKey))
	}

	for _, prefix := range routePrefixes {
		group := r.Group(prefix, middlewares...)

		group.GET("/health", s.handleHealth)
		group.GET("/models", s.handleListModels)
		group.GET("/models/:id", s.handleShowModel)

		group.POST("/pull", s.handlePull)
		group.POST("/load", s.handleLoad)
		group.POST("/unload", s.handleUnload)
		group.POST("/delete", s.handleDelete)

		group.GET("/system-info", s.handleSystemInfo)
		group.GET("/system-stats", s.handleSystemStats)
		group.GET("/stats", s.handleStats)
		group.POST("/log-level", s.handleLogLevel)

		group.POST("/chat/completions", s.inferenceHandler(opChatCompletions))
		group.POST("/completions", s.inferenceHandler(opCompletions))
		group.POST("/responses", s.inferenceHandler(opResponses))
		group.POST("/embeddings", s.inferenceHandler(opEmbeddings))
		group.POST("/reranking", s.inferenceHandler(opRerank))
		group.POST("/rerank", s.inferenceHandler(opRerank))
		group.POST("/audio/speech", s.inferenceHandler(opSpeech))
		group.POST("/audio/transcriptions", s.handleTranscriptions)
		group.POST("/images/generations", s.inferenceHandler(opGenerations))
	}

	r.NoRoute(func(c *gin.Context) {
		abortError(c, api.NewError(api.CodeNotFound, "unknown endpoint "+c.Request.URL.Path))
	})

	return r
}

// Serve startet den Server und blockiert bis SIGINT/SIGTERM oder
// Context-Ende. Beim Shutdown werden alle Models entladen.
func Serve(ctx context.Context, s *Server, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := s.catalog.Watch(ctx); err != nil {
			slog.Warn("extra models watcher stopped", "error", err)
		}
	}()

	srv := &http.Server{Handler: s.GenerateRoutes()}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	slog.Info("gateway listening", "addr", ln.Addr(), "version", version.Version)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down, unloading all models")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), envconfig.UnloadTimeout())
	defer cancel()
	s.sched.UnloadAll(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}
