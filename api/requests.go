// requests.go - Request- und Response-Typen der Management-Endpoints
//
// Diese Datei enthaelt:
// - HealthResponse, MaxModels, LogStreaming
// - OpenAIModel/ModelList fuer GET /models
// - PullRequest, LoadRequest, UnloadRequest, DeleteRequest
// - RegisterRequest-Felder fuer user.<name>-Eintraege
// - SystemStats und LogLevelRequest
package api

import "time"

// HealthResponse ist die Antwort von GET /health
type HealthResponse struct {
	Status          string       `json:"status"`
	Version         string       `json:"version"`
	ModelLoaded     string       `json:"model_loaded"`
	AllModelsLoaded []string     `json:"all_models_loaded"`
	MaxModels       MaxModels    `json:"max_models"`
	LogStreaming    LogStreaming `json:"log_streaming"`
}

// MaxModels nennt die Slot-Limits pro Model-Typ (-1 = unbegrenzt)
type MaxModels struct {
	LLM       int `json:"llm"`
	Embedding int `json:"embedding"`
	Reranking int `json:"reranking"`
	Audio     int `json:"audio"`
	Image     int `json:"image"`
}

// LogStreaming nennt die verfuegbaren Log-Streaming-Transporte
type LogStreaming struct {
	SSE       bool `json:"sse"`
	WebSocket bool `json:"websocket"`
}

// OpenAIModel ist ein Eintrag in GET /models (OpenAI-Listenformat)
type OpenAIModel struct {
	ID            string         `json:"id"`
	Object        string         `json:"object"`
	Created       int64          `json:"created"`
	OwnedBy       string         `json:"owned_by"`
	Checkpoint    string         `json:"checkpoint"`
	Recipe        Recipe         `json:"recipe"`
	Downloaded    bool           `json:"downloaded"`
	Suggested     bool           `json:"suggested"`
	Labels        []string       `json:"labels,omitempty"`
	RecipeOptions RecipeOptions  `json:"recipe_options,omitempty"`
	Size          float64        `json:"size,omitempty"`
	ImageDefaults *ImageDefaults `json:"image_defaults,omitempty"`
}

// ModelList ist die Antwort von GET /models
type ModelList struct {
	Object string        `json:"object"`
	Data   []OpenAIModel `json:"data"`
}

// PullRequest ist der Body von POST /pull.
// Die Register-Felder sind nur fuer neue user.<name>-Eintraege noetig.
type PullRequest struct {
	Model       string   `json:"model"`
	Stream      bool     `json:"stream,omitempty"`
	LocalImport bool     `json:"local_import,omitempty"`
	Checkpoint  string   `json:"checkpoint,omitempty"`
	Recipe      Recipe   `json:"recipe,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	MMProj      string   `json:"mmproj,omitempty"`
}

// LoadRequest ist der Body von POST /load
type LoadRequest struct {
	Model         string        `json:"model"`
	RecipeOptions RecipeOptions `json:"recipe_options,omitempty"`
	SaveOptions   bool          `json:"save_options,omitempty"`
}

// UnloadRequest ist der Body von POST /unload; leeres Model entlaedt alle
type UnloadRequest struct {
	Model string `json:"model,omitempty"`
}

// DeleteRequest ist der Body von POST /delete
type DeleteRequest struct {
	Model string `json:"model"`
}

// LoadedModel ist die Telemetrie-Sicht eines residenten Models
// (GET /stats und GET /health)
type LoadedModel struct {
	Name     string    `json:"name"`
	Recipe   Recipe    `json:"recipe"`
	Type     ModelType `json:"type"`
	Device   string    `json:"device_class"`
	LoadedAt time.Time `json:"loaded_at"`
	LastUsed time.Time `json:"last_used"`
}

// LogLevelRequest ist der Body von POST /log-level
type LogLevelRequest struct {
	Level string `json:"level"`
}

// SystemStats ist die Antwort von GET /system-stats
type SystemStats struct {
	CPUPercent float64 `json:"cpu"`
	MemoryGB   float64 `json:"memory_gb"`
	GPUPercent float64 `json:"gpu"`
	VRAMGB     float64 `json:"vram_gb"`
}
