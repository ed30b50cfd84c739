// config.go - Haupt-Konfigurationsfunktionen fuer das Lemonade Gateway
//
// Dieses Modul enthaelt:
// - Host: Gibt Scheme und Host zurueck (LEMONADE_HOST)
// - AllowedOrigins: Gibt erlaubte Origins zurueck (LEMONADE_ORIGINS)
// - CacheDir: Gibt das Cache-Verzeichnis des Gateways zurueck (LEMONADE_CACHE_DIR)
// - ExtraModelsDir: Scan-Verzeichnis fuer lokale GGUF-Dateien
// - LoadTimeout/UnloadTimeout: Timeouts fuer Engine-Start und -Stop
// - MaxLoadedModels: Slot-Limit pro Model-Typ
// - APIKey, Offline, DisableModelFiltering, EnableDGPUGTT, SkipProcessorCheck
// - EngineBin: Binary-Override pro Recipe/Backend
// - LogLevel: Gibt Log-Level zurueck (LEMONADE_DEBUG)
//
// Weitere Konfigurationen sind ausgelagert:
// - config_utils.go: Utility-Funktionen und Values
package envconfig

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Host gibt Scheme und Host zurueck
// Konfigurierbar via LEMONADE_HOST
// Default: http://127.0.0.1:8000
func Host() *url.URL {
	defaultPort := "8000"

	s := strings.TrimSpace(Var("LEMONADE_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AllowedOrigins gibt erlaubte Origins zurueck
// Konfigurierbar via LEMONADE_ORIGINS (komma-separiert)
// Enthaelt Standard-Origins fuer localhost
func AllowedOrigins() (origins []string) {
	if s := Var("LEMONADE_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	// Standard-Origins fuer localhost
	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	origins = append(origins,
		"app://*",
		"file://*",
		"tauri://*",
		"vscode-webview://*",
		"vscode-file://*",
	)

	return origins
}

// CacheDir gibt das Cache-Verzeichnis des Gateways zurueck.
// Hier liegen server_models.json, user_models.json, recipe_options.json,
// hardware_info.json und die Engine-Installationen.
// Konfigurierbar via LEMONADE_CACHE_DIR
// Default: $HOME/.cache/lemonade
func CacheDir() string {
	if s := Var("LEMONADE_CACHE_DIR"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	return filepath.Join(home, ".cache", "lemonade")
}

// ExtraModelsDir gibt das Scan-Verzeichnis fuer lokale GGUF-Dateien zurueck
// Konfigurierbar via LEMONADE_EXTRA_MODELS_DIR
// Default: <CacheDir>/extra_models
func ExtraModelsDir() string {
	if s := Var("LEMONADE_EXTRA_MODELS_DIR"); s != "" {
		return s
	}
	return filepath.Join(CacheDir(), "extra_models")
}

// LoadTimeout gibt das Timeout fuer Engine-Start zurueck
// Konfigurierbar via LEMONADE_LOAD_TIMEOUT
// 0 oder negative Werte = unendlich
// Default: 10 Minuten
func LoadTimeout() (loadTimeout time.Duration) {
	loadTimeout = 10 * time.Minute
	if s := Var("LEMONADE_LOAD_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			loadTimeout = d
		} else if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			loadTimeout = time.Duration(n) * time.Second
		}
	}

	if loadTimeout <= 0 {
		return time.Duration(math.MaxInt64)
	}

	return loadTimeout
}

// UnloadTimeout gibt das Timeout fuer Engine-Stop zurueck
// Default: 60 Sekunden
func UnloadTimeout() time.Duration {
	if s := Var("LEMONADE_UNLOAD_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return 60 * time.Second
}

// MaxLoadedModels gibt das Slot-Limit pro Model-Typ zurueck.
// -1 = unbegrenzt. Der Typ-Name ist "llm", "embedding", "reranking",
// "audio" oder "image".
// Konfigurierbar via LEMONADE_MAX_<TYP>_MODELS, sonst LEMONADE_MAX_LOADED_MODELS
// Default: 1
func MaxLoadedModels(typ string) int {
	keys := []string{
		"LEMONADE_MAX_" + strings.ToUpper(typ) + "_MODELS",
		"LEMONADE_MAX_LOADED_MODELS",
	}
	for _, key := range keys {
		if s := Var(key); s != "" {
			if n, err := strconv.Atoi(s); err == nil {
				return n
			}
			slog.Warn("invalid environment variable, using default", "key", key, "value", s)
		}
	}
	return 1
}

// APIKey gibt den konfigurierten API-Key zurueck (leer = keine Auth)
// Konfigurierbar via LEMONADE_API_KEY
var APIKey = String("LEMONADE_API_KEY")

// Offline deaktiviert alle Netzwerkzugriffe des Artifact Stores
// Konfigurierbar via LEMONADE_OFFLINE
var Offline = Bool("LEMONADE_OFFLINE")

// DisableModelFiltering deaktiviert den Hardware-Support-Filter
// Konfigurierbar via LEMONADE_DISABLE_MODEL_FILTERING
var DisableModelFiltering = Bool("LEMONADE_DISABLE_MODEL_FILTERING")

// EnableDGPUGTT rechnet GTT-Speicher diskreter GPUs dem Pool zu
// Konfigurierbar via LEMONADE_ENABLE_DGPU_GTT
var EnableDGPUGTT = Bool("LEMONADE_ENABLE_DGPU_GTT")

// SkipProcessorCheck ueberspringt die Prozessor-Pruefung der Ryzen-AI-Engine
// Konfigurierbar via RYZENAI_SKIP_PROCESSOR_CHECK
var SkipProcessorCheck = Bool("RYZENAI_SKIP_PROCESSOR_CHECK")

// EngineBin gibt einen Binary-Override fuer ein Recipe/Backend-Paar zurueck.
// Geprueft werden LEMONADE_<RECIPE>_<BACKEND>_BIN und LEMONADE_<RECIPE>_BIN,
// Bindestriche im Recipe-Namen werden zu Unterstrichen.
func EngineBin(recipe, backend string) string {
	norm := func(s string) string {
		return strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
	}
	if backend != "" {
		if s := Var("LEMONADE_" + norm(recipe) + "_" + norm(backend) + "_BIN"); s != "" {
			return s
		}
	}
	return Var("LEMONADE_" + norm(recipe) + "_BIN")
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via LEMONADE_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("LEMONADE_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
