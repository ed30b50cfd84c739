// logutil.go - Logging-Hilfsfunktionen
//
// Diese Datei enthaelt:
// - NewLogger: slog-Logger mit gekuerzter Source-Angabe
// - SetLevel/GetLevel: Log-Level zur Laufzeit aendern (POST /log-level)
// - Trace: Logging unterhalb von Debug
package logutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

// LevelTrace liegt unterhalb von slog.LevelDebug
const LevelTrace = slog.LevelDebug - 4

// level ist der prozessweite, zur Laufzeit veraenderbare Log-Level
var level = new(slog.LevelVar)

// NewLogger erstellt einen Text-Logger mit Source-Angabe.
// Der uebergebene Level wird als initialer Laufzeit-Level gesetzt.
func NewLogger(w io.Writer, l slog.Level) *slog.Logger {
	level.Set(l)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.SourceKey {
				source := attr.Value.Any().(*slog.Source)
				source.File = filepath.Base(source.File)
			}
			return attr
		},
	}))
}

// SetLevel setzt den Log-Level zur Laufzeit
func SetLevel(l slog.Level) {
	level.Set(l)
}

// GetLevel gibt den aktuellen Log-Level zurueck
func GetLevel() slog.Level {
	return level.Level()
}

// Trace loggt unterhalb von Debug
func Trace(msg string, args ...any) {
	slog.Log(context.TODO(), LevelTrace, msg, args...)
}

// ParseLevel uebersetzt einen Level-Namen in einen slog.Level
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
