// progress.go - Fortschritts-Events fuer Model-Downloads
//
// Diese Datei enthaelt:
// - PullProgress: Event-Struktur fuer /pull SSE und CLI
// - ProgressFunc: Callback mit Abbruch ueber Fehler-Rueckgabe
package api

// PullProgress beschreibt den Fortschritt eines Downloads.
// Status ist "progress", "complete" oder "error".
type PullProgress struct {
	Status          string  `json:"status"`
	Model           string  `json:"model,omitempty"`
	File            string  `json:"file,omitempty"`
	FileIndex       int     `json:"file_index,omitempty"`
	TotalFiles      int     `json:"total_files,omitempty"`
	BytesDownloaded int64   `json:"bytes_downloaded"`
	BytesTotal      int64   `json:"bytes_total"`
	Percent         float64 `json:"percent"`
	Error           string  `json:"error,omitempty"`
}

// ProgressFunc wird waehrend eines Downloads aufgerufen.
// Ein Fehler-Rueckgabewert bricht den Download ab; Partial-Dateien
// bleiben liegen, der naechste Versuch setzt fort.
type ProgressFunc func(PullProgress) error
