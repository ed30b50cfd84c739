// errors.go - Fehlertypen und OpenAI-kompatible Fehler-Envelope
//
// Diese Datei enthaelt:
// - ErrorCode: maschinenlesbare Fehler-Codes
// - Error/ErrorResponse: Envelope {"error": {message, type, code, ...}}
// - Konstruktoren fuer die Fehlerarten des Gateways
// - Sentinel-Fehler des Artifact Stores
// - IsFileNotFound: Substring-Erkennung fuer den Nuclear-Retry-Bypass
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode ist der maschinenlesbare Fehler-Code der Envelope
type ErrorCode string

const (
	CodeInvalidRequest       ErrorCode = "invalid_request_error"
	CodeModelNotFound        ErrorCode = "model_not_found"
	CodeModelNotSupported    ErrorCode = "model_not_supported"
	CodeModelNotLoaded       ErrorCode = "model_not_loaded"
	CodeModelLoadError       ErrorCode = "model_load_error"
	CodeModelInvalidated     ErrorCode = "model_invalidated"
	CodeUnsupportedOperation ErrorCode = "unsupported_operation"
	CodeNotFound             ErrorCode = "not_found"
	CodeInternalError        ErrorCode = "internal_error"
)

// Error ist der Fehler-Inhalt der OpenAI-kompatiblen Envelope
type Error struct {
	Message        string    `json:"message"`
	Type           string    `json:"type"`
	Code           ErrorCode `json:"code"`
	Param          string    `json:"param,omitempty"`
	RequestedModel string    `json:"requested_model,omitempty"`
}

// ErrorResponse ist die Wrapper-Struktur fuer Fehlerantworten
type ErrorResponse struct {
	Error *Error `json:"error"`
}

func (e *Error) Error() string {
	return e.Message
}

// HTTPStatus gibt den HTTP-Status fuer den Fehler-Code zurueck
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidRequest, CodeUnsupportedOperation:
		return http.StatusBadRequest
	case CodeModelNotFound, CodeModelNotSupported, CodeModelNotLoaded, CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// errorType leitet das OpenAI "type"-Feld aus dem Code ab
func errorType(code ErrorCode) string {
	switch code {
	case CodeInvalidRequest, CodeUnsupportedOperation:
		return "invalid_request_error"
	case CodeModelNotFound, CodeModelNotSupported, CodeModelNotLoaded, CodeNotFound:
		return "not_found_error"
	default:
		return "server_error"
	}
}

// NewError erstellt einen Fehler mit Code und Nachricht
func NewError(code ErrorCode, msg string) *Error {
	return &Error{Message: msg, Type: errorType(code), Code: code}
}

// ErrInvalidRequest meldet fehlende oder fehlerhafte Request-Felder
func ErrInvalidRequest(format string, args ...any) *Error {
	return NewError(CodeInvalidRequest, fmt.Sprintf(format, args...))
}

// ErrModelNotFound meldet einen Katalog-Miss
func ErrModelNotFound(name string) *Error {
	e := NewError(CodeModelNotFound, fmt.Sprintf("model %q not found", name))
	e.RequestedModel = name
	return e
}

// ErrModelNotSupported meldet einen vom Hardware-Filter entfernten Eintrag
func ErrModelNotSupported(name, reason string) *Error {
	msg := fmt.Sprintf("model %q is not supported on this system", name)
	if reason != "" {
		msg += ": " + reason
	}
	e := NewError(CodeModelNotSupported, msg)
	e.RequestedModel = name
	return e
}

// ErrModelNotLoaded meldet einen Request auf ein nicht residentes Model
func ErrModelNotLoaded(name string) *Error {
	e := NewError(CodeModelNotLoaded, fmt.Sprintf("model %q is not loaded", name))
	e.RequestedModel = name
	return e
}

// ErrModelLoadError meldet einen fehlgeschlagenen Engine-Load
func ErrModelLoadError(name string, cause error) *Error {
	e := NewError(CodeModelLoadError, fmt.Sprintf("loading model %q failed: %v", name, cause))
	e.RequestedModel = name
	return e
}

// ErrModelInvalidated meldet durch ein Engine-Upgrade unbrauchbar
// gewordene Model-Dateien. Wird nie wiederholt; der Aufrufer muss
// das Model neu herunterladen.
func ErrModelInvalidated(name, detail string) *Error {
	msg := fmt.Sprintf("model %q was invalidated by an engine upgrade, please re-pull it", name)
	if detail != "" {
		msg += ": " + detail
	}
	e := NewError(CodeModelInvalidated, msg)
	e.RequestedModel = name
	return e
}

// ErrUnsupportedOperation meldet eine vom Adapter nicht implementierte Operation
func ErrUnsupportedOperation(op string, device DeviceClass) *Error {
	return NewError(CodeUnsupportedOperation,
		fmt.Sprintf("operation %q is not supported by the loaded engine (device %s)", op, device))
}

// Sentinel-Fehler des Artifact Stores
var (
	// ErrDownloadIncomplete: nach dem Download fehlen Dateien, es
	// existieren .partial-Reste oder Groessen stimmen nicht
	ErrDownloadIncomplete = errors.New("download incomplete")

	// ErrCancelled: der Progress-Callback hat abgebrochen;
	// Partial-Dateien bleiben fuer Resume liegen
	ErrCancelled = errors.New("download cancelled")

	// ErrOffline: Netzwerkzugriff ist per LEMONADE_OFFLINE deaktiviert
	ErrOffline = errors.New("offline mode is enabled")
)

// fileNotFoundMarkers sind die woertlich uebernommenen Substrings,
// die den Nuclear-Retry des Schedulers umgehen
var fileNotFoundMarkers = []string{
	"No such file",
	"file not found",
}

// IsFileNotFound prueft ob eine Fehlermeldung auf fehlende Dateien
// hinweist. Solche Fehler werden vom Scheduler nicht wiederholt.
func IsFileNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range fileNotFoundMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsModelInvalidated prueft auf den Invalidated-Fehler
func IsModelInvalidated(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == CodeModelInvalidated
}
