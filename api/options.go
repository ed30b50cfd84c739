// options.go - Recipe-Optionen mit Sentinel-Semantik und Merge
//
// Diese Datei enthaelt:
// - RecipeOptions: typisierte Key/Value-Map pro Model
// - Allow-Listen der pro Recipe erkannten Keys
// - Sanitize: unbekannte Keys und Sentinel-Werte verwerfen
// - Merge: links-gewichtete Vereinigung (Request > Katalog > Defaults)
package api

import (
	"fmt"
	"log/slog"
	"strconv"
)

// RecipeOptions haelt die pro Model persistierten Optionen.
// Werte sind string, int/float oder bool; die Sentinels "" und -1
// bedeuten "nicht gesetzt" und werden beim Sanitize verworfen.
type RecipeOptions map[string]any

// Gemeinsame und Recipe-spezifische Options-Keys
const (
	OptionBackend    = "backend"
	OptionCtxSize    = "ctx_size"
	OptionGPULayers  = "gpu_layers"
	OptionCustomArgs = "custom_args"
	OptionVoice      = "voice"
	OptionSpeed      = "speed"
	OptionThreads    = "threads"
)

// recipeOptionKeys benennt die Keys, die ein Recipe erkennt
var recipeOptionKeys = map[Recipe][]string{
	RecipeLlamaCPP:   {OptionBackend, OptionCtxSize, OptionGPULayers, OptionCustomArgs, OptionThreads},
	RecipeRyzenAILLM: {OptionBackend, OptionCtxSize, OptionCustomArgs},
	RecipeFLM:        {OptionBackend, OptionCtxSize},
	RecipeWhisperCPP: {OptionBackend, OptionThreads},
	RecipeKokoro:     {OptionVoice, OptionSpeed},
	RecipeSDCPP:      {OptionBackend, OptionThreads},
}

// KnownOptionKeys gibt die erkannten Keys eines Recipes zurueck
func KnownOptionKeys(r Recipe) []string {
	return recipeOptionKeys[r]
}

// isSentinel prueft ob ein Wert "nicht gesetzt" bedeutet
func isSentinel(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case int:
		return t == -1
	case int64:
		return t == -1
	case float64:
		return t == -1
	default:
		return false
	}
}

// Sanitize verwirft unbekannte Keys und Sentinel-Werte.
// Verworfene Keys werden geloggt, nicht als Fehler behandelt.
func (o RecipeOptions) Sanitize(r Recipe) RecipeOptions {
	if len(o) == 0 {
		return nil
	}
	known := recipeOptionKeys[r]
	out := make(RecipeOptions, len(o))
	for k, v := range o {
		found := false
		for _, kk := range known {
			if k == kk {
				found = true
				break
			}
		}
		if !found {
			slog.Warn("dropping unknown recipe option", "recipe", r, "option", k)
			continue
		}
		if isSentinel(v) {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Merge vereinigt Optionen links-gewichtet: der Empfaenger gewinnt,
// fehlende Keys werden aus den Overlays aufgefuellt.
// Sentinel-Werte zaehlen als fehlend.
func (o RecipeOptions) Merge(overlays ...RecipeOptions) RecipeOptions {
	out := make(RecipeOptions)
	for k, v := range o {
		if !isSentinel(v) {
			out[k] = v
		}
	}
	for _, overlay := range overlays {
		for k, v := range overlay {
			if _, ok := out[k]; ok {
				continue
			}
			if isSentinel(v) {
				continue
			}
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Clone liefert eine flache Kopie
func (o RecipeOptions) Clone() RecipeOptions {
	if o == nil {
		return nil
	}
	out := make(RecipeOptions, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Int liest einen Integer-Wert; JSON-Dekodierung liefert float64
func (o RecipeOptions) Int(key string, defaultValue int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// Float liest einen Float-Wert
func (o RecipeOptions) Float(key string, defaultValue float64) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// String liest einen String-Wert
func (o RecipeOptions) String(key string) string {
	switch v := o[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
