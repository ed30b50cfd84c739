// config_utils.go - Utility-Funktionen und Export fuer Konfiguration
//
// Dieses Modul enthaelt:
// - Bool: Boolean-Getter (Default: false)
// - String: String-Getter
// - Values: Gibt alle Konfigurationswerte als String-Map zurueck
package envconfig

import (
	"fmt"
	"strconv"
)

// Bool gibt eine Funktion zurueck, die einen Bool liest (Default: false)
func Bool(k string) func() bool {
	return func() bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return false
	}
}

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
// Wird beim Server-Start geloggt
func Values() map[string]string {
	vals := map[string]any{
		"LEMONADE_HOST":                    Host(),
		"LEMONADE_CACHE_DIR":               CacheDir(),
		"LEMONADE_EXTRA_MODELS_DIR":        ExtraModelsDir(),
		"LEMONADE_LOAD_TIMEOUT":            LoadTimeout(),
		"LEMONADE_MAX_LOADED_MODELS":       MaxLoadedModels("llm"),
		"LEMONADE_OFFLINE":                 Offline(),
		"LEMONADE_DISABLE_MODEL_FILTERING": DisableModelFiltering(),
		"LEMONADE_ENABLE_DGPU_GTT":         EnableDGPUGTT(),
		"LEMONADE_DEBUG":                   LogLevel(),
		"RYZENAI_SKIP_PROCESSOR_CHECK":     SkipProcessorCheck(),
	}

	ret := make(map[string]string, len(vals))
	for k, v := range vals {
		ret[k] = fmt.Sprintf("%v", v)
	}
	return ret
}
