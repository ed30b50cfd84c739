// support.go - Hardware-Eignung von Katalog-Eintraegen
//
// Diese Datei enthaelt:
// - die deklarative Support-Tabelle pro Recipe
// - Supported: prueft Eintrag gegen erkannte Hardware inkl.
//   Speicher-Obergrenze, mit menschenlesbarer Begruendung
package discover

import (
	"fmt"
	"runtime"
	"slices"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/envconfig"
)

// recipeSupport beschreibt die Plattform-Anforderungen eines Recipes
type recipeSupport struct {
	// oses sind die unterstuetzten Betriebssysteme; leer = alle
	oses []string

	// needsNPU verlangt eine nutzbare NPU
	needsNPU bool

	// families schraenkt auf Prozessor-Familien ein; leer = alle
	families []ProcessorFamily
}

// supportTable ist die statische Support-Tabelle.
// macOS traegt ausschliesslich llamacpp.
var supportTable = map[api.Recipe]recipeSupport{
	api.RecipeLlamaCPP: {},
	api.RecipeRyzenAILLM: {
		oses:     []string{"windows"},
		needsNPU: true,
		families: []ProcessorFamily{FamilyPhoenix, FamilyHawkPoint, FamilyStrixPoint, FamilyStrixHalo, FamilyKrackanPoint},
	},
	api.RecipeFLM: {
		oses:     []string{"windows"},
		needsNPU: true,
		families: []ProcessorFamily{FamilyStrixPoint, FamilyStrixHalo, FamilyKrackanPoint},
	},
	api.RecipeWhisperCPP: {oses: []string{"windows", "linux"}},
	api.RecipeKokoro:     {oses: []string{"windows", "linux"}},
	api.RecipeSDCPP:      {oses: []string{"windows", "linux"}},
}

// Supported prueft ob ein Katalog-Eintrag auf dieser Hardware lauffaehig
// ist. reason ist leer wenn ja, sonst eine menschenlesbare Begruendung.
// LEMONADE_DISABLE_MODEL_FILTERING schaltet die Pruefung ab.
func Supported(info *SystemInfo, entry api.ModelEntry) (ok bool, reason string) {
	if envconfig.DisableModelFiltering() {
		return true, ""
	}

	sup, known := supportTable[entry.Recipe]
	if !known {
		return false, fmt.Sprintf("unknown recipe %q", entry.Recipe)
	}

	if runtime.GOOS == "darwin" && entry.Recipe != api.RecipeLlamaCPP {
		return false, fmt.Sprintf("recipe %s is not available on macOS", entry.Recipe)
	}
	if len(sup.oses) > 0 && !slices.Contains(sup.oses, runtime.GOOS) {
		return false, fmt.Sprintf("recipe %s requires %v, running on %s", entry.Recipe, sup.oses, runtime.GOOS)
	}

	if sup.needsNPU {
		if !info.HasNPU() {
			return false, "no usable NPU on this system"
		}
		if len(sup.families) > 0 && !slices.Contains(sup.families, info.CPU.Family) &&
			!envconfig.SkipProcessorCheck() {
			return false, fmt.Sprintf("processor family %q is not supported by recipe %s", info.CPU.Family, entry.Recipe)
		}
	}

	if entry.SizeGB > 0 {
		if limit := memoryLimitGB(info); limit > 0 && entry.SizeGB > limit {
			return false, fmt.Sprintf("model needs %.1f GB, system provides %.1f GB", entry.SizeGB, limit)
		}
	}

	return true, ""
}

// RecipeStatus beschreibt die Lauffaehigkeit eines Recipes auf der
// erkannten Hardware
type RecipeStatus struct {
	Supported bool   `json:"supported"`
	Reason    string `json:"reason,omitempty"`
}

// RecipeTable wertet jedes bekannte Recipe gegen die Hardware aus
func RecipeTable(info *SystemInfo) map[string]RecipeStatus {
	out := make(map[string]RecipeStatus, len(supportTable))
	for recipe := range supportTable {
		ok, reason := Supported(info, api.ModelEntry{Recipe: recipe})
		out[string(recipe)] = RecipeStatus{Supported: ok, Reason: reason}
	}
	return out
}

// memoryLimitGB ist die Speicher-Obergrenze fuer Model-Groessen:
// das Maximum aus GPU-Pool und 80% des System-RAMs
func memoryLimitGB(info *SystemInfo) float64 {
	ramGB := float64(info.CPU.TotalRAMMB) / 1024 * 0.8
	gpuGB := float64(info.GPUPoolMB()) / 1024
	if gpuGB > ramGB {
		return gpuGB
	}
	return ramGB
}
