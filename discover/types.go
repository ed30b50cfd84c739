// types.go - Datentypen der Hardware-Erkennung
//
// Diese Datei enthaelt:
// - SystemInfo: das Gesamtbild der erkannten Hardware
// - CPUInfo/GPUInfo/NPUInfo: Befunde pro Geraete-Kategorie
// - Processor-Familien fuer die NPU-Eignung
package discover

import (
	"regexp"
	"strings"

	"github.com/lemonade-sdk/lemonade/envconfig"
)

// ProcessorFamily klassifiziert den Prozessor fuer die NPU-Eignung
type ProcessorFamily string

const (
	FamilyUnknown      ProcessorFamily = ""
	FamilyPhoenix      ProcessorFamily = "phx"
	FamilyHawkPoint    ProcessorFamily = "hpt"
	FamilyStrixPoint   ProcessorFamily = "stx"
	FamilyStrixHalo    ProcessorFamily = "stx_halo"
	FamilyKrackanPoint ProcessorFamily = "krk"
)

// npuFamilies sind die Familien mit nutzbarer NPU
var npuFamilies = []ProcessorFamily{
	FamilyPhoenix,
	FamilyHawkPoint,
	FamilyStrixPoint,
	FamilyStrixHalo,
	FamilyKrackanPoint,
}

// HasNPU prueft ob die Familie eine nutzbare NPU traegt
func (f ProcessorFamily) HasNPU() bool {
	for _, fam := range npuFamilies {
		if f == fam {
			return true
		}
	}
	return false
}

// CPUInfo beschreibt den Prozessor
type CPUInfo struct {
	Name         string          `json:"name"`
	Family       ProcessorFamily `json:"family,omitempty"`
	Cores        int             `json:"cores,omitempty"`
	TotalRAMMB   uint64          `json:"total_ram_mb"`
	Architecture string          `json:"architecture"`
}

// GPUInfo beschreibt eine erkannte GPU
type GPUInfo struct {
	Name         string `json:"name"`
	Vendor       string `json:"vendor,omitempty"`
	VRAMMB       uint64 `json:"vram_mb"`
	GTTMB        uint64 `json:"gtt_mb,omitempty"`
	Integrated   bool   `json:"integrated,omitempty"`
	DriverOK     bool   `json:"driver_ok"`
	DriverDetail string `json:"driver_detail,omitempty"`
}

// NPUInfo beschreibt die erkannte NPU
type NPUInfo struct {
	Available     bool   `json:"available"`
	DriverVersion string `json:"driver_version,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

// SystemInfo ist das Gesamtbild der erkannten Hardware. Kategorien,
// deren Erkennung fehlschlaegt, bleiben leer; ihre Fehler stehen in
// Errors. Ein Teilausfall verhindert den Server-Start nicht.
type SystemInfo struct {
	Version string            `json:"version"`
	OS      string            `json:"os"`
	CPU     CPUInfo           `json:"cpu"`
	GPUs    []GPUInfo         `json:"gpus,omitempty"`
	NPU     NPUInfo           `json:"npu"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// HasUsableGPU prueft ob eine GPU mit funktionierendem Treiber existiert
func (s *SystemInfo) HasUsableGPU() bool {
	for _, gpu := range s.GPUs {
		if gpu.DriverOK {
			return true
		}
	}
	return false
}

// GPUPoolMB gibt den groessten nutzbaren VRAM-Pool zurueck. Mit
// LEMONADE_ENABLE_DGPU_GTT zaehlt bei diskreten GPUs der GTT-Speicher
// zum Pool dazu.
func (s *SystemInfo) GPUPoolMB() uint64 {
	var max uint64
	for _, gpu := range s.GPUs {
		if !gpu.DriverOK {
			continue
		}
		pool := gpu.VRAMMB
		if !gpu.Integrated && envconfig.EnableDGPUGTT() {
			pool += gpu.GTTMB
		}
		if pool > max {
			max = pool
		}
	}
	return max
}

// HasNPU prueft ob eine nutzbare NPU vorhanden ist
func (s *SystemInfo) HasNPU() bool {
	return s.NPU.Available
}

// Modellnummern der NPU-Generationen: Hawk Point traegt 8x40/8x45,
// Phoenix endet auf x40 (7x45 HX ist Dragon Range und hat keine NPU)
var (
	hawkPointPattern = regexp.MustCompile(`\b8\d4[05]`)
	phoenixPattern   = regexp.MustCompile(`\b7\d40`)
)

// classifyProcessor leitet die Familie aus dem Prozessor-Namen ab
func classifyProcessor(name string) ProcessorFamily {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "ryzen ai max"):
		return FamilyStrixHalo
	case strings.Contains(lower, "ryzen ai 7 3"), strings.Contains(lower, "ryzen ai 5 3"):
		return FamilyKrackanPoint
	case strings.Contains(lower, "ryzen ai 9"), strings.Contains(lower, "ryzen ai"):
		return FamilyStrixPoint
	case hawkPointPattern.MatchString(lower):
		return FamilyHawkPoint
	case phoenixPattern.MatchString(lower):
		return FamilyPhoenix
	default:
		return FamilyUnknown
	}
}
