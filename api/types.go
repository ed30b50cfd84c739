// types.go - Core API Types (Recipes, Device-Klassen, Model-Typen, Katalog-Eintraege)
//
// Diese Datei enthaelt:
// - Recipe: Tag fuer eine Engine-Familie inkl. statischer Device-Zuordnung
// - DeviceClass: Bitmaske ueber CPU/GPU/NPU/METAL
// - ModelType: LLM, Embedding, Reranking, Audio, Image
// - ModelEntry: ein Eintrag des Model-Katalogs
// - ImageDefaults: Default-Parameter fuer Bild-Modelle
// - SplitCheckpoint: repo_id[:variant] bzw. lokaler Pfad
package api

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Recipe benennt eine Engine-Familie
type Recipe string

const (
	RecipeLlamaCPP   Recipe = "llamacpp"
	RecipeRyzenAILLM Recipe = "ryzenai-llm"
	RecipeFLM        Recipe = "flm"
	RecipeWhisperCPP Recipe = "whispercpp"
	RecipeKokoro     Recipe = "kokoro"
	RecipeSDCPP      Recipe = "sd-cpp"
)

// Recipes enthaelt alle eingebauten Recipes
var Recipes = []Recipe{
	RecipeLlamaCPP,
	RecipeRyzenAILLM,
	RecipeFLM,
	RecipeWhisperCPP,
	RecipeKokoro,
	RecipeSDCPP,
}

// ParseRecipe validiert einen Recipe-Namen
func ParseRecipe(s string) (Recipe, error) {
	r := Recipe(strings.TrimSpace(s))
	if !slices.Contains(Recipes, r) {
		return "", fmt.Errorf("unknown recipe %q", s)
	}
	return r, nil
}

// DeviceClass ist eine Bitmaske ueber die benoetigten Geraete
type DeviceClass uint32

const (
	DeviceCPU DeviceClass = 1 << iota
	DeviceGPU
	DeviceNPU
	DeviceMetal
)

// HasNPU prueft ob das NPU-Bit gesetzt ist.
// Engines mit gesetztem NPU-Bit sind NPU-exklusiv.
func (d DeviceClass) HasNPU() bool {
	return d&DeviceNPU != 0
}

// HasGPU prueft ob das GPU-Bit gesetzt ist
func (d DeviceClass) HasGPU() bool {
	return d&DeviceGPU != 0
}

func (d DeviceClass) String() string {
	var parts []string
	if d&DeviceCPU != 0 {
		parts = append(parts, "cpu")
	}
	if d&DeviceGPU != 0 {
		parts = append(parts, "gpu")
	}
	if d&DeviceNPU != 0 {
		parts = append(parts, "npu")
	}
	if d&DeviceMetal != 0 {
		parts = append(parts, "metal")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// DeviceClass gibt die statische Geraete-Zuordnung eines Recipes zurueck
func (r Recipe) DeviceClass() DeviceClass {
	switch r {
	case RecipeLlamaCPP:
		return DeviceCPU | DeviceGPU | DeviceMetal
	case RecipeRyzenAILLM:
		return DeviceNPU
	case RecipeFLM:
		return DeviceNPU
	case RecipeWhisperCPP:
		return DeviceCPU | DeviceNPU
	case RecipeKokoro:
		return DeviceCPU
	case RecipeSDCPP:
		return DeviceCPU | DeviceGPU
	default:
		return DeviceCPU
	}
}

// ModelType klassifiziert einen Katalog-Eintrag
type ModelType string

const (
	ModelTypeLLM       ModelType = "llm"
	ModelTypeEmbedding ModelType = "embedding"
	ModelTypeReranking ModelType = "reranking"
	ModelTypeAudio     ModelType = "audio"
	ModelTypeImage     ModelType = "image"
)

// ModelTypes enthaelt alle Model-Typen
var ModelTypes = []ModelType{
	ModelTypeLLM,
	ModelTypeEmbedding,
	ModelTypeReranking,
	ModelTypeAudio,
	ModelTypeImage,
}

// Bekannte Labels eines Katalog-Eintrags
const (
	LabelReasoning  = "reasoning"
	LabelVision     = "vision"
	LabelEmbeddings = "embeddings"
	LabelReranking  = "reranking"
	LabelImage      = "image"
	LabelAudio      = "audio"
	LabelCustom     = "custom"
)

// TypeFromLabels leitet den Model-Typ aus den Labels ab.
// LLM ist der Default.
func TypeFromLabels(labels []string) ModelType {
	switch {
	case slices.Contains(labels, LabelEmbeddings):
		return ModelTypeEmbedding
	case slices.Contains(labels, LabelReranking):
		return ModelTypeReranking
	case slices.Contains(labels, LabelAudio):
		return ModelTypeAudio
	case slices.Contains(labels, LabelImage):
		return ModelTypeImage
	default:
		return ModelTypeLLM
	}
}

// Checkpoint-Rollen eines Eintrags. Die Rolle "main" ist Pflicht.
const (
	CheckpointMain     = "main"
	CheckpointMMProj   = "mmproj"
	CheckpointNPUCache = "npu_cache"
)

// Quellen eines Eintrags
const (
	SourceLocalUpload    = "local_upload"
	SourceLocalPath      = "local_path"
	SourceExtraModelsDir = "extra_models_dir"
)

// Namens-Praefixe
const (
	UserPrefix  = "user."
	ExtraPrefix = "extra."
)

// ImageDefaults enthaelt Default-Parameter fuer Bild-Modelle
type ImageDefaults struct {
	Steps    int     `json:"steps,omitempty"`
	CFGScale float64 `json:"cfg_scale,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
}

// ModelEntry ist ein Eintrag des Model-Katalogs.
// Der kanonische Name ist eindeutig ueber den gesamten Cache.
type ModelEntry struct {
	Name          string            `json:"name"`
	Recipe        Recipe            `json:"recipe"`
	Device        DeviceClass       `json:"device_class"`
	Type          ModelType         `json:"type"`
	Labels        []string          `json:"labels,omitempty"`
	Checkpoints   map[string]string `json:"checkpoints"`
	ResolvedPaths map[string]string `json:"resolved_paths,omitempty"`
	SizeGB        float64           `json:"size_gb,omitempty"`
	Suggested     bool              `json:"suggested,omitempty"`
	Source        string            `json:"source,omitempty"`
	Downloaded    bool              `json:"downloaded"`
	RecipeOptions RecipeOptions     `json:"recipe_options,omitempty"`
	ImageDefaults *ImageDefaults    `json:"image_defaults,omitempty"`
}

// MainCheckpoint gibt die Referenz der Rolle "main" zurueck
func (e ModelEntry) MainCheckpoint() string {
	return e.Checkpoints[CheckpointMain]
}

// MainPath gibt den aufgeloesten Pfad der Rolle "main" zurueck
func (e ModelEntry) MainPath() string {
	return e.ResolvedPaths[CheckpointMain]
}

// HasLabel prueft ob ein Label gesetzt ist
func (e ModelEntry) HasLabel(label string) bool {
	return slices.Contains(e.Labels, label)
}

// Clone liefert eine tiefe Kopie des Eintrags.
// Leser des Katalog-Caches arbeiten immer auf Kopien.
func (e ModelEntry) Clone() ModelEntry {
	out := e
	out.Labels = slices.Clone(e.Labels)
	if e.Checkpoints != nil {
		out.Checkpoints = make(map[string]string, len(e.Checkpoints))
		for k, v := range e.Checkpoints {
			out.Checkpoints[k] = v
		}
	}
	if e.ResolvedPaths != nil {
		out.ResolvedPaths = make(map[string]string, len(e.ResolvedPaths))
		for k, v := range e.ResolvedPaths {
			out.ResolvedPaths[k] = v
		}
	}
	if e.RecipeOptions != nil {
		out.RecipeOptions = e.RecipeOptions.Clone()
	}
	if e.ImageDefaults != nil {
		d := *e.ImageDefaults
		out.ImageDefaults = &d
	}
	return out
}

// SplitCheckpoint zerlegt eine Checkpoint-Referenz in repo_id und Variante.
// Lokale absolute Pfade haben nie eine Variante.
func SplitCheckpoint(ref string) (repo, variant string) {
	if IsLocalCheckpoint(ref) {
		return ref, ""
	}
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}

// IsLocalCheckpoint prueft ob eine Referenz ein absoluter lokaler Pfad ist
func IsLocalCheckpoint(ref string) bool {
	if filepath.IsAbs(ref) {
		return true
	}
	// Windows-Pfade wie C:\... auch auf anderen Plattformen erkennen
	if len(ref) > 2 && ref[1] == ':' && (ref[2] == '\\' || ref[2] == '/') {
		return true
	}
	return false
}
