// ryzenai.go - Adapter fuer den RyzenAI-LLM-Server (NPU)
//
// Diese Datei enthaelt:
// - NPU-Treiber-Mindestversion mit Skip-Schalter
// - Erkennung invalidierter Model-Dateien in der Prozess-Ausgabe
package engines

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/discover"
	"github.com/lemonade-sdk/lemonade/envconfig"

	"net/http"
)

// minNPUDriverVersion ist die kleinste getestete Treiber-Version
const minNPUDriverVersion = "32.0.203.237"

// invalidatedMarkers sind die Ausgabe-Zeilen, mit denen die Runtime
// nach einem Upgrade unbrauchbar gewordene Model-Dateien meldet
var invalidatedMarkers = []string{
	"model was generated with an older version",
	"incompatible model artifacts",
	"please re-export the model",
}

type ryzenAI struct {
	proc
	entry   api.ModelEntry
	options api.RecipeOptions

	invalidated atomic.Bool
}

func newRyzenAI(entry api.ModelEntry, options api.RecipeOptions) (Engine, error) {
	if entry.MainPath() == "" {
		return nil, api.ErrModelLoadError(entry.Name, fmt.Errorf("no resolved model directory"))
	}
	e := &ryzenAI{entry: entry, options: options}
	e.proc.model = entry.Name
	e.proc.recipe = entry.Recipe
	e.proc.healthPath = "/health"
	e.proc.onOutput = e.scanOutput
	return e, nil
}

func (e *ryzenAI) scanOutput(line string) {
	lower := strings.ToLower(line)
	for _, marker := range invalidatedMarkers {
		if strings.Contains(lower, marker) {
			e.invalidated.Store(true)
			return
		}
	}
}

func (e *ryzenAI) Load(ctx context.Context) error {
	if err := checkNPUDriver(ctx); err != nil {
		return api.ErrModelLoadError(e.entry.Name, err)
	}

	exe, err := EnsureInstalled(ctx, e.entry.Recipe, e.options.String(api.OptionBackend))
	if err != nil {
		return api.ErrModelLoadError(e.entry.Name, err)
	}

	args := []string{"--model", e.entry.MainPath()}
	if ctxSize := e.options.Int(api.OptionCtxSize, 0); ctxSize > 0 {
		args = append(args, "--ctx-size", strconv.Itoa(ctxSize))
	}
	custom, err := customArgs(e.entry.Recipe, e.options)
	if err != nil {
		return err
	}
	args = append(args, custom...)

	e.proc.exe = exe
	e.proc.args = args
	if err := e.proc.start(ctx, portFlag); err != nil {
		if e.invalidated.Load() {
			return api.ErrModelInvalidated(e.entry.Name, err.Error())
		}
		return api.ErrModelLoadError(e.entry.Name, err)
	}
	return nil
}

func (e *ryzenAI) ChatCompletions(w http.ResponseWriter, r *http.Request, body []byte) error {
	return e.forwardJSON(w, r, "/v1/chat/completions", body)
}

func (e *ryzenAI) Completions(w http.ResponseWriter, r *http.Request, body []byte) error {
	return e.forwardJSON(w, r, "/v1/completions", body)
}

// checkNPUDriver prueft die Treiber-Mindestversion.
// LEMONADE_SKIP_PROCESSOR_CHECK schaltet die Pruefung ab.
func checkNPUDriver(ctx context.Context) error {
	if envconfig.SkipProcessorCheck() {
		return nil
	}
	npu := discover.Probe(ctx).NPU
	if !npu.Available {
		return fmt.Errorf("no usable NPU: %s", npu.Detail)
	}
	if npu.DriverVersion != "" && compareVersions(npu.DriverVersion, minNPUDriverVersion) < 0 {
		return fmt.Errorf("NPU driver %s is older than required %s", npu.DriverVersion, minNPUDriverVersion)
	}
	return nil
}

// compareVersions vergleicht punktierte Versionsnummern numerisch
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var an, bn int
		if i < len(as) {
			an, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bn, _ = strconv.Atoi(bs[i])
		}
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	}
	return 0
}
