// flm.go - Adapter fuer die FLM-Engine (NPU, eigener Model-Speicher)
//
// FLM bringt ein eigenes CLI mit: "flm serve" startet den Server,
// "flm pull" laedt Checkpoints in den engine-eigenen Speicher,
// "flm list" zeigt den Bestand. Das Gateway delegiert Downloads und
// Bestandsabfragen dorthin statt an den Artifact Store.
package engines

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strconv"
	"strings"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/envconfig"
	"github.com/lemonade-sdk/lemonade/logutil"
)

type flm struct {
	proc
	entry   api.ModelEntry
	options api.RecipeOptions
}

func newFLM(entry api.ModelEntry, options api.RecipeOptions) (Engine, error) {
	e := &flm{entry: entry, options: options}
	e.proc.model = entry.Name
	e.proc.recipe = entry.Recipe
	e.proc.healthPath = "/health"
	return e, nil
}

// flmBinary sucht das FLM-CLI: Override, sonst PATH
func flmBinary() (string, error) {
	if override := envconfig.EngineBin(string(api.RecipeFLM), ""); override != "" {
		return override, nil
	}
	exe, err := exec.LookPath(exeNames[api.RecipeFLM])
	if err != nil {
		return "", fmt.Errorf("flm binary not found, install FLM or set LEMONADE_FLM_BIN: %w", err)
	}
	return exe, nil
}

func (e *flm) Load(ctx context.Context) error {
	exe, err := flmBinary()
	if err != nil {
		return api.ErrModelLoadError(e.entry.Name, err)
	}

	args := []string{"serve", e.entry.MainCheckpoint()}
	if ctxSize := e.options.Int(api.OptionCtxSize, 0); ctxSize > 0 {
		args = append(args, "--ctx-size", strconv.Itoa(ctxSize))
	}

	e.proc.exe = exe
	e.proc.args = args
	err = e.proc.start(ctx, func(port int) []string {
		return []string{"--port", strconv.Itoa(port)}
	})
	if err != nil {
		return api.ErrModelLoadError(e.entry.Name, err)
	}
	return nil
}

// rewriteModelField ersetzt das model-Feld durch den Checkpoint-Tag,
// den die FLM-Engine erwartet
func (e *flm) rewriteModelField(body []byte) ([]byte, error) {
	return rewriteJSON(body, func(m map[string]any) {
		m["model"] = e.entry.MainCheckpoint()
	})
}

func (e *flm) ChatCompletions(w http.ResponseWriter, r *http.Request, body []byte) error {
	body, err := e.rewriteModelField(body)
	if err != nil {
		return api.ErrInvalidRequest("malformed request body: %v", err)
	}
	return e.forwardJSON(w, r, "/v1/chat/completions", body)
}

func (e *flm) Completions(w http.ResponseWriter, r *http.Request, body []byte) error {
	body, err := e.rewriteModelField(body)
	if err != nil {
		return api.ErrInvalidRequest("malformed request body: %v", err)
	}
	return e.forwardJSON(w, r, "/v1/completions", body)
}

// FLMStore delegiert Download und Bestand an das FLM-CLI. Implementiert
// das NativePuller-Interface des Artifact Stores.
type FLMStore struct{}

// Pull laedt einen Checkpoint ueber "flm pull" und uebersetzt die
// Fortschritts-Zeilen des CLI in Progress-Events
func (FLMStore) Pull(ctx context.Context, checkpoint string, fn api.ProgressFunc) error {
	exe, err := flmBinary()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, exe, "pull", checkpoint)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting flm pull: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		logutil.Trace("flm pull output", "line", line)
		if fn == nil {
			continue
		}
		progress := api.PullProgress{Status: "progress", File: checkpoint}
		if pct, ok := parsePercent(line); ok {
			progress.Percent = pct
		}
		if err := fn(progress); err != nil {
			cmd.Process.Kill()
			cmd.Wait()
			return fmt.Errorf("%w: %v", api.ErrCancelled, err)
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("flm pull failed: %w", err)
	}
	if fn != nil {
		return fn(api.PullProgress{Status: "complete", File: checkpoint, Percent: 100})
	}
	return nil
}

// Installed fragt den Bestand ueber "flm list" ab
func (FLMStore) Installed(ctx context.Context) ([]string, error) {
	exe, err := flmBinary()
	if err != nil {
		return nil, err
	}
	out, err := exec.CommandContext(ctx, exe, "list").Output()
	if err != nil {
		return nil, fmt.Errorf("flm list failed: %w", err)
	}

	var installed []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "NAME") {
			continue
		}
		// erste Spalte ist der Checkpoint-Tag
		installed = append(installed, strings.Fields(line)[0])
	}
	return installed, nil
}

// parsePercent sucht eine Prozent-Angabe wie "42%" in einer CLI-Zeile
func parsePercent(line string) (float64, bool) {
	fields := strings.Fields(line)
	for _, f := range fields {
		if !strings.HasSuffix(f, "%") {
			continue
		}
		if pct, err := strconv.ParseFloat(strings.TrimSuffix(f, "%"), 64); err == nil {
			return pct, true
		}
	}
	return 0, false
}
