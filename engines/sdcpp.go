// sdcpp.go - Adapter fuer den stable-diffusion.cpp-Server
package engines

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/lemonade-sdk/lemonade/api"
)

type sdCPP struct {
	proc
	entry   api.ModelEntry
	options api.RecipeOptions
}

func newSDCPP(entry api.ModelEntry, options api.RecipeOptions) (Engine, error) {
	if entry.MainPath() == "" {
		return nil, api.ErrModelLoadError(entry.Name, fmt.Errorf("no resolved model file"))
	}
	e := &sdCPP{entry: entry, options: options}
	e.proc.model = entry.Name
	e.proc.recipe = entry.Recipe
	e.proc.healthPath = "/health"
	return e, nil
}

func (e *sdCPP) Load(ctx context.Context) error {
	exe, err := EnsureInstalled(ctx, e.entry.Recipe, e.options.String(api.OptionBackend))
	if err != nil {
		return api.ErrModelLoadError(e.entry.Name, err)
	}

	args := []string{"-m", e.entry.MainPath()}
	if threads := e.options.Int(api.OptionThreads, 0); threads > 0 {
		args = append(args, "--threads", strconv.Itoa(threads))
	}
	custom, err := customArgs(e.entry.Recipe, e.options)
	if err != nil {
		return err
	}
	args = append(args, custom...)

	e.proc.exe = exe
	e.proc.args = args
	if err := e.proc.start(ctx, portFlag); err != nil {
		return api.ErrModelLoadError(e.entry.Name, err)
	}
	return nil
}

func (e *sdCPP) Generations(w http.ResponseWriter, r *http.Request, body []byte) error {
	defaults := e.entry.ImageDefaults
	body, err := rewriteJSON(body, func(m map[string]any) {
		if defaults == nil {
			return
		}
		// Katalog-Defaults fuellen fehlende Request-Felder
		if _, ok := m["steps"]; !ok && defaults.Steps > 0 {
			m["steps"] = defaults.Steps
		}
		if _, ok := m["cfg_scale"]; !ok && defaults.CFGScale > 0 {
			m["cfg_scale"] = defaults.CFGScale
		}
		if _, ok := m["size"]; !ok && defaults.Width > 0 && defaults.Height > 0 {
			m["size"] = fmt.Sprintf("%dx%d", defaults.Width, defaults.Height)
		}
	})
	if err != nil {
		return api.ErrInvalidRequest("malformed request body: %v", err)
	}
	return e.forwardJSON(w, r, "/v1/images/generations", body)
}
