// install.go - On-Demand-Installation der Engine-Binaries
//
// Diese Datei enthaelt:
// - EnsureInstalled: Binary-Override, versionierte Installation,
//   Download und Entpacken des passenden Release-Archivs
// - CleanStaleInstalls: raeumt Installationen anderer Versionen ab
package engines

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/envconfig"
)

// Versionen der gebundelten Engines. Ein Versionswechsel loest beim
// naechsten Load eine Neuinstallation aus.
var engineVersions = map[api.Recipe]string{
	api.RecipeLlamaCPP:   "b4823",
	api.RecipeRyzenAILLM: "1.4.0",
	api.RecipeWhisperCPP: "1.7.4",
	api.RecipeKokoro:     "0.2.1",
	api.RecipeSDCPP:      "master-6c88ad3",
}

// exeNames benennt das Server-Binary pro Recipe
var exeNames = map[api.Recipe]string{
	api.RecipeLlamaCPP:   "llama-server",
	api.RecipeRyzenAILLM: "ryzenai-server",
	api.RecipeFLM:        "flm",
	api.RecipeWhisperCPP: "whisper-server",
	api.RecipeKokoro:     "kokoro-server",
	api.RecipeSDCPP:      "sd-server",
}

const versionFileName = "version.txt"

// EnsureInstalled sorgt dafuer, dass das Server-Binary eines Recipes
// (und Backends) nutzbar ist und gibt seinen Pfad zurueck.
// LEMONADE_<RECIPE>[_<BACKEND>]_BIN uebersteuert die Installation.
func EnsureInstalled(ctx context.Context, recipe api.Recipe, backend string) (string, error) {
	if override := envconfig.EngineBin(string(recipe), backend); override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("configured engine binary %s: %w", override, err)
		}
		return override, nil
	}

	wantVersion, ok := engineVersions[recipe]
	if !ok {
		return "", fmt.Errorf("recipe %s has no managed binary", recipe)
	}

	installDir := installDirFor(recipe, backend)
	exe := filepath.Join(installDir, exeName(recipe))

	if installedVersion(installDir) == wantVersion {
		if _, err := os.Stat(exe); err == nil {
			return exe, nil
		}
	}

	// Veraltete oder unvollstaendige Installation ersetzen
	if err := os.RemoveAll(installDir); err != nil {
		return "", err
	}
	if err := install(ctx, recipe, backend, installDir); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(installDir, versionFileName), []byte(wantVersion), 0o644); err != nil {
		return "", err
	}
	if _, err := os.Stat(exe); err != nil {
		return "", fmt.Errorf("engine archive did not contain %s", exeName(recipe))
	}
	return exe, nil
}

func installDirFor(recipe api.Recipe, backend string) string {
	name := string(recipe)
	if backend != "" {
		name += "-" + backend
	}
	return filepath.Join(envconfig.CacheDir(), "engines", name)
}

func exeName(recipe api.Recipe) string {
	name := exeNames[recipe]
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return name
}

func installedVersion(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, versionFileName))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// CleanStaleInstalls entfernt alle installierten Engine-Binaries.
// Wird nach einem Gateway-Versionswechsel aufgerufen; die Engines
// werden beim naechsten Load frisch installiert.
func CleanStaleInstalls() {
	dir := filepath.Join(envconfig.CacheDir(), "engines")
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("cannot clean engine installations", "dir", dir, "error", err)
		return
	}
	slog.Info("removed engine installations after version change", "dir", dir)
}

// archiveURL baut die Release-URL eines Engine-Archivs
func archiveURL(recipe api.Recipe, backend string) (string, error) {
	version := engineVersions[recipe]
	osArch := runtime.GOOS + "-" + runtime.GOARCH

	switch recipe {
	case api.RecipeLlamaCPP:
		variant := backend
		if variant == "" {
			variant = "cpu"
		}
		ext := "tar.gz"
		if runtime.GOOS == "windows" {
			ext = "zip"
		}
		return fmt.Sprintf("https://github.com/ggml-org/llama.cpp/releases/download/%s/llama-%s-bin-%s-%s.%s",
			version, version, osArch, variant, ext), nil
	case api.RecipeWhisperCPP:
		return fmt.Sprintf("https://github.com/ggml-org/whisper.cpp/releases/download/v%s/whisper-bin-%s.zip",
			version, osArch), nil
	case api.RecipeSDCPP:
		return fmt.Sprintf("https://github.com/leejet/stable-diffusion.cpp/releases/download/%s/sd-%s-bin-%s.zip",
			version, version, osArch), nil
	case api.RecipeRyzenAILLM:
		return fmt.Sprintf("https://github.com/amd/ryzen-ai-sw/releases/download/v%s/ryzenai-llm-server-%s.zip",
			version, version), nil
	case api.RecipeKokoro:
		return fmt.Sprintf("https://github.com/lemonade-sdk/kokoro-server/releases/download/v%s/kokoro-server-%s.zip",
			version, osArch), nil
	default:
		return "", fmt.Errorf("recipe %s has no download source", recipe)
	}
}

// install laedt das Release-Archiv und entpackt es flach nach dir
func install(ctx context.Context, recipe api.Recipe, backend, dir string) error {
	if envconfig.Offline() {
		return fmt.Errorf("engine %s is not installed: %w", recipe, api.ErrOffline)
	}

	url, err := archiveURL(recipe, backend)
	if err != nil {
		return err
	}
	slog.Info("installing engine", "recipe", recipe, "backend", backend, "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading engine archive: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading engine archive: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "lemonade-engine-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if strings.HasSuffix(url, ".zip") {
		return extractZip(tmp.Name(), dir)
	}
	return extractTarGz(tmp.Name(), dir)
}

// extractZip entpackt flach: Verzeichnis-Ebenen des Archivs werden
// verworfen, nur Dateinamen zaehlen
func extractZip(archive, dir string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = writeExtracted(filepath.Join(dir, filepath.Base(f.Name)), rc, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTarGz(archive, dir string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err := writeExtracted(filepath.Join(dir, filepath.Base(hdr.Name)), tr, os.FileMode(hdr.Mode)); err != nil {
			return err
		}
	}
}

func writeExtracted(dest string, r io.Reader, mode os.FileMode) error {
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode|0o100)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, r)
	return err
}
