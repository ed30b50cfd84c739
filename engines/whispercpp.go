// whispercpp.go - Adapter fuer den whisper.cpp-Server (Transkription)
//
// Der Upload wird in eine Temp-Datei umgeschrieben und als frischer
// multipart-Request an den Subprozess gestellt, weil der Server das
// Feld "file" mit Dateinamen-Endung erwartet.
package engines

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/lemonade-sdk/lemonade/api"
)

// maxAudioUpload begrenzt die Groesse eines Audio-Uploads
const maxAudioUpload = 256 << 20

type whisperCPP struct {
	proc
	entry   api.ModelEntry
	options api.RecipeOptions
}

func newWhisperCPP(entry api.ModelEntry, options api.RecipeOptions) (Engine, error) {
	if entry.MainPath() == "" {
		return nil, api.ErrModelLoadError(entry.Name, fmt.Errorf("no resolved model file"))
	}
	e := &whisperCPP{entry: entry, options: options}
	e.proc.model = entry.Name
	e.proc.recipe = entry.Recipe
	e.proc.healthPath = "/health"
	return e, nil
}

func (e *whisperCPP) Load(ctx context.Context) error {
	backend := e.options.String(api.OptionBackend)
	exe, err := EnsureInstalled(ctx, e.entry.Recipe, backend)
	if err != nil {
		return api.ErrModelLoadError(e.entry.Name, err)
	}

	args := []string{"-m", e.entry.MainPath()}
	if npuCache := e.entry.ResolvedPaths[api.CheckpointNPUCache]; npuCache != "" && backend == "npu" {
		args = append(args, "--npu-cache", npuCache)
	}
	if threads := e.options.Int(api.OptionThreads, 0); threads > 0 {
		args = append(args, "--threads", strconv.Itoa(threads))
	}

	e.proc.exe = exe
	e.proc.args = args
	if err := e.proc.start(ctx, portFlag); err != nil {
		return api.ErrModelLoadError(e.entry.Name, err)
	}
	return nil
}

func (e *whisperCPP) Transcriptions(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		return api.ErrInvalidRequest("malformed multipart request: %v", err)
	}

	upload, header, err := r.FormFile("file")
	if err != nil {
		return api.ErrInvalidRequest("missing audio file field: %v", err)
	}
	defer upload.Close()

	// Upload in eine Temp-Datei mit Original-Endung umschreiben
	ext := filepath.Ext(header.Filename)
	tmpPath := filepath.Join(os.TempDir(), "lemonade-audio-"+uuid.NewString()+ext)
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)
	if _, err := io.Copy(tmp, upload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(tmpPath))
	if err != nil {
		return err
	}
	src, err := os.Open(tmpPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		src.Close()
		return err
	}
	src.Close()

	// Uebrige Formfelder unveraendert mitgeben, model ausgenommen
	for key, values := range r.MultipartForm.Value {
		if key == "model" {
			continue
		}
		for _, v := range values {
			mw.WriteField(key, v)
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	e.proc.mu.Lock()
	port := e.proc.port
	client := e.proc.client
	e.proc.mu.Unlock()

	url := fmt.Sprintf("http://127.0.0.1:%d/inference", port)
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()

	return copyResponse(w, resp)
}
