// process.go - Subprozess-Verwaltung der Engine-Adapter
//
// Diese Datei enthaelt:
// - proc: Start, Health-Polling, idempotenter Stop eines Subprozesses
// - HTTP-Weiterleitung an den Subprozess inkl. SSE-Streaming
// - Port-Vergabe ueber das Betriebssystem
package engines

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/envconfig"
	"github.com/lemonade-sdk/lemonade/logutil"
)

// healthPollInterval ist der Abstand zwischen Health-Checks beim Start
const healthPollInterval = 250 * time.Millisecond

// proc verwaltet einen Engine-Subprozess. Die Adapter betten proc ein
// und liefern Kommandozeile und Pfade.
type proc struct {
	model  string
	recipe api.Recipe

	exe  string
	args []string
	env  []string

	// healthPath ist der Pfad des Health-Endpoints des Subprozesses
	healthPath string

	// onOutput erhaelt jede Ausgabezeile des Subprozesses; Adapter
	// nutzen das fuer Fehler-Erkennung in stdout
	onOutput func(line string)

	mu      sync.Mutex
	cmd     *exec.Cmd
	port    int
	done    chan error
	stopped bool

	client *http.Client
}

func (p *proc) Model() string      { return p.model }
func (p *proc) Recipe() api.Recipe { return p.recipe }

// findAvailablePort laesst das Betriebssystem einen freien Port waehlen
func findAvailablePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// start spawnt den Subprozess und wartet bis der Health-Endpoint
// antwortet oder das Load-Timeout ablaeuft
func (p *proc) start(ctx context.Context, portArg func(port int) []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	port, err := findAvailablePort()
	if err != nil {
		return fmt.Errorf("allocating engine port: %w", err)
	}
	p.port = port
	p.client = &http.Client{}

	args := append(append([]string{}, p.args...), portArg(port)...)
	cmd := exec.Command(p.exe, args...)
	cmd.Env = p.env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout

	slog.Info("starting engine", "model", p.model, "recipe", p.recipe, "port", port)
	logutil.Trace("engine command line", "exe", p.exe, "args", args)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting engine process: %w", err)
	}
	p.cmd = cmd
	p.stopped = false
	p.done = make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			logutil.Trace("engine output", "model", p.model, "line", line)
			if p.onOutput != nil {
				p.onOutput(line)
			}
		}
	}()
	go func() {
		p.done <- cmd.Wait()
	}()

	return p.waitHealthy(ctx)
}

// waitHealthy pollt den Health-Endpoint bis zum Load-Timeout.
// Stirbt der Prozess vorher, ist das der Fehler.
func (p *proc) waitHealthy(ctx context.Context) error {
	deadline := time.NewTimer(envconfig.LoadTimeout())
	defer deadline.Stop()
	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.killLocked()
			return ctx.Err()
		case err := <-p.done:
			p.done <- err
			return fmt.Errorf("engine process exited during startup: %v", err)
		case <-deadline.C:
			p.killLocked()
			return fmt.Errorf("engine did not become healthy within %s", envconfig.LoadTimeout())
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, healthPollInterval)
			err := p.pingLocked(pingCtx)
			cancel()
			if err == nil {
				slog.Info("engine ready", "model", p.model, "port", p.port)
				return nil
			}
		}
	}
}

func (p *proc) pingLocked(ctx context.Context) error {
	url := fmt.Sprintf("http://127.0.0.1:%d%s", p.port, p.healthPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine health returned %d", resp.StatusCode)
	}
	return nil
}

// Ping prueft ob der Subprozess noch antwortet
func (p *proc) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.stopped {
		return fmt.Errorf("engine for %s is not running", p.model)
	}
	return p.pingLocked(ctx)
}

// Unload beendet den Subprozess: erst SIGTERM, nach dem Unload-Timeout
// SIGKILL. Mehrfaches Unload ist wirkungslos.
func (p *proc) Unload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil || p.stopped {
		return nil
	}
	p.stopped = true

	slog.Info("stopping engine", "model", p.model, "pid", p.cmd.Process.Pid)
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		p.cmd.Process.Kill()
	}

	select {
	case <-p.done:
	case <-time.After(envconfig.UnloadTimeout()):
		slog.Warn("engine ignored SIGTERM, killing", "model", p.model)
		p.cmd.Process.Kill()
		<-p.done
	case <-ctx.Done():
		p.cmd.Process.Kill()
		<-p.done
	}
	return nil
}

func (p *proc) killLocked() {
	if p.cmd != nil && !p.stopped {
		p.stopped = true
		p.cmd.Process.Kill()
		<-p.done
	}
}

// forwardJSON leitet einen JSON-Request an den Subprozess weiter und
// kopiert die Antwort zurueck. SSE-Antworten werden Zeile fuer Zeile
// geflusht.
func (p *proc) forwardJSON(w http.ResponseWriter, r *http.Request, path string, body []byte) error {
	p.mu.Lock()
	port := p.port
	client := p.client
	p.mu.Unlock()

	url := fmt.Sprintf("http://127.0.0.1:%d%s", port, path)
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()

	return copyResponse(w, resp)
}

// forwardRaw leitet einen Request mit unveraendertem Body weiter
// (multipart-Uploads)
func (p *proc) forwardRaw(w http.ResponseWriter, r *http.Request, path string) error {
	p.mu.Lock()
	port := p.port
	client := p.client
	p.mu.Unlock()

	url := fmt.Sprintf("http://127.0.0.1:%d%s", port, path)
	req, err := http.NewRequestWithContext(r.Context(), r.Method, url, r.Body)
	if err != nil {
		return err
	}
	req.Header = r.Header.Clone()
	req.ContentLength = r.ContentLength

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()

	return copyResponse(w, resp)
}

// copyResponse kopiert Status, Header und Body; Streams werden pro
// gelesenem Chunk geflusht
func copyResponse(w http.ResponseWriter, resp *http.Response) error {
	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	flusher, canFlush := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return nil // Client hat aufgelegt
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// portFlag baut das uebliche "--port N"-Argumentpaar
func portFlag(port int) []string {
	return []string{"--port", strconv.Itoa(port)}
}
