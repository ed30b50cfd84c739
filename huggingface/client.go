// client.go - HTTP-Client fuer den Repository-Host
//
// Diese Datei enthaelt:
// - Client: Metadaten-Query (Revision + Dateiliste), Tree-Query (Groessen)
// - Resumable Downloads nach <datei>.partial mit Range-Requests
// - Retry mit begrenztem exponentiellen Backoff und Low-Speed-Watchdog
package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/version"
)

// Download-Parameter
const (
	DefaultHubURL = "https://huggingface.co"

	maxAttempts    = 10
	backoffInitial = 2 * time.Second
	backoffCap     = 120 * time.Second
	connectTimeout = 60 * time.Second

	// Watchdog: unter 1 KB/s ueber 60 s gilt die Verbindung als tot
	lowSpeedLimit  = 1024
	lowSpeedWindow = 60 * time.Second
)

// Fehler-Definitionen
var (
	ErrRepoNotFound = errors.New("repository not found")
	ErrUnauthorized = errors.New("authentication failed")
	errLowSpeed     = errors.New("transfer stalled below speed limit")
)

// RepoFile ist eine Datei im Repository
type RepoFile struct {
	Path string
	Size int64
}

// RepoInfo enthaelt Revision und Dateiliste eines Repositories
type RepoInfo struct {
	SHA   string
	Files []RepoFile
}

// Paths gibt die Pfade aller Dateien zurueck
func (r *RepoInfo) Paths() []string {
	paths := make([]string, len(r.Files))
	for i, f := range r.Files {
		paths[i] = f.Path
	}
	return paths
}

// SizeOf gibt die deklarierte Groesse einer Datei zurueck (0 = unbekannt)
func (r *RepoInfo) SizeOf(path string) int64 {
	for _, f := range r.Files {
		if f.Path == path {
			return f.Size
		}
	}
	return 0
}

// Has prueft ob das Repository eine Datei enthaelt
func (r *RepoInfo) Has(path string) bool {
	for _, f := range r.Files {
		if f.Path == path {
			return true
		}
	}
	return false
}

// Client ist der Client fuer den Repository-Host
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	userAgent  string
}

// NewClient erstellt einen Client. Token aus HF_TOKEN, Endpoint aus
// HF_ENDPOINT, Connect-Timeout 60 s.
func NewClient() *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
	}
	c := &Client{
		httpClient: &http.Client{Transport: transport},
		baseURL:    DefaultHubURL,
		userAgent:  "lemonade/" + version.Version,
	}
	if token := os.Getenv(EnvHFToken); token != "" {
		c.token = token
	}
	if endpoint := os.Getenv(EnvHFEndpoint); endpoint != "" {
		c.baseURL = strings.TrimSuffix(endpoint, "/")
	}
	return c
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) handleStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return nil
	case http.StatusNotFound:
		return ErrRepoNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

// apiModelInfo ist die Antwort der Metadaten-Query
type apiModelInfo struct {
	SHA      string `json:"sha"`
	Siblings []struct {
		Filename string `json:"rfilename"`
	} `json:"siblings"`
}

// apiTreeEntry ist ein Eintrag der Tree-Query
type apiTreeEntry struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// RepoInfo fragt Revision, Dateiliste und Groessen ab.
// Metadaten- und Tree-Query laufen parallel.
func (c *Client) RepoInfo(ctx context.Context, repoID string) (*RepoInfo, error) {
	var info apiModelInfo
	var tree []apiTreeEntry

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.getJSON(gctx, fmt.Sprintf("%s/api/models/%s", c.baseURL, repoID), &info)
	})
	g.Go(func() error {
		// Groessen sind optional; ein Fehler der Tree-Query ist nicht fatal
		url := fmt.Sprintf("%s/api/models/%s/tree/main?recursive=true", c.baseURL, repoID)
		if err := c.getJSON(gctx, url, &tree); err != nil {
			tree = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sizes := make(map[string]int64, len(tree))
	for _, entry := range tree {
		if entry.Type == "file" {
			sizes[entry.Path] = entry.Size
		}
	}

	out := &RepoInfo{SHA: info.SHA}
	for _, s := range info.Siblings {
		out.Files = append(out.Files, RepoFile{Path: s.Filename, Size: sizes[s.Filename]})
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.handleStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// FileURL gibt die Download-URL einer Datei zurueck
func (c *Client) FileURL(repoID, revision, filename string) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s", c.baseURL, repoID, revision, filename)
}

// DownloadFile laedt eine Datei resumable nach dest. Der Transfer geht
// nach dest.partial und wird bei Erfolg umbenannt. progress wird pro
// Chunk mit der Chunk-Groesse aufgerufen; ein Fehler-Rueckgabewert
// bricht sofort ab (kein Retry), die Partial-Datei bleibt liegen.
func (c *Client) DownloadFile(ctx context.Context, url, dest string, progress func(int64) error) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffInitial << (attempt - 1)
			if delay > backoffCap {
				delay = backoffCap
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.downloadOnce(ctx, url, dest, progress)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, api.ErrCancelled), errors.Is(err, context.Canceled):
			return err
		case errors.Is(err, ErrRepoNotFound), errors.Is(err, ErrUnauthorized):
			return err
		default:
			lastErr = err
		}
	}
	return fmt.Errorf("download failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) downloadOnce(ctx context.Context, url, dest string, progress func(int64) error) error {
	partial := dest + PartialSuffix

	var existingSize int64
	if stat, err := os.Stat(partial); err == nil {
		existingSize = stat.Size()
	}

	// Eigener Context damit der Watchdog den Transfer abbrechen kann
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	if existingSize > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", existingSize))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK && existingSize > 0 {
		// Server unterstuetzt kein Range, von vorne beginnen. Die
		// bereits als Fortschritt gemeldeten Partial-Bytes werden
		// zurueckgenommen, sonst zaehlt der Neustart doppelt.
		if progress != nil {
			if err := progress(-existingSize); err != nil {
				return err
			}
		}
		existingSize = 0
		os.Remove(partial)
	} else if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		// Partial ist bereits vollstaendig
		return os.Rename(partial, dest)
	} else if err := c.handleStatus(resp); err != nil {
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE
	if existingSize > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(partial, flags, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	// Low-Speed-Watchdog
	var received atomic.Int64
	stalled := make(chan struct{})
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		ticker := time.NewTicker(lowSpeedWindow)
		defer ticker.Stop()
		var prev int64
		for {
			select {
			case <-watchdogDone:
				return
			case <-ticker.C:
				cur := received.Load()
				if cur-prev < lowSpeedLimit*int64(lowSpeedWindow/time.Second) {
					close(stalled)
					cancel()
					return
				}
				prev = cur
			}
		}
	}()

	buf := make([]byte, 1024*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := file.Write(buf[:n]); werr != nil {
				return werr
			}
			received.Add(int64(n))
			if progress != nil {
				if perr := progress(int64(n)); perr != nil {
					return fmt.Errorf("%w: %v", api.ErrCancelled, perr)
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			select {
			case <-stalled:
				return errLowSpeed
			default:
			}
			return err
		}
	}

	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(partial, dest)
}
