// client.go - HTTP-Client fuer das Lemonade Gateway
//
// Package api implementiert die Client-Seite der Gateway-API.
// Die CLI benutzt dieses Package um mit einem laufenden Server
// zu sprechen; die Typen entsprechen den /api/v1-Endpoints.
package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/lemonade-sdk/lemonade/envconfig"
	"github.com/lemonade-sdk/lemonade/version"
)

// Client kapselt den Zustand fuer die Kommunikation mit dem Gateway.
// Mit [ClientFromEnvironment] erstellen.
type Client struct {
	base *url.URL
	http *http.Client
}

// ClientFromEnvironment erstellt einen Client aus LEMONADE_HOST
func ClientFromEnvironment() *Client {
	return &Client{
		base: envconfig.Host(),
		http: http.DefaultClient,
	}
}

// NewClient erstellt einen Client mit expliziter Basis-URL
func NewClient(base *url.URL, httpClient *http.Client) *Client {
	return &Client{base: base, http: httpClient}
}

func checkError(resp *http.Response, body []byte) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	var envelope ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		return envelope.Error
	}

	// Keine Envelope dekodierbar, gesamten Body als Nachricht verwenden
	return NewError(CodeInternalError, strings.TrimSpace(string(body)))
}

func (c *Client) do(ctx context.Context, method, path string, reqData, respData any) error {
	var reqBody io.Reader
	if reqData != nil {
		data, err := json.Marshal(reqData)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reqBody)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", fmt.Sprintf("lemonade/%s", version.Version))
	if key := envconfig.APIKey(); key != "" {
		request.Header.Set("Authorization", "Bearer "+key)
	}

	response, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	respBody, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if err := checkError(response, respBody); err != nil {
		return err
	}

	if respData != nil {
		return json.Unmarshal(respBody, respData)
	}
	return nil
}

// stream fuehrt einen SSE-Request aus und ruft fn pro data:-Zeile auf
func (c *Client) stream(ctx context.Context, method, path string, reqData any, fn func([]byte) error) error {
	var reqBody io.Reader
	if reqData != nil {
		data, err := json.Marshal(reqData)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reqBody)
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "text/event-stream")
	if key := envconfig.APIKey(); key != "" {
		request.Header.Set("Authorization", "Bearer "+key)
	}

	response, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(response.Body)
		return checkError(response, body)
	}

	scanner := bufio.NewScanner(response.Body)
	scanner.Buffer(make([]byte, 0, 512*1024), 512*1024)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok || data == "" {
			continue
		}
		if data == "[DONE]" {
			break
		}
		if err := fn([]byte(data)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Health ruft GET /api/v1/health auf
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Version ruft GET /api/version auf
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp struct {
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

// List ruft GET /api/v1/models auf
func (c *Client) List(ctx context.Context, showAll bool) (*ModelList, error) {
	path := "/api/v1/models"
	if showAll {
		path += "?show_all=true"
	}
	var resp ModelList
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Show ruft GET /api/v1/models/{id} auf
func (c *Client) Show(ctx context.Context, name string) (*OpenAIModel, error) {
	var resp OpenAIModel
	if err := c.do(ctx, http.MethodGet, "/api/v1/models/"+url.PathEscape(name), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats ruft GET /api/v1/stats auf und gibt die residenten Models
// zurueck, juengst benutzte zuerst
func (c *Client) Stats(ctx context.Context) ([]LoadedModel, error) {
	var resp struct {
		LoadedModels []LoadedModel `json:"loaded_models"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/stats", nil, &resp); err != nil {
		return nil, err
	}
	return resp.LoadedModels, nil
}

// Pull laedt ein Model herunter und meldet Fortschritt ueber fn
func (c *Client) Pull(ctx context.Context, req *PullRequest, fn ProgressFunc) error {
	req.Stream = true
	return c.stream(ctx, http.MethodPost, "/api/v1/pull", req, func(data []byte) error {
		var progress PullProgress
		if err := json.Unmarshal(data, &progress); err != nil {
			return err
		}
		if progress.Status == "error" {
			return NewError(CodeInternalError, progress.Error)
		}
		return fn(progress)
	})
}

// Load laedt ein Model explizit in den Scheduler
func (c *Client) Load(ctx context.Context, req *LoadRequest) error {
	return c.do(ctx, http.MethodPost, "/api/v1/load", req, nil)
}

// Unload entlaedt ein Model (leerer Name: alle)
func (c *Client) Unload(ctx context.Context, model string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/unload", &UnloadRequest{Model: model}, nil)
}

// Delete loescht die Dateien eines Models und entlaedt es
func (c *Client) Delete(ctx context.Context, model string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/delete", &DeleteRequest{Model: model}, nil)
}
