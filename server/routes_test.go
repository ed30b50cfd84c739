// routes_test.go - Tests fuer die HTTP-Oberflaeche
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/engines"
)

// testServer baut einen Server mit Fake-Engines ueber dem Test-Katalog
func testServer(t *testing.T, disableFilter bool) (*Server, *recorder) {
	t.Helper()
	cat, hw := serverTestCatalog(t, disableFilter)

	rec := &recorder{failures: map[string][]error{}}
	sched := NewScheduler(cat, nil)
	sched.newEngine = func(entry api.ModelEntry, opts api.RecipeOptions) (engines.Engine, error) {
		return &fakeEngine{model: entry.Name, recipe: entry.Recipe, rec: rec}, nil
	}
	sched.maxLoaded = func(string) int { return 1 }

	return &Server{sched: sched, catalog: cat, hw: hw}, rec
}

func doRequest(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// envelope entspricht der Fehler-Antwortstruktur
type envelope struct {
	Error struct {
		Message        string        `json:"message"`
		Type           string        `json:"type"`
		Code           api.ErrorCode `json:"code"`
		RequestedModel string        `json:"requested_model"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding error envelope: %v (body %q)", err, w.Body.String())
	}
	return env
}

func TestVersionEndpoint(t *testing.T) {
	srv, _ := testServer(t, true)
	w := doRequest(t, srv.GenerateRoutes(), http.MethodGet, "/api/version", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["version"] == "" {
		t.Error("version field missing")
	}
}

func TestHealthReportsLoadedModels(t *testing.T) {
	srv, _ := testServer(t, true)
	if _, err := srv.sched.EnsureLoaded(context.Background(), "llm-a", nil); err != nil {
		t.Fatal(err)
	}

	w := doRequest(t, srv.GenerateRoutes(), http.MethodGet, "/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp api.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.ModelLoaded != "llm-a" {
		t.Errorf("model_loaded = %q, want llm-a", resp.ModelLoaded)
	}
	if len(resp.AllModelsLoaded) != 1 || resp.AllModelsLoaded[0] != "llm-a" {
		t.Errorf("all_models_loaded = %v", resp.AllModelsLoaded)
	}
	if resp.MaxModels.LLM == 0 {
		t.Error("max_models.llm missing")
	}
}

func TestModelListFiltering(t *testing.T) {
	srv, _ := testServer(t, false)
	r := srv.GenerateRoutes()

	listNames := func(path string) map[string]bool {
		w := doRequest(t, r, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var list api.ModelList
		if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
			t.Fatal(err)
		}
		out := map[string]bool{}
		for _, m := range list.Data {
			out[m.ID] = true
		}
		return out
	}

	// Ohne NPU erscheint das NPU-Model in keiner Sicht
	got := listNames("/v1/models")
	if got["llm-npu"] {
		t.Error("NPU model visible without NPU hardware")
	}
	if !got["llm-a"] {
		t.Error("downloaded model missing from list")
	}
	// Nicht heruntergeladene Eintraege nur mit show_all
	if got["llm-remote"] {
		t.Error("not-downloaded model visible without show_all")
	}

	all := listNames("/v1/models?show_all=true")
	if !all["llm-remote"] {
		t.Error("show_all should include not-downloaded models")
	}
	if all["llm-npu"] {
		t.Error("filtered model must stay hidden even with show_all")
	}

	// Direkter Zugriff auf ein gefiltertes Model nennt den Grund
	w := doRequest(t, r, http.MethodGet, "/v1/models/llm-npu", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Error.Code != api.CodeModelNotSupported {
		t.Errorf("code = %q, want model_not_supported", env.Error.Code)
	}
}

func TestInferenceUnknownModel(t *testing.T) {
	srv, _ := testServer(t, true)
	w := doRequest(t, srv.GenerateRoutes(), http.MethodPost,
		"/v1/chat/completions", `{"model":"nope","messages":[]}`)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Error.Code != api.CodeModelNotFound {
		t.Errorf("code = %q, want model_not_found", env.Error.Code)
	}
	if env.Error.RequestedModel != "nope" {
		t.Errorf("requested_model = %q, want nope", env.Error.RequestedModel)
	}
}

func TestInferenceMissingModelField(t *testing.T) {
	srv, _ := testServer(t, true)
	w := doRequest(t, srv.GenerateRoutes(), http.MethodPost,
		"/v1/chat/completions", `{"messages":[]}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Error.Code != api.CodeInvalidRequest {
		t.Errorf("code = %q, want invalid_request_error", env.Error.Code)
	}
}

func TestUnsupportedOperation(t *testing.T) {
	srv, _ := testServer(t, true)
	// Die Fake-Engine implementiert kein Faehigkeits-Interface
	w := doRequest(t, srv.GenerateRoutes(), http.MethodPost,
		"/v1/embeddings", `{"model":"embed-a","input":"hello"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Error.Code != api.CodeUnsupportedOperation {
		t.Errorf("code = %q, want unsupported_operation", env.Error.Code)
	}
}

func TestChatRejectsNonLLM(t *testing.T) {
	srv, _ := testServer(t, true)
	w := doRequest(t, srv.GenerateRoutes(), http.MethodPost,
		"/v1/chat/completions", `{"model":"embed-a","messages":[]}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Error.Code != api.CodeInvalidRequest {
		t.Errorf("code = %q, want invalid_request_error", env.Error.Code)
	}
}

func TestSystemInfoIncludesRecipeTable(t *testing.T) {
	srv, _ := testServer(t, true)
	w := doRequest(t, srv.GenerateRoutes(), http.MethodGet, "/api/v1/system-info", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		OS      string `json:"os"`
		Recipes map[string]struct {
			Supported bool   `json:"supported"`
			Reason    string `json:"reason"`
		} `json:"recipes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.OS == "" {
		t.Error("os field missing from snapshot")
	}
	if _, ok := resp.Recipes["llamacpp"]; !ok {
		t.Error("recipes table missing llamacpp entry")
	}
}

func TestAuthMiddleware(t *testing.T) {
	t.Setenv("LEMONADE_API_KEY", "secret")
	srv, _ := testServer(t, true)
	r := srv.GenerateRoutes()

	w := doRequest(t, r, http.MethodGet, "/v1/models", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Error.Code != api.CodeInvalidRequest {
		t.Errorf("code = %q, want invalid_request_error", env.Error.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authorized request: status = %d, want 200", rec.Code)
	}

	// Die Versionsabfrage bleibt ohne Key erreichbar
	if w := doRequest(t, r, http.MethodGet, "/api/version", ""); w.Code != http.StatusOK {
		t.Errorf("/api/version: status = %d, want 200", w.Code)
	}
}

func TestUnknownEndpointEnvelope(t *testing.T) {
	srv, _ := testServer(t, true)
	w := doRequest(t, srv.GenerateRoutes(), http.MethodGet, "/v1/does-not-exist", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Error.Code != api.CodeNotFound {
		t.Errorf("code = %q, want not_found", env.Error.Code)
	}
}

func TestDeleteMissingModel(t *testing.T) {
	srv, _ := testServer(t, true)
	w := doRequest(t, srv.GenerateRoutes(), http.MethodPost,
		"/v1/delete", `{"model":"user.ghost"}`)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Error.Code != api.CodeModelNotFound {
		t.Errorf("code = %q, want model_not_found", env.Error.Code)
	}
}

func TestLoadAndUnloadEndpoints(t *testing.T) {
	srv, rec := testServer(t, true)
	r := srv.GenerateRoutes()

	w := doRequest(t, r, http.MethodPost, "/v1/load", `{"model":"llm-a"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("load: status = %d, body %s", w.Code, w.Body.String())
	}
	if loads := rec.loaded(); len(loads) != 1 || loads[0] != "llm-a" {
		t.Fatalf("loads = %v, want [llm-a]", loads)
	}

	// Unload ohne Model entlaedt alles
	w = doRequest(t, r, http.MethodPost, "/v1/unload", "")
	if w.Code != http.StatusOK {
		t.Fatalf("unload: status = %d", w.Code)
	}
	if got := srv.sched.LoadedModels(); len(got) != 0 {
		t.Errorf("models still resident after unload: %v", got)
	}

	// Gezieltes Unload eines nicht residenten Models
	w = doRequest(t, r, http.MethodPost, "/v1/unload", `{"model":"llm-a"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unload not resident: status = %d, want 404", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Error.Code != api.CodeModelNotLoaded {
		t.Errorf("code = %q, want model_not_loaded", env.Error.Code)
	}
}
