// config_test.go - Tests fuer die Konfigurations-Accessoren
package envconfig

import (
	"log/slog"
	"testing"

	"github.com/lemonade-sdk/lemonade/logutil"
)

func TestHost(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  string
	}{
		{"Default", "", "http://127.0.0.1:8000"},
		{"NurPort", "127.0.0.1:11434", "http://127.0.0.1:11434"},
		{"NurHost", "0.0.0.0", "http://0.0.0.0:8000"},
		{"MitScheme", "http://example.com", "http://example.com:80"},
		{"HTTPS", "https://example.com", "https://example.com:443"},
		{"UngueltigerPort", "127.0.0.1:zz", "http://127.0.0.1:8000"},
		{"MitQuotes", `"1.2.3.4:8080"`, "http://1.2.3.4:8080"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("LEMONADE_HOST", tc.value)
			if got := Host().String(); got != tc.want {
				t.Errorf("Host() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMaxLoadedModels(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		t.Setenv("LEMONADE_MAX_LOADED_MODELS", "")
		if got := MaxLoadedModels("llm"); got != 1 {
			t.Errorf("got %d, want 1", got)
		}
	})
	t.Run("Global", func(t *testing.T) {
		t.Setenv("LEMONADE_MAX_LOADED_MODELS", "3")
		if got := MaxLoadedModels("embedding"); got != 3 {
			t.Errorf("got %d, want 3", got)
		}
	})
	t.Run("TypGewinntUeberGlobal", func(t *testing.T) {
		t.Setenv("LEMONADE_MAX_LOADED_MODELS", "3")
		t.Setenv("LEMONADE_MAX_LLM_MODELS", "2")
		if got := MaxLoadedModels("llm"); got != 2 {
			t.Errorf("got %d, want 2", got)
		}
	})
	t.Run("Unbegrenzt", func(t *testing.T) {
		t.Setenv("LEMONADE_MAX_AUDIO_MODELS", "-1")
		if got := MaxLoadedModels("audio"); got != -1 {
			t.Errorf("got %d, want -1", got)
		}
	})
}

func TestEngineBin(t *testing.T) {
	t.Setenv("LEMONADE_LLAMACPP_BIN", "/opt/llama/llama-server")
	t.Setenv("LEMONADE_LLAMACPP_VULKAN_BIN", "/opt/llama-vulkan/llama-server")
	t.Setenv("LEMONADE_SD_CPP_BIN", "/opt/sd/sd-server")

	if got := EngineBin("llamacpp", "vulkan"); got != "/opt/llama-vulkan/llama-server" {
		t.Errorf("backend override: got %q", got)
	}
	if got := EngineBin("llamacpp", "cpu"); got != "/opt/llama/llama-server" {
		t.Errorf("recipe fallback: got %q", got)
	}
	// Bindestriche im Recipe-Namen werden zu Unterstrichen
	if got := EngineBin("sd-cpp", ""); got != "/opt/sd/sd-server" {
		t.Errorf("dash normalization: got %q", got)
	}
	if got := EngineBin("kokoro", ""); got != "" {
		t.Errorf("unset: got %q, want empty", got)
	}
}

func TestLogLevel(t *testing.T) {
	cases := []struct {
		value string
		want  slog.Level
	}{
		{"", slog.LevelInfo},
		{"0", slog.LevelInfo},
		{"1", slog.LevelDebug},
		{"true", slog.LevelDebug},
		{"2", logutil.LevelTrace},
	}
	for _, tc := range cases {
		t.Setenv("LEMONADE_DEBUG", tc.value)
		if got := LogLevel(); got != tc.want {
			t.Errorf("LEMONADE_DEBUG=%q: got %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestVar(t *testing.T) {
	t.Setenv("LEMONADE_TEST_VAR", `  "quoted value"  `)
	if got := Var("LEMONADE_TEST_VAR"); got != "quoted value" {
		t.Errorf("Var() = %q, want %q", got, "quoted value")
	}
}
