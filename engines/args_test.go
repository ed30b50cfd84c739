// args_test.go - Tests fuer custom_args-Parsing und reservierte Flags
package engines

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lemonade-sdk/lemonade/api"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"einfach", "--flag value", []string{"--flag", "value"}},
		{"mehrfach-whitespace", "  --a   --b  ", []string{"--a", "--b"}},
		{"doppelte anfuehrungszeichen", `--prompt "hello world"`, []string{"--prompt", "hello world"}},
		{"einfache anfuehrungszeichen", "--prompt 'a b'", []string{"--prompt", "a b"}},
		{"leer", "", nil},
		{"gleichheitszeichen", "--ctx=4096", []string{"--ctx=4096"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitArgs(tt.input)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SplitArgs(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}

	if _, err := SplitArgs(`--prompt "unterminated`); err == nil {
		t.Error("unterminated quote should fail")
	}
}

func TestCustomArgsReservedFlags(t *testing.T) {
	for _, raw := range []string{"--port 9999", "-m /tmp/evil.gguf", "--model=x"} {
		_, err := customArgs(api.RecipeLlamaCPP, api.RecipeOptions{"custom_args": raw})
		var apiErr *api.Error
		if !errors.As(err, &apiErr) || apiErr.Code != api.CodeInvalidRequest {
			t.Errorf("customArgs(%q) should reject reserved flag, got %v", raw, err)
		}
	}

	args, err := customArgs(api.RecipeLlamaCPP, api.RecipeOptions{"custom_args": "--temp 0.5 --top-k 40"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"--temp", "0.5", "--top-k", "40"}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Errorf("customArgs mismatch (-want +got):\n%s", diff)
	}
}

func TestRewriteJSONMaxTokens(t *testing.T) {
	body := []byte(`{"model":"x","max_completion_tokens":128}`)
	out, err := rewriteJSON(body, func(m map[string]any) {
		if v, ok := m["max_completion_tokens"]; ok {
			m["max_tokens"] = v
			delete(m, "max_completion_tokens")
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if !strings.Contains(s, `"max_tokens":128`) || strings.Contains(s, "max_completion_tokens") {
		t.Errorf("unexpected rewrite result: %s", s)
	}
}

func TestParsePercent(t *testing.T) {
	if pct, ok := parsePercent("downloading model.bin  42% 12MB/s"); !ok || pct != 42 {
		t.Errorf("parsePercent = %v, %v", pct, ok)
	}
	if _, ok := parsePercent("no percentage here"); ok {
		t.Error("expected no percent match")
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"32.0.203.237", "32.0.203.237", 0},
		{"32.0.203.240", "32.0.203.237", 1},
		{"31.9.999.999", "32.0.203.237", -1},
		{"32.0.203", "32.0.203.1", -1},
	}
	for _, tt := range tests {
		if got := compareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
