// support_test.go - Tests fuer den Hardware-Filter
package discover

import (
	"runtime"
	"testing"

	"github.com/lemonade-sdk/lemonade/api"
)

func entryFor(recipe api.Recipe, sizeGB float64) api.ModelEntry {
	return api.ModelEntry{
		Name:   "test",
		Recipe: recipe,
		Device: recipe.DeviceClass(),
		SizeGB: sizeGB,
	}
}

func TestSupportedNPURecipes(t *testing.T) {
	noNPU := &SystemInfo{OS: runtime.GOOS, CPU: CPUInfo{TotalRAMMB: 32 * 1024}}

	for _, recipe := range []api.Recipe{api.RecipeRyzenAILLM, api.RecipeFLM} {
		ok, reason := Supported(noNPU, entryFor(recipe, 1))
		if ok {
			t.Errorf("%s should be unsupported without NPU", recipe)
		}
		if reason == "" {
			t.Errorf("%s: expected a human readable reason", recipe)
		}
	}
}

func TestSupportedSizeLimit(t *testing.T) {
	info := &SystemInfo{
		OS:  runtime.GOOS,
		CPU: CPUInfo{TotalRAMMB: 10 * 1024}, // 10 GB RAM, Limit 8 GB
	}

	if ok, _ := Supported(info, entryFor(api.RecipeLlamaCPP, 4)); !ok {
		t.Error("4 GB model should fit into 8 GB limit")
	}
	if ok, reason := Supported(info, entryFor(api.RecipeLlamaCPP, 12)); ok {
		t.Error("12 GB model should not fit into 8 GB limit")
	} else if reason == "" {
		t.Error("expected a reason for the size rejection")
	}

	// Ein grosser GPU-Pool hebt das Limit an
	info.GPUs = []GPUInfo{{Name: "big", VRAMMB: 24 * 1024, DriverOK: true}}
	if ok, _ := Supported(info, entryFor(api.RecipeLlamaCPP, 12)); !ok {
		t.Error("12 GB model should fit into a 24 GB GPU pool")
	}
}

func TestSupportedFilterBypass(t *testing.T) {
	t.Setenv("LEMONADE_DISABLE_MODEL_FILTERING", "1")
	noNPU := &SystemInfo{OS: runtime.GOOS, CPU: CPUInfo{TotalRAMMB: 1024}}

	if ok, _ := Supported(noNPU, entryFor(api.RecipeRyzenAILLM, 100)); !ok {
		t.Error("filtering bypass should accept everything")
	}
}

func TestClassifyProcessor(t *testing.T) {
	tests := []struct {
		name string
		want ProcessorFamily
	}{
		{"AMD Ryzen AI 9 HX 370", FamilyStrixPoint},
		{"AMD Ryzen AI Max+ 395", FamilyStrixHalo},
		{"AMD Ryzen 7 8845HS", FamilyHawkPoint},
		{"AMD Ryzen 7 8840U", FamilyHawkPoint},
		{"AMD Ryzen 7 7840U", FamilyPhoenix},
		{"AMD Ryzen 9 7940HS", FamilyPhoenix},
		// Dragon Range endet auf 45 HX und hat keine NPU
		{"AMD Ryzen 9 7945HX", FamilyUnknown},
		{"Intel Core i7-12700", FamilyUnknown},
	}
	for _, tt := range tests {
		if got := classifyProcessor(tt.name); got != tt.want {
			t.Errorf("classifyProcessor(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
