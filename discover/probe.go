// probe.go - Hardware-Erkennung mit Cache
//
// Diese Datei enthaelt:
// - Probe: einmalige, tolerante Erkennung aller Geraete-Kategorien
// - Cache in hardware_info.json, gueltig pro Gateway-Version
// - Versions-Hooks zum Aufraeumen veralteter Artefakte
package discover

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lemonade-sdk/lemonade/envconfig"
	"github.com/lemonade-sdk/lemonade/version"
)

const hardwareCacheName = "hardware_info.json"

var (
	probeOnce sync.Once
	probed    *SystemInfo

	hooksMu      sync.Mutex
	versionHooks []func(oldVersion string)
)

// OnVersionChange registriert einen Hook, der beim ersten Probe nach
// einem Versionswechsel laeuft. Engines raeumen darueber veraltete
// Binary-Installationen auf.
func OnVersionChange(fn func(oldVersion string)) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	versionHooks = append(versionHooks, fn)
}

// Probe gibt die erkannte Hardware zurueck. Die Erkennung laeuft genau
// einmal pro Prozess; das Ergebnis wird in hardware_info.json
// zwischengespeichert und bei unveraenderter Version wiederverwendet.
func Probe(ctx context.Context) *SystemInfo {
	probeOnce.Do(func() {
		cachePath := filepath.Join(envconfig.CacheDir(), hardwareCacheName)

		if cached := readCached(cachePath); cached != nil {
			if cached.Version == version.Version {
				slog.Debug("using cached hardware info", "path", cachePath)
				probed = cached
				return
			}
			slog.Info("gateway version changed, re-probing hardware",
				"old", cached.Version, "new", version.Version)
			runVersionHooks(cached.Version)
		}

		start := time.Now()
		probed = probeAll(ctx)
		slog.Info("hardware discovery finished", "duration", time.Since(start),
			"gpus", len(probed.GPUs), "npu", probed.NPU.Available)

		writeCached(cachePath, probed)
	})
	return probed
}

func runVersionHooks(oldVersion string) {
	hooksMu.Lock()
	hooks := append([]func(string){}, versionHooks...)
	hooksMu.Unlock()
	for _, fn := range hooks {
		fn(oldVersion)
	}
}

func readCached(path string) *SystemInfo {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var info SystemInfo
	if err := json.Unmarshal(data, &info); err != nil {
		slog.Warn("discarding malformed hardware cache", "path", path, "error", err)
		return nil
	}
	return &info
}

func writeCached(path string, info *SystemInfo) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		slog.Warn("cannot create cache directory", "error", err)
		return
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Warn("cannot write hardware cache", "path", path, "error", err)
	}
}

// probeAll erkennt jede Kategorie unabhaengig. Ein Fehler einer
// Kategorie landet in Errors und laesst die uebrigen unberuehrt.
func probeAll(ctx context.Context) *SystemInfo {
	info := &SystemInfo{
		Version: version.Version,
		OS:      runtime.GOOS,
		Errors:  map[string]string{},
	}

	if err := probeCPU(&info.CPU); err != nil {
		slog.Warn("cpu probe failed", "error", err)
		info.Errors["cpu"] = err.Error()
	}

	gpus, err := probeGPUs(ctx)
	if err != nil {
		slog.Warn("gpu probe failed", "error", err)
		info.Errors["gpu"] = err.Error()
	}
	info.GPUs = gpus

	npu, err := probeNPU(info.CPU.Family)
	if err != nil {
		slog.Warn("npu probe failed", "error", err)
		info.Errors["npu"] = err.Error()
	}
	info.NPU = npu

	if len(info.Errors) == 0 {
		info.Errors = nil
	}
	return info
}

func probeCPU(cpu *CPUInfo) error {
	cpu.Cores = runtime.NumCPU()
	cpu.Architecture = runtime.GOARCH

	switch runtime.GOOS {
	case "linux":
		if name, err := linuxCPUName(); err == nil {
			cpu.Name = name
		}
		if ram, err := linuxTotalRAMMB(); err == nil {
			cpu.TotalRAMMB = ram
		}
	case "darwin":
		if out, err := exec.Command("sysctl", "-n", "machdep.cpu.brand_string").Output(); err == nil {
			cpu.Name = strings.TrimSpace(string(out))
		}
		if out, err := exec.Command("sysctl", "-n", "hw.memsize").Output(); err == nil {
			if bytes, err := strconv.ParseUint(strings.TrimSpace(string(out)), 10, 64); err == nil {
				cpu.TotalRAMMB = bytes / (1024 * 1024)
			}
		}
	case "windows":
		cpu.Name = os.Getenv("PROCESSOR_IDENTIFIER")
	}

	cpu.Family = classifyProcessor(cpu.Name)
	return nil
}

func linuxCPUName() (string, error) {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "model name") {
			if _, value, ok := strings.Cut(line, ":"); ok {
				return strings.TrimSpace(value), nil
			}
		}
	}
	return "", scanner.Err()
}

func linuxTotalRAMMB() (uint64, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "MemTotal:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				kb, err := strconv.ParseUint(fields[1], 10, 64)
				if err != nil {
					return 0, err
				}
				return kb / 1024, nil
			}
		}
	}
	return 0, scanner.Err()
}

// probeGPUs fragt Vendor-Tools ab. Fehlende Tools sind kein Fehler,
// sie bedeuten nur: keine GPU dieses Vendors.
func probeGPUs(ctx context.Context) ([]GPUInfo, error) {
	var gpus []GPUInfo

	if runtime.GOOS == "darwin" {
		// Apple Silicon: unified memory zaehlt als GPU-Pool
		if ram, err := exec.Command("sysctl", "-n", "hw.memsize").Output(); err == nil {
			if bytes, err := strconv.ParseUint(strings.TrimSpace(string(ram)), 10, 64); err == nil {
				gpus = append(gpus, GPUInfo{
					Name:       "Apple Silicon",
					Vendor:     "apple",
					VRAMMB:     bytes / (1024 * 1024),
					Integrated: true,
					DriverOK:   true,
				})
			}
		}
		return gpus, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, "nvidia-smi",
		"--query-gpu=name,memory.total", "--format=csv,noheader,nounits").Output()
	if err == nil {
		for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
			name, mem, ok := strings.Cut(line, ",")
			if !ok {
				continue
			}
			vram, _ := strconv.ParseUint(strings.TrimSpace(mem), 10, 64)
			gpus = append(gpus, GPUInfo{
				Name:     strings.TrimSpace(name),
				Vendor:   "nvidia",
				VRAMMB:   vram,
				DriverOK: true,
			})
		}
	}

	gpus = append(gpus, amdGPUs()...)
	return gpus, nil
}

// amdGPUs liest AMD-GPUs aus sysfs (Linux)
func amdGPUs() []GPUInfo {
	if runtime.GOOS != "linux" {
		return nil
	}
	matches, _ := filepath.Glob("/sys/class/drm/card*/device/mem_info_vram_total")
	var gpus []GPUInfo
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		bytes, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			continue
		}
		gpu := GPUInfo{
			Name:     "AMD GPU",
			Vendor:   "amd",
			VRAMMB:   bytes / (1024 * 1024),
			DriverOK: true,
		}
		// GTT ist der von der GPU adressierbare Systemspeicher
		gttPath := filepath.Join(filepath.Dir(path), "mem_info_gtt_total")
		if data, err := os.ReadFile(gttPath); err == nil {
			if gtt, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64); err == nil {
				gpu.GTTMB = gtt / (1024 * 1024)
			}
		}
		gpus = append(gpus, gpu)
	}
	return gpus
}

// probeNPU leitet die NPU-Verfuegbarkeit aus der Prozessor-Familie und
// dem Treiber-Zustand ab
func probeNPU(family ProcessorFamily) (NPUInfo, error) {
	if envconfig.SkipProcessorCheck() {
		return NPUInfo{Available: true, Detail: "processor check skipped"}, nil
	}
	if !family.HasNPU() {
		return NPUInfo{Available: false, Detail: "processor has no supported NPU"}, nil
	}

	switch runtime.GOOS {
	case "windows":
		// Die NPU-Runtime selbst prueft die Treiber-Mindestversion
		// beim Engine-Start; hier reicht die Familie
		return NPUInfo{Available: true}, nil
	case "linux":
		if _, err := os.Stat("/dev/accel/accel0"); err == nil {
			return NPUInfo{Available: true}, nil
		}
		return NPUInfo{Available: false, Detail: "no accel device node"}, nil
	default:
		return NPUInfo{Available: false, Detail: "NPU not supported on " + runtime.GOOS}, nil
	}
}
