// stats.go - Live-Auslastung fuer die Telemetrie-Endpoints
//
// Diese Datei enthaelt:
// - CPUPercent: CPU-Last ueber ein kurzes Sample-Fenster (procfs)
// - GPUUtilization: Busy-Prozent und belegtes VRAM aus sysfs (amdgpu)
package discover

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// CPUPercent sampelt die Gesamt-CPU-Last ueber das Fenster. Auf
// Systemen ohne /proc/stat ist das Ergebnis 0.
func CPUPercent(window time.Duration) float64 {
	busy1, total1, ok := readCPUTicks()
	if !ok {
		return 0
	}
	time.Sleep(window)
	busy2, total2, ok := readCPUTicks()
	if !ok || total2 <= total1 {
		return 0
	}
	return float64(busy2-busy1) / float64(total2-total1) * 100
}

// readCPUTicks liest die aggregierte cpu-Zeile aus /proc/stat
func readCPUTicks() (busy, total uint64, ok bool) {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return 0, 0, false
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		for i, field := range fields[1:] {
			ticks, err := strconv.ParseUint(field, 10, 64)
			if err != nil {
				continue
			}
			total += ticks
			// Felder 4 und 5 sind idle und iowait
			if i != 3 && i != 4 {
				busy += ticks
			}
		}
		return busy, total, true
	}
	return 0, 0, false
}

// GPUUtilization liest die hoechste Busy-Quote und die Summe des
// belegten VRAMs aller amdgpu-Karten. Ohne sysfs bleiben beide 0.
func GPUUtilization() (busyPercent, vramUsedGB float64) {
	if runtime.GOOS != "linux" {
		return 0, 0
	}
	matches, _ := filepath.Glob("/sys/class/drm/card*/device/gpu_busy_percent")
	for _, path := range matches {
		if busy, ok := readSysfsUint(path); ok && float64(busy) > busyPercent {
			busyPercent = float64(busy)
		}
		usedPath := filepath.Join(filepath.Dir(path), "mem_info_vram_used")
		if used, ok := readSysfsUint(usedPath); ok {
			vramUsedGB += float64(used) / (1 << 30)
		}
	}
	return busyPercent, vramUsedGB
}

func readSysfsUint(path string) (uint64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
