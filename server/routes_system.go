// routes_system.go - Health, Telemetrie und Log-Level
package server

import (
	"bufio"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/discover"
	"github.com/lemonade-sdk/lemonade/envconfig"
	"github.com/lemonade-sdk/lemonade/logutil"
	"github.com/lemonade-sdk/lemonade/version"
)

func (s *Server) handleHealth(c *gin.Context) {
	loaded := s.sched.LoadedModels()

	resp := api.HealthResponse{
		Status:          "ok",
		Version:         version.Version,
		AllModelsLoaded: make([]string, 0, len(loaded)),
		MaxModels: api.MaxModels{
			LLM:       envconfig.MaxLoadedModels(string(api.ModelTypeLLM)),
			Embedding: envconfig.MaxLoadedModels(string(api.ModelTypeEmbedding)),
			Reranking: envconfig.MaxLoadedModels(string(api.ModelTypeReranking)),
			Audio:     envconfig.MaxLoadedModels(string(api.ModelTypeAudio)),
			Image:     envconfig.MaxLoadedModels(string(api.ModelTypeImage)),
		},
		LogStreaming: api.LogStreaming{SSE: true},
	}
	// model_loaded nennt das juengst benutzte Model
	if len(loaded) > 0 {
		resp.ModelLoaded = loaded[0].Name
	}
	for _, m := range loaded {
		resp.AllModelsLoaded = append(resp.AllModelsLoaded, m.Name)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"loaded_models": s.sched.LoadedModels(),
	})
}

func (s *Server) handleSystemInfo(c *gin.Context) {
	info := s.hw
	if info == nil {
		info = discover.Probe(c.Request.Context())
	}
	c.JSON(http.StatusOK, struct {
		*discover.SystemInfo
		Recipes map[string]discover.RecipeStatus `json:"recipes"`
	}{info, discover.RecipeTable(info)})
}

func (s *Server) handleSystemStats(c *gin.Context) {
	stats := api.SystemStats{
		CPUPercent: discover.CPUPercent(200 * time.Millisecond),
	}
	if total, avail, ok := readMeminfo(); ok {
		stats.MemoryGB = float64(total-avail) / (1024 * 1024)
	}
	stats.GPUPercent, stats.VRAMGB = discover.GPUUtilization()
	c.JSON(http.StatusOK, stats)
}

// readMeminfo liest Gesamt- und verfuegbaren Speicher in KB (Linux)
func readMeminfo() (total, available uint64, ok bool) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = kb
		case "MemAvailable:":
			available = kb
		}
	}
	return total, available, total > 0
}

func (s *Server) handleLogLevel(c *gin.Context) {
	var req api.LogLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, api.ErrInvalidRequest("malformed request body: %v", err))
		return
	}

	level, err := logutil.ParseLevel(req.Level)
	if err != nil {
		abortError(c, api.ErrInvalidRequest("%v", err))
		return
	}
	logutil.SetLevel(level)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "level": strings.ToLower(req.Level)})
}
