// cmd_serve.go - Serve Command
// Hauptfunktionen: RunServer
package cmd

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lemonade-sdk/lemonade/catalog"
	"github.com/lemonade-sdk/lemonade/discover"
	"github.com/lemonade-sdk/lemonade/engines"
	"github.com/lemonade-sdk/lemonade/envconfig"
	"github.com/lemonade-sdk/lemonade/huggingface"
	"github.com/lemonade-sdk/lemonade/logutil"
	"github.com/lemonade-sdk/lemonade/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the gateway server",
		Args:    cobra.ExactArgs(0),
		RunE:    RunServer,
	}
}

// RunServer - Startet den Gateway-Server
func RunServer(cmd *cobra.Command, _ []string) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))

	// Versionswechsel raeumen veraltete Engine-Installationen ab,
	// Registrierung muss vor dem ersten Probe passieren
	discover.OnVersionChange(func(oldVersion string) {
		slog.Info("gateway version changed, removing stale engine installs",
			"old_version", oldVersion)
		engines.CleanStaleInstalls()
	})

	ctx := cmd.Context()
	hw := discover.Probe(ctx)
	for _, probeErr := range hw.Errors {
		slog.Warn("hardware probe incomplete", "error", probeErr)
	}

	catalogPath := filepath.Join(envconfig.CacheDir(), catalog.ServerModelsFile)
	cat, err := catalog.New(catalogPath, hw)
	if err != nil {
		return err
	}

	// FLM verwaltet seine Checkpoints selbst; der Bestand kommt aus
	// der FLM-CLI
	flm := engines.FLMStore{}
	if installed, err := flm.Installed(ctx); err == nil {
		cat.RefreshFLM(installed)
	}

	store := huggingface.NewStore(huggingface.NewClient(), flm)
	srv := server.NewServer(cat, store, hw)

	ln, err := net.Listen("tcp", envconfig.Host().Host)
	if err != nil {
		return err
	}

	err = server.Serve(ctx, srv, ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
