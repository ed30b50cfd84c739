// cmd_pull.go - Pull Command mit Fortschrittsanzeige
// Hauptfunktionen: PullHandler
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/format"
)

func newPullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull MODEL",
		Short: "Download a model from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE:  PullHandler,
	}
	cmd.Flags().String("checkpoint", "", "Checkpoint for a new user.<name> model")
	cmd.Flags().String("recipe", "", "Recipe for a new user.<name> model")
	cmd.Flags().String("mmproj", "", "Multimodal projector file for a new user.<name> model")
	return cmd
}

// PullHandler - Laedt ein Model herunter
func PullHandler(cmd *cobra.Command, args []string) error {
	client := api.ClientFromEnvironment()

	checkpoint, _ := cmd.Flags().GetString("checkpoint")
	recipe, _ := cmd.Flags().GetString("recipe")
	mmproj, _ := cmd.Flags().GetString("mmproj")

	req := &api.PullRequest{
		Model:      args[0],
		Checkpoint: checkpoint,
		Recipe:     api.Recipe(recipe),
		MMProj:     mmproj,
	}

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	var lastFile string

	err := client.Pull(cmd.Context(), req, func(p api.PullProgress) error {
		switch p.Status {
		case "complete":
			if interactive && lastFile != "" {
				fmt.Println()
			}
			fmt.Printf("pulled %s\n", p.Model)
		case "progress":
			if !interactive {
				return nil
			}
			if p.File != lastFile && lastFile != "" {
				fmt.Println()
			}
			lastFile = p.File
			fmt.Printf("\r%s [%d/%d] %3.0f%% (%s / %s)    ",
				p.File, p.FileIndex, p.TotalFiles, p.Percent,
				format.HumanBytes(p.BytesDownloaded), format.HumanBytes(p.BytesTotal))
		}
		return nil
	})
	if err != nil {
		if interactive && lastFile != "" {
			fmt.Println()
		}
		return err
	}
	return nil
}
