// cmd_list.go - List und PS Commands
// Hauptfunktionen: ListHandler, ListRunningHandler
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/format"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list [PREFIX]",
		Aliases: []string{"ls"},
		Short:   "List catalog models",
		Args:    cobra.MaximumNArgs(1),
		RunE:    ListHandler,
	}
	cmd.Flags().Bool("all", false, "Include models unsupported on this system")
	return cmd
}

func newPsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "List loaded models",
		Args:  cobra.ExactArgs(0),
		RunE:  ListRunningHandler,
	}
}

// renderTable gibt Zeilen im buendigen Vier-Spalten-Stil aus
func renderTable(header []string, data [][]string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

// ListHandler - Listet die Katalog-Modelle auf
func ListHandler(cmd *cobra.Command, args []string) error {
	client := api.ClientFromEnvironment()

	showAll, _ := cmd.Flags().GetBool("all")
	models, err := client.List(cmd.Context(), showAll)
	if err != nil {
		return err
	}

	var data [][]string
	for _, m := range models.Data {
		if len(args) == 1 && !strings.HasPrefix(strings.ToLower(m.ID), strings.ToLower(args[0])) {
			continue
		}

		size := "-"
		if m.Size > 0 {
			size = format.HumanBytes(int64(m.Size * 1e9))
		}
		downloaded := ""
		if m.Downloaded {
			downloaded = "yes"
		}

		data = append(data, []string{m.ID, string(m.Recipe), size, downloaded})
	}

	renderTable([]string{"NAME", "RECIPE", "SIZE", "DOWNLOADED"}, data)
	return nil
}

// ListRunningHandler - Listet die geladenen Modelle auf
func ListRunningHandler(cmd *cobra.Command, _ []string) error {
	client := api.ClientFromEnvironment()

	loaded, err := client.Stats(cmd.Context())
	if err != nil {
		return err
	}

	var data [][]string
	for _, m := range loaded {
		data = append(data, []string{
			m.Name,
			string(m.Recipe),
			m.Device,
			format.HumanTime(m.LastUsed, "Never"),
		})
	}

	renderTable([]string{"NAME", "RECIPE", "DEVICE", "LAST USED"}, data)

	if len(loaded) == 0 {
		fmt.Fprintln(os.Stderr, "no models loaded")
	}
	return nil
}
