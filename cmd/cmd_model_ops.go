// cmd_model_ops.go - Load, Unload, Delete und Status Commands
// Hauptfunktionen: LoadHandler, UnloadHandler, DeleteHandler, StatusHandler
package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lemonade-sdk/lemonade/api"
)

func newLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load MODEL",
		Short: "Load a model into the scheduler",
		Args:  cobra.ExactArgs(1),
		RunE:  LoadHandler,
	}
	cmd.Flags().StringArray("option", nil, "Recipe option as key=value, repeatable")
	cmd.Flags().Bool("save", false, "Persist the given options for future loads")
	return cmd
}

func newUnloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "unload [MODEL]",
		Aliases: []string{"stop"},
		Short:   "Unload a model, or all models if none is given",
		Args:    cobra.MaximumNArgs(1),
		RunE:    UnloadHandler,
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete MODEL [MODEL...]",
		Aliases: []string{"rm"},
		Short:   "Delete downloaded model files",
		Args:    cobra.MinimumNArgs(1),
		RunE:    DeleteHandler,
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show gateway health",
		Args:  cobra.ExactArgs(0),
		RunE:  StatusHandler,
	}
}

// parseOptions zerlegt wiederholte key=value-Flags
func parseOptions(pairs []string) (api.RecipeOptions, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	options := api.RecipeOptions{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid option %q, expected key=value", pair)
		}
		// Zahlen und Bools typisiert uebergeben, Rest als String
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		options[key] = parsed
	}
	return options, nil
}

// LoadHandler - Laedt ein Model in den Scheduler
func LoadHandler(cmd *cobra.Command, args []string) error {
	client := api.ClientFromEnvironment()

	pairs, _ := cmd.Flags().GetStringArray("option")
	options, err := parseOptions(pairs)
	if err != nil {
		return err
	}
	save, _ := cmd.Flags().GetBool("save")

	if err := client.Load(cmd.Context(), &api.LoadRequest{
		Model:         args[0],
		RecipeOptions: options,
		SaveOptions:   save,
	}); err != nil {
		return err
	}
	fmt.Printf("loaded %s\n", args[0])
	return nil
}

// UnloadHandler - Entlaedt ein Model oder alle
func UnloadHandler(cmd *cobra.Command, args []string) error {
	client := api.ClientFromEnvironment()

	model := ""
	if len(args) == 1 {
		model = args[0]
	}
	if err := client.Unload(cmd.Context(), model); err != nil {
		return err
	}
	if model == "" {
		fmt.Println("unloaded all models")
	} else {
		fmt.Printf("unloaded %s\n", model)
	}
	return nil
}

// DeleteHandler - Loescht Model-Dateien
func DeleteHandler(cmd *cobra.Command, args []string) error {
	client := api.ClientFromEnvironment()

	for _, model := range args {
		if err := client.Delete(cmd.Context(), model); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", model)
	}
	return nil
}

// StatusHandler - Zeigt den Health-Zustand des Gateways
func StatusHandler(cmd *cobra.Command, _ []string) error {
	client := api.ClientFromEnvironment()

	health, err := client.Health(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("status:  %s\n", health.Status)
	fmt.Printf("version: %s\n", health.Version)
	if len(health.AllModelsLoaded) == 0 {
		fmt.Println("loaded:  none")
		return nil
	}
	fmt.Printf("loaded:  %s\n", strings.Join(health.AllModelsLoaded, ", "))
	return nil
}
