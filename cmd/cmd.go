// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, versionHandler
package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/lemonade-sdk/lemonade/api"
	"github.com/lemonade-sdk/lemonade/version"
)

// versionHandler zeigt Client- und, wenn erreichbar, Server-Version
func versionHandler(cmd *cobra.Command, _ []string) {
	cmd.Printf("lemonade version %s\n", version.Version)

	client := api.ClientFromEnvironment()
	if serverVersion, err := client.Version(cmd.Context()); err == nil && serverVersion != version.Version {
		cmd.Printf("Warning: client version is %s, server is running %s\n",
			version.Version, serverVersion)
	}
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "lemonade",
		Short:         "Local OpenAI-compatible inference gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				versionHandler(cmd, args)
				return
			}
			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	rootCmd.AddCommand(
		newServeCmd(),
		newPullCmd(),
		newListCmd(),
		newPsCmd(),
		newLoadCmd(),
		newUnloadCmd(),
		newDeleteCmd(),
		newStatusCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Args:  cobra.ExactArgs(0),
			Run:   versionHandler,
		},
	)

	return rootCmd
}
