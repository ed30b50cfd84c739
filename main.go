// main.go - Programmeinstieg der Lemonade-CLI
package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lemonade-sdk/lemonade/cmd"
)

func main() {
	cobra.CheckErr(cmd.NewCLI().ExecuteContext(context.Background()))
}
