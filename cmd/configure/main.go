package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/taskpanel/taskpanel/cmd/configure/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "taskpanel-configure",
		Short: "Configuration tool for the Task Panel API",
		Long:  "CLI tool for configuring OIDC providers, CORS and rate limits",
	}

	rootCmd.AddCommand(commands.NewOIDCCmd())
	rootCmd.AddCommand(commands.NewListCmd())
	rootCmd.AddCommand(commands.NewTestCmd())
	rootCmd.AddCommand(commands.NewCorsCmd())
	rootCmd.AddCommand(commands.NewRatelimitCmd())
	rootCmd.AddCommand(commands.NewApplyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
