// Command tablectl is the operator CLI of the reservation service. It
// applies the database schema and mints access tokens for local testing.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tablectl",
	Short: "Operate the table reservation service",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(newMigrateCmd(), newTokenCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
