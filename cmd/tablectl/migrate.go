package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/table-reservation/internal/database"
)

func newMigrateCmd() *cobra.Command {
	var (
		dsn    string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables",
		Long: `Applies the embedded schema. Every statement is idempotent, so migrate
can run on each deploy. Without --dsn the connection is built from
DB_USER, DB_PASS, DB_HOST, DB_PORT and DB_NAME.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				for _, stmt := range database.Statements() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s;\n\n", stmt)
				}
				return nil
			}
			db, err := openDB(dsn)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer db.Close()
			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d statements\n", len(database.Statements()))
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "MySQL DSN (must set parseTime=true)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the statements instead of running them")
	return cmd
}

func openDB(dsn string) (*sql.DB, error) {
	if dsn != "" {
		return database.OpenDSN(dsn)
	}
	return database.Open(os.Getenv("DB_USER"), os.Getenv("DB_PASS"), os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"), os.Getenv("DB_NAME"))
}
