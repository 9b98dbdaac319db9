package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func newCheckDatabaseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "check-database",
		Aliases: []string{"check"},
		Short:   "Check the integrity of the database",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.databasePath()
			db, err := openSignalDB(path)
			if err != nil {
				return err
			}
			defer db.Close()
			return runDatabaseCheck(cmd.Context(), db, cmd.OutOrStdout())
		},
	}
}

// runDatabaseCheck prints every finding and fails if there are any.
func runDatabaseCheck(ctx context.Context, q sqlQueryer, w io.Writer) error {
	findings, err := checkDatabase(ctx, q)
	if err != nil {
		return err
	}
	for _, f := range findings {
		fmt.Fprintln(w, f)
	}
	if len(findings) > 0 {
		return fmt.Errorf("database check found %d problems", len(findings))
	}
	log.Info("database check passed")
	return nil
}
