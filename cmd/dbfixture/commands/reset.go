package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/dbfixture/internal/datastore/mongostore"
	"github.com/tphakala/dbfixture/internal/fixture"
	"github.com/tphakala/dbfixture/internal/logger"
)

func newResetCommand(root *options) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every document in the application database",
		Long: `Delete every document from every collection of the application database.
Collections and indexes are kept. The auth database is not touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbURL, err := resolveURL(url, root.settings)
			if err != nil {
				return err
			}

			return withStore(cmd.Context(), root, dbURL, func(ctx context.Context, store mongostore.Store) error {
				database := root.settings.Database
				deleted, err := fixture.CleanDatabase(ctx, store, database)
				if err != nil {
					return err
				}
				root.log.Info("database reset",
					logger.String("database", database),
					logger.Int64("deleted", deleted))
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d documents from %s\n", deleted, database)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "database URL (default: value of the published URL variable)")

	return cmd
}
