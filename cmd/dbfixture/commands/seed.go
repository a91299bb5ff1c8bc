package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/dbfixture/internal/datastore/mongostore"
	"github.com/tphakala/dbfixture/internal/fixture"
	"github.com/tphakala/dbfixture/internal/logger"
)

func newSeedCommand(root *options) *cobra.Command {
	var url, key string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the admin API key into a running database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if key == "" {
				return fixture.ErrEmptyKey
			}
			dbURL, err := resolveURL(url, root.settings)
			if err != nil {
				return err
			}

			return withStore(cmd.Context(), root, dbURL, func(ctx context.Context, store mongostore.Store) error {
				s := root.settings
				if err := fixture.SeedAuth(ctx, store, s.AuthDatabase, s.AuthCollection, key); err != nil {
					return err
				}
				root.log.Info("seeded auth record",
					logger.String("database", s.AuthDatabase),
					logger.String("collection", s.AuthCollection))
				fmt.Fprintf(cmd.OutOrStdout(), "seeded key with %d roles\n", len(fixture.AuthRoles()))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "database URL (default: value of the published URL variable)")
	cmd.Flags().StringVar(&key, "key", "", "API key to seed")

	return cmd
}

// withStore connects to url, runs fn and disconnects.
func withStore(ctx context.Context, root *options, url string, fn func(context.Context, mongostore.Store) error) error {
	store, err := mongostore.Connect(ctx, url, mongostore.Options{
		PingTimeout: root.settings.PingTimeout.Std(),
		AppName:     "dbfixture-cli",
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Disconnect(context.Background()); err != nil {
			root.log.Warn("failed to disconnect", logger.Error(err))
		}
	}()

	return fn(ctx, store)
}
