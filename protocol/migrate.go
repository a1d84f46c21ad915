package protocol

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/datazip-inc/rwcdc/store"
	"github.com/datazip-inc/rwcdc/utils/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "create the application tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := store.Migrate(ctx, a.db); err != nil {
				return err
			}
			logger.Info("application database is up to date")
			return nil
		})
	},
}
