// Package cli defines the accountsd command tree.
package cli

import (
	"context"
	"database/sql"

	"github.com/isdelr/ender-accounts-be/internal/config"
	"github.com/isdelr/ender-accounts-be/internal/database"
	"github.com/isdelr/ender-accounts-be/internal/logger"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "accountsd",
		Short:         "Account and session service",
		Long:          `accountsd registers accounts, authenticates sessions and gates account management to admins.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")

	cmd.AddCommand(newServeCmd(&configFile))
	cmd.AddCommand(newMigrateCmd(&configFile))
	cmd.AddCommand(newCreateAdminCmd(&configFile))

	return cmd
}

// bootstrap loads configuration, sets up logging and opens a migrated database.
func bootstrap(ctx context.Context, configFile string) (*config.Config, *sql.DB, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	db, err := database.New(ctx, cfg.Dialect(), cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}

	if err := database.Migrate(ctx, db, cfg.Dialect()); err != nil {
		db.Close()
		return nil, nil, err
	}
	return cfg, db, nil
}
