// Package cli is the workorders command line: the HTTP server and a few
// offline commands against the local store.
package cli

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/alexanderramin/workorders/internal/config"
	"github.com/alexanderramin/workorders/internal/db"
	"github.com/alexanderramin/workorders/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootOptions carries the settings shared by every subcommand. Flags are
// bound onto v so they override the config file and environment.
type rootOptions struct {
	v          *viper.Viper
	configFile string
}

// NewRootCmd creates the top-level "workorders" command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{v: config.New()}

	root := &cobra.Command{
		Use:           "workorders",
		Short:         "Work plan and work order service for lab processes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default ./workorders.yaml)")
	flags.String("db", "", "path to the work order database")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	_ = opts.v.BindPFlag("db_path", flags.Lookup("db"))
	_ = opts.v.BindPFlag("log_level", flags.Lookup("log-level"))

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newCatalogueCmd(opts),
		newPlanCmd(opts),
	)
	return root
}

// load resolves the configuration and a logger writing to the command's
// error stream.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.v, o.configFile)
	if err != nil {
		return nil, nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cmd.ErrOrStderr(), level, cfg.LogFormat), nil
}

func openStore(cfg *config.Config) (*sql.DB, error) {
	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return database, nil
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			database, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			logger.Info("schema_migrated", "db_path", cfg.DBPath)
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s is up to date.\n", cfg.DBPath)
			return nil
		},
	}
}
