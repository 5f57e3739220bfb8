package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/socialrelay/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/socialrelay/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/socialrelay/internal/config"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	Long: `Applies pending schema migrations to the configured store.

The sqlite store is also migrated automatically when it is opened. For
postgres, --down rolls back every migration.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "roll back all migrations (postgres only)")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := appConfig
	if err := cfg.ValidateStorage(); err != nil {
		return err
	}

	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		if migrateDown {
			return fmt.Errorf("--down is not supported for sqlite; remove the database file instead")
		}
		store, err := sqlite.NewStore(cfg.Storage.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()
		v, err := store.Version(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("sqlite schema at version %d (%s)\n", v, store.Path())
		return nil

	case config.DriverPostgres:
		store, err := postgres.Open(cmd.Context(), cfg.Storage.PostgresDSN, postgres.Options{LogSQL: cfg.Log.Verbose})
		if err != nil {
			return err
		}
		defer store.Close()
		if migrateDown {
			if err := store.MigrateDown(); err != nil {
				return err
			}
			cmd.Println("postgres migrations rolled back")
			return nil
		}
		v, err := store.Migrate()
		if err != nil {
			return err
		}
		cmd.Printf("postgres schema at version %d\n", v)
		return nil

	default:
		cmd.Printf("storage driver %q has no schema\n", cfg.Storage.Driver)
		return nil
	}
}
