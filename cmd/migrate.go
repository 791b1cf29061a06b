/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lostfound/apiserver/internal/db"
	"github.com/lostfound/apiserver/internal/migration"
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the Postgres schema and import snapshots",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations to DATABASE_URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if err := db.MigrateURL(cfg.Database.URL); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		logger.Info("schema up to date")
		return nil
	},
}

var importFrom string

var migrateImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy every item from a snapshot file into DATABASE_URL",
	Long: `Copy every item from a snapshot file into DATABASE_URL.

Rows are inserted in batches of 500, one transaction per batch. Items whose
id already exists are skipped, so the command can be rerun safely.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if strings.TrimSpace(cfg.Database.URL) == "" {
			return errors.New("set DATABASE_URL to run the import")
		}

		source := importFrom
		if source == "" {
			source = cfg.Database.SnapshotFile
		}

		res, err := migration.Run(cmd.Context(), source, cfg.Database.URL, logger.Named("migration"))
		logger.Info("import finished",
			zap.String("source", source),
			zap.Int("read", res.Read),
			zap.Int("inserted", res.Inserted),
			zap.Int("skipped", res.Skipped),
			zap.Int("batches", res.Batches))
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateImportCmd)

	migrateImportCmd.Flags().StringVar(&importFrom, "from", "", "snapshot file to read (default: DB_FILE)")
}
