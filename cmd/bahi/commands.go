package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bahikhata/bahikhata/internal/ledger"
	"github.com/bahikhata/bahikhata/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the database schema to the current version",
	Long: `Apply all pending schema migrations.

Migrations are additive and idempotent; a database at any prior version
(or a fresh file) ends up with an identical current-version schema.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		s, err := store.Open(cfg.DBPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		ctx := context.Background()
		before, err := s.SchemaVersion(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading schema version: %v\n", err)
			os.Exit(1)
		}

		if err := s.Migrate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error migrating schema: %v\n", err)
			os.Exit(1)
		}

		if before == store.CurrentSchemaVersion {
			fmt.Printf("Schema already at v%d\n", before)
			return
		}
		fmt.Printf("Schema migrated v%d -> v%d\n", before, store.CurrentSchemaVersion)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and sync bookkeeping status",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		s, err := store.Open(cfg.DBPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		ctx := context.Background()
		version, err := s.SchemaVersion(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading schema version: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Database: %s\n", s.Path())
		fmt.Printf("Schema:   v%d (current v%d)\n", version, store.CurrentSchemaVersion)

		if version < store.CurrentSchemaVersion {
			fmt.Println("Run 'bahi migrate' to upgrade")
			return
		}

		deviceID, err := s.DeviceID(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading device id: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Device:   %s\n", deviceID)

		counts, err := s.CountUnsynced(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error counting unsynced rows: %v\n", err)
			os.Exit(1)
		}

		total := 0
		fmt.Println("Unsynced:")
		for _, kind := range ledger.Kinds {
			fmt.Printf("  %-15s %d\n", kind, counts[kind])
			total += counts[kind]
		}
		if total == 0 {
			fmt.Println("Everything synced")
		}
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge stale, fully-synced demand batches",
	Long: `Delete demand batches that are closed, fully synced and older than
the configured cleanup age, along with their demand rows. Financial
records are never purged.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		s, err := store.Open(cfg.DBPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		ctx := context.Background()
		if err := s.Migrate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error migrating schema: %v\n", err)
			os.Exit(1)
		}

		purged, err := s.PurgeStale(ctx, cfg.CleanupAge)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error purging stale records: %v\n", err)
			os.Exit(1)
		}
		appLogger(cfg).Printf("Purged %d stale demand batches (older than %s)", purged, cfg.CleanupAge)
	},
}
