// Command bahi manages the local bahikhata ledger database.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/bahikhata/bahikhata/internal/config"
	"github.com/bahikhata/bahikhata/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "bahi",
	Short: "Offline-first ledger store management",
	Long: `bahi manages the local bahikhata ledger database.

The database is an embedded SQLite file holding clients, products, stock,
bills, ledger entries and demand planning data. A host application keeps
it reconciled with the remote store; this tool covers local maintenance:
schema migration, sync status inspection, and stale-record cleanup.`,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.AddCommand(migrateCmd, statusCmd, cleanupCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration honoring the --config flag.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// appLogger builds the maintenance logger, writing to the rotated app log
// when one is configured so the host application sees what this tool did.
func appLogger(cfg *config.Config) *log.Logger {
	if cfg.LogFile != "" {
		return logging.NewFile("[bahi] ", cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	}
	return logging.New("[bahi] ")
}
