// Command kandil manages local project memory and its cloud backup.
//
// All primary operations work against the local SQLite store; the sync
// subcommands reconcile it with the remote backend on a best-effort basis.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kandil-code/kandil/internal/config"
	"github.com/kandil-code/kandil/internal/project"
	"github.com/kandil-code/kandil/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "kandil",
	Short: "Local-first project memory with offline cloud sync",
	Long: `Kandil keeps per-project AI conversation memory in a local SQLite
store and mirrors project metadata (never raw conversation content) to a
remote backend when credentials are configured.

The local store is always authoritative: every command works offline,
and sync is a best-effort background concern.`,
	SilenceUsage: true,
}

func main() {
	// Credentials may live in a .env during development; a missing file
	// is not an error.
	_ = godotenv.Load()

	rootCmd.AddGroup(
		&cobra.Group{ID: "projects", Title: "Project Commands:"},
		&cobra.Group{ID: "memory", Title: "Memory Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openEnv loads configuration and opens the store. Every subcommand
// goes through here so the schema is migrated exactly once per run.
func openEnv() (*config.Config, *store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	st, err := store.Open(cfg.StorePath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	return cfg, st, nil
}

func registryDefaults(cfg *config.Config) project.Defaults {
	return project.Defaults{
		Provider: cfg.ActiveProvider(),
		Model:    cfg.ActiveModel(),
	}
}

// signalContext cancels on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
