package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kandil-code/kandil/internal/cloudsync"
	"github.com/kandil-code/kandil/internal/config"
	"github.com/kandil-code/kandil/internal/daemon"
	"github.com/kandil-code/kandil/internal/memory"
	"github.com/kandil-code/kandil/internal/project"
	"github.com/kandil-code/kandil/internal/store"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Reconcile local state with the remote backend",
	Long: `Mirror project metadata and memory summaries to the remote backend.

Sync requires credentials, resolved from the SUPABASE_URL and
SUPABASE_ANON_KEY environment variables first, then from the config
file. Raw conversation content is never uploaded.`,
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Run one sync pass over all candidates",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st, err := openEnv()
		if err != nil {
			fatal(err)
		}
		defer st.Close()

		syncer, err := buildSyncer(cfg, st, nil)
		if err != nil {
			fatal(err)
		}

		if err := syncer.SyncAll(context.Background()); err != nil {
			fatal(err)
		}

		fmt.Printf("Sync complete (%d operations still pending)\n", syncer.Pending())
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync configuration and candidates",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st, err := openEnv()
		if err != nil {
			fatal(err)
		}
		defer st.Close()

		creds, err := cfg.ResolveSync()
		if err != nil {
			fmt.Printf("Remote: not configured (%v)\n", err)
		} else {
			fmt.Printf("Remote: %s\n", creds.BaseURL)
		}

		registry := project.NewRegistry(st)
		candidates, err := registry.SyncCandidates(context.Background())
		if err != nil {
			fatal(err)
		}

		fmt.Printf("Candidates: %d project(s)\n", len(candidates))
		for _, p := range candidates {
			fmt.Printf("   %s  %s\n", p.ID, p.Name)
		}
	},
}

var syncFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch remote projects and show the merged view",
	Long: `Fetch the remote project list and merge it with local state using
last-write-wins on the last-opened timestamp. The merge is displayed,
not written back; conflicting root paths for the same ID are an error.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st, err := openEnv()
		if err != nil {
			fatal(err)
		}
		defer st.Close()

		syncer, err := buildSyncer(cfg, st, nil)
		if err != nil {
			fatal(err)
		}

		remote, err := syncer.FetchProjects(context.Background())
		if err != nil {
			fatal(err)
		}

		registry := project.NewRegistry(st)
		local, err := registry.List(context.Background())
		if err != nil {
			fatal(err)
		}

		merged, err := cloudsync.MergeProjects(local, remote)
		if err != nil {
			fatal(err)
		}

		fmt.Printf("Remote: %d, local: %d, merged: %d\n", len(remote), len(local), len(merged))
		for _, p := range merged {
			fmt.Printf("   %s  %-20s  %s\n", p.ID, p.Name, p.RootPath)
		}
	},
}

var syncDaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync daemon (foreground)",
	Long: `Watch the local store for writes and sync on a debounce, plus a
periodic pass so retry backoff drains.

Daemon activity is logged to a rotated file under the config directory.
Press Ctrl+C to stop.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st, err := openEnv()
		if err != nil {
			fatal(err)
		}
		defer st.Close()

		logger := daemonLogger(cfg)

		syncer, err := buildSyncer(cfg, st, logger)
		if err != nil {
			fatal(err)
		}

		dcfg := daemon.DefaultConfig()
		dcfg.Logger = logger
		d, err := daemon.NewWithConfig(syncer, st.Path(), dcfg)
		if err != nil {
			fatal(err)
		}

		fmt.Printf("Sync daemon watching %s\n", st.Path())
		fmt.Println("Press Ctrl+C to stop")

		ctx, cancel := signalContext()
		defer cancel()

		if err := d.Start(ctx); err != nil {
			fatal(err)
		}
	},
}

// buildSyncer wires queue, client, and engine from resolved credentials.
// It fails fast when sync is not configured.
func buildSyncer(cfg *config.Config, st *store.Store, logger *log.Logger) (cloudsync.Syncer, error) {
	creds, err := cfg.ResolveSync()
	if err != nil {
		return nil, err
	}

	queue := cloudsync.NewQueue(0)
	client := cloudsync.NewClient(creds)
	registry := project.NewRegistry(st)
	memlog := memory.NewLog(st)

	ecfg := cloudsync.DefaultConfig()
	if logger != nil {
		ecfg.Logger = logger
	}
	return cloudsync.NewWithConfig(queue, client, registry, memlog, ecfg), nil
}

// daemonLogger writes to a size-rotated log file next to the store.
func daemonLogger(cfg *config.Config) *log.Logger {
	return log.New(&lumberjack.Logger{
		Filename:   cfg.LogPath(),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}, "[daemon] ", log.LstdFlags)
}

func init() {
	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncFetchCmd)
	syncCmd.AddCommand(syncDaemonCmd)
	rootCmd.AddCommand(syncCmd)
}
