package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/kandil-code/kandil/internal/cloudsync"
	"github.com/kandil-code/kandil/internal/daemon"
	"github.com/kandil-code/kandil/internal/dashboard"
	"github.com/kandil-code/kandil/internal/memory"
	"github.com/kandil-code/kandil/internal/project"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "sync",
	Short:   "Run the sync daemon with a real-time WebSocket dashboard",
	Long: `Run the background sync daemon together with a WebSocket server
that broadcasts queue activity to connected clients.

WebSocket messages include:
- op_synced: a queued operation reached the remote
- op_failed: a queued operation failed dispatch (it stays queued)
- pass_complete: a full queue pass finished
- stats: cumulative counters since startup

Example usage:
  kandil dashboard                 # Start on default port 8090
  kandil dashboard --port 9000     # Start on custom port

Connect with a WebSocket client:
  ws://localhost:8090/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")

		cfg, st, err := openEnv()
		if err != nil {
			fatal(err)
		}
		defer st.Close()

		server := dashboard.NewServer(&dashboard.Config{
			Port:   port,
			Logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
		})
		if err := server.Start(); err != nil {
			fatal(fmt.Errorf("failed to start dashboard: %w", err))
		}

		handler := dashboard.NewHandler(server, nil)

		// Same wiring as buildSyncer, plus the dashboard hooks.
		creds, err := cfg.ResolveSync()
		if err != nil {
			fatal(err)
		}
		queue := cloudsync.NewQueue(0)
		client := cloudsync.NewClient(creds)
		registry := project.NewRegistry(st)
		memlog := memory.NewLog(st)

		ecfg := cloudsync.DefaultConfig()
		ecfg.Logger = daemonLogger(cfg)
		ecfg.Hooks = handler.Hooks()
		syncer := cloudsync.NewWithConfig(queue, client, registry, memlog, ecfg)

		dcfg := daemon.DefaultConfig()
		dcfg.Logger = ecfg.Logger
		d, err := daemon.NewWithConfig(syncer, st.Path(), dcfg)
		if err != nil {
			fatal(err)
		}

		fmt.Printf("Dashboard server started on http://localhost:%d\n", port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
		fmt.Printf("Health check: http://localhost:%d/health\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signalContext()
		defer cancel()

		if err := d.Start(ctx); err != nil {
			fatal(err)
		}

		fmt.Println("\nShutting down dashboard server...")
		if err := server.Stop(); err != nil {
			fatal(fmt.Errorf("error during shutdown: %w", err))
		}
	},
}

func init() {
	dashboardCmd.Flags().IntP("port", "p", 8090, "Port to listen on")
	rootCmd.AddCommand(dashboardCmd)
}
