package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kandil-code/kandil/internal/project"
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	GroupID: "projects",
	Short:   "Manage the local project registry",
	Long: `Manage the registry of projects known to kandil.

Each project is identified by its canonical root path. Opening a path
that is not yet registered creates it with the configured AI defaults.`,
}

var projectsOpenCmd = &cobra.Command{
	Use:   "open [path]",
	Short: "Register a project root (or touch an existing one)",
	Long: `Register the given directory (default: current directory) as a
project, or update its last-opened timestamp if it already exists.

The project ID is derived from the canonical path, so opening the same
directory twice always yields the same project.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "."
		if len(args) == 1 {
			path = args[0]
		}

		cfg, st, err := openEnv()
		if err != nil {
			fatal(err)
		}
		defer st.Close()

		registry := project.NewRegistry(st)
		p, err := registry.GetOrCreate(context.Background(), path, registryDefaults(cfg))
		if err != nil {
			fatal(err)
		}

		fmt.Printf("Project: %s\n", p.Name)
		fmt.Printf("   ID: %s\n", p.ID)
		fmt.Printf("   Root: %s\n", p.RootPath)
		fmt.Printf("   Provider: %s (%s)\n", p.AIProvider, p.AIModel)
	},
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered projects",
	Run: func(cmd *cobra.Command, args []string) {
		_, st, err := openEnv()
		if err != nil {
			fatal(err)
		}
		defer st.Close()

		registry := project.NewRegistry(st)
		projects, err := registry.List(context.Background())
		if err != nil {
			fatal(err)
		}

		if len(projects) == 0 {
			fmt.Println("No projects registered. Run 'kandil projects open <path>' first.")
			return
		}

		for _, p := range projects {
			opened := "never"
			if p.LastOpened != nil {
				opened = p.LastOpened.Format("2006-01-02 15:04")
			}
			memory := "memory on"
			if !p.MemoryEnabled {
				memory = "memory off"
			}
			fmt.Printf("%s  %-20s  %s  (opened: %s, %s)\n", p.ID, p.Name, p.RootPath, opened, memory)
		}
	},
}

var projectsSwitchCmd = &cobra.Command{
	Use:   "switch <id>",
	Short: "Switch to a project and print its AI settings",
	Long: `Mark the project as the active one and print the provider, model,
and root path a caller needs to resume work in it.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, st, err := openEnv()
		if err != nil {
			fatal(err)
		}
		defer st.Close()

		registry := project.NewRegistry(st)
		provider, model, rootPath, err := registry.Switch(context.Background(), args[0])
		if err != nil {
			fatal(err)
		}

		fmt.Printf("Switched to %s\n", args[0])
		fmt.Printf("   Root: %s\n", rootPath)
		fmt.Printf("   Provider: %s\n", provider)
		fmt.Printf("   Model: %s\n", model)
	},
}

var projectsForgetCmd = &cobra.Command{
	Use:   "forget <id>",
	Short: "Stop tracking memory for a project",
	Long: `Disable memory for a project. The project row and its existing
records stay in the local store, but it no longer appears in listings
and is excluded from sync passes.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, st, err := openEnv()
		if err != nil {
			fatal(err)
		}
		defer st.Close()

		registry := project.NewRegistry(st)
		if err := registry.SoftDelete(context.Background(), args[0]); err != nil {
			fatal(err)
		}

		fmt.Printf("Project %s forgotten (records retained locally)\n", args[0])
	},
}

var projectsInfoCmd = &cobra.Command{
	Use:   "info <id>",
	Short: "Show details for one project",
	Run: func(cmd *cobra.Command, args []string) {
		_, st, err := openEnv()
		if err != nil {
			fatal(err)
		}
		defer st.Close()

		registry := project.NewRegistry(st)
		p, err := registry.Get(context.Background(), args[0])
		if err != nil {
			fatal(err)
		}

		fmt.Printf("Project: %s\n", p.Name)
		fmt.Printf("   ID: %s\n", p.ID)
		fmt.Printf("   Root: %s\n", p.RootPath)
		fmt.Printf("   Provider: %s (%s)\n", p.AIProvider, p.AIModel)
		fmt.Printf("   Created: %s\n", p.CreatedAt.Format(time.RFC3339))
		if p.LastOpened != nil {
			fmt.Printf("   Last opened: %s\n", p.LastOpened.Format(time.RFC3339))
		}
		if !p.MemoryEnabled {
			fmt.Fprintln(os.Stdout, "   Memory: disabled")
		}
	},
}

func init() {
	projectsCmd.AddCommand(projectsOpenCmd)
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsSwitchCmd)
	projectsCmd.AddCommand(projectsForgetCmd)
	projectsCmd.AddCommand(projectsInfoCmd)
	rootCmd.AddCommand(projectsCmd)
}
