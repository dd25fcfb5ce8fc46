package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kandil-code/kandil/internal/memory"
	"github.com/kandil-code/kandil/internal/project"
)

var memoryCmd = &cobra.Command{
	Use:     "memory",
	GroupID: "memory",
	Short:   "Inspect and move per-project conversation memory",
	Long: `Work with the rolling conversation log kept for each project.

The log is bounded: only the most recent entries are retained per
project, and raw content never leaves the local store except through
an explicit export.`,
}

var memoryShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Print recent conversation context",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		_, st, err := openEnv()
		if err != nil {
			fatal(err)
		}
		defer st.Close()

		memlog := memory.NewLog(st)
		lines, err := memlog.RecentContext(context.Background(), args[0], limit)
		if err != nil {
			fatal(err)
		}

		if len(lines) == 0 {
			fmt.Println("No memory recorded for this project.")
			return
		}
		for _, line := range lines {
			fmt.Println(line)
		}
	},
}

var memoryAddCmd = &cobra.Command{
	Use:   "add <project-id> <role> <content>",
	Short: "Append an interaction to a project's log",
	Long: `Append one interaction. Role must be "user" or "assistant".
Appending prunes the log to the retention bound in the same transaction.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		_, st, err := openEnv()
		if err != nil {
			fatal(err)
		}
		defer st.Close()

		// Verify the project exists first so typos surface as a clear
		// not-found error rather than an orphaned row rejection.
		registry := project.NewRegistry(st)
		if _, err := registry.Get(context.Background(), args[0]); err != nil {
			fatal(err)
		}

		memlog := memory.NewLog(st)
		if err := memlog.Append(context.Background(), args[0], memory.Role(args[1]), args[2], nil); err != nil {
			fatal(err)
		}
	},
}

var memoryExportCmd = &cobra.Command{
	Use:   "export <project-id>",
	Short: "Export a project's full log as JSONL to stdout",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, st, err := openEnv()
		if err != nil {
			fatal(err)
		}
		defer st.Close()

		memlog := memory.NewLog(st)
		records, err := memlog.All(context.Background(), args[0])
		if err != nil {
			fatal(err)
		}

		if err := memory.ExportJSONL(os.Stdout, records); err != nil {
			fatal(err)
		}
	},
}

var memoryImportCmd = &cobra.Command{
	Use:   "import <project-id>",
	Short: "Import JSONL records from stdin into a project's log",
	Long: `Read JSONL records from stdin and append them to the project's
log in one transaction. A malformed line aborts the whole import. The
log is pruned to the retention bound afterwards.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, st, err := openEnv()
		if err != nil {
			fatal(err)
		}
		defer st.Close()

		memlog := memory.NewLog(st)
		n, err := memlog.ImportJSONL(context.Background(), args[0], os.Stdin)
		if err != nil {
			fatal(err)
		}

		fmt.Printf("Imported %d records\n", n)
	},
}

func init() {
	memoryShowCmd.Flags().IntP("limit", "n", 20, "Number of recent interactions to show")

	memoryCmd.AddCommand(memoryShowCmd)
	memoryCmd.AddCommand(memoryAddCmd)
	memoryCmd.AddCommand(memoryExportCmd)
	memoryCmd.AddCommand(memoryImportCmd)
	rootCmd.AddCommand(memoryCmd)
}
