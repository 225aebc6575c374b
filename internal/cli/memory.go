package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/daydemir/agentcore/internal/memory"
	"github.com/daydemir/agentcore/internal/types"
)

var (
	memoryWorkspace string
	memoryQuery     string
	memoryTopK      int
	memoryOutFile   string
	memoryInFile    string
	memoryMode      string
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect or transfer a workspace's long-term memory",
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List or query memory entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws := memoryWorkspaceOrCwd()
		store := memory.NewStore(ws)

		if memoryQuery == "" {
			f, err := store.Export()
			if err != nil {
				return err
			}
			printEntries(f.Entries)
			return nil
		}

		result, err := store.Retrieve(memory.Query{Text: memoryQuery, TopK: memoryTopK, MaxChars: 0})
		if err != nil {
			return err
		}
		printEntries(result.Entries)
		if result.RequiresVerificationBeforeMutation {
			color.New(color.FgYellow).Println("! conflicting entries found; verify before trusting a mutation on this topic")
		}
		for _, c := range result.Conflicts {
			fmt.Printf("  conflict: %s vs %s (%s)\n", c.EntryA, c.EntryB, c.Reason)
		}
		return nil
	},
}

var memoryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the memory store as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws := memoryWorkspaceOrCwd()
		store := memory.NewStore(ws)
		f, err := store.Export()
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return err
		}
		if memoryOutFile == "" {
			fmt.Println(string(data))
			return nil
		}
		return os.WriteFile(memoryOutFile, data, 0o644)
	},
}

var memoryImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import entries into the memory store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if memoryInFile == "" {
			return fmt.Errorf("--file is required")
		}
		data, err := os.ReadFile(memoryInFile)
		if err != nil {
			return err
		}
		var f types.MemoryStoreFile
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("invalid memory export: %w", err)
		}

		ws := memoryWorkspaceOrCwd()
		store := memory.NewStore(ws)
		if err := store.Import(&f, memoryMode); err != nil {
			return err
		}
		fmt.Printf("imported %d entries (mode: %s)\n", len(f.Entries), memoryMode)
		return nil
	},
}

func memoryWorkspaceOrCwd() string {
	if memoryWorkspace != "" {
		return memoryWorkspace
	}
	cwd, err := os.Getwd()
	if err != nil {
		exitError(err.Error())
	}
	return cwd
}

func printEntries(entries []types.MemoryEntry) {
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.FgHiBlack).SprintFunc()
	for _, e := range entries {
		pinned := ""
		if e.Pinned {
			pinned = " [pinned]"
		}
		fmt.Printf("%s %s%s\n", bold(e.Title), dim(fmt.Sprintf("(%s)", e.Type)), pinned)
		fmt.Printf("  %s\n", e.Content)
		fmt.Printf("  %s\n", dim(fmt.Sprintf("success=%.2f confidence=%.2f used=%d", e.SuccessScore, e.ConfidenceScore, e.UseCount)))
		fmt.Println()
	}
}

func init() {
	memoryCmd.PersistentFlags().StringVar(&memoryWorkspace, "workspace", "", "workspace directory (default: current directory)")

	memoryListCmd.Flags().StringVar(&memoryQuery, "query", "", "retrieve entries relevant to this text instead of listing all")
	memoryListCmd.Flags().IntVar(&memoryTopK, "top", 8, "max entries to return for --query")
	memoryCmd.AddCommand(memoryListCmd)

	memoryExportCmd.Flags().StringVar(&memoryOutFile, "out", "", "write JSON to this file instead of stdout")
	memoryCmd.AddCommand(memoryExportCmd)

	memoryImportCmd.Flags().StringVar(&memoryInFile, "file", "", "JSON file previously produced by 'memory export'")
	memoryImportCmd.Flags().StringVar(&memoryMode, "mode", "merge", "import mode: merge or replace")
	memoryCmd.AddCommand(memoryImportCmd)

	rootCmd.AddCommand(memoryCmd)
}
