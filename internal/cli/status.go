package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/daydemir/agentcore/internal/checkpoint"
)

var statusWorkspace string

var statusCmd = &cobra.Command{
	Use:   "status <runId>",
	Short: "Show a run's checkpointed progress",
	Long: `Show the checkpointed state of one run: its status, iteration
count, file/command budgets consumed, and the change journal, loaded
straight from the Checkpoint Store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runId := args[0]

		workspace := statusWorkspace
		if workspace == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			workspace = cwd
		}

		store := checkpoint.NewStore(workspace)
		cp, err := store.Load(runId)
		if err != nil {
			return fmt.Errorf("cannot load checkpoint %s: %w", runId, err)
		}

		bold := color.New(color.Bold).SprintFunc()
		dim := color.New(color.FgHiBlack).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()

		fmt.Printf("%s\n%s\n\n", bold(cp.RunId), dim(fmt.Sprintf("resume key: %s", cp.ResumeKey)))
		fmt.Printf("Goal:   %s\n", cp.Goal)
		fmt.Printf("Status: %s\n", cp.Status)
		fmt.Printf("Steps:  %d\n", len(cp.Steps))
		fmt.Printf("Files changed:   %d (writes used: %d)\n", len(cp.ChangedFiles), cp.FileWriteCount)
		fmt.Printf("Commands run:    %d\n", cp.CommandRunCount)

		passed := 0
		for _, c := range cp.VerificationChecks {
			if c.Ok {
				passed++
			}
		}
		if len(cp.VerificationChecks) > 0 {
			fmt.Printf("Verification:    %d/%d passed\n", passed, len(cp.VerificationChecks))
		}

		if len(cp.ChangeJournal) > 0 {
			fmt.Println()
			fmt.Println(bold("Change journal:"))
			for _, e := range cp.ChangeJournal {
				fmt.Printf("  %s %s %s\n", green(e.Op), e.Path, dim(e.Timestamp.Format("15:04:05")))
			}
		}

		if len(cp.ClarificationQuestions) > 0 {
			fmt.Println()
			fmt.Println(bold("Outstanding clarification questions:"))
			for _, q := range cp.ClarificationQuestions {
				fmt.Printf("  - %s\n", q)
			}
		}

		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusWorkspace, "workspace", "", "workspace directory (default: current directory)")
	rootCmd.AddCommand(statusCmd)
}
