package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daydemir/agentcore/internal/config"
	"github.com/daydemir/agentcore/internal/display"
	"github.com/daydemir/agentcore/internal/llm"
	"github.com/daydemir/agentcore/internal/supervisor"
	"github.com/daydemir/agentcore/internal/types"
)

var resumeWorkspace string

var resumeCmd = &cobra.Command{
	Use:   "resume <goal>",
	Short: "Resume the most recent resumable checkpoint for a goal",
	Long: `Resume looks up the most recent checkpoint whose resume key
matches the workspace and goal and continues
that run instead of starting from iteration zero.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		goal := args[0]
		for _, a := range args[1:] {
			goal += " " + a
		}

		workspace := resumeWorkspace
		if workspace == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			workspace = cwd
		}

		cfg, err := config.Load(workspace)
		if err != nil {
			return err
		}

		req := types.RunRequest{
			Goal:                     goal,
			Workspace:                workspace,
			ExecutionMode:            types.ExecutionMode(cfg.Run.ExecutionMode),
			ResumeFromLastCheckpoint: true,
			VerificationCommands:     cfg.Verification.ToTypeCommands(),
			Model:                    cfg.LLM.Model,
		}
		req = req.ApplyDefaults()
		if err := req.Validate(); err != nil {
			return err
		}

		disp := display.NewWithOptions(noColor)
		disp.Resume(fmt.Sprintf("resuming %q in %s", goal, workspace))

		backend := llm.NewHTTPBackend(cfg.LLM.BaseURL, cfg.LLM.APIKey)
		sup := &supervisor.Supervisor{Backend: backend, Hooks: disp.EngineHooks()}

		result, err := sup.Run(context.Background(), req)
		if err != nil {
			return err
		}

		printResult(disp, result)
		if result.Status != types.StatusCompleted {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	resumeCmd.Flags().StringVar(&resumeWorkspace, "workspace", "", "workspace directory (default: current directory)")
	rootCmd.AddCommand(resumeCmd)
}
