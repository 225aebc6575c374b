package cli

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daydemir/agentcore/internal/config"
	"github.com/daydemir/agentcore/internal/display"
	"github.com/daydemir/agentcore/internal/llm"
	"github.com/daydemir/agentcore/internal/supervisor"
	"github.com/daydemir/agentcore/internal/types"
)

var (
	runWorkspace     string
	runExecutionMode string
	runMaxIterations int
	runStrict        bool
	runAutoFix       bool
	runDryRun        bool
	runNoRollback    bool
	runModel         string
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Start a new run against a workspace",
	Long: `Start a new autonomous run: agentcore decides actions, executes
them inside a sandbox, verifies the result, and checkpoints progress.

Both modes run under the Supervisor, which drives the Iteration Engine
across recovery cycles. This command wires no multi-agent runner, so
multi mode (the default) also runs the Iteration Engine.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		goal := strings.Join(args, " ")

		workspace := runWorkspace
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
			Goal:                 goal,
			Workspace:            workspace,
			ExecutionMode:        types.ExecutionMode(cfg.Run.ExecutionMode),
			MaxIterations:        cfg.Run.MaxIterations,
			MaxFileWrites:        cfg.Run.MaxFileWrites,
			MaxCommandRuns:       cfg.Run.MaxCommandRuns,
			TeamSize:             cfg.Run.TeamSize,
			StrictVerification:   cfg.Run.StrictVerification,
			AutoFixVerification:  cfg.Run.AutoFixVerification,
			RollbackOnFailure:    cfg.Run.RollbackOnFailure,
			RunPreflightChecks:   cfg.Run.RunPreflightChecks,
			CriticPassThreshold:  cfg.Run.CriticPassThreshold,
			MaxParallelWorkUnits: cfg.Run.MaxParallelWorkUnits,
			VerificationCommands: cfg.Verification.ToTypeCommands(),
			Model:                cfg.LLM.Model,
		}

		if runExecutionMode != "" {
			req.ExecutionMode = types.ExecutionMode(runExecutionMode)
		}
		if runMaxIterations > 0 {
			req.MaxIterations = runMaxIterations
		}
		if cmd.Flags().Changed("strict") {
			req.StrictVerification = runStrict
		}
		if cmd.Flags().Changed("auto-fix") {
			req.AutoFixVerification = runAutoFix
		}
		if runDryRun {
			req.DryRun = true
		}
		req.RollbackOnFailure = req.RollbackOnFailure && !runNoRollback
		if runModel != "" {
			req.Model = runModel
		}

		req = req.ApplyDefaults()
		if err := req.Validate(); err != nil {
			return err
		}

		disp := display.NewWithOptions(noColor)
		disp.RunBanner(goal)
		disp.RunHeader(string(req.ExecutionMode))

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

func printResult(disp *display.Display, result *types.RunResult) {
	disp.Duration(result.EndedAt.Sub(result.StartedAt))
	if result.Status == types.StatusCompleted {
		disp.RunComplete(result.Summary)
	} else {
		disp.RunFailed(string(result.Status), nil)
		if result.Error != "" {
			disp.Error(result.Error)
		}
	}
	if len(result.RemainingWork) > 0 {
		disp.Warning("Remaining work:")
		for _, w := range result.RemainingWork {
			disp.Info("todo", w)
		}
	}
}

func init() {
	runCmd.Flags().StringVar(&runWorkspace, "workspace", "", "workspace directory (default: current directory)")
	runCmd.Flags().StringVar(&runExecutionMode, "mode", "", "execution mode: single or multi")
	runCmd.Flags().IntVar(&runMaxIterations, "max-iterations", 0, "override the iteration budget")
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "require verification commands to pass before a final is accepted")
	runCmd.Flags().BoolVar(&runAutoFix, "auto-fix", false, "let the agent retry verification failures")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "plan mutations without writing to disk")
	runCmd.Flags().BoolVar(&runNoRollback, "no-rollback", false, "disable automatic rollback on verification failure")
	runCmd.Flags().StringVar(&runModel, "model", "", "model identifier to request from the backend")
	rootCmd.AddCommand(runCmd)
}
