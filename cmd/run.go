package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/varga-labs/sherpa-cli/api/schemas"
	"github.com/varga-labs/sherpa-cli/internal/agent"
	"github.com/varga-labs/sherpa-cli/internal/agent/operator"
	"github.com/varga-labs/sherpa-cli/internal/agent/perception"
	"github.com/varga-labs/sherpa-cli/internal/browser"
	"github.com/varga-labs/sherpa-cli/internal/config"
	"github.com/varga-labs/sherpa-cli/internal/integrations"
	"github.com/varga-labs/sherpa-cli/internal/llmclient"
	"github.com/varga-labs/sherpa-cli/internal/observability"
	"github.com/varga-labs/sherpa-cli/internal/store"
)

// workflowFile is the on-disk format accepted by `sherpa-cli run`.
type workflowFile struct {
	Name         string         `json:"name"`
	UserID       string         `json:"user_id"`
	WorkflowType string         `json:"workflow_type"`
	Steps        []schemas.Step `json:"steps"`
}

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [workflow.json]",
		Short: "Executes a workflow file against a live browser session",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their corresponding Viper keys so command-line
			// flags override values from the config file and environment.
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.start_url", cmd.Flags().Lookup("start-url")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from Execute (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			wf, err := loadWorkflow(args[0])
			if err != nil {
				return err
			}
			if wf.UserID == "" {
				wf.UserID = viper.GetString("user")
			}
			workflowType := schemas.WorkflowType(cfg.Agent.WorkflowType)
			if wf.WorkflowType != "" {
				workflowType = schemas.WorkflowType(wf.WorkflowType)
			}

			runID := uuid.New().String()
			logger.Info("Starting workflow run",
				zap.String("runID", runID),
				zap.String("workflow", wf.Name),
				zap.String("user", wf.UserID),
				zap.Int("steps", len(wf.Steps)),
				zap.String("type", string(workflowType)),
			)

			runs, err := store.New(ctx, cfg.Store, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize run store: %w", err)
			}
			defer runs.Close()

			if err := runs.CreateRun(ctx, runID, wf.UserID); err != nil {
				return fmt.Errorf("failed to create run record: %w", err)
			}

			router, gemini, err := llmclient.NewClient(ctx, cfg.Agent.LLM, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize model clients: %w", err)
			}

			session, err := browser.NewSession(ctx, cfg.Browser, logger)
			if err != nil {
				return fmt.Errorf("failed to launch browser session: %w", err)
			}
			defer session.Close()

			pipeline := perception.NewPipeline(router, logger)
			registry := integrations.NewRegistry(logger)
			history := agent.NewHistory(cfg.Agent.HistoryWindow)

			driver := agent.NewDriver(agent.DriverParams{
				Runs:            runs,
				Direct:          operator.NewDirectExecutor(session, logger),
				API:             operator.NewAPICaller(registry, runs, logger),
				Screen:          session,
				Scenes:          pipeline,
				Cacher:          gemini,
				Logger:          logger,
				History:         history,
				WorkflowType:    workflowType,
				RunID:           runID,
				UserID:          wf.UserID,
				DirectRetries:   cfg.Agent.DirectRetries,
				WorkflowTimeout: cfg.Agent.WorkflowTimeout,
				NewController: func(model, cachedPrompt string) agent.StepRunner {
					return agent.NewStepController(agent.ControllerParams{
						LLM:          router,
						Perception:   pipeline,
						Operator:     operator.NewBrowserOperator(session, logger),
						Screen:       session,
						History:      history,
						Logger:       logger,
						WorkflowType: workflowType,
						MaxRetries:   cfg.Agent.MaxRetries,
						Model:        model,
						CachedPrompt: cachedPrompt,
					})
				},
			})

			status, err := driver.Run(ctx, wf.Steps)
			switch {
			case err == nil:
				logger.Info("Run finished", zap.String("runID", runID), zap.String("status", string(status)))
				fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %s\n", runID, status)
				return nil
			case errors.Is(err, agent.ErrAwaitingUser):
				logger.Warn("Run paused for user intervention", zap.String("runID", runID))
				fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %s\n", runID, status)
				return nil
			default:
				return fmt.Errorf("run %s failed: %w", runID, err)
			}
		},
	}

	runCmd.Flags().Bool("headless", true, "run the browser headless")
	runCmd.Flags().String("start-url", "", "initial page to open before the first step")
	runCmd.Flags().String("user", "local", "user ID owning this run (service tokens, tuned models)")
	return runCmd
}

// loadWorkflow reads and validates a workflow definition file.
func loadWorkflow(path string) (*workflowFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	var wf workflowFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse workflow file: %w", err)
	}
	if len(wf.Steps) == 0 {
		return nil, fmt.Errorf("workflow file contains no steps")
	}
	for i, step := range wf.Steps {
		if step.Action == "" {
			return nil, fmt.Errorf("step %d has no action", i+1)
		}
	}
	return &wf, nil
}
