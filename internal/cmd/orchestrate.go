package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrison/undercity/internal/orchestrator"
)

func newOrchestrateCommand() *cobra.Command {
	var maxConcurrent int

	cmd := &cobra.Command{
		Use:   "orchestrate",
		Short: "Run the full loop: dispatch ready tasks, merge clean results, watch for stalls",
		Long: `orchestrate drives the Task Board to completion: it selects a batch of
ready tasks, spawns a Worker per task, hands clean results to the Merge
Queue, and keeps a Health Monitor running against the workspaces it creates.
Ctrl-C drains in-flight work before exiting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(mustConfigPath(cmd))
			if err != nil {
				return err
			}
			defer a.close()

			if maxConcurrent <= 0 {
				maxConcurrent = a.cfg.Board.MaxConcurrent
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			orch := orchestrator.New(orchestrator.Config{
				TrunkDir:      a.cfg.TrunkDir,
				BaseRef:       a.cfg.BaseRef,
				MaxConcurrent: maxConcurrent,
			}, a.orchestratorDeps())

			summary, err := orch.Run(ctx)
			if err != nil {
				return fmt.Errorf("orchestrate: %w", err)
			}

			fmt.Printf("done: %d merged, %d failed, %d total, %s elapsed\n",
				summary.Merged, summary.Failed, len(summary.Results), summary.Elapsed.Round(0))
			return nil
		},
	}

	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "override board.max_concurrent for this run")
	return cmd
}
