package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/undercity/internal/models"
	"github.com/harrison/undercity/internal/orchestrator"
	"github.com/harrison/undercity/internal/review"
	"github.com/harrison/undercity/internal/worker"
	"github.com/harrison/undercity/internal/workspace"
)

func newWorkCommand() *cobra.Command {
	var taskID string

	cmd := &cobra.Command{
		Use:   "work",
		Short: "Run a single task to terminal state outside the main loop",
		Long: `work drives exactly one task through a Worker: baseline verification,
the agent loop, verification, and commit — then hands a clean result to the
Merge Queue the same way orchestrate would, without starting the Health
Monitor. Useful for running or debugging one task in isolation. With no
--task, it picks the highest-ranked ready task itself.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(mustConfigPath(cmd))
			if err != nil {
				return err
			}
			defer a.close()

			var task models.Task
			if taskID != "" {
				task, err = a.board.Get(taskID)
				if err != nil {
					return fmt.Errorf("look up task: %w", err)
				}
			} else {
				batch, err := a.board.GetReadyTasksForBatch(1)
				if err != nil {
					return fmt.Errorf("select task: %w", err)
				}
				if len(batch) == 0 {
					fmt.Println("no ready tasks")
					return nil
				}
				task = batch[0]
			}

			ws, err := a.manager.Create(task.ID, a.cfg.BaseRef)
			if err != nil {
				return fmt.Errorf("create workspace: %w", err)
			}

			if err := a.board.MarkInProgress(task.ID, ws.BranchName); err != nil {
				warnf("failed to mark task in progress: %v", err)
			}

			w := worker.New(a.workerDeps, task, ws.Path, a.cfg.TrunkDir, ws.BaseCommit)
			out := w.Run(context.Background())

			if out.Status == models.OutcomeMerged && a.reviewDeps.ModelClient != nil {
				makeExecutor := orchestrator.ToolExecutorFactory(task.ID, a.cfg.TrunkDir, a.tracker, a.workerDeps.Runner)
				result := review.Run(context.Background(), a.reviewDeps, makeExecutor, ws.Path, task, orchestrator.ReviewCeiling(out.Tier))
				if err := worker.CommitWorkspace(ws.Path, task); err != nil {
					warnf("failed to commit review edits: %v", err)
				}
				if !result.Converged {
					out.Status = models.OutcomeCompleteWithTickets
					out.Tickets = result.Tickets
				}
			}

			switch out.Status {
			case models.OutcomeMerged, models.OutcomeCompleteWithTickets:
				if len(out.Tickets) > 0 {
					if _, err := a.board.AddTickets(task.ID, out.Tickets); err != nil {
						warnf("failed to create unresolved-review tickets: %v", err)
					}
				}
				a.merge.Add(ws.BranchName, task.ID, "worker-"+task.ID, task.ID, ws.Path)
				for {
					item := a.merge.Tick()
					if item == nil {
						break
					}
					switch item.Status {
					case models.MergeStatusMerged:
						_ = a.board.MarkComplete(item.TaskID)
					case models.MergeStatusExhausted:
						_ = a.board.MarkFailed(item.TaskID, "merge queue exhausted retries: "+item.LastError)
					}
				}
				fmt.Printf("task %s: %s (%d attempts, %s)\n", task.ID, out.Status, len(out.Attempts), out.Duration.Round(0))
			case models.OutcomeAlreadyComplete, models.OutcomeDecomposed:
				if out.Status == models.OutcomeAlreadyComplete {
					_ = a.board.MarkComplete(task.ID)
				}
				_ = a.manager.Destroy(ws, workspace.DestroyOptions{Keep: false})
				fmt.Printf("task %s: %s (%d attempts, %s)\n", task.ID, out.Status, len(out.Attempts), out.Duration.Round(0))
			default:
				errText := ""
				if out.Error != nil {
					errText = out.Error.Message
				}
				_ = a.board.MarkFailed(task.ID, errText)
				_ = a.manager.Destroy(ws, workspace.DestroyOptions{Keep: true})
				return fmt.Errorf("task %s failed: %s", task.ID, errText)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "run this specific task ID instead of picking the next ready one")
	return cmd
}
