package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/undercity/internal/gitrepo"
	"github.com/harrison/undercity/internal/reconcile"
)

func newReconcileCommand() *cobra.Command {
	var commitCount int
	var threshold float64
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Mark pending tasks already satisfied by a recent trunk commit",
		Long: `reconcile scans the last --commits trunk commit messages and compares
each against every pending task's objective by word-token overlap. A task
whose overlap clears --threshold is marked complete with a note recording
the matching commit, instead of being left for a Worker to redo.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(mustConfigPath(cmd))
			if err != nil {
				return err
			}
			defer a.close()

			repo := gitrepo.Open(a.cfg.TrunkDir)
			messages, err := repo.RecentCommitMessages(commitCount)
			if err != nil {
				return fmt.Errorf("read trunk history: %w", err)
			}

			tasks, err := a.board.All()
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}

			matches := reconcile.FindMatches(tasks, messages, threshold)
			if len(matches) == 0 {
				fmt.Println("no matches found")
				return nil
			}

			for _, m := range matches {
				note := fmt.Sprintf("matched commit (overlap %.0f%%): %s", m.Overlap*100, m.CommitMessage)
				if dryRun {
					fmt.Printf("%s\twould reconcile\t%s\n", m.Task.ID, note)
					continue
				}
				if err := a.board.MarkReconciled(m.Task.ID, note); err != nil {
					warnf("failed to reconcile task %s: %v", m.Task.ID, err)
					continue
				}
				fmt.Printf("%s\treconciled\t%s\n", m.Task.ID, note)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&commitCount, "commits", 50, "number of recent trunk commits to scan")
	cmd.Flags().Float64Var(&threshold, "threshold", reconcile.DefaultThreshold, "minimum token-overlap ratio to count as a match")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print matches without marking any task reconciled")
	return cmd
}
