package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/harrison/undercity/internal/tui"
)

func newStatusCommand() *cobra.Command {
	var watch bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print Task Board and Merge Queue counts",
		Long: `status prints a one-shot summary of task counts by status and Merge
Queue counts by status. With --watch it instead opens a live dashboard that
polls both on an interval until you press q or Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(mustConfigPath(cmd))
			if err != nil {
				return err
			}
			defer a.close()

			poll := func() tui.Snapshot {
				tasks, err := a.board.All()
				if err != nil {
					return tui.Snapshot{Err: err}
				}
				summary := a.merge.GetQueueSummary()
				return tui.Snapshot{
					Tasks:        tasks,
					MergePending: summary.Pending,
					MergeMerging: summary.Merging,
				}
			}

			if watch {
				p := tea.NewProgram(tui.New(poll, interval))
				_, err := p.Run()
				return err
			}

			snap := poll()
			if snap.Err != nil {
				return fmt.Errorf("load status: %w", snap.Err)
			}
			counts := map[string]int{}
			for _, task := range snap.Tasks {
				counts[string(task.Status)]++
			}
			fmt.Printf("tasks: %d pending, %d in_progress, %d complete, %d failed (%d total)\n",
				counts["pending"], counts["in_progress"], counts["complete"], counts["failed"], len(snap.Tasks))
			fmt.Printf("merge queue: %d pending, %d merging\n", snap.MergePending, snap.MergeMerging)
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "open a live-updating dashboard instead of printing once")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval for --watch")
	return cmd
}
