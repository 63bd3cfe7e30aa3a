package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newTasksCommand groups the direct Task Board CRUD operations that don't
// belong to the main orchestrate/work loop: listing, adding one-off tasks,
// inspecting a single task, and retrying a failed one.
func newTasksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and edit the Task Board directly",
	}

	cmd.AddCommand(newTasksListCommand())
	cmd.AddCommand(newTasksAddCommand())
	cmd.AddCommand(newTasksShowCommand())
	cmd.AddCommand(newTasksRetryCommand())
	return cmd
}

func newTasksListCommand() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(mustConfigPath(cmd))
			if err != nil {
				return err
			}
			defer a.close()

			all, err := a.board.All()
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}
			for _, task := range all {
				if status != "" && string(task.Status) != status {
					continue
				}
				fmt.Printf("%s\t%-12s\t%.1f\t%s\n", task.ID, task.Status, task.Priority, task.Objective)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only list tasks in this status (pending, in_progress, complete, failed)")
	return cmd
}

func newTasksAddCommand() *cobra.Command {
	var priority float64

	cmd := &cobra.Command{
		Use:   "add <objective>",
		Short: "Add a single pending task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(mustConfigPath(cmd))
			if err != nil {
				return err
			}
			defer a.close()

			task, err := a.board.AddTask(args[0], priority, nil)
			if err != nil {
				return fmt.Errorf("add task: %w", err)
			}
			fmt.Println(task.ID)
			return nil
		},
	}

	cmd.Flags().Float64Var(&priority, "priority", 0, "lower runs first")
	return cmd
}

func newTasksShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Print one task's full state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(mustConfigPath(cmd))
			if err != nil {
				return err
			}
			defer a.close()

			task, err := a.board.Get(args[0])
			if err != nil {
				return fmt.Errorf("show task: %w", err)
			}
			fmt.Printf("id:        %s\n", task.ID)
			fmt.Printf("objective: %s\n", task.Objective)
			fmt.Printf("status:    %s\n", task.Status)
			fmt.Printf("priority:  %.1f\n", task.Priority)
			if len(task.DependsOn) > 0 {
				fmt.Printf("depends:   %v\n", task.DependsOn)
			}
			if task.Error != "" {
				fmt.Printf("error:     %s\n", task.Error)
			}
			if task.ReconciledNote != "" {
				fmt.Printf("reconciled: %s\n", task.ReconciledNote)
			}
			return nil
		},
	}
	return cmd
}

func newTasksRetryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <task-id>",
		Short: "Reset a failed task back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(mustConfigPath(cmd))
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.board.Retry(args[0]); err != nil {
				return fmt.Errorf("retry task: %w", err)
			}
			fmt.Printf("task %s reset to pending\n", args[0])
			return nil
		},
	}
	return cmd
}
