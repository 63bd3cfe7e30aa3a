// Package cmd wires the cobra command tree for the undercity binary: the
// commands are thin wrappers over the core packages (board, worker,
// orchestrator, merge, health) the way the spec requires the CLI and TUI
// surfaces to be, mirroring the teacher's internal/cmd layout.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// NewRootCommand builds the root cobra command and attaches every
// subcommand.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "undercity",
		Short: "Multi-agent code-modification orchestrator",
		Long: `undercity runs a Task Board through a pool of model-driven Workers,
integrating accepted changes into trunk one at a time through a strictly
serial Merge Queue, with a Health Monitor watching for stalled workers.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if dir, _ := cmd.Flags().GetString("state-dir"); dir != "" {
				return os.Setenv("UNDERCITY_STATE_DIR", dir)
			}
			return nil
		},
	}

	root.PersistentFlags().String("config", "", "path to a config file (when unset, no file is read)")
	root.PersistentFlags().String("state-dir", "", "override the state directory (default: resolved by internal/config.Home)")

	root.AddCommand(newOrchestrateCommand())
	root.AddCommand(newWorkCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newTasksCommand())
	root.AddCommand(newImportPlanCommand())
	root.AddCommand(newReconcileCommand())

	return root
}

// fail builds the error a command returns; it prints nothing itself. cobra
// prints the error returned from RunE, since SilenceErrors is unset.
func fail(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

func mustConfigPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
