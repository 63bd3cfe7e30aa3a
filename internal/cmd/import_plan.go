package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/undercity/internal/board"
	"github.com/harrison/undercity/internal/parser"
)

func newImportPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-plan <file.md>",
		Short: "Create tasks from a markdown plan document",
		Long: `import-plan reads a markdown file where headings introduce groups and
top-level bullets become task objectives. A bullet ending in "(depends: 1,
2)" depends on the 1st and 2nd objective encountered anywhere in the
document. Objectives are created in document order with priority equal to
their position, so earlier objectives are preferred when otherwise tied.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read plan file: %w", err)
			}

			imported, err := parser.NewMarkdownParser().Parse(source)
			if err != nil {
				return fmt.Errorf("parse plan file: %w", err)
			}
			if len(imported) == 0 {
				fmt.Println("no bulleted objectives found")
				return nil
			}

			a, err := newApp(mustConfigPath(cmd))
			if err != nil {
				return err
			}
			defer a.close()

			specs := make([]board.PlanTaskSpec, len(imported))
			for i, t := range imported {
				specs[i] = board.PlanTaskSpec{
					Objective:    t.Objective,
					Priority:     float64(i),
					DependsOnPos: t.DependsOn,
				}
			}

			created, err := a.board.AddPlan(specs)
			if err != nil {
				return fmt.Errorf("create plan tasks: %w", err)
			}

			for i, task := range created {
				group := imported[i].Group
				if group != "" {
					fmt.Printf("%s\t[%s]\t%s\n", task.ID, group, task.Objective)
				} else {
					fmt.Printf("%s\t%s\n", task.ID, task.Objective)
				}
			}
			fmt.Printf("created %d tasks\n", len(created))
			return nil
		},
	}
	return cmd
}
