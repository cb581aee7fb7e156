// File: cmd/locators.go
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/filterctl/internal/locator"
)

func newLocatorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locators",
		Short: "Inspect and check the per-model page locator tables",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the built-in router models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, model := range locator.Models() {
				table, err := locator.Builtin(model)
				if err != nil {
					return err
				}
				marker := ""
				if model == locator.DefaultModel {
					marker = " (default)"
				}
				fmt.Fprintf(tw, "%s%s\t%s\n", model, marker, table.Description)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <model>",
		Short: "Print a built-in locator table as YAML, a starting point for a custom one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := locator.Builtin(args[0])
			if err != nil {
				return err
			}
			return table.Encode(cmd.OutOrStdout())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check <file>",
		Short: "Validate a custom locator table without touching a router",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := locator.Load(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "OK: %s defines model %q (%s control, %d elements, %d filter pages)\n",
				args[0], table.Model, table.Control, len(table.Elements), len(table.FilterPaths))
			return err
		},
	})

	return cmd
}
