package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mlxconv/internal/catalog"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the convertible models",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSOURCE\tDESCRIPTION")
			for _, e := range catalog.All() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.ID, e.HFPath, e.Description)
			}
			return w.Flush()
		},
	}
}
