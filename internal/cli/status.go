package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List known databases and whether the active roles grant them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mgr, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer mgr.CloseAll(ctx)

			status := mgr.Status()
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), status)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSTATE\tACTIVE\tPATH")
			for _, st := range status {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", st.Name, st.State, st.Active, st.Path)
			}
			return tw.Flush()
		},
	}
}
