package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/unisql/pkg/unisql"
)

const modulePath = "github.com/mesh-intelligence/unisql"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the unisql version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "unisql v%s\nmodule: %s\n", unisql.Version, modulePath)
			return nil
		},
	}
}
