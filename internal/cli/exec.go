package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

func newExecCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <db> <sql> [args...]",
		Short: "Run one SQL statement with bound arguments",
		Long: `Exec runs a single statement against a logical database. Arguments are
bound to the statement's ? placeholders; each is parsed as JSON when it can
be, so 42 binds an integer and "42" or 42x bind text.

Example:
  unisql exec core "SELECT * FROM users WHERE age > ?" 30
  unisql exec core "DELETE FROM sessions WHERE expires < ?" 1700000000`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := make([]any, 0, len(args)-2)
			for _, s := range args[2:] {
				params = append(params, parseValue(s))
			}

			return a.withDAO(cmd.Context(), args[0], func(dao types.DAO) error {
				res, err := dao.Execute(cmd.Context(), args[1], params...)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if a.flags.jsonMode {
					return printJSON(w, res)
				}
				if len(res.Rows) > 0 {
					return printRows(w, res.Rows)
				}
				fmt.Fprintf(w, "%d rows affected", res.RowsAffected)
				if res.LastInsertID != 0 {
					fmt.Fprintf(w, ", last insert id %d", res.LastInsertID)
				}
				fmt.Fprintln(w)
				return nil
			})
		},
	}
}
