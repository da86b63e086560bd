package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/unisql/internal/schemafile"
	"github.com/mesh-intelligence/unisql/pkg/types"
)

func newSelectCmd(a *app) *cobra.Command {
	var (
		where   []string
		order   []string
		columns []string
		limit   int
		offset  int
		out     string
	)
	cmd := &cobra.Command{
		Use:   "select <db> <table>",
		Short: "Query rows from a table",
		Long: `Select reads rows from a table. Filters are ANDed together.

Example:
  unisql select core users --where active=true --order -created_at --limit 10
  unisql select core users --where "email~%@example.com" --out users.jsonl`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := types.QueryOptions{Columns: columns, Limit: limit, Offset: offset}
			for _, expr := range where {
				clause, err := parseWhere(expr)
				if err != nil {
					return userError(err)
				}
				opts.Where = append(opts.Where, clause)
			}
			for _, expr := range order {
				opts.OrderBy = append(opts.OrderBy, parseOrder(expr))
			}

			return a.withDAO(cmd.Context(), args[0], func(dao types.DAO) error {
				rows, err := dao.SelectAll(cmd.Context(), args[1], opts)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if out != "" {
					if err := schemafile.WriteRows(out, rows); err != nil {
						return sysError(err)
					}
					fmt.Fprintf(w, "wrote %d rows to %s\n", len(rows), out)
					return nil
				}
				if a.flags.jsonMode {
					return printJSON(w, rows)
				}
				return printRows(w, rows)
			})
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&where, "where", nil, "filter as field=value, field!=value, field<value, field~pattern (repeatable)")
	f.StringArrayVar(&order, "order", nil, "order by field, or -field for descending (repeatable)")
	f.StringSliceVar(&columns, "columns", nil, "columns to return (default: all)")
	f.IntVar(&limit, "limit", 0, "maximum rows to return")
	f.IntVar(&offset, "offset", 0, "rows to skip")
	f.StringVar(&out, "out", "", "write rows to this file as JSONL")
	return cmd
}
