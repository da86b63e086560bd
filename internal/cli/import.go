package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/unisql/internal/schemafile"
	"github.com/mesh-intelligence/unisql/pkg/types"
)

type importOutput struct {
	Total    int      `json:"total"`
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Elapsed  string   `json:"elapsed"`
	Errors   []string `json:"errors,omitempty"`
}

func newImportCmd(a *app) *cobra.Command {
	var (
		batchSize  int
		skipErrors bool
		validate   bool
		conflict   []string
		includeIDs bool
	)
	cmd := &cobra.Command{
		Use:   "import <db> <table> <rows-file>",
		Short: "Bulk insert rows from a JSON or JSONL file",
		Long: `Import inserts every row of the file in one transaction. The file is a
JSON array of objects or JSONL. Without --skip-errors the first bad row
rolls back the whole import.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := schemafile.ReadRows(args[2])
			if err != nil {
				return userError(err)
			}

			opts := types.ImportOptions{
				Table:                args[1],
				Rows:                 rows,
				BatchSize:            batchSize,
				SkipErrors:           skipErrors,
				ValidateData:         validate,
				UpdateOnConflict:     len(conflict) > 0,
				ConflictColumns:      conflict,
				IncludeAutoIncrement: includeIDs,
				OnProgress: func(done, total int) {
					a.log.Info("import progress", "table", args[1], "processed", done, "total", total)
				},
			}

			return a.withDAO(cmd.Context(), args[0], func(dao types.DAO) error {
				res, err := dao.ImportData(cmd.Context(), opts)
				if res != nil {
					if perr := printImport(cmd, a.flags.jsonMode, res); perr != nil && err == nil {
						err = perr
					}
				}
				return err
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&batchSize, "batch-size", types.DefaultImportBatchSize, "rows per batch")
	f.BoolVar(&skipErrors, "skip-errors", false, "skip failing rows instead of rolling back")
	f.BoolVar(&validate, "validate", false, "reject rows missing required values or with uncoercible values")
	f.StringSliceVar(&conflict, "conflict", nil, "update existing rows matching these columns instead of failing")
	f.BoolVar(&includeIDs, "include-ids", false, "keep supplied auto-increment ids")
	return cmd
}

func printImport(cmd *cobra.Command, jsonMode bool, res *types.ImportResult) error {
	out := importOutput{
		Total:    res.TotalRows,
		Imported: res.SuccessRows,
		Failed:   res.ErrorRows,
		Elapsed:  res.ExecutionTime.String(),
	}
	for _, ie := range res.Errors {
		out.Errors = append(out.Errors, ie.Error())
	}

	w := cmd.OutOrStdout()
	if jsonMode {
		return printJSON(w, out)
	}
	fmt.Fprintf(w, "imported %d of %d rows (%d failed) in %s\n", out.Imported, out.Total, out.Failed, out.Elapsed)
	for _, e := range out.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	return nil
}
