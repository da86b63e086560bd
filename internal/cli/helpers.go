package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// printRows writes rows as an aligned table with columns in name order.
func printRows(w io.Writer, rows []types.Row) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "(no rows)")
		return err
	}
	seen := map[string]bool{}
	var cols []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for _, r := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = formatCell(r[c])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func formatCell(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(v))
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}

// parseValue reads a command-line value as JSON when it parses, and as a
// plain string otherwise.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

// parseWhere parses field<op>value where op is the first of = != <> < <=
// > >= ~ in expr. "~" means LIKE, "<>" is the same as "!=", and a value of
// "null" with = or != tests for NULL.
func parseWhere(expr string) (types.WhereClause, error) {
	i := strings.IndexAny(expr, "!<>=~")
	if i <= 0 {
		return types.WhereClause{}, fmt.Errorf("invalid filter %q (expected field=value, field!=value, field>value or field~pattern)", expr)
	}
	op := expr[i : i+1]
	switch {
	case strings.HasPrefix(expr[i:], "<>"):
		op = "<>"
	case i+1 < len(expr) && expr[i+1] == '=' && op != "=" && op != "~":
		op += "="
	}
	if op == "!" {
		return types.WhereClause{}, fmt.Errorf("invalid filter %q: use != for inequality", expr)
	}

	clause := types.WhereClause{
		Field:    strings.TrimSpace(expr[:i]),
		Operator: op,
		Value:    parseValue(strings.TrimSpace(expr[i+len(op):])),
	}
	switch op {
	case "~":
		clause.Operator = types.OpLike
	case "<>":
		clause.Operator = types.OpNotEqual
	}
	return clause, nil
}

// parseOrder parses field or -field (descending).
func parseOrder(expr string) types.OrderByClause {
	if strings.HasPrefix(expr, "-") {
		return types.OrderByClause{Field: expr[1:], Direction: "DESC"}
	}
	return types.OrderByClause{Field: expr, Direction: "ASC"}
}
