package engine

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdent(name string) bool {
	return identPattern.MatchString(name)
}

// quote validates and double-quotes an identifier.
func quote(name string) (string, error) {
	if !validIdent(name) {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidIdentifier, name)
	}
	return `"` + name + `"`, nil
}

func quoteAll(names []string) ([]string, error) {
	out := make([]string, len(names))
	for i, n := range names {
		q, err := quote(n)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// sortedColumns returns the keys of data in name order so generated SQL is
// stable.
func sortedColumns(data types.Row) []string {
	cols := make([]string, 0, len(data))
	for k := range data {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func normalizeOperator(op string) (string, error) {
	op = strings.ToUpper(strings.Join(strings.Fields(op), " "))
	switch op {
	case "", "==":
		return types.OpEqual, nil
	case "<>":
		return types.OpNotEqual, nil
	case types.OpEqual, types.OpNotEqual, types.OpLess, types.OpLessEqual,
		types.OpGreater, types.OpGreaterEqual, types.OpLike, types.OpNotLike,
		types.OpIn, types.OpNotIn, types.OpIsNull, types.OpIsNotNull:
		return op, nil
	}
	return "", fmt.Errorf("%w: %q", types.ErrInvalidOperator, op)
}

// buildWhere renders clauses joined by AND. bind converts each value
// before it is bound.
func buildWhere(where []types.WhereClause, bind func(field string, v any) any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(where))
	var args []any
	for _, w := range where {
		field, err := quote(w.Field)
		if err != nil {
			return "", nil, err
		}
		op, err := normalizeOperator(w.Operator)
		if err != nil {
			return "", nil, err
		}

		switch op {
		case types.OpIsNull, types.OpIsNotNull:
			parts = append(parts, field+" "+op)
		case types.OpIn, types.OpNotIn:
			values, err := expandList(w.Value)
			if err != nil {
				return "", nil, fmt.Errorf("%s %s: %w", w.Field, op, err)
			}
			if len(values) == 0 {
				// Nothing is IN an empty list; everything is NOT IN it.
				if op == types.OpIn {
					parts = append(parts, "0 = 1")
				} else {
					parts = append(parts, "1 = 1")
				}
				continue
			}
			parts = append(parts, fmt.Sprintf("%s %s (%s)", field, op, placeholders(len(values))))
			for _, v := range values {
				args = append(args, bind(w.Field, v))
			}
		default:
			if w.Value == nil && (op == types.OpEqual || op == types.OpNotEqual) {
				if op == types.OpEqual {
					parts = append(parts, field+" IS NULL")
				} else {
					parts = append(parts, field+" IS NOT NULL")
				}
				continue
			}
			parts = append(parts, fmt.Sprintf("%s %s ?", field, op))
			args = append(args, bind(w.Field, w.Value))
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

// unconditional reports whether where matches every row: it has no
// clauses, or each one is NOT IN against an empty list.
func unconditional(where []types.WhereClause) bool {
	for _, w := range where {
		if op, err := normalizeOperator(w.Operator); err != nil || op != types.OpNotIn {
			return false
		}
		if values, err := expandList(w.Value); err != nil || len(values) > 0 {
			return false
		}
	}
	return true
}

func expandList(v any) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("value must be a list, got %T", v)
	}
	if b, ok := v.([]byte); ok {
		return []any{b}, nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func buildOrderBy(order []types.OrderByClause) (string, error) {
	if len(order) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(order))
	for _, o := range order {
		field, err := quote(o.Field)
		if err != nil {
			return "", err
		}
		dir := strings.ToUpper(strings.TrimSpace(o.Direction))
		switch dir {
		case "":
			dir = "ASC"
		case "ASC", "DESC":
		default:
			return "", fmt.Errorf("invalid order direction %q for %s", o.Direction, o.Field)
		}
		parts = append(parts, field+" "+dir)
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// buildSelect renders a SELECT for opts. LIMIT and OFFSET are bound.
func buildSelect(table string, opts types.QueryOptions, bind func(string, any) any) (string, []any, error) {
	qt, err := quote(table)
	if err != nil {
		return "", nil, err
	}
	cols := "*"
	if len(opts.Columns) > 0 {
		qc, err := quoteAll(opts.Columns)
		if err != nil {
			return "", nil, err
		}
		cols = strings.Join(qc, ", ")
	}
	where, args, err := buildWhere(opts.Where, bind)
	if err != nil {
		return "", nil, err
	}
	order, err := buildOrderBy(opts.OrderBy)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s%s%s", cols, qt, where, order)
	switch {
	case opts.Limit > 0:
		sb.WriteString(" LIMIT ?")
		args = append(args, opts.Limit)
	case opts.Offset > 0:
		sb.WriteString(" LIMIT -1")
	}
	if opts.Offset > 0 {
		sb.WriteString(" OFFSET ?")
		args = append(args, opts.Offset)
	}
	return sb.String(), args, nil
}
