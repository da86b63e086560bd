package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

// builtinTypes maps logical column types to SQLite storage types. A
// schema's type_mapping entries take precedence.
var builtinTypes = map[string]string{
	"string":    "TEXT",
	"varchar":   "TEXT",
	"char":      "TEXT",
	"text":      "TEXT",
	"email":     "TEXT",
	"url":       "TEXT",
	"uuid":      "TEXT",
	"timestamp": "TEXT",
	"datetime":  "TEXT",
	"date":      "TEXT",
	"time":      "TEXT",
	"json":      "TEXT",
	"array":     "TEXT",

	"integer":  "INTEGER",
	"int":      "INTEGER",
	"bigint":   "INTEGER",
	"smallint": "INTEGER",
	"tinyint":  "INTEGER",
	"boolean":  "INTEGER",
	"bool":     "INTEGER",

	"number":  "REAL",
	"decimal": "REAL",
	"numeric": "REAL",
	"float":   "REAL",
	"double":  "REAL",
	"real":    "REAL",

	"blob":   "BLOB",
	"binary": "BLOB",
}

func defaultTypeMap() map[string]string {
	m := make(map[string]string, len(builtinTypes))
	for k, v := range builtinTypes {
		m[k] = v
	}
	return m
}

func mergeTypeMap(custom map[string]string) map[string]string {
	m := defaultTypeMap()
	for k, v := range custom {
		m[strings.ToLower(strings.TrimSpace(k))] = strings.ToUpper(strings.TrimSpace(v))
	}
	return m
}

// physicalType resolves a logical type through m. Parameterised types such
// as varchar(255) resolve by their base name; unknown types store as TEXT.
func physicalType(m map[string]string, logical string) string {
	l := strings.ToLower(strings.TrimSpace(logical))
	if p, ok := m[l]; ok {
		return p
	}
	if i := strings.IndexByte(l, '('); i > 0 {
		if p, ok := m[strings.TrimSpace(l[:i])]; ok {
			return p
		}
	}
	switch u := strings.ToUpper(l); u {
	case "TEXT", "INTEGER", "REAL", "BLOB", "NUMERIC":
		return u
	}
	return "TEXT"
}

// affinity applies SQLite's column affinity rules to a declared type.
func affinity(declared string) string {
	d := strings.ToUpper(declared)
	switch {
	case strings.Contains(d, "INT"):
		return "INTEGER"
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return "TEXT"
	case d == "" || strings.Contains(d, "BLOB"):
		return "BLOB"
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"):
		return "REAL"
	}
	return "NUMERIC"
}

// column is the merged view of one column: physical facts from the store
// plus logical facts from the schema when the table is declared there.
type column struct {
	name          string
	logical       string
	physical      string
	primaryKey    bool
	autoIncrement bool
	notNull       bool
	hasDefault    bool
	enum          []string
}

func baseType(logical string) string {
	l := strings.ToLower(strings.TrimSpace(logical))
	if i := strings.IndexByte(l, '('); i > 0 {
		l = strings.TrimSpace(l[:i])
	}
	return l
}

func (c column) isBool() bool {
	switch baseType(c.logical) {
	case "boolean", "bool":
		return true
	}
	return false
}

func (c column) isJSON() bool {
	switch baseType(c.logical) {
	case "json", "array":
		return true
	}
	return false
}

func (c column) isUUID() bool { return baseType(c.logical) == "uuid" }

// toStorage converts Go values that SQLite cannot store natively. It never
// fails; values it does not recognise pass through to the driver.
func toStorage(c column, v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC().Format(time.RFC3339Nano)
	case []byte:
		return x
	case string:
		return x
	case json.RawMessage:
		return string(x)
	}
	if c.isJSON() || isComposite(v) {
		b, err := json.Marshal(v)
		if err != nil {
			return v
		}
		return string(b)
	}
	return v
}

func isComposite(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	}
	return false
}

// coerce converts v to the storage class of c. In strict mode a value that
// cannot be converted is an error; otherwise it is passed through and the
// store applies its own affinity rules.
func coerce(c column, v any, strict bool) (any, error) {
	if v == nil {
		return nil, nil
	}
	fail := func() (any, error) {
		if strict {
			return nil, fmt.Errorf("column %s: cannot convert %v (%T) to %s", c.name, v, v, c.logical+"/"+c.physical)
		}
		return toStorage(c, v), nil
	}

	if strict && len(c.enum) > 0 {
		s := toString(v)
		found := false
		for _, allowed := range c.enum {
			if s == allowed {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("column %s: %q is not one of %v", c.name, s, c.enum)
		}
	}

	aff := affinity(c.physical)
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		switch {
		case c.isBool():
			b, ok := parseBool(s)
			if !ok {
				return fail()
			}
			return toStorage(c, b), nil
		case c.isJSON():
			if !json.Valid([]byte(x)) {
				return fail()
			}
			return x, nil
		case aff == "INTEGER":
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n, nil
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
				return int64(f), nil
			}
			return fail()
		case aff == "REAL" || aff == "NUMERIC":
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, nil
			}
			return fail()
		case aff == "BLOB":
			return []byte(x), nil
		}
		return x, nil

	case float64:
		switch aff {
		case "INTEGER":
			if x != math.Trunc(x) {
				return fail()
			}
			return int64(x), nil
		case "TEXT":
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		}
		return x, nil

	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		if aff == "TEXT" && !c.isBool() {
			return toString(x), nil
		}
		return x, nil

	case bool:
		if aff == "TEXT" && !c.isBool() {
			return strconv.FormatBool(x), nil
		}
		return toStorage(c, x), nil
	}
	return toStorage(c, v), nil
}

// fromStorage decodes values whose logical type SQLite does not have.
func fromStorage(c column, v any) any {
	if v == nil {
		return nil
	}
	switch {
	case c.isBool():
		switch x := v.(type) {
		case int64:
			return x != 0
		case float64:
			return x != 0
		case string:
			if b, ok := parseBool(x); ok {
				return b
			}
		}
	case c.isJSON():
		var raw []byte
		switch x := v.(type) {
		case string:
			raw = []byte(x)
		case []byte:
			raw = x
		default:
			return v
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			return decoded
		}
	}
	return v
}

// parseBool accepts true/false, t/f, yes/no, y/n and 1/0.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	}
	return false, false
}

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case string:
		return strconv.ParseInt(x, 10, 64)
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("unexpected %T", v)
}

// schemaColumns returns the logical columns of a declared table keyed by
// name, or nil when the table is not in the schema.
func schemaColumns(schema *types.DatabaseSchema, typeMap map[string]string, table string) map[string]column {
	if schema == nil {
		return nil
	}
	t, ok := schema.Table(table)
	if !ok {
		return nil
	}
	out := make(map[string]column, len(t.Cols))
	for _, cd := range t.Columns() {
		out[cd.Name] = column{
			name:          cd.Name,
			logical:       strings.ToLower(cd.Type),
			physical:      physicalType(typeMap, cd.Type),
			primaryKey:    cd.PrimaryKey,
			autoIncrement: cd.AutoIncrement,
			notNull:       cd.NotNull,
			hasDefault:    cd.HasDefault(),
			enum:          cd.Enum,
		}
	}
	return out
}
