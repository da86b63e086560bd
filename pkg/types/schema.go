package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DatabaseSchema is the declarative definition of one logical database.
type DatabaseSchema struct {
	DatabaseName string                 `json:"database_name" yaml:"database_name"`
	Version      string                 `json:"version" yaml:"version"`
	Description  string                 `json:"description,omitempty" yaml:"description,omitempty"`
	TypeMapping  map[string]string      `json:"type_mapping,omitempty" yaml:"type_mapping,omitempty"`
	Schemas      map[string]TableSchema `json:"schemas" yaml:"schemas"`
}

// TableSchema declares one table.
type TableSchema struct {
	Name        string                 `json:"name,omitempty" yaml:"name,omitempty"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Cols        []ColumnDefinition     `json:"cols" yaml:"cols"`
	Indexes     []IndexDefinition      `json:"indexes,omitempty" yaml:"indexes,omitempty"`
	ForeignKeys []ForeignKeyDefinition `json:"foreign_keys,omitempty" yaml:"foreign_keys,omitempty"`
}

// ColumnDefinition declares one column. Constraint flags may be given as
// booleans, as the free-text Constraints string, or both; Resolve merges them.
type ColumnDefinition struct {
	Name          string   `json:"name" yaml:"name"`
	Type          string   `json:"type" yaml:"type"`
	Constraints   string   `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	PrimaryKey    bool     `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	AutoIncrement bool     `json:"auto_increment,omitempty" yaml:"auto_increment,omitempty"`
	Unique        bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
	NotNull       bool     `json:"not_null,omitempty" yaml:"not_null,omitempty"`
	Default       any      `json:"default,omitempty" yaml:"default,omitempty"`
	Enum          []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// IndexDefinition declares one index.
type IndexDefinition struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
	Unique  bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
}

// ForeignKeyDefinition declares one foreign key on a column.
type ForeignKeyDefinition struct {
	Column     string        `json:"column" yaml:"column"`
	References ForeignTarget `json:"references" yaml:"references"`
	OnDelete   string        `json:"on_delete,omitempty" yaml:"on_delete,omitempty"`
	OnUpdate   string        `json:"on_update,omitempty" yaml:"on_update,omitempty"`
}

// ForeignTarget is the referenced table and column.
type ForeignTarget struct {
	Table  string `json:"table" yaml:"table"`
	Column string `json:"column" yaml:"column"`
}

// HasDefault reports whether the column declares a default value.
func (c ColumnDefinition) HasDefault() bool {
	return c.Default != nil
}

// Resolve folds the Constraints string into the boolean flags and Default.
// Recognised tokens: PRIMARY [KEY], AUTO_INCREMENT, AUTOINCREMENT, UNIQUE,
// NOT NULL, DEFAULT <literal>.
func (c ColumnDefinition) Resolve() ColumnDefinition {
	fields := strings.FieldsFunc(c.Constraints, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n'
	})
	for i := 0; i < len(fields); i++ {
		switch strings.ToUpper(fields[i]) {
		case "PRIMARY", "PRIMARY_KEY", "PK":
			c.PrimaryKey = true
			if i+1 < len(fields) && strings.EqualFold(fields[i+1], "KEY") {
				i++
			}
		case "AUTO_INCREMENT", "AUTOINCREMENT", "AUTO":
			c.AutoIncrement = true
		case "UNIQUE":
			c.Unique = true
		case "NOT":
			if i+1 < len(fields) && strings.EqualFold(fields[i+1], "NULL") {
				c.NotNull = true
				i++
			}
		case "NOT_NULL", "REQUIRED":
			c.NotNull = true
		case "DEFAULT":
			if i+1 < len(fields) {
				c.Default = parseDefaultToken(fields[i+1])
				i++
			}
		}
	}
	if c.AutoIncrement {
		c.PrimaryKey = true
	}
	return c
}

// parseDefaultToken converts a DEFAULT token from a constraints string into
// a typed value.
func parseDefaultToken(tok string) any {
	if len(tok) >= 2 && (tok[0] == '\'' && tok[len(tok)-1] == '\'' || tok[0] == '"' && tok[len(tok)-1] == '"') {
		return tok[1 : len(tok)-1]
	}
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return f
	}
	switch strings.ToLower(tok) {
	case "true":
		return true
	case "false":
		return false
	}
	return tok
}

// Columns returns the resolved column definitions in declaration order.
func (t TableSchema) Columns() []ColumnDefinition {
	out := make([]ColumnDefinition, len(t.Cols))
	for i, c := range t.Cols {
		out[i] = c.Resolve()
	}
	return out
}

// Column returns the resolved definition of the named column.
func (t TableSchema) Column(name string) (ColumnDefinition, bool) {
	for _, c := range t.Cols {
		if c.Name == name {
			return c.Resolve(), true
		}
	}
	return ColumnDefinition{}, false
}

// PrimaryKeys returns the names of the primary key columns.
func (t TableSchema) PrimaryKeys() []string {
	var keys []string
	for _, c := range t.Columns() {
		if c.PrimaryKey {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// TableNames returns the declared table names in sorted order.
func (s *DatabaseSchema) TableNames() []string {
	names := make([]string, 0, len(s.Schemas))
	for name := range s.Schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table returns the named table with its Name field populated.
func (s *DatabaseSchema) Table(name string) (TableSchema, bool) {
	t, ok := s.Schemas[name]
	if !ok {
		return TableSchema{}, false
	}
	if t.Name == "" {
		t.Name = name
	}
	return t, true
}

// Validate checks the structural soundness of the schema definition. It
// returns a configuration error wrapping ErrInvalidSchema.
func (s *DatabaseSchema) Validate() error {
	fail := func(target, format string, args ...any) error {
		return NewConfigurationError("validate_schema", target, fmt.Sprintf(format, args...), ErrInvalidSchema)
	}
	if s == nil {
		return fail("", "schema is nil")
	}
	if s.DatabaseName == "" {
		return fail("", "database_name is empty")
	}
	if len(s.Schemas) == 0 {
		return fail(s.DatabaseName, "no tables declared")
	}
	for _, name := range s.TableNames() {
		t := s.Schemas[name]
		if len(t.Cols) == 0 {
			return fail(name, "table declares no columns")
		}
		cols := make(map[string]bool, len(t.Cols))
		for _, c := range t.Cols {
			if c.Name == "" {
				return fail(name, "column with empty name")
			}
			if cols[c.Name] {
				return fail(name, "duplicate column %q", c.Name)
			}
			cols[c.Name] = true
		}
		for _, idx := range t.Indexes {
			if len(idx.Columns) == 0 {
				return fail(name, "index %q has no columns", idx.Name)
			}
			for _, col := range idx.Columns {
				if !cols[col] {
					return fail(name, "index %q references unknown column %q", idx.Name, col)
				}
			}
		}
		for _, fk := range t.ForeignKeys {
			if !cols[fk.Column] {
				return fail(name, "foreign key on unknown column %q", fk.Column)
			}
			if fk.References.Table == "" || fk.References.Column == "" {
				return fail(name, "foreign key on %q has no reference target", fk.Column)
			}
		}
	}
	return nil
}
