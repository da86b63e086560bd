package types

// Where operators accepted by the engine.
const (
	OpEqual        = "="
	OpNotEqual     = "!="
	OpLess         = "<"
	OpLessEqual    = "<="
	OpGreater      = ">"
	OpGreaterEqual = ">="
	OpLike         = "LIKE"
	OpNotLike      = "NOT LIKE"
	OpIn           = "IN"
	OpNotIn        = "NOT IN"
	OpIsNull       = "IS NULL"
	OpIsNotNull    = "IS NOT NULL"
)

// WhereClause is one condition. An empty Operator means equality. IN and
// NOT IN take a slice Value; IS NULL and IS NOT NULL ignore Value.
type WhereClause struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// Eq is shorthand for an equality WhereClause.
func Eq(field string, value any) WhereClause {
	return WhereClause{Field: field, Operator: OpEqual, Value: value}
}

// OrderByClause orders results by one field. Direction is ASC or DESC.
type OrderByClause struct {
	Field     string `json:"field" yaml:"field"`
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// QueryOptions describes a select. Zero Limit means no limit.
type QueryOptions struct {
	Columns []string
	Where   []WhereClause
	OrderBy []OrderByClause
	Limit   int
	Offset  int
}
