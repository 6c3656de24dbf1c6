package queryconfig

import "fmt"

// SQLServerDialect is generic SQL, except it cannot bind a Go slice to a
// single "IN (:k)" placeholder; SQLQueryConfig.GenerateQuery detects
// SupportsTupleBinding()==false and instead expands one named parameter per
// value, joined with the already-built operand string.
type SQLServerDialect struct {
	GenericDialect
}

func (SQLServerDialect) FormatClauseForQuery(path, operator, operand string) string {
	if operator == "IN" {
		return fmt.Sprintf("%s IN (%s)", path, operand)
	}
	return GenericDialect{}.FormatClauseForQuery(path, operator, operand)
}

func (SQLServerDialect) SupportsTupleBinding() bool { return false }
