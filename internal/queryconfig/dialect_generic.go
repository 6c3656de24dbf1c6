package queryconfig

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethyca-go/privacyrun/internal/model"
)

// GenericDialect is the bare, unquoted-identifier SQL dialect most
// relational backends accept as-is.
type GenericDialect struct{}

func (GenericDialect) FormatFieldsForQuery(paths []string) []string {
	return lastLevels(paths)
}

func (GenericDialect) FormatClauseForQuery(path, operator, operand string) string {
	return fmt.Sprintf("%s %s :%s", path, operator, operand)
}

func (GenericDialect) FormattedQueryString(fieldList string, clauses []string, tableName string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s", fieldList, tableName, strings.Join(clauses, " OR "))
}

func (GenericDialect) FormatKeyMapForUpdate(fields []string) []string {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	out := make([]string, len(sorted))
	for i, k := range sorted {
		out[i] = fmt.Sprintf("%s = :%s", k, k)
	}
	return out
}

func (GenericDialect) FormattedUpdateStatement(updateClauses, pkClauses []string, tableName string) string {
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s", tableName, strings.Join(updateClauses, ","), strings.Join(pkClauses, " AND "))
}

func (GenericDialect) SupportsTupleBinding() bool { return true }

// lastLevels takes the last segment of each dotted field path, since SQL
// query configs only ever project flat columns (see FieldPath.LastLevel:
// nested projection is not supported for relational backends).
func lastLevels(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = model.ParseFieldPath(p).LastLevel()
	}
	return out
}
