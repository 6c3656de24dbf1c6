package queryconfig

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethyca-go/privacyrun/internal/model"
)

// SnowflakeDialect double-quotes identifiers, as Snowflake requires for
// case-sensitive column and table names.
type SnowflakeDialect struct{}

func (SnowflakeDialect) FormatFieldsForQuery(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = fmt.Sprintf("%q", model.ParseFieldPath(p).LastLevel())
	}
	return out
}

func (SnowflakeDialect) FormatClauseForQuery(path, operator, operand string) string {
	return fmt.Sprintf("%q %s (:%s)", path, operator, operand)
}

func (SnowflakeDialect) FormattedQueryString(fieldList string, clauses []string, tableName string) string {
	return fmt.Sprintf("SELECT %s FROM %q WHERE %s", fieldList, tableName, strings.Join(clauses, " OR "))
}

func (SnowflakeDialect) FormatKeyMapForUpdate(fields []string) []string {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	out := make([]string, len(sorted))
	for i, k := range sorted {
		out[i] = fmt.Sprintf("%q = :%s", k, k)
	}
	return out
}

func (SnowflakeDialect) FormattedUpdateStatement(updateClauses, pkClauses []string, tableName string) string {
	return fmt.Sprintf("UPDATE %q SET %s WHERE %s", tableName, strings.Join(updateClauses, ","), strings.Join(pkClauses, " AND "))
}

func (SnowflakeDialect) SupportsTupleBinding() bool { return true }
