package queryconfig

import (
	"fmt"
	"strings"
)

// RedshiftDialect is generic SQL except the SELECT statement double-quotes
// the table name, since Redshift table names can collide with reserved
// words.
type RedshiftDialect struct {
	GenericDialect
}

func (RedshiftDialect) FormattedQueryString(fieldList string, clauses []string, tableName string) string {
	return fmt.Sprintf("SELECT %s FROM %q WHERE %s", fieldList, tableName, strings.Join(clauses, " OR "))
}
