package queryconfig

import (
	"fmt"
	"sort"
	"strings"

	"github.com/valyala/bytebufferpool"
)

// SQLStatement is a parameterized SQL statement: Text has named
// placeholders ("WHERE col = :k") and Params supplies their values, the same
// named-parameter binding shape sqlalchemy's text().params() uses.
type SQLStatement struct {
	Text   string
	Params map[string]any
}

// SQLDialect supplies the identifier quoting and clause formatting that
// differs across SQL backends; SQLQueryConfig drives the shared retrieval
// and update-statement algorithm through it.
type SQLDialect interface {
	// FormatFieldsForQuery renders the last path level of each field path
	// the way this dialect expects a column list to look.
	FormatFieldsForQuery(paths []string) []string
	// FormatClauseForQuery renders one WHERE clause fragment.
	FormatClauseForQuery(path, operator, operand string) string
	// FormattedQueryString assembles the full SELECT statement.
	FormattedQueryString(fieldList string, clauses []string, tableName string) string
	// FormatKeyMapForUpdate renders "col = :col" assignments, sorted for
	// determinism.
	FormatKeyMapForUpdate(fields []string) []string
	// FormattedUpdateStatement assembles the full UPDATE statement.
	FormattedUpdateStatement(updateClauses, pkClauses []string, tableName string) string
	// SupportsTupleBinding reports whether this dialect's driver can bind a
	// Go slice directly to a SQL "IN (:k)" placeholder. SQLServer cannot,
	// and instead expands to one named parameter per value.
	SupportsTupleBinding() bool
}

// SQLQueryConfig generates retrieval and update statements for a SQL
// dialect, parameterized over SQLDialect.
type SQLQueryConfig struct {
	Node    Node
	Dialect SQLDialect
}

// GenerateQuery builds a SELECT statement filtering on whatever query field
// paths have data, OR'd together. It returns ok=false when there is not
// enough data to query anything, matching the original's "return None"
// behavior rather than raising.
func (c SQLQueryConfig) GenerateQuery(inputData map[string][]any) (SQLStatement, bool) {
	filtered := c.Node.TypedFilteredValues(inputData)
	if len(filtered) == 0 {
		return SQLStatement{}, false
	}

	var fieldPaths []string
	for path := range c.Node.FieldMap() {
		fieldPaths = append(fieldPaths, path)
	}
	sort.Strings(fieldPaths)
	fieldList := strings.Join(c.Dialect.FormatFieldsForQuery(fieldPaths), ",")

	var clauses []string
	params := map[string]any{}

	var keys []string
	for k := range filtered {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, path := range keys {
		values := dedupe(filtered[path])
		switch {
		case len(values) == 1:
			clauses = append(clauses, c.Dialect.FormatClauseForQuery(path, "=", path))
			params[path] = values[0]
		case len(values) > 1 && c.Dialect.SupportsTupleBinding():
			clauses = append(clauses, c.Dialect.FormatClauseForQuery(path, "IN", path))
			params[path] = values
		case len(values) > 1:
			var operandKeys []string
			for i, v := range values {
				name := fmt.Sprintf("%s_in_stmt_generated_%d", path, i)
				params[name] = v
				operandKeys = append(operandKeys, ":"+name)
			}
			clauses = append(clauses, c.Dialect.FormatClauseForQuery(path, "IN", strings.Join(operandKeys, ", ")))
		}
	}

	if len(clauses) == 0 {
		return SQLStatement{}, false
	}
	return SQLStatement{
		Text:   c.Dialect.FormattedQueryString(fieldList, clauses, c.Node.Graph.Address.Collection),
		Params: params,
	}, true
}

// GenerateUpdateStatement builds an UPDATE statement masking row's targeted
// fields, keyed by the row's primary-key values. It returns ok=false if
// there is no primary key data or nothing to update.
func (c SQLQueryConfig) GenerateUpdateStatement(row Row, updateValueMap map[string]any) (SQLStatement, bool) {
	var updateFields []string
	for k := range updateValueMap {
		updateFields = append(updateFields, k)
	}
	updateClauses := c.Dialect.FormatKeyMapForUpdate(updateFields)

	pkValues := map[string]any{}
	for path, field := range c.Node.PrimaryKeyFieldPaths() {
		if v, ok := row[path]; ok {
			if cast := field.Cast(v); cast != nil {
				pkValues[path] = cast
			}
		}
	}
	var pkFields []string
	for k := range pkValues {
		pkFields = append(pkFields, k)
	}
	pkClauses := c.Dialect.FormatKeyMapForUpdate(pkFields)

	if len(pkClauses) == 0 || len(updateClauses) == 0 {
		return SQLStatement{}, false
	}

	params := map[string]any{}
	for k, v := range updateValueMap {
		params[k] = v
	}
	for k, v := range pkValues {
		params[k] = v
	}

	return SQLStatement{
		Text:   c.Dialect.FormattedUpdateStatement(updateClauses, pkClauses, c.Node.Graph.Address.Collection),
		Params: params,
	}, true
}

// QueryToString renders a statement with its parameters substituted
// in-line, for logging and dry-run display only; it is never executed. It
// scans Text once rather than chaining one strings.ReplaceAll per
// parameter: a sequential-replace approach corrupts statements where one
// placeholder name is a prefix of another (":email" as a substring of
// ":email_in_stmt_generated_0"), which this dataset's generated IN-clause
// names can produce.
func (c SQLQueryConfig) QueryToString(stmt SQLStatement) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	text := stmt.Text
	i := 0
	for i < len(text) {
		if text[i] != ':' {
			buf.WriteByte(text[i])
			i++
			continue
		}
		j := i + 1
		for j < len(text) && isPlaceholderByte(text[j]) {
			j++
		}
		name := text[i+1 : j]
		if v, ok := stmt.Params[name]; ok {
			fmt.Fprintf(buf, "%v", v)
			i = j
			continue
		}
		buf.WriteByte(text[i])
		i++
	}
	return buf.String()
}

func isPlaceholderByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// DryRunQuery renders a representative SELECT using placeholder tokens for
// every query field path, without requiring real collected input data.
func (c SQLQueryConfig) DryRunQuery() (string, bool) {
	display := displayQueryData(c.Node)
	stmt, ok := c.GenerateQuery(display)
	if !ok {
		return "", false
	}
	return c.QueryToString(stmt), true
}

func dedupe(values []any) []any {
	seen := map[any]bool{}
	var out []any
	for _, v := range values {
		key := fmt.Sprintf("%v", v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
