package importer

import (
	"regexp"
	"strings"
)

var (
	// tableNamePattern allows one optional schema qualifier.
	tableNamePattern  = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)?$`)
	columnNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// ValidateTableName checks that name is safe to interpolate into SQL as a
// (schema-qualified) table name.
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return invalidIdentifier("table", name)
	}
	return nil
}

// ValidateColumnName checks that name is a plain column identifier.
// Columns never carry a schema qualifier, so dots are rejected.
func ValidateColumnName(name string) error {
	if !columnNamePattern.MatchString(name) {
		return invalidIdentifier("column", name)
	}
	return nil
}

// SplitIdentifier splits "schema.name" on the first dot.
// schema is empty when name is unqualified.
func SplitIdentifier(name string) (schema, leaf string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// QuoteIdentifier quotes a SQL identifier to prevent injection.
// "public.users" -> "public"."users"
func QuoteIdentifier(name string) string {
	i := strings.IndexByte(name, '.')
	if i < 0 {
		return quotePart(name)
	}
	return quotePart(name[:i]) + "." + quotePart(name[i+1:])
}

func quotePart(part string) string {
	return `"` + strings.ReplaceAll(part, `"`, `""`) + `"`
}

// QuoteColumns quotes each column name.
func QuoteColumns(cols []string) []string {
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = QuoteIdentifier(col)
	}
	return quoted
}
