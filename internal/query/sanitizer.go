// Package query turns analytics request parameters into store conditions:
// the event field catalog, the filter expression language, and the time
// windows behind period and timeframe.
package query

import (
	"fmt"
	"regexp"
	"strings"
)

// maxValueLen bounds a single filter value.
const maxValueLen = 1024

var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// reservedWords may never appear as a column in generated SQL, even when a
// catalog entry maps to one by mistake.
var reservedWords = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true,
	"DROP": true, "CREATE": true, "ALTER": true, "TRUNCATE": true,
	"UNION": true, "FROM": true, "WHERE": true, "TABLE": true,
	"USER": true, "ORDER": true, "GROUP": true, "DELAYED": true,
}

// ValidateIdentifier checks that name is safe to splice into SQL as a
// column name.
func ValidateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("identifier too long (max 64 chars): %q", name)
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("invalid identifier %q: must match [a-zA-Z_][a-zA-Z0-9_]*", name)
	}
	if reservedWords[strings.ToUpper(name)] {
		return fmt.Errorf("identifier %q is a SQL reserved word", name)
	}
	return nil
}

// SanitizeValue strips NUL bytes and enforces maxValueLen. Values are always
// bound as parameters; this only keeps junk out of the driver.
func SanitizeValue(val string) (string, error) {
	val = strings.ReplaceAll(val, "\x00", "")
	if len(val) > maxValueLen {
		return "", fmt.Errorf("value too long (max %d chars)", maxValueLen)
	}
	return val, nil
}
