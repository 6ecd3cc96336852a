package decompose

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	selectPrefixRe = regexp.MustCompile(`(?i)^\s*SELECT\b`)
	forbiddenSQLRe = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|TRUNCATE|CREATE|GRANT|REVOKE|REPLACE)\b`)
)

// IsSafeSQL reports whether the statement is a single read-only SELECT.
// Empty SQL is safe: it means the source is not consulted.
func IsSafeSQL(sql string) bool {
	if sql == "" {
		return true
	}
	s := strings.TrimSpace(sql)
	if !selectPrefixRe.MatchString(s) {
		return false
	}
	// One trailing semicolon is fine; anything more is multiple statements.
	if strings.Contains(strings.TrimSuffix(s, ";"), ";") {
		return false
	}
	return !forbiddenSQLRe.MatchString(s)
}

// EnsureSafeSQL returns the statement unchanged if it passes IsSafeSQL and
// an error otherwise.
func EnsureSafeSQL(sql string) (string, error) {
	if !IsSafeSQL(sql) {
		return "", fmt.Errorf("only read-only SELECT statements are permitted")
	}
	return sql, nil
}
