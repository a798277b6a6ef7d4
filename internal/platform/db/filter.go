package db

import (
	"fmt"
	"strings"
)

// Filter accumulates WHERE conditions with positional arguments.
type Filter struct {
	conditions []string
	args       []any
}

// Add appends a condition. Every "?" in expr refers to value.
func (f *Filter) Add(expr string, value any) {
	placeholder := f.Bind(value)
	f.conditions = append(f.conditions, strings.ReplaceAll(expr, "?", placeholder))
}

// Bind appends value and returns its placeholder without adding a condition.
func (f *Filter) Bind(value any) string {
	f.args = append(f.args, value)
	return fmt.Sprintf("$%d", len(f.args))
}

// Where renders the clause, or an empty string when there are no conditions.
func (f *Filter) Where() string {
	if len(f.conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(f.conditions, " AND ")
}

// Args returns the bound arguments in placeholder order.
func (f *Filter) Args() []any {
	return f.args
}

// LikePattern escapes LIKE wildcards in term and wraps it for a substring match.
func LikePattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(term) + "%"
}
