package storage

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/rejectlist/internal/core"
)

// WhereBuilder assembles a parameterized WHERE clause. Conditions are ANDed
// and numbered placeholders continue across calls.
type WhereBuilder struct {
	conditions []string
	args       []interface{}
	argIndex   int
}

// NewWhereBuilder returns a builder whose first placeholder is $1.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// AddEqualFold appends a case-insensitive equality on col.
func (wb *WhereBuilder) AddEqualFold(col, value string) {
	if value == "" {
		return
	}
	wb.conditions = append(wb.conditions, fmt.Sprintf("lower(%s) = lower($%d)", col, wb.argIndex))
	wb.args = append(wb.args, value)
	wb.argIndex++
}

// AddContains appends a case-insensitive substring match on col.
func (wb *WhereBuilder) AddContains(col, value string) {
	wb.AddSearch(value, []string{col})
}

// AddSearch ORs a case-insensitive substring match across cols, sharing one
// placeholder. LIKE wildcards in query match literally.
func (wb *WhereBuilder) AddSearch(query string, cols []string) {
	if query == "" || len(cols) == 0 {
		return
	}
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf(`%s ILIKE $%d ESCAPE '\'`, col, wb.argIndex)
	}
	wb.conditions = append(wb.conditions, "("+strings.Join(parts, " OR ")+")")
	wb.args = append(wb.args, "%"+escapeLike(query)+"%")
	wb.argIndex++
}

// AddQuery applies every active filter of q.
func (wb *WhereBuilder) AddQuery(q core.Query) {
	if q.Search != "" {
		cols := make([]string, 0, len(core.SearchFields))
		for _, name := range core.SearchFields {
			if spec, ok := core.LookupFieldSpec(name); ok {
				cols = append(cols, spec.Column)
			}
		}
		wb.AddSearch(q.Search, cols)
	}
	if q.HasStatus() {
		wb.AddEqualFold("status", q.Status)
	}
	wb.AddContains("name", q.Name)
}

// Build returns " WHERE ..." and its arguments, or "" and nil when empty.
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// quoteIdentifier quotes a SQL identifier, doubling embedded quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
