package db

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// BuildUpdate renders `UPDATE table SET ... , updated_at = now WHERE id = $n`
// from a column/value map. Columns are emitted in sorted order so the
// statement text is stable for a given set of columns.
func BuildUpdate(table string, id int64, updates map[string]any, now time.Time) (string, []any) {
	columns := make([]string, 0, len(updates))
	for column := range updates {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	setClauses := make([]string, 0, len(columns)+1)
	args := make([]any, 0, len(columns)+2)
	argPos := 1
	for _, column := range columns {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, updates[column])
		argPos++
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, now)
	argPos++

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d`, table, strings.Join(setClauses, ", "), argPos)
	return query, args
}
