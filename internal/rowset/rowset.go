// Package rowset defines the tabular result container passed between the
// federation, merge, and answer stages.
package rowset

import (
	"fmt"
	"strings"

	"github.com/skillbridge-labs/fedsql/pkg/adapter"
)

// Row is a single result row keyed by column name.
type Row map[string]any

// RowSet holds the rows returned by one source query, or by the merge stage.
// Rows holds at most the capped number of rows; RowCount is the total number
// of rows the query produced, so Truncated is true whenever RowCount exceeds
// the cap applied at build time.
type RowSet struct {
	Source    string   `json:"source,omitempty"`
	Columns   []string `json:"columns"`
	Rows      []Row    `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated"`
}

// Empty returns a RowSet with no columns and no rows, used when a source
// received no query or contributed nothing.
func Empty(source string) *RowSet {
	return &RowSet{Source: source, Columns: []string{}, Rows: []Row{}}
}

// IsEmpty reports whether the set carries no rows.
func (rs *RowSet) IsEmpty() bool {
	return rs == nil || len(rs.Rows) == 0
}

// FromRows drains a database result into a RowSet, keeping at most maxRows
// rows while counting every row the query produced. A maxRows of zero or
// below means no cap.
func FromRows(source string, rows *adapter.Rows, maxRows int) (*RowSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	rs := &RowSet{Source: source, Columns: cols, Rows: []Row{}}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		rs.RowCount++
		if maxRows > 0 && len(rs.Rows) >= maxRows {
			continue
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	rs.Truncated = maxRows > 0 && rs.RowCount > maxRows
	return rs, nil
}

// Clone returns a deep copy. Stages that hand a RowSet to untrusted code use
// the copy so the caller's set stays intact.
func (rs *RowSet) Clone() *RowSet {
	if rs == nil {
		return nil
	}
	out := &RowSet{
		Source:    rs.Source,
		Columns:   append([]string(nil), rs.Columns...),
		Rows:      make([]Row, 0, len(rs.Rows)),
		RowCount:  rs.RowCount,
		Truncated: rs.Truncated,
	}
	for _, row := range rs.Rows {
		copied := make(Row, len(row))
		for k, v := range row {
			copied[k] = v
		}
		out.Rows = append(out.Rows, copied)
	}
	return out
}

// SampleRows returns up to n rows for inclusion in a prompt.
func (rs *RowSet) SampleRows(n int) []Row {
	if rs == nil || n <= 0 {
		return nil
	}
	if n > len(rs.Rows) {
		n = len(rs.Rows)
	}
	return rs.Rows[:n]
}

// Markdown renders the set as a GitHub-style markdown table. Useful for
// feeding tabular data to a language model in a shape it reads well.
func (rs *RowSet) Markdown() string {
	if rs.IsEmpty() {
		return "(no rows)"
	}

	var sb strings.Builder
	sb.WriteString("| " + strings.Join(rs.Columns, " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat(" --- |", len(rs.Columns)) + "\n")
	for _, row := range rs.Rows {
		cells := make([]string, len(rs.Columns))
		for i, col := range rs.Columns {
			cells[i] = formatCell(row[col])
		}
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return sb.String()
}

func formatCell(v any) string {
	if v == nil {
		return ""
	}
	s := fmt.Sprintf("%v", v)
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
