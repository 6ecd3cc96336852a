package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/skillbridge-labs/fedsql/internal/rowset"
)

func renderRowSet(w io.Writer, rs *rowset.RowSet, format string) error {
	if rs == nil {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	switch format {
	case "json":
		return renderJSON(w, rs)
	case "csv":
		return renderCSV(w, rs)
	case "md", "markdown":
		_, _ = fmt.Fprint(w, rs.Markdown())
		return nil
	default:
		return renderTable(w, rs)
	}
}

func renderTable(w io.Writer, rs *rowset.RowSet) error {
	if len(rs.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(rs.Columns))
	for i, col := range rs.Columns {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, r := range rs.Rows {
		row := make(table.Row, len(rs.Columns))
		for i, col := range rs.Columns {
			row[i] = formatValue(r[col])
		}
		t.AppendRow(row)
	}

	t.Render()
	if rs.Truncated {
		_, _ = fmt.Fprintf(w, "(%d of %d rows)\n", len(rs.Rows), rs.RowCount)
	} else {
		_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rs.Rows))
	}
	return nil
}

func renderJSON(w io.Writer, rs *rowset.RowSet) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rs)
}

func renderCSV(w io.Writer, rs *rowset.RowSet) error {
	_, _ = fmt.Fprintln(w, strings.Join(rs.Columns, ","))
	for _, r := range rs.Rows {
		values := make([]string, len(rs.Columns))
		for i, col := range rs.Columns {
			values[i] = escapeCSV(formatValue(r[col]))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
	return nil
}

func renderJSONValue(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
