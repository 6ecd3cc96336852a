package merge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/skillbridge-labs/fedsql/internal/rowset"
)

// sampleRowLimit caps how many rows per side are shown to the model. The
// prompt carries structure, never the full data.
const sampleRowLimit = 2

const mergeInstructions = `You are a data transformation assistant. Two tables are in scope as lists
of dicts: "course" and "job". Write a short Starlark snippet that combines
them into ONE result table answering the user's question, and assign that
table (a list of dicts) to a variable named "merged".

Available helpers:
- tbl.concat(a, b), tbl.select(table, columns), tbl.rename(table, mapping)
- tbl.filter(table, fn), tbl.derive(table, name, fn)
- tbl.join(a, b, left_key, right_key), tbl.sort_by(table, key, reverse=False)
- tbl.limit(table, n), tbl.distinct(table)
- num.sum(values), num.avg(values)
- built-ins: len, min, max, sorted, range, str, int, float, print

Rules:
- Use ONLY the names listed above plus "course" and "job".
- Do not import anything. There is no filesystem or network access.
- Keep it short: filter, join, rename, derive, aggregate as needed.
- The last meaningful statement must assign the result to "merged".
- Return ONLY the Starlark code, no explanations.`

func buildMergePrompt(question string, course, job *rowset.RowSet) string {
	var sb strings.Builder
	sb.WriteString(mergeInstructions)
	sb.WriteString("\n\nUser question: ")
	sb.WriteString(question)
	sb.WriteString("\n\n")
	writeTableSummary(&sb, "course", course)
	writeTableSummary(&sb, "job", job)
	return sb.String()
}

func writeTableSummary(sb *strings.Builder, name string, rs *rowset.RowSet) {
	fmt.Fprintf(sb, "Table %q: %d rows, columns %v\n", name, rs.RowCount, rs.Columns)
	samples := rs.SampleRows(sampleRowLimit)
	if len(samples) == 0 {
		sb.WriteString("(no sample rows)\n\n")
		return
	}
	for _, row := range samples {
		encoded, err := json.Marshal(row)
		if err != nil {
			continue
		}
		sb.Write(encoded)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}
