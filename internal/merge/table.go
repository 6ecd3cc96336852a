package merge

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/skillbridge-labs/fedsql/internal/rowset"
)

// Tables cross the sandbox boundary as lists of string-keyed dicts. That is
// the shape generated snippets manipulate most naturally in Starlark.

func tableToStarlark(rs *rowset.RowSet) (*starlark.List, error) {
	if rs == nil {
		return starlark.NewList(nil), nil
	}

	elems := make([]starlark.Value, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		dict := starlark.NewDict(len(rs.Columns))
		for _, col := range rs.Columns {
			sv, err := goToStarlark(row[col])
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col, err)
			}
			if err := dict.SetKey(starlark.String(col), sv); err != nil {
				return nil, fmt.Errorf("column %q: %w", col, err)
			}
		}
		elems = append(elems, dict)
	}
	return starlark.NewList(elems), nil
}

// starlarkToTable converts a snippet's output back into a RowSet. Only a
// list (or tuple) of string-keyed dicts is table-shaped; anything else is
// rejected by the caller as an output error. Column order is first-seen
// across rows.
func starlarkToTable(v starlark.Value) (*rowset.RowSet, error) {
	var items []starlark.Value
	switch seq := v.(type) {
	case *starlark.List:
		items = make([]starlark.Value, seq.Len())
		for i := 0; i < seq.Len(); i++ {
			items[i] = seq.Index(i)
		}
	case starlark.Tuple:
		items = seq
	default:
		return nil, fmt.Errorf("expected a list of dicts, got %s", v.Type())
	}

	rs := &rowset.RowSet{Source: "merged", Columns: []string{}, Rows: []rowset.Row{}}
	seen := map[string]bool{}

	for i, item := range items {
		dict, ok := item.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("row %d: expected a dict, got %s", i, item.Type())
		}

		row := make(rowset.Row, dict.Len())
		for _, kv := range dict.Items() {
			key, ok := kv[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("row %d: column name must be a string, got %s", i, kv[0].Type())
			}
			gv, err := starlarkToGo(kv[1])
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, string(key), err)
			}
			row[string(key)] = gv
			if !seen[string(key)] {
				seen[string(key)] = true
				rs.Columns = append(rs.Columns, string(key))
			}
		}
		rs.Rows = append(rs.Rows, row)
	}

	// Rows missing a later-seen column get an explicit nil so every row's
	// key set equals Columns.
	for _, row := range rs.Rows {
		for _, col := range rs.Columns {
			if _, ok := row[col]; !ok {
				row[col] = nil
			}
		}
	}

	rs.RowCount = len(rs.Rows)
	return rs, nil
}

// goToStarlark converts a Go value to a Starlark value.
// Supported types: string, int, int64, float64, bool, []any, map[string]any.
func goToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case string:
		return starlark.String(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int32:
		return starlark.MakeInt64(int64(val)), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float32:
		return starlark.Float(float64(val)), nil
	case float64:
		return starlark.Float(val), nil
	case bool:
		return starlark.Bool(val), nil
	case []byte:
		return starlark.String(string(val)), nil
	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := goToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil
	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			sv, err := goToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil
	default:
		// Database drivers hand back times and decimals as concrete types;
		// their string form is good enough for merge purposes.
		return starlark.String(fmt.Sprintf("%v", val)), nil
	}
}

// starlarkToGo converts a Starlark value back to a Go value.
// Returns: string, int64, float64, bool, []any, map[string]any, or nil.
func starlarkToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.String:
		return string(val), nil
	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			return val.String(), nil
		}
		return i64, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.Bool:
		return bool(val), nil
	case *starlark.List:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := starlarkToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil
	case starlark.Tuple:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := starlarkToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("tuple index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil
	case *starlark.Dict:
		result := make(map[string]any)
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			gv, err := starlarkToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", string(key), err)
			}
			result[string(key)] = gv
		}
		return result, nil
	default:
		return val.String(), nil
	}
}
