package merge

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

// The sandbox exposes two capability modules: "tbl" for tabular operations
// over lists of dicts, and "num" for the numeric helpers Starlark's universe
// lacks. Nothing else is bound; in particular there is no filesystem,
// network, process, or module-import capability to reach for.

func tblModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "tbl",
		Members: starlark.StringDict{
			"concat":   starlark.NewBuiltin("tbl.concat", tblConcat),
			"select":   starlark.NewBuiltin("tbl.select", tblSelect),
			"rename":   starlark.NewBuiltin("tbl.rename", tblRename),
			"filter":   starlark.NewBuiltin("tbl.filter", tblFilter),
			"derive":   starlark.NewBuiltin("tbl.derive", tblDerive),
			"join":     starlark.NewBuiltin("tbl.join", tblJoin),
			"sort_by":  starlark.NewBuiltin("tbl.sort_by", tblSortBy),
			"limit":    starlark.NewBuiltin("tbl.limit", tblLimit),
			"distinct": starlark.NewBuiltin("tbl.distinct", tblDistinct),
		},
	}
}

func numModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "num",
		Members: starlark.StringDict{
			"sum": starlark.NewBuiltin("num.sum", numSum),
			"avg": starlark.NewBuiltin("num.avg", numAvg),
		},
	}
}

// tableRows unpacks a table argument into its row dicts.
func tableRows(name string, v starlark.Value) ([]*starlark.Dict, error) {
	list, ok := v.(*starlark.List)
	if !ok {
		return nil, fmt.Errorf("%s: expected a table (list of dicts), got %s", name, v.Type())
	}
	rows := make([]*starlark.Dict, list.Len())
	for i := 0; i < list.Len(); i++ {
		dict, ok := list.Index(i).(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("%s: row %d is %s, not a dict", name, i, list.Index(i).Type())
		}
		rows[i] = dict
	}
	return rows, nil
}

func rowsToList(rows []*starlark.Dict) *starlark.List {
	elems := make([]starlark.Value, len(rows))
	for i, r := range rows {
		elems[i] = r
	}
	return starlark.NewList(elems)
}

func tblConcat(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var a, c starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "a", &a, "b", &c); err != nil {
		return nil, err
	}
	left, err := tableRows(b.Name(), a)
	if err != nil {
		return nil, err
	}
	right, err := tableRows(b.Name(), c)
	if err != nil {
		return nil, err
	}
	return rowsToList(append(left, right...)), nil
}

func tblSelect(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var table starlark.Value
	var cols *starlark.List
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "table", &table, "columns", &cols); err != nil {
		return nil, err
	}
	rows, err := tableRows(b.Name(), table)
	if err != nil {
		return nil, err
	}

	out := make([]*starlark.Dict, len(rows))
	for i, row := range rows {
		dict := starlark.NewDict(cols.Len())
		for j := 0; j < cols.Len(); j++ {
			key := cols.Index(j)
			v, found, err := row.Get(key)
			if err != nil {
				return nil, err
			}
			if !found {
				v = starlark.None
			}
			if err := dict.SetKey(key, v); err != nil {
				return nil, err
			}
		}
		out[i] = dict
	}
	return rowsToList(out), nil
}

func tblRename(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var table starlark.Value
	var mapping *starlark.Dict
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "table", &table, "mapping", &mapping); err != nil {
		return nil, err
	}
	rows, err := tableRows(b.Name(), table)
	if err != nil {
		return nil, err
	}

	out := make([]*starlark.Dict, len(rows))
	for i, row := range rows {
		dict := starlark.NewDict(row.Len())
		for _, kv := range row.Items() {
			key := kv[0]
			if renamed, found, err := mapping.Get(key); err == nil && found {
				key = renamed
			}
			if err := dict.SetKey(key, kv[1]); err != nil {
				return nil, err
			}
		}
		out[i] = dict
	}
	return rowsToList(out), nil
}

func tblFilter(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var table starlark.Value
	var fn starlark.Callable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "table", &table, "fn", &fn); err != nil {
		return nil, err
	}
	rows, err := tableRows(b.Name(), table)
	if err != nil {
		return nil, err
	}

	var out []*starlark.Dict
	for _, row := range rows {
		keep, err := starlark.Call(thread, fn, starlark.Tuple{row}, nil)
		if err != nil {
			return nil, err
		}
		if bool(keep.Truth()) {
			out = append(out, row)
		}
	}
	return rowsToList(out), nil
}

func tblDerive(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var table starlark.Value
	var name string
	var fn starlark.Callable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "table", &table, "name", &name, "fn", &fn); err != nil {
		return nil, err
	}
	rows, err := tableRows(b.Name(), table)
	if err != nil {
		return nil, err
	}

	out := make([]*starlark.Dict, len(rows))
	for i, row := range rows {
		v, err := starlark.Call(thread, fn, starlark.Tuple{row}, nil)
		if err != nil {
			return nil, err
		}
		dict := starlark.NewDict(row.Len() + 1)
		for _, kv := range row.Items() {
			if err := dict.SetKey(kv[0], kv[1]); err != nil {
				return nil, err
			}
		}
		if err := dict.SetKey(starlark.String(name), v); err != nil {
			return nil, err
		}
		out[i] = dict
	}
	return rowsToList(out), nil
}

func tblJoin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var a, c starlark.Value
	var leftKey, rightKey string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"a", &a, "b", &c, "left_key", &leftKey, "right_key", &rightKey); err != nil {
		return nil, err
	}
	left, err := tableRows(b.Name(), a)
	if err != nil {
		return nil, err
	}
	right, err := tableRows(b.Name(), c)
	if err != nil {
		return nil, err
	}

	var out []*starlark.Dict
	for _, lrow := range left {
		lval, found, err := lrow.Get(starlark.String(leftKey))
		if err != nil || !found {
			continue
		}
		for _, rrow := range right {
			rval, found, err := rrow.Get(starlark.String(rightKey))
			if err != nil || !found {
				continue
			}
			eq, err := starlark.Equal(lval, rval)
			if err != nil || !eq {
				continue
			}
			dict := starlark.NewDict(lrow.Len() + rrow.Len())
			for _, kv := range lrow.Items() {
				if err := dict.SetKey(kv[0], kv[1]); err != nil {
					return nil, err
				}
			}
			for _, kv := range rrow.Items() {
				// Left side wins on column name collisions.
				if _, exists, _ := dict.Get(kv[0]); exists {
					continue
				}
				if err := dict.SetKey(kv[0], kv[1]); err != nil {
					return nil, err
				}
			}
			out = append(out, dict)
		}
	}
	return rowsToList(out), nil
}

func tblSortBy(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var table starlark.Value
	var key string
	var reverse bool
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"table", &table, "key", &key, "reverse?", &reverse); err != nil {
		return nil, err
	}
	rows, err := tableRows(b.Name(), table)
	if err != nil {
		return nil, err
	}

	sorted := append([]*starlark.Dict(nil), rows...)
	var sortErr error
	sort.SliceStable(sorted, func(i, j int) bool {
		vi, _, err := sorted[i].Get(starlark.String(key))
		if err != nil || vi == nil {
			vi = starlark.None
		}
		vj, _, err := sorted[j].Get(starlark.String(key))
		if err != nil || vj == nil {
			vj = starlark.None
		}
		less, err := starlark.CompareDepth(syntax.LT, vi, vj, starlark.CompareLimit)
		if err != nil {
			sortErr = err
			return false
		}
		if reverse {
			return !less
		}
		return less
	})
	if sortErr != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), sortErr)
	}
	return rowsToList(sorted), nil
}

func tblLimit(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var table starlark.Value
	var n int
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "table", &table, "n", &n); err != nil {
		return nil, err
	}
	rows, err := tableRows(b.Name(), table)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	if n > len(rows) {
		n = len(rows)
	}
	return rowsToList(rows[:n]), nil
}

func tblDistinct(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var table starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "table", &table); err != nil {
		return nil, err
	}
	rows, err := tableRows(b.Name(), table)
	if err != nil {
		return nil, err
	}

	var out []*starlark.Dict
	for _, row := range rows {
		dup := false
		for _, kept := range out {
			eq, err := starlark.Equal(row, kept)
			if err == nil && eq {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, row)
		}
	}
	return rowsToList(out), nil
}

func numSum(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	values, err := unpackNumbers(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return starlark.Float(total), nil
}

func numAvg(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	values, err := unpackNumbers(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return starlark.Float(0), nil
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return starlark.Float(total / float64(len(values))), nil
}

func unpackNumbers(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) ([]float64, error) {
	var list *starlark.List
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "values", &list); err != nil {
		return nil, err
	}
	out := make([]float64, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		switch v := list.Index(i).(type) {
		case starlark.Int:
			i64, _ := v.Int64()
			out = append(out, float64(i64))
		case starlark.Float:
			out = append(out, float64(v))
		case starlark.NoneType:
			// NULLs contribute nothing.
		default:
			return nil, fmt.Errorf("%s: index %d is %s, not a number", b.Name(), i, v.Type())
		}
	}
	return out, nil
}
