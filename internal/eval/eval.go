package eval

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pivotlens/pivotlens/internal/pivot"
	"github.com/pivotlens/pivotlens/internal/table"
)

// BoundName is the only identifier an expression may reference.
const BoundName = "df"

// allowedMethods is the closed set of operations an expression may call.
var allowedMethods = map[string]bool{
	"filter": true, "where": true, "groupby": true,
	"sum": true, "mean": true, "min": true, "max": true, "median": true,
	"count": true, "std": true, "var": true,
	"sort_values": true, "sort": true, "head": true, "tail": true,
	"round": true, "abs": true,
	"idxmax": true, "idxmin": true,
	"unique": true, "nunique": true, "values": true, "tolist": true,
	"contains": true, "startswith": true, "endswith": true,
}

var aggMethods = map[string]pivot.Aggregation{
	"sum": pivot.Sum, "mean": pivot.Mean, "min": pivot.Min, "max": pivot.Max,
	"median": pivot.Median, "count": pivot.Count, "std": pivot.Std, "var": pivot.Var,
}

// Evaluate parses and evaluates src against tbl bound as df. Identifiers and
// methods outside the allow-list are rejected before evaluation.
func Evaluate(tbl *table.Table, src string) (Value, error) {
	n, err := parse(strings.TrimSpace(src))
	if err != nil {
		return nil, fmt.Errorf("parse expression: %w", err)
	}
	if err := checkAllowList(n); err != nil {
		return nil, err
	}
	e := &evaluator{frame: &Frame{Tbl: tbl}}
	return e.eval(n)
}

// Execute evaluates src and formats the result for response synthesis. Any
// parse or evaluation fault comes back as the error; callers turn it into an
// error-result string for the retry loop.
func Execute(tbl *table.Table, src string) (string, error) {
	v, err := Evaluate(tbl, src)
	if err != nil {
		return "", err
	}
	return Format(v), nil
}

// checkAllowList rejects foreign identifiers and unknown methods before any
// evaluation happens.
func checkAllowList(n node) error {
	switch x := n.(type) {
	case identNode:
		if x.name != BoundName {
			return fmt.Errorf("identifier %q is not allowed; only %q is bound", x.name, BoundName)
		}
	case mapNode:
		for _, v := range x.vals {
			if err := checkAllowList(v); err != nil {
				return err
			}
		}
	case indexNode:
		if err := checkAllowList(x.x); err != nil {
			return err
		}
		return checkAllowList(x.arg)
	case callNode:
		if !allowedMethods[x.method] {
			return fmt.Errorf("method %q is not allowed", x.method)
		}
		if err := checkAllowList(x.x); err != nil {
			return err
		}
		for _, a := range x.args {
			if err := checkAllowList(a); err != nil {
				return err
			}
		}
	case binaryNode:
		if err := checkAllowList(x.l); err != nil {
			return err
		}
		return checkAllowList(x.r)
	case unaryNode:
		return checkAllowList(x.x)
	}
	return nil
}

type evaluator struct {
	frame *Frame
}

func (e *evaluator) eval(n node) (Value, error) {
	switch x := n.(type) {
	case identNode:
		return e.frame, nil
	case numberNode:
		return Number(x.val), nil
	case stringNode:
		return Str(x.val), nil
	case boolNode:
		return Bool(x.val), nil
	case mapNode:
		d := &Dict{Keys: x.keys}
		for _, vn := range x.vals {
			v, err := e.eval(vn)
			if err != nil {
				return nil, err
			}
			d.Vals = append(d.Vals, v)
		}
		return d, nil
	case indexNode:
		recv, err := e.eval(x.x)
		if err != nil {
			return nil, err
		}
		arg, err := e.eval(x.arg)
		if err != nil {
			return nil, err
		}
		return e.index(recv, arg)
	case callNode:
		recv, err := e.eval(x.x)
		if err != nil {
			return nil, err
		}
		args := make([]Value, len(x.args))
		for i, a := range x.args {
			if args[i], err = e.eval(a); err != nil {
				return nil, err
			}
		}
		return e.call(recv, x.method, args)
	case binaryNode:
		l, err := e.eval(x.l)
		if err != nil {
			return nil, err
		}
		r, err := e.eval(x.r)
		if err != nil {
			return nil, err
		}
		return binary(x.op, l, r)
	case unaryNode:
		v, err := e.eval(x.x)
		if err != nil {
			return nil, err
		}
		return unary(x.op, v)
	}
	return nil, fmt.Errorf("unsupported expression node %T", n)
}

func (e *evaluator) index(recv, arg Value) (Value, error) {
	switch r := recv.(type) {
	case *Frame:
		switch a := arg.(type) {
		case Str:
			return columnSeries(r.Tbl, string(a))
		case *Series:
			return filterFrame(r.Tbl, a)
		}
		return nil, fmt.Errorf("table index must be a column name or boolean mask, got %T", arg)
	case *Grouped:
		name, ok := arg.(Str)
		if !ok {
			return nil, fmt.Errorf("grouped index must be a column name, got %T", arg)
		}
		if _, exists := r.Tbl.Col(string(name)); !exists {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		return &GroupedSeries{Tbl: r.Tbl, Keys: r.Keys, Col: string(name)}, nil
	case *Series:
		i, ok := arg.(Number)
		if !ok {
			return nil, fmt.Errorf("series index must be a number, got %T", arg)
		}
		idx := int(i)
		if idx < 0 || idx >= len(r.Vals) {
			return nil, fmt.Errorf("series index %d out of range [0,%d)", idx, len(r.Vals))
		}
		return r.Vals[idx], nil
	case *Dict:
		k, ok := arg.(Str)
		if !ok {
			return nil, fmt.Errorf("map key must be a string, got %T", arg)
		}
		for i, key := range r.Keys {
			if key == string(k) {
				return r.Vals[i], nil
			}
		}
		return nil, fmt.Errorf("map has no key %q", k)
	}
	return nil, fmt.Errorf("%T is not indexable", recv)
}

func (e *evaluator) call(recv Value, method string, args []Value) (Value, error) {
	switch r := recv.(type) {
	case *Frame:
		return frameCall(r, method, args)
	case *Grouped:
		if agg, ok := aggMethods[method]; ok {
			return groupedAgg(r, agg)
		}
	case *GroupedSeries:
		if agg, ok := aggMethods[method]; ok {
			return groupedSeriesAgg(r, agg)
		}
	case *Series:
		return seriesCall(r, method, args)
	}
	return nil, fmt.Errorf("cannot call %s on %T", method, recv)
}

func frameCall(f *Frame, method string, args []Value) (Value, error) {
	switch method {
	case "filter", "where":
		if len(args) != 1 {
			return nil, fmt.Errorf("%s takes one boolean mask", method)
		}
		mask, ok := args[0].(*Series)
		if !ok {
			return nil, fmt.Errorf("%s argument must be a boolean mask", method)
		}
		return filterFrame(f.Tbl, mask)
	case "groupby":
		if len(args) == 0 {
			return nil, fmt.Errorf("groupby needs at least one column")
		}
		keys := make([]string, len(args))
		for i, a := range args {
			s, ok := a.(Str)
			if !ok {
				return nil, fmt.Errorf("groupby arguments must be column names")
			}
			if _, exists := f.Tbl.Col(string(s)); !exists {
				return nil, fmt.Errorf("unknown column %q", s)
			}
			keys[i] = string(s)
		}
		return &Grouped{Tbl: f.Tbl, Keys: keys}, nil
	case "sort_values", "sort":
		return sortFrame(f, args)
	case "head", "tail":
		n := 5
		if len(args) == 1 {
			num, ok := args[0].(Number)
			if !ok {
				return nil, fmt.Errorf("%s argument must be a number", method)
			}
			n = int(num)
		}
		return sliceFrame(f.Tbl, method == "head", n), nil
	case "count":
		return Number(f.Tbl.NumRows()), nil
	}
	return nil, fmt.Errorf("table has no method %q", method)
}

func seriesCall(s *Series, method string, args []Value) (Value, error) {
	if agg, ok := aggMethods[method]; ok {
		return Number(pivot.Aggregate(agg, seriesNumbers(s))), nil
	}
	switch method {
	case "round":
		digits := 2
		if len(args) == 1 {
			n, ok := args[0].(Number)
			if !ok {
				return nil, fmt.Errorf("round argument must be a number")
			}
			digits = int(n)
		}
		return mapNumbers(s, func(f float64) float64 {
			p := math.Pow10(digits)
			return math.Round(f*p) / p
		}), nil
	case "abs":
		return mapNumbers(s, math.Abs), nil
	case "idxmax", "idxmin":
		return seriesIdx(s, method == "idxmax")
	case "unique":
		out := &Series{Name: s.Name}
		seen := make(map[string]bool)
		for _, v := range s.Vals {
			k := Format(v)
			if seen[k] {
				continue
			}
			seen[k] = true
			out.Vals = append(out.Vals, v)
		}
		return out, nil
	case "nunique":
		seen := make(map[string]bool)
		for _, v := range s.Vals {
			seen[Format(v)] = true
		}
		return Number(len(seen)), nil
	case "values", "tolist":
		return s, nil
	case "head", "tail":
		n := 5
		if len(args) == 1 {
			num, ok := args[0].(Number)
			if !ok {
				return nil, fmt.Errorf("%s argument must be a number", method)
			}
			n = int(num)
		}
		return sliceSeries(s, method == "head", n), nil
	case "contains", "startswith", "endswith":
		if len(args) != 1 {
			return nil, fmt.Errorf("%s takes one string", method)
		}
		needle, ok := args[0].(Str)
		if !ok {
			return nil, fmt.Errorf("%s argument must be a string", method)
		}
		return mapStrings(s, func(v string) bool {
			switch method {
			case "contains":
				return strings.Contains(v, string(needle))
			case "startswith":
				return strings.HasPrefix(v, string(needle))
			default:
				return strings.HasSuffix(v, string(needle))
			}
		}), nil
	}
	return nil, fmt.Errorf("series has no method %q", method)
}

// columnSeries extracts one column as a series. Null numeric cells become
// NaN so comparisons against them are always false.
func columnSeries(tbl *table.Table, name string) (*Series, error) {
	col, ok := tbl.Col(name)
	if !ok {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	s := &Series{Name: name, Vals: make([]Value, col.Len())}
	for r := 0; r < col.Len(); r++ {
		if col.Kind == table.Numeric {
			if col.Valid[r] {
				s.Vals[r] = Number(col.Floats[r])
			} else {
				s.Vals[r] = Number(math.NaN())
			}
			continue
		}
		s.Vals[r] = Str(col.Strings[r])
	}
	return s, nil
}

func filterFrame(tbl *table.Table, mask *Series) (*Frame, error) {
	if len(mask.Vals) != tbl.NumRows() {
		return nil, fmt.Errorf("mask length %d does not match %d rows", len(mask.Vals), tbl.NumRows())
	}
	var rows []int
	for i, v := range mask.Vals {
		b, ok := v.(Bool)
		if !ok {
			return nil, fmt.Errorf("mask must be boolean, found %T", v)
		}
		if b {
			rows = append(rows, i)
		}
	}
	return &Frame{Tbl: tbl.SelectRows(rows)}, nil
}

func sortFrame(f *Frame, args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("sort_values needs a column name")
	}
	name, ok := args[0].(Str)
	if !ok {
		return nil, fmt.Errorf("sort_values column must be a string")
	}
	ascending := true
	if len(args) > 1 {
		b, ok := args[1].(Bool)
		if !ok {
			return nil, fmt.Errorf("sort_values ascending flag must be a boolean")
		}
		ascending = bool(b)
	}
	col, ok := f.Tbl.Col(string(name))
	if !ok {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	rows := make([]int, f.Tbl.NumRows())
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !ascending {
			a, b = b, a
		}
		if col.Kind == table.Numeric {
			return col.Floats[a] < col.Floats[b]
		}
		return col.Strings[a] < col.Strings[b]
	})
	return &Frame{Tbl: f.Tbl.SelectRows(rows)}, nil
}

func sliceFrame(tbl *table.Table, head bool, n int) *Frame {
	total := tbl.NumRows()
	if n > total {
		n = total
	}
	if n < 0 {
		n = 0
	}
	rows := make([]int, n)
	for i := 0; i < n; i++ {
		if head {
			rows[i] = i
		} else {
			rows[i] = total - n + i
		}
	}
	return &Frame{Tbl: tbl.SelectRows(rows)}
}

func sliceSeries(s *Series, head bool, n int) *Series {
	total := len(s.Vals)
	if n > total {
		n = total
	}
	if n < 0 {
		n = 0
	}
	out := &Series{Name: s.Name}
	start := 0
	if !head {
		start = total - n
	}
	out.Vals = append(out.Vals, s.Vals[start:start+n]...)
	if len(s.Labels) == total {
		out.Labels = append(out.Labels, s.Labels[start:start+n]...)
	}
	return out
}

// groupedSeriesAgg aggregates one column per group, preserving
// first-encountered group order in the labels.
func groupedSeriesAgg(g *GroupedSeries, agg pivot.Aggregation) (*Series, error) {
	col, ok := g.Tbl.Col(g.Col)
	if !ok {
		return nil, fmt.Errorf("unknown column %q", g.Col)
	}
	if col.Kind != table.Numeric && agg != pivot.Count {
		return nil, fmt.Errorf("column %q is not numeric", g.Col)
	}
	keyIdx := make([]int, len(g.Keys))
	for i, k := range g.Keys {
		found := -1
		for ci, name := range g.Tbl.Columns() {
			if name == k {
				found = ci
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("unknown group column %q", k)
		}
		keyIdx[i] = found
	}

	type group struct {
		label string
		vals  []float64
		size  int
	}
	var order []*group
	seen := make(map[string]*group)
	for r := 0; r < g.Tbl.NumRows(); r++ {
		parts := make([]string, len(keyIdx))
		for i, ci := range keyIdx {
			parts[i] = g.Tbl.CellString(r, ci)
		}
		k := strings.Join(parts, "\x1f")
		grp, ok := seen[k]
		if !ok {
			grp = &group{label: strings.Join(parts, ", ")}
			seen[k] = grp
			order = append(order, grp)
		}
		grp.size++
		if col.Kind == table.Numeric && col.Valid[r] {
			grp.vals = append(grp.vals, col.Floats[r])
		} else if col.Kind != table.Numeric && col.Valid[r] {
			grp.vals = append(grp.vals, 0) // only counted, never summed
		}
	}

	out := &Series{Name: g.Col}
	for _, grp := range order {
		out.Labels = append(out.Labels, grp.label)
		out.Vals = append(out.Vals, Number(pivot.Aggregate(agg, grp.vals)))
	}
	return out, nil
}

// groupedAgg aggregates every numeric column per group via the pivot engine.
func groupedAgg(g *Grouped, agg pivot.Aggregation) (Value, error) {
	var values []string
	kinds := g.Tbl.Kinds()
	keySet := make(map[string]bool, len(g.Keys))
	for _, k := range g.Keys {
		keySet[k] = true
	}
	for _, c := range g.Tbl.Columns() {
		if kinds[c] == table.Numeric && !keySet[c] {
			values = append(values, c)
		}
	}
	spec := pivot.Spec{GroupBy: g.Keys, Values: values, Agg: agg}
	res, err := pivot.Compute(g.Tbl, spec)
	if err != nil {
		return nil, err
	}
	return &Frame{Tbl: res}, nil
}

func seriesNumbers(s *Series) []float64 {
	var out []float64
	for _, v := range s.Vals {
		if n, ok := v.(Number); ok && !math.IsNaN(float64(n)) {
			out = append(out, float64(n))
		}
	}
	return out
}

func mapNumbers(s *Series, fn func(float64) float64) *Series {
	out := &Series{Name: s.Name, Labels: s.Labels, Vals: make([]Value, len(s.Vals))}
	for i, v := range s.Vals {
		if n, ok := v.(Number); ok {
			out.Vals[i] = Number(fn(float64(n)))
		} else {
			out.Vals[i] = v
		}
	}
	return out
}

func mapStrings(s *Series, fn func(string) bool) *Series {
	out := &Series{Name: s.Name, Labels: s.Labels, Vals: make([]Value, len(s.Vals))}
	for i, v := range s.Vals {
		switch x := v.(type) {
		case Str:
			out.Vals[i] = Bool(fn(string(x)))
		case Number:
			out.Vals[i] = Bool(fn(table.FormatFloat(float64(x))))
		default:
			out.Vals[i] = Bool(false)
		}
	}
	return out
}

func seriesIdx(s *Series, wantMax bool) (Value, error) {
	best := -1
	var bestVal float64
	for i, v := range s.Vals {
		n, ok := v.(Number)
		if !ok || math.IsNaN(float64(n)) {
			continue
		}
		f := float64(n)
		if best < 0 || (wantMax && f > bestVal) || (!wantMax && f < bestVal) {
			best = i
			bestVal = f
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("idxmax/idxmin on a series with no numeric values")
	}
	if len(s.Labels) == len(s.Vals) {
		return Str(s.Labels[best]), nil
	}
	return Number(best), nil
}
