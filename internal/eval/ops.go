package eval

import (
	"fmt"
	"math"
	"strconv"
)

// binary applies an operator, broadcasting scalars across series in the
// usual elementwise fashion.
func binary(op string, l, r Value) (Value, error) {
	ls, lok := l.(*Series)
	rs, rok := r.(*Series)
	switch {
	case lok && rok:
		if len(ls.Vals) != len(rs.Vals) {
			return nil, fmt.Errorf("series length mismatch: %d vs %d", len(ls.Vals), len(rs.Vals))
		}
		out := &Series{Name: ls.Name, Labels: ls.Labels, Vals: make([]Value, len(ls.Vals))}
		for i := range ls.Vals {
			v, err := scalarOp(op, ls.Vals[i], rs.Vals[i])
			if err != nil {
				return nil, err
			}
			out.Vals[i] = v
		}
		return out, nil
	case lok:
		out := &Series{Name: ls.Name, Labels: ls.Labels, Vals: make([]Value, len(ls.Vals))}
		for i := range ls.Vals {
			v, err := scalarOp(op, ls.Vals[i], r)
			if err != nil {
				return nil, err
			}
			out.Vals[i] = v
		}
		return out, nil
	case rok:
		out := &Series{Name: rs.Name, Labels: rs.Labels, Vals: make([]Value, len(rs.Vals))}
		for i := range rs.Vals {
			v, err := scalarOp(op, l, rs.Vals[i])
			if err != nil {
				return nil, err
			}
			out.Vals[i] = v
		}
		return out, nil
	}
	return scalarOp(op, l, r)
}

func scalarOp(op string, l, r Value) (Value, error) {
	switch op {
	case "&", "|":
		lb, lok := l.(Bool)
		rb, rok := r.(Bool)
		if !lok || !rok {
			return nil, fmt.Errorf("operator %q needs boolean operands", op)
		}
		if op == "&" {
			return lb && rb, nil
		}
		return lb || rb, nil
	}

	// Null cells surface as NaN; comparisons against them are false
	// (inequality true), never a fault. Arithmetic propagates the NaN.
	if isNaN(l) || isNaN(r) {
		switch op {
		case "==", "<", ">", "<=", ">=":
			return Bool(false), nil
		case "!=":
			return Bool(true), nil
		case "+", "-", "*", "/":
			return Number(math.NaN()), nil
		}
	}

	// Numeric fast path, with string-to-number coercion on one side only.
	ln, lIsNum := toNumber(l)
	rn, rIsNum := toNumber(r)
	if lIsNum && rIsNum {
		switch op {
		case "+":
			return Number(ln + rn), nil
		case "-":
			return Number(ln - rn), nil
		case "*":
			return Number(ln * rn), nil
		case "/":
			if rn == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return Number(ln / rn), nil
		case "==":
			return Bool(ln == rn), nil
		case "!=":
			return Bool(ln != rn), nil
		case "<":
			return Bool(ln < rn), nil
		case ">":
			return Bool(ln > rn), nil
		case "<=":
			return Bool(ln <= rn), nil
		case ">=":
			return Bool(ln >= rn), nil
		}
	}

	lstr, lIsStr := l.(Str)
	rstr, rIsStr := r.(Str)
	if lIsStr && rIsStr {
		switch op {
		case "==":
			return Bool(lstr == rstr), nil
		case "!=":
			return Bool(lstr != rstr), nil
		case "<":
			return Bool(lstr < rstr), nil
		case ">":
			return Bool(lstr > rstr), nil
		case "<=":
			return Bool(lstr <= rstr), nil
		case ">=":
			return Bool(lstr >= rstr), nil
		case "+":
			return Str(lstr + rstr), nil
		}
	}

	// Mixed string/number comparisons that did not coerce: equality is
	// simply false rather than a fault, matching lenient filtering.
	if (lIsStr || rIsStr) && (op == "==" || op == "!=") {
		return Bool(op == "!="), nil
	}
	return nil, fmt.Errorf("operator %q not defined for %T and %T", op, l, r)
}

// toNumber widens a scalar to float64. Numeric-looking strings coerce so
// that comparisons against stringified columns behave.
func toNumber(v Value) (float64, bool) {
	switch x := v.(type) {
	case Number:
		f := float64(x)
		if math.IsNaN(f) {
			return 0, false
		}
		return f, true
	case Str:
		if f, err := strconv.ParseFloat(string(x), 64); err == nil {
			return f, true
		}
	case Bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func isNaN(v Value) bool {
	n, ok := v.(Number)
	return ok && math.IsNaN(float64(n))
}

func unary(op string, v Value) (Value, error) {
	switch op {
	case "-":
		if s, ok := v.(*Series); ok {
			return mapNumbers(s, func(f float64) float64 { return -f }), nil
		}
		if n, ok := v.(Number); ok {
			return Number(-float64(n)), nil
		}
	case "!":
		if s, ok := v.(*Series); ok {
			out := &Series{Name: s.Name, Labels: s.Labels, Vals: make([]Value, len(s.Vals))}
			for i, item := range s.Vals {
				b, ok := item.(Bool)
				if !ok {
					return nil, fmt.Errorf("operator ! needs a boolean series")
				}
				out.Vals[i] = Bool(!b)
			}
			return out, nil
		}
		if b, ok := v.(Bool); ok {
			return Bool(!b), nil
		}
	}
	return nil, fmt.Errorf("operator %q not defined for %T", op, v)
}
