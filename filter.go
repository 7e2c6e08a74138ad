package fpta

import "bytes"

// Predicate is a boolean test over a materialized row (spec §4.5). Cursor
// iteration evaluates a Predicate on every candidate row and skips
// mismatches without stopping the scan.
type Predicate interface {
	Eval(row *Row) (bool, error)
}

type andPredicate []Predicate

func And(preds ...Predicate) Predicate { return andPredicate(preds) }

func (p andPredicate) Eval(row *Row) (bool, error) {
	for _, sub := range p {
		ok, err := sub.Eval(row)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

type orPredicate []Predicate

func Or(preds ...Predicate) Predicate { return orPredicate(preds) }

func (p orPredicate) Eval(row *Row) (bool, error) {
	for _, sub := range p {
		ok, err := sub.Eval(row)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

type notPredicate struct{ p Predicate }

func Not(p Predicate) Predicate { return notPredicate{p} }

func (p notPredicate) Eval(row *Row) (bool, error) {
	ok, err := p.p.Eval(row)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// RowFunc adapts an arbitrary Go function to a Predicate over the whole row
// (spec §4.5's "predicate on row").
type RowFunc func(row *Row) (bool, error)

func (f RowFunc) Eval(row *Row) (bool, error) { return f(row) }

// ColumnFunc is a predicate that only examines one column's value (spec
// §4.5's "predicate on column").
func ColumnFunc(col *Column, test func(Value) (bool, error)) Predicate {
	return RowFunc(func(row *Row) (bool, error) { return test(row.Get(col)) })
}

// CompareOp is the relational operator a column-to-constant comparison uses.
type CompareOp int

const (
	OpEQ CompareOp = iota
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
)

// CompareColumn builds the "compare column to constant" leaf from spec
// §4.5.
func CompareColumn(col *Column, op CompareOp, constant Value) Predicate {
	return ColumnFunc(col, func(v Value) (bool, error) {
		if v.kind == KindNull {
			// Absent field: the predicate is false, not an error (spec §4.5).
			return false, nil
		}
		c, err := compareValues(v, constant)
		if err != nil {
			return false, err
		}
		switch op {
		case OpEQ:
			return c == 0, nil
		case OpNE:
			return c != 0, nil
		case OpLT:
			return c < 0, nil
		case OpLE:
			return c <= 0, nil
		case OpGT:
			return c > 0, nil
		case OpGE:
			return c >= 0, nil
		default:
			return false, newErr(ErrInvalidArgument, "filter", "unknown compare op %d", op)
		}
	})
}

// compareValues orders two Values of compatible kinds, widening int/uint
// against each other the same way coerceInt/coerceUint do at encode time.
func compareValues(a, b Value) (int, error) {
	switch {
	case a.kind == KindInt && b.kind == KindInt:
		return cmpInt64(a.i, b.i), nil
	case a.kind == KindUint && b.kind == KindUint:
		return cmpUint64(a.u, b.u), nil
	case a.kind == KindInt && b.kind == KindUint:
		if a.i < 0 {
			return -1, nil
		}
		return cmpUint64(uint64(a.i), b.u), nil
	case a.kind == KindUint && b.kind == KindInt:
		if b.i < 0 {
			return 1, nil
		}
		return cmpUint64(a.u, uint64(b.i)), nil
	case a.kind == KindFloat && b.kind == KindFloat:
		switch {
		case a.f < b.f:
			return -1, nil
		case a.f > b.f:
			return 1, nil
		default:
			return 0, nil
		}
	case a.kind == KindTime && b.kind == KindTime:
		return cmpInt64(a.i, b.i), nil
	case a.kind == KindString && b.kind == KindString:
		return bytes.Compare(a.b, b.b), nil
	case a.kind == KindBinary && b.kind == KindBinary:
		return bytes.Compare(a.b, b.b), nil
	case a.kind == KindNull && b.kind == KindNull:
		return 0, nil
	default:
		return 0, newErr(ErrTypeMismatch, "filter", "cannot compare %v to %v", a.kind, b.kind)
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
