package fpta

import "testing"

func TestFloatNormalization(t *testing.T) {
	col := &Column{shove: MakeShove(TFloat64, PrimaryUnique, 0)}

	pos, err := coerceFloat(col, Float(0))
	if err != nil || pos != 0 {
		t.Fatalf("coerceFloat(+0) = (%v, %v), wanted (0, nil)", pos, err)
	}
	neg, err := coerceFloat(col, Float(negZero()))
	if err != nil || neg != 0 {
		t.Fatalf("coerceFloat(-0) = (%v, %v), wanted (0, nil)", neg, err)
	}

	sub, err := coerceFloat(col, Float(5e-320))
	if err != nil || sub != 0 {
		t.Fatalf("coerceFloat(subnormal) = (%v, %v), wanted (0, nil)", sub, err)
	}

	if _, err := coerceFloat(col, Float(nan())); err == nil {
		t.Fatalf("coerceFloat(NaN) succeeded, wanted value-out-of-range")
	} else if fe, ok := err.(*Error); !ok || fe.Kind != ErrValueOutOfRange {
		t.Fatalf("coerceFloat(NaN) error = %v, wanted ErrValueOutOfRange", err)
	}
}

func negZero() float64 { z := 0.0; return -z }
func nan() float64     { var z float64; return z / z }

func TestCompatibleRejectsSentinels(t *testing.T) {
	col := &Column{shove: MakeShove(TUint32, PrimaryUnique, 0)}
	for _, v := range []Value{Null(), Begin(), End()} {
		if err := compatible(col, v); err == nil {
			t.Fatalf("compatible(%v) succeeded, wanted invalid-argument", v.Kind())
		}
	}
}

func TestCoerceIntRange(t *testing.T) {
	col := &Column{shove: MakeShove(TInt32, PrimaryUnique, 0)}
	if _, err := coerceInt(col, Int(1<<40)); err == nil {
		t.Fatalf("coerceInt(overflow) succeeded, wanted value-out-of-range")
	}
	v, err := coerceInt(col, Int(-5))
	if err != nil || v != -5 {
		t.Fatalf("coerceInt(-5) = (%d, %v), wanted (-5, nil)", v, err)
	}
}
