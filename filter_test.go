package fpta

import "testing"

func newFilterTestTable() (*Table, *Column) {
	s := NewSchema()
	tbl, _ := s.AddTable("t")
	tbl.AddColumn("id", TUint64, PrimaryUnique)
	col, _ := tbl.AddColumn("n", TInt32, IndexNone)
	return tbl, col
}

func TestCompareColumn(t *testing.T) {
	tbl, col := newFilterTestTable()
	row := NewRow(tbl)
	row.Set(col, Int(42))

	cases := []struct {
		op   CompareOp
		rhs  int64
		want bool
	}{
		{OpEQ, 42, true},
		{OpEQ, 41, false},
		{OpLT, 43, true},
		{OpLT, 42, false},
		{OpGE, 42, true},
		{OpGT, 42, false},
		{OpNE, 1, true},
	}
	for _, tc := range cases {
		p := CompareColumn(col, tc.op, Int(tc.rhs))
		got, err := p.Eval(row)
		if err != nil {
			t.Fatalf("Eval: %v", err)
		}
		if got != tc.want {
			t.Fatalf("op=%v rhs=%d: got %v, want %v", tc.op, tc.rhs, got, tc.want)
		}
	}
}

func TestAndOrNot(t *testing.T) {
	tbl, col := newFilterTestTable()
	row := NewRow(tbl)
	row.Set(col, Int(5))

	and := And(CompareColumn(col, OpGE, Int(0)), CompareColumn(col, OpLT, Int(10)))
	if ok, _ := and.Eval(row); !ok {
		t.Fatalf("And(0<=n<10) on n=5 should match")
	}

	or := Or(CompareColumn(col, OpEQ, Int(1)), CompareColumn(col, OpEQ, Int(5)))
	if ok, _ := or.Eval(row); !ok {
		t.Fatalf("Or(n==1 || n==5) on n=5 should match")
	}

	not := Not(CompareColumn(col, OpEQ, Int(5)))
	if ok, _ := not.Eval(row); ok {
		t.Fatalf("Not(n==5) on n=5 should not match")
	}
}

func TestModuloFilterScenarioD(t *testing.T) {
	tbl, col := newFilterTestTable()
	pred := ColumnFunc(col, func(v Value) (bool, error) {
		return ((v.Int()+3)%5+5)%5 == 3, nil
	})
	count := 0
	for n := int64(0); n < 42; n++ {
		row := NewRow(tbl)
		row.Set(col, Int(n))
		ok, err := pred.Eval(row)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			count++
		}
	}
	if count != 9 {
		t.Fatalf("filter matched %d rows, want 9", count)
	}
}
