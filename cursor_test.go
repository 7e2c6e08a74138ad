package fpta

import (
	"fmt"
	"testing"
)

func openScenarioDB(t *testing.T) (*DB, *Table) {
	t.Helper()
	s := NewSchema()
	tbl, err := s.AddTable("nums")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.AddColumn("id", TInt32, PrimaryUnique); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.AddColumn("bucket", TInt32, SecondaryDup); err != nil {
		t.Fatal(err)
	}
	db, err := OpenMem(s, Options{})
	if err != nil {
		t.Fatal(err)
	}
	return db, s.Table("nums")
}

// TestPrimaryCursorFullScan inserts 0..41 and counts what an ascending
// primary cursor sees over a table of [lo,hi) ranges (scenario C's range
// clipping), from the full [-1,43) scan down to empty ranges.
func TestPrimaryCursorFullScan(t *testing.T) {
	db, tbl := openScenarioDB(t)
	defer db.Close()
	idCol := tbl.Primary()
	bucketCol := tbl.Column("bucket")

	if err := db.Update(func(tx *Tx) error {
		for n := int32(0); n < 42; n++ {
			row := NewRow(tbl)
			row.Set(idCol, Int(int64(n)))
			row.Set(bucketCol, Int(int64(n % 5)))
			if err := tx.Insert(row); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("populate: %v", err)
	}

	cases := []struct {
		lo, hi   Value
		hiIncl   bool
		wantHi   bool
		count    int
	}{
		{Int(-1), Int(43), false, false, 42},
		{Int(-42), Int(0), false, false, 0},
		{Int(-42), Int(1), false, false, 1},
		{Int(41), Int(100), false, false, 1},
		{Int(-100), Int(21), false, false, 21},
		{Int(21), Int(100), false, false, 21},
		{Int(10), Int(31), false, false, 21},
		{Int(17), Int(17), false, false, 0},
		{Int(31), Int(10), false, false, 0},
	}
	for i, tc := range cases {
		err := db.View(func(tx *Tx) error {
			cur, err := tx.OpenCursor(idCol, CursorOpts{Lo: tc.lo, Hi: tc.hi, HiIncl: tc.hiIncl})
			if err != nil {
				return err
			}
			got := cur.Count(1 << 20)
			if got != tc.count {
				t.Errorf("case %d [%v,%v): got %d rows, want %d", i, tc.lo, tc.hi, got, tc.count)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
	}
}

// TestSecondaryDupCursor covers create/read/delete through a non-unique
// secondary index (bucket = id mod 5).
func TestSecondaryDupCursor(t *testing.T) {
	db, tbl := openScenarioDB(t)
	defer db.Close()
	idCol := tbl.Primary()
	bucketCol := tbl.Column("bucket")

	if err := db.Update(func(tx *Tx) error {
		for n := int32(0); n < 42; n++ {
			row := NewRow(tbl)
			row.Set(idCol, Int(int64(n)))
			row.Set(bucketCol, Int(int64(n % 5)))
			if err := tx.Insert(row); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("populate: %v", err)
	}

	if err := db.View(func(tx *Tx) error {
		cur, err := tx.OpenCursor(bucketCol, CursorOpts{})
		if err != nil {
			return err
		}
		if !cur.Locate(Int(3)) {
			t.Fatalf("Locate(3) failed")
		}
		n := 1
		for cur.Next() {
			row, err := cur.Get()
			if err != nil {
				return err
			}
			if row.Get(bucketCol).Int() != 3 {
				break
			}
			n++
		}
		if n != 8 {
			t.Fatalf("bucket 3 has %d members, want 8", n)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.Update(func(tx *Tx) error {
		return tx.DeleteByPrimary(tbl, Int(3))
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := db.View(func(tx *Tx) error {
		cur, err := tx.OpenCursor(bucketCol, CursorOpts{})
		if err != nil {
			return err
		}
		if !cur.Locate(Int(3)) {
			t.Fatalf("Locate(3) failed after delete")
		}
		n := 1
		for cur.Next() {
			row, err := cur.Get()
			if err != nil {
				return err
			}
			if row.Get(bucketCol).Int() != 3 {
				break
			}
			n++
		}
		if n != 7 {
			t.Fatalf("bucket 3 has %d members after delete, want 7", n)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

// TestCursorDeleteCurrentDrainsTable covers scenario A: deleting every row
// through a primary cursor leaves both the primary and secondary indexes
// empty.
func TestCursorDeleteCurrentDrainsTable(t *testing.T) {
	db, tbl := openScenarioDB(t)
	defer db.Close()
	idCol := tbl.Primary()
	bucketCol := tbl.Column("bucket")

	if err := db.Update(func(tx *Tx) error {
		for _, id := range []int64{1, 2} {
			row := NewRow(tbl)
			row.Set(idCol, Int(id))
			row.Set(bucketCol, Int(id))
			if err := tx.Insert(row); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.Update(func(tx *Tx) error {
		cur, err := tx.OpenCursor(idCol, CursorOpts{})
		if err != nil {
			return err
		}
		if got := cur.Count(1 << 20); got != 2 {
			t.Fatalf("count before delete = %d, want 2", got)
		}
		if !cur.MoveLast() {
			t.Fatalf("MoveLast failed")
		}
		row, err := cur.Get()
		if err != nil {
			return err
		}
		if row.Get(idCol).Int() != 2 {
			t.Fatalf("MoveLast landed on id %d, want 2", row.Get(idCol).Int())
		}
		if !cur.Locate(Int(1)) {
			t.Fatalf("Locate(1) failed")
		}
		if err := cur.DeleteCurrent(); err != nil {
			return err
		}
		if !cur.MoveFirst() {
			t.Fatalf("MoveFirst after first delete failed")
		}
		if err := cur.DeleteCurrent(); err != nil {
			return err
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.View(func(tx *Tx) error {
		cur, err := tx.OpenCursor(idCol, CursorOpts{})
		if err != nil {
			return err
		}
		if got := cur.Count(1 << 20); got != 0 {
			t.Fatalf("primary count after draining = %d, want 0", got)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.View(func(tx *Tx) error {
		cur, err := tx.OpenCursor(bucketCol, CursorOpts{})
		if err != nil {
			return err
		}
		if got := cur.Count(1 << 20); got != 0 {
			t.Fatalf("secondary count after draining = %d, want 0", got)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func openMeshDB(t *testing.T) (*DB, *Table) {
	t.Helper()
	s := NewSchema()
	tbl, err := s.AddTable("mesh")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.AddColumn("pk", TUint32, PrimaryUnique); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.AddColumn("cstr", TCString, SecondaryUniqueRev); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.AddColumn("fp", TFloat64, SecondaryDup); err != nil {
		t.Fatal(err)
	}
	db, err := OpenMem(s, Options{})
	if err != nil {
		t.Fatal(err)
	}
	return db, s.Table("mesh")
}

// countIndex walks col's full index and returns how many rows it enumerates.
func countIndex(t *testing.T, tx *Tx, col *Column) int {
	t.Helper()
	cur, err := tx.OpenCursor(col, CursorOpts{})
	if err != nil {
		t.Fatal(err)
	}
	return cur.Count(1 << 20)
}

// TestCursorUpdateCurrentKeepsIndexesConsistent covers scenario E: updating
// rows through a cursor, including changes to the row's own primary key,
// leaves every index (primary, unique-reversed, non-unique) enumerating the
// same current contents.
func TestCursorUpdateCurrentKeepsIndexesConsistent(t *testing.T) {
	db, tbl := openMeshDB(t)
	defer db.Close()
	pkCol, cstrCol, fpCol := tbl.Primary(), tbl.Column("cstr"), tbl.Column("fp")

	const n = 12
	if err := db.Update(func(tx *Tx) error {
		for i := 0; i < n; i++ {
			row := NewRow(tbl)
			row.Set(pkCol, Uint(uint64(i)))
			row.Set(cstrCol, Str(fmtMeshKey(i)))
			row.Set(fpCol, Float(float64(i))) // one member per group, one Locate() per row
			if err := tx.Insert(row); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	// For every other row, locate it through the non-unique fp index and
	// update it: rewrite its cstr and (for i divisible by three, i.e. rows 0
	// and 6) move it to a brand-new primary key. This exercises
	// UpdateCurrent's PK-changing path from a cursor positioned on a
	// secondary, non-unique index (upsertSecondary's oldPK/newPK diffing) —
	// a cursor rejects any update that would move its own index key, so a
	// primary-key change has to go through a secondary cursor whose own key
	// stays put.
	if err := db.Update(func(tx *Tx) error {
		for i := 0; i < n; i += 2 {
			cur, err := tx.OpenCursor(fpCol, CursorOpts{})
			if err != nil {
				return err
			}
			if !cur.Locate(Float(float64(i))) {
				return newErr(ErrInternal, "test", "Locate on fp index failed").WithColumn(fpCol)
			}
			row, err := cur.Get()
			if err != nil {
				return err
			}
			pk := row.Get(pkCol).Uint()
			if i%3 == 0 {
				pk += 1000
			}
			newRow := NewRow(tbl)
			newRow.Set(pkCol, Uint(pk))
			newRow.Set(cstrCol, Str(fmtMeshKey(int(pk))+"-updated"))
			newRow.Set(fpCol, row.Get(fpCol))
			if err := cur.UpdateCurrent(newRow); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.View(func(tx *Tx) error {
		want := n
		if got := countIndex(t, tx, pkCol); got != want {
			t.Errorf("primary index has %d rows, want %d", got, want)
		}
		if got := countIndex(t, tx, cstrCol); got != want {
			t.Errorf("cstr index has %d rows, want %d", got, want)
		}
		if got := countIndex(t, tx, fpCol); got != want {
			t.Errorf("fp index has %d rows, want %d", got, want)
		}

		// Every row reachable via the primary index must also be reachable,
		// with matching field values, through both secondary indexes.
		cur, err := tx.OpenCursor(pkCol, CursorOpts{})
		if err != nil {
			return err
		}
		if !cur.MoveFirst() {
			return nil
		}
		for {
			row, err := cur.Get()
			if err != nil {
				return err
			}
			byStr, err := tx.GetByPrimary(tbl, row.Get(pkCol))
			if err != nil {
				t.Errorf("primary lookup for pk %d failed: %v", row.Get(pkCol).Uint(), err)
			} else if byStr.Get(cstrCol).String() != row.Get(cstrCol).String() {
				t.Errorf("cstr mismatch for pk %d", row.Get(pkCol).Uint())
			}

			scur, err := tx.OpenCursor(cstrCol, CursorOpts{})
			if err != nil {
				return err
			}
			if !scur.Locate(row.Get(cstrCol)) {
				t.Errorf("cstr index missing entry for pk %d", row.Get(pkCol).Uint())
			}

			if !cur.Next() {
				break
			}
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func fmtMeshKey(i int) string { return fmt.Sprintf("k%04d", i) }

// TestDescendingLocateWalksBackward covers scenario F: locating a duplicate
// key in a descending cursor lands on the last duplicate, then Next() walks
// toward smaller primary keys within the same bucket.
func TestDescendingLocateWalksBackward(t *testing.T) {
	db, tbl := openScenarioDB(t)
	defer db.Close()
	idCol := tbl.Primary()
	bucketCol := tbl.Column("bucket")

	if err := db.Update(func(tx *Tx) error {
		for _, id := range []int64{1, 2, 3} {
			row := NewRow(tbl)
			row.Set(idCol, Int(id))
			row.Set(bucketCol, Int(7))
			if err := tx.Insert(row); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.View(func(tx *Tx) error {
		cur, err := tx.OpenCursor(bucketCol, CursorOpts{Descending: true})
		if err != nil {
			return err
		}
		if !cur.Locate(Int(7)) {
			t.Fatalf("Locate(7) failed")
		}
		var got []int64
		row, err := cur.Get()
		if err != nil {
			return err
		}
		got = append(got, row.Get(idCol).Int())
		for cur.Next() {
			row, err := cur.Get()
			if err != nil {
				return err
			}
			if row.Get(bucketCol).Int() != 7 {
				break
			}
			got = append(got, row.Get(idCol).Int())
		}
		want := []int64{3, 2, 1}
		if len(got) != len(want) {
			t.Fatalf("walk = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("walk = %v, want %v", got, want)
			}
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}
