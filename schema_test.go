package fpta

import "testing"

func TestSchemaAddTableAndColumn(t *testing.T) {
	s := NewSchema()
	tbl, err := s.AddTable("orders")
	if err != nil {
		t.Fatalf("AddTable: %v", err)
	}
	pk, err := tbl.AddColumn("id", TUint64, PrimaryUnique)
	if err != nil {
		t.Fatalf("AddColumn(id): %v", err)
	}
	if tbl.Primary() != pk {
		t.Fatalf("Primary() = %v, want %v", tbl.Primary(), pk)
	}
	if _, err := tbl.AddColumn("other_pk", TUint64, PrimaryUnique); err == nil {
		t.Fatalf("second primary column accepted, wanted rejection")
	}
	if _, err := s.AddTable("orders"); err == nil {
		t.Fatalf("duplicate table name accepted")
	}
	if got := s.Table("Orders"); got != tbl {
		t.Fatalf("Table lookup is case-sensitive, want case-insensitive match")
	}
}

func TestSecondariesListsOnlyIndexedNonPrimary(t *testing.T) {
	s := NewSchema()
	tbl, _ := s.AddTable("t")
	tbl.AddColumn("id", TUint64, PrimaryUnique)
	tbl.AddColumn("plain", TUint64, IndexNone)
	sec, _ := tbl.AddColumn("email", TCString, SecondaryUnique)
	got := tbl.Secondaries()
	if len(got) != 1 || got[0] != sec {
		t.Fatalf("Secondaries() = %v, want [%v]", got, sec)
	}
}

func TestReverseWithoutIndexRejected(t *testing.T) {
	s := NewSchema()
	tbl, _ := s.AddTable("t")
	if _, err := tbl.AddColumn("bad", TCString, kindReverse); err == nil {
		t.Fatalf("reverse without index accepted")
	}
}
