package fpta

import (
	"bytes"

	"github.com/magniff/libfpta/internal/kv"
)

// putMode selects how Tx.put treats an existing row at the same primary key
// (spec §4.7).
type putMode int

const (
	modeInsert putMode = iota // fail if the primary key already exists
	modeUpsert                // overwrite or create
	modeUpdate                // fail if the primary key does not already exist
)

// Insert adds row as a brand-new record; it fails if row's primary key
// already exists.
func (tx *Tx) Insert(row *Row) error { return tx.put(row, modeInsert) }

// Upsert inserts row or overwrites the existing record at the same primary
// key.
func (tx *Tx) Upsert(row *Row) error { return tx.put(row, modeUpsert) }

// UpdateRow overwrites the existing record at row's primary key; it fails if
// no such record exists.
func (tx *Tx) UpdateRow(row *Row) error { return tx.put(row, modeUpdate) }

// put implements the insert/upsert/update maintenance algorithm from spec
// §4.7: encode the primary key, look up any existing row at that key, write
// the new row body, then diff each secondary index's old vs. new encoded
// key and apply only the delta. A failure partway through leaves the
// sub-databases inconsistent with each other; since this always runs inside
// a single kv.Txn, returning a non-nil error aborts the whole batch and
// none of the partial writes survive (spec §4.7's "escalate to abort").
func (tx *Tx) put(row *Row, mode putMode) error {
	t := row.table
	if !tx.Writable() {
		return newErr(ErrInvalidArgument, "put", "transaction is read-only").WithTable(t)
	}
	primaryCol := t.Primary()
	pkVal := row.Get(primaryCol)

	var pkKey Key
	if err := EncodeKey(&pkKey, primaryCol, pkVal, true); err != nil {
		return err
	}
	primary, err := tx.primaryDB(t)
	if err != nil {
		return err
	}

	existing, err := primary.Get(pkKey.Bytes)
	if err != nil {
		return newErr(ErrInternal, "put", "primary lookup failed").WithTable(t).WithCause(err)
	}
	switch mode {
	case modeInsert:
		if existing != nil {
			return newErr(ErrKeyMismatch, "insert", "primary key already exists").WithTable(t).WithKey(pkKey.Bytes)
		}
	case modeUpdate:
		if existing == nil {
			return newErr(ErrNoData, "update", "primary key does not exist").WithTable(t).WithKey(pkKey.Bytes)
		}
	}

	var oldRow *Row
	if existing != nil {
		oldRow, err = decodeRow(t, existing)
		if err != nil {
			return err
		}
	}

	for _, col := range t.Secondaries() {
		if err := tx.upsertSecondary(col, pkKey.Bytes, pkKey.Bytes, oldRow, row); err != nil {
			return err
		}
	}

	body, err := row.encode()
	if err != nil {
		return err
	}
	if err := primary.Put(pkKey.Bytes, body, 0); err != nil {
		return newErr(ErrInternal, "put", "primary write failed").WithTable(t).WithCause(err)
	}
	return nil
}

// upsertSecondary reconciles col's index entry for one row across a put or a
// cursor update. oldPK/newPK differ only when a cursor update changes the row's
// primary key (spec §4.6); a dup index's physical key embeds the primary key,
// so even an unchanged indexed value still needs its entry rewritten when the
// primary key moves.
func (tx *Tx) upsertSecondary(col *Column, oldPK, newPK []byte, oldRow, newRow *Row) error {
	sdb, err := tx.secondaryDB(col)
	if err != nil {
		return err
	}

	var newKey Key
	if err := EncodeKey(&newKey, col, newRow.Get(col), true); err != nil {
		return err
	}

	var oldKey Key
	haveOld := oldRow != nil
	if haveOld {
		if err := EncodeKey(&oldKey, col, oldRow.Get(col), true); err != nil {
			return err
		}
		if bytes.Equal(oldKey.Bytes, newKey.Bytes) && bytes.Equal(oldPK, newPK) {
			return nil // fully unchanged, nothing to do
		}
	}

	if col.shove.IndexKind().IsUnique() {
		if holder, err := sdb.Get(newKey.Bytes); err != nil {
			return newErr(ErrInternal, "put", "secondary lookup failed").WithColumn(col).WithCause(err)
		} else if holder != nil && !bytes.Equal(holder, oldPK) && !bytes.Equal(holder, newPK) {
			return newErr(ErrKeyMismatch, "put", "unique secondary key already claimed by another row").WithColumn(col).WithKey(newKey.Bytes)
		}
	}

	if haveOld {
		if col.shove.IndexKind().IsDup() {
			if err := sdb.DeleteExact(oldKey.Bytes, oldPK); err != nil {
				return newErr(ErrInternal, "put", "secondary delete failed").WithColumn(col).WithCause(err)
			}
		} else {
			if err := sdb.Delete(oldKey.Bytes); err != nil {
				return newErr(ErrInternal, "put", "secondary delete failed").WithColumn(col).WithCause(err)
			}
		}
	}

	flags := kv.PutFlags(0)
	if col.shove.IndexKind().IsDup() {
		flags |= kv.NoDupData
	}
	if err := sdb.Put(newKey.Bytes, newPK, flags); err != nil {
		return newErr(ErrInternal, "put", "secondary write failed").WithColumn(col).WithCause(err)
	}
	return nil
}

// DeleteByPrimary removes the row at primary key pk and every secondary
// index entry that referenced it (spec §4.7).
func (tx *Tx) DeleteByPrimary(t *Table, pk Value) error {
	if !tx.Writable() {
		return newErr(ErrInvalidArgument, "delete", "transaction is read-only").WithTable(t)
	}
	var pkKey Key
	if err := EncodeKey(&pkKey, t.Primary(), pk, true); err != nil {
		return err
	}
	primary, err := tx.primaryDB(t)
	if err != nil {
		return err
	}
	existing, err := primary.Get(pkKey.Bytes)
	if err != nil {
		return newErr(ErrInternal, "delete", "primary lookup failed").WithTable(t).WithCause(err)
	}
	if existing == nil {
		return newErr(ErrNoData, "delete", "primary key does not exist").WithTable(t).WithKey(pkKey.Bytes)
	}
	oldRow, err := decodeRow(t, existing)
	if err != nil {
		return err
	}
	for _, col := range t.Secondaries() {
		sdb, err := tx.secondaryDB(col)
		if err != nil {
			return err
		}
		var oldKey Key
		if err := EncodeKey(&oldKey, col, oldRow.Get(col), true); err != nil {
			return err
		}
		if col.shove.IndexKind().IsDup() {
			err = sdb.DeleteExact(oldKey.Bytes, pkKey.Bytes)
		} else {
			err = sdb.Delete(oldKey.Bytes)
		}
		if err != nil {
			return newErr(ErrInternal, "delete", "secondary delete failed").WithColumn(col).WithCause(err)
		}
	}
	if err := primary.Delete(pkKey.Bytes); err != nil {
		return newErr(ErrInternal, "delete", "primary delete failed").WithTable(t).WithCause(err)
	}
	return nil
}

// GetByPrimary materializes the row at primary key pk, or returns
// ErrNoData if it doesn't exist.
func (tx *Tx) GetByPrimary(t *Table, pk Value) (*Row, error) {
	var pkKey Key
	if err := EncodeKey(&pkKey, t.Primary(), pk, true); err != nil {
		return nil, err
	}
	primary, err := tx.primaryDB(t)
	if err != nil {
		return nil, err
	}
	data, err := primary.Get(pkKey.Bytes)
	if err != nil {
		return nil, newErr(ErrInternal, "get", "primary lookup failed").WithTable(t).WithCause(err)
	}
	if data == nil {
		return nil, newErr(ErrNoData, "get", "primary key does not exist").WithTable(t).WithKey(pkKey.Bytes)
	}
	return decodeRow(t, data)
}
