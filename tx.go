package fpta

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/magniff/libfpta/internal/kv"
)

// Tx is a bound transaction over a DB (spec §5). Reads see an isolated
// snapshot; writes are serialized through the store's Batch, which runs the
// write function once inside a single write transaction.
type Tx struct {
	db      *DB
	kt      kv.Txn
	managed bool

	startTime time.Time
	written   bool
}

func (db *DB) newTx(kt kv.Txn, managed bool) *Tx {
	tx := &Tx{db: db, kt: kt, managed: managed, startTime: time.Now()}
	db.addTx(tx)
	return tx
}

func (tx *Tx) DB() *DB         { return tx.db }
func (tx *Tx) Schema() *Schema { return tx.db.schema }
func (tx *Tx) Writable() bool  { return tx.kt.Writable() }

// subDB opens the physical sub-database backing col's data or index bucket
// within this transaction, creating it if this is the primary write path
// and it's missing (schema evolution beyond Open is not supported: this
// mirrors the teacher's tableState.migrate-at-Open-time model).
func (tx *Tx) subDB(name string, flags kv.SubDBFlags) (kv.SubDB, error) {
	if !tx.kt.Writable() {
		flags &^= kv.Create
	}
	return tx.kt.SubDB(name, flags)
}

func (tx *Tx) primaryDB(tbl *Table) (kv.SubDB, error) {
	return tx.subDB(tbl.Bucket(), PrimaryFlags(tbl.primary))
}

func (tx *Tx) secondaryDB(col *Column) (kv.SubDB, error) {
	return tx.subDB(col.Bucket(), SecondaryFlags(col, col.table.primary))
}

// Tx runs f against a fresh transaction: writable transactions go through
// the store's Batch (spec §5's serialized writer) and are rolled back when
// f returns an error or panics,
// read-only transactions see one MVCC snapshot for their whole lifetime.
func (db *DB) Tx(writable bool, f func(tx *Tx) error) error {
	if !writable {
		kt, err := db.store.Begin(false)
		if err != nil {
			return err
		}
		tx := db.newTx(kt, false)
		defer func() {
			db.removeTx(tx)
			kt.Rollback()
		}()
		return safelyCall(f, tx)
	}

	var funcErr error
	err := db.store.Batch(func(kt kv.Txn) error {
		if funcErr != nil {
			return funcErr
		}
		tx := db.newTx(kt, true)
		defer db.removeTx(tx)
		funcErr = safelyCall(f, tx)
		return funcErr // a non-nil error makes Batch roll the transaction back
	})
	if err == nil && funcErr != nil {
		err = funcErr
	}
	return err
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}

// View runs f in a read-only transaction (spec §5).
func (db *DB) View(f func(tx *Tx) error) error {
	return db.Tx(false, f)
}

// Update runs f in a writable transaction; f's returned error both aborts
// the transaction and is propagated to the caller.
func (db *DB) Update(f func(tx *Tx) error) error {
	return db.Tx(true, f)
}
