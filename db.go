package fpta

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"

	"github.com/magniff/libfpta/internal/kv"
)

const trackTxns = true

// DB is one open embedded database: a schema bound to a physical store
// (spec §5). It tracks open transactions the way the teacher's DB does, for
// DescribeOpenTxns diagnostics, and remembers the store's byte size from the
// last Size() call.
type DB struct {
	store  kv.KV
	schema *Schema
	opt    Options

	lastSize atomic.Int64

	ReaderCount        atomic.Int64
	WriterCount        atomic.Int64
	PendingWriterCount atomic.Int64
	ReadCount          atomic.Uint64
	WriteCount         atomic.Uint64

	txns     []*Tx
	txnsLock sync.Mutex
}

// Options mirrors the teacher's Options (logging/testing knobs) plus the
// spec-specific engine toggles from spec §9's Open Questions: see
// DESIGN.md (Open Question 2) for EnableReturnIntoRange.
type Options struct {
	Logf      func(format string, args ...any)
	Verbose   bool
	IsTesting bool
	MmapSize  int

	// ProhibitNearbyForUnordered is stored but no code path reads it, so
	// setting it has no effect: OpenCursor accepts Lo/Hi bounds on an
	// unordered (hashed) index either way, and Locate only ever reports
	// exact matches.
	ProhibitNearbyForUnordered bool

	// ProhibitLossOfPrecision is stored but no code path reads it, so
	// setting it has no effect: coerceFloat rejects a value for a float32
	// column only when narrowing it overflows to infinity, and accepts any
	// other value whatever precision narrowing loses.
	ProhibitLossOfPrecision bool

	// EnableReturnIntoRange is read only by Cursor.DeleteCurrent: when the
	// step after a delete finds no further row in range, the cursor is
	// re-sought from an edge of the sub-database (see rewindAfterDelete)
	// instead of being left at EOF. Next, Prev and the other cursor moves
	// are not affected. Off by default.
	EnableReturnIntoRange bool
}

// Open creates or opens a database file backed by bbolt and ensures every
// table and index sub-database named in schema exists (spec §4.4/§4.8).
func Open(path string, schema *Schema, opt Options) (*DB, error) {
	bopt := &bbolt.Options{Timeout: 10 * time.Second}
	*bopt = *bbolt.DefaultOptions
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 1024
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("fpta: open: %w", err)
	}

	db := &DB{store: kv.NewBolt(bdb), schema: schema, opt: opt}
	if err := db.ensureSchema(); err != nil {
		bdb.Close()
		return nil, err
	}
	return db, nil
}

// OpenMem opens a transient in-memory database, used by tests that don't
// want a file on disk (grounded on the teacher's newMemStorage).
func OpenMem(schema *Schema, opt Options) (*DB, error) {
	db := &DB{store: kv.NewMem(), schema: schema, opt: opt}
	if err := db.ensureSchema(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) ensureSchema() error {
	return db.store.Batch(func(t kv.Txn) error {
		for _, tbl := range db.schema.tables {
			if tbl.primary == nil {
				return newErr(ErrInvalidArgument, "schema", "table has no primary column").WithTable(tbl)
			}
			if _, err := t.SubDB(tbl.Bucket(), PrimaryFlags(tbl.primary)); err != nil {
				return err
			}
			for _, col := range tbl.Secondaries() {
				if _, err := t.SubDB(col.Bucket(), SecondaryFlags(col, tbl.primary)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (db *DB) Schema() *Schema { return db.schema }

func (db *DB) Size() int64 {
	n := db.store.Size()
	db.lastSize.Store(n)
	return n
}

func (db *DB) Close() error { return db.store.Close() }

func (db *DB) logf(format string, args ...any) {
	if db.opt.Logf != nil {
		db.opt.Logf(format, args...)
	}
}

func (db *DB) addTx(tx *Tx) {
	if !trackTxns {
		return
	}
	db.txnsLock.Lock()
	defer db.txnsLock.Unlock()
	db.txns = append(db.txns, tx)
}

func (db *DB) removeTx(tx *Tx) {
	if !trackTxns {
		return
	}
	db.txnsLock.Lock()
	defer db.txnsLock.Unlock()
	found := -1
	for i, t := range db.txns {
		if t == tx {
			found = i
			break
		}
	}
	if found < 0 {
		return
	}
	n := len(db.txns)
	db.txns[found] = db.txns[n-1]
	db.txns[n-1] = nil
	db.txns = db.txns[:n-1]
}

func (db *DB) DescribeOpenTxns() string {
	if !trackTxns {
		return "OPEN TX TRACKING DISABLED"
	}
	db.txnsLock.Lock()
	txns := slices.Clone(db.txns)
	db.txnsLock.Unlock()

	if len(txns) == 0 {
		return "NO OPEN TRANSACTIONS"
	}
	slices.SortFunc(txns, func(a, b *Tx) int { return a.startTime.Compare(b.startTime) })

	now := time.Now()
	var buf strings.Builder
	fmt.Fprintf(&buf, "%d OPEN TRANSACTIONS:\n", len(txns))
	for _, tx := range txns {
		ms := now.Sub(tx.startTime).Milliseconds()
		fmt.Fprintf(&buf, "\n---\nopen for %d ms, writable=%v\n", ms, tx.Writable())
	}
	return buf.String()
}
