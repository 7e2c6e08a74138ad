/*
Package fpta implements a typed, schema-aware tabular layer on top of an
embedded, transactional, ordered key-value store (bbolt underneath, or the
in-memory backend used by tests).

We implement:

 1. Tables: named collections of typed columns, one of which is the primary
    key. Rows are addressed by their primary key and materialized on demand.

 2. Secondary indexes: unique or duplicate-tolerant, ordered (ascending or
    reverse) or unordered (hashed), letting a row be found by any indexed
    column instead of only its primary key.

 3. Cursors: bidirectional, range-clippable iteration over a table or index,
    including duplicate-key groups, with delete/update-through-cursor.

# Technical Details

**Sub-databases.** Every table's primary data and every secondary index gets
its own named sub-database inside the store (bucket, in bbolt's terms). A
table named "orders" with a secondary index on "customer" therefore owns two
sub-databases: "orders$data" and "orders$idx$customer".

**Key encoding.** Keys are order-preserving byte encodings: offset-binary
for signed integers, sign-flipped IEEE754 bit patterns for floats, raw bytes
for short strings/blobs (bytes.Compare already gives the right order), and
byte-reversal for reverse-ordered columns. Keys longer than the configured
maximum are folded into a fixed-width head/tail-plus-hash form and decode
back out as an opaque identifier rather than the original value.

**Duplicate keys.** The store this package ships with (bbolt) has no native
support for a sorted key with multiple values (LMDB/libmdbx's DUPSORT). It's
emulated with a composite physical key of secondaryKey||primaryKey and a
physical value equal to the primary key alone; see internal/kv for the
split/join logic and flags.go for the sub-database flag derivation.

**Row body.** A row is stored as its per-column Values, msgpack-encoded in
column declaration order. Each Value carries its own kind tag so decoding
never needs the schema to know the wire shape, only the expected column
count.
*/
package fpta
