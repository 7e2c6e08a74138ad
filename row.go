package fpta

import (
	"github.com/vmihailenco/msgpack/v5"
)

// EncodeMsgpack implements msgpack.CustomEncoder so a Value can round-trip
// through the row body wire format (spec §3, "Row") without reflection: a
// one-byte Kind tag followed by the payload that Kind implies.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeUint8(uint8(v.kind)); err != nil {
		return err
	}
	switch v.kind {
	case KindNull, KindBegin, KindEnd:
		return nil
	case KindInt:
		return enc.EncodeInt64(v.i)
	case KindUint:
		return enc.EncodeUint64(v.u)
	case KindFloat:
		return enc.EncodeFloat64(v.f)
	case KindTime:
		return enc.EncodeInt64(v.i)
	case KindString:
		return enc.EncodeString(string(v.b))
	case KindBinary, KindShoved:
		return enc.EncodeBytes(v.b)
	default:
		return newErr(ErrInternal, "encode", "unhandled value kind %v", v.kind)
	}
}

// DecodeMsgpack is the CustomDecoder counterpart of EncodeMsgpack.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	k, err := dec.DecodeUint8()
	if err != nil {
		return err
	}
	v.kind = Kind(k)
	switch v.kind {
	case KindNull, KindBegin, KindEnd:
		return nil
	case KindInt, KindTime:
		v.i, err = dec.DecodeInt64()
		return err
	case KindUint:
		v.u, err = dec.DecodeUint64()
		return err
	case KindFloat:
		v.f, err = dec.DecodeFloat64()
		return err
	case KindString:
		s, err := dec.DecodeString()
		if err != nil {
			return err
		}
		v.b = []byte(s)
		return nil
	case KindBinary, KindShoved:
		v.b, err = dec.DecodeBytes()
		return err
	default:
		return newErr(ErrIndexCorrupted, "decode", "row body has unknown value kind %d", k)
	}
}

// Row is a materialized, table-bound tuple of column values (spec §3,
// "Row"). Values are addressed by Column rather than position so callers
// never have to track declaration order themselves.
type Row struct {
	table *Table
	vals  []Value
}

// NewRow returns an all-Null row shaped for t.
func NewRow(t *Table) *Row {
	return &Row{table: t, vals: make([]Value, len(t.columns))}
}

func (r *Row) Table() *Table { return r.table }

func (r *Row) Get(col *Column) Value {
	if col.table != r.table {
		return Null()
	}
	return r.vals[col.shove.Order()]
}

// Set stores v for col, after checking it belongs to this row's table. It
// does not itself enforce the column-type compatibility matrix: that check
// only matters for indexed columns at encode time (EncodeKey already runs
// it), and non-indexed columns are free to hold any Value kind the caller
// puts there, mirroring the teacher's untyped KVMap payloads.
func (r *Row) Set(col *Column, v Value) error {
	if col.table != r.table {
		return newErr(ErrColumnMissing, "row", "column %q is not part of table %q", col.Name, r.table.Name).WithTable(r.table)
	}
	r.vals[col.shove.Order()] = v
	return nil
}

func (r *Row) encode() ([]byte, error) {
	data, err := msgpack.Marshal(r.vals)
	if err != nil {
		return nil, newErr(ErrInternal, "row", "encode failed").WithTable(r.table).WithCause(err)
	}
	return data, nil
}

func decodeRow(t *Table, data []byte) (*Row, error) {
	var vals []Value
	if err := msgpack.Unmarshal(data, &vals); err != nil {
		return nil, newErr(ErrIndexCorrupted, "row", "corrupted row body").WithTable(t).WithCause(err)
	}
	if len(vals) != len(t.columns) {
		return nil, newErr(ErrIndexCorrupted, "row", "row has %d values, table has %d columns", len(vals), len(t.columns)).WithTable(t)
	}
	return &Row{table: t, vals: vals}, nil
}
