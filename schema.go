package fpta

import "strings"

// Schema is the process-wide registry of tables (spec §3, "Schema"),
// grounded on the teacher's Schema/TableNamed registry but keyed on plain
// names instead of reflect.Type, since columns here are declared dynamically
// rather than derived from a Go struct.
type Schema struct {
	tables    []*Table
	byLowered map[string]*Table
}

func NewSchema() *Schema {
	return &Schema{byLowered: make(map[string]*Table)}
}

func (s *Schema) Tables() []*Table {
	return append([]*Table(nil), s.tables...)
}

func (s *Schema) Table(name string) *Table {
	return s.byLowered[strings.ToLower(name)]
}

// AddTable declares a new table. It fails if name is already registered.
func (s *Schema) AddTable(name string) (*Table, error) {
	lower := strings.ToLower(name)
	if s.byLowered[lower] != nil {
		return nil, newErr(ErrInvalidArgument, "schema", "table %q already declared", name)
	}
	t := &Table{
		schema: s,
		Name:   name,
		bucket: bucketName(name + "$data"),
		byName: make(map[string]*Column),
	}
	s.tables = append(s.tables, t)
	s.byLowered[lower] = t
	return t, nil
}

// bucketName is the sub-database name a table or index physically lives
// under, mirroring the teacher's bucketName wrapper (schema.go).
type bucketName string

func (b bucketName) String() string { return string(b) }

// Table is a named collection of typed, indexed columns (spec §3, "Table").
type Table struct {
	schema  *Schema
	Name    string
	bucket  bucketName
	columns []*Column
	byName  map[string]*Column
	primary *Column
}

func (t *Table) Schema() *Schema  { return t.schema }
func (t *Table) Bucket() string   { return t.bucket.String() }
func (t *Table) Primary() *Column { return t.primary }

func (t *Table) Columns() []*Column {
	return append([]*Column(nil), t.columns...)
}

func (t *Table) Column(name string) *Column {
	return t.byName[strings.ToLower(name)]
}

// AddColumn declares a new column (spec §3/§4.4). The first column declared
// with an indexed, non-secondary kind becomes the table's primary key; a
// second such declaration is rejected. Declaration order is baked into the
// column's Shove; Row.Get and Row.Set use it as the column's slot in the
// row, so the row body is laid out in declaration order.
func (t *Table) AddColumn(name string, typ ColumnType, kind IndexKind) (*Column, error) {
	if t.byName[strings.ToLower(name)] != nil {
		return nil, newErr(ErrInvalidArgument, "schema", "column %q already declared", name).WithTable(t)
	}
	if err := kind.Validate(); err != nil {
		return nil, err.(*Error).WithTable(t)
	}
	if kind.Indexed() && kind.IsPrimary() && t.primary != nil {
		return nil, newErr(ErrInvalidArgument, "schema", "table already has a primary column %q", t.primary.Name).WithTable(t)
	}
	order := len(t.columns)
	c := &Column{
		table: t,
		Name:  name,
		shove: MakeShove(typ, kind, order),
	}
	if kind.Indexed() {
		if kind.IsPrimary() {
			c.bucket = t.bucket
			t.primary = c
		} else {
			c.bucket = bucketName(t.Name + "$idx$" + name)
		}
	}
	t.columns = append(t.columns, c)
	t.byName[strings.ToLower(name)] = c
	return c, nil
}

// Secondaries returns every indexed, non-primary column, in declaration
// order — the set of sub-databases a row mutation must keep in sync.
func (t *Table) Secondaries() []*Column {
	var out []*Column
	for _, c := range t.columns {
		if c.shove.IndexKind().IsSecondary() {
			out = append(out, c)
		}
	}
	return out
}

// Column is one typed, optionally indexed field of a Table (spec §3,
// "Column").
type Column struct {
	table  *Table
	Name   string
	shove  Shove
	bucket bucketName
}

func (c *Column) Table() *Table        { return c.table }
func (c *Column) Type() ColumnType     { return c.shove.Type() }
func (c *Column) IndexKind() IndexKind { return c.shove.IndexKind() }
func (c *Column) Shove() Shove         { return c.shove }
func (c *Column) Bucket() string       { return c.bucket.String() }
