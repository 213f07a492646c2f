package dotlite

import "go.riyazali.net/dotlite/schema"

// Table represents a table defined in the sqlite database file: the parsed
// column metadata from its CREATE TABLE statement, paired with the b-tree
// that stores its rows.
type Table struct {
	obj    *Object
	schema *schema.Table
}

// newTable parses obj's SQL as a CREATE TABLE statement and pairs the
// result with obj's backing tree.
func newTable(obj *Object) (*Table, error) {
	var tableSchema, err = schema.ParseTable(obj.Name(), obj.SQL())
	if err != nil {
		return nil, wrapf(err, "table %q", obj.Name())
	}
	return &Table{obj: obj, schema: tableSchema}, nil
}

// Name returns the table's name
func (table *Table) Name() string { return table.schema.Name }

// Columns return a list of all declared columns for the table, in storage
// order.
func (table *Table) Columns() []*schema.Column { return table.schema.Columns }

// WithoutRowid reports whether the table was declared WITHOUT ROWID.
func (table *Table) WithoutRowid() bool { return table.schema.WithoutRowid }

// Tree returns the b-tree holding the table's rows.
func (table *Table) Tree() *Tree { return table.obj.Tree() }

// ForEach iterates over each row in the table in rowid order, invoking fn
// with the row's rowid and its record's decoded values, one per stored
// column in declaration order. The rowid is not among the values; a
// rowid-alias column's slot holds whatever the record stores there.
func (table *Table) ForEach(fn func(rowid int64, values []any) error) error {
	return table.obj.tree.Walk(func(c *cell) error {
		var rec, err = NewRecord(table.obj.tree.file.Encoding(), c.Payload)
		if err != nil {
			return wrapf(err, "table %q rowid=%d", table.schema.Name, c.Rowid)
		}

		var values = make([]any, rec.NumValues())
		for i := range values {
			if values[i], err = rec.ValueAt(i); err != nil {
				return err
			}
		}

		return fn(c.Rowid, values)
	})
}
