package dotlite

import (
	"go.riyazali.net/dotlite/internal/dlog"
	"go.riyazali.net/dotlite/schema"
)

// Row is the caller-facing keyed view of a table row: column name to
// decoded value, with the rowid (if any) threaded through separately since
// a rowid-aliased column's stored value is NULL in the payload.
type Row map[string]any

// indexHandle binds a parsed index schema to the b-tree that stores its
// entries.
type indexHandle struct {
	schema *schema.Index
	tree   *Tree
	object *Object
}

// Database is the top-level handle over a sqlite file: it resolves named
// tables and indexes against the schema recorded on page 1 (see File.Schema)
// and exposes row-level operations in terms of the caller's keyed view of a
// row, rather than raw cell payloads.
type Database struct {
	file *File

	tables  map[string]*Table
	indexes map[string][]*indexHandle // keyed by owning table name
}

// OpenDatabase opens the named file and loads its schema.
func OpenDatabase(name string, opts ...OpenOption) (*Database, error) {
	var file, err = OpenFile(name, opts...)
	if err != nil {
		return nil, err
	}
	return NewDatabase(file)
}

// NewDatabase wraps an already-open File, parsing its schema into tables
// and indexes.
func NewDatabase(file *File) (*Database, error) {
	var db = &Database{
		file:    file,
		tables:  make(map[string]*Table),
		indexes: make(map[string][]*indexHandle),
	}

	var objects, err = file.Schema()
	if err != nil {
		return nil, err
	}

	for _, obj := range objects {
		if obj.Type() != "table" {
			continue
		}
		var table *Table
		if table, err = newTable(obj); err != nil {
			return nil, err
		}
		db.tables[obj.Name()] = table
	}

	for _, obj := range objects {
		if obj.Type() != "index" {
			continue
		}
		var table, ok = db.tables[obj.TableName()]
		if !ok {
			continue // index over a view or a table we failed to resolve
		}
		var idxSchema *schema.Index
		if idxSchema, err = schema.ParseIndex(obj.Name(), table.schema, obj.SQL()); err != nil {
			return nil, wrapf(err, "index %q", obj.Name())
		}
		var base = obj.Tree()
		db.indexes[obj.TableName()] = append(db.indexes[obj.TableName()], &indexHandle{
			schema: idxSchema, tree: NewIndexTree(base.file, base.root, idxSchema.Desc), object: obj,
		})
	}

	return db, nil
}

// File returns the underlying File handle.
func (db *Database) File() *File { return db.file }

// TableSchema returns the parsed schema for the named table, or nil.
func (db *Database) TableSchema(name string) *schema.Table {
	if t, ok := db.tables[name]; ok {
		return t.schema
	}
	return nil
}

func (db *Database) table(name string) (*Table, error) {
	var t, ok = db.tables[name]
	if !ok {
		return nil, wrapf(ErrNotFound, "table %q", name)
	}
	return t, nil
}

// rowFromValues reshapes a decoded value list (in column-storage order)
// into a keyed Row, substituting the rowid for the rowid-alias column.
func rowFromValues(t *schema.Table, rowid int64, values []any) Row {
	var row = make(Row, len(t.Columns))
	for i, c := range t.Columns {
		if c.Rowid {
			row[c.Name] = rowid
		} else if i < len(values) {
			row[c.Name] = values[i]
		}
	}
	return row
}

// valuesFromRow reshapes a keyed Row into a column-storage-order value
// list, with the rowid-alias column's slot left nil (its value lives in the
// cell header, not the payload) and returns the row's rowid if the caller
// supplied one under that column's name.
func valuesFromRow(t *schema.Table, row Row) (rowid int64, hasRowid bool, values []any) {
	values = make([]any, len(t.Columns))
	for i, c := range t.Columns {
		var v, ok = row[c.Name]
		if c.Rowid {
			if ok {
				rowid, _ = v.(int64)
				hasRowid = true
			}
			continue
		}
		values[i] = v
	}
	return
}

// FetchAll invokes fn with every row of the named table, in rowid order.
func (db *Database) FetchAll(tableName string, fn func(rowid int64, row Row) error) error {
	var t, err = db.table(tableName)
	if err != nil {
		return err
	}
	return t.ForEach(func(rowid int64, values []any) error {
		return fn(rowid, rowFromValues(t.schema, rowid, values))
	})
}

// GetByRowid looks up a single row by rowid; found is false if no such row
// exists.
func (db *Database) GetByRowid(tableName string, rowid int64) (row Row, found bool, err error) {
	var t *Table
	if t, err = db.table(tableName); err != nil {
		return nil, false, err
	}

	var c *cell
	if c, found, err = t.Tree().GetByRowid(rowid); err != nil || !found {
		return nil, found, err
	}

	var rec *Record
	if rec, err = NewRecord(db.file.Encoding(), c.Payload); err != nil {
		return nil, false, err
	}
	var values = make([]any, rec.NumValues())
	for i := range values {
		if values[i], err = rec.ValueAt(i); err != nil {
			return nil, false, err
		}
	}
	return rowFromValues(t.schema, rowid, values), true, nil
}

// primaryKeyIndex returns the index handle over tableName's primary key —
// the implicit autoindex sqlite creates for a composite or non-integer
// primary key on an ordinary (rowid) table — if one exists.
func (db *Database) primaryKeyIndex(tableName string) *indexHandle {
	for _, h := range db.indexes[tableName] {
		if h.schema.SQL == "" {
			return h
		}
	}
	return nil
}

// GetByPK looks up a row by its declared primary key, dispatching to a
// rowid lookup when the table has a rowid-aliased integer primary key, to
// the table tree itself when it is WITHOUT ROWID (keyed by the pk columns
// directly), or to the primary-key index otherwise.
func (db *Database) GetByPK(tableName string, pk ...any) (rowid int64, row Row, found bool, err error) {
	var t *Table
	if t, err = db.table(tableName); err != nil {
		return 0, nil, false, err
	}

	if rc := t.schema.RowidColumn(); rc != nil && len(pk) == 1 {
		var id, ok = pk[0].(int64)
		if !ok {
			return 0, nil, false, wrapf(ErrBadIndexKeys, "table %q: primary key is INTEGER", tableName)
		}
		row, found, err = db.GetByRowid(tableName, id)
		return id, row, found, err
	}

	if t.schema.WithoutRowid {
		var payload []byte
		if payload, found, err = t.Tree().GetByKey(pk); err != nil || !found {
			return 0, nil, found, err
		}
		var rec *Record
		if rec, err = NewRecord(db.file.Encoding(), payload); err != nil {
			return 0, nil, false, err
		}
		var values = make([]any, rec.NumValues())
		for i := range values {
			if values[i], err = rec.ValueAt(i); err != nil {
				return 0, nil, false, err
			}
		}
		return 0, rowFromValues(t.schema, 0, values), true, nil
	}

	var idx = db.primaryKeyIndex(tableName)
	if idx == nil {
		return 0, nil, false, wrapf(ErrNotFound, "table %q has no addressable primary key", tableName)
	}

	var matchRowid int64
	var matched bool
	err = idx.tree.FindEqual(pk, func(entry []any) error {
		if matched {
			return nil
		}
		matched = true
		matchRowid, _ = entry[len(entry)-1].(int64)
		return nil
	})
	if err != nil || !matched {
		return 0, nil, false, err
	}
	row, found, err = db.GetByRowid(tableName, matchRowid)
	return matchRowid, row, found, err
}

// FilterByIndex scans indexName for every entry whose leading columns equal
// the values in keys (in the index's declared column order), invoking fn
// with each matching row. keys may supply a prefix of the index's columns.
func (db *Database) FilterByIndex(tableName, indexName string, keys []any, fn func(rowid int64, row Row) error) error {
	var _, err = db.table(tableName)
	if err != nil {
		return err
	}

	var idx *indexHandle
	for _, h := range db.indexes[tableName] {
		if h.schema.Name == indexName {
			idx = h
			break
		}
	}
	if idx == nil {
		return wrapf(ErrNotFound, "index %q", indexName)
	}
	if len(keys) > len(idx.schema.Columns) {
		return wrapf(ErrBadIndexKeys, "index %q has %d columns", indexName, len(idx.schema.Columns))
	}

	return idx.tree.FindEqual(keys, func(entry []any) error {
		var rowid, _ = entry[len(entry)-1].(int64)
		var row, found, err = db.GetByRowid(tableName, rowid)
		if err != nil || !found {
			return err
		}
		return fn(rowid, row)
	})
}

// Insert adds rows to the named table, each applying to the table tree
// first and then, in reverse declaration order (matching the reference
// behavior on tie-breaking duplicate keys), to every secondary index.
func (db *Database) Insert(tableName string, rows []Row) error {
	var t, err = db.table(tableName)
	if err != nil {
		return err
	}

	for _, row := range rows {
		var rowid, hasRowid, values = valuesFromRow(t.schema, row)
		if !hasRowid {
			if rowid, err = t.Tree().nextRowid(); err != nil {
				return err
			}
		}

		var payload []byte
		if payload, err = EncodeRecord(values); err != nil {
			return err
		}
		if err = t.Tree().InsertByRowid(rowid, payload); err != nil {
			return err
		}

		var handles = db.indexes[tableName]
		for i := len(handles) - 1; i >= 0; i-- {
			var h = handles[i]
			var key = make([]any, len(h.schema.Columns)+1)
			for j, c := range h.schema.Columns {
				if c != nil {
					key[j] = row[c.Name]
				}
			}
			key[len(key)-1] = rowid

			var indexPayload []byte
			if indexPayload, err = EncodeRecord(key); err != nil {
				return err
			}
			if err = h.tree.InsertKey(indexPayload); err != nil {
				return err
			}
		}

		dlog.Debug("database: inserted row", "table", tableName, "rowid", rowid)
	}

	return nil
}

// DeleteByRowid removes the row with the given rowid from tableName and
// every secondary index entry that referenced it.
func (db *Database) DeleteByRowid(tableName string, rowid int64) error {
	var t, err = db.table(tableName)
	if err != nil {
		return err
	}

	var row, found, gerr = db.GetByRowid(tableName, rowid)
	if gerr != nil {
		return gerr
	}
	if !found {
		return wrapf(ErrNotFound, "table %q rowid=%d", tableName, rowid)
	}

	for _, h := range db.indexes[tableName] {
		var key = make([]any, len(h.schema.Columns)+1)
		for j, c := range h.schema.Columns {
			if c != nil {
				key[j] = row[c.Name]
			}
		}
		key[len(key)-1] = rowid

		var indexPayload []byte
		if indexPayload, err = EncodeRecord(key); err != nil {
			return err
		}
		if err = h.tree.DeleteKey(indexPayload); err != nil && err != ErrNotFound {
			return err
		}
	}

	if err = t.Tree().DeleteByRowid(rowid); err != nil {
		return err
	}

	dlog.Debug("database: deleted row", "table", tableName, "rowid", rowid)
	return nil
}

// UpdateByRowid replaces the row at rowid with newRow's values, preserving
// the rowid. It is implemented as delete-then-insert (see Tree.UpdateByRowid)
// since secondary-index maintenance requires the old key to locate and
// remove stale entries before the new ones are written.
func (db *Database) UpdateByRowid(tableName string, rowid int64, newRow Row) error {
	if err := db.DeleteByRowid(tableName, rowid); err != nil {
		return err
	}

	var t, err = db.table(tableName)
	if err != nil {
		return err
	}
	var _, _, values = valuesFromRow(t.schema, newRow)
	var payload []byte
	if payload, err = EncodeRecord(values); err != nil {
		return err
	}
	if err = t.Tree().InsertByRowid(rowid, payload); err != nil {
		return err
	}

	var handles = db.indexes[tableName]
	for i := len(handles) - 1; i >= 0; i-- {
		var h = handles[i]
		var key = make([]any, len(h.schema.Columns)+1)
		for j, c := range h.schema.Columns {
			if c != nil {
				key[j] = newRow[c.Name]
			}
		}
		key[len(key)-1] = rowid

		var indexPayload []byte
		if indexPayload, err = EncodeRecord(key); err != nil {
			return err
		}
		if err = h.tree.InsertKey(indexPayload); err != nil {
			return err
		}
	}

	return nil
}

// Commit flushes every dirty page to disk.
func (db *Database) Commit() error { return db.file.Commit() }

// Rollback discards pending mutations.
func (db *Database) Rollback() error { return db.file.Rollback() }

// Close closes the underlying file handle.
func (db *Database) Close() error { return db.file.Close() }
