package dotlite

// Object represents either a table or an index stored in the database file,
// as recorded by a single row of sqlite_schema.
type Object struct {
	name      string // name of the object
	typ       string // "table" or "index"
	tableName string // owning table's name; equals name for a table object
	sql       string // raw sql containing the object's schema
	tree      *Tree  // tree holding the object's rows/entries
}

func NewObject(name, typ, tableName, sql string, tree *Tree) *Object {
	return &Object{name: name, typ: typ, tableName: tableName, sql: sql, tree: tree}
}

// Name returns the object's name
func (obj *Object) Name() string { return obj.name }

// Type returns "table" or "index"
func (obj *Object) Type() string { return obj.typ }

// TableName returns the name of the table this object belongs to (itself,
// for a table object).
func (obj *Object) TableName() string { return obj.tableName }

// SQL returns the object's raw sql schema.
func (obj *Object) SQL() string { return obj.sql }

// Tree returns the b-tree backing this object.
func (obj *Object) Tree() *Tree { return obj.tree }

// ForEach iterates over each row/entry in the object in key order, invoking
// callback with its decoded record.
func (obj *Object) ForEach(fn func(*Record) error) error {
	return obj.tree.Walk(func(c *cell) (err error) {
		var rec *Record
		if rec, err = NewRecord(obj.tree.file.Encoding(), c.Payload); err != nil {
			return wrapf(err, "object %q", obj.name)
		}
		return fn(rec)
	})
}
