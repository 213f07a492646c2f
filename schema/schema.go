// Package schema parses the CREATE TABLE / CREATE INDEX text recorded in
// sqlite_schema.sql into the column lists, primary-key, and ordering
// information the b-tree layer needs to interpret row payloads. It is a
// small hand-written tokenizer rather than a general SQL parser: the schema
// surface only ever needs to understand column definitions, the handful of
// per-column constraint keywords that affect storage, and a table's
// trailing WITHOUT ROWID clause.
//
// See https://www.sqlite.org/lang_createtable.html and
// https://www.sqlite.org/datatype3.html for the grammar and affinity rules
// this package implements a subset of.
package schema

import (
	"fmt"
	"strings"
)

// Affinity is the recommended storage class for a column's values, derived
// from its declared type name per the rules in
// https://www.sqlite.org/datatype3.html#determination_of_column_affinity.
type Affinity int

const (
	_ Affinity = iota
	TEXT
	NUMERIC
	INTEGER
	REAL
	BLOB
)

func (a Affinity) String() string {
	switch a {
	case TEXT:
		return "TEXT"
	case NUMERIC:
		return "NUMERIC"
	case INTEGER:
		return "INTEGER"
	case REAL:
		return "REAL"
	case BLOB:
		return "BLOB"
	default:
		return "UNKNOWN"
	}
}

// affinityOf assigns an Affinity to a declared column type, following
// SQLite's substring-matching algorithm rather than a fixed keyword table:
// the first rule that matches any substring of the (upper-cased) type name
// wins, and an empty type name gets BLOB affinity.
func affinityOf(declared string) Affinity {
	var t = strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "INT"):
		return INTEGER
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return TEXT
	case t == "":
		return BLOB
	case strings.Contains(t, "BLOB"):
		return BLOB
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return REAL
	default:
		return NUMERIC
	}
}

// Column describes one column of a table, as declared in its CREATE TABLE
// statement.
type Column struct {
	Pos      int    // 0-based storage position among the table's columns
	Name     string // column name, quotes stripped
	Type     string // raw declared type, as written
	Affinity Affinity

	PrimaryKey    bool
	Autoincrement bool
	Unique        bool
	Nullable      bool

	// Rowid is true for the single INTEGER PRIMARY KEY column of a rowid
	// table, whose value is an alias for the row's rowid rather than a
	// stored field.
	Rowid bool
}

// Table describes a parsed CREATE TABLE statement.
type Table struct {
	Name         string
	SQL          string
	Columns      []*Column
	PrimaryKey   []*Column
	WithoutRowid bool
	Strict       bool
}

// ColumnByName returns the named column, or nil if the table has none by
// that name.
func (t *Table) ColumnByName(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// RowidColumn returns the table's INTEGER PRIMARY KEY alias column, or nil
// for a WITHOUT ROWID table or one with no such alias.
func (t *Table) RowidColumn() *Column {
	for _, c := range t.Columns {
		if c.Rowid {
			return c
		}
	}
	return nil
}

// Index describes a parsed CREATE INDEX statement, or an automatic index
// (sqlite_autoindex_*) whose stored SQL is empty (SQL == "" in that case).
type Index struct {
	Name    string
	Table   string
	SQL     string
	Columns []*Column
	// Desc[i] is true when Columns[i] is ordered descending in the index.
	Desc []bool
}

// ParseTable parses a CREATE TABLE statement's body into a Table.
func ParseTable(name, sql string) (*Table, error) {
	var tokens = tokenize(sql)
	var open, close = indexOf(tokens, "("), lastIndexOf(tokens, ")")
	if open < 0 || close < 0 || close < open {
		return nil, errf("malformed CREATE TABLE statement: %q", sql)
	}

	var table = &Table{Name: name, SQL: sql}

	for _, def := range splitDefinitions(tokens[open+1 : close]) {
		if len(def) == 0 {
			continue
		}
		upper(def)

		if pk := matchParenList(def, "PRIMARY", "KEY", "("); pk != nil {
			for _, colName := range pk {
				if c := table.ColumnByName(unquote(colName)); c != nil {
					table.PrimaryKey = append(table.PrimaryKey, c)
				}
			}
			continue
		}
		if matchPrefix(def, "UNIQUE", "(") || matchPrefix(def, "CHECK", "(") || matchPrefix(def, "FOREIGN", "KEY", "(") {
			continue // table constraints that don't affect storage layout
		}

		var col = parseColumn(len(table.Columns), def)
		table.Columns = append(table.Columns, col)
	}

	var tail = strings.ToUpper(sql[strings.LastIndex(sql, ")"):])
	table.WithoutRowid = strings.Contains(tail, "WITHOUT") && strings.Contains(tail, "ROWID")
	table.Strict = containsWord(tail, "STRICT")

	if len(table.PrimaryKey) == 0 {
		for _, c := range table.Columns {
			if c.PrimaryKey {
				table.PrimaryKey = append(table.PrimaryKey, c)
			}
		}
	}

	// a single-column INTEGER PRIMARY KEY is an alias for the rowid; see
	// https://www.sqlite.org/lang_createtable.html#rowid
	if !table.WithoutRowid && len(table.PrimaryKey) == 1 {
		if c := table.PrimaryKey[0]; c.Affinity == INTEGER {
			c.Rowid = true
		}
	}

	return table, nil
}

func parseColumn(pos int, def []string) *Column {
	var col = &Column{Pos: pos, Name: unquote(def[0]), Nullable: true}

	var i = 1
	if i < len(def) && def[i] != "" && !isConstraintKeyword(def[i]) {
		col.Type = def[i]
		i++
		// swallow a parenthesized length/precision spec: TYPE(n) or TYPE(n,n)
		if i < len(def) && def[i] == "(" {
			for i < len(def) && def[i] != ")" {
				i++
			}
			i++ // past ')'
		}
	}
	col.Affinity = affinityOf(col.Type)

	for i < len(def) {
		switch {
		case matchPrefix(def[i:], "PRIMARY", "KEY"):
			col.PrimaryKey = true
			i += 2
		case matchPrefix(def[i:], "NOT", "NULL"):
			col.Nullable = false
			i += 2
		case matchPrefix(def[i:], "NULL"):
			i += 1
		case matchPrefix(def[i:], "UNIQUE"):
			col.Unique = true
			i += 1
		case matchPrefix(def[i:], "AUTOINCREMENT"):
			col.Autoincrement = true
			i += 1
		default:
			i++
		}
	}

	return col
}

// ParseIndex parses a CREATE INDEX statement against its already-parsed
// table, resolving column names to the table's Column objects. An empty sql
// (as stored for an automatic index, such as the one backing a rowid
// table's non-INTEGER primary key) yields an Index over the table's primary
// key, ascending.
func ParseIndex(name string, table *Table, sql string) (*Index, error) {
	if sql == "" {
		var idx = &Index{Name: name, Table: table.Name, Columns: table.PrimaryKey}
		idx.Desc = make([]bool, len(idx.Columns))
		return idx, nil
	}

	var tokens = tokenize(sql)
	if !matchPrefix(tokens, "CREATE") {
		return nil, errf("malformed CREATE INDEX statement: %q", sql)
	}

	var open = indexOf(tokens, "(")
	var close = lastIndexOf(tokens, ")")
	if open < 0 || close < 0 {
		return nil, errf("malformed CREATE INDEX statement: %q", sql)
	}

	var idx = &Index{Name: name, Table: table.Name, SQL: sql}
	for _, spec := range splitDefinitions(tokens[open+1 : close]) {
		if len(spec) == 0 {
			continue
		}
		var col = table.ColumnByName(unquote(spec[0]))
		idx.Columns = append(idx.Columns, col)

		var desc = len(spec) > 1 && strings.EqualFold(spec[1], "DESC")
		idx.Desc = append(idx.Desc, desc)
	}

	return idx, nil
}

// --- tokenizer ---

func tokenize(s string) []string {
	var out []string
	var i = 0
	for i < len(s) {
		var c = s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == ',' || c == '(' || c == ')':
			out = append(out, string(c))
			i++
		case c == '"' || c == '`' || c == '\'':
			var j = i + 1
			for j < len(s) && s[j] != c {
				j++
			}
			out = append(out, s[i:min(j+1, len(s))])
			i = j + 1
		default:
			var j = i
			for j < len(s) && !isBoundary(s[j]) {
				j++
			}
			out = append(out, s[i:j])
			i = j
		}
	}
	return out
}

func isBoundary(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ',' || c == '(' || c == ')'
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// splitDefinitions splits a comma-joined token list at top-level commas
// (commas nested inside parentheses, e.g. a DECIMAL(10,2) type spec or a
// PRIMARY KEY(a, b) constraint, do not split).
func splitDefinitions(tokens []string) [][]string {
	var defs [][]string
	var cur []string
	var depth int
	for _, tok := range tokens {
		switch tok {
		case "(":
			depth++
		case ")":
			depth--
		}
		if tok == "," && depth == 0 {
			defs = append(defs, cur)
			cur = nil
			continue
		}
		cur = append(cur, tok)
	}
	if len(cur) > 0 {
		defs = append(defs, cur)
	}
	return defs
}

func matchPrefix(tokens []string, keywords ...string) bool {
	if len(tokens) < len(keywords) {
		return false
	}
	for i, k := range keywords {
		if !strings.EqualFold(tokens[i], k) {
			return false
		}
	}
	return true
}

// matchParenList matches keywords followed by a parenthesized,
// comma-separated list and returns the list's (unquoted) entries.
func matchParenList(tokens []string, keywords ...string) []string {
	if !matchPrefix(tokens, keywords...) {
		return nil
	}
	var start = len(keywords) // tokens[start-1] == "("
	var depth = 1
	var i = start
	var names []string
	var cur string
	for i < len(tokens) && depth > 0 {
		switch tokens[i] {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				if cur != "" {
					names = append(names, cur)
				}
			}
		case ",":
			if depth == 1 {
				names = append(names, cur)
				cur = ""
			}
		default:
			if cur == "" {
				cur = tokens[i]
			}
		}
		i++
	}
	return names
}

func indexOf(tokens []string, tok string) int {
	for i, t := range tokens {
		if t == tok {
			return i
		}
	}
	return -1
}

func lastIndexOf(tokens []string, tok string) int {
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i] == tok {
			return i
		}
	}
	return -1
}

func unquote(s string) string {
	if len(s) >= 2 {
		var f, l = s[0], s[len(s)-1]
		if (f == '"' && l == '"') || (f == '`' && l == '`') || (f == '\'' && l == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func upper(tokens []string) {
	for i, t := range tokens {
		switch strings.ToUpper(t) {
		case "PRIMARY", "KEY", "UNIQUE", "CHECK", "FOREIGN", "NOT", "NULL",
			"DEFAULT", "AUTOINCREMENT", "WITHOUT", "ROWID", "ASC", "DESC":
			tokens[i] = strings.ToUpper(t)
		}
	}
}

func isConstraintKeyword(tok string) bool {
	switch tok {
	case "PRIMARY", "NOT", "NULL", "UNIQUE", "CHECK", "DEFAULT", "AUTOINCREMENT":
		return true
	}
	return false
}

func containsWord(s, word string) bool {
	return strings.Contains(strings.ToUpper(s), word)
}

func errf(format string, args ...any) error {
	return fmt.Errorf("schema: "+format, args...)
}
