package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTable_rowidAlias(t *testing.T) {
	var sql = `CREATE TABLE x (b varchar, c int, d real, e decimal, a integer primary key, w blob, x date, y time, z datetime)`

	var table, err = ParseTable("x", sql)
	require.NoError(t, err)
	require.False(t, table.WithoutRowid)
	require.Len(t, table.Columns, 9)

	var a = table.ColumnByName("a")
	require.NotNil(t, a)
	require.True(t, a.PrimaryKey)
	require.True(t, a.Rowid)
	require.Equal(t, INTEGER, a.Affinity)

	var b = table.ColumnByName("b")
	require.NotNil(t, b)
	require.Equal(t, TEXT, b.Affinity)

	require.Equal(t, a, table.RowidColumn())
}

func TestParseTable_bareIntegerPrimaryKeyIsRowidAlias(t *testing.T) {
	// a bare `id INTEGER PRIMARY KEY` with no explicit NOT NULL is the most
	// common rowid-alias declaration in practice and must still count.
	var table, err = ParseTable("t", `CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)

	var id = table.ColumnByName("id")
	require.NotNil(t, id)
	require.True(t, id.Rowid)
}

func TestParseTable_compositePrimaryKeyIsNotRowidAlias(t *testing.T) {
	var table, err = ParseTable("t", `CREATE TABLE t (a INTEGER, b INTEGER, PRIMARY KEY (a, b))`)
	require.NoError(t, err)

	require.Len(t, table.PrimaryKey, 2)
	require.Nil(t, table.RowidColumn())
}

func TestParseTable_withoutRowid(t *testing.T) {
	var table, err = ParseTable("wordcount", `CREATE TABLE wordcount (word TEXT PRIMARY KEY, n INTEGER) WITHOUT ROWID`)
	require.NoError(t, err)

	require.True(t, table.WithoutRowid)
	require.Len(t, table.PrimaryKey, 1)
	require.Nil(t, table.RowidColumn(), "a WITHOUT ROWID table's primary key is never a rowid alias")
}

func TestParseTable_typeAffinityRules(t *testing.T) {
	var table, err = ParseTable("t", `CREATE TABLE t (
		a INT, b VARCHAR(255), c CLOB, d BLOB, e FLOAT, f DOUBLE, g NUMERIC, h, i BOOLEAN
	)`)
	require.NoError(t, err)

	var affinityOf = func(name string) Affinity { return table.ColumnByName(name).Affinity }
	require.Equal(t, INTEGER, affinityOf("a"))
	require.Equal(t, TEXT, affinityOf("b"))
	require.Equal(t, TEXT, affinityOf("c"))
	require.Equal(t, BLOB, affinityOf("d"))
	require.Equal(t, REAL, affinityOf("e"))
	require.Equal(t, REAL, affinityOf("f"))
	require.Equal(t, NUMERIC, affinityOf("g"))
	require.Equal(t, BLOB, affinityOf("h"), "a column with no declared type gets BLOB affinity")
	require.Equal(t, NUMERIC, affinityOf("i"))
}

func TestParseIndex_columnOrderAndDirection(t *testing.T) {
	var table, err = ParseTable("x", `CREATE TABLE x (b varchar, c int, a integer primary key)`)
	require.NoError(t, err)

	var idx *Index
	idx, err = ParseIndex("idx_b_c", table, `CREATE INDEX idx_b_c ON x (b desc, c asc)`)
	require.NoError(t, err)

	require.Len(t, idx.Columns, 2)
	require.Equal(t, "b", idx.Columns[0].Name)
	require.Equal(t, "c", idx.Columns[1].Name)
	require.Equal(t, []bool{true, false}, idx.Desc)
}

func TestParseIndex_implicitPrimaryKeyIndex(t *testing.T) {
	var table, err = ParseTable("wordcount", `CREATE TABLE wordcount (word TEXT PRIMARY KEY, n INTEGER) WITHOUT ROWID`)
	require.NoError(t, err)

	var idx *Index
	idx, err = ParseIndex("sqlite_autoindex_wordcount_1", table, "")
	require.NoError(t, err)

	require.Equal(t, table.PrimaryKey, idx.Columns)
	require.Equal(t, []bool{false}, idx.Desc)
}
