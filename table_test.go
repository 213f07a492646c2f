package dotlite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.riyazali.net/dotlite/schema"
)

func TestTable_schemaAndRows(t *testing.T) {
	var file = openTestFile(t, "base.db")

	var obj, err = file.Object("x")
	require.NoError(t, err)

	var table *Table
	table, err = newTable(obj)
	require.NoError(t, err)

	require.Equal(t, "x", table.Name())
	require.False(t, table.WithoutRowid())
	require.Len(t, table.Columns(), 9)

	var a = func() *schema.Column {
		for _, c := range table.Columns() {
			if c.Name == "a" {
				return c
			}
		}
		return nil
	}()
	require.NotNil(t, a)
	require.True(t, a.Rowid, "single-column INTEGER PRIMARY KEY should alias the rowid")

	var rows int
	err = table.ForEach(func(rowid int64, values []any) error {
		rows++
		require.Equal(t, len(table.Columns()), len(values))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 4, rows)
}

func TestTable_withoutRowid(t *testing.T) {
	var file = openTestFile(t, "without-rowid.db")

	var obj, err = file.Object("wordcount")
	require.NoError(t, err)

	var table *Table
	table, err = newTable(obj)
	require.NoError(t, err)

	require.True(t, table.WithoutRowid())

	var rows int
	err = table.ForEach(func(rowid int64, values []any) error {
		rows++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 5, rows)
}
