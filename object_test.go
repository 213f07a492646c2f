package dotlite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObject_tableForEach(t *testing.T) {
	var file = openTestFile(t, "base.db")

	var obj, err = file.Object("x")
	require.NoError(t, err)
	require.Equal(t, "table", obj.Type())

	var rows int
	err = obj.ForEach(func(rec *Record) error {
		rows++
		require.Equal(t, 9, rec.NumValues())
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 4, rows)
}

func TestObject_indexForEach(t *testing.T) {
	var file = openTestFile(t, "base.db")

	var obj, err = file.Object("idx_b_c")
	require.NoError(t, err)
	require.Equal(t, "index", obj.Type())
	require.Equal(t, "x", obj.TableName())

	var rows int
	err = obj.ForEach(func(rec *Record) error {
		rows++
		// two indexed columns (b, c) plus the trailing rowid
		require.Equal(t, 3, rec.NumValues())
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 4, rows)
}

func TestObject_withoutRowidTable(t *testing.T) {
	var file = openTestFile(t, "without-rowid.db")

	var obj, err = file.Object("wordcount")
	require.NoError(t, err)

	var rows int
	err = obj.ForEach(func(rec *Record) error {
		rows++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 5, rows)
}
