package dotlite

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestFile(t *testing.T, name string, opts ...OpenOption) *File {
	t.Helper()
	var file, err = OpenFile("testdata/"+name, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })
	return file
}

func TestOpen(t *testing.T) {
	var file = openTestFile(t, "base.db")

	require.Equal(t, 512, file.PageSize())
	require.Equal(t, 3040001, file.Version())
	require.Equal(t, UTF8, file.Encoding())
	require.Equal(t, 5, file.NumPages())
}

func TestOpen_invalidMagic(t *testing.T) {
	var _, err = OpenFile("testdata/not-a-database.txt")
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestOpen_sizeIsComputedWhenHeaderFieldIsZero(t *testing.T) {
	var raw, err = os.ReadFile("testdata/base.db")
	require.NoError(t, err)

	var tmp = raw[:]
	// zero out the in-header page count so Open must derive it from the
	// file's length instead.
	for i := 28; i < 32; i++ {
		tmp[i] = 0
	}
	var path = t.TempDir() + "/zeroed-size.db"
	require.NoError(t, os.WriteFile(path, tmp, 0o644))

	var file *File
	file, err = OpenFile(path)
	require.NoError(t, err)
	defer file.Close()

	require.Equal(t, 5, file.NumPages())
}

func TestOpen_badFileSizeWithTrailingByte(t *testing.T) {
	var raw, err = os.ReadFile("testdata/base.db")
	require.NoError(t, err)

	var tmp = raw[:]
	for i := 28; i < 32; i++ {
		tmp[i] = 0 // force Open to recompute size from file length
	}
	tmp = append(tmp, 0x00) // one stray byte: file length is no longer a whole multiple of the page size

	var path = t.TempDir() + "/trailing-byte.db"
	require.NoError(t, os.WriteFile(path, tmp, 0o644))

	_, err = OpenFile(path)
	require.ErrorIs(t, err, ErrBadFileSize)
}

func TestSchema(t *testing.T) {
	var file = openTestFile(t, "base.db")

	var objects, err = file.Schema()
	require.NoError(t, err)
	require.Len(t, objects, 2)
}

func TestSchema_findTable(t *testing.T) {
	var file = openTestFile(t, "base.db")

	var obj, err = file.Object("x")
	require.NoError(t, err)
	require.Equal(t, "table", obj.Type())
	require.Equal(t, "x", obj.TableName())

	_, err = file.Object("does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestForEach_overflowDatabase(t *testing.T) {
	var file = openTestFile(t, "overflow.db")

	var rows int
	var err = file.ForEach("x", func(rec *Record) error {
		rows++
		var blob, berr = rec.AsBlob(5) // w column, after b,c,d,e
		if berr != nil {
			return berr
		}
		require.Len(t, blob, 1000)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, rows)
}

func TestReadOnly_commitFails(t *testing.T) {
	var file = openTestFile(t, "readonly.db", ReadOnly())
	require.Error(t, file.Commit())
}

func TestRollback_discardsPendingPages(t *testing.T) {
	var file = openTestFile(t, "base.db")

	var before = file.NumPages()
	var _, err = file.Pager.NewPage(NodeTableLeaf)
	require.NoError(t, err)
	require.Greater(t, file.NumPages(), before)

	require.NoError(t, file.Rollback())
	require.Equal(t, before, file.NumPages())
}
