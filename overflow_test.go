package dotlite

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverflow_writeReadRoundTrip(t *testing.T) {
	var src, rerr = os.ReadFile("testdata/base.db")
	require.NoError(t, rerr)
	var path = filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, os.WriteFile(path, src, 0o644))

	var file, err = OpenFile(path)
	require.NoError(t, err)
	defer file.Close()

	var usable = file.PageSize() - int(file.Header.PageReserved)
	var data = make([]byte, usable*3+17) // spans several overflow pages
	for i := range data {
		data[i] = byte(i * 7 % 256)
	}

	var first int32
	first, err = writeOverflow(file.Pager, usable, data)
	require.NoError(t, err)
	require.NotZero(t, first)

	var sink bytes.Buffer
	var n int64
	n, err = io.Copy(&sink, newOverflowReader(file.Pager, first, usable, len(data)))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
	require.True(t, bytes.Equal(data, sink.Bytes()))
}

func TestOverflow_freeChainReturnsPagesToFreelist(t *testing.T) {
	var src, rerr = os.ReadFile("testdata/base.db")
	require.NoError(t, rerr)
	var path = filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, os.WriteFile(path, src, 0o644))

	var file, err = OpenFile(path)
	require.NoError(t, err)
	defer file.Close()

	var usable = file.PageSize() - int(file.Header.PageReserved)
	var data = make([]byte, usable*2)

	var first int32
	first, err = writeOverflow(file.Pager, usable, data)
	require.NoError(t, err)

	var before = file.NumPages()
	require.NoError(t, freeOverflowChain(file.Pager, first))

	// freeing returns pages to the list rather than shrinking the file, so
	// a subsequent allocation reuses one of them instead of growing it.
	var reused *Page
	reused, err = file.Pager.NewPage(NodeTableLeaf)
	require.NoError(t, err)
	require.Equal(t, before, file.NumPages())
	require.LessOrEqual(t, int(reused.ID), before)
}
