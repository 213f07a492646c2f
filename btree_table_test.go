package dotlite

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newEmptyTableTree opens a writable scratch database (copied from
// testdata/base.db purely to get a valid header and pager) and allocates a
// fresh, empty table-leaf page to root a new Tree at — independent of
// base.db's own schema tree and rows.
func newEmptyTableTree(t *testing.T) (*File, *Tree) {
	t.Helper()

	var src, rerr = os.ReadFile("testdata/base.db")
	require.NoError(t, rerr)
	var path = filepath.Join(t.TempDir(), "scratch.db")
	require.NoError(t, os.WriteFile(path, src, 0o644))

	var file, err = OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })

	var page *Page
	page, err = file.Pager.NewPage(NodeTableLeaf)
	require.NoError(t, err)

	return file, NewTree(file, page.ID)
}

// TestTableLeafSplit_matchesReferenceShape opens a reference SQLite file
// built by 999 sequential inserts and checks its right-most leaf against
// the reference library's own append-biased split shape: a 3-cell leaf
// holding only the last three rowids, never a balanced half. A midpoint
// split would leave hundreds of rows in that leaf instead.
func TestTableLeafSplit_matchesReferenceShape(t *testing.T) {
	var file, err = OpenFileReadOnly("testdata/large.db")
	require.NoError(t, err)
	defer file.Close()

	var leaf, lerr = readNode(file, 291)
	require.NoError(t, lerr)
	require.Equal(t, byte(NodeTableLeaf), leaf.kind)
	require.Equal(t, 3, leaf.numCells)

	for i := 0; i < leaf.numCells; i++ {
		var c, cerr = leaf.LoadCell(i)
		require.NoError(t, cerr)
		require.Equal(t, int64(997+i), c.Rowid)
	}
}

func TestTree_insertAndGetByRowid(t *testing.T) {
	var _, tree = newEmptyTableTree(t)

	require.NoError(t, tree.InsertByRowid(1, []byte("one")))
	require.NoError(t, tree.InsertByRowid(2, []byte("two")))

	var c, found, err = tree.GetByRowid(1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("one"), c.Payload)

	_, found, err = tree.GetByRowid(3)
	require.NoError(t, err)
	require.False(t, found)
}

func TestTree_insertDuplicateRowidFails(t *testing.T) {
	var _, tree = newEmptyTableTree(t)

	require.NoError(t, tree.InsertByRowid(1, []byte("one")))
	require.ErrorIs(t, tree.InsertByRowid(1, []byte("again")), ErrDuplicate)
}

func TestTree_insertOutOfOrderStaysSorted(t *testing.T) {
	var _, tree = newEmptyTableTree(t)

	var order = []int64{5, 1, 3, 2, 4}
	for _, rowid := range order {
		require.NoError(t, tree.InsertByRowid(rowid, []byte(fmt.Sprintf("row-%d", rowid))))
	}

	var seen []int64
	require.NoError(t, tree.Walk(func(c *cell) error {
		seen = append(seen, c.Rowid)
		return nil
	}))
	require.Equal(t, []int64{1, 2, 3, 4, 5}, seen)
}

func TestTree_insertForcesLeafSplit(t *testing.T) {
	var _, tree = newEmptyTableTree(t)

	// base.db's page size is 512 bytes; a few hundred-byte payloads will
	// not fit in a single leaf and force at least one split/root-promote.
	var payload = make([]byte, 120)
	for i := range payload {
		payload[i] = byte(i)
	}
	for rowid := int64(1); rowid <= 30; rowid++ {
		require.NoError(t, tree.InsertByRowid(rowid, payload))
	}

	var count int
	var lastRowid int64
	require.NoError(t, tree.Walk(func(c *cell) error {
		count++
		require.Greater(t, c.Rowid, lastRowid, "rows must stay sorted across a split")
		lastRowid = c.Rowid
		require.Equal(t, payload, c.Payload)
		return nil
	}))
	require.Equal(t, 30, count)

	for rowid := int64(1); rowid <= 30; rowid++ {
		var _, found, err = tree.GetByRowid(rowid)
		require.NoError(t, err)
		require.True(t, found, "rowid %d should still be reachable after the split", rowid)
	}
}

func TestTree_deleteThenReinsertRoundTrips(t *testing.T) {
	var _, tree = newEmptyTableTree(t)

	for rowid := int64(1); rowid <= 10; rowid++ {
		require.NoError(t, tree.InsertByRowid(rowid, []byte(fmt.Sprintf("v%d", rowid))))
	}

	require.NoError(t, tree.DeleteByRowid(5))
	var _, found, err = tree.GetByRowid(5)
	require.NoError(t, err)
	require.False(t, found)

	require.ErrorIs(t, tree.DeleteByRowid(5), ErrNotFound)

	require.NoError(t, tree.InsertByRowid(5, []byte("v5-again")))
	var c *cell
	c, found, err = tree.GetByRowid(5)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v5-again"), c.Payload)

	var count int
	require.NoError(t, tree.Walk(func(*cell) error { count++; return nil }))
	require.Equal(t, 10, count)
}

func TestTree_updateByRowidPreservesRowidChangesPayload(t *testing.T) {
	var _, tree = newEmptyTableTree(t)

	require.NoError(t, tree.InsertByRowid(1, []byte("old")))
	require.NoError(t, tree.UpdateByRowid(1, []byte("new, and quite a bit longer than the original payload was")))

	var c, found, err = tree.GetByRowid(1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "new, and quite a bit longer than the original payload was", string(c.Payload))
}

func TestTree_nextRowid(t *testing.T) {
	var _, tree = newEmptyTableTree(t)

	var next, err = tree.nextRowid()
	require.NoError(t, err)
	require.Equal(t, int64(1), next)

	require.NoError(t, tree.InsertByRowid(1, []byte("a")))
	require.NoError(t, tree.InsertByRowid(7, []byte("b")))

	next, err = tree.nextRowid()
	require.NoError(t, err)
	require.Equal(t, int64(8), next)
}

func TestTree_overflowPayloadRoundTrips(t *testing.T) {
	var file, tree = newEmptyTableTree(t)

	var usable = file.PageSize() - int(file.Header.PageReserved)
	var big = make([]byte, usable*2+50)
	for i := range big {
		big[i] = byte(i % 251)
	}

	require.NoError(t, tree.InsertByRowid(1, big))

	var c, found, err = tree.GetByRowid(1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, big, c.Payload)
	require.NotZero(t, c.OverflowPage)
}
