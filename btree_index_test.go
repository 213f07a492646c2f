package dotlite

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newEmptyIndexTree(t *testing.T, desc []bool) (*File, *Tree) {
	t.Helper()

	var src, rerr = os.ReadFile("testdata/base.db")
	require.NoError(t, rerr)
	var path = filepath.Join(t.TempDir(), "scratch.db")
	require.NoError(t, os.WriteFile(path, src, 0o644))

	var file, err = OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })

	var page *Page
	page, err = file.Pager.NewPage(NodeIndexLeaf)
	require.NoError(t, err)

	return file, NewIndexTree(file, page.ID, desc)
}

func indexKeyPayload(t *testing.T, key ...any) []byte {
	t.Helper()
	var payload, err = EncodeRecord(key)
	require.NoError(t, err)
	return payload
}

func TestTree_indexInsertAndFindEqualAscending(t *testing.T) {
	var _, tree = newEmptyIndexTree(t, []bool{false})

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, tree.InsertKey(indexKeyPayload(t, fmt.Sprintf("k%d", i), i)))
	}

	var matches []any
	require.NoError(t, tree.FindEqual([]any{"k3"}, func(key []any) error {
		matches = append(matches, key[len(key)-1])
		return nil
	}))
	require.Equal(t, []any{int64(3)}, matches)
}

func TestTree_indexDescendingColumnOrder(t *testing.T) {
	var _, tree = newEmptyIndexTree(t, []bool{true})

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, tree.InsertKey(indexKeyPayload(t, fmt.Sprintf("k%d", i), i)))
	}

	var order []string
	require.NoError(t, tree.Walk(func(c *cell) error {
		var key, err = DecodeRecord(c.Payload)
		if err != nil {
			return err
		}
		order = append(order, key[0].(string))
		return nil
	}))
	require.Equal(t, []string{"k5", "k4", "k3", "k2", "k1"}, order, "a DESC index column must store entries in reverse order")
}

func TestTree_indexDeleteKey(t *testing.T) {
	var _, tree = newEmptyIndexTree(t, []bool{false})

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, tree.InsertKey(indexKeyPayload(t, fmt.Sprintf("k%d", i), i)))
	}

	require.NoError(t, tree.DeleteKey(indexKeyPayload(t, "k3", int64(3))))

	var matches []any
	require.NoError(t, tree.FindEqual([]any{"k3"}, func(key []any) error {
		matches = append(matches, key)
		return nil
	}))
	require.Empty(t, matches)

	require.ErrorIs(t, tree.DeleteKey(indexKeyPayload(t, "k3", int64(3))), ErrNotFound)
}

func TestTree_indexSplitPreservesOrderAndLookup(t *testing.T) {
	var _, tree = newEmptyIndexTree(t, []bool{false, false})

	var key = "aaaaaaaaaaaaaaaaaaaaaaaaaa" // 26 bytes, identical across entries
	for i := int64(1); i <= 16; i++ {
		require.NoError(t, tree.InsertKey(indexKeyPayload(t, key, i, i)))
	}

	var count int
	var lastRowid int64 = -1
	require.NoError(t, tree.Walk(func(c *cell) error {
		count++
		var decoded, err = DecodeRecord(c.Payload)
		if err != nil {
			return err
		}
		var rowid = decoded[len(decoded)-1].(int64)
		require.Greater(t, rowid, lastRowid)
		lastRowid = rowid
		return nil
	}))
	require.Equal(t, 16, count)

	var matches []any
	require.NoError(t, tree.FindEqual([]any{key}, func(k []any) error {
		matches = append(matches, k[len(k)-1])
		return nil
	}))
	require.Len(t, matches, 16)
}

// TestIndexLeafSplit_matchesReferenceShape opens the reference SQLite
// library's own split of a 16-entry index leaf and asserts the exact
// leaf shapes it produced: an 8-cell left leaf (rowids 1-8) and a 7-cell
// right leaf (rowids 10-16), with the 9th entry promoted into the parent
// as the separator and absent from both leaves. This is the median-split
// ground truth that caught the off-by-one in splitIndexLeaf/splitIndexInterior.
func TestIndexLeafSplit_matchesReferenceShape(t *testing.T) {
	var file, err = OpenFileReadOnly("testdata/split-index.db")
	require.NoError(t, err)
	defer file.Close()

	var left, lerr = readNode(file, 7)
	require.NoError(t, lerr)
	require.Equal(t, byte(NodeIndexLeaf), left.kind)
	require.Equal(t, 8, left.numCells)

	for i := 0; i < left.numCells; i++ {
		var c, cerr = left.LoadCell(i)
		require.NoError(t, cerr)
		var key, derr = DecodeRecord(c.Payload)
		require.NoError(t, derr)
		require.Equal(t, int64(i), key[1], "column c")
		require.Equal(t, int64(i+1), key[2], "rowid")
	}

	var right, rerr = readNode(file, 8)
	require.NoError(t, rerr)
	require.Equal(t, byte(NodeIndexLeaf), right.kind)
	require.Equal(t, 7, right.numCells)

	for i := 0; i < right.numCells; i++ {
		var c, cerr = right.LoadCell(i)
		require.NoError(t, cerr)
		var key, derr = DecodeRecord(c.Payload)
		require.NoError(t, derr)
		require.Equal(t, int64(i+9), key[1], "column c")
		require.Equal(t, int64(i+10), key[2], "rowid")
	}
}

func TestTree_getByKeyForWithoutRowidStyleTree(t *testing.T) {
	var _, tree = newEmptyIndexTree(t, nil)

	require.NoError(t, tree.InsertKey(indexKeyPayload(t, "apple", int64(1))))
	require.NoError(t, tree.InsertKey(indexKeyPayload(t, "banana", int64(2))))

	var payload, found, err = tree.GetByKey([]any{"apple"})
	require.NoError(t, err)
	require.True(t, found)

	var decoded []any
	decoded, err = DecodeRecord(payload)
	require.NoError(t, err)
	require.Equal(t, "apple", decoded[0])

	_, found, err = tree.GetByKey([]any{"cherry"})
	require.NoError(t, err)
	require.False(t, found)
}
