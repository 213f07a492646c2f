package dotlite

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestPager(t *testing.T, name string) *Pager {
	t.Helper()
	var f, err = os.OpenFile("testdata/"+name, os.O_RDWR, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	var size, serr = f.Seek(0, io.SeekEnd)
	require.NoError(t, serr)
	_, serr = f.Seek(0, io.SeekStart)
	require.NoError(t, serr)

	return newPager(f, 512, int(size)/512, false)
}

func TestPager_readPage(t *testing.T) {
	var pager = openTestPager(t, "base.db")

	var page, err = pager.ReadPage(1)
	require.NoError(t, err)
	require.NotNil(t, page)
	require.Equal(t, byte(NodeTableLeaf), page.Kind())

	page, err = pager.ReadPage(pager.NumPages() + 1)
	require.NoError(t, err)
	require.Nil(t, page, "a page number beyond the logical extent should report (nil, nil)")
}

func TestPager_newPageReusesFreedPage(t *testing.T) {
	var src, rerr = os.ReadFile("testdata/base.db")
	require.NoError(t, rerr)

	var path = filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, os.WriteFile(path, src, 0o644))

	var file, err = OpenFile(path)
	require.NoError(t, err)
	defer file.Close()

	var before = file.NumPages()

	var page *Page
	page, err = file.Pager.NewPage(NodeTableLeaf)
	require.NoError(t, err)
	require.Equal(t, before+1, file.NumPages())

	var freed = page.ID
	require.NoError(t, file.Pager.AddToFreelist(page))

	var reused *Page
	reused, err = file.Pager.NewPage(NodeIndexLeaf)
	require.NoError(t, err)
	require.Equal(t, freed, reused.ID, "a freed page should be reused rather than extending the file")
	require.Equal(t, before+1, file.NumPages())
}

func TestPage_writeAtMarksDirty(t *testing.T) {
	var pager = openTestPager(t, "base.db")

	var page, err = pager.ReadPage(2)
	require.NoError(t, err)
	require.False(t, page.dirty)

	page.WriteAt([]byte{0x01, 0x02}, 10)
	require.True(t, page.dirty)
	require.Equal(t, byte(0x01), page.buf[10])
	require.Equal(t, byte(0x02), page.buf[11])
}
