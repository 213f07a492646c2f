package dotlite

// freePageNode is a view over a free-list trunk page: a next-trunk pointer
// followed by a child count and that many leaf page numbers, each a plain
// 4-byte big-endian pgno with no B-tree node header of its own.
//
//	offset 0: next trunk pgno (0 if none)
//	offset 4: number of leaf page numbers on this trunk
//	offset 8: leaf page numbers, 4 bytes each
type freePageNode struct {
	page  *Page
	pager *Pager
}

func (n *freePageNode) nextTrunk() int   { return int(be32(n.page.buf[0:4])) }
func (n *freePageNode) childCount() int  { return int(be32(n.page.buf[4:8])) }
func (n *freePageNode) capacity() int    { return (n.pager.pageSize - 8) / 4 }
func (n *freePageNode) full() bool       { return 8+n.childCount()*4 >= n.pager.pageSize }
func (n *freePageNode) setNext(pgno int) { n.page.WriteAt(putBe32(int32(pgno)), 0) }
func (n *freePageNode) setCount(c int)   { n.page.WriteAt(putBe32(int32(c)), 4) }

func (n *freePageNode) childAt(i int) int {
	var off = 8 + i*4
	return int(be32(n.page.buf[off : off+4]))
}

func (n *freePageNode) setChildAt(i, pgno int) {
	n.page.WriteAt(putBe32(int32(pgno)), 8+i*4)
}

// appendFreePage adds page to this trunk's child list, or — if the trunk is
// already full — promotes page itself to a new trunk linked ahead of this
// one.
func (n *freePageNode) appendFreePage(page *Page) error {
	if n.full() {
		page.zero(0)
		page.WriteAt(putBe32(int32(n.page.ID)), 0)
		page.WriteAt(putBe32(0), 4)
		return n.pager.setFreelistTrunk(page.ID)
	}

	var count = n.childCount()
	n.setChildAt(count, page.ID)
	n.setCount(count + 1)
	return nil
}

// popFreePage removes and returns a single page from the free list, walking
// past an emptied trunk page (which itself becomes the returned page) when
// this trunk has no leaf children left.
func (n *freePageNode) popFreePage() (*Page, error) {
	var count = n.childCount()
	if count == 0 {
		var page = n.page
		if err := n.pager.setFreelistTrunk(n.nextTrunk()); err != nil {
			return nil, err
		}
		return page, nil
	}

	var pgno = n.childAt(count - 1)
	n.setCount(count - 1)

	return n.pager.ReadPage(pgno)
}
