package dotlite

import (
	"bytes"
	"io"

	"go.riyazali.net/dotlite/internal/dlog"
)

// Page is a single fixed-size page of the database file, held in memory
// with a mutable buffer. Page 1 additionally carries the 100-byte file
// header before its node header.
type Page struct {
	*bytes.Reader

	ID    int    // 1-based page number
	buf   []byte // mutable backing buffer, length == pager.pageSize
	kind  byte   // page-type tag; 0 for a free/raw page with no B-tree header
	dirty bool
	pager *Pager
}

// headerOffset returns where this page's node header starts: 100 bytes in
// for page 1 (past the file header), 0 otherwise.
func (p *Page) headerOffset() int {
	if p.ID == 1 {
		return 100
	}
	return 0
}

// rewind resets the page's read cursor to immediately after any file
// header, mirroring how a freshly-parsed node begins reading.
func (p *Page) rewind() { _, _ = p.Seek(int64(p.headerOffset()), io.SeekStart) }

// WriteAt writes data into the page's buffer at the given offset and marks
// the page dirty.
func (p *Page) WriteAt(data []byte, offset int) {
	copy(p.buf[offset:], data)
	p.markDirty()
}

// Kind returns the page's type tag: one of the Node* b-tree kinds, or 0 for
// a free or overflow page.
func (p *Page) Kind() byte { return p.kind }

func (p *Page) markDirty() {
	if !p.dirty {
		p.dirty = true
		p.pager.dirty[p.ID] = p
	}
}

// zero clears the page body from the given offset to the end of the page.
func (p *Page) zero(from int) {
	for i := from; i < len(p.buf); i++ {
		p.buf[i] = 0
	}
	p.markDirty()
}

// ReadWriteSeekCloser is the file handle dotlite operates on. *os.File
// satisfies it directly.
type ReadWriteSeekCloser interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
}

// Pager owns the file handle, the page cache, and the free-list allocator.
type Pager struct {
	file ReadWriteSeekCloser

	pageSize int
	maxPgno  int
	readOnly bool

	cache map[int]*Page
	dirty map[int]*Page
}

func newPager(file ReadWriteSeekCloser, pageSize, pages int, readOnly bool) *Pager {
	return &Pager{
		file:     file,
		pageSize: pageSize,
		maxPgno:  pages,
		readOnly: readOnly,
		cache:    make(map[int]*Page),
		dirty:    make(map[int]*Page),
	}
}

// NumPages returns the current logical page count.
func (pager *Pager) NumPages() int { return pager.maxPgno }

// ReadPage fetches a page by number, serving it from cache when possible.
// A page number beyond the current logical extent returns (nil, nil).
func (pager *Pager) ReadPage(pgno int) (*Page, error) {
	if pgno < 1 || pgno > pager.maxPgno {
		return nil, nil
	}

	if page, ok := pager.cache[pgno]; ok {
		return page, nil
	}

	var buf = make([]byte, pager.pageSize)
	if _, err := pager.file.Seek(int64(pgno-1)*int64(pager.pageSize), io.SeekStart); err != nil {
		return nil, wrapf(err, "seek to page %d", pgno)
	}
	if _, err := io.ReadFull(pager.file, buf); err != nil {
		return nil, wrapf(err, "read page %d", pgno)
	}

	var page = &Page{Reader: bytes.NewReader(buf), ID: pgno, buf: buf, pager: pager}
	var headerOff = page.headerOffset()
	if buf[headerOff] != 0 {
		page.kind = buf[headerOff]
	}
	page.rewind()

	pager.cache[pgno] = page
	return page, nil
}

// newZeroedPage allocates a brand-new page at the end of the logical file,
// without consulting the free list.
func (pager *Pager) newZeroedPage() *Page {
	pager.maxPgno++
	var buf = make([]byte, pager.pageSize)
	var page = &Page{Reader: bytes.NewReader(buf), ID: pager.maxPgno, buf: buf, pager: pager}
	page.markDirty()
	pager.cache[page.ID] = page
	return page
}

// NewPage returns a page ready to hold a node of the given type: reused
// from the free list when one is available, or a fresh page extending the
// file otherwise. The page body is zeroed and its type tag (for B-tree page
// types) is set.
func (pager *Pager) NewPage(kind byte) (*Page, error) {
	var page *Page
	var trunk = pager.firstFreelistTrunk()
	if trunk != nil {
		var err error
		if page, err = trunk.popFreePage(); err != nil {
			return nil, err
		}
	} else {
		page = pager.newZeroedPage()
	}

	page.zero(0)
	page.kind = kind
	if isBtreeKind(kind) {
		page.buf[page.headerOffset()] = kind
	}
	page.rewind()
	dlog.Debug("pager: allocated page", "pgno", page.ID, "kind", kind)
	return page, nil
}

func isBtreeKind(kind byte) bool {
	switch kind {
	case NodeTableLeaf, NodeTableInterior, NodeIndexLeaf, NodeIndexInterior:
		return true
	}
	return false
}

// AddToFreelist returns page to the free list, zeroing its body first.
func (pager *Pager) AddToFreelist(page *Page) error {
	page.zero(0)
	page.kind = 0

	var trunk = pager.firstFreelistTrunk()
	if trunk == nil {
		if err := pager.setFreelistTrunk(page.ID); err != nil {
			return err
		}
		return nil
	}
	return trunk.appendFreePage(page)
}

// Flush writes every dirty page back to the file and clears the dirty set.
func (pager *Pager) Flush() error {
	if pager.readOnly {
		return wrapf(io.ErrShortWrite, "dotlite: cannot commit a read-only handle")
	}

	for pgno, page := range pager.dirty {
		if _, err := pager.file.Seek(int64(pgno-1)*int64(pager.pageSize), io.SeekStart); err != nil {
			return wrapf(err, "seek to page %d", pgno)
		}
		if _, err := pager.file.Write(page.buf); err != nil {
			return wrapf(err, "write page %d", pgno)
		}
		page.dirty = false
	}
	pager.dirty = make(map[int]*Page)
	dlog.Info("pager: flushed dirty pages")
	return nil
}

// Rollback discards the cache and re-derives the logical page count from
// the file's current length.
func (pager *Pager) Rollback() error {
	pager.cache = make(map[int]*Page)
	pager.dirty = make(map[int]*Page)

	var size, err = pager.file.Seek(0, io.SeekEnd)
	if err != nil {
		return wrapf(err, "seek to end")
	}
	pager.maxPgno = int(size) / pager.pageSize
	dlog.Info("pager: rolled back", "pages", pager.maxPgno)
	return nil
}

// --- file header accessors; page 1's buffer backs these directly ---

func (pager *Pager) page1() (*Page, error) { return pager.ReadPage(1) }

func (pager *Pager) readHeader32(offset int) (int32, error) {
	var page, err = pager.page1()
	if err != nil {
		return 0, err
	}
	return int32(be32(page.buf[offset : offset+4])), nil
}

func (pager *Pager) writeHeader32(offset int, v int32) error {
	var page, err = pager.page1()
	if err != nil {
		return err
	}
	page.WriteAt(putBe32(v), offset)
	return nil
}

func (pager *Pager) firstFreelistTrunkPgno() (int32, error) { return pager.readHeader32(32) }

func (pager *Pager) setFreelistTrunk(pgno int) error { return pager.writeHeader32(32, int32(pgno)) }

func (pager *Pager) firstFreelistTrunk() *freePageNode {
	var pgno, err = pager.firstFreelistTrunkPgno()
	if err != nil || pgno == 0 {
		return nil
	}
	var page, perr = pager.ReadPage(int(pgno))
	if perr != nil || page == nil {
		return nil
	}
	return &freePageNode{page: page, pager: pager}
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func putBe32(v int32) []byte {
	var u = uint32(v)
	return []byte{byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)}
}
