package dotlite

import (
	"bytes"
	"encoding/binary"
	"io"
)

// B-tree page type tags; see https://www.sqlite.org/fileformat.html#b_tree_pages
const (
	NodeIndexInterior = 0x02
	NodeTableInterior = 0x05
	NodeIndexLeaf     = 0x0a
	NodeTableLeaf     = 0x0d
)

func isInterior(kind byte) bool { return kind == NodeTableInterior || kind == NodeIndexInterior }
func isTable(kind byte) bool    { return kind == NodeTableInterior || kind == NodeTableLeaf }

// node is a single B-tree page, holding both the parsed header/cell-pointer
// state and a reference to the page backing it. Rather than a class per
// node kind, dotlite dispatches on node.kind at each call site — the four
// page layouts differ only in which fields a cell carries, not in the
// surrounding page mechanics.
type node struct {
	file *File
	page *Page

	kind        byte
	freeBlock   int
	numCells    int
	contentOff  int // offset of first byte of cell-content area; stored-as-0 means 65536, capped at the usable size
	fragFree    int
	right       int32 // right-most child pointer; interior nodes only
	cellPtrs    []int
}

func (n *node) headerOff() int { return n.page.headerOffset() }

func (n *node) headerLen() int {
	if isInterior(n.kind) {
		return 12
	}
	return 8
}

// usable returns the usable page size (page size minus reserved tail bytes).
func (n *node) usable() int {
	return n.file.PageSize() - int(n.file.Header.PageReserved)
}

// parseNode parses a B-tree node from page.
func parseNode(file *File, page *Page) (*node, error) {
	page.rewind()

	var kind, err = page.ReadByte()
	if err != nil {
		return nil, err
	}

	var n = &node{file: file, page: page, kind: kind}

	var u16 = func() (int, error) {
		var b [2]byte
		if _, err := io.ReadFull(page, b[:]); err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint16(b[:])), nil
	}

	if n.freeBlock, err = u16(); err != nil {
		return nil, err
	}
	var numCells int
	if numCells, err = u16(); err != nil {
		return nil, err
	}
	n.numCells = numCells
	if n.contentOff, err = u16(); err != nil {
		return nil, err
	}
	if n.contentOff == 0 {
		n.contentOff = 65536
	}
	if n.contentOff > n.usable() { // a fresh page's zeroed header: empty content area
		n.contentOff = n.usable()
	}

	var frag byte
	if frag, err = page.ReadByte(); err != nil {
		return nil, err
	}
	n.fragFree = int(frag)

	if isInterior(kind) {
		var b [4]byte
		if _, err = io.ReadFull(page, b[:]); err != nil {
			return nil, err
		}
		n.right = int32(binary.BigEndian.Uint32(b[:]))
	}

	n.cellPtrs = make([]int, numCells)
	for i := 0; i < numCells; i++ {
		var off, perr = u16()
		if perr != nil {
			return nil, perr
		}
		n.cellPtrs[i] = off
	}

	return n, nil
}

// readNode reads and parses the node stored at page pgno.
func readNode(file *File, pgno int) (*node, error) {
	var page, err = file.Pager.ReadPage(pgno)
	if err != nil || page == nil {
		return nil, err
	}
	return parseNode(file, page)
}

// writeHeader serializes the node's header and cell-pointer array back into
// the backing page buffer.
func (n *node) writeHeader() {
	var off = n.headerOff()
	var buf = n.page.buf

	buf[off] = n.kind
	binary.BigEndian.PutUint16(buf[off+1:], uint16(n.freeBlock))
	binary.BigEndian.PutUint16(buf[off+3:], uint16(n.numCells))
	if n.contentOff >= 65536 {
		binary.BigEndian.PutUint16(buf[off+5:], 0)
	} else {
		binary.BigEndian.PutUint16(buf[off+5:], uint16(n.contentOff))
	}
	buf[off+7] = byte(n.fragFree)

	var ptrStart = off + 8
	if isInterior(n.kind) {
		binary.BigEndian.PutUint32(buf[off+8:], uint32(n.right))
		ptrStart = off + 12
	}

	for i, p := range n.cellPtrs {
		binary.BigEndian.PutUint16(buf[ptrStart+i*2:], uint16(p))
	}

	n.page.markDirty()
}

// cellReader returns an io.ByteReader/io.Reader positioned at the start of
// cell i.
func (n *node) cellReader(i int) (*Page, error) {
	var off = n.cellPtrs[i]
	if _, err := n.page.Seek(int64(off), io.SeekStart); err != nil {
		return nil, err
	}
	return n.page, nil
}

// cell is the decoded, in-memory view of a single B-tree cell, with fields
// populated according to the owning node's kind.
type cell struct {
	LeftChild int32 // table/index interior
	Rowid     int64 // table leaf/interior
	Payload   []byte

	// OverflowPage is the first page of this cell's overflow chain, or 0
	// if the payload fit entirely inline. Callers that discard a cell
	// (delete, or move during a split) must free this chain themselves.
	OverflowPage int32
}

// LoadCell decodes cell i of the node, resolving any overflow chain.
func (n *node) LoadCell(i int) (*cell, error) {
	var page, err = n.cellReader(i)
	if err != nil {
		return nil, err
	}

	var c = &cell{}

	switch n.kind {
	case NodeTableInterior:
		var b [4]byte
		if _, err = io.ReadFull(page, b[:]); err != nil {
			return nil, err
		}
		c.LeftChild = int32(binary.BigEndian.Uint32(b[:]))
		if c.Rowid, err = Varint(page); err != nil {
			return nil, wrapf(err, "decode rowid: page=%d cell=%d", n.page.ID, i)
		}
		return c, nil

	case NodeTableLeaf:
		var size int64
		if size, err = Varint(page); err != nil {
			return nil, wrapf(err, "decode payload size: page=%d cell=%d", n.page.ID, i)
		}
		if c.Rowid, err = Varint(page); err != nil {
			return nil, wrapf(err, "decode rowid: page=%d cell=%d", n.page.ID, i)
		}
		if c.Payload, err = n.readPayload(page, int(size), &c.OverflowPage); err != nil {
			return nil, err
		}
		return c, nil

	case NodeIndexInterior:
		var b [4]byte
		if _, err = io.ReadFull(page, b[:]); err != nil {
			return nil, err
		}
		c.LeftChild = int32(binary.BigEndian.Uint32(b[:]))
		var size int64
		if size, err = Varint(page); err != nil {
			return nil, wrapf(err, "decode payload size: page=%d cell=%d", n.page.ID, i)
		}
		if c.Payload, err = n.readPayload(page, int(size), &c.OverflowPage); err != nil {
			return nil, err
		}
		return c, nil

	case NodeIndexLeaf:
		var size int64
		if size, err = Varint(page); err != nil {
			return nil, wrapf(err, "decode payload size: page=%d cell=%d", n.page.ID, i)
		}
		if c.Payload, err = n.readPayload(page, int(size), &c.OverflowPage); err != nil {
			return nil, err
		}
		return c, nil
	}

	return nil, wrapf(ErrMalformedPage, "unknown node kind 0x%02x", n.kind)
}

// readPayload reads the local portion of a payload of logical size P from
// page, resolving the overflow chain (if any) that follows it. The first
// overflow page, if any, is recorded into *overflowOut.
func (n *node) readPayload(page *Page, size int, overflowOut *int32) ([]byte, error) {
	var total, local, overflowSz = n.computeBufferSize(size)

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, page, int64(local)); err != nil {
		return nil, err
	}

	if overflowSz > 0 {
		var b [4]byte
		if _, err := io.ReadFull(page, b[:]); err != nil {
			return nil, err
		}
		var overflowPage = int32(binary.BigEndian.Uint32(b[:]))
		if _, err := io.Copy(&buf, newOverflowReader(n.file.Pager, overflowPage, n.usable(), overflowSz)); err != nil {
			return nil, err
		}
		*overflowOut = overflowPage
	}

	if buf.Len() != total {
		return nil, wrapf(ErrMalformedPage, "read %d payload bytes instead of %d", buf.Len(), total)
	}
	return buf.Bytes(), nil
}

// computeBufferSize splits a logical payload of size P into the amount
// stored locally in the cell versus spilled to an overflow chain, per
// https://www.sqlite.org/fileformat.html#payload_overflow.
func (n *node) computeBufferSize(P int) (total, local, overflowSz int) {
	var U = n.usable()
	var X = U - 35
	if !isTable(n.kind) {
		X = ((U-12)*64/255) - 2
	}

	total, local = P, P
	if P > X {
		var M = ((U - 12) * 32 / 255) - 23
		var K = M + ((P - M) % (U - 4))

		local = K
		if K > X {
			local = M
		}
		overflowSz = P - local
	}

	return
}

// maxLocal mirrors computeBufferSize's X threshold, the largest payload a
// cell can hold entirely inline.
func (n *node) maxLocal() int {
	var U = n.usable()
	if isTable(n.kind) {
		return U - 35
	}
	return ((U-12)*64/255) - 2
}

// minLocal is the M threshold used by the overflow split formula.
func (n *node) minLocal() int {
	var U = n.usable()
	return ((U-12)*32/255) - 23
}
