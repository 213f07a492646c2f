package dotlite

import (
	"bytes"
	"encoding/binary"
)

// errNeedsSplit signals that a node has no room for the cell being
// inserted; the caller is expected to split the node and retry.
var errNeedsSplit = wrapf(ErrMalformedPage, "node has no room for cell")

// newEmptyNode wraps a freshly allocated page (already zeroed and tagged by
// Pager.NewPage) as a node with no cells.
func newEmptyNode(file *File, page *Page, kind byte) *node {
	var n = &node{file: file, page: page, kind: kind}
	n.contentOff = n.usable()
	return n
}

// resetNodeContent clears n's cell-content area and rebuilds it from
// scratch using the raw cell bytes fill hands to put, in order. It is used
// whenever a node's whole cell set is being rewritten at once: splits,
// merges, and sweep all go through it.
func resetNodeContent(n *node, fill func(put func([]byte))) {
	n.cellPtrs = n.cellPtrs[:0]
	n.numCells = 0
	n.contentOff = n.usable()
	n.fragFree = 0

	fill(func(raw []byte) {
		n.contentOff -= len(raw)
		copy(n.page.buf[n.contentOff:], raw)
		n.cellPtrs = append(n.cellPtrs, n.contentOff)
		n.numCells++
	})

	n.writeHeader()
}

// cellPtrArrayEnd is the offset just past the cell-pointer array, i.e.
// where the header and pointer array end and free space begins.
func (n *node) cellPtrArrayEnd() int { return n.headerOff() + n.headerLen() + 2*n.numCells }

// freeSpace returns the number of contiguous bytes available between the
// cell-pointer array and the cell-content area. dotlite does not reuse
// freeblocks left by deleted cells (see sweep); this is the only notion of
// free space it tracks.
func (n *node) freeSpace() int { return n.contentOff - n.cellPtrArrayEnd() }

// buildLeafPayloadCell encodes a leaf cell (table or index) carrying
// payload, splitting it across an overflow chain when it exceeds the
// node's inline threshold. hasRowid selects the table-leaf layout (size,
// rowid, body) versus the index-leaf layout (size, body).
func (n *node) buildLeafPayloadCell(hasRowid bool, rowid int64, payload []byte) ([]byte, error) {
	var total = len(payload)
	var _, local, overflowSz = n.computeBufferSize(total)

	var buf bytes.Buffer
	buf.Write(EncodeVarint(int64(total)))
	if hasRowid {
		buf.Write(EncodeVarint(rowid))
	}
	buf.Write(payload[:local])

	if overflowSz > 0 {
		var pgno, err = writeOverflow(n.file.Pager, n.usable(), payload[local:])
		if err != nil {
			return nil, err
		}
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(pgno))
		buf.Write(b[:])
	}

	return buf.Bytes(), nil
}

// buildInteriorIndexCell encodes an index-interior cell: left-child pointer
// followed by the same size/body/overflow-pointer layout as a leaf cell.
func (n *node) buildInteriorIndexCell(leftChild int32, payload []byte) ([]byte, error) {
	var body, err = n.buildLeafPayloadCell(false, 0, payload)
	if err != nil {
		return nil, err
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(leftChild))
	return append(b[:], body...), nil
}

// buildInteriorTableCell encodes a table-interior cell: left-child pointer
// followed by the rowid varint, with no payload of its own.
func buildInteriorTableCell(leftChild int32, rowid int64) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(leftChild))
	return append(b[:], EncodeVarint(rowid)...)
}

// insertCellBytes places raw cell content into the node's content area and
// records a new pointer for it at position idx in the cell-pointer array.
// It returns errNeedsSplit (without mutating the page) if there isn't room.
func (n *node) insertCellBytes(idx int, raw []byte) error {
	if n.freeSpace() < len(raw)+2 {
		return errNeedsSplit
	}

	n.contentOff -= len(raw)
	copy(n.page.buf[n.contentOff:], raw)

	n.cellPtrs = append(n.cellPtrs, 0)
	copy(n.cellPtrs[idx+1:], n.cellPtrs[idx:])
	n.cellPtrs[idx] = n.contentOff
	n.numCells++

	n.writeHeader()
	return nil
}

// deleteCellAt removes the cell at position idx from the pointer array and
// frees any overflow chain it owned. The cell's content bytes are left in
// place in the content area as a fragment; dotlite reclaims that space only
// by rewriting the whole node (see sweep), never by patching freeblocks.
func (n *node) deleteCellAt(idx int) (*cell, error) {
	var c, err = n.LoadCell(idx)
	if err != nil {
		return nil, err
	}

	n.cellPtrs = append(n.cellPtrs[:idx], n.cellPtrs[idx+1:]...)
	n.numCells--
	n.writeHeader()

	if c.OverflowPage != 0 {
		if err = freeOverflowChain(n.file.Pager, c.OverflowPage); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// rawCellReusingOverflow rebuilds a leaf/interior-index cell's on-disk
// bytes from its decoded form without re-splitting the payload: if the
// cell already owns an overflow chain, that chain is relinked as-is rather
// than rewritten, since its content hasn't changed.
func (n *node) rawCellReusingOverflow(c *cell, hasRowid bool) []byte {
	var total = len(c.Payload)
	var _, local, overflowSz = n.computeBufferSize(total)

	var buf bytes.Buffer
	buf.Write(EncodeVarint(int64(total)))
	if hasRowid {
		buf.Write(EncodeVarint(c.Rowid))
	}
	buf.Write(c.Payload[:local])
	if overflowSz > 0 {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(c.OverflowPage))
		buf.Write(b[:])
	}
	return buf.Bytes()
}

// sweep rewrites the node's content area by repacking every surviving cell
// against the end of the page, eliminating fragmentation left by deletes.
// It is invoked before an insert that freeSpace() alone would have
// rejected, but which the page can satisfy once fragments are reclaimed.
func (n *node) sweep() error {
	var numCells = n.numCells
	var raws = make([][]byte, numCells)
	for i := 0; i < numCells; i++ {
		var c, err = n.LoadCell(i)
		if err != nil {
			return err
		}
		switch n.kind {
		case NodeTableInterior:
			raws[i] = buildInteriorTableCell(c.LeftChild, c.Rowid)
		case NodeTableLeaf:
			raws[i] = n.rawCellReusingOverflow(c, true)
		case NodeIndexInterior:
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], uint32(c.LeftChild))
			raws[i] = append(b[:], n.rawCellReusingOverflow(c, false)...)
		case NodeIndexLeaf:
			raws[i] = n.rawCellReusingOverflow(c, false)
		}
	}

	resetNodeContent(n, func(put func([]byte)) {
		for _, raw := range raws {
			put(raw)
		}
	})
	return nil
}

// insertCell inserts raw cell bytes at idx, first sweeping the node to
// reclaim fragmented space if a straight insert would not fit.
func (n *node) insertCell(idx int, raw []byte) error {
	if err := n.insertCellBytes(idx, raw); err != errNeedsSplit {
		return err
	}
	if err := n.sweep(); err != nil {
		return err
	}
	return n.insertCellBytes(idx, raw)
}
