package dotlite

import (
	"encoding/binary"
	"io"
)

// overflow is an io.Reader over a chain of overflow pages: each page holds a
// 4-byte big-endian pointer to the next page in the chain (0 for the last)
// followed by usable-4 bytes of payload.
// see: https://www.sqlite.org/fileformat.html#ovflpgs
type overflow struct {
	next  int32 // next page in the chain; 0 if this is the last
	page  *Page // current page we are reading
	pager *Pager

	usable int // configured usable size of the page
	size   int // total size of the overflow content
	left   int // bytes left to read in overflow
}

func newOverflowReader(pager *Pager, page int32, usable, size int) *overflow {
	return &overflow{pager: pager, next: page, usable: usable, size: size, left: size}
}

func (o *overflow) Read(buf []byte) (n int, err error) {
	if (o.page == nil || o.page.Len() == 0 || o.left == 0) && o.next == 0 {
		if o.left != 0 {
			return 0, io.ErrUnexpectedEOF
		}
		return 0, io.EOF
	}

fetch:
	if o.page == nil || o.page.Len() == 0 {
		if o.page, err = o.pager.ReadPage(int(o.next)); err != nil {
			return 0, err
		}
		o.page.rewind() // a cached page keeps the position of its last read

		// next page in the chain
		if err = binary.Read(o.page, binary.BigEndian, &o.next); err != nil {
			return 0, err
		}
	}

	buf = buf[:min(len(buf), o.left, o.usable-4)]
	if n, err = o.page.Read(buf); err != nil {
		if err == io.EOF {
			if o.next == 0 && o.left-n != 0 { // we expected more but hit an unexpected EOF
				return n, io.ErrUnexpectedEOF
			}

			buf = buf[n:] // update buffer start position
			goto fetch    // read the next page
		}

		return n, err
	}

	o.left -= n
	return n, nil
}

// writeOverflow chains data across as many freshly-allocated overflow pages
// as needed and returns the page number of the first one. It is the write
// counterpart to overflow: each page holds a 4-byte next-page pointer
// followed by up to usable-4 bytes of payload.
func writeOverflow(pager *Pager, usable int, data []byte) (int32, error) {
	var chunk = usable - 4
	var pages []*Page

	for len(data) > 0 {
		var page, err = pager.NewPage(0)
		if err != nil {
			return 0, err
		}
		pages = append(pages, page)

		var n = len(data)
		if n > chunk {
			n = chunk
		}
		page.WriteAt(data[:n], 4)
		data = data[n:]
	}

	for i := 0; i < len(pages)-1; i++ {
		pages[i].WriteAt(putBe32(int32(pages[i+1].ID)), 0)
	}
	if len(pages) > 0 {
		pages[len(pages)-1].WriteAt(putBe32(0), 0)
		return int32(pages[0].ID), nil
	}
	return 0, nil
}

// freeOverflowChain walks an overflow chain starting at page pgno and
// returns every page in it to the free list.
func freeOverflowChain(pager *Pager, pgno int32) error {
	for pgno != 0 {
		var page, err = pager.ReadPage(int(pgno))
		if err != nil {
			return err
		}
		if page == nil {
			return nil
		}
		var next = int32(be32(page.buf[0:4]))
		if err = pager.AddToFreelist(page); err != nil {
			return err
		}
		pgno = next
	}
	return nil
}
