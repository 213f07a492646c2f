package dotlite

// compareIndexKeys orders two decoded index-key tuples the way SQLite
// orders index entries: column by column, NULL sorts before everything,
// numbers compare numerically, text and blobs compare byte-wise, and a
// column declared DESC in the owning CREATE INDEX has its comparison
// inverted. The final column of an index key is always the table rowid,
// which breaks ties between otherwise-equal entries and always sorts
// ascending.
func (t *Tree) compareIndexKeys(a, b []any) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		var c = compareValues(a[i], b[i])
		if i < len(t.desc) && t.desc[i] {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	var af, aIsNum = asFloat(a)
	var bf, bIsNum = asFloat(b)
	if aIsNum && bIsNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	var as, aIsStr = a.(string)
	var bs, bIsStr = b.(string)
	if aIsStr && bIsStr {
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	}

	var ab, aIsBlob = a.([]byte)
	var bb, bIsBlob = b.([]byte)
	if aIsBlob && bIsBlob {
		for i := 0; i < len(ab) && i < len(bb); i++ {
			if ab[i] != bb[i] {
				return int(ab[i]) - int(bb[i])
			}
		}
		return len(ab) - len(bb)
	}

	// mismatched storage classes; order by SQLite's general type rank:
	// null < number < text < blob.
	return typeRank(a) - typeRank(b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case int64, float64:
		return 1
	case string:
		return 2
	case []byte:
		return 3
	default:
		return 4
	}
}

// findIndexPath descends the index tree looking for key. Index-interior
// cells carry a real, promoted entry (not a duplicate of one still living
// in a leaf), so an exact match can legitimately be found partway down; if
// recurseToLeaf is true the search keeps going into the matching cell's
// left subtree to also report the path to where that same key's nearest
// leaf occurrence lives (insert/delete need the leaf path to splice
// siblings; a plain existence lookup does not).
func (t *Tree) findIndexPath(key []any, recurseToLeaf bool) (path []pathStep, idx int, found bool, err error) {
	var pgno = t.root
	for {
		var step pathStep
		if step, err = t.loadPathStep(pgno); err != nil {
			return nil, 0, false, err
		}
		var n = step.n

		var i int
		var cmp int
		for i = 0; i < n.numCells; i++ {
			var c *cell
			if c, err = n.LoadCell(i); err != nil {
				return nil, 0, false, err
			}
			var cellKey []any
			if cellKey, err = DecodeRecord(c.Payload); err != nil {
				return nil, 0, false, err
			}
			cmp = t.compareIndexKeys(key, cellKey)
			if cmp <= 0 {
				break
			}
		}

		path = append(path, step)

		if n.kind == NodeIndexLeaf {
			idx = i
			found = i < n.numCells && cmp == 0
			return path, idx, found, nil
		}

		if cmp == 0 && !recurseToLeaf {
			idx = i
			found = true
			return path, idx, found, nil
		}

		var child int
		if i < n.numCells {
			var c, _ = n.LoadCell(i)
			child = int(c.LeftChild)
			step.viaIdx = i
		} else {
			child = int(n.right)
			step.viaIdx = -1
		}
		path[len(path)-1] = step
		pgno = child
	}
}

// FindEqual returns every leaf entry whose key prefix matches the given
// (partial) key, used by FilterByIndex for equality lookups that don't
// pin every indexed column.
func (t *Tree) FindEqual(prefix []any, visit func(key []any) error) error {
	var path, idx, _, err = t.findIndexPath(prefix, true)
	if err != nil {
		return err
	}

	var leaf = path[len(path)-1].n
	for i := idx; i < leaf.numCells; i++ {
		var c, lerr = leaf.LoadCell(i)
		if lerr != nil {
			return lerr
		}
		var key, derr = DecodeRecord(c.Payload)
		if derr != nil {
			return derr
		}
		if t.compareIndexKeys(prefix, key[:len(prefix)]) != 0 {
			break
		}
		if err = visit(key); err != nil {
			return err
		}
	}
	return nil
}

// GetByKey returns the payload of the first entry whose leading columns
// match key exactly, used to address a WITHOUT ROWID table's own tree
// (which is physically an index tree keyed by its primary key) by primary
// key value.
func (t *Tree) GetByKey(key []any) ([]byte, bool, error) {
	var path, idx, _, err = t.findIndexPath(key, true)
	if err != nil {
		return nil, false, err
	}
	// a key shorter than the stored entries sorts before every entry it
	// prefixes, so the search stops just before the first candidate; when
	// that is past the end of the leaf, the candidate is the ancestor entry
	// the descent went left of.
	var n = path[len(path)-1].n
	for lvl := len(path) - 2; idx >= n.numCells && lvl >= 0; lvl-- {
		if n, idx = path[lvl].n, path[lvl].viaIdx; idx == -1 {
			idx = n.numCells
		}
	}
	if idx >= n.numCells {
		return nil, false, nil
	}
	var c, lerr = n.LoadCell(idx)
	if lerr != nil {
		return nil, false, lerr
	}
	var cellKey, derr = DecodeRecord(c.Payload)
	if derr != nil || len(cellKey) < len(key) || t.compareIndexKeys(key, cellKey[:len(key)]) != 0 {
		return nil, false, derr
	}
	return c.Payload, true, nil
}

// InsertKey adds a new index entry (the encoded record of the indexed
// columns plus the table rowid) keyed by its own decoded value.
func (t *Tree) InsertKey(payload []byte) error {
	var key, err = DecodeRecord(payload)
	if err != nil {
		return err
	}

	var path, idx, _, ferr = t.findIndexPath(key, true)
	if ferr != nil {
		return ferr
	}

	var leaf = path[len(path)-1].n
	var raw []byte
	if raw, err = leaf.buildLeafPayloadCell(false, 0, payload); err != nil {
		return err
	}

	if err = leaf.insertCell(idx, raw); err == nil {
		return nil
	} else if err != errNeedsSplit {
		return err
	}

	return t.splitIndexLeaf(path, idx, raw)
}

// splitIndexLeaf redistributes a leaf by median: unlike a table leaf split
// (which duplicates a separator), the median entry here is promoted into
// the parent and does not remain in either child.
func (t *Tree) splitIndexLeaf(path []pathStep, idx int, raw []byte) error {
	var leaf = path[len(path)-1].n

	var raws = make([][]byte, 0, leaf.numCells+1)
	for i := 0; i < leaf.numCells; i++ {
		if i == idx {
			raws = append(raws, raw)
		}
		var c, err = leaf.LoadCell(i)
		if err != nil {
			return err
		}
		raws = append(raws, leaf.rawCellReusingOverflow(c, false))
	}
	if idx == leaf.numCells {
		raws = append(raws, raw)
	}

	var mid = len(raws) - len(raws)/2 // median, rounded so the left half is never smaller than the right
	var promotedRaw = raws[mid]
	var left, right = raws[:mid], raws[mid+1:]

	var promotedCell, err = decodeLeafIndexCellBytes(leaf, promotedRaw)
	if err != nil {
		return err
	}
	var promotedKey []any
	if promotedKey, err = DecodeRecord(promotedCell.Payload); err != nil {
		return err
	}

	resetNodeContent(leaf, func(put func([]byte)) {
		for _, r := range left {
			put(r)
		}
	})

	var siblingPage *Page
	if siblingPage, err = t.file.Pager.NewPage(NodeIndexLeaf); err != nil {
		return err
	}
	var sibling = newEmptyNode(t.file, siblingPage, NodeIndexLeaf)
	resetNodeContent(sibling, func(put func([]byte)) {
		for _, r := range right {
			put(r)
		}
	})

	return t.propagateIndexSplit(path, leaf, sibling, promotedCell.Payload, promotedKey)
}

// propagateIndexSplit inserts the promoted entry into the parent as a real
// cell pointing at left, retargets whatever pointer used to reference left
// so it now references sibling, and — for the root — performs the same
// page-swap root-split trick the table tree uses. This handles the split
// happening at ANY depth of the tree, including when the parent already
// has other children to its right, not only the right-most-child case.
func (t *Tree) propagateIndexSplit(path []pathStep, left, sibling *node, promotedPayload []byte, promotedKey []any) error {
	var level = len(path) - 1
	if level == 0 {
		return t.promoteIndexRootSplit(left, sibling, promotedPayload)
	}

	var parent = path[level-1].n
	var via = path[level-1].viaIdx

	if via == -1 {
		parent.right = int32(sibling.page.ID)
		parent.writeHeader()
	} else {
		parent.page.WriteAt(putBe32(int32(sibling.page.ID)), parent.cellPtrs[via])
	}

	var insertIdx = via
	if insertIdx == -1 {
		insertIdx = parent.numCells
	}
	return t.insertIndexInteriorCell(path[:level], insertIdx, int32(left.page.ID), promotedPayload, promotedKey)
}

func (t *Tree) insertIndexInteriorCell(path []pathStep, idx int, leftChild int32, payload []byte, key []any) error {
	var n = path[len(path)-1].n
	var raw, err = n.buildInteriorIndexCell(leftChild, payload)
	if err != nil {
		return err
	}

	if err = n.insertCell(idx, raw); err == nil {
		return nil
	} else if err != errNeedsSplit {
		return err
	}

	return t.splitIndexInterior(path, idx, leftChild, payload, key)
}

func (t *Tree) splitIndexInterior(path []pathStep, idx int, newLeftChild int32, newPayload []byte, newKey []any) error {
	var n = path[len(path)-1].n

	type entry struct {
		leftChild int32
		payload   []byte
	}
	var entries = make([]entry, 0, n.numCells+1)
	for i := 0; i < n.numCells; i++ {
		if i == idx {
			entries = append(entries, entry{newLeftChild, newPayload})
		}
		var c, err = n.LoadCell(i)
		if err != nil {
			return err
		}
		entries = append(entries, entry{c.LeftChild, c.Payload})
	}
	if idx == n.numCells {
		entries = append(entries, entry{newLeftChild, newPayload})
	}

	var mid = len(entries) - len(entries)/2 // median, rounded so the left half is never smaller than the right
	var promoted = entries[mid]
	var left, right = entries[:mid], entries[mid+1:]
	var oldRight = n.right

	var err error
	resetNodeContent(n, func(put func([]byte)) {
		for _, e := range left {
			var raw, berr = n.buildInteriorIndexCell(e.leftChild, e.payload)
			if berr != nil {
				err = berr
				return
			}
			put(raw)
		}
	})
	if err != nil {
		return err
	}
	n.right = promoted.leftChild
	n.writeHeader()

	var siblingPage *Page
	if siblingPage, err = t.file.Pager.NewPage(NodeIndexInterior); err != nil {
		return err
	}
	var sibling = newEmptyNode(t.file, siblingPage, NodeIndexInterior)
	resetNodeContent(sibling, func(put func([]byte)) {
		for _, e := range right {
			var raw, berr = sibling.buildInteriorIndexCell(e.leftChild, e.payload)
			if berr != nil {
				err = berr
				return
			}
			put(raw)
		}
	})
	if err != nil {
		return err
	}
	sibling.right = oldRight
	sibling.writeHeader()

	return t.propagateIndexSplit(path, n, sibling, promoted.payload, newKey)
}

func (t *Tree) promoteIndexRootSplit(left, sibling *node, promotedPayload []byte) error {
	var rootPage = left.page

	var newLeftPage, err = t.file.Pager.NewPage(left.kind)
	if err != nil {
		return err
	}

	copy(newLeftPage.buf, rootPage.buf)
	var hdrOff = rootPage.headerOffset()
	var hdrLen = left.headerLen()
	var ptrBytes = 2 * left.numCells
	copy(newLeftPage.buf[0:hdrLen+ptrBytes], rootPage.buf[hdrOff:hdrOff+hdrLen+ptrBytes])
	newLeftPage.markDirty()

	var newLeft *node
	if newLeft, err = parseNode(t.file, newLeftPage); err != nil {
		return err
	}

	rootPage.zero(0)
	var root = newEmptyNode(t.file, rootPage, NodeIndexInterior)
	root.right = int32(sibling.page.ID)

	var raw []byte
	if raw, err = root.buildInteriorIndexCell(int32(newLeft.page.ID), promotedPayload); err != nil {
		return err
	}
	if err = root.insertCell(0, raw); err != nil {
		return err
	}
	root.writeHeader()
	return nil
}

// decodeLeafIndexCellBytes parses the size/body/overflow-pointer layout of
// a just-built (not yet on a page) index-leaf cell, used when the median
// entry chosen during a split needs its payload back to promote upward.
func decodeLeafIndexCellBytes(n *node, raw []byte) (*cell, error) {
	var size, off, err = DecodeVarint(raw, 0)
	if err != nil {
		return nil, err
	}
	var _, local, overflowSz = n.computeBufferSize(int(size))

	var c = &cell{}
	c.Payload = append([]byte(nil), raw[off:off+local]...)
	if overflowSz > 0 {
		var ovf = int32(be32(raw[off+local : off+local+4]))
		var buf = append([]byte(nil), c.Payload...)
		var more, rerr = readAllOverflow(n.file.Pager, ovf, n.usable(), overflowSz)
		if rerr != nil {
			return nil, rerr
		}
		c.Payload = append(buf, more...)
		c.OverflowPage = ovf
	}
	return c, nil
}

func readAllOverflow(pager *Pager, pgno int32, usable, size int) ([]byte, error) {
	var r = newOverflowReader(pager, pgno, usable, size)
	var buf = make([]byte, size)
	var n int
	var err error
	for n < size {
		var m int
		if m, err = r.Read(buf[n:]); m > 0 {
			n += m
		}
		if err != nil {
			break
		}
	}
	if n != size {
		return nil, wrapf(ErrMalformedPage, "short overflow read: %d of %d", n, size)
	}
	return buf, nil
}

// DeleteKey removes the entry matching key (the fully-encoded index record,
// including the trailing rowid column) from the tree. If the matching
// entry lives in an interior node (it was promoted there by an earlier
// split), it is replaced by its in-order predecessor, which is then
// deleted from whatever leaf it actually lives in — the standard
// binary-search-tree deletion-by-predecessor technique, generalized to a
// tree whose interior nodes carry real entries rather than copies.
func (t *Tree) DeleteKey(payload []byte) error {
	var key, err = DecodeRecord(payload)
	if err != nil {
		return err
	}

	var path, idx, found, ferr = t.findIndexPath(key, false)
	if ferr != nil {
		return ferr
	}
	if !found {
		return ErrNotFound
	}

	var n = path[len(path)-1].n
	if n.kind == NodeIndexLeaf {
		if _, err = n.deleteCellAt(idx); err != nil {
			return err
		}
		if n.numCells == 0 && len(path) > 1 {
			return t.removeChildPointer(path[:len(path)-2], path[len(path)-2].n, path[len(path)-2].viaIdx)
		}
		return nil
	}

	// interior match: swap in the predecessor (right-most entry of the
	// matched cell's left subtree), then delete the predecessor from its
	// leaf. The matched cell's left-child pointer is preserved unchanged —
	// the predecessor came from within that exact subtree, so it still
	// bounds the same set of descendants.
	var matched, lerr = n.LoadCell(idx)
	if lerr != nil {
		return lerr
	}

	var predPath []pathStep
	if predPath, err = t.rightmostPath(int(matched.LeftChild)); err != nil {
		return err
	}
	var predLeaf = predPath[len(predPath)-1].n
	var predCell, perr = predLeaf.LoadCell(predLeaf.numCells - 1)
	if perr != nil {
		return perr
	}
	var predKey []any
	if predKey, err = DecodeRecord(predCell.Payload); err != nil {
		return err
	}

	if _, err = n.deleteCellAt(idx); err != nil {
		return err
	}
	if err = t.insertIndexInteriorCell(path, idx, matched.LeftChild, predCell.Payload, predKey); err != nil {
		return err
	}

	if _, err = predLeaf.deleteCellAt(predLeaf.numCells - 1); err != nil {
		return err
	}
	if predLeaf.numCells == 0 && len(predPath) > 1 {
		return t.removeChildPointer(predPath[:len(predPath)-2], predPath[len(predPath)-2].n, predPath[len(predPath)-2].viaIdx)
	}
	return nil
}

// rightmostPath descends from pgno always following the right-most child,
// returning the full path to the right-most leaf of that subtree.
func (t *Tree) rightmostPath(pgno int) ([]pathStep, error) {
	var path []pathStep
	for {
		var step, err = t.loadPathStep(pgno)
		if err != nil {
			return nil, err
		}
		path = append(path, step)
		if step.n.kind == NodeIndexLeaf {
			return path, nil
		}
		if step.n.numCells == 0 {
			return path, nil
		}
		path[len(path)-1].viaIdx = -1
		pgno = int(step.n.right)
	}
}
