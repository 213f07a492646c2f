package dotlite

// findRowidTablePath descends from the tree root to the leaf that contains
// (or would contain) rowid, recording every node visited along the way.
// path[i].viaIdx records which child pointer of path[i].n was followed to
// reach path[i+1] (-1 meaning the right-most pointer). The interior-search
// rule is exact: each interior cell's rowid is the largest rowid contained
// in its left subtree, so the first cell whose rowid is >= the target
// bounds that target's subtree; if no such cell exists the target falls
// under the right-most pointer.
func (t *Tree) findRowidTablePath(rowid int64) (path []pathStep, leafIdx int, found bool, err error) {
	var pgno = t.root
	for {
		var step pathStep
		if step, err = t.loadPathStep(pgno); err != nil {
			return nil, 0, false, err
		}
		var n = step.n

		if n.kind == NodeTableLeaf {
			var i int
			for i = 0; i < n.numCells; i++ {
				var c *cell
				if c, err = n.LoadCell(i); err != nil {
					return nil, 0, false, err
				}
				if c.Rowid == rowid {
					found = true
					break
				}
				if c.Rowid > rowid {
					break
				}
			}
			leafIdx = i
			path = append(path, step)
			return path, leafIdx, found, nil
		}

		var child = int(n.right)
		var via = -1
		for i := 0; i < n.numCells; i++ {
			var c *cell
			if c, err = n.LoadCell(i); err != nil {
				return nil, 0, false, err
			}
			if c.Rowid >= rowid {
				child = int(c.LeftChild)
				via = i
				break
			}
		}
		step.viaIdx = via
		path = append(path, step)
		pgno = child
	}
}

// GetByRowid returns the leaf cell for rowid, if present.
func (t *Tree) GetByRowid(rowid int64) (*cell, bool, error) {
	var path, idx, found, err = t.findRowidTablePath(rowid)
	if err != nil || !found {
		return nil, false, err
	}
	var c, lerr = path[len(path)-1].n.LoadCell(idx)
	return c, true, lerr
}

// nextRowid returns one past the largest rowid currently stored in the
// tree (read from its right-most leaf cell), or 1 for an empty tree. It
// implements the "caller-supplied or last_rowid+1" rule Insert uses to
// resolve a rowid that wasn't given explicitly.
func (t *Tree) nextRowid() (int64, error) {
	var n, err = t.rootNode()
	if err != nil {
		return 0, err
	}

	for isInterior(n.kind) {
		var pgno = int(n.right)
		if pgno == 0 && n.numCells > 0 {
			var c, cerr = n.LoadCell(n.numCells - 1)
			if cerr != nil {
				return 0, cerr
			}
			pgno = int(c.LeftChild)
		}
		if n, err = readNode(t.file, pgno); err != nil {
			return 0, err
		}
	}

	if n.numCells == 0 {
		return 1, nil
	}
	var c, cerr = n.LoadCell(n.numCells - 1)
	if cerr != nil {
		return 0, cerr
	}
	return c.Rowid + 1, nil
}

// InsertByRowid inserts a new row keyed by rowid into the table tree,
// returning ErrDuplicate if rowid already exists.
func (t *Tree) InsertByRowid(rowid int64, payload []byte) error {
	var path, idx, found, err = t.findRowidTablePath(rowid)
	if err != nil {
		return err
	}
	if found {
		return ErrDuplicate
	}

	var leaf = path[len(path)-1].n
	var raw []byte
	if raw, err = leaf.buildLeafPayloadCell(true, rowid, payload); err != nil {
		return err
	}

	if err = leaf.insertCell(idx, raw); err == nil {
		return nil
	} else if err != errNeedsSplit {
		return err
	}

	return t.splitTableLeaf(path, idx, raw, rowid)
}

// DeleteByRowid removes the row keyed by rowid. It returns ErrNotFound if
// the rowid does not exist. Underflowed leaves are collapsed back into
// their parent via merge_children when they end up completely empty.
func (t *Tree) DeleteByRowid(rowid int64) error {
	var path, idx, found, err = t.findRowidTablePath(rowid)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}

	var leaf = path[len(path)-1].n
	if _, err = leaf.deleteCellAt(idx); err != nil {
		return err
	}

	if leaf.numCells == 0 && len(path) > 1 {
		return t.mergeEmptyLeaf(path)
	}
	return nil
}

// UpdateByRowid replaces the row at rowid with newPayload, preserving its
// rowid. dotlite implements it as a delete followed by a re-insert rather
// than an in-place cell rewrite, since a larger payload may need to move
// to a different leaf (or spill to/from an overflow chain) entirely.
func (t *Tree) UpdateByRowid(rowid int64, newPayload []byte) error {
	var path, idx, found, err = t.findRowidTablePath(rowid)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}

	var leaf = path[len(path)-1].n
	if _, err = leaf.deleteCellAt(idx); err != nil {
		return err
	}
	if leaf.numCells == 0 && len(path) > 1 {
		if err = t.mergeEmptyLeaf(path); err != nil {
			return err
		}
	}

	return t.InsertByRowid(rowid, newPayload)
}

// splitTableLeaf redistributes idx's leaf (with the new cell raw inserted
// at position idx) across the existing page and a freshly allocated
// sibling, then propagates a separator cell up through path. The split
// happens at the insertion index itself rather than the midpoint: a cell
// landing at the end of the existing cells (idx == leaf.numCells, the
// sequential-rowid-append case) goes alone into the new sibling, leaving
// every existing cell untouched; any other insertion position instead
// moves the untouched tail [idx, end) into the sibling and appends the new
// cell to what's left of the original leaf. This keeps sequential inserts
// append-biased instead of rebalancing the leaf on every split.
func (t *Tree) splitTableLeaf(path []pathStep, idx int, raw []byte, newRowid int64) error {
	var leaf = path[len(path)-1].n

	type entry struct {
		rowid int64
		raw   []byte
	}
	var old = make([]entry, leaf.numCells)
	for i := 0; i < leaf.numCells; i++ {
		var c, err = leaf.LoadCell(i)
		if err != nil {
			return err
		}
		old[i] = entry{c.Rowid, leaf.rawCellReusingOverflow(c, true)}
	}

	var newEntry = entry{newRowid, raw}
	var left = append([]entry(nil), old[:idx]...)
	var right = old[idx:]
	if len(right) == 0 {
		right = []entry{newEntry}
	} else {
		left = append(left, newEntry)
	}

	resetNodeContent(leaf, func(put func([]byte)) {
		for _, e := range left {
			put(e.raw)
		}
	})

	var siblingPage, err = t.file.Pager.NewPage(NodeTableLeaf)
	if err != nil {
		return err
	}
	var sibling = newEmptyNode(t.file, siblingPage, NodeTableLeaf)
	resetNodeContent(sibling, func(put func([]byte)) {
		for _, e := range right {
			put(e.raw)
		}
	})

	return t.propagateTableSplit(path, leaf, sibling, left[len(left)-1].rowid)
}

// insertTableInteriorCell inserts a new (leftChild, rowid) separator into
// the interior node at the given path level, splitting it (and propagating
// further up) if it has no room.
func (t *Tree) insertTableInteriorCell(path []pathStep, idx int, leftChild int32, rowid int64) error {
	var n = path[len(path)-1].n
	var raw = buildInteriorTableCell(leftChild, rowid)

	if err := n.insertCell(idx, raw); err == nil {
		return nil
	} else if err != errNeedsSplit {
		return err
	}

	return t.splitTableInterior(path, idx, leftChild, rowid)
}

func (t *Tree) splitTableInterior(path []pathStep, idx int, newLeftChild int32, newRowid int64) error {
	var n = path[len(path)-1].n

	type entry struct {
		leftChild int32
		rowid     int64
	}
	var entries = make([]entry, 0, n.numCells+1)
	for i := 0; i < n.numCells; i++ {
		if i == idx {
			entries = append(entries, entry{newLeftChild, newRowid})
		}
		var c, err = n.LoadCell(i)
		if err != nil {
			return err
		}
		entries = append(entries, entry{c.LeftChild, c.Rowid})
	}
	if idx == n.numCells {
		entries = append(entries, entry{newLeftChild, newRowid})
	}

	// split at the cell index being inserted, not the midpoint: entries[idx]
	// is always the newly inserted separator by construction of the loop
	// above. It never ends up stored as a cell in either sibling; it is
	// consumed by redirecting left's right-most pointer to its leftChild,
	// which is how an interior split stays append-biased under sequential
	// insertion, just like the leaf split above.
	var mid = idx
	var promoted = entries[mid]
	var left, right = entries[:mid], entries[mid+1:]
	var oldRight = n.right

	resetNodeContent(n, func(put func([]byte)) {
		for _, e := range left {
			put(buildInteriorTableCell(e.leftChild, e.rowid))
		}
	})
	n.right = promoted.leftChild
	n.writeHeader()

	var siblingPage, err = t.file.Pager.NewPage(NodeTableInterior)
	if err != nil {
		return err
	}
	var sibling = newEmptyNode(t.file, siblingPage, NodeTableInterior)
	resetNodeContent(sibling, func(put func([]byte)) {
		for _, e := range right {
			put(buildInteriorTableCell(e.leftChild, e.rowid))
		}
	})
	sibling.right = oldRight
	sibling.writeHeader()

	return t.propagateTableSplit(path, n, sibling, promoted.rowid)
}

// propagateTableSplit links a freshly-split-off sibling into the parent,
// inserting a new separator cell for left (which keeps its original page
// number) and retargeting whichever parent pointer used to reference left
// so that it now points at sibling instead. This handles the separator's
// old slot being an ordinary cell OR the parent's right-most pointer
// uniformly, since a split can occur at any position in the tree, not only
// along the right edge.
func (t *Tree) propagateTableSplit(path []pathStep, left, sibling *node, sepRowid int64) error {
	var level = len(path) - 1
	if level == 0 {
		return t.promoteRootSplit(left, sibling, sepRowid)
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
	return t.insertTableInteriorCell(path[:level], insertIdx, int32(left.page.ID), sepRowid)
}

// promoteRootSplit handles a split at the tree root: root's page number
// must remain t.root (schema entries point at it by page number), so the
// current root content is relocated verbatim to a freshly allocated page
// and the root page itself is rewritten as a new one-cell interior node
// pointing at the relocated copy and at sibling.
func (t *Tree) promoteRootSplit(left, sibling *node, sepRowid int64) error {
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
	var interiorKind byte = NodeTableInterior
	if !isTable(left.kind) {
		interiorKind = NodeIndexInterior
	}

	var root = newEmptyNode(t.file, rootPage, interiorKind)
	root.right = int32(sibling.page.ID)
	if err = root.insertCell(0, buildInteriorTableCell(int32(newLeft.page.ID), sepRowid)); err != nil {
		return err
	}
	root.writeHeader()
	return nil
}

// mergeEmptyLeaf collapses a leaf that deletion left completely empty: it
// is removed from its parent and reclaimed, and merge_children then checks
// whether the parent's remaining children now fit in a single page — if so
// they're collapsed into one, repeating up the path as far as it applies.
func (t *Tree) mergeEmptyLeaf(path []pathStep) error {
	var level = len(path) - 1
	var leaf = path[level].n

	if err := t.file.Pager.AddToFreelist(leaf.page); err != nil {
		return err
	}

	return t.removeChildPointer(path[:level-1], path[level-1].n, path[level-1].viaIdx)
}

// removeChildPointer deletes the parent pointer (cell or right-most) that
// referenced a now-reclaimed child page, then, for a table tree, attempts
// merge_children (index trees are left unmerged): if
// the parent's surviving children collectively fit within one page, they
// are rewritten into a single leaf in the parent's place and the parent
// collapses too (recursively, as far up as the condition keeps holding).
func (t *Tree) removeChildPointer(ancestorPath []pathStep, parent *node, via int) error {
	if via == -1 {
		// the right-most pointer was reclaimed; the new right-most child is
		// whatever the last remaining cell pointed to.
		if parent.numCells == 0 {
			return nil
		}
		var last, err = parent.deleteCellAt(parent.numCells - 1)
		if err != nil {
			return err
		}
		parent.right = last.LeftChild
		parent.writeHeader()
	} else {
		if _, err := parent.deleteCellAt(via); err != nil {
			return err
		}
	}

	if !isTable(parent.kind) {
		return nil
	}

	return t.mergeChildren(ancestorPath, parent)
}

// mergeChildren implements the spec's merge_children optimization: if every
// row across an interior node's children would now fit inside one leaf
// page, rewrite that node in place as the single merged leaf, freeing its
// former children, and recurse the same check up one level.
func (t *Tree) mergeChildren(ancestorPath []pathStep, n *node) error {
	var rawCells [][]byte
	var totalBytes = 0
	var childPages []int

	var walkErr = t.forEachTableChild(n, func(leaf *node) error {
		childPages = append(childPages, leaf.page.ID)
		for i := 0; i < leaf.numCells; i++ {
			var c, err = leaf.LoadCell(i)
			if err != nil {
				return err
			}
			var raw = leaf.rawCellReusingOverflow(c, true)
			totalBytes += len(raw) + 2
			rawCells = append(rawCells, raw)
		}
		return nil
	})
	if walkErr != nil {
		return walkErr
	}

	var budget = n.usable() - n.headerLen()
	if totalBytes > budget {
		return nil
	}

	for _, pgno := range childPages {
		if pgno == n.page.ID {
			continue
		}
		var childPage, err = t.file.Pager.ReadPage(pgno)
		if err != nil {
			return err
		}
		if err = t.file.Pager.AddToFreelist(childPage); err != nil {
			return err
		}
	}

	n.kind = NodeTableLeaf
	n.right = 0
	resetNodeContent(n, func(put func([]byte)) {
		for _, raw := range rawCells {
			put(raw)
		}
	})

	if len(ancestorPath) == 0 {
		return nil
	}
	return t.mergeChildren(ancestorPath[:len(ancestorPath)-1], ancestorPath[len(ancestorPath)-1].n)
}

// forEachTableChild visits every leaf descendant of n in left-to-right
// order, recursing through any of n's children that are themselves interior
// nodes. mergeChildren uses it to gather every row under n before deciding
// whether they fit in one page.
func (t *Tree) forEachTableChild(n *node, fn func(*node) error) error {
	for i := 0; i < n.numCells; i++ {
		var c, err = n.LoadCell(i)
		if err != nil {
			return err
		}
		if err = t.visitTableSubtree(int(c.LeftChild), fn); err != nil {
			return err
		}
	}
	if n.right != 0 {
		return t.visitTableSubtree(int(n.right), fn)
	}
	return nil
}

func (t *Tree) visitTableSubtree(pgno int, fn func(*node) error) error {
	var child, err = readNode(t.file, pgno)
	if err != nil {
		return err
	}
	if child.kind == NodeTableLeaf {
		return fn(child)
	}
	return t.forEachTableChild(child, fn)
}
