package dotlite

import "go.riyazali.net/dotlite/internal/dlog"

// Tree is a single B-tree within the database file, rooted at a fixed page
// number recorded in sqlite_schema. Table b-trees are keyed by rowid;
// index b-trees are keyed by the encoded record of their indexed columns
// (with the table rowid appended to break ties).
type Tree struct {
	file *File
	root int

	// desc[i] is true when key column i of this tree orders descending, as
	// declared by a CREATE INDEX statement's per-column ASC/DESC. nil means
	// every column (and the trailing rowid tie-breaker) sorts ascending —
	// true for every table tree and for a WITHOUT ROWID table's own tree.
	desc []bool
}

// NewTree creates a Tree rooted at page r, with every key column (table
// rowid, or a WITHOUT ROWID table's own primary key) ordered ascending.
func NewTree(file *File, root int) *Tree { return &Tree{file: file, root: root} }

// NewIndexTree creates a Tree rooted at page r whose key columns sort per
// desc, as declared by a CREATE INDEX statement.
func NewIndexTree(file *File, root int, desc []bool) *Tree {
	return &Tree{file: file, root: root, desc: desc}
}

func (t *Tree) rootNode() (*node, error) { return readNode(t.file, t.root) }

// Walk performs an in-order traversal of the tree, invoking fn with every
// cell that carries a row/index-entry payload (table-interior cells, which
// carry no payload of their own, are not passed to fn).
func (t *Tree) Walk(fn func(*cell) error) error {
	var root, err = t.rootNode()
	if err != nil {
		return err
	}
	return t.walk(root, fn)
}

func (t *Tree) walk(n *node, fn func(*cell) error) error {
	for i := 0; i < n.numCells; i++ {
		var c, err = n.LoadCell(i)
		if err != nil {
			return err
		}

		if c.LeftChild != 0 {
			var child, cerr = readNode(t.file, int(c.LeftChild))
			if cerr != nil {
				return cerr
			}
			if err = t.walk(child, fn); err != nil {
				return err
			}
		}

		if n.kind != NodeTableInterior {
			if err = fn(c); err != nil {
				return err
			}
		}
	}

	if n.right != 0 {
		var child, err = readNode(t.file, int(n.right))
		if err != nil {
			return err
		}
		return t.walk(child, fn)
	}

	return nil
}

// path records one step of a descent from the root to a leaf: the node
// visited and, for interior nodes, the index of the child cell followed
// (or -1 when the descent took the right-most pointer).
type pathStep struct {
	n      *node
	pgno   int
	viaIdx int
}

func (t *Tree) loadPathStep(pgno int) (pathStep, error) {
	var n, err = readNode(t.file, pgno)
	if err != nil {
		return pathStep{}, err
	}
	return pathStep{n: n, pgno: pgno, viaIdx: -1}, nil
}

func dlogTree(msg string, args ...any) { dlog.Debug(msg, args...) }
