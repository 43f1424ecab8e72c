package variables

import "strings"

// A CompoundTable is the binary search tree holding the elements of one
// stem, ordered by tail text. Nodes live in an arena owned by the table and
// link to each other by index. The tree is rebalanced on insert using the
// depth counters kept on every node.
type CompoundTable struct {
	owner *Stem
	nodes []*CompoundElement
	root  nodeIndex
}

func newCompoundTable(owner *Stem) *CompoundTable {
	return &CompoundTable{owner, nil, noNode}
}

func (t *CompoundTable) node(i nodeIndex) *CompoundElement {
	if i == noNode {
		return nil
	}
	return t.nodes[i]
}

// The number of nodes in the tree, including dropped elements.
func (t *CompoundTable) Len() int {
	return len(t.nodes)
}

// Look up the element for a tail. When the tail is missing, either return nil
// or insert a new unbound element, depending on create.
func (t *CompoundTable) FindEntry(tail string, create bool) *CompoundElement {
	if t.root == noNode {
		if !create {
			return nil
		}
		return t.insert(tail, noNode, false)
	}
	cur := t.root
	for {
		n := t.nodes[cur]
		c := strings.Compare(tail, n.tail)
		if c == 0 {
			return n
		}
		next := n.left
		if c > 0 {
			next = n.right
		}
		if next == noNode {
			if !create {
				return nil
			}
			return t.insert(tail, cur, c > 0)
		}
		cur = next
	}
}

func (t *CompoundTable) insert(tail string, parent nodeIndex, right bool) *CompoundElement {
	idx := nodeIndex(len(t.nodes))
	e := &CompoundElement{
		tail:   tail,
		stem:   t.owner,
		index:  idx,
		left:   noNode,
		right:  noNode,
		parent: parent,
	}
	t.nodes = append(t.nodes, e)
	if parent == noNode {
		t.root = idx
	} else if right {
		t.nodes[parent].right = idx
	} else {
		t.nodes[parent].left = idx
	}
	t.rebalance(parent)
	return e
}

func (t *CompoundTable) depth(i nodeIndex) int {
	if i == noNode {
		return 0
	}
	n := t.nodes[i]
	return 1 + max(n.leftDepth, n.rightDepth)
}

func (t *CompoundTable) updateDepth(i nodeIndex) {
	n := t.nodes[i]
	n.leftDepth = t.depth(n.left)
	n.rightDepth = t.depth(n.right)
}

// Walk from the given node to the root, refreshing depth counters and
// rotating any node whose subtrees differ in depth by more than one.
func (t *CompoundTable) rebalance(i nodeIndex) {
	for i != noNode {
		t.updateDepth(i)
		i = t.balance(i)
		i = t.nodes[i].parent
	}
}

// Returns the index of the node now occupying the position of i.
func (t *CompoundTable) balance(i nodeIndex) nodeIndex {
	n := t.nodes[i]
	switch {
	case n.leftDepth-n.rightDepth > 1:
		l := t.nodes[n.left]
		if l.rightDepth > l.leftDepth {
			t.rotateLeft(n.left)
		}
		return t.rotateRight(i)
	case n.rightDepth-n.leftDepth > 1:
		r := t.nodes[n.right]
		if r.leftDepth > r.rightDepth {
			t.rotateRight(n.right)
		}
		return t.rotateLeft(i)
	default:
		return i
	}
}

func (t *CompoundTable) replaceChild(parent nodeIndex, old nodeIndex, updated nodeIndex) {
	if parent == noNode {
		t.root = updated
		return
	}
	p := t.nodes[parent]
	if p.left == old {
		p.left = updated
	} else {
		p.right = updated
	}
}

func (t *CompoundTable) rotateLeft(x nodeIndex) nodeIndex {
	xn := t.nodes[x]
	y := xn.right
	yn := t.nodes[y]
	xn.right = yn.left
	if yn.left != noNode {
		t.nodes[yn.left].parent = x
	}
	yn.parent = xn.parent
	t.replaceChild(xn.parent, x, y)
	yn.left = x
	xn.parent = y
	t.updateDepth(x)
	t.updateDepth(y)
	return y
}

func (t *CompoundTable) rotateRight(x nodeIndex) nodeIndex {
	xn := t.nodes[x]
	y := xn.left
	yn := t.nodes[y]
	xn.left = yn.right
	if yn.right != noNode {
		t.nodes[yn.right].parent = x
	}
	yn.parent = xn.parent
	t.replaceChild(xn.parent, x, y)
	yn.right = x
	xn.parent = y
	t.updateDepth(x)
	t.updateDepth(y)
	return y
}

// The element with the lowest tail, or nil for an empty table.
func (t *CompoundTable) First() *CompoundElement {
	if t.root == noNode {
		return nil
	}
	return t.leftmost(t.root)
}

func (t *CompoundTable) leftmost(i nodeIndex) *CompoundElement {
	n := t.nodes[i]
	for n.left != noNode {
		n = t.nodes[n.left]
	}
	return n
}

// The in-order successor of an element, or nil at the end of the table.
func (t *CompoundTable) Next(e *CompoundElement) *CompoundElement {
	if e.right != noNode {
		return t.leftmost(e.right)
	}
	cur := e
	for cur.parent != noNode {
		p := t.nodes[cur.parent]
		if p.left == cur.index {
			return p
		}
		cur = p
	}
	return nil
}

// Visit every element in tail order, stopping early if visit returns false.
func (t *CompoundTable) Each(visit func(e *CompoundElement) bool) {
	for e := t.First(); e != nil; e = t.Next(e) {
		if !visit(e) {
			return
		}
	}
}

// Make a node-for-node copy owned by another stem. Node indexes are kept, so
// the copy has exactly the same shape. Aliases are resolved into plain values
// since the copy is independent of the frames that exposed the original.
func (t *CompoundTable) Copy(newOwner *Stem) *CompoundTable {
	res := &CompoundTable{newOwner, make([]*CompoundElement, len(t.nodes)), t.root}
	for i, n := range t.nodes {
		c := *n
		c.stem = newOwner
		c.value = n.Value()
		c.real = nil
		res.nodes[i] = &c
	}
	return res
}

// Remove every element. Elements still referenced elsewhere (for instance by
// an alias in another frame) are detached from the tree.
func (t *CompoundTable) Clear() {
	t.nodes = nil
	t.root = noNode
}
