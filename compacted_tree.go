// This is free and unencumbered software released into the public domain.
//
// Anyone is free to copy, modify, publish, use, compile, sell, or
// distribute this software, either in source code form or as a compiled
// binary, for any purpose, commercial or non-commercial, and by any
// means.
//
// In jurisdictions that recognize copyright laws, the author or authors
// of this software dedicate any and all copyright interest in the
// software to the public domain. We make this dedication for the benefit
// of the public at large and to the detriment of our heirs and
// successors. We intend this dedication to be an overt act of
// relinquishment in perpetuity of all present and future rights to this
// software under copyright law.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
// EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
// MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
// IN NO EVENT SHALL THE AUTHORS BE LIABLE FOR ANY CLAIM, DAMAGES OR
// OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE,
// ARISING FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR
// OTHER DEALINGS IN THE SOFTWARE.
//
// For more information, please refer to <https://unlicense.org>

package mssmt

import "fmt"

// CompactedTree is an MS-SMT that collapses every empty-sided chain of
// branches leading down to a single leaf into one compacted leaf carrying
// its insertion depth. Roots, sums and proofs are bit-for-bit identical to a
// FullTree holding the same content; only the number of nodes hitting the
// store changes: branches are stored from the root down to the bit where a
// path's keys diverge (pass-through branches above a fork included), not on
// all 256 levels.
type CompactedTree struct {
	store TreeStore
}

// NewCompactedTree returns a compacted MS-SMT backed by the given store.
func NewCompactedTree(store TreeStore) *CompactedTree {
	return &CompactedTree{
		store: store,
	}
}

// Root returns the current root node.
func (t *CompactedTree) Root() (Node, error) {
	return t.store.RootNode()
}

// resolveNode exchanges a computed stand-in for the stored node it refers
// to, trying branches first, then compacted leaves, then plain leaves.
func (t *CompactedTree) resolveNode(node Node, depth int) (Node, error) {
	computed, ok := node.(ComputedNode)
	if !ok {
		return node, nil
	}

	hash := computed.NodeHash()
	if hash == EmptyTree()[depth].NodeHash() {
		return EmptyTree()[depth], nil
	}

	branch, err := t.store.GetBranch(hash)
	if err != nil {
		return nil, err
	}
	if branch != nil {
		return branch, nil
	}

	compacted, err := t.store.GetCompactedLeaf(hash)
	if err != nil {
		return nil, err
	}
	if compacted != nil {
		return compacted, nil
	}

	leaf, err := t.store.GetLeaf(hash)
	if err != nil {
		return nil, err
	}
	if leaf != nil {
		return leaf, nil
	}

	return nil, fmt.Errorf("%w: %v", errNodeNotFound, hash)
}

// Insert puts the (value, sum) pair at the given key. Inserting an empty
// value with a zero sum is the same as deleting the key.
func (t *CompactedTree) Insert(key [HashSize]byte, value []byte,
	sum uint64) error {

	leaf := NewLeafNode(key, value, sum)
	if leaf.IsEmpty() {
		leaf = EmptyLeafNode
	}
	return t.insert(&key, leaf)
}

// Delete clears the slot at the given key. Deleting an absent key leaves
// the root untouched.
func (t *CompactedTree) Delete(key [HashSize]byte) error {
	return t.insert(&key, EmptyLeafNode)
}

func (t *CompactedTree) insert(key *[HashSize]byte, leaf *LeafNode) error {
	root, err := t.store.RootNode()
	if err != nil {
		return err
	}

	newRoot, err := t.insertAt(root, 0, key, leaf)
	if err != nil {
		return err
	}

	if IsEqualNode(newRoot, root) {
		return nil
	}

	return t.store.UpdateRoot(newRoot)
}

func (t *CompactedTree) insertAt(node Node, depth int, key *[HashSize]byte,
	leaf *LeafNode) (Node, error) {

	node, err := t.resolveNode(node, depth)
	if err != nil {
		return nil, err
	}

	if depth == MaxTreeLevels {
		if leaf.IsEmpty() {
			if old, ok := node.(*LeafNode); ok && !old.IsEmpty() {
				err := t.store.DeleteLeaf(old.NodeHash())
				if err != nil {
					return nil, err
				}
			}
			return EmptyLeafNode, nil
		}

		if err := t.store.InsertLeaf(leaf); err != nil {
			return nil, err
		}
		return leaf, nil
	}

	// An untouched subtree takes the new leaf as a single compacted
	// occupant, no intermediate branches needed.
	if isEmptySubtree(node, depth) {
		if leaf.IsEmpty() {
			return EmptyTree()[depth], nil
		}

		compacted := NewCompactedLeafNode(depth, leaf)
		if err := t.store.InsertCompactedLeaf(compacted); err != nil {
			return nil, err
		}
		return compacted, nil
	}

	switch n := node.(type) {
	case *CompactedLeafNode:
		if n.Key() == *key {
			if leaf.IsEmpty() {
				err := t.store.DeleteCompactedLeaf(n.NodeHash())
				if err != nil {
					return nil, err
				}
				return EmptyTree()[depth], nil
			}

			compacted := NewCompactedLeafNode(depth, leaf)
			err := t.store.InsertCompactedLeaf(compacted)
			if err != nil {
				return nil, err
			}
			return compacted, nil
		}

		// The occupant stays where it is when the key being deleted
		// isn't here.
		if leaf.IsEmpty() {
			return n, nil
		}

		return t.merge(n, depth, key, leaf)

	case *BranchNode:
		left, right := n.Left, n.Right
		if bitIndex(depth, key) == 0 {
			left, err = t.insertAt(left, depth+1, key, leaf)
		} else {
			right, err = t.insertAt(right, depth+1, key, leaf)
		}
		if err != nil {
			return nil, err
		}

		if isEmptySubtree(left, depth+1) && isEmptySubtree(right, depth+1) {
			return EmptyTree()[depth], nil
		}

		// After a delete the branch may be left holding a single
		// occupant against an empty sibling; re-anchor the occupant
		// here to keep the tree compact. A branch occupant stays put,
		// it has its own diverging keys below.
		if leaf.IsEmpty() {
			var lone Node
			switch {
			case isEmptySubtree(left, depth+1):
				lone = right
			case isEmptySubtree(right, depth+1):
				lone = left
			}

			if lone != nil {
				lifted, err := t.liftLone(lone, depth)
				if err != nil {
					return nil, err
				}
				if lifted != nil {
					return lifted, nil
				}
			}
		}

		branch, err := newCheckedBranch(left, right)
		if err != nil {
			return nil, err
		}
		if err := t.store.InsertBranch(branch); err != nil {
			return nil, err
		}
		return branch, nil

	default:
		return nil, fmt.Errorf("%w: unexpected node %v at depth %d",
			errNodeNotFound, node.NodeHash(), depth)
	}
}

// merge splits the subtree occupied by a single compacted leaf so that it
// can also hold the new leaf. The two occupants end up compacted right
// below the first bit where their keys diverge, with pass-through branches
// pairing empty subtrees on every level above it.
func (t *CompactedTree) merge(old *CompactedLeafNode, depth int,
	key *[HashSize]byte, leaf *LeafNode) (Node, error) {

	oldKey := old.Key()

	// The keys differ, so a diverging bit exists before the bottom.
	divergence := depth
	for bitIndex(divergence, key) == bitIndex(divergence, &oldKey) {
		divergence++
	}

	var newChild, oldChild Node
	if divergence == lastBitIndex {
		// The fork sits right above the leaf level, so both occupants
		// land in their final slots as plain leaves.
		if err := t.store.InsertLeaf(leaf); err != nil {
			return nil, err
		}
		if err := t.store.InsertLeaf(old.Leaf()); err != nil {
			return nil, err
		}
		newChild, oldChild = leaf, old.Leaf()
	} else {
		newCompacted := NewCompactedLeafNode(divergence+1, leaf)
		err := t.store.InsertCompactedLeaf(newCompacted)
		if err != nil {
			return nil, err
		}
		oldCompacted := NewCompactedLeafNode(divergence+1, old.Leaf())
		err = t.store.InsertCompactedLeaf(oldCompacted)
		if err != nil {
			return nil, err
		}
		newChild, oldChild = newCompacted, oldCompacted
	}

	var left, right Node
	if bitIndex(divergence, key) == 0 {
		left, right = newChild, oldChild
	} else {
		left, right = oldChild, newChild
	}

	current, err := newCheckedBranch(left, right)
	if err != nil {
		return nil, err
	}
	if err := t.store.InsertBranch(current); err != nil {
		return nil, err
	}

	for d := divergence - 1; d >= depth; d-- {
		var parent *BranchNode
		if bitIndex(d, key) == 0 {
			parent, err = newCheckedBranch(current, EmptyTree()[d+1])
		} else {
			parent, err = newCheckedBranch(EmptyTree()[d+1], current)
		}
		if err != nil {
			return nil, err
		}
		if err := t.store.InsertBranch(parent); err != nil {
			return nil, err
		}
		current = parent
	}

	return current, nil
}

// liftLone re-anchors the only occupant of a half-empty branch one level
// up, at the given depth. The occupant's commitment is unchanged: a
// compacted leaf hashes as if padded with the very empty siblings the
// branch spelled out. Returns nil when the occupant is itself a branch,
// which has to stay at its own depth.
func (t *CompactedTree) liftLone(node Node, depth int) (Node, error) {
	node, err := t.resolveNode(node, depth+1)
	if err != nil {
		return nil, err
	}

	switch n := node.(type) {
	case *CompactedLeafNode:
		err := t.store.DeleteCompactedLeaf(n.NodeHash())
		if err != nil {
			return nil, err
		}

		lifted := liftCompactedLeaf(n, depth)
		if err := t.store.InsertCompactedLeaf(lifted); err != nil {
			return nil, err
		}
		return lifted, nil

	case *LeafNode:
		// A plain leaf at the bottom whose sibling was just cleared.
		if err := t.store.DeleteLeaf(n.NodeHash()); err != nil {
			return nil, err
		}

		lifted := NewCompactedLeafNode(depth, n)
		if err := t.store.InsertCompactedLeaf(lifted); err != nil {
			return nil, err
		}
		return lifted, nil

	default:
		return nil, nil
	}
}

// liftCompactedLeaf re-anchors a compacted leaf one level higher. Only a
// single branch hash is needed: the leaf's current commitment already
// covers everything below depth+1, so the new commitment pairs it with the
// empty subtree on the other side of its key bit at depth.
func liftCompactedLeaf(leaf *CompactedLeafNode,
	depth int) *CompactedLeafNode {

	key := leaf.Key()

	var parent *BranchNode
	if bitIndex(depth, &key) == 0 {
		parent = NewBranch(leaf, EmptyTree()[depth+1])
	} else {
		parent = NewBranch(EmptyTree()[depth+1], leaf)
	}

	return &CompactedLeafNode{
		LeafNode:          leaf.LeafNode,
		height:            depth,
		compactedNodeHash: parent.NodeHash(),
	}
}

// Get returns the value and sum stored at the given key. An absent key
// yields a nil value and a zero sum.
func (t *CompactedTree) Get(key [HashSize]byte) ([]byte, uint64, error) {
	node, err := t.store.RootNode()
	if err != nil {
		return nil, 0, err
	}
	return t.getAt(node, 0, &key)
}

func (t *CompactedTree) getAt(node Node, depth int,
	key *[HashSize]byte) ([]byte, uint64, error) {

	node, err := t.resolveNode(node, depth)
	if err != nil {
		return nil, 0, err
	}

	if isEmptySubtree(node, depth) {
		return nil, 0, nil
	}

	switch n := node.(type) {
	case *CompactedLeafNode:
		if n.Key() == *key {
			return n.Value(), n.Leaf().NodeSum(), nil
		}
		return nil, 0, nil

	case *LeafNode:
		if n.Key() == *key && !n.IsEmpty() {
			return n.Value(), n.NodeSum(), nil
		}
		return nil, 0, nil

	case *BranchNode:
		if bitIndex(depth, key) == 0 {
			return t.getAt(n.Left, depth+1, key)
		}
		return t.getAt(n.Right, depth+1, key)

	default:
		return nil, 0, fmt.Errorf("%w: unexpected node %v at depth %d",
			errNodeNotFound, node.NodeHash(), depth)
	}
}

// MerkleProof returns the inclusion (or exclusion) proof for the given key.
// Compacted leaves along the walk are extracted back into their notional
// branch chains, so the proof is indistinguishable from one generated by a
// FullTree over the same content: exactly 256 siblings, root side first.
func (t *CompactedTree) MerkleProof(key [HashSize]byte) (*Proof, error) {
	node, err := t.store.RootNode()
	if err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, MaxTreeLevels)
	for depth := 0; depth < MaxTreeLevels; depth++ {
		node, err = t.resolveNode(node, depth)
		if err != nil {
			return nil, err
		}

		if compacted, ok := node.(*CompactedLeafNode); ok {
			node = compacted.Extract(depth)
		}

		branch, ok := node.(*BranchNode)
		if !ok {
			for d := depth; d < MaxTreeLevels; d++ {
				nodes = append(nodes, EmptyTree()[d+1])
			}
			break
		}

		var sibling Node
		if bitIndex(depth, &key) == 0 {
			sibling, node = branch.Right, branch.Left
		} else {
			sibling, node = branch.Left, branch.Right
		}
		nodes = append(nodes, NewComputedNode(
			sibling.NodeHash(), sibling.NodeSum(),
		))
	}

	return NewProof(nodes), nil
}
