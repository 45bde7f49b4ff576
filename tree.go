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

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	// ErrSumOverflow is returned when an insert would push a branch sum
	// past the maximum uint64 value. The mutation is aborted before the
	// root is updated, so the tree stays at its prior committed root.
	ErrSumOverflow = errors.New("mssmt: branch sum overflows uint64")

	// ErrInvalidProof is returned by the batch verifier for a proof that
	// does not reconstruct the expected root.
	ErrInvalidProof = errors.New("mssmt: invalid merkle proof")

	errNodeNotFound = errors.New("mssmt: node not found in store")
)

// FullTree is an MS-SMT that materializes every branch on an inserted path,
// all the way down to the leaf level. Mutations are functional: each write
// produces a fresh path of nodes sharing everything else with the previous
// tree, persists them bottom-up, and swaps the store's root pointer last.
//
// The engine itself is synchronous and holds no mutable state; concurrent
// writers must be serialized by the caller.
type FullTree struct {
	store TreeStore
}

// NewFullTree returns an MS-SMT backed by the given store.
func NewFullTree(store TreeStore) *FullTree {
	return &FullTree{
		store: store,
	}
}

// Root returns the current root node, committing to the hash of the whole
// tree and the sum of all inserted leaves.
func (t *FullTree) Root() (Node, error) {
	return t.store.RootNode()
}

// newCheckedBranch builds a branch over the two children, rejecting sums
// that no longer fit in a uint64.
func newCheckedBranch(left, right Node) (*BranchNode, error) {
	sum, carry := bits.Add64(left.NodeSum(), right.NodeSum(), 0)
	if carry != 0 {
		return nil, ErrSumOverflow
	}

	branch := NewBranch(left, right)
	branch.sum = &sum
	return branch, nil
}

// isEmptySubtree reports whether the node commits to the fully empty
// subtree anchored at the given depth.
func isEmptySubtree(node Node, depth int) bool {
	return node.NodeHash() == EmptyTree()[depth].NodeHash()
}

// resolveNode exchanges a computed stand-in for the stored node it refers
// to. Stand-ins for empty subtrees resolve against the precomputed chain
// without touching the store.
func (t *FullTree) resolveNode(node Node, depth int) (Node, error) {
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

	leaf, err := t.store.GetLeaf(hash)
	if err != nil {
		return nil, err
	}
	if leaf != nil {
		return leaf, nil
	}

	return nil, fmt.Errorf("%w: %v", errNodeNotFound, hash)
}

// Insert puts the (value, sum) pair at the given key, replacing whatever
// the slot held before. Inserting an empty value with a zero sum is the
// same as deleting the key.
func (t *FullTree) Insert(key [HashSize]byte, value []byte, sum uint64) error {
	leaf := NewLeafNode(key, value, sum)
	if leaf.IsEmpty() {
		leaf = EmptyLeafNode
	}
	return t.insert(&key, leaf)
}

// Delete clears the slot at the given key. Deleting an absent key leaves
// the root untouched.
func (t *FullTree) Delete(key [HashSize]byte) error {
	return t.insert(&key, EmptyLeafNode)
}

func (t *FullTree) insert(key *[HashSize]byte, leaf *LeafNode) error {
	root, err := t.store.RootNode()
	if err != nil {
		return err
	}

	newRoot, err := t.insertAt(root, 0, key, leaf)
	if err != nil {
		return err
	}

	// Nothing changed, e.g. a delete of an absent key. Skip the root
	// rewrite.
	if IsEqualNode(newRoot, root) {
		return nil
	}

	return t.store.UpdateRoot(newRoot)
}

// insertAt descends along the key's bits and rebuilds the path with the new
// leaf at the bottom. Passing the empty leaf turns the walk into a delete:
// branches whose children both end up empty collapse back into the
// precomputed empty subtree for their depth, so purely empty subtrees are
// never persisted.
func (t *FullTree) insertAt(node Node, depth int, key *[HashSize]byte,
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

	switch n := node.(type) {
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

		branch, err := newCheckedBranch(left, right)
		if err != nil {
			return nil, err
		}
		if err := t.store.InsertBranch(branch); err != nil {
			return nil, err
		}
		return branch, nil

	case *LeafNode:
		// A leaf above the bottom level is either the empty stand-in
		// for the whole subtree, or a single occupant handed back by
		// the store. The empty case descends through the precomputed
		// chain; the occupied case re-anchors both leaves below their
		// first diverging bit.
		if n.IsEmpty() {
			return t.insertAt(EmptyTree()[depth], depth, key, leaf)
		}
		return t.splitLeaf(n, depth, key, leaf)

	default:
		return nil, fmt.Errorf("%w: unexpected node %v at depth %d",
			errNodeNotFound, node.NodeHash(), depth)
	}
}

// splitLeaf inserts a new leaf into a subtree occupied by a single existing
// leaf. Both leaves are re-inserted into the empty subtree at this depth,
// which builds pass-through branches for every bit the keys share and a
// forking branch at the first bit where they differ.
func (t *FullTree) splitLeaf(existing *LeafNode, depth int,
	key *[HashSize]byte, leaf *LeafNode) (Node, error) {

	existingKey := existing.Key()

	sub := EmptyTree()[depth]
	if existingKey != *key {
		var err error
		sub, err = t.insertAt(sub, depth, &existingKey, existing)
		if err != nil {
			return nil, err
		}
	}

	return t.insertAt(sub, depth, key, leaf)
}

// Get returns the value and sum stored at the given key. An absent key
// yields a nil value and a zero sum: the empty pair is by definition what
// an untouched slot holds.
func (t *FullTree) Get(key [HashSize]byte) ([]byte, uint64, error) {
	node, err := t.store.RootNode()
	if err != nil {
		return nil, 0, err
	}

	for depth := 0; depth < MaxTreeLevels; depth++ {
		node, err = t.resolveNode(node, depth)
		if err != nil {
			return nil, 0, err
		}

		branch, ok := node.(*BranchNode)
		if !ok {
			// The subtree holds no branches: either fully empty,
			// or a lone leaf parked above the bottom.
			if leaf, ok := node.(*LeafNode); ok {
				if !leaf.IsEmpty() && leaf.Key() == key {
					return leaf.Value(), leaf.NodeSum(), nil
				}
			}
			return nil, 0, nil
		}

		if bitIndex(depth, &key) == 0 {
			node = branch.Left
		} else {
			node = branch.Right
		}
	}

	node, err = t.resolveNode(node, MaxTreeLevels)
	if err != nil {
		return nil, 0, err
	}

	leaf, ok := node.(*LeafNode)
	if !ok || leaf.IsEmpty() || leaf.Key() != key {
		return nil, 0, nil
	}
	return leaf.Value(), leaf.NodeSum(), nil
}

// MerkleProof returns the inclusion (or, for an absent key, exclusion)
// proof for the given key: the sibling at every one of the 256 levels along
// the key's path, root side first. Siblings are snapshotted as computed
// nodes, so the proof carries exactly one (hash, sum) pair per level.
func (t *FullTree) MerkleProof(key [HashSize]byte) (*Proof, error) {
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

		branch, ok := node.(*BranchNode)
		if !ok {
			// No branches below this point: every remaining
			// sibling is an empty subtree.
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
