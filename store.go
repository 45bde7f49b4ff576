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

// TreeStore is the persistence contract of the tree. It is content
// addressed: the primary key of every record is the node's own hash, which
// makes inserts idempotent. The store does not enforce referential
// integrity; the tree engine persists every new node on a write path before
// it updates the root, and updates the root last.
//
// Get* calls return a nil node (and a nil error) when no node with the
// given hash is stored. Delete* calls succeed when the hash is absent.
type TreeStore interface {
	// RootNode returns the persisted root, or the root of the empty tree
	// if no root was ever set.
	RootNode() (Node, error)

	// GetBranch fetches a previously inserted branch by its hash.
	GetBranch(hash NodeHash) (*BranchNode, error)

	// GetLeaf fetches a previously inserted leaf by its hash.
	GetLeaf(hash NodeHash) (*LeafNode, error)

	// GetCompactedLeaf fetches a previously inserted compacted leaf by
	// its (compacted) hash.
	GetCompactedLeaf(hash NodeHash) (*CompactedLeafNode, error)

	// InsertBranch persists a branch keyed by its hash.
	InsertBranch(branch *BranchNode) error

	// InsertLeaf persists a leaf keyed by its hash.
	InsertLeaf(leaf *LeafNode) error

	// InsertCompactedLeaf persists a compacted leaf keyed by its
	// compacted hash.
	InsertCompactedLeaf(leaf *CompactedLeafNode) error

	// DeleteBranch removes the branch with the given hash.
	DeleteBranch(hash NodeHash) error

	// DeleteLeaf removes the leaf with the given hash.
	DeleteLeaf(hash NodeHash) error

	// DeleteCompactedLeaf removes the compacted leaf with the given hash.
	DeleteCompactedLeaf(hash NodeHash) error

	// UpdateRoot atomically replaces the root pointer, the single
	// mutable cell the store exposes.
	UpdateRoot(root Node) error
}

// DefaultStore is the in-memory reference implementation of TreeStore: three
// hash-keyed maps (branches, leaves, compacted leaves) plus the root
// pointer. It performs no I/O and never returns an error.
type DefaultStore struct {
	branches        map[NodeHash]*BranchNode
	leaves          map[NodeHash]*LeafNode
	compactedLeaves map[NodeHash]*CompactedLeafNode

	root Node
}

var _ TreeStore = (*DefaultStore)(nil)

// NewDefaultStore returns an empty in-memory store.
func NewDefaultStore() *DefaultStore {
	return &DefaultStore{
		branches:        make(map[NodeHash]*BranchNode),
		leaves:          make(map[NodeHash]*LeafNode),
		compactedLeaves: make(map[NodeHash]*CompactedLeafNode),
	}
}

// NumBranches returns the number of stored branches.
func (s *DefaultStore) NumBranches() int {
	return len(s.branches)
}

// NumLeaves returns the number of stored leaves.
func (s *DefaultStore) NumLeaves() int {
	return len(s.leaves)
}

// NumCompactedLeaves returns the number of stored compacted leaves.
func (s *DefaultStore) NumCompactedLeaves() int {
	return len(s.compactedLeaves)
}

func (s *DefaultStore) RootNode() (Node, error) {
	if s.root == nil {
		return EmptyTree()[0], nil
	}
	return s.root, nil
}

func (s *DefaultStore) GetBranch(hash NodeHash) (*BranchNode, error) {
	return s.branches[hash], nil
}

func (s *DefaultStore) GetLeaf(hash NodeHash) (*LeafNode, error) {
	return s.leaves[hash], nil
}

func (s *DefaultStore) GetCompactedLeaf(hash NodeHash) (*CompactedLeafNode, error) {
	return s.compactedLeaves[hash], nil
}

func (s *DefaultStore) InsertBranch(branch *BranchNode) error {
	s.branches[branch.NodeHash()] = branch
	return nil
}

func (s *DefaultStore) InsertLeaf(leaf *LeafNode) error {
	s.leaves[leaf.NodeHash()] = leaf
	return nil
}

func (s *DefaultStore) InsertCompactedLeaf(leaf *CompactedLeafNode) error {
	s.compactedLeaves[leaf.NodeHash()] = leaf
	return nil
}

func (s *DefaultStore) DeleteBranch(hash NodeHash) error {
	delete(s.branches, hash)
	return nil
}

func (s *DefaultStore) DeleteLeaf(hash NodeHash) error {
	delete(s.leaves, hash)
	return nil
}

func (s *DefaultStore) DeleteCompactedLeaf(hash NodeHash) error {
	delete(s.compactedLeaves, hash)
	return nil
}

func (s *DefaultStore) UpdateRoot(root Node) error {
	s.root = root
	return nil
}
