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
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

const (
	// HashSize is the size in bytes of a NodeHash.
	HashSize = 32

	// MaxTreeLevels is the depth of the tree: one level per bit of the
	// 256-bit key.
	MaxTreeLevels = HashSize * 8

	lastBitIndex = MaxTreeLevels - 1

	sumSize = 8
)

// NodeHash is the authenticating hash of a tree node. The all-zero hash is
// a legal value, not a sentinel.
type NodeHash [HashSize]byte

// NewNodeHash returns a NodeHash from a raw byte array.
func NewNodeHash(b [HashSize]byte) NodeHash {
	return NodeHash(b)
}

func (h NodeHash) String() string {
	return hex.EncodeToString(h[:])
}

// Node is a node in the MS-SMT. Every node commits to both a hash and the
// running sum of all leaf sums below it. Nodes are immutable once either
// value has been observed; mutations produce new nodes.
type Node interface {
	// NodeHash returns the hash of the node. The result is memoized, so
	// the recursive computation happens at most once.
	NodeHash() NodeHash

	// NodeSum returns the sum commitment of the node.
	NodeSum() uint64

	// Copy returns a copy of the node. Child references are shared, not
	// duplicated.
	Copy() Node
}

// IsEqualNode reports whether a and b commit to the same hash and sum.
func IsEqualNode(a, b Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.NodeHash() == b.NodeHash() && a.NodeSum() == b.NodeSum()
}

// bitIndex returns bit idx of the key, MSB first: bit 0 is the top bit of
// key[0] and selects the child at depth 0.
func bitIndex(idx int, key *[HashSize]byte) byte {
	return (key[idx>>3] >> (7 - (idx & 7))) & 1
}

// LeafNode holds a key/value pair together with its sum. Leaves only ever
// sit at the bottom of the tree, one key bit consumed per level above them.
type LeafNode struct {
	// nodeHash caches the hash of the leaf after it has been computed
	// once. It is a pure function of the other fields.
	nodeHash *NodeHash

	key   [HashSize]byte
	value []byte
	sum   uint64
}

// NewLeafNode returns a leaf committing to the given key, value and sum.
func NewLeafNode(key [HashSize]byte, value []byte, sum uint64) *LeafNode {
	return &LeafNode{
		key:   key,
		value: value,
		sum:   sum,
	}
}

// NodeHash returns the leaf hash: SHA256(key || value || sum), with the sum
// serialized as big-endian uint64.
func (n *LeafNode) NodeHash() NodeHash {
	if n.nodeHash != nil {
		return *n.nodeHash
	}

	h := sha256.New()
	h.Write(n.key[:])
	h.Write(n.value)
	var sumBytes [sumSize]byte
	binary.BigEndian.PutUint64(sumBytes[:], n.sum)
	h.Write(sumBytes[:])

	nodeHash := NodeHash(*(*[HashSize]byte)(h.Sum(nil)))
	n.nodeHash = &nodeHash
	return nodeHash
}

func (n *LeafNode) NodeSum() uint64 {
	return n.sum
}

// IsEmpty reports whether this is the empty leaf: no value and a zero sum.
func (n *LeafNode) IsEmpty() bool {
	return len(n.value) == 0 && n.sum == 0
}

func (n *LeafNode) Key() [HashSize]byte {
	return n.key
}

func (n *LeafNode) Value() []byte {
	return n.value
}

func (n *LeafNode) Copy() Node {
	value := make([]byte, len(n.value))
	copy(value, n.value)

	c := &LeafNode{
		key:   n.key,
		value: value,
		sum:   n.sum,
	}
	if n.nodeHash != nil {
		nodeHash := *n.nodeHash
		c.nodeHash = &nodeHash
	}
	return c
}

// EmptyLeafNode is the canonical empty leaf, shared by every vacant slot in
// the tree. Its key is all zeros by convention.
var EmptyLeafNode = NewLeafNode([HashSize]byte{}, nil, 0)

// BranchNode is an internal node referencing a left and a right child. Its
// sum is the sum of both children, and its hash commits to the child hashes
// and that sum.
type BranchNode struct {
	nodeHash *NodeHash
	sum      *uint64

	Left  Node
	Right Node
}

// NewBranch returns a branch over the two given children. The engine is
// responsible for rejecting sums that would overflow before a branch is
// persisted; NodeSum itself wraps.
func NewBranch(left, right Node) *BranchNode {
	return &BranchNode{
		Left:  left,
		Right: right,
	}
}

// NodeHash returns SHA256(left_hash || right_hash || sum), with the sum
// serialized as big-endian uint64.
func (n *BranchNode) NodeHash() NodeHash {
	if n.nodeHash != nil {
		return *n.nodeHash
	}

	left := n.Left.NodeHash()
	right := n.Right.NodeHash()

	h := sha256.New()
	h.Write(left[:])
	h.Write(right[:])
	var sumBytes [sumSize]byte
	binary.BigEndian.PutUint64(sumBytes[:], n.NodeSum())
	h.Write(sumBytes[:])

	nodeHash := NodeHash(*(*[HashSize]byte)(h.Sum(nil)))
	n.nodeHash = &nodeHash
	return nodeHash
}

func (n *BranchNode) NodeSum() uint64 {
	if n.sum != nil {
		return *n.sum
	}

	sum := n.Left.NodeSum() + n.Right.NodeSum()
	n.sum = &sum
	return sum
}

func (n *BranchNode) Copy() Node {
	c := &BranchNode{
		Left:  n.Left,
		Right: n.Right,
	}
	if n.nodeHash != nil {
		nodeHash := *n.nodeHash
		c.nodeHash = &nodeHash
	}
	if n.sum != nil {
		sum := *n.sum
		c.sum = &sum
	}
	return c
}

// ComputedNode carries an externally known (hash, sum) pair for a subtree
// whose children are not materialized, e.g. a proof sibling or a node that
// still lives in the store.
type ComputedNode struct {
	hash NodeHash
	sum  uint64
}

// NewComputedNode returns a node committing to an already known hash and sum.
func NewComputedNode(hash NodeHash, sum uint64) ComputedNode {
	return ComputedNode{
		hash: hash,
		sum:  sum,
	}
}

func (n ComputedNode) NodeHash() NodeHash {
	return n.hash
}

func (n ComputedNode) NodeSum() uint64 {
	return n.sum
}

func (n ComputedNode) Copy() Node {
	return n
}
