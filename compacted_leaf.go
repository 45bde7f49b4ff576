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

// CompactedLeafNode stands in for the subtree obtained by padding a single
// leaf up to the bottom of the tree with empty siblings. It commits to the
// exact same hash and sum as that subtree, so collapsing a chain of
// empty-sided branches into one compacted leaf is invisible to the root.
type CompactedLeafNode struct {
	*LeafNode

	height int

	// compactedNodeHash is the hash of the notional subtree rooted at
	// height, computed once at construction.
	compactedNodeHash NodeHash
}

// NewCompactedLeafNode compacts the given leaf at the given height. The
// stand-in hash is derived by walking the leaf's key bits from the bottom
// of the tree back up to height, pairing with empty subtrees along the way.
func NewCompactedLeafNode(height int, leaf *LeafNode) *CompactedLeafNode {
	key := leaf.Key()

	var current Node = leaf
	for i := lastBitIndex; i >= height; i-- {
		if bitIndex(i, &key) == 0 {
			current = NewBranch(current, EmptyTree()[i+1])
		} else {
			current = NewBranch(EmptyTree()[i+1], current)
		}
	}

	return &CompactedLeafNode{
		LeafNode:          leaf,
		height:            height,
		compactedNodeHash: current.NodeHash(),
	}
}

// NodeHash returns the hash of the padded subtree this leaf stands in for.
func (n *CompactedLeafNode) NodeHash() NodeHash {
	return n.compactedNodeHash
}

// Height returns the depth at which the compacted leaf is anchored.
func (n *CompactedLeafNode) Height() int {
	return n.height
}

// Leaf returns the underlying leaf node.
func (n *CompactedLeafNode) Leaf() *LeafNode {
	return n.LeafNode
}

// Extract materializes the subtree the compacted leaf stands in for, rooted
// at the given height. The returned node is a chain of branches with empty
// siblings ending in the plain leaf.
func (n *CompactedLeafNode) Extract(height int) Node {
	key := n.Key()

	var current Node = n.LeafNode
	for i := lastBitIndex; i >= height; i-- {
		if bitIndex(i, &key) == 0 {
			current = NewBranch(current, EmptyTree()[i+1])
		} else {
			current = NewBranch(EmptyTree()[i+1], current)
		}
	}
	return current
}

func (n *CompactedLeafNode) Copy() Node {
	return &CompactedLeafNode{
		LeafNode:          n.LeafNode.Copy().(*LeafNode),
		height:            n.height,
		compactedNodeHash: n.compactedNodeHash,
	}
}
