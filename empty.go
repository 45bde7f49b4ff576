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

import "sync"

var (
	emptyTreeOnce sync.Once
	emptyTree     []Node
)

// EmptyTree returns the precomputed chain of empty subtree roots. Entry d
// is the root of a fully empty subtree anchored at depth d, so entry 0 is
// the root of the empty tree and entry MaxTreeLevels is the empty leaf.
// The chain is built once and shared; it is read-only.
func EmptyTree() []Node {
	emptyTreeOnce.Do(initEmptyTree)
	return emptyTree
}

// EmptyTreeRootHash returns the root hash of a tree with no keys inserted.
func EmptyTreeRootHash() NodeHash {
	return EmptyTree()[0].NodeHash()
}

func initEmptyTree() {
	tree := make([]Node, MaxTreeLevels+1)
	tree[MaxTreeLevels] = EmptyLeafNode
	for i := lastBitIndex; i >= 0; i-- {
		tree[i] = NewBranch(tree[i+1], tree[i+1])
	}

	// Force the hashes now so that the first write doesn't pay for 256
	// hash computations.
	tree[0].NodeHash()

	emptyTree = tree
}
