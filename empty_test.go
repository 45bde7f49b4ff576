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

import "testing"

func TestEmptyTreeShape(t *testing.T) {
	t.Parallel()

	tree := EmptyTree()
	if len(tree) != MaxTreeLevels+1 {
		t.Fatalf("empty tree has %d entries, want %d",
			len(tree), MaxTreeLevels+1)
	}

	if !IsEqualNode(tree[MaxTreeLevels], EmptyLeafNode) {
		t.Fatal("bottom of the empty chain is not the empty leaf")
	}

	for depth := 0; depth < MaxTreeLevels; depth++ {
		branch, ok := tree[depth].(*BranchNode)
		if !ok {
			t.Fatalf("empty tree entry %d is %T, want branch",
				depth, tree[depth])
		}
		if branch.Left != tree[depth+1] || branch.Right != tree[depth+1] {
			t.Fatalf("empty branch at depth %d does not share "+
				"the entry below it", depth)
		}
		if branch.NodeSum() != 0 {
			t.Fatalf("empty branch at depth %d has sum %d",
				depth, branch.NodeSum())
		}
	}
}

func TestEmptyTreeHashesChain(t *testing.T) {
	t.Parallel()

	tree := EmptyTree()
	for depth := 0; depth < MaxTreeLevels; depth++ {
		want := NewBranch(tree[depth+1], tree[depth+1]).NodeHash()
		if tree[depth].NodeHash() != want {
			t.Fatalf("empty hash at depth %d does not commit to "+
				"two copies of depth %d", depth, depth+1)
		}
	}

	if EmptyTreeRootHash() != tree[0].NodeHash() {
		t.Fatal("root hash helper disagrees with the chain")
	}
}

func TestEmptyTreeIsShared(t *testing.T) {
	t.Parallel()

	// Repeated calls return the very same slice; the chain is built once.
	a, b := EmptyTree(), EmptyTree()
	if &a[0] != &b[0] {
		t.Fatal("empty tree rebuilt between calls")
	}
}
