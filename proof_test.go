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
	"testing"
)

// provenTree builds a small tree and hands back its root hash.
func provenTree(t *testing.T) (testTree, NodeHash) {
	t.Helper()

	tree := NewFullTree(NewDefaultStore())
	mustInsert(t, tree, "key1", "value1", 10)
	mustInsert(t, tree, "key2", "value2", 20)
	mustInsert(t, tree, "key3", "value3", 30)

	return tree, rootOf(t, tree).NodeHash()
}

func TestProofRootReconstruction(t *testing.T) {
	t.Parallel()

	tree, rootHash := provenTree(t)

	key := hashKey("key1")
	proof, err := tree.MerkleProof(key)
	if err != nil {
		t.Fatalf("error generating proof: %v", err)
	}

	leaf := NewLeafNode(key, []byte("value1"), 10)
	reconstructed := proof.Root(key, leaf)

	if reconstructed.NodeHash() != rootHash {
		t.Fatalf("reconstructed root %v != %v",
			reconstructed.NodeHash(), rootHash)
	}

	// The reconstruction also carries the total sum, not just the hash.
	if reconstructed.NodeSum() != 60 {
		t.Fatalf("reconstructed sum %d != 60", reconstructed.NodeSum())
	}
}

func TestProofNonForgeability(t *testing.T) {
	t.Parallel()

	tree, rootHash := provenTree(t)

	key := hashKey("key1")
	proof, err := tree.MerkleProof(key)
	if err != nil {
		t.Fatalf("error generating proof: %v", err)
	}

	for _, forged := range []*LeafNode{
		NewLeafNode(key, []byte("value1x"), 10),
		NewLeafNode(key, []byte("value1"), 11),
		NewLeafNode(key, nil, 10),
		EmptyLeafNode,
	} {
		if proof.Verify(key, forged, rootHash) {
			t.Fatalf("forged leaf (%q, %d) verified",
				forged.Value(), forged.NodeSum())
		}
	}

	// The right leaf under the wrong key fails too.
	leaf := NewLeafNode(key, []byte("value1"), 10)
	if proof.Verify(hashKey("key2"), leaf, rootHash) {
		t.Fatal("proof verified under the wrong key")
	}
}

func TestProofOfAbsence(t *testing.T) {
	t.Parallel()

	tree, rootHash := provenTree(t)

	key := hashKey("key4")
	proof, err := tree.MerkleProof(key)
	if err != nil {
		t.Fatalf("error generating proof: %v", err)
	}

	if !proof.Verify(key, EmptyLeafNode, rootHash) {
		t.Fatal("absence proof does not verify")
	}

	// An absent slot holds nothing else.
	if proof.Verify(key, NewLeafNode(key, []byte("x"), 1), rootHash) {
		t.Fatal("occupied-slot proof verified for an absent key")
	}
}

func TestProofMalformedLength(t *testing.T) {
	t.Parallel()

	tree, rootHash := provenTree(t)

	key := hashKey("key1")
	proof, err := tree.MerkleProof(key)
	if err != nil {
		t.Fatalf("error generating proof: %v", err)
	}

	leaf := NewLeafNode(key, []byte("value1"), 10)

	truncated := NewProof(proof.Nodes[:MaxTreeLevels-1])
	if truncated.Verify(key, leaf, rootHash) {
		t.Fatal("truncated proof verified")
	}

	extended := NewProof(append(proof.Copy().Nodes, EmptyLeafNode))
	if extended.Verify(key, leaf, rootHash) {
		t.Fatal("overlong proof verified")
	}
}

func TestProofCompression(t *testing.T) {
	t.Parallel()

	tree, rootHash := provenTree(t)

	for _, name := range []string{"key1", "key4"} {
		key := hashKey(name)
		proof, err := tree.MerkleProof(key)
		if err != nil {
			t.Fatalf("error generating proof: %v", err)
		}

		compressed := proof.Compress()

		// Three keys split at a handful of bits near the top; nearly
		// every sibling collapses into the bitmap.
		if len(compressed.Nodes) >= 16 {
			t.Fatalf("compressed proof for %s still carries %d "+
				"nodes", name, len(compressed.Nodes))
		}

		decompressed, err := compressed.Decompress()
		if err != nil {
			t.Fatalf("error decompressing: %v", err)
		}
		if len(decompressed.Nodes) != MaxTreeLevels {
			t.Fatalf("decompressed proof has %d siblings",
				len(decompressed.Nodes))
		}

		for i := range proof.Nodes {
			if !IsEqualNode(proof.Nodes[i], decompressed.Nodes[i]) {
				t.Fatalf("sibling %d lost in the compression "+
					"round trip", i)
			}
		}

		var leaf *LeafNode = EmptyLeafNode
		if name == "key1" {
			leaf = NewLeafNode(key, []byte("value1"), 10)
		}
		if !decompressed.Verify(key, leaf, rootHash) {
			t.Fatalf("decompressed proof for %s does not verify",
				name)
		}
	}
}

func TestCompressedProofValidation(t *testing.T) {
	t.Parallel()

	tree, _ := provenTree(t)

	proof, err := tree.MerkleProof(hashKey("key1"))
	if err != nil {
		t.Fatalf("error generating proof: %v", err)
	}
	compressed := proof.Compress()

	// Dropping a node without clearing its bit breaks the node count.
	short := &CompressedProof{
		Bits:  compressed.Bits,
		Nodes: compressed.Nodes[:len(compressed.Nodes)-1],
	}
	if _, err := short.Decompress(); !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("got %v, want ErrInvalidProof", err)
	}

	// A bitmap without the full width, here no bitmap at all, is rejected
	// outright.
	narrow := &CompressedProof{
		Bits:  nil,
		Nodes: compressed.Nodes,
	}
	if _, err := narrow.Decompress(); !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("got %v, want ErrInvalidProof", err)
	}
}

func TestVerifyMerkleProofsBatch(t *testing.T) {
	t.Parallel()

	tree, rootHash := provenTree(t)

	var (
		keys   [][HashSize]byte
		leaves []*LeafNode
		proofs []*Proof
	)
	for i, name := range []string{"key1", "key2", "key3"} {
		key := hashKey(name)
		proof, err := tree.MerkleProof(key)
		if err != nil {
			t.Fatalf("error generating proof: %v", err)
		}
		keys = append(keys, key)
		leaves = append(leaves, NewLeafNode(
			key, []byte(fmt.Sprintf("value%d", i+1)),
			uint64(10*(i+1)),
		))
		proofs = append(proofs, proof)
	}

	if err := VerifyMerkleProofs(rootHash, keys, leaves, proofs); err != nil {
		t.Fatalf("valid batch rejected: %v", err)
	}

	// Corrupt one leaf; the batch must fail with the invalid-proof error.
	leaves[1] = NewLeafNode(keys[1], []byte("value2"), 21)
	err := VerifyMerkleProofs(rootHash, keys, leaves, proofs)
	if !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("got %v, want ErrInvalidProof", err)
	}

	// Mismatched slice lengths are rejected before any verification.
	err = VerifyMerkleProofs(rootHash, keys[:2], leaves, proofs)
	if !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("got %v, want ErrInvalidProof", err)
	}
}
