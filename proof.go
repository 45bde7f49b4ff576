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
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/sync/errgroup"
)

// Proof is a merkle inclusion/exclusion proof: the sibling at every level
// along a key's path from the root down to its leaf slot. Nodes[0] is the
// depth-0 sibling; verification consumes the list in reverse. Only the
// (hash, sum) pair of each sibling is used, which is all a verifier needs to
// rebuild the branches on the path; siblings are computed nodes or, for
// empty subtrees, the precomputed EmptyTree entries.
type Proof struct {
	// Nodes contains exactly MaxTreeLevels sibling nodes, root side
	// first.
	Nodes []Node
}

// NewProof returns a proof over the given sibling nodes.
func NewProof(nodes []Node) *Proof {
	return &Proof{
		Nodes: nodes,
	}
}

// Root rebuilds the root node committed to by this proof for the given
// (key, leaf) pair. No store is involved: every branch on the path is
// reconstructed from the leaf and the sibling snapshots alone, sums
// included.
func (p *Proof) Root(key [HashSize]byte, leaf *LeafNode) Node {
	var current Node = leaf
	for i := lastBitIndex; i >= 0; i-- {
		if bitIndex(i, &key) == 0 {
			current = NewBranch(current, p.Nodes[i])
		} else {
			current = NewBranch(p.Nodes[i], current)
		}
	}
	return current
}

// Verify reports whether the proof places the given leaf at the given key
// under the expected root hash. Use EmptyLeafNode as the leaf to prove that
// a key is absent. A malformed proof verifies as false, it never panics.
func (p *Proof) Verify(key [HashSize]byte, leaf *LeafNode,
	rootHash NodeHash) bool {

	if len(p.Nodes) != MaxTreeLevels {
		return false
	}
	return p.Root(key, leaf).NodeHash() == rootHash
}

// Copy returns a copy of the proof sharing its sibling references.
func (p *Proof) Copy() *Proof {
	nodes := make([]Node, len(p.Nodes))
	copy(nodes, p.Nodes)
	return NewProof(nodes)
}

// Compress drops every sibling that is a precomputed empty subtree,
// keeping a per-level bitmap of which ones were dropped. Sparse trees
// yield proofs that are almost entirely empty siblings, so this shrinks
// the proof from 256 nodes to roughly log2 of the number of keys.
func (p *Proof) Compress() *CompressedProof {
	var (
		compacted = make([]Node, 0, len(p.Nodes))
		bits      = bitset.New(uint(len(p.Nodes)))
	)

	for i, node := range p.Nodes {
		// The sibling at index i roots a subtree at depth i+1.
		if node.NodeHash() == EmptyTree()[i+1].NodeHash() {
			bits.Set(uint(i))
			continue
		}
		compacted = append(compacted, NewComputedNode(
			node.NodeHash(), node.NodeSum(),
		))
	}

	return &CompressedProof{
		Bits:  bits,
		Nodes: compacted,
	}
}

// CompressedProof is a Proof with its empty-subtree siblings elided. Bit i
// set means the sibling at level i was an empty subtree and is restored
// from the precomputed chain on decompression.
type CompressedProof struct {
	Bits  *bitset.BitSet
	Nodes []Node
}

// Decompress expands the proof back to its fixed-length form.
func (p *CompressedProof) Decompress() (*Proof, error) {
	if p.Bits == nil || p.Bits.Len() != MaxTreeLevels {
		return nil, fmt.Errorf("%w: compressed proof has invalid "+
			"bitmap", ErrInvalidProof)
	}

	numElided := int(p.Bits.Count())
	if numElided+len(p.Nodes) != MaxTreeLevels {
		return nil, fmt.Errorf("%w: compressed proof has %d nodes, "+
			"want %d", ErrInvalidProof, len(p.Nodes),
			MaxTreeLevels-numElided)
	}

	nodes := make([]Node, 0, MaxTreeLevels)
	next := 0
	for i := 0; i < MaxTreeLevels; i++ {
		if p.Bits.Test(uint(i)) {
			nodes = append(nodes, EmptyTree()[i+1])
			continue
		}
		nodes = append(nodes, p.Nodes[next])
		next++
	}

	return NewProof(nodes), nil
}

// VerifyMerkleProofs checks a batch of proofs against a single root,
// concurrently. The slices are parallel: proofs[i] must place leaves[i] at
// keys[i]. A failing index is reported through ErrInvalidProof; when several
// proofs fail, the one reported is whichever verification failed first in
// time, not necessarily the lowest index.
func VerifyMerkleProofs(rootHash NodeHash, keys [][HashSize]byte,
	leaves []*LeafNode, proofs []*Proof) error {

	if len(keys) != len(leaves) || len(keys) != len(proofs) {
		return fmt.Errorf("%w: mismatched batch lengths %d/%d/%d",
			ErrInvalidProof, len(keys), len(leaves), len(proofs))
	}

	var g errgroup.Group
	for i := range proofs {
		i := i
		g.Go(func() error {
			if !proofs[i].Verify(keys[i], leaves[i], rootHash) {
				return fmt.Errorf("%w: index %d",
					ErrInvalidProof, i)
			}
			return nil
		})
	}
	return g.Wait()
}
