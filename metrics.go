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

import "github.com/prometheus/client_golang/prometheus"

const (
	kindBranch        = "branch"
	kindLeaf          = "leaf"
	kindCompactedLeaf = "compacted_leaf"
	kindRoot          = "root"

	opGet    = "get"
	opInsert = "insert"
	opDelete = "delete"
	opUpdate = "update"
)

// MeteredStore decorates a TreeStore with prometheus counters for every
// store operation and its failures. Semantics are a strict pass-through.
type MeteredStore struct {
	store TreeStore

	ops      *prometheus.CounterVec
	failures *prometheus.CounterVec
}

var _ TreeStore = (*MeteredStore)(nil)

// NewMeteredStore wraps the given store. Counters are registered against
// reg; passing a nil registerer skips registration, which is useful in
// tests that only care about pass-through behavior.
func NewMeteredStore(store TreeStore,
	reg prometheus.Registerer) (*MeteredStore, error) {

	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mssmt",
		Subsystem: "store",
		Name:      "ops_total",
		Help:      "Number of tree store operations by op and node kind.",
	}, []string{"op", "kind"})

	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mssmt",
		Subsystem: "store",
		Name:      "op_failures_total",
		Help:      "Number of failed tree store operations by op and node kind.",
	}, []string{"op", "kind"})

	if reg != nil {
		if err := reg.Register(ops); err != nil {
			return nil, err
		}
		if err := reg.Register(failures); err != nil {
			return nil, err
		}
	}

	return &MeteredStore{
		store:    store,
		ops:      ops,
		failures: failures,
	}, nil
}

func (s *MeteredStore) observe(op, kind string, err error) {
	s.ops.WithLabelValues(op, kind).Inc()
	if err != nil {
		s.failures.WithLabelValues(op, kind).Inc()
	}
}

func (s *MeteredStore) RootNode() (Node, error) {
	node, err := s.store.RootNode()
	s.observe(opGet, kindRoot, err)
	return node, err
}

func (s *MeteredStore) GetBranch(hash NodeHash) (*BranchNode, error) {
	branch, err := s.store.GetBranch(hash)
	s.observe(opGet, kindBranch, err)
	return branch, err
}

func (s *MeteredStore) GetLeaf(hash NodeHash) (*LeafNode, error) {
	leaf, err := s.store.GetLeaf(hash)
	s.observe(opGet, kindLeaf, err)
	return leaf, err
}

func (s *MeteredStore) GetCompactedLeaf(hash NodeHash) (*CompactedLeafNode,
	error) {

	leaf, err := s.store.GetCompactedLeaf(hash)
	s.observe(opGet, kindCompactedLeaf, err)
	return leaf, err
}

func (s *MeteredStore) InsertBranch(branch *BranchNode) error {
	err := s.store.InsertBranch(branch)
	s.observe(opInsert, kindBranch, err)
	return err
}

func (s *MeteredStore) InsertLeaf(leaf *LeafNode) error {
	err := s.store.InsertLeaf(leaf)
	s.observe(opInsert, kindLeaf, err)
	return err
}

func (s *MeteredStore) InsertCompactedLeaf(leaf *CompactedLeafNode) error {
	err := s.store.InsertCompactedLeaf(leaf)
	s.observe(opInsert, kindCompactedLeaf, err)
	return err
}

func (s *MeteredStore) DeleteBranch(hash NodeHash) error {
	err := s.store.DeleteBranch(hash)
	s.observe(opDelete, kindBranch, err)
	return err
}

func (s *MeteredStore) DeleteLeaf(hash NodeHash) error {
	err := s.store.DeleteLeaf(hash)
	s.observe(opDelete, kindLeaf, err)
	return err
}

func (s *MeteredStore) DeleteCompactedLeaf(hash NodeHash) error {
	err := s.store.DeleteCompactedLeaf(hash)
	s.observe(opDelete, kindCompactedLeaf, err)
	return err
}

func (s *MeteredStore) UpdateRoot(root Node) error {
	err := s.store.UpdateRoot(root)
	s.observe(opUpdate, kindRoot, err)
	return err
}
