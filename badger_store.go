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
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
)

// Single-byte key prefixes separating the node kinds inside one badger
// keyspace. The root pointer lives under its own key.
const (
	branchKeyPrefix        byte = 'b'
	leafKeyPrefix          byte = 'l'
	compactedLeafKeyPrefix byte = 'c'

	rootKindBranch        byte = 0
	rootKindLeaf          byte = 1
	rootKindCompactedLeaf byte = 2
)

var rootKey = []byte("root")

// BadgerStore is a TreeStore backed by a badger database. Records are
// content addressed under a per-kind prefix; branch records snapshot the
// (hash, sum) pair of each child so that children can be resolved lazily
// on the way down.
type BadgerStore struct {
	db  *badger.DB
	log zerolog.Logger
}

var _ TreeStore = (*BadgerStore)(nil)

// NewBadgerStore returns a TreeStore persisting nodes in the given badger
// database. The database is owned by the caller.
func NewBadgerStore(db *badger.DB, log zerolog.Logger) *BadgerStore {
	return &BadgerStore{
		db:  db,
		log: log,
	}
}

func nodeKey(prefix byte, hash NodeHash) []byte {
	key := make([]byte, 1+HashSize)
	key[0] = prefix
	copy(key[1:], hash[:])
	return key
}

// fetch reads a single record, returning nil without error when the key is
// absent.
func (s *BadgerStore) fetch(key []byte) ([]byte, error) {
	var record []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		record, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("mssmt: badger read: %w", err)
	}
	return record, nil
}

func (s *BadgerStore) put(key, record []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, record)
	})
	if err != nil {
		return fmt.Errorf("mssmt: badger write: %w", err)
	}
	return nil
}

func (s *BadgerStore) del(key []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("mssmt: badger delete: %w", err)
	}
	return nil
}

func (s *BadgerStore) RootNode() (Node, error) {
	record, err := s.fetch(rootKey)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return EmptyTree()[0], nil
	}
	if len(record) != 1+HashSize {
		return nil, fmt.Errorf("mssmt: malformed root record of "+
			"%d bytes", len(record))
	}

	hash := NodeHash(*(*[HashSize]byte)(record[1:]))

	var node Node
	switch record[0] {
	case rootKindBranch:
		branch, err := s.GetBranch(hash)
		if err != nil {
			return nil, err
		}
		if branch != nil {
			node = branch
		}
	case rootKindLeaf:
		leaf, err := s.GetLeaf(hash)
		if err != nil {
			return nil, err
		}
		if leaf != nil {
			node = leaf
		}
	case rootKindCompactedLeaf:
		leaf, err := s.GetCompactedLeaf(hash)
		if err != nil {
			return nil, err
		}
		if leaf != nil {
			node = leaf
		}
	default:
		return nil, fmt.Errorf("mssmt: unknown root kind %d",
			record[0])
	}

	if node == nil {
		return nil, fmt.Errorf("%w: root %v", errNodeNotFound, hash)
	}
	return node, nil
}

func (s *BadgerStore) GetBranch(hash NodeHash) (*BranchNode, error) {
	record, err := s.fetch(nodeKey(branchKeyPrefix, hash))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	if len(record) != 2*(HashSize+sumSize) {
		return nil, fmt.Errorf("mssmt: malformed branch record of "+
			"%d bytes", len(record))
	}

	left := NewComputedNode(
		NodeHash(*(*[HashSize]byte)(record[:HashSize])),
		binary.BigEndian.Uint64(record[HashSize:]),
	)
	right := NewComputedNode(
		NodeHash(*(*[HashSize]byte)(record[HashSize+sumSize:])),
		binary.BigEndian.Uint64(record[2*HashSize+sumSize:]),
	)

	return NewBranch(left, right), nil
}

func (s *BadgerStore) GetLeaf(hash NodeHash) (*LeafNode, error) {
	record, err := s.fetch(nodeKey(leafKeyPrefix, hash))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return decodeLeaf(record)
}

func (s *BadgerStore) GetCompactedLeaf(hash NodeHash) (*CompactedLeafNode,
	error) {

	record, err := s.fetch(nodeKey(compactedLeafKeyPrefix, hash))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	if len(record) < 2 {
		return nil, fmt.Errorf("mssmt: malformed compacted leaf "+
			"record of %d bytes", len(record))
	}

	height := int(binary.BigEndian.Uint16(record[:2]))
	if height > MaxTreeLevels {
		return nil, fmt.Errorf("mssmt: compacted leaf height %d out "+
			"of range", height)
	}
	leaf, err := decodeLeaf(record[2:])
	if err != nil {
		return nil, err
	}
	return NewCompactedLeafNode(height, leaf), nil
}

func decodeLeaf(record []byte) (*LeafNode, error) {
	if len(record) < HashSize+sumSize {
		return nil, fmt.Errorf("mssmt: malformed leaf record of "+
			"%d bytes", len(record))
	}

	key := *(*[HashSize]byte)(record[:HashSize])
	sum := binary.BigEndian.Uint64(record[HashSize:])

	var value []byte
	if len(record) > HashSize+sumSize {
		value = make([]byte, len(record)-HashSize-sumSize)
		copy(value, record[HashSize+sumSize:])
	}

	return NewLeafNode(key, value, sum), nil
}

func encodeLeaf(leaf *LeafNode) []byte {
	key := leaf.Key()
	record := make([]byte, HashSize+sumSize, HashSize+sumSize+len(leaf.Value()))
	copy(record, key[:])
	binary.BigEndian.PutUint64(record[HashSize:], leaf.NodeSum())
	return append(record, leaf.Value()...)
}

func (s *BadgerStore) InsertBranch(branch *BranchNode) error {
	record := make([]byte, 2*(HashSize+sumSize))
	left := branch.Left.NodeHash()
	right := branch.Right.NodeHash()
	copy(record, left[:])
	binary.BigEndian.PutUint64(record[HashSize:], branch.Left.NodeSum())
	copy(record[HashSize+sumSize:], right[:])
	binary.BigEndian.PutUint64(
		record[2*HashSize+sumSize:], branch.Right.NodeSum(),
	)

	return s.put(nodeKey(branchKeyPrefix, branch.NodeHash()), record)
}

func (s *BadgerStore) InsertLeaf(leaf *LeafNode) error {
	return s.put(nodeKey(leafKeyPrefix, leaf.NodeHash()), encodeLeaf(leaf))
}

func (s *BadgerStore) InsertCompactedLeaf(leaf *CompactedLeafNode) error {
	leafRecord := encodeLeaf(leaf.Leaf())
	record := make([]byte, 2, 2+len(leafRecord))
	binary.BigEndian.PutUint16(record, uint16(leaf.Height()))
	record = append(record, leafRecord...)

	return s.put(nodeKey(compactedLeafKeyPrefix, leaf.NodeHash()), record)
}

func (s *BadgerStore) DeleteBranch(hash NodeHash) error {
	return s.del(nodeKey(branchKeyPrefix, hash))
}

func (s *BadgerStore) DeleteLeaf(hash NodeHash) error {
	return s.del(nodeKey(leafKeyPrefix, hash))
}

func (s *BadgerStore) DeleteCompactedLeaf(hash NodeHash) error {
	return s.del(nodeKey(compactedLeafKeyPrefix, hash))
}

func (s *BadgerStore) UpdateRoot(root Node) error {
	hash := root.NodeHash()

	// The empty root is never persisted as a node; dropping the pointer
	// resets the tree.
	if hash == EmptyTree()[0].NodeHash() {
		if err := s.del(rootKey); err != nil {
			return err
		}
		s.log.Debug().Msg("root reset to empty tree")
		return nil
	}

	var kind byte
	switch root.(type) {
	case *BranchNode:
		kind = rootKindBranch
	case *LeafNode:
		kind = rootKindLeaf
	case *CompactedLeafNode:
		kind = rootKindCompactedLeaf
	default:
		return fmt.Errorf("mssmt: cannot persist root of type %T",
			root)
	}

	record := make([]byte, 1+HashSize)
	record[0] = kind
	copy(record[1:], hash[:])

	if err := s.put(rootKey, record); err != nil {
		return err
	}

	s.log.Debug().
		Str("root", hash.String()).
		Uint64("sum", root.NodeSum()).
		Msg("updated root")
	return nil
}
