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

// Command mssmt walks through the basic operations of a merkle-sum sparse
// merkle tree: it inserts a few keys, fetches them back, proves one of them
// against the root, deletes another key and shows the proof for the first
// key still holding under the new root.
package main

import (
	"crypto/sha256"
	"flag"
	"os"

	"github.com/rs/zerolog"

	mssmt "github.com/abdelstark/go-mssmt"
)

// tree is the surface shared by the full and the compacted engine.
type tree interface {
	Root() (mssmt.Node, error)
	Insert(key [mssmt.HashSize]byte, value []byte, sum uint64) error
	Get(key [mssmt.HashSize]byte) ([]byte, uint64, error)
	Delete(key [mssmt.HashSize]byte) error
	MerkleProof(key [mssmt.HashSize]byte) (*mssmt.Proof, error)
}

func main() {
	compacted := flag.Bool(
		"compacted", false, "use the compacted tree engine",
	)
	flag.Parse()

	log := zerolog.New(
		zerolog.ConsoleWriter{Out: os.Stderr},
	).With().Timestamp().Logger()

	store := mssmt.NewDefaultStore()

	var t tree = mssmt.NewFullTree(store)
	if *compacted {
		t = mssmt.NewCompactedTree(store)
	}

	entries := []struct {
		name  string
		value string
		sum   uint64
	}{
		{"key1", "value1", 10},
		{"key2", "value2", 20},
		{"key3", "value3", 30},
	}

	for _, entry := range entries {
		key := sha256.Sum256([]byte(entry.name))
		err := t.Insert(key, []byte(entry.value), entry.sum)
		if err != nil {
			log.Fatal().Err(err).Str("key", entry.name).
				Msg("insert failed")
		}
		log.Info().Str("key", entry.name).Uint64("sum", entry.sum).
			Msg("inserted")
	}

	root, err := t.Root()
	if err != nil {
		log.Fatal().Err(err).Msg("reading root")
	}
	log.Info().
		Str("hash", root.NodeHash().String()).
		Uint64("sum", root.NodeSum()).
		Msg("tree root")

	for _, entry := range entries {
		key := sha256.Sum256([]byte(entry.name))
		value, sum, err := t.Get(key)
		if err != nil {
			log.Fatal().Err(err).Str("key", entry.name).
				Msg("get failed")
		}
		log.Info().Str("key", entry.name).
			Str("value", string(value)).Uint64("sum", sum).
			Msg("fetched")
	}

	key1 := sha256.Sum256([]byte("key1"))
	proof, err := t.MerkleProof(key1)
	if err != nil {
		log.Fatal().Err(err).Msg("generating proof")
	}

	leaf1 := mssmt.NewLeafNode(key1, []byte("value1"), 10)
	log.Info().
		Bool("valid", proof.Verify(key1, leaf1, root.NodeHash())).
		Int("siblings", len(proof.Nodes)).
		Int("compressed", len(proof.Compress().Nodes)).
		Msg("verified proof for key1")

	key2 := sha256.Sum256([]byte("key2"))
	if err := t.Delete(key2); err != nil {
		log.Fatal().Err(err).Msg("deleting key2")
	}
	if value, _, err := t.Get(key2); err != nil || value != nil {
		log.Fatal().Err(err).Msg("key2 still present after delete")
	}
	log.Info().Msg("deleted key2")

	root, err = t.Root()
	if err != nil {
		log.Fatal().Err(err).Msg("reading root")
	}

	proof, err = t.MerkleProof(key1)
	if err != nil {
		log.Fatal().Err(err).Msg("regenerating proof")
	}
	log.Info().
		Str("hash", root.NodeHash().String()).
		Uint64("sum", root.NodeSum()).
		Bool("key1_still_proves", proof.Verify(key1, leaf1, root.NodeHash())).
		Msg("root after delete")
}
