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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMeteredStorePassThrough(t *testing.T) {
	t.Parallel()

	store, err := NewMeteredStore(NewDefaultStore(), prometheus.NewRegistry())
	require.NoError(t, err)

	// The tree neither knows nor cares that the store is instrumented.
	tree := NewCompactedTree(store)
	mustInsert(t, tree, "key1", "value1", 10)
	mustInsert(t, tree, "key2", "value2", 20)

	reference := NewCompactedTree(NewDefaultStore())
	mustInsert(t, reference, "key1", "value1", 10)
	mustInsert(t, reference, "key2", "value2", 20)

	require.Equal(t,
		rootOf(t, reference).NodeHash(),
		rootOf(t, tree).NodeHash(),
	)
}

func TestMeteredStoreCounters(t *testing.T) {
	t.Parallel()

	store, err := NewMeteredStore(NewDefaultStore(), prometheus.NewRegistry())
	require.NoError(t, err)

	leaf := NewLeafNode(hashKey("key1"), []byte("value1"), 10)
	require.NoError(t, store.InsertLeaf(leaf))
	require.NoError(t, store.InsertLeaf(leaf))

	_, err = store.GetLeaf(leaf.NodeHash())
	require.NoError(t, err)
	require.NoError(t, store.DeleteLeaf(leaf.NodeHash()))
	require.NoError(t, store.UpdateRoot(EmptyTree()[0]))

	counter := func(op, kind string) float64 {
		return testutil.ToFloat64(store.ops.WithLabelValues(op, kind))
	}

	require.Equal(t, 2.0, counter(opInsert, kindLeaf))
	require.Equal(t, 1.0, counter(opGet, kindLeaf))
	require.Equal(t, 1.0, counter(opDelete, kindLeaf))
	require.Equal(t, 1.0, counter(opUpdate, kindRoot))
	require.Equal(t, 0.0, counter(opInsert, kindBranch))

	// Nothing failed, so the failure counters stayed at zero.
	failures := func(op, kind string) float64 {
		return testutil.ToFloat64(
			store.failures.WithLabelValues(op, kind),
		)
	}
	require.Equal(t, 0.0, failures(opInsert, kindLeaf))
}

func TestMeteredStoreDoubleRegister(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewMeteredStore(NewDefaultStore(), reg)
	require.NoError(t, err)

	// Registering the same collectors twice is refused by prometheus.
	_, err = NewMeteredStore(NewDefaultStore(), reg)
	require.Error(t, err)
}
