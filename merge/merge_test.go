package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trust-net/go-forkstate/backend"
	"github.com/trust-net/go-forkstate/delta"
	"github.com/trust-net/go-forkstate/multihash"
)

func mustID(t *testing.T, seed byte) multihash.ID {
	id, err := multihash.Sum([]byte{seed}, 0x12)
	require.NoError(t, err)
	return id
}

func TestMergeIteratorShadowing(t *testing.T) {
	store := backend.NewMemBackend()
	require.NoError(t, store.Put([]byte("space\x00a"), []byte("root-a")))
	require.NoError(t, store.Put([]byte("space\x00b"), []byte("root-b")))

	root := delta.NewRoot(0x12)
	d1 := delta.NewChild(mustID(t, 1), root)
	require.NoError(t, d1.Put([]byte("space"), []byte("b"), []byte("d1-b")))
	require.NoError(t, d1.Put([]byte("space"), []byte("c"), []byte("d1-c")))
	d1.Finalize()

	d2 := delta.NewChild(mustID(t, 2), d1)
	require.NoError(t, d2.Erase([]byte("space"), []byte("b")))
	d2.Finalize()

	it := NewChain(store, []*delta.Delta{d1, d2})
	it.SeekFirst()

	var keys []string
	var values []string
	for it.Valid() {
		space, key := delta.SplitObjectKey(it.Key())
		keys = append(keys, string(space)+"/"+string(key))
		values = append(values, string(it.Value()))
		it.Next()
	}
	require.Equal(t, []string{"space/a", "space/c"}, keys)
	require.Equal(t, []string{"root-a", "d1-c"}, values)
}

func TestMergeIteratorFind(t *testing.T) {
	store := backend.NewMemBackend()
	require.NoError(t, store.Put([]byte("space\x00a"), []byte("root-a")))
	root := delta.NewRoot(0x12)
	d1 := delta.NewChild(mustID(t, 1), root)
	require.NoError(t, d1.Erase([]byte("space"), []byte("a")))
	d1.Finalize()

	it := NewChain(store, []*delta.Delta{d1})
	require.False(t, it.Find([]byte("space\x00a")))
	require.False(t, it.Valid())
}

func TestMergeIteratorDoubleInverse(t *testing.T) {
	store := backend.NewMemBackend()
	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.Put([]byte("space\x00"+k), []byte(k)))
	}
	root := delta.NewRoot(0x12)
	d1 := delta.NewChild(mustID(t, 1), root)
	require.NoError(t, d1.Put([]byte("space"), []byte("e"), []byte("e")))
	d1.Finalize()

	it := NewChain(store, []*delta.Delta{d1})
	it.SeekFirst()
	it.Next()
	it.Next()
	mid := string(it.Key())

	it.Next()
	it.Prev()
	require.Equal(t, mid, string(it.Key()))

	it.Prev()
	it.Next()
	require.Equal(t, mid, string(it.Key()))
}
