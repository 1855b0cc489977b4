package delta

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trust-net/go-forkstate/backend"
	"github.com/trust-net/go-forkstate/multihash"
)

const testCodec = 0x12

func mustID(t *testing.T, seed byte) multihash.ID {
	t.Helper()
	id, err := multihash.Sum([]byte{seed}, testCodec)
	require.NoError(t, err)
	return id
}

func TestNewRootIsFinalized(t *testing.T) {
	root := NewRoot(testCodec)
	require.True(t, root.Finalized())
	require.Equal(t, uint64(0), root.Revision())
	require.True(t, root.ID().IsZero())
}

func TestPutErasesTombstoneAndViceVersa(t *testing.T) {
	root := NewRoot(testCodec)
	child := NewChild(mustID(t, 1), root)

	require.NoError(t, child.Erase([]byte("s"), []byte("k")))
	require.Equal(t, Deleted, child.Get([]byte("s"), []byte("k")))

	require.NoError(t, child.Put([]byte("s"), []byte("k"), []byte("v")))
	require.Equal(t, Present, child.Get([]byte("s"), []byte("k")))
	v, ok := child.GetValue([]byte("s"), []byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)

	require.NoError(t, child.Erase([]byte("s"), []byte("k")))
	require.Equal(t, Deleted, child.Get([]byte("s"), []byte("k")))
	_, ok = child.GetValue([]byte("s"), []byte("k"))
	require.False(t, ok)
}

func TestPutAndEraseFailOnFinalizedDelta(t *testing.T) {
	root := NewRoot(testCodec)
	child := NewChild(mustID(t, 1), root)
	child.Finalize()

	require.Error(t, child.Put([]byte("s"), []byte("k"), []byte("v")))
	require.Error(t, child.Erase([]byte("s"), []byte("k")))
}

func TestKeysAreSortedAndDeduped(t *testing.T) {
	root := NewRoot(testCodec)
	child := NewChild(mustID(t, 1), root)

	require.NoError(t, child.Put([]byte("s"), []byte("b"), []byte("1")))
	require.NoError(t, child.Put([]byte("s"), []byte("a"), []byte("2")))
	require.NoError(t, child.Erase([]byte("s"), []byte("c")))

	keys := child.Keys()
	require.Len(t, keys, 3)
	for i := 1; i < len(keys); i++ {
		require.True(t, keys[i-1] < keys[i])
	}
}

func TestObjectKeyRoundTrip(t *testing.T) {
	k := ObjectKey([]byte("space"), []byte("key"))
	space, key := SplitObjectKey(k)
	require.Equal(t, []byte("space"), space)
	require.Equal(t, []byte("key"), key)
}

func TestCommitAppliesWritesAndTombstonesAndFinalizes(t *testing.T) {
	store := backend.NewMemBackend()
	require.NoError(t, store.Put(ObjectKey([]byte("s"), []byte("stale")), []byte("old")))

	root := NewRoot(testCodec)
	child := NewChild(mustID(t, 1), root)
	require.NoError(t, child.Put([]byte("s"), []byte("k"), []byte("v")))
	require.NoError(t, child.Erase([]byte("s"), []byte("stale")))

	require.NoError(t, child.Commit(store))
	require.True(t, child.Finalized())

	it := store.Find(ObjectKey([]byte("s"), []byte("k")))
	require.True(t, it.Valid())
	require.Equal(t, []byte("v"), it.Value())

	it = store.Find(ObjectKey([]byte("s"), []byte("stale")))
	require.False(t, it.Valid())
}

func TestDetachParentSeversLink(t *testing.T) {
	root := NewRoot(testCodec)
	child := NewChild(mustID(t, 1), root)
	require.NotNil(t, child.Parent())

	child.DetachParent()
	require.Nil(t, child.Parent())
}
