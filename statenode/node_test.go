package statenode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trust-net/go-forkstate/backend"
	"github.com/trust-net/go-forkstate/delta"
	"github.com/trust-net/go-forkstate/multihash"
	"github.com/trust-net/go-forkstate/statedberr"
)

const testCodec = 0x12

func mustID(t *testing.T, seed byte) multihash.ID {
	t.Helper()
	id, err := multihash.Sum([]byte{seed}, testCodec)
	require.NoError(t, err)
	return id
}

// TestPutObjectSizeDeltaArithmetic walks §8 scenario 1 end to end: insert,
// same-size modify, finalize, erase on a child of the finalized node.
func TestPutObjectSizeDeltaArithmetic(t *testing.T) {
	store := backend.NewMemBackend()
	root := delta.NewRoot(testCodec)
	rootNode := NewRootNode(store, root)
	node := rootNode.CreateAnonymousNode()

	space, key := []byte("contract"), []byte("book")
	value := []byte("book{id:1,a:3,b:4}")
	d1, err := node.PutObject(space, key, value)
	require.NoError(t, err)
	require.Equal(t, len(value), d1)

	modified := []byte("book{id:2,a:5,b:6}")
	require.Equal(t, len(value), len(modified))
	d2, err := node.PutObject(space, key, modified)
	require.NoError(t, err)
	require.Equal(t, 0, d2)

	_, found := rootNode.GetObject(space, key)
	require.False(t, found)

	node.Finalize()
	_, err = node.PutObject(space, key, []byte("x"))
	require.True(t, statedberr.Is(err, statedberr.NodeFinalized))

	child := node.CreateAnonymousNode()
	d3, err := child.PutObject(space, key, nil)
	require.NoError(t, err)
	require.Equal(t, -len(modified), d3)
}

func TestGetNextPrevObjectOrdering(t *testing.T) {
	store := backend.NewMemBackend()
	root := delta.NewRoot(testCodec)
	rootNode := NewRootNode(store, root)
	node := rootNode.CreateAnonymousNode()

	space := []byte("contract")
	for _, k := range []string{"a", "b", "c", "d"} {
		_, err := node.PutObject(space, []byte(k), []byte(k))
		require.NoError(t, err)
	}
	// tombstone "c" so traversal must skip it rather than surface it.
	_, err := node.PutObject(space, []byte("c"), nil)
	require.NoError(t, err)

	nextSpace, nextKey, value, found := node.GetNextObject(space, []byte("a"))
	require.True(t, found)
	require.Equal(t, space, nextSpace)
	require.Equal(t, []byte("b"), nextKey)
	require.Equal(t, []byte("b"), value)

	_, nextKey, _, found = node.GetNextObject(space, []byte("b"))
	require.True(t, found)
	require.Equal(t, []byte("d"), nextKey)

	_, _, _, found = node.GetNextObject(space, []byte("d"))
	require.False(t, found)

	_, prevKey, _, found := node.GetPrevObject(space, []byte("d"))
	require.True(t, found)
	require.Equal(t, []byte("b"), prevKey)

	_, _, _, found = node.GetPrevObject(space, []byte("a"))
	require.False(t, found)
}

func TestCreateAnonymousNodeCommitRoundTrip(t *testing.T) {
	store := backend.NewMemBackend()
	root := delta.NewRoot(testCodec)
	parent := NewNode(store, []*delta.Delta{delta.NewChild(mustID(t, 1), root)})

	space := []byte("contract")
	_, err := parent.PutObject(space, []byte("existing"), []byte("keep"))
	require.NoError(t, err)

	anon := parent.CreateAnonymousNode()
	require.True(t, anon.IsAnonymous())

	_, err = anon.PutObject(space, []byte("new"), []byte("value"))
	require.NoError(t, err)
	_, err = anon.PutObject(space, []byte("existing"), nil)
	require.NoError(t, err)

	// invisible to parent until Commit.
	_, found := parent.GetObject(space, []byte("new"))
	require.False(t, found)

	require.NoError(t, anon.Commit(parent))

	v, found := parent.GetObject(space, []byte("new"))
	require.True(t, found)
	require.Equal(t, []byte("value"), v)

	_, found = parent.GetObject(space, []byte("existing"))
	require.False(t, found)
}

func TestCommitRejectsNonAnonymousNode(t *testing.T) {
	store := backend.NewMemBackend()
	root := delta.NewRoot(testCodec)
	node := NewNode(store, []*delta.Delta{delta.NewChild(mustID(t, 2), root)})

	err := node.Commit(node)
	require.True(t, statedberr.Is(err, statedberr.UnexpectedState))
}

func TestCommitRejectsFinalizedParent(t *testing.T) {
	store := backend.NewMemBackend()
	root := delta.NewRoot(testCodec)
	parent := NewNode(store, []*delta.Delta{delta.NewChild(mustID(t, 3), root)})
	anon := parent.CreateAnonymousNode()

	parent.Finalize()

	err := anon.Commit(parent)
	require.True(t, statedberr.Is(err, statedberr.NodeFinalized))
}
