package forkdb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trust-net/go-forkstate/backend"
	"github.com/trust-net/go-forkstate/multihash"
	"github.com/trust-net/go-forkstate/statedberr"
)

const testCodec = 0x12

func mustID(t *testing.T, seed byte) multihash.ID {
	id, err := multihash.Sum([]byte{seed}, testCodec)
	require.NoError(t, err)
	return id
}

func TestCreateWritableNodeErrors(t *testing.T) {
	f := New(backend.NewMemBackend(), testCodec)
	root := f.GetRoot()

	id1 := mustID(t, 1)
	_, err := f.CreateWritableNode(mustID(t, 99), id1)
	require.True(t, statedberr.Is(err, statedberr.UnknownParent))

	n1, err := f.CreateWritableNode(root.ID(), id1)
	require.NoError(t, err)
	require.False(t, n1.IsFinalized())

	_, err = f.CreateWritableNode(root.ID(), id1)
	require.True(t, statedberr.Is(err, statedberr.DuplicateNode))

	id2 := mustID(t, 2)
	_, err = f.CreateWritableNode(id1, id2)
	require.True(t, statedberr.Is(err, statedberr.ParentNotFinalized))
}

func TestHeadSelectionDeterministic(t *testing.T) {
	f := New(backend.NewMemBackend(), testCodec)
	root := f.GetRoot()

	idA := mustID(t, 1)
	idB := mustID(t, 2)
	_, err := f.CreateWritableNode(root.ID(), idA)
	require.NoError(t, err)
	_, err = f.CreateWritableNode(root.ID(), idB)
	require.NoError(t, err)

	require.NoError(t, f.FinalizeNode(idA))
	require.Equal(t, idA, f.GetHead().ID())

	require.NoError(t, f.FinalizeNode(idB))
	want := idA
	if idB.Less(idA) == false && !idA.Equal(idB) {
		want = idB
	}
	require.Equal(t, want, f.GetHead().ID())
}

func TestDiscardRejectsCurrentHead(t *testing.T) {
	f := New(backend.NewMemBackend(), testCodec)
	root := f.GetRoot()
	id1 := mustID(t, 1)
	_, err := f.CreateWritableNode(root.ID(), id1)
	require.NoError(t, err)
	require.NoError(t, f.FinalizeNode(id1))
	require.Equal(t, id1, f.GetHead().ID())

	err = f.DiscardNode(id1)
	require.True(t, statedberr.Is(err, statedberr.CannotDiscard))
}

func TestCommitNodeCollapsesAncestorsAndPrunesSiblings(t *testing.T) {
	store := backend.NewMemBackend()
	f := New(store, testCodec)
	root := f.GetRoot()

	id1 := mustID(t, 1)
	n1, err := f.CreateWritableNode(root.ID(), id1)
	require.NoError(t, err)
	_, err = n1.PutObject([]byte("space"), []byte("k"), []byte("v1"))
	require.NoError(t, err)
	n1.Finalize()
	require.NoError(t, f.FinalizeNode(id1))

	sibling := mustID(t, 9)
	_, err = f.CreateWritableNode(root.ID(), sibling)
	require.NoError(t, err)

	id2 := mustID(t, 2)
	n2, err := f.CreateWritableNode(id1, id2)
	require.NoError(t, err)
	_, err = n2.PutObject([]byte("space"), []byte("k"), []byte("v2"))
	require.NoError(t, err)
	n2.Finalize()
	require.NoError(t, f.FinalizeNode(id2))

	require.NoError(t, f.CommitNode(id2))

	require.Equal(t, id2, f.GetRoot().ID())
	_, ok := f.GetNode(sibling)
	require.False(t, ok)
	_, ok = f.GetNode(id1)
	require.False(t, ok)

	v, found := f.GetRoot().GetObject([]byte("space"), []byte("k"))
	require.True(t, found)
	require.Equal(t, "v2", string(v))
}

func TestGetNodeAtRevisionWalksLinearChain(t *testing.T) {
	f := New(backend.NewMemBackend(), testCodec)
	root := f.GetRoot()

	const chainLen = 20
	ids := make([]multihash.ID, 0, chainLen)
	prev := root.ID()
	for i := 1; i <= chainLen; i++ {
		id := mustID(t, byte(i))
		_, err := f.CreateWritableNode(prev, id)
		require.NoError(t, err)
		require.NoError(t, f.FinalizeNode(id))
		ids = append(ids, id)
		prev = id
	}
	require.Equal(t, uint64(chainLen), f.GetHead().Revision())

	mid, ok := f.GetNodeAtRevision(10)
	require.True(t, ok)
	require.Equal(t, ids[9], mid.ID())
	require.Equal(t, uint64(10), mid.Revision())

	genesis, ok := f.GetNodeAtRevision(0)
	require.True(t, ok)
	require.True(t, genesis.ID().IsZero())

	_, ok = f.GetNodeAtRevision(chainLen + 1)
	require.False(t, ok)
}

func TestGetForkHeadsCardinalityAcrossForkAndDiscard(t *testing.T) {
	f := New(backend.NewMemBackend(), testCodec)
	root := f.GetRoot()

	id1 := mustID(t, 1)
	_, err := f.CreateWritableNode(root.ID(), id1)
	require.NoError(t, err)
	require.NoError(t, f.FinalizeNode(id1))
	require.ElementsMatch(t, []multihash.ID{id1}, f.GetForkHeads())

	idA := mustID(t, 2)
	idB := mustID(t, 3)
	_, err = f.CreateWritableNode(id1, idA)
	require.NoError(t, err)
	_, err = f.CreateWritableNode(id1, idB)
	require.NoError(t, err)
	require.NoError(t, f.FinalizeNode(idA))
	require.NoError(t, f.FinalizeNode(idB))
	require.ElementsMatch(t, []multihash.ID{idA, idB}, f.GetForkHeads())

	head := f.GetHead().ID()
	loser := idA
	if head.Equal(idA) {
		loser = idB
	}
	require.NoError(t, f.DiscardNode(loser))
	require.ElementsMatch(t, []multihash.ID{head}, f.GetForkHeads())
}

func TestResetReinitializesAtZeroMultihash(t *testing.T) {
	f := New(backend.NewMemBackend(), testCodec)
	root := f.GetRoot()
	id1 := mustID(t, 1)
	_, err := f.CreateWritableNode(root.ID(), id1)
	require.NoError(t, err)
	require.NoError(t, f.FinalizeNode(id1))
	require.NoError(t, f.CommitNode(id1))

	require.NoError(t, f.Reset())
	require.Equal(t, uint64(0), f.GetRoot().Revision())
	require.True(t, f.GetRoot().ID().IsZero())
}
