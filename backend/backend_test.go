package backend

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func withBackends(t *testing.T, fn func(t *testing.T, b Backend)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemBackend())
	})
	t.Run("leveldb", func(t *testing.T) {
		dir, err := os.MkdirTemp("", "statedb-leveldb-*")
		require.NoError(t, err)
		defer os.RemoveAll(dir)
		lb, err := NewLevelBackend(dir, 0, 0)
		require.NoError(t, err)
		defer lb.Close()
		fn(t, lb)
	})
}

func TestPutFindErase(t *testing.T) {
	withBackends(t, func(t *testing.T, b Backend) {
		require.NoError(t, b.Put([]byte("a"), []byte("1")))
		it := b.Find([]byte("a"))
		require.True(t, it.Valid())
		require.Equal(t, []byte("1"), it.Value())

		require.False(t, b.Find([]byte("missing")).Valid())

		require.NoError(t, b.Erase([]byte("a")))
		require.False(t, b.Find([]byte("a")).Valid())
	})
}

func TestOrderedTraversal(t *testing.T) {
	withBackends(t, func(t *testing.T, b Backend) {
		keys := []string{"b", "d", "a", "c"}
		for _, k := range keys {
			require.NoError(t, b.Put([]byte(k), []byte(k)))
		}
		var got []string
		for it := b.Begin(); it.Valid(); it.Next() {
			got = append(got, string(it.Key()))
		}
		require.Equal(t, []string{"a", "b", "c", "d"}, got)

		got = nil
		it := b.LowerBound([]byte("bb"))
		require.True(t, it.Valid())
		require.Equal(t, "c", string(it.Key()))
	})
}

func TestBackwardTraversal(t *testing.T) {
	withBackends(t, func(t *testing.T, b Backend) {
		for _, k := range []string{"a", "b", "c"} {
			require.NoError(t, b.Put([]byte(k), []byte(k)))
		}
		it := b.LowerBound([]byte("c"))
		require.True(t, it.Valid())
		require.Equal(t, "c", string(it.Key()))
		it.Prev()
		require.True(t, it.Valid())
		require.Equal(t, "b", string(it.Key()))
		it.Next()
		require.True(t, it.Valid())
		require.Equal(t, "c", string(it.Key()))
	})
}

func TestSize(t *testing.T) {
	withBackends(t, func(t *testing.T, b Backend) {
		require.Equal(t, 0, b.Size())
		require.NoError(t, b.Put([]byte("a"), []byte("1")))
		require.NoError(t, b.Put([]byte("b"), []byte("2")))
		require.Equal(t, 2, b.Size())
		require.NoError(t, b.Erase([]byte("a")))
		require.Equal(t, 1, b.Size())
	})
}
