package merge

import (
	"sort"

	"github.com/trust-net/go-forkstate/backend"
	"github.com/trust-net/go-forkstate/delta"
)

// backendLayer is the oldest layer of every chain: the committed backend
// store. It never holds a tombstone - commit() already applied and
// dropped them (§4.2).
type backendLayer struct {
	b  backend.Backend
	it backend.Iterator
}

func (l *backendLayer) Valid() bool     { return l.it != nil && l.it.Valid() }
func (l *backendLayer) Key() []byte     { return l.it.Key() }
func (l *backendLayer) Tombstone() bool { return false }
func (l *backendLayer) Value() []byte   { return l.it.Value() }

func (l *backendLayer) Next() {
	if l.it != nil {
		l.it.Next()
	}
}

func (l *backendLayer) Prev() {
	if l.it != nil {
		l.it.Prev()
	}
}

func (l *backendLayer) SeekFirst() { l.it = l.b.Begin() }

func (l *backendLayer) SeekLast() {
	l.it = l.b.End()
	l.it.Prev()
}

func (l *backendLayer) SeekGE(key []byte) { l.it = l.b.LowerBound(key) }

// deltaLayer is a single non-root delta's local writes/tombstones, walked
// by index over its own sorted key list.
type deltaLayer struct {
	d    *delta.Delta
	keys []string
	idx  int
}

func newDeltaLayer(d *delta.Delta) *deltaLayer {
	return &deltaLayer{d: d, keys: d.Keys(), idx: -1}
}

func (l *deltaLayer) Valid() bool { return l.idx >= 0 && l.idx < len(l.keys) }
func (l *deltaLayer) Key() []byte { return []byte(l.keys[l.idx]) }

func (l *deltaLayer) Tombstone() bool {
	_, tomb, _ := l.d.LocalEntry(l.keys[l.idx])
	return tomb
}

func (l *deltaLayer) Value() []byte {
	v, _, _ := l.d.LocalEntry(l.keys[l.idx])
	return v
}

func (l *deltaLayer) Next() { l.idx++ }
func (l *deltaLayer) Prev() { l.idx-- }

func (l *deltaLayer) SeekFirst() { l.idx = 0 }
func (l *deltaLayer) SeekLast()  { l.idx = len(l.keys) - 1 }

func (l *deltaLayer) SeekGE(key []byte) {
	k := string(key)
	l.idx = sort.Search(len(l.keys), func(i int) bool { return l.keys[i] >= k })
}

// NewChain builds a merge iterator over a delta chain: the committed
// backend as the oldest layer, then each non-root ancestor delta up to
// and including the node's own delta, oldest first, per §4.3.
func NewChain(store backend.Backend, ancestors []*delta.Delta) *Iterator {
	layers := make([]layerCursor, 0, len(ancestors)+1)
	layers = append(layers, &backendLayer{b: store})
	for _, d := range ancestors {
		layers = append(layers, newDeltaLayer(d))
	}
	return newIterator(layers)
}
