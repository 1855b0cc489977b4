// Package merge implements the merge iterator of §4.3: a chain of deltas
// [root=D0, D1, ..., Dn], oldest first, presented as a single ordered
// virtual map equal to the left fold Mi = apply(D_i, M_{i-1}), with
// newer-layer-wins shadowing and tombstone skipping.
package merge

import "bytes"

// layerCursor is satisfied by both the backend-backed root layer and each
// in-memory delta layer above it.
type layerCursor interface {
	Valid() bool
	Key() []byte
	Tombstone() bool
	Value() []byte
	Next()
	Prev()
	SeekFirst()
	SeekLast()
	SeekGE(key []byte)
}

// Iterator presents the unioned view of a delta chain as one ordered
// index, per §4.3.
type Iterator struct {
	layers []layerCursor // oldest first
	valid  bool
	key    []byte
	value  []byte
}

func newIterator(layers []layerCursor) *Iterator {
	return &Iterator{layers: layers}
}

func (it *Iterator) Valid() bool   { return it.valid }
func (it *Iterator) Key() []byte   { return it.key }
func (it *Iterator) Value() []byte { return it.value }

// newestAt returns the highest-index layer currently positioned exactly
// at key, or nil if none is.
func (it *Iterator) newestAt(key []byte) layerCursor {
	for i := len(it.layers) - 1; i >= 0; i-- {
		l := it.layers[i]
		if l.Valid() && bytes.Equal(l.Key(), key) {
			return l
		}
	}
	return nil
}

func (it *Iterator) advanceAt(key []byte, forward bool) {
	for _, l := range it.layers {
		if l.Valid() && bytes.Equal(l.Key(), key) {
			if forward {
				l.Next()
			} else {
				l.Prev()
			}
		}
	}
}

func (it *Iterator) minValidKey() ([]byte, bool) {
	var min []byte
	found := false
	for _, l := range it.layers {
		if !l.Valid() {
			continue
		}
		if !found || bytes.Compare(l.Key(), min) < 0 {
			min = l.Key()
			found = true
		}
	}
	return min, found
}

func (it *Iterator) maxValidKey() ([]byte, bool) {
	var max []byte
	found := false
	for _, l := range it.layers {
		if !l.Valid() {
			continue
		}
		if !found || bytes.Compare(l.Key(), max) > 0 {
			max = l.Key()
			found = true
		}
	}
	return max, found
}

// resolveForward positions the iterator at the smallest key that is not
// shadowed by a newer-layer tombstone, skipping tombstoned keys entirely
// (§4.3: "if the winning layer holds a tombstone the key is skipped, not
// surfaced").
func (it *Iterator) resolveForward() {
	for {
		key, found := it.minValidKey()
		if !found {
			it.valid, it.key, it.value = false, nil, nil
			return
		}
		winner := it.newestAt(key)
		if winner.Tombstone() {
			it.advanceAt(key, true)
			continue
		}
		it.valid, it.key, it.value = true, key, winner.Value()
		return
	}
}

func (it *Iterator) resolveBackward() {
	for {
		key, found := it.maxValidKey()
		if !found {
			it.valid, it.key, it.value = false, nil, nil
			return
		}
		winner := it.newestAt(key)
		if winner.Tombstone() {
			it.advanceAt(key, false)
			continue
		}
		it.valid, it.key, it.value = true, key, winner.Value()
		return
	}
}

// Next moves every layer cursor to its first key above the current
// winning key, then reselects a winner (§4.3). Every layer is re-seeked,
// so a layer left below the key by an earlier Prev is moved forward too.
func (it *Iterator) Next() {
	if it.valid {
		for _, l := range it.layers {
			l.SeekGE(it.key)
			if l.Valid() && bytes.Equal(l.Key(), it.key) {
				l.Next()
			}
		}
	} else {
		for _, l := range it.layers {
			l.SeekFirst()
		}
	}
	it.resolveForward()
}

// Prev mirrors Next using max instead of min: every layer cursor moves to
// its last key below the current winning key.
func (it *Iterator) Prev() {
	if it.valid {
		for _, l := range it.layers {
			l.SeekGE(it.key)
			if l.Valid() {
				l.Prev()
			} else {
				l.SeekLast()
			}
		}
	} else {
		for _, l := range it.layers {
			l.SeekLast()
		}
	}
	it.resolveBackward()
}

// SeekFirst positions at the smallest surfaced key.
func (it *Iterator) SeekFirst() {
	for _, l := range it.layers {
		l.SeekFirst()
	}
	it.resolveForward()
}

// SeekLast positions at the largest surfaced key.
func (it *Iterator) SeekLast() {
	for _, l := range it.layers {
		l.SeekLast()
	}
	it.resolveBackward()
}

// Find positions each sub-iterator with lower_bound(k); only yields a hit
// if the newest non-tombstone layer at that key has a value and its key
// equals k exactly (§4.3).
func (it *Iterator) Find(key []byte) bool {
	for _, l := range it.layers {
		l.SeekGE(key)
	}
	it.resolveForward()
	return it.valid && bytes.Equal(it.key, key)
}

// LowerBound positions at the first surfaced key >= key.
func (it *Iterator) LowerBound(key []byte) {
	for _, l := range it.layers {
		l.SeekGE(key)
	}
	it.resolveForward()
}
