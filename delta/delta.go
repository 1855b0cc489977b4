// Package delta implements the single mutation layer of §4.2: writes and
// tombstones held against a parent delta, identified by a block id,
// carrying its revision (height) and a pointer to its parent.
package delta

import (
	"sort"
	"sync"

	"github.com/trust-net/go-forkstate/backend"
	statedblog "github.com/trust-net/go-forkstate/log"
	"github.com/trust-net/go-forkstate/multihash"
	"github.com/trust-net/go-forkstate/statedberr"
)

// Lookup is the tri-state result of a local Get: a delta layer either
// holds the object, marks it deleted, or says nothing about it at all.
type Lookup int

const (
	NotHere Lookup = iota
	Present
	Deleted
)

// objectKey materializes (space, key) as a single sortable byte string:
// space || 0x00 || key. A NUL separator is used because both space and
// key are arbitrary-length byte strings, not a fixed small set of table
// tags.
func objectKey(space, key []byte) string {
	return string(ObjectKey(space, key))
}

// ObjectKey is the exported form of the same materialization, used by the
// merge iterator and state node to address the backend directly.
func ObjectKey(space, key []byte) []byte {
	buf := make([]byte, 0, len(space)+1+len(key))
	buf = append(buf, space...)
	buf = append(buf, 0x00)
	buf = append(buf, key...)
	return buf
}

// SplitObjectKey reverses ObjectKey.
func SplitObjectKey(k []byte) (space, key []byte) {
	return splitObjectKey(string(k))
}

// Delta is one mutation layer, identified by id (normally the block id
// that produced it), overlaying a parent delta.
type Delta struct {
	id         multihash.ID
	parent     *Delta
	revision   uint64
	writes     map[string][]byte
	tombstones map[string]bool
	finalized  bool
	lock       sync.RWMutex
	logger     statedblog.Logger
}

// NewRoot creates the revision-0 delta at the zero multihash of codec,
// already finalized (§3: "the root delta's id is the zero multihash").
func NewRoot(codec uint64) *Delta {
	d := &Delta{
		id:         multihash.Zero(codec),
		revision:   0,
		writes:     make(map[string][]byte),
		tombstones: make(map[string]bool),
		finalized:  true,
		logger:     statedblog.NewLogger(Delta{}),
	}
	return d
}

// NewChild creates a fresh, non-finalized delta atop parent. Per §3's
// invariant, parent must already be finalized; the caller (statenode /
// forkdb) is responsible for enforcing that before calling NewChild,
// except for the one anonymous-in-progress delta a writable handle may
// hold atop itself.
func NewChild(id multihash.ID, parent *Delta) *Delta {
	return &Delta{
		id:         id,
		parent:     parent,
		revision:   parent.revision + 1,
		writes:     make(map[string][]byte),
		tombstones: make(map[string]bool),
		logger:     statedblog.NewLogger(Delta{}),
	}
}

func (d *Delta) ID() multihash.ID { return d.id }
func (d *Delta) Revision() uint64 { return d.revision }
func (d *Delta) Parent() *Delta   { return d.parent }

// DetachParent severs the link to this delta's parent, making it a root
// in its own right. Used by forkdb.CommitNode to rebase the fork
// database's root pointer onto a newly-committed delta (§4.5).
func (d *Delta) DetachParent() {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.parent = nil
}
func (d *Delta) Finalized() bool {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.finalized
}

// Put records a write. Fails with NodeFinalized if this delta is already
// finalized.
func (d *Delta) Put(space, key, value []byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.finalized {
		return statedberr.New(statedberr.NodeFinalized, "put on finalized delta")
	}
	k := objectKey(space, key)
	d.writes[k] = append([]byte(nil), value...)
	delete(d.tombstones, k)
	return nil
}

// Erase records a tombstone. Fails with NodeFinalized if this delta is
// already finalized.
func (d *Delta) Erase(space, key []byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.finalized {
		return statedberr.New(statedberr.NodeFinalized, "erase on finalized delta")
	}
	k := objectKey(space, key)
	delete(d.writes, k)
	d.tombstones[k] = true
	return nil
}

// Get looks up (space, key) in this delta's own local layer only -
// callers walking the full chain use the merge iterator (§4.3) instead.
func (d *Delta) Get(space, key []byte) Lookup {
	d.lock.RLock()
	defer d.lock.RUnlock()
	k := objectKey(space, key)
	if _, ok := d.writes[k]; ok {
		return Present
	}
	if d.tombstones[k] {
		return Deleted
	}
	return NotHere
}

// GetValue returns the locally-written value, if any.
func (d *Delta) GetValue(space, key []byte) ([]byte, bool) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	v, ok := d.writes[objectKey(space, key)]
	return v, ok
}

// Finalize marks this delta finalized. Idempotent.
func (d *Delta) Finalize() {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.finalized = true
}

// Keys returns every key touched by this delta layer (write or tombstone)
// in lexicographic order, for the merge iterator's per-layer cursor (§4.3).
func (d *Delta) Keys() []string {
	return d.sortedKeys()
}

// LocalEntry reports the locally-held write or tombstone for the
// already-materialized key k, if any.
func (d *Delta) LocalEntry(k string) (value []byte, tombstone bool, ok bool) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	if v, have := d.writes[k]; have {
		return v, false, true
	}
	if d.tombstones[k] {
		return nil, true, true
	}
	return nil, false, false
}

// sortedKeys returns every key touched by this delta layer (write or
// tombstone) in lexicographic order, for the merge iterator's per-layer
// cursor (§4.3).
func (d *Delta) sortedKeys() []string {
	d.lock.RLock()
	defer d.lock.RUnlock()
	keys := make([]string, 0, len(d.writes)+len(d.tombstones))
	seen := make(map[string]bool, cap(keys))
	for k := range d.writes {
		keys = append(keys, k)
		seen[k] = true
	}
	for k := range d.tombstones {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Commit merges this delta's writes and tombstones down into a Backend,
// per §4.2: "apply writes and tombstones to the backing store, drop
// intermediate layers, rebase root pointer to self." The chain of
// ancestors between the previous root and this delta is expected to have
// already been folded in by the caller (forkdb.CommitNode); Commit itself
// only applies this one layer.
func (d *Delta) Commit(store backend.Backend) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	for k, v := range d.writes {
		space, key := splitObjectKey(k)
		if err := store.Put(joinBackendKey(space, key), v); err != nil {
			return err
		}
	}
	for k := range d.tombstones {
		space, key := splitObjectKey(k)
		if err := store.Erase(joinBackendKey(space, key)); err != nil {
			return err
		}
	}
	d.finalized = true
	return nil
}

func splitObjectKey(k string) (space, key []byte) {
	b := []byte(k)
	for i, c := range b {
		if c == 0x00 {
			return b[:i], b[i+1:]
		}
	}
	return b, nil
}

// joinBackendKey re-derives the same materialization objectKey uses, so a
// committed backend and a delta chain agree on physical key layout.
func joinBackendKey(space, key []byte) []byte {
	buf := make([]byte, 0, len(space)+1+len(key))
	buf = append(buf, space...)
	buf = append(buf, 0x00)
	buf = append(buf, key...)
	return buf
}
