// Package backend is the ordered key/value store abstraction of §4.1: a
// uniform contract over two drivers, an in-memory sorted map and a
// persistent LSM-style store, both delivering keys in strict lexicographic
// order and both exposing bidirectional iterators.
package backend

// Iterator walks a Backend's key space in either direction. It remains
// valid across non-mutating operations on the Backend it came from; a
// mutation may invalidate it.
type Iterator interface {
	// Valid reports whether the iterator is positioned at an entry (as
	// opposed to a begin/end sentinel).
	Valid() bool
	Key() []byte
	Value() []byte
	// Next advances toward larger keys. Calling Next past the last entry
	// moves to the end sentinel, and Prev on the iterator returned by End
	// lands on the last entry. Other moves from a sentinel differ by
	// driver: MemBackend's iterator keeps no direction, so Next from any
	// sentinel lands on the first entry and Prev on the last;
	// LevelBackend's iterator steps back onto the entry it walked off and
	// otherwise stays put.
	Next()
	// Prev advances toward smaller keys.
	Prev()
}

// Backend is the uniform contract of §4.1.
type Backend interface {
	Put(key, value []byte) error
	Erase(key []byte) error
	Find(key []byte) Iterator
	LowerBound(key []byte) Iterator
	Begin() Iterator
	End() Iterator
	Size() int
	Close() error
}
