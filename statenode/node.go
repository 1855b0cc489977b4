// Package statenode implements the public state-node handle of §4.4: a
// thin wrapper over a delta, enforcing finalization rules and able to
// spawn anonymous child nodes for speculative work.
package statenode

import (
	"github.com/trust-net/go-forkstate/backend"
	"github.com/trust-net/go-forkstate/delta"
	statedblog "github.com/trust-net/go-forkstate/log"
	"github.com/trust-net/go-forkstate/merge"
	"github.com/trust-net/go-forkstate/multihash"
	"github.com/trust-net/go-forkstate/statedberr"
)

// Node wraps a delta plus the chain of non-root ancestor deltas needed to
// answer reads by merge iteration over [backend, ...chain, self].
type Node struct {
	store     backend.Backend
	chain     []*delta.Delta // oldest first, non-root ancestors including self's own delta
	self      *delta.Delta
	anonymous bool
	logger    statedblog.Logger
}

// NewRootNode wraps the fork database's root delta: its chain is empty,
// so reads resolve directly against the committed backend.
func NewRootNode(store backend.Backend, root *delta.Delta) *Node {
	return &Node{store: store, chain: nil, self: root, logger: statedblog.NewLogger(Node{})}
}

// NewNode wraps a non-root delta given the full non-root ancestor chain
// up to and including it (oldest first).
func NewNode(store backend.Backend, chain []*delta.Delta) *Node {
	if len(chain) == 0 {
		panic("statenode: NewNode requires a non-empty chain; use NewRootNode for the root")
	}
	return &Node{store: store, chain: chain, self: chain[len(chain)-1], logger: statedblog.NewLogger(Node{})}
}

func (n *Node) ID() multihash.ID    { return n.self.ID() }
func (n *Node) Revision() uint64    { return n.self.Revision() }
func (n *Node) IsAnonymous() bool   { return n.anonymous }
func (n *Node) IsFinalized() bool   { return n.self.Finalized() }
func (n *Node) Delta() *delta.Delta { return n.self }

// ParentID returns the zero value and false for the root node.
func (n *Node) ParentID() (multihash.ID, bool) {
	if n.self.Parent() == nil {
		return multihash.ID{}, false
	}
	return n.self.Parent().ID(), true
}

func (n *Node) mergeIterator() *merge.Iterator {
	return merge.NewChain(n.store, n.chain)
}

// GetObject reads the object via merge iteration over the chain
// root...self (§4.4).
func (n *Node) GetObject(space, key []byte) ([]byte, bool) {
	it := n.mergeIterator()
	k := delta.ObjectKey(space, key)
	if it.Find(k) {
		return append([]byte(nil), it.Value()...), true
	}
	return nil, false
}

// PutObject writes (value non-nil) or tombstones (value nil) the object,
// returning the size delta: new size - old size, negative on erase, 0 on
// same-size overwrite, positive on insert (§4.4). Fails with NodeFinalized
// if this node is not writable.
func (n *Node) PutObject(space, key, value []byte) (int, error) {
	if n.self.Finalized() {
		return 0, statedberr.New(statedberr.NodeFinalized, "put_object on finalized node")
	}
	old, found := n.GetObject(space, key)
	oldSize := 0
	if found {
		oldSize = len(old)
	}
	if value == nil {
		if err := n.self.Erase(space, key); err != nil {
			return 0, err
		}
		return -oldSize, nil
	}
	if err := n.self.Put(space, key, value); err != nil {
		return 0, err
	}
	return len(value) - oldSize, nil
}

// GetNextObject returns the first object strictly after (space, key) in
// this node's merged view, along with the space/key it lives under.
func (n *Node) GetNextObject(space, key []byte) (nextSpace, nextKey, value []byte, found bool) {
	it := n.mergeIterator()
	k := delta.ObjectKey(space, key)
	it.LowerBound(k)
	if it.Valid() && string(it.Key()) == string(k) {
		it.Next()
	}
	if !it.Valid() {
		return nil, nil, nil, false
	}
	s, kk := delta.SplitObjectKey(it.Key())
	return s, kk, append([]byte(nil), it.Value()...), true
}

// GetPrevObject returns the last object strictly before (space, key).
func (n *Node) GetPrevObject(space, key []byte) (prevSpace, prevKey, value []byte, found bool) {
	it := n.mergeIterator()
	k := delta.ObjectKey(space, key)
	it.LowerBound(k)
	if !it.Valid() {
		it.SeekLast()
	} else {
		it.Prev()
	}
	if !it.Valid() {
		return nil, nil, nil, false
	}
	s, kk := delta.SplitObjectKey(it.Key())
	return s, kk, append([]byte(nil), it.Value()...), true
}

// Finalize marks this node's delta finalized; further mutating calls fail.
func (n *Node) Finalize() {
	n.self.Finalize()
}

// CreateAnonymousNode returns a fresh child node for speculative work.
// Writes into it are invisible to this node unless Commit is called on
// it. Per §4.4, an anonymous node is never inserted into the fork
// database's index.
func (n *Node) CreateAnonymousNode() *Node {
	anonDelta := delta.NewChild(n.self.ID(), n.self)
	return &Node{
		store:     n.store,
		chain:     append(append([]*delta.Delta{}, n.chain...), anonDelta),
		self:      anonDelta,
		anonymous: true,
		logger:    statedblog.NewLogger(Node{}),
	}
}

// Commit replays this anonymous node's writes/tombstones into its parent,
// permitted only if the parent is not finalized (§4.4). Only valid on a
// node created by CreateAnonymousNode.
func (n *Node) Commit(parent *Node) error {
	if !n.anonymous {
		return statedberr.New(statedberr.UnexpectedState, "commit called on a non-anonymous node")
	}
	if parent.self.Finalized() {
		return statedberr.New(statedberr.NodeFinalized, "cannot commit anonymous node into a finalized parent")
	}
	for _, k := range n.self.Keys() {
		value, tombstone, _ := n.self.LocalEntry(k)
		space, key := delta.SplitObjectKey([]byte(k))
		if tombstone {
			if err := parent.self.Erase(space, key); err != nil {
				return err
			}
			continue
		}
		if err := parent.self.Put(space, key, value); err != nil {
			return err
		}
	}
	return nil
}
