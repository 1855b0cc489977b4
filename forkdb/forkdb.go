// Package forkdb implements the fork database of §4.5: a tree of state
// deltas rooted at the last irreversibly-committed state, with
// deterministic fork-head tracking and the create/finalize/commit/discard
// lifecycle.
package forkdb

import (
	"github.com/google/btree"

	"github.com/trust-net/go-forkstate/backend"
	"github.com/trust-net/go-forkstate/delta"
	statedblog "github.com/trust-net/go-forkstate/log"
	"github.com/trust-net/go-forkstate/multihash"
	"github.com/trust-net/go-forkstate/statedberr"
	"github.com/trust-net/go-forkstate/statenode"
)

// headItem orders fork heads by (revision, id) so the greatest element of
// the btree is the deterministic head-selection winner (§4.5): greatest
// revision, tie-broken by lexicographically greatest id.
type headItem struct {
	revision uint64
	id       multihash.ID
}

func (h headItem) Less(other btree.Item) bool {
	o := other.(headItem)
	if h.revision != o.revision {
		return h.revision < o.revision
	}
	return h.id.Less(o.id)
}

func idKey(id multihash.ID) string { return string(id.Bytes()) }

// ForkDB is the tree of candidate states rooted at the committed backend.
type ForkDB struct {
	store     backend.Backend
	codec     uint64
	root      *delta.Delta
	index     map[string]*delta.Delta
	children  map[string][]string
	head      string
	forkHeads *btree.BTree
	logger    statedblog.Logger
}

// New creates a fork database atop store, rooted at the zero multihash of
// codec (§3's genesis sentinel).
func New(store backend.Backend, codec uint64) *ForkDB {
	f := &ForkDB{store: store, codec: codec, logger: statedblog.NewLogger(ForkDB{})}
	f.initRoot()
	return f
}

func (f *ForkDB) initRoot() {
	f.root = delta.NewRoot(f.codec)
	f.index = map[string]*delta.Delta{idKey(f.root.ID()): f.root}
	f.children = map[string][]string{}
	f.forkHeads = btree.New(32)
	f.forkHeads.ReplaceOrInsert(headItem{revision: 0, id: f.root.ID()})
	f.head = idKey(f.root.ID())
}

// ancestorChain returns d's non-root ancestors up to and including d
// itself, oldest first, for handing to statenode.NewNode / merge.NewChain.
func (f *ForkDB) ancestorChain(d *delta.Delta) []*delta.Delta {
	var chain []*delta.Delta
	for cur := d; cur != f.root; cur = cur.Parent() {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

func (f *ForkDB) wrap(d *delta.Delta) *statenode.Node {
	if d == f.root {
		return statenode.NewRootNode(f.store, f.root)
	}
	return statenode.NewNode(f.store, f.ancestorChain(d))
}

// CreateWritableNode returns a new unfinalized child under parentID.
// Returns UnknownParent, DuplicateNode or ParentNotFinalized per §4.5.
func (f *ForkDB) CreateWritableNode(parentID, newID multihash.ID) (*statenode.Node, error) {
	parent, ok := f.index[idKey(parentID)]
	if !ok {
		return nil, statedberr.New(statedberr.UnknownParent, "create_writable_node: unknown parent "+parentID.String())
	}
	if _, exists := f.index[idKey(newID)]; exists {
		return nil, statedberr.New(statedberr.DuplicateNode, "create_writable_node: duplicate id "+newID.String())
	}
	if !parent.Finalized() {
		return nil, statedberr.New(statedberr.ParentNotFinalized, "create_writable_node: parent not finalized")
	}

	d := delta.NewChild(newID, parent)
	f.index[idKey(newID)] = d
	f.children[idKey(parentID)] = append(f.children[idKey(parentID)], idKey(newID))

	// parentID no longer has zero children, so it drops out of fork_heads;
	// newID is a fresh leaf.
	f.forkHeads.Delete(headItem{revision: parent.Revision(), id: parentID})
	f.forkHeads.ReplaceOrInsert(headItem{revision: d.Revision(), id: newID})

	f.logger.Debug("created writable node %s atop %s at revision %d", newID, parentID, d.Revision())
	return f.wrap(d), nil
}

// FinalizeNode marks id's delta finalized and re-evaluates head.
func (f *ForkDB) FinalizeNode(id multihash.ID) error {
	d, ok := f.index[idKey(id)]
	if !ok {
		return statedberr.New(statedberr.UnknownNode, "finalize_node: unknown node "+id.String())
	}
	d.Finalize()
	f.recomputeHead()
	return nil
}

// recomputeHead selects the greatest-(revision,id) fork head whose delta
// is finalized. A longer but still non-finalized branch never displaces
// the current head (§4.5).
func (f *ForkDB) recomputeHead() {
	f.forkHeads.Descend(func(it btree.Item) bool {
		h := it.(headItem)
		d := f.index[idKey(h.id)]
		if d != nil && d.Finalized() {
			f.head = idKey(h.id)
			return false
		}
		return true
	})
}

// GetNode returns the node for id, if present in the index.
func (f *ForkDB) GetNode(id multihash.ID) (*statenode.Node, bool) {
	d, ok := f.index[idKey(id)]
	if !ok {
		return nil, false
	}
	return f.wrap(d), true
}

// GetNodeAtRevision returns the unique ancestor of the current head at
// revision rev, or false if none exists.
func (f *ForkDB) GetNodeAtRevision(rev uint64) (*statenode.Node, bool) {
	d, ok := f.index[f.head]
	if !ok {
		return nil, false
	}
	for d != nil {
		if d.Revision() == rev {
			return f.wrap(d), true
		}
		if d.Revision() < rev {
			return nil, false
		}
		d = d.Parent()
	}
	return nil, false
}

// GetHead returns the current preferred tip.
func (f *ForkDB) GetHead() *statenode.Node {
	return f.wrap(f.index[f.head])
}

// GetRoot returns the committed root node.
func (f *ForkDB) GetRoot() *statenode.Node {
	return f.wrap(f.root)
}

// GetForkHeads returns every leaf id, in no particular order.
func (f *ForkDB) GetForkHeads() []multihash.ID {
	ids := make([]multihash.ID, 0, f.forkHeads.Len())
	f.forkHeads.Ascend(func(it btree.Item) bool {
		ids = append(ids, it.(headItem).id)
		return true
	})
	return ids
}

// pruneSubtree removes id and its entire subtree from the index,
// children map and fork-head set, and detaches id from its parent's
// children list.
func (f *ForkDB) pruneSubtree(id string, parentKey string) {
	if parentKey != "" {
		kids := f.children[parentKey]
		for i, k := range kids {
			if k == id {
				f.children[parentKey] = append(kids[:i], kids[i+1:]...)
				break
			}
		}
	}
	var walk func(k string)
	walk = func(k string) {
		for _, c := range f.children[k] {
			walk(c)
		}
		if d, ok := f.index[k]; ok {
			f.forkHeads.Delete(headItem{revision: d.Revision(), id: d.ID()})
		}
		delete(f.index, k)
		delete(f.children, k)
	}
	walk(id)
}

// CommitNode requires id to be on the path from root to a fork head.
// It collapses every ancestor between root and id into the backend,
// discards every sibling subtree off that path, and installs id as the
// new root (§4.5).
func (f *ForkDB) CommitNode(id multihash.ID) error {
	key := idKey(id)
	d, ok := f.index[key]
	if !ok {
		return statedberr.New(statedberr.UnknownNode, "commit_node: unknown node "+id.String())
	}
	if d == f.root {
		return nil
	}

	chain := f.ancestorChain(d) // oldest..d, all strictly below the current root excluded

	// discard every sibling hanging off the root..d path before collapsing it.
	parentKey := idKey(f.root.ID())
	for _, anc := range chain {
		ancKey := idKey(anc.ID())
		for _, childKey := range append([]string{}, f.children[parentKey]...) {
			if childKey != ancKey {
				f.pruneSubtree(childKey, parentKey)
			}
		}
		parentKey = ancKey
	}

	for _, anc := range chain {
		if err := anc.Commit(f.store); err != nil {
			return err
		}
	}

	oldRootKey := idKey(f.root.ID())
	for _, anc := range chain[:len(chain)-1] {
		delete(f.index, idKey(anc.ID()))
		delete(f.children, idKey(anc.ID()))
	}
	delete(f.index, oldRootKey)
	delete(f.children, oldRootKey)

	d.DetachParent()
	f.root = d
	f.recomputeHead()
	f.logger.Info("committed node %s as new root at revision %d", id, d.Revision())
	return nil
}

// DiscardNode removes id and its subtree from the index. Rejects
// discarding the current head (§4.5).
func (f *ForkDB) DiscardNode(id multihash.ID) error {
	key := idKey(id)
	if key == f.head {
		return statedberr.New(statedberr.CannotDiscard, "discard_node: cannot discard current head")
	}
	d, ok := f.index[key]
	if !ok {
		return statedberr.New(statedberr.UnknownNode, "discard_node: unknown node "+id.String())
	}
	parentKey := ""
	if d.Parent() != nil {
		parentKey = idKey(d.Parent().ID())
	}
	f.pruneSubtree(key, parentKey)
	// a parent that lost its last child is a leaf again.
	if parent, ok := f.index[parentKey]; ok && len(f.children[parentKey]) == 0 {
		f.forkHeads.ReplaceOrInsert(headItem{revision: parent.Revision(), id: parent.ID()})
	}
	f.recomputeHead()
	return nil
}

// Reset drops all state and reinitializes with a single root at
// (revision 0, id = zero multihash), clearing the backing store too.
func (f *ForkDB) Reset() error {
	it := f.store.Begin()
	var keys [][]byte
	for it.Valid() {
		keys = append(keys, append([]byte(nil), it.Key()...))
		it.Next()
	}
	for _, k := range keys {
		if err := f.store.Erase(k); err != nil {
			return err
		}
	}
	f.initRoot()
	return nil
}
