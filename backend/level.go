package backend

import (
	"github.com/syndtr/goleveldb/leveldb"
	dberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	statedblog "github.com/trust-net/go-forkstate/log"
)

// LevelBackend is the persistent LSM driver of §4.1: same cache/handle
// floor and bloom filter as a conventional goleveldb setup, generalized
// behind the Backend interface (Find/LowerBound/Begin/End/Size) instead of
// a narrower Put/Get/Has/Delete surface.
type LevelBackend struct {
	fn     string
	ldb    *leveldb.DB
	logger statedblog.Logger
}

func NewLevelBackend(file string, cache, handles int) (*LevelBackend, error) {
	if cache < 16 {
		cache = 16
	}
	if handles < 16 {
		handles = 16
	}
	ldb, err := leveldb.OpenFile(file, &opt.Options{
		OpenFilesCacheCapacity: handles,
		BlockCacheCapacity:     cache / 2,
		WriteBuffer:            cache / 4,
		Filter:                 filter.NewBloomFilter(10),
	})
	if _, corrupted := err.(*dberrors.ErrCorrupted); corrupted {
		ldb, err = leveldb.RecoverFile(file, nil)
	}
	if err != nil {
		return nil, err
	}
	return &LevelBackend{
		ldb:    ldb,
		fn:     file,
		logger: statedblog.NewLogger(LevelBackend{}),
	}, nil
}

func (l *LevelBackend) Put(key, value []byte) error {
	return l.ldb.Put(key, value, nil)
}

func (l *LevelBackend) Erase(key []byte) error {
	return l.ldb.Delete(key, nil)
}

func (l *LevelBackend) Size() int {
	var count int
	it := l.ldb.NewIterator(nil, nil)
	defer it.Release()
	for it.Next() {
		count++
	}
	return count
}

func (l *LevelBackend) Close() error {
	return l.ldb.Close()
}

func (l *LevelBackend) Find(key []byte) Iterator {
	it := l.ldb.NewIterator(util.BytesPrefix(nil), nil)
	if it.Seek(key) && string(it.Key()) == string(key) {
		return &levelIterator{it: it, valid: true}
	}
	it.Release()
	return &levelIterator{valid: false}
}

func (l *LevelBackend) LowerBound(key []byte) Iterator {
	it := l.ldb.NewIterator(nil, nil)
	if it.Seek(key) {
		return &levelIterator{it: it, valid: true}
	}
	it.Release()
	return &levelIterator{valid: false}
}

func (l *LevelBackend) Begin() Iterator {
	it := l.ldb.NewIterator(nil, nil)
	if it.First() {
		return &levelIterator{it: it, valid: true}
	}
	it.Release()
	return &levelIterator{valid: false}
}

func (l *LevelBackend) End() Iterator {
	// Park a native iterator past the last entry so Prev steps back onto it.
	it := l.ldb.NewIterator(nil, nil)
	if it.Last() {
		it.Next()
	}
	return &levelIterator{it: it, valid: false}
}

// levelIterator wraps goleveldb's native bidirectional iterator, which
// already remains valid across non-mutating operations per §4.1.
type levelIterator struct {
	it    iterator.Iterator
	valid bool
}

func (it *levelIterator) Valid() bool { return it.valid }

func (it *levelIterator) Key() []byte {
	if !it.valid {
		return nil
	}
	return append([]byte(nil), it.it.Key()...)
}

func (it *levelIterator) Value() []byte {
	if !it.valid {
		return nil
	}
	return append([]byte(nil), it.it.Value()...)
}

func (it *levelIterator) Next() {
	if it.it == nil {
		return
	}
	it.valid = it.it.Next()
}

func (it *levelIterator) Prev() {
	if it.it == nil {
		return
	}
	it.valid = it.it.Prev()
}
