package store

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/coledb/coledb/internal/dberrors"
)

// item is the element stored in the underlying btree.BTreeG, ordered by
// Key alone (Value is payload, not part of the ordering).
type item struct {
	Key   []byte
	Value []byte
}

func lessItems(a, b item) bool {
	return bytes.Compare(a.Key, b.Key) < 0
}

// BTreeStore is the default in-memory Store (spec §4.1's "a balanced
// ordered map suffices"), backed by a github.com/google/btree.BTreeG
// guarded by a sync.RWMutex so it is safe for concurrent sessions.
type BTreeStore struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[item]
}

// degree of 32 matches google/btree's own recommended default for
// general-purpose in-memory trees.
const btreeDegree = 32

func NewBTreeStore() *BTreeStore {
	return &BTreeStore{tree: btree.NewG(btreeDegree, lessItems)}
}

func (s *BTreeStore) Get(key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.tree.Get(item{Key: key})
	if !ok {
		return nil, false, nil
	}
	return it.Value, true, nil
}

func (s *BTreeStore) Set(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.ReplaceOrInsert(item{Key: key, Value: value})
	return nil
}

func (s *BTreeStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Delete(item{Key: key})
	return nil
}

// Scan materializes every entry within rng while holding the read lock,
// then releases it: per spec §5 the lock must not be held across
// iteration (which may suspend on network I/O at the session layer).
func (s *BTreeStore) Scan(rng Range) (Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []Entry
	s.tree.Ascend(func(it item) bool {
		if !withinStart(it.Key, rng.Start) {
			return true
		}
		if !withinEnd(it.Key, rng.End) {
			return false
		}
		entries = append(entries, Entry{Key: it.Key, Value: it.Value})
		return true
	})
	return newSliceIterator(entries), nil
}

func (s *BTreeStore) Flush() error { return nil }

func withinStart(key []byte, b Bound) bool {
	switch b.Kind {
	case BoundUnbounded:
		return true
	case BoundIncluded:
		return bytes.Compare(key, b.Key) >= 0
	case BoundExcluded:
		return bytes.Compare(key, b.Key) > 0
	default:
		return false
	}
}

func withinEnd(key []byte, b Bound) bool {
	switch b.Kind {
	case BoundUnbounded:
		return true
	case BoundIncluded:
		return bytes.Compare(key, b.Key) <= 0
	case BoundExcluded:
		return bytes.Compare(key, b.Key) < 0
	default:
		return false
	}
}

var _ Store = (*BTreeStore)(nil)

// errNotFound is unused by the contract (Get returns ok=false instead)
// but kept available for implementations that want a sentinel.
var errNotFound = dberrors.New(dberrors.IO, "key not found")
