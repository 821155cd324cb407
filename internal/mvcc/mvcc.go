// Package mvcc implements snapshot-isolated multi-version concurrency
// control over a store.Store (spec §4.3).
package mvcc

import (
	"github.com/coledb/coledb/internal/store"
)

// Status reports coarse engine-wide counters (spec §4.3 Status).
type Status struct {
	Txns       uint64
	TxnsActive uint64
	Storage    string
}

// MVCC is the engine that owns the shared store and hands out
// Transactions. A single instance is shared by every session in the
// server (spec §5's "no global state" note: sharing happens through
// this pointer, passed explicitly at session construction).
type MVCC struct {
	store store.Store
}

func New(s store.Store) *MVCC {
	return &MVCC{store: s}
}

// Begin opens a new transaction in the given mode (spec §4.3 Begin).
func (m *MVCC) Begin(mode Mode) (*Transaction, error) {
	return beginTransaction(m.store, mode)
}

// Resume reattaches to a still-active transaction by id (spec §4.3
// Resume), recovering its mode and invisible set from storage.
func (m *MVCC) Resume(id uint64) (*Transaction, error) {
	return resumeTransaction(m.store, id)
}

// SetMetadata stores an engine-level metadata value outside any
// transaction's visibility rules (e.g. the server's persisted node id).
func (m *MVCC) SetMetadata(name string, value []byte) error {
	return m.store.Set(keyMetadata([]byte(name)).encode(), value)
}

// GetMetadata retrieves a value set by SetMetadata.
func (m *MVCC) GetMetadata(name string) ([]byte, bool, error) {
	return m.store.Get(keyMetadata([]byte(name)).encode())
}

// GetStatus reports engine-wide counters (spec §4.3 Status).
func (m *MVCC) GetStatus() (Status, error) {
	nextBytes, ok, err := m.store.Get(keyTxnNext().encode())
	if err != nil {
		return Status{}, err
	}
	next := uint64(1)
	if ok {
		next, err = decodeUint64Value(nextBytes)
		if err != nil {
			return Status{}, err
		}
	}

	rng := store.KeyRange(keyTxnActive(0).encode(), keyTxnActive(MaxVersion).encode())
	it, err := m.store.Scan(rng)
	if err != nil {
		return Status{}, err
	}
	var active uint64
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		active++
	}

	return Status{
		Txns:       next - 1,
		TxnsActive: active,
		Storage:    storageName(m.store),
	}, nil
}

func storageName(s store.Store) string {
	switch s.(type) {
	case *store.BTreeStore:
		return "btree"
	case *store.MemStore:
		return "mem"
	default:
		return "store"
	}
}
