package mvcc

import (
	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/store"
)

// snapshot is the set of transaction ids invisible to a transaction,
// captured once at Begin (or loaded at Resume).
type snapshot struct {
	version   uint64
	invisible map[uint64]struct{}
}

func (s snapshot) isVisible(version uint64) bool {
	if version > s.version {
		return false
	}
	_, hidden := s.invisible[version]
	return !hidden
}

// Transaction is a live MVCC transaction (spec §4.3).
type Transaction struct {
	store store.Store
	id    uint64
	mode  Mode
	snap  snapshot
}

func beginTransaction(s store.Store, mode Mode) (*Transaction, error) {
	nextBytes, ok, err := s.Get(keyTxnNext().encode())
	if err != nil {
		return nil, err
	}
	id := uint64(1)
	if ok {
		id, err = decodeUint64Value(nextBytes)
		if err != nil {
			return nil, err
		}
	}
	if err := s.Set(keyTxnNext().encode(), encodeUint64Value(id+1)); err != nil {
		return nil, err
	}
	if err := s.Set(keyTxnActive(id).encode(), mode.encode()); err != nil {
		return nil, err
	}

	// A snapshot transaction pins its visibility to a prior version
	// instead of the invisible set live at its own id -- load the
	// snapshot recorded when that version began, the same way
	// resumeTransaction does for a resumed snapshot transaction.
	if mode.Kind == ModeSnapshot {
		snapBytes, ok, err := s.Get(keyTxnSnapshot(mode.Version).encode())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, dberrors.New(dberrors.Mvcc, "snapshot for version %d not found", mode.Version)
		}
		invisible, err := decodeIDSet(snapBytes)
		if err != nil {
			return nil, err
		}
		return &Transaction{store: s, id: id, mode: mode, snap: snapshot{version: mode.Version, invisible: invisible}}, nil
	}

	invisible := make(map[uint64]struct{})
	rng := store.Range{Start: store.Included(keyTxnActive(0).encode()), End: store.Excluded(keyTxnActive(id).encode())}
	it, err := s.Scan(rng)
	if err != nil {
		return nil, err
	}
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		k, err := decodeKey(e.Key)
		if err != nil {
			return nil, err
		}
		if k.kind != kindTxnActive {
			return nil, dberrors.New(dberrors.Internal, "expected TxnActive key, got kind %v", k.kind)
		}
		invisible[k.id] = struct{}{}
	}

	if err := s.Set(keyTxnSnapshot(id).encode(), encodeIDSet(invisible)); err != nil {
		return nil, err
	}

	return &Transaction{store: s, id: id, mode: mode, snap: snapshot{version: id, invisible: invisible}}, nil
}

func resumeTransaction(s store.Store, id uint64) (*Transaction, error) {
	modeBytes, ok, err := s.Get(keyTxnActive(id).encode())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dberrors.New(dberrors.Mvcc, "no active transaction %d", id)
	}
	mode, err := decodeMode(modeBytes)
	if err != nil {
		return nil, err
	}

	snapVersion := id
	if mode.Kind == ModeSnapshot {
		snapVersion = mode.Version
	}
	snapBytes, ok, err := s.Get(keyTxnSnapshot(snapVersion).encode())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dberrors.New(dberrors.Mvcc, "snapshot for version %d not found", snapVersion)
	}
	invisible, err := decodeIDSet(snapBytes)
	if err != nil {
		return nil, err
	}

	return &Transaction{store: s, id: id, mode: mode, snap: snapshot{version: snapVersion, invisible: invisible}}, nil
}

// ID returns this transaction's id.
func (t *Transaction) ID() uint64 { return t.id }

// Mode returns this transaction's access mode.
func (t *Transaction) Mode() Mode { return t.mode }

// Commit finalizes the transaction: its rollback log is discarded (the
// written record versions remain) and its active marker is dropped.
func (t *Transaction) Commit() error {
	if err := t.deleteRollbackLog(); err != nil {
		return err
	}
	if err := t.store.Delete(keyTxnActive(t.id).encode()); err != nil {
		return err
	}
	return t.store.Flush()
}

// Rollback undoes every write this transaction made, following its
// rollback log, then drops its active marker.
func (t *Transaction) Rollback() error {
	rng := store.KeyRange(
		keyTxnUpdate(t.id, nil).encode(),
		keyTxnUpdate(t.id+1, nil).encode(),
	)
	it, err := t.store.Scan(rng)
	if err != nil {
		return err
	}
	var recordKeys [][]byte
	var updateKeys [][]byte
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		k, err := decodeKey(e.Key)
		if err != nil {
			return err
		}
		if k.kind != kindTxnUpdate {
			return dberrors.New(dberrors.Internal, "expected TxnUpdate key, got kind %v", k.kind)
		}
		recordKeys = append(recordKeys, k.record)
		updateKeys = append(updateKeys, e.Key)
	}
	for i, rec := range recordKeys {
		if err := t.store.Delete(rec); err != nil {
			return err
		}
		if err := t.store.Delete(updateKeys[i]); err != nil {
			return err
		}
	}
	if err := t.store.Delete(keyTxnActive(t.id).encode()); err != nil {
		return err
	}
	return t.store.Flush()
}

// deleteRollbackLog removes this transaction's TxnUpdate entries without
// touching the records they point at (used by Commit, where the writes
// should be kept).
func (t *Transaction) deleteRollbackLog() error {
	rng := store.KeyRange(
		keyTxnUpdate(t.id, nil).encode(),
		keyTxnUpdate(t.id+1, nil).encode(),
	)
	it, err := t.store.Scan(rng)
	if err != nil {
		return err
	}
	var updateKeys [][]byte
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		updateKeys = append(updateKeys, e.Key)
	}
	for _, uk := range updateKeys {
		if err := t.store.Delete(uk); err != nil {
			return err
		}
	}
	return nil
}

// Get reads the newest version of key visible to this transaction, or
// (nil, false) if missing or deleted (spec §4.3 read path).
func (t *Transaction) Get(key []byte) ([]byte, bool, error) {
	rng := store.KeyRange(keyRecord(key, 0).encode(), keyRecord(key, t.snap.version).encode())
	it, err := t.store.Scan(rng)
	if err != nil {
		return nil, false, err
	}
	rev := it.Reverse()
	for {
		e, ok := rev.Next()
		if !ok {
			break
		}
		k, err := decodeKey(e.Key)
		if err != nil {
			return nil, false, err
		}
		if k.kind != kindRecord {
			return nil, false, dberrors.New(dberrors.Internal, "expected Record key, got kind %v", k.kind)
		}
		if !t.snap.isVisible(k.version) {
			continue
		}
		payload, present := decodeRecordValue(e.Value)
		return payload, present, nil
	}
	return nil, false, nil
}

// Set writes key=value, visible to this transaction and any transaction
// that begins after it commits.
func (t *Transaction) Set(key, value []byte) error {
	return t.write(key, value, true)
}

// Delete writes a tombstone for key.
func (t *Transaction) Delete(key []byte) error {
	return t.write(key, nil, false)
}

func (t *Transaction) write(key, value []byte, present bool) error {
	if !t.mode.Mutable() {
		return dberrors.New(dberrors.Mvcc, "transaction is read-only")
	}

	min := t.id + 1
	for invisibleID := range t.snap.invisible {
		if invisibleID < min {
			min = invisibleID
		}
	}

	rng := store.KeyRange(keyRecord(key, min).encode(), keyRecord(key, MaxVersion).encode())
	it, err := t.store.Scan(rng)
	if err != nil {
		return err
	}
	rev := it.Reverse()
	for {
		e, ok := rev.Next()
		if !ok {
			break
		}
		k, err := decodeKey(e.Key)
		if err != nil {
			return err
		}
		if k.kind != kindRecord {
			return dberrors.New(dberrors.Internal, "expected Record key, got kind %v", k.kind)
		}
		if !t.snap.isVisible(k.version) {
			return dberrors.New(dberrors.Mvcc, "write-write conflict on key")
		}
	}

	recordKey := keyRecord(key, t.id).encode()
	updateKey := keyTxnUpdate(t.id, recordKey).encode()
	if err := t.store.Set(updateKey, []byte{}); err != nil {
		return err
	}
	return t.store.Set(recordKey, encodeRecordValue(present, value))
}

// Scan returns visible (key,value) pairs over [startKey, endKey), with
// each bound honoring bound.Kind (spec §4.3 range scan), collapsed to
// the newest visible version per logical key.
func (t *Transaction) Scan(rng store.Range) (store.Iterator, error) {
	start := recordBound(rng.Start, true)
	end := recordBound(rng.End, false)

	underlying, err := t.store.Scan(store.Range{Start: start, End: end})
	if err != nil {
		return nil, err
	}
	entries, err := collapseVisible(underlying, t.snap)
	if err != nil {
		return nil, err
	}
	return &mvccIterator{entries: entries}, nil
}

// ScanPrefix scans all keys sharing prefix, deriving the exclusive end
// bound by incrementing prefix's last non-0xff byte (spec §4.3).
func (t *Transaction) ScanPrefix(prefix []byte) (store.Iterator, error) {
	if len(prefix) == 0 {
		return nil, dberrors.New(dberrors.Internal, "scan prefix cannot be empty")
	}
	end := prefixEnd(prefix)
	var endBound store.Bound
	if end == nil {
		endBound = store.Unbounded()
	} else {
		endBound = store.Excluded(end)
	}
	return t.Scan(store.Range{Start: store.Included(prefix), End: endBound})
}

func recordBound(b store.Bound, isStart bool) store.Bound {
	switch b.Kind {
	case store.BoundUnbounded:
		if isStart {
			return store.Included(keyRecord(nil, 0).encode())
		}
		return store.Unbounded()
	case store.BoundIncluded:
		if isStart {
			return store.Included(keyRecord(b.Key, 0).encode())
		}
		return store.Included(keyRecord(b.Key, MaxVersion).encode())
	case store.BoundExcluded:
		if isStart {
			return store.Excluded(keyRecord(b.Key, MaxVersion).encode())
		}
		return store.Excluded(keyRecord(b.Key, 0).encode())
	default:
		return store.Unbounded()
	}
}

// mvccIterator wraps a slice of already-visibility-filtered, already-
// collapsed (logical key, value) entries.
type mvccIterator struct {
	entries []store.Entry
	pos     int
}

func (it *mvccIterator) Next() (store.Entry, bool) {
	if it.pos >= len(it.entries) {
		return store.Entry{}, false
	}
	e := it.entries[it.pos]
	it.pos++
	return e, true
}

func (it *mvccIterator) Reverse() store.Iterator {
	remaining := it.entries[it.pos:]
	reversed := make([]store.Entry, len(remaining))
	for i, e := range remaining {
		reversed[len(remaining)-1-i] = e
	}
	return &mvccIterator{entries: reversed}
}

// collapseVisible decodes every Record(key,version) entry from the
// underlying ascending scan, drops versions not visible to snap, and
// keeps only the newest visible version per logical key, dropping
// tombstones. This uses lookahead on the materialized entries, which is
// equivalent to the Rust source's forward/backward double-ended
// collapsing since the whole range is already materialized (spec §5).
func collapseVisible(it store.Iterator, snap snapshot) ([]store.Entry, error) {
	type decoded struct {
		logicalKey []byte
		version    uint64
		value      []byte
	}
	var visible []decoded
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		k, err := decodeKey(e.Key)
		if err != nil {
			return nil, err
		}
		if k.kind != kindRecord {
			return nil, dberrors.New(dberrors.Internal, "expected Record key, got kind %v", k.kind)
		}
		if !snap.isVisible(k.version) {
			continue
		}
		visible = append(visible, decoded{logicalKey: k.record, version: k.version, value: e.Value})
	}

	var out []store.Entry
	for i := 0; i < len(visible); {
		j := i
		for j+1 < len(visible) && string(visible[j+1].logicalKey) == string(visible[i].logicalKey) {
			j++
		}
		// visible[i..=j] share a logical key; ascending order means
		// visible[j] is the newest visible version for it.
		newest := visible[j]
		if payload, present := decodeRecordValue(newest.value); present {
			out = append(out, store.Entry{Key: newest.logicalKey, Value: payload})
		}
		i = j + 1
	}
	return out, nil
}
