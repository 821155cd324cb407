package mvcc

import (
	"math"

	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/encoding"
)

// keyKind is the single byte prefixing every MVCC key (spec §3).
type keyKind byte

const (
	kindTxnNext     keyKind = 0x01
	kindTxnActive   keyKind = 0x02
	kindTxnSnapshot keyKind = 0x03
	kindTxnUpdate   keyKind = 0x04
	kindMetadata    keyKind = 0x05
	kindRecord      keyKind = 0xff
)

// MaxVersion is the highest representable transaction/record version.
const MaxVersion = math.MaxUint64

// key is the decoded form of any MVCC key. Exactly one constructor
// below should be used to build one; Encode/decodeKey round-trip it.
type key struct {
	kind    keyKind
	id      uint64 // TxnActive, TxnSnapshot, TxnUpdate
	record  []byte // TxnUpdate (the record key it points at), Record, Metadata
	version uint64 // Record
}

func keyTxnNext() key                      { return key{kind: kindTxnNext} }
func keyTxnActive(id uint64) key           { return key{kind: kindTxnActive, id: id} }
func keyTxnSnapshot(version uint64) key    { return key{kind: kindTxnSnapshot, id: version} }
func keyTxnUpdate(id uint64, rec []byte) key {
	return key{kind: kindTxnUpdate, id: id, record: rec}
}
func keyMetadata(name []byte) key { return key{kind: kindMetadata, record: name} }
func keyRecord(rec []byte, version uint64) key {
	return key{kind: kindRecord, record: rec, version: version}
}

func (k key) encode() []byte {
	switch k.kind {
	case kindTxnNext:
		return []byte{byte(kindTxnNext)}
	case kindTxnActive:
		return append([]byte{byte(kindTxnActive)}, encoding.EncodeUint64(k.id)...)
	case kindTxnSnapshot:
		return append([]byte{byte(kindTxnSnapshot)}, encoding.EncodeUint64(k.id)...)
	case kindTxnUpdate:
		out := []byte{byte(kindTxnUpdate)}
		out = append(out, encoding.EncodeUint64(k.id)...)
		out = append(out, encoding.EncodeBytes(k.record)...)
		return out
	case kindMetadata:
		return append([]byte{byte(kindMetadata)}, encoding.EncodeBytes(k.record)...)
	case kindRecord:
		out := []byte{byte(kindRecord)}
		out = append(out, encoding.EncodeBytes(k.record)...)
		out = append(out, encoding.EncodeUint64(k.version)...)
		return out
	default:
		return nil
	}
}

func decodeKey(b []byte) (key, error) {
	buf := b
	kb, err := encoding.TakeByte(&buf)
	if err != nil {
		return key{}, err
	}
	var k key
	switch keyKind(kb) {
	case kindTxnNext:
		k = keyTxnNext()
	case kindTxnActive:
		id, err := encoding.TakeUint64(&buf)
		if err != nil {
			return key{}, err
		}
		k = keyTxnActive(id)
	case kindTxnSnapshot:
		v, err := encoding.TakeUint64(&buf)
		if err != nil {
			return key{}, err
		}
		k = keyTxnSnapshot(v)
	case kindTxnUpdate:
		id, err := encoding.TakeUint64(&buf)
		if err != nil {
			return key{}, err
		}
		rec, err := encoding.TakeBytes(&buf)
		if err != nil {
			return key{}, err
		}
		k = keyTxnUpdate(id, rec)
	case kindMetadata:
		name, err := encoding.TakeBytes(&buf)
		if err != nil {
			return key{}, err
		}
		k = keyMetadata(name)
	case kindRecord:
		rec, err := encoding.TakeBytes(&buf)
		if err != nil {
			return key{}, err
		}
		v, err := encoding.TakeUint64(&buf)
		if err != nil {
			return key{}, err
		}
		k = keyRecord(rec, v)
	default:
		return key{}, dberrors.New(dberrors.Internal, "unknown MVCC key prefix %#x", kb)
	}
	if len(buf) != 0 {
		return key{}, dberrors.New(dberrors.Internal, "unexpected trailing bytes in MVCC key")
	}
	return k, nil
}

// prefixEnd derives an exclusive end bound from a prefix by incrementing
// its last non-0xff byte (spec §4.3 prefix scan).
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
		end[i] = 0x00
	}
	return nil // prefix was all 0xff: no finite upper bound
}
