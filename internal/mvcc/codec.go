package mvcc

import "github.com/coledb/coledb/internal/encoding"

// encodeUint64Value / decodeUint64Value serialize a plain counter value
// (TxnNext) using the same big-endian byte layout as key encoding, even
// though these aren't keys — it's a convenient, already-tested codec.
func encodeUint64Value(n uint64) []byte { return encoding.EncodeUint64(n) }

func decodeUint64Value(b []byte) (uint64, error) {
	buf := b
	return encoding.TakeUint64(&buf)
}

// encodeIDSet / decodeIDSet serialize a set of transaction ids (the
// invisible set persisted at TxnSnapshot) as a count followed by each id.
func encodeIDSet(ids map[uint64]struct{}) []byte {
	out := encoding.EncodeUint64(uint64(len(ids)))
	for id := range ids {
		out = append(out, encoding.EncodeUint64(id)...)
	}
	return out
}

func decodeIDSet(b []byte) (map[uint64]struct{}, error) {
	buf := b
	n, err := encoding.TakeUint64(&buf)
	if err != nil {
		return nil, err
	}
	ids := make(map[uint64]struct{}, n)
	for i := uint64(0); i < n; i++ {
		id, err := encoding.TakeUint64(&buf)
		if err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, nil
}

// encodeRecordValue / decodeRecordValue serialize the `Option<value>`
// stored under a Record key: a leading presence byte, then the raw
// payload if present. Absence (tombstone) is 0x00 alone.
func encodeRecordValue(present bool, payload []byte) []byte {
	if !present {
		return []byte{0x00}
	}
	return append([]byte{0x01}, payload...)
}

func decodeRecordValue(b []byte) (payload []byte, present bool) {
	if len(b) == 0 || b[0] == 0x00 {
		return nil, false
	}
	return b[1:], true
}
