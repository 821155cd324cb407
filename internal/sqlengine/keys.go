package sqlengine

import (
	"github.com/coledb/coledb/internal/encoding"
	"github.com/coledb/coledb/internal/value"
)

// SQL-level key prefixes, layered inside the MVCC record key space
// (spec §3's "SQL key space" table).
const (
	prefixTable byte = 0x01
	prefixIndex byte = 0x02
	prefixRow   byte = 0x03
)

func tableKey(name string) []byte {
	return append([]byte{prefixTable}, encoding.EncodeString(name)...)
}

func tablePrefix() []byte {
	return []byte{prefixTable}
}

func indexKey(table, column string, v value.Value) []byte {
	b := append([]byte{prefixIndex}, encoding.EncodeString(table)...)
	b = append(b, encoding.EncodeString(column)...)
	return append(b, encoding.EncodeValue(v)...)
}

func indexPrefix(table, column string) []byte {
	b := append([]byte{prefixIndex}, encoding.EncodeString(table)...)
	return append(b, encoding.EncodeString(column)...)
}

// rowKey builds the key a row is stored under (spec §4.4's Row bug-fix:
// rows must live at prefix 0x03, not reuse the Table prefix).
func rowKey(table string, pk value.Value) []byte {
	b := append([]byte{prefixRow}, encoding.EncodeString(table)...)
	return append(b, encoding.EncodeValue(pk)...)
}

func rowPrefix(table string) []byte {
	return append([]byte{prefixRow}, encoding.EncodeString(table)...)
}

func decodeIndexValue(key []byte, table, column string) (value.Value, error) {
	buf := key
	if _, err := encoding.TakeByte(&buf); err != nil {
		return value.Value{}, err
	}
	if _, err := encoding.TakeString(&buf); err != nil {
		return value.Value{}, err
	}
	if _, err := encoding.TakeString(&buf); err != nil {
		return value.Value{}, err
	}
	return encoding.DecodeValue(buf)
}
