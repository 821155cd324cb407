package sqlengine

import (
	"bytes"
	"encoding/gob"

	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/value"
)

// gobTable/gobColumn mirror Table/Column in a form gob can encode
// directly (value.Value and value.ColumnType are already plain structs
// of exported fields, so they gob-encode as-is).
type gobTable struct {
	Name    string
	Columns []Column
}

func encodeTable(t Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gobTable{Name: t.Name, Columns: t.Columns}); err != nil {
		return nil, dberrors.New(dberrors.Encoding, "encode table: %v", err)
	}
	return buf.Bytes(), nil
}

func decodeTable(b []byte) (Table, error) {
	var gt gobTable
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&gt); err != nil {
		return Table{}, dberrors.New(dberrors.Encoding, "decode table: %v", err)
	}
	return Table{Name: gt.Name, Columns: gt.Columns}, nil
}

// encodeRow/decodeRow serialize a row (spec §3: "gob-encoded []Value").
func encodeRow(row []value.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(row); err != nil {
		return nil, dberrors.New(dberrors.Encoding, "encode row: %v", err)
	}
	return buf.Bytes(), nil
}

func decodeRow(b []byte) ([]value.Value, error) {
	var row []value.Value
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&row); err != nil {
		return nil, dberrors.New(dberrors.Encoding, "decode row: %v", err)
	}
	return row, nil
}

// encodePKSet/decodePKSet serialize an index entry's primary-key set
// (spec §3's "Index entry... set of primary-key values").
func encodePKSet(pks []value.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(pks); err != nil {
		return nil, dberrors.New(dberrors.Encoding, "encode index entry: %v", err)
	}
	return buf.Bytes(), nil
}

func decodePKSet(b []byte) ([]value.Value, error) {
	var pks []value.Value
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&pks); err != nil {
		return nil, dberrors.New(dberrors.Encoding, "decode index entry: %v", err)
	}
	return pks, nil
}
