package sqlengine

import (
	"testing"

	"github.com/coledb/coledb/internal/mvcc"
	"github.com/coledb/coledb/internal/store"
	"github.com/coledb/coledb/internal/value"
	"github.com/stretchr/testify/require"
)

func newTestTxn(t *testing.T) *Transaction {
	t.Helper()
	m := mvcc.New(store.NewBTreeStore())
	txn, err := m.Begin(mvcc.ReadWrite())
	require.NoError(t, err)
	return NewTransaction(txn)
}

func usersTable() Table {
	return Table{
		Name: "users",
		Columns: []Column{
			{Name: "id", Type: value.TypeInteger, PrimaryKey: true},
			{Name: "email", Type: value.TypeString, Unique: true, Index: true},
			{Name: "age", Type: value.TypeInteger, Nullable: true, Default: value.Null(), HasDefault: true},
		},
	}
}

func TestCreateTableAndRow(t *testing.T) {
	txn := newTestTxn(t)
	require.NoError(t, txn.CreateTable(usersTable()))

	err := txn.Create("users", []value.Value{value.Integer(1), value.String("a@x.com"), value.Integer(30)})
	require.NoError(t, err)

	row, ok, err := txn.Read("users", value.Integer(1))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a@x.com", row[1].S)
}

func TestUniqueIndexRejectsDuplicate(t *testing.T) {
	txn := newTestTxn(t)
	require.NoError(t, txn.CreateTable(usersTable()))
	require.NoError(t, txn.Create("users", []value.Value{value.Integer(1), value.String("a@x.com"), value.Null()}))

	err := txn.Create("users", []value.Value{value.Integer(2), value.String("a@x.com"), value.Null()})
	require.Error(t, err)
}

func TestUpdateChangesIndexEntry(t *testing.T) {
	txn := newTestTxn(t)
	require.NoError(t, txn.CreateTable(usersTable()))
	require.NoError(t, txn.Create("users", []value.Value{value.Integer(1), value.String("a@x.com"), value.Null()}))

	newRow := []value.Value{value.Integer(1), value.String("b@x.com"), value.Null()}
	require.NoError(t, txn.Update("users", value.Integer(1), newRow))

	pks, err := txn.ReadIndex("users", "email", value.String("a@x.com"))
	require.NoError(t, err)
	require.Empty(t, pks)

	pks, err = txn.ReadIndex("users", "email", value.String("b@x.com"))
	require.NoError(t, err)
	require.Len(t, pks, 1)
}

func TestDeleteRemovesRowAndIndex(t *testing.T) {
	txn := newTestTxn(t)
	require.NoError(t, txn.CreateTable(usersTable()))
	require.NoError(t, txn.Create("users", []value.Value{value.Integer(1), value.String("a@x.com"), value.Null()}))

	require.NoError(t, txn.Delete("users", value.Integer(1)))

	_, ok, err := txn.Read("users", value.Integer(1))
	require.NoError(t, err)
	require.False(t, ok)

	pks, err := txn.ReadIndex("users", "email", value.String("a@x.com"))
	require.NoError(t, err)
	require.Empty(t, pks)
}

func TestDeleteTableRemovesAllRows(t *testing.T) {
	txn := newTestTxn(t)
	require.NoError(t, txn.CreateTable(usersTable()))
	require.NoError(t, txn.Create("users", []value.Value{value.Integer(1), value.String("a@x.com"), value.Null()}))
	require.NoError(t, txn.Create("users", []value.Value{value.Integer(2), value.String("b@x.com"), value.Null()}))

	require.NoError(t, txn.DeleteTable("users"))

	_, ok, err := txn.ReadTable("users")
	require.NoError(t, err)
	require.False(t, ok)
}
