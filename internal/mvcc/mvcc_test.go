package mvcc

import (
	"testing"

	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/store"
	"github.com/stretchr/testify/require"
)

func TestSnapshotIsolation(t *testing.T) {
	m := New(store.NewBTreeStore())

	t1, err := m.Begin(ReadWrite())
	require.NoError(t, err)
	require.NoError(t, t1.Set([]byte("x"), []byte{1}))

	t2, err := m.Begin(ReadOnly())
	require.NoError(t, err)
	_, ok, err := t2.Get([]byte("x"))
	require.NoError(t, err)
	require.False(t, ok, "uncommitted write must not be visible to a concurrent snapshot")

	require.NoError(t, t1.Commit())

	t3, err := m.Begin(ReadOnly())
	require.NoError(t, err)
	v, ok, err := t3.Get([]byte("x"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{1}, v)
}

func TestWriteWriteConflict(t *testing.T) {
	m := New(store.NewBTreeStore())

	t1, err := m.Begin(ReadWrite())
	require.NoError(t, err)
	t2, err := m.Begin(ReadWrite())
	require.NoError(t, err)

	require.NoError(t, t1.Set([]byte("k"), []byte{1}))
	err = t2.Set([]byte("k"), []byte{2})
	require.Error(t, err)
	require.True(t, dberrors.Of(err, dberrors.Mvcc))

	require.NoError(t, t1.Rollback())

	t3, err := m.Begin(ReadWrite())
	require.NoError(t, err)
	require.NoError(t, t3.Set([]byte("k"), []byte{2}))
	require.NoError(t, t3.Commit())
}

func TestResume(t *testing.T) {
	m := New(store.NewBTreeStore())

	t1, err := m.Begin(ReadWrite())
	require.NoError(t, err)
	require.NoError(t, t1.Set([]byte("a"), []byte{9}))
	id := t1.ID()

	resumed, err := m.Resume(id)
	require.NoError(t, err)
	v, ok, err := resumed.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{9}, v)
	require.NoError(t, resumed.Commit())
}

func TestScanCollapsesToNewestVisibleVersion(t *testing.T) {
	m := New(store.NewBTreeStore())

	t1, err := m.Begin(ReadWrite())
	require.NoError(t, err)
	require.NoError(t, t1.Set([]byte("a"), []byte{1}))
	require.NoError(t, t1.Set([]byte("b"), []byte{2}))
	require.NoError(t, t1.Commit())

	t2, err := m.Begin(ReadWrite())
	require.NoError(t, err)
	require.NoError(t, t2.Set([]byte("a"), []byte{100}))
	require.NoError(t, t2.Delete([]byte("b")))

	it, err := t2.Scan(store.Range{Start: store.Unbounded(), End: store.Unbounded()})
	require.NoError(t, err)
	got := map[string][]byte{}
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		got[string(e.Key)] = e.Value
	}
	require.Equal(t, map[string][]byte{"a": {100}}, got)
	require.NoError(t, t2.Commit())
}

func TestBeginSnapshotSeesOnlyVersionAsOf(t *testing.T) {
	m := New(store.NewBTreeStore())

	t1, err := m.Begin(ReadWrite())
	require.NoError(t, err)
	require.NoError(t, t1.Set([]byte("x"), []byte{1}))
	require.NoError(t, t1.Commit())
	version := t1.ID()

	t2, err := m.Begin(ReadWrite())
	require.NoError(t, err)
	require.NoError(t, t2.Set([]byte("x"), []byte{2}))
	require.NoError(t, t2.Commit())

	// A fresh snapshot transaction pinned to the version before t2
	// committed must still see x's old value, not the current one.
	snap, err := m.Begin(Snapshot(version))
	require.NoError(t, err)
	v, ok, err := snap.Get([]byte("x"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{1}, v, "a fresh BEGIN ... AS OF VERSION must not see writes committed after that version")
}

func TestStatus(t *testing.T) {
	m := New(store.NewBTreeStore())
	t1, err := m.Begin(ReadWrite())
	require.NoError(t, err)
	_, err = m.Begin(ReadOnly())
	require.NoError(t, err)

	st, err := m.GetStatus()
	require.NoError(t, err)
	require.Equal(t, uint64(2), st.Txns)
	require.Equal(t, uint64(2), st.TxnsActive)

	require.NoError(t, t1.Commit())
	st, err = m.GetStatus()
	require.NoError(t, err)
	require.Equal(t, uint64(1), st.TxnsActive)
}
