package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testStoreContract(t *testing.T, s Store) {
	t.Helper()

	require.NoError(t, s.Set([]byte("b"), []byte("2")))
	require.NoError(t, s.Set([]byte("a"), []byte("1")))
	require.NoError(t, s.Set([]byte("c"), []byte("3")))

	v, ok, err := s.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)

	_, ok, err = s.Get([]byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)

	it, err := s.Scan(Range{Start: Unbounded(), End: Unbounded()})
	require.NoError(t, err)
	var keys []string
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		keys = append(keys, string(e.Key))
	}
	require.Equal(t, []string{"a", "b", "c"}, keys)

	it, err = s.Scan(Range{Start: Included([]byte("a")), End: Excluded([]byte("c"))})
	require.NoError(t, err)
	rev := it.Reverse()
	var revKeys []string
	for {
		e, ok := rev.Next()
		if !ok {
			break
		}
		revKeys = append(revKeys, string(e.Key))
	}
	require.Equal(t, []string{"b", "a"}, revKeys)

	require.NoError(t, s.Delete([]byte("b")))
	_, ok, err = s.Get([]byte("b"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Flush())
}

func TestBTreeStoreContract(t *testing.T) {
	testStoreContract(t, NewBTreeStore())
}

func TestMemStoreContract(t *testing.T) {
	testStoreContract(t, NewMemStore())
}
