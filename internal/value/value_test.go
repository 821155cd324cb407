package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareTotalOrder(t *testing.T) {
	require.Equal(t, -1, Compare(Null(), Integer(0)))
	require.Equal(t, 0, Compare(Null(), Null()))
	require.Equal(t, -1, Compare(Integer(1), Integer(2)))
	require.Equal(t, 1, Compare(Integer(3), Float(2.5)))
	require.Equal(t, 0, Compare(Integer(2), Float(2.0)))
	require.Equal(t, -1, Compare(Bool(false), Bool(true)))
	require.True(t, Less(String("a"), String("b")))
}

func TestEqualWidensNumerics(t *testing.T) {
	require.True(t, Integer(4).Equal(Float(4.0)))
	require.False(t, Integer(4).Equal(String("4")))
	require.False(t, Null().Equal(Null()))
}

func TestHashKeyNaNSelfEqual(t *testing.T) {
	nan := Float(math.NaN())
	require.Equal(t, nan.HashKey(), nan.HashKey())
	require.True(t, nan.IdenticalEqual(nan))
	// But SQL equality never holds for NaN.
	require.False(t, nan.Equal(nan))
}

func TestDatatype(t *testing.T) {
	ty, ok := Integer(1).Datatype()
	require.True(t, ok)
	require.Equal(t, TypeInteger, ty)

	_, ok = Null().Datatype()
	require.False(t, ok)
}
