package encoding

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/coledb/coledb/internal/value"
	"github.com/stretchr/testify/require"
)

func TestRoundTripPrimitives(t *testing.T) {
	for _, b := range []bool{true, false} {
		buf := []byte{EncodeBool(b)}
		got, err := TakeBool(&buf)
		require.NoError(t, err)
		require.Equal(t, b, got)
		require.Empty(t, buf)
	}

	for _, n := range []int64{0, 1, -1, math.MaxInt64, math.MinInt64, -42, 42} {
		buf := EncodeInt64(n)
		got, err := TakeInt64(&buf)
		require.NoError(t, err)
		require.Equal(t, n, got)
		require.Empty(t, buf)
	}

	for _, f := range []float64{0, -0.0, 1.5, -1.5, math.Inf(1), math.Inf(-1), math.NaN()} {
		buf := EncodeFloat64(f)
		got, err := TakeFloat64(&buf)
		require.NoError(t, err)
		if math.IsNaN(f) {
			require.True(t, math.IsNaN(got))
		} else {
			require.Equal(t, f, got)
		}
		require.Empty(t, buf)
	}

	for _, s := range []string{"", "a", "hello world", "has\x00null\x00bytes", "unicode: é中"} {
		buf := EncodeBytes([]byte(s))
		got, err := TakeBytes(&buf)
		require.NoError(t, err)
		require.Equal(t, s, string(got))
		require.Empty(t, buf)
	}
}

func TestValueRoundTrip(t *testing.T) {
	vals := []value.Value{
		value.Null(),
		value.Bool(true),
		value.Bool(false),
		value.Integer(-7),
		value.Float(3.25),
		value.String("xyz"),
	}
	for _, v := range vals {
		got, err := DecodeValue(EncodeValue(v))
		require.NoError(t, err)
		require.True(t, got.IdenticalEqual(v), "roundtrip mismatch for %v", v)
	}
}

func TestDecodeValueRejectsTrailingBytes(t *testing.T) {
	enc := EncodeValue(value.Integer(1))
	enc = append(enc, 0xAA)
	_, err := DecodeValue(enc)
	require.Error(t, err)
}

func TestOrderPreservationInt64(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	ns := make([]int64, 200)
	for i := range ns {
		ns[i] = int64(r.Uint64())
	}
	checkOrderPreserved(t, ns, EncodeInt64, func(a, b int64) bool { return a < b })
}

func TestOrderPreservationFloat64(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	fs := make([]float64, 200)
	for i := range fs {
		fs[i] = (r.Float64() - 0.5) * 1e12
	}
	checkOrderPreserved(t, fs, EncodeFloat64, func(a, b float64) bool { return a < b })
}

func TestOrderPreservationValue(t *testing.T) {
	vals := []value.Value{
		value.Integer(-100), value.Integer(-1), value.Integer(0), value.Integer(1), value.Integer(100),
		value.Float(-50.5), value.Float(0), value.Float(50.5),
	}
	// Across types the tag byte decides the order (Float 0x02 before
	// Integer 0x03); within a type the value order must be preserved.
	sort.Slice(vals, func(i, j int) bool {
		ti, tj := EncodeValue(vals[i])[0], EncodeValue(vals[j])[0]
		if ti != tj {
			return ti < tj
		}
		return value.Less(vals[i], vals[j])
	})
	var prev []byte
	for _, v := range vals {
		enc := EncodeValue(v)
		if prev != nil {
			require.True(t, string(prev) <= string(enc), "order not preserved for %v", v)
		}
		prev = enc
	}
}

func checkOrderPreserved[T any](t *testing.T, xs []T, encode func(T) []byte, less func(a, b T) bool) {
	t.Helper()
	for i := range xs {
		for j := range xs {
			if !less(xs[i], xs[j]) {
				continue
			}
			ei, ej := encode(xs[i]), encode(xs[j])
			require.True(t, string(ei) < string(ej), "expected encode(%v) < encode(%v)", xs[i], xs[j])
		}
	}
}
