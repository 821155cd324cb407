// Package encoding implements the order-preserving byte encodings used
// throughout coledb's key space (spec §4.2). Every Encode* function has a
// matching Take* decoder that consumes exactly the bytes it produced from
// a cursor, so compound keys can be built by concatenation and parsed
// back by repeated Take* calls.
package encoding

import (
	"encoding/binary"
	"math"

	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/value"
)

// EncodeBool encodes a bool as a single order-preserving byte.
func EncodeBool(b bool) byte {
	if b {
		return 0x01
	}
	return 0x00
}

// TakeBool consumes one byte from *buf and decodes it as a bool.
func TakeBool(buf *[]byte) (bool, error) {
	b, err := TakeByte(buf)
	if err != nil {
		return false, err
	}
	switch b {
	case 0x00:
		return false, nil
	case 0x01:
		return true, nil
	default:
		return false, dberrors.New(dberrors.Encoding, "invalid boolean byte %#x", b)
	}
}

// TakeByte consumes and returns the first byte of *buf.
func TakeByte(buf *[]byte) (byte, error) {
	if len(*buf) == 0 {
		return 0, dberrors.New(dberrors.Encoding, "unexpected end of bytes")
	}
	b := (*buf)[0]
	*buf = (*buf)[1:]
	return b, nil
}

// EncodeUint64 encodes a uint64 as 8 big-endian bytes.
func EncodeUint64(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

// TakeUint64 consumes 8 bytes from *buf and decodes a uint64.
func TakeUint64(buf *[]byte) (uint64, error) {
	if len(*buf) < 8 {
		return 0, dberrors.New(dberrors.Encoding, "unexpected end of bytes reading uint64")
	}
	n := binary.BigEndian.Uint64((*buf)[:8])
	*buf = (*buf)[8:]
	return n, nil
}

// EncodeInt64 encodes an int64 as 8 big-endian bytes with the sign bit
// flipped, so negatives sort before non-negatives.
func EncodeInt64(n int64) []byte {
	u := uint64(n) ^ (1 << 63)
	return EncodeUint64(u)
}

// TakeInt64 consumes 8 bytes from *buf and decodes an int64.
func TakeInt64(buf *[]byte) (int64, error) {
	u, err := TakeUint64(buf)
	if err != nil {
		return 0, err
	}
	return int64(u ^ (1 << 63)), nil
}

// EncodeFloat64 encodes a float64 as 8 big-endian bytes: if the sign bit
// is clear, flip it; if set, invert all bits. This yields ascending
// numeric order across zero, with NaN ordering consistently by its bit
// pattern.
func EncodeFloat64(f float64) []byte {
	bits := math.Float64bits(f)
	if bits>>63 == 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	return EncodeUint64(bits)
}

// TakeFloat64 consumes 8 bytes from *buf and decodes a float64.
func TakeFloat64(buf *[]byte) (float64, error) {
	bits, err := TakeUint64(buf)
	if err != nil {
		return 0, err
	}
	if bits>>63 == 1 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), nil
}

// EncodeBytes encodes an arbitrary byte string so it is self-delimiting
// inside a compound key: each 0x00 byte is escaped to 0x00 0xff, and the
// stream is terminated by 0x00 0x00.
func EncodeBytes(b []byte) []byte {
	out := make([]byte, 0, len(b)+2)
	for _, c := range b {
		if c == 0x00 {
			out = append(out, 0x00, 0xff)
		} else {
			out = append(out, c)
		}
	}
	out = append(out, 0x00, 0x00)
	return out
}

// TakeBytes consumes an EncodeBytes-encoded byte string from *buf,
// stopping at its 0x00 0x00 terminator.
func TakeBytes(buf *[]byte) ([]byte, error) {
	src := *buf
	out := make([]byte, 0, len(src)/2)
	i := 0
	for {
		if i >= len(src) {
			return nil, dberrors.New(dberrors.Encoding, "unexpected end of bytes reading byte string")
		}
		b := src[i]
		if b != 0x00 {
			out = append(out, b)
			i++
			continue
		}
		if i+1 >= len(src) {
			return nil, dberrors.New(dberrors.Encoding, "unexpected end of bytes reading byte string escape")
		}
		switch src[i+1] {
		case 0x00:
			*buf = src[i+2:]
			return out, nil
		case 0xff:
			out = append(out, 0x00)
			i += 2
		default:
			return nil, dberrors.New(dberrors.Encoding, "invalid byte escape %#x", src[i+1])
		}
	}
}

// EncodeString encodes a string via EncodeBytes over its UTF-8 bytes.
func EncodeString(s string) []byte { return EncodeBytes([]byte(s)) }

// TakeString consumes an EncodeString-encoded string from *buf.
func TakeString(buf *[]byte) (string, error) {
	b, err := TakeBytes(buf)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Value type tags, forming the first byte of EncodeValue's output.
const (
	tagNull    = 0x00
	tagBool    = 0x01
	tagFloat   = 0x02
	tagInteger = 0x03
	tagString  = 0x04
)

// EncodeValue encodes a value.Value with a 1-byte type tag followed by
// the type's own encoding, so that values of the same type compare in
// the type's natural order and values of different types compare by tag.
func EncodeValue(v value.Value) []byte {
	switch v.Kind {
	case value.KindNull:
		return []byte{tagNull}
	case value.KindBool:
		return []byte{tagBool, EncodeBool(v.Bool)}
	case value.KindFloat:
		return append([]byte{tagFloat}, EncodeFloat64(v.F)...)
	case value.KindInteger:
		return append([]byte{tagInteger}, EncodeInt64(v.I)...)
	case value.KindString:
		return append([]byte{tagString}, EncodeString(v.S)...)
	default:
		return []byte{tagNull}
	}
}

// TakeValue consumes an EncodeValue-encoded value.Value from *buf.
func TakeValue(buf *[]byte) (value.Value, error) {
	tag, err := TakeByte(buf)
	if err != nil {
		return value.Value{}, err
	}
	switch tag {
	case tagNull:
		return value.Null(), nil
	case tagBool:
		b, err := TakeBool(buf)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(b), nil
	case tagFloat:
		f, err := TakeFloat64(buf)
		if err != nil {
			return value.Value{}, err
		}
		return value.Float(f), nil
	case tagInteger:
		i, err := TakeInt64(buf)
		if err != nil {
			return value.Value{}, err
		}
		return value.Integer(i), nil
	case tagString:
		s, err := TakeString(buf)
		if err != nil {
			return value.Value{}, err
		}
		return value.String(s), nil
	default:
		return value.Value{}, dberrors.New(dberrors.Encoding, "invalid value type tag %#x", tag)
	}
}

// DecodeValue fully decodes b as a single EncodeValue output, failing if
// trailing bytes remain.
func DecodeValue(b []byte) (value.Value, error) {
	buf := b
	v, err := TakeValue(&buf)
	if err != nil {
		return value.Value{}, err
	}
	if len(buf) != 0 {
		return value.Value{}, dberrors.New(dberrors.Encoding, "trailing bytes after value")
	}
	return v, nil
}
