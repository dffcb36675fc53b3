package operation

import (
	"errors"
)

var ErrZarithOverflow = errors.New("zarith value overflows uint64")

// AppendZarith appends the little-endian base-128 encoding of v: seven bits
// per byte, high bit set on every byte except the last.
func AppendZarith(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// ZarithLength is len(AppendZarith(nil, v)).
func ZarithLength(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// ReadZarith decodes one natural from the front of src and returns the
// number of bytes consumed.
func ReadZarith(src []byte) (uint64, int, error) {
	var (
		v     uint64
		shift uint
	)
	for i, b := range src {
		if shift >= 64 || (shift == 63 && b&0x7f > 1) {
			return 0, 0, ErrZarithOverflow
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, errors.New("truncated zarith value")
}
