package base58check

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testShort = Prefix{Name: "tz1", Bytes: []byte{0x06, 0xA1, 0x9F}, PayloadLength: 20}
	testOther = Prefix{Name: "tz2", Bytes: []byte{0x06, 0xA1, 0xA1}, PayloadLength: 20}
	testLong  = Prefix{Name: "edsk", Bytes: []byte{0x0D, 0x0F, 0x3A, 0x07}, PayloadLength: 32}
	testWide  = Prefix{Name: "edsk64", Bytes: []byte{0x2B, 0xF6, 0x4E, 0x07}, PayloadLength: 64}

	testTable = Table{testShort, testOther, testLong, testWide}
)

func payloadOf(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = seed + byte(i*7)
	}
	return out
}

func Test_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		prefix  Prefix
		payload []byte
		start   string
	}{
		{name: "tz1 address", prefix: testShort, payload: payloadOf(20, 1), start: "tz1"},
		{name: "tz2 address", prefix: testOther, payload: payloadOf(20, 9), start: "tz2"},
		{name: "seed", prefix: testLong, payload: payloadOf(32, 3), start: "edsk"},
		{name: "secret", prefix: testWide, payload: payloadOf(64, 5), start: "edsk"},
		{name: "all zero payload", prefix: testShort, payload: make([]byte, 20), start: "tz1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Encode(tt.prefix, tt.payload)
			require.NoError(t, err)
			assert.True(t, len(encoded) > len(tt.start))
			assert.Equal(t, tt.start, encoded[:len(tt.start)])

			prefix, payload, err := Decode(encoded, testTable)
			require.NoError(t, err)
			assert.Equal(t, tt.prefix.Name, prefix.Name)
			assert.Equal(t, tt.payload, payload)
		})
	}
}

func Test_EncodeRejectsWrongLength(t *testing.T) {
	_, err := Encode(testShort, make([]byte, 19))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidLength))
}

func Test_LeadingZeroBytes(t *testing.T) {
	zero := Prefix{Name: "zero", Bytes: []byte{0x00, 0x00}, PayloadLength: 4}
	encoded, err := Encode(zero, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, "11", encoded[:2])

	prefix, payload, err := Decode(encoded, Table{zero})
	require.NoError(t, err)
	assert.Equal(t, "zero", prefix.Name)
	assert.Equal(t, []byte{1, 2, 3, 4}, payload)
}

func Test_ChecksumSensitivity(t *testing.T) {
	encoded := MustEncode(testShort, payloadOf(20, 42))
	alphabet := "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

	for i := 0; i < len(encoded); i++ {
		for _, c := range []byte(alphabet) {
			if c == encoded[i] {
				continue
			}
			mutated := []byte(encoded)
			mutated[i] = c
			_, _, err := Decode(string(mutated), testTable)
			require.Error(t, err, "position %d char %c", i, c)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr))
			// A changed character can alter the decoded byte length, which
			// is caught before the checksum.
			if decodeErr.Kind != ChecksumMismatch {
				assert.Equal(t, InvalidLength, decodeErr.Kind, "position %d char %c", i, c)
			}
			break
		}
	}
}

func Test_DecodeErrors(t *testing.T) {
	unknown := Prefix{Name: "xx", Bytes: []byte{0xFF, 0xEE}, PayloadLength: 20}
	wrongLength := Prefix{Name: "tz1", Bytes: testShort.Bytes, PayloadLength: 21}

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{name: "unknown prefix", input: MustEncode(unknown, payloadOf(20, 0)), want: ErrUnknownPrefix},
		{name: "prefix matches but length does not", input: MustEncode(wrongLength, payloadOf(21, 0)), want: ErrInvalidLength},
		{name: "non alphabet character", input: "tz1O0Il", want: ErrInvalidCharacter},
		{name: "too short", input: base58.Encode([]byte{1, 2, 3}), want: ErrInvalidLength},
		{name: "bad checksum", input: badChecksum(t), want: ErrChecksumMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.input, testTable)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr))
			assert.Equal(t, tt.input, decodeErr.Input)
		})
	}
}

func badChecksum(t *testing.T) string {
	t.Helper()
	buf := append(append([]byte{}, testShort.Bytes...), payloadOf(20, 1)...)
	sum := Checksum(buf)
	sum[0] ^= 0xFF
	return base58.Encode(append(buf, sum...))
}

func Test_LongestPrefixWins(t *testing.T) {
	short := Prefix{Name: "a", Bytes: []byte{0x10}, PayloadLength: 5}
	long := Prefix{Name: "ab", Bytes: []byte{0x10, 0x20}, PayloadLength: 4}

	encoded := MustEncode(long, []byte{1, 2, 3, 4})
	prefix, payload, err := Decode(encoded, Table{short, long})
	require.NoError(t, err)
	assert.Equal(t, "ab", prefix.Name)
	assert.Equal(t, []byte{1, 2, 3, 4}, payload)
}

func Test_DecodeReturnsCopy(t *testing.T) {
	original := payloadOf(20, 7)
	encoded := MustEncode(testShort, original)
	_, payload, err := Decode(encoded, testTable)
	require.NoError(t, err)
	payload[0] ^= 0xFF

	_, again, err := Decode(encoded, testTable)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(original, again))
}

func FuzzRoundTrip(f *testing.F) {
	f.Add(payloadOf(20, 0))
	f.Add(make([]byte, 20))
	f.Add(bytes.Repeat([]byte{0xFF}, 20))

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) < 20 {
			return
		}
		payload := data[:20]
		encoded, err := Encode(testShort, payload)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		prefix, decoded, err := Decode(encoded, testTable)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if prefix.Name != testShort.Name || !bytes.Equal(decoded, payload) {
			t.Fatalf("round trip mismatch for %x", payload)
		}
	})
}

func FuzzDecodeNoPanic(f *testing.F) {
	f.Add("tz1av5nBB8Jp6VZZDBdmGifRcETaYc7UkEnU")
	f.Add("")
	f.Add("0OIl")

	f.Fuzz(func(t *testing.T, s string) {
		_, _, _ = Decode(s, testTable)
	})
}
