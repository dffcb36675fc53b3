// Package base58check implements the prefixed base58check encoding shared by
// addresses, keys, signatures and hashes. Every entity kind is described by a
// Prefix (magic bytes + payload length); callers pass the table of prefixes
// they accept when decoding.
package base58check

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

const ChecksumLength = 4

// Prefix describes one encodable entity kind.
type Prefix struct {
	// Name is the human readable start of the encoded text (e.g. "tz1").
	Name string
	// Bytes are the magic bytes prepended to the payload before encoding.
	Bytes []byte
	// PayloadLength is the exact payload size in bytes.
	PayloadLength int
}

// Table is a set of prefixes accepted by Decode.
type Table []Prefix

type DecodeErrorKind int

const (
	ChecksumMismatch DecodeErrorKind = iota + 1
	UnknownPrefix
	InvalidLength
	InvalidCharacter
)

func (k DecodeErrorKind) String() string {
	switch k {
	case ChecksumMismatch:
		return "checksum mismatch"
	case UnknownPrefix:
		return "unknown prefix"
	case InvalidLength:
		return "invalid length"
	case InvalidCharacter:
		return "invalid character"
	default:
		return "unknown decode error"
	}
}

var (
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrUnknownPrefix    = errors.New("unknown prefix")
	ErrInvalidLength    = errors.New("invalid length")
	ErrInvalidCharacter = errors.New("invalid base58 character")
)

// DecodeError carries the offending input alongside the failure kind.
type DecodeError struct {
	Kind   DecodeErrorKind
	Input  string
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("base58check: %s for %q: %s", e.Kind, e.Input, e.Detail)
	}
	return fmt.Sprintf("base58check: %s for %q", e.Kind, e.Input)
}

func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrChecksumMismatch:
		return e.Kind == ChecksumMismatch
	case ErrUnknownPrefix:
		return e.Kind == UnknownPrefix
	case ErrInvalidLength:
		return e.Kind == InvalidLength
	case ErrInvalidCharacter:
		return e.Kind == InvalidCharacter
	}
	return false
}

// Checksum returns the first four bytes of sha256(sha256(data)).
func Checksum(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:ChecksumLength]
}

// Encode prepends the prefix bytes, appends the checksum and base58 encodes
// the whole buffer. Leading zero bytes become leading '1' characters.
func Encode(prefix Prefix, payload []byte) (string, error) {
	if len(payload) != prefix.PayloadLength {
		return "", fmt.Errorf("%w: %s payload must be %d bytes, got %d",
			ErrInvalidLength, prefix.Name, prefix.PayloadLength, len(payload))
	}

	buf := make([]byte, 0, len(prefix.Bytes)+len(payload)+ChecksumLength)
	buf = append(buf, prefix.Bytes...)
	buf = append(buf, payload...)
	buf = append(buf, Checksum(buf)...)

	return base58.Encode(buf), nil
}

// MustEncode is Encode for payloads whose length is already guaranteed.
func MustEncode(prefix Prefix, payload []byte) string {
	s, err := Encode(prefix, payload)
	if err != nil {
		panic(err)
	}
	return s
}

// Decode reverses Encode. The checksum is verified before the prefix lookup,
// so any corruption of a valid string reports ChecksumMismatch. Prefixes
// share leading bytes across kinds, so the longest prefix whose bytes and
// total length both match wins.
func Decode(text string, table Table) (Prefix, []byte, error) {
	raw, err := base58.Decode(text)
	if err != nil {
		return Prefix{}, nil, &DecodeError{Kind: InvalidCharacter, Input: text, Detail: err.Error()}
	}
	if len(raw) <= ChecksumLength {
		return Prefix{}, nil, &DecodeError{Kind: InvalidLength, Input: text, Detail: "shorter than checksum"}
	}

	body, sum := raw[:len(raw)-ChecksumLength], raw[len(raw)-ChecksumLength:]
	if !bytes.Equal(Checksum(body), sum) {
		return Prefix{}, nil, &DecodeError{Kind: ChecksumMismatch, Input: text}
	}

	var (
		best          *Prefix
		lengthMatched bool
	)
	for i := range table {
		p := &table[i]
		if !bytes.HasPrefix(body, p.Bytes) {
			continue
		}
		if len(body) != len(p.Bytes)+p.PayloadLength {
			lengthMatched = true
			continue
		}
		if best == nil || len(p.Bytes) > len(best.Bytes) {
			best = p
		}
	}
	if best == nil {
		if lengthMatched {
			return Prefix{}, nil, &DecodeError{
				Kind:   InvalidLength,
				Input:  text,
				Detail: fmt.Sprintf("decoded %d bytes", len(body)),
			}
		}
		return Prefix{}, nil, &DecodeError{Kind: UnknownPrefix, Input: text}
	}

	payload := make([]byte, best.PayloadLength)
	copy(payload, body[len(best.Bytes):])
	return *best, payload, nil
}
