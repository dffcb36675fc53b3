package crypto

import (
	"bytes"
	"fmt"

	"github.com/Layr-Labs/tezos-client-go/pkg/encoding/base58check"
)

// Signature is a detached 64 byte signature. Curve is CurveUnknown for the
// curve-agnostic "sig" encoding.
type Signature struct {
	Curve Curve
	Bytes []byte
}

func ParseSignature(s string) (Signature, error) {
	prefix, payload, err := base58check.Decode(s, signatureTable)
	if err != nil {
		return Signature{}, err
	}
	sig := Signature{Bytes: payload}
	switch prefix.Name {
	case PrefixEdsig.Name:
		sig.Curve = CurveEd25519
	case PrefixSpsig.Name:
		sig.Curve = CurveSecp256k1
	case PrefixP2sig.Name:
		sig.Curve = CurveP256
	}
	return sig, nil
}

func (s Signature) prefix() base58check.Prefix {
	switch s.Curve {
	case CurveEd25519:
		return PrefixEdsig
	case CurveSecp256k1:
		return PrefixSpsig
	case CurveP256:
		return PrefixP2sig
	}
	return PrefixGeneric
}

func (s Signature) String() string {
	out, err := base58check.Encode(s.prefix(), s.Bytes)
	if err != nil {
		return ""
	}
	return out
}

// Equal compares the raw bytes; the encoding prefix is not significant.
func (s Signature) Equal(other Signature) bool {
	return bytes.Equal(s.Bytes, other.Bytes)
}

func (s Signature) MarshalText() ([]byte, error) {
	if len(s.Bytes) != SignatureLength {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(s.Bytes))
	}
	return []byte(s.String()), nil
}

func (s *Signature) UnmarshalText(text []byte) error {
	parsed, err := ParseSignature(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
