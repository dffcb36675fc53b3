package crypto

import (
	"fmt"

	"github.com/Layr-Labs/tezos-client-go/pkg/encoding/base58check"
)

type AddressKind int

const (
	AddressImplicitEd25519 AddressKind = iota + 1
	AddressImplicitSecp256k1
	AddressImplicitP256
	AddressOriginated
)

func (k AddressKind) String() string {
	switch k {
	case AddressImplicitEd25519:
		return "implicit-ed25519"
	case AddressImplicitSecp256k1:
		return "implicit-secp256k1"
	case AddressImplicitP256:
		return "implicit-p256"
	case AddressOriginated:
		return "originated"
	default:
		return fmt.Sprintf("AddressKind(%d)", int(k))
	}
}

func (k AddressKind) prefix() (base58check.Prefix, bool) {
	switch k {
	case AddressImplicitEd25519:
		return PrefixTz1, true
	case AddressImplicitSecp256k1:
		return PrefixTz2, true
	case AddressImplicitP256:
		return PrefixTz3, true
	case AddressOriginated:
		return PrefixKT1, true
	}
	return base58check.Prefix{}, false
}

// Address is an implicit account (key hash) or an originated contract. The
// zero value is not a valid address.
type Address struct {
	Kind AddressKind
	Hash [AddressHashLength]byte
}

// ParseAddress decodes a tz1/tz2/tz3/KT1 string. Codec failures are returned
// as *base58check.DecodeError.
func ParseAddress(s string) (Address, error) {
	prefix, payload, err := base58check.Decode(s, addressTable)
	if err != nil {
		return Address{}, err
	}
	a := Address{}
	switch prefix.Name {
	case PrefixTz1.Name:
		a.Kind = AddressImplicitEd25519
	case PrefixTz2.Name:
		a.Kind = AddressImplicitSecp256k1
	case PrefixTz3.Name:
		a.Kind = AddressImplicitP256
	case PrefixKT1.Name:
		a.Kind = AddressOriginated
	}
	copy(a.Hash[:], payload)
	return a, nil
}

// MustParseAddress panics on invalid input. Intended for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// NewImplicitAddress builds the implicit account address for a key hash.
func NewImplicitAddress(curve Curve, hash [AddressHashLength]byte) (Address, error) {
	var kind AddressKind
	switch curve {
	case CurveEd25519:
		kind = AddressImplicitEd25519
	case CurveSecp256k1:
		kind = AddressImplicitSecp256k1
	case CurveP256:
		kind = AddressImplicitP256
	default:
		return Address{}, fmt.Errorf("%w: %s", ErrUnsupportedCurve, curve)
	}
	return Address{Kind: kind, Hash: hash}, nil
}

func (a Address) IsValid() bool {
	_, ok := a.Kind.prefix()
	return ok
}

func (a Address) IsImplicit() bool {
	return a.Kind == AddressImplicitEd25519 || a.Kind == AddressImplicitSecp256k1 || a.Kind == AddressImplicitP256
}

// Curve returns the signing curve of an implicit address.
func (a Address) Curve() (Curve, bool) {
	switch a.Kind {
	case AddressImplicitEd25519:
		return CurveEd25519, true
	case AddressImplicitSecp256k1:
		return CurveSecp256k1, true
	case AddressImplicitP256:
		return CurveP256, true
	}
	return CurveUnknown, false
}

func (a Address) String() string {
	prefix, ok := a.Kind.prefix()
	if !ok {
		return ""
	}
	return base58check.MustEncode(prefix, a.Hash[:])
}

func (a Address) MarshalText() ([]byte, error) {
	if !a.IsValid() {
		return nil, fmt.Errorf("cannot marshal invalid address kind %s", a.Kind)
	}
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
