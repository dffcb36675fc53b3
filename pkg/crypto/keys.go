package crypto

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/Layr-Labs/tezos-client-go/pkg/encoding/base58check"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrUnsupportedCurve = errors.New("unsupported curve")
	ErrInvalidKey       = errors.New("invalid key material")
	ErrCurveMismatch    = errors.New("curve mismatch")
)

type Curve int

const (
	CurveUnknown Curve = iota
	CurveEd25519
	CurveSecp256k1
	CurveP256
)

func (c Curve) String() string {
	switch c {
	case CurveEd25519:
		return "ed25519"
	case CurveSecp256k1:
		return "secp256k1"
	case CurveP256:
		return "p256"
	default:
		return "unknown"
	}
}

// ParseCurve accepts the names returned by Curve.String.
func ParseCurve(s string) (Curve, error) {
	switch s {
	case "ed25519":
		return CurveEd25519, nil
	case "secp256k1":
		return CurveSecp256k1, nil
	case "p256", "p-256":
		return CurveP256, nil
	}
	return CurveUnknown, fmt.Errorf("%w: %q", ErrUnsupportedCurve, s)
}

// Tag is the one byte curve discriminant used in forged keys and key hashes.
func (c Curve) Tag() (byte, error) {
	switch c {
	case CurveEd25519:
		return 0x00, nil
	case CurveSecp256k1:
		return 0x01, nil
	case CurveP256:
		return 0x02, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedCurve, c)
}

// CurveFromTag reverses Curve.Tag.
func CurveFromTag(tag byte) (Curve, error) {
	switch tag {
	case 0x00:
		return CurveEd25519, nil
	case 0x01:
		return CurveSecp256k1, nil
	case 0x02:
		return CurveP256, nil
	}
	return CurveUnknown, fmt.Errorf("%w: tag %d", ErrUnsupportedCurve, tag)
}

// PublicKey holds the raw key: 32 bytes for ed25519, 33 byte compressed
// points for secp256k1 and P-256.
type PublicKey struct {
	Curve Curve
	Key   []byte
}

func NewPublicKey(curve Curve, key []byte) (PublicKey, error) {
	switch curve {
	case CurveEd25519:
		if len(key) != ed25519.PublicKeySize {
			return PublicKey{}, fmt.Errorf("%w: ed25519 public key must be %d bytes", ErrInvalidKey, ed25519.PublicKeySize)
		}
	case CurveSecp256k1:
		if _, err := ethcrypto.DecompressPubkey(key); err != nil {
			return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
	case CurveP256:
		if len(key) != CompressedPublicKeyLen {
			return PublicKey{}, fmt.Errorf("%w: p256 public key must be %d bytes", ErrInvalidKey, CompressedPublicKeyLen)
		}
		if x, _ := elliptic.UnmarshalCompressed(elliptic.P256(), key); x == nil {
			return PublicKey{}, fmt.Errorf("%w: p256 point not on curve", ErrInvalidKey)
		}
	default:
		return PublicKey{}, fmt.Errorf("%w: %s", ErrUnsupportedCurve, curve)
	}
	return PublicKey{Curve: curve, Key: bytes.Clone(key)}, nil
}

// ParsePublicKey decodes an edpk/sppk/p2pk string.
func ParsePublicKey(s string) (PublicKey, error) {
	prefix, payload, err := base58check.Decode(s, publicKeyTable)
	if err != nil {
		return PublicKey{}, err
	}
	var curve Curve
	switch prefix.Name {
	case PrefixEdpk.Name:
		curve = CurveEd25519
	case PrefixSppk.Name:
		curve = CurveSecp256k1
	case PrefixP2pk.Name:
		curve = CurveP256
	}
	return NewPublicKey(curve, payload)
}

func publicKeyPrefix(c Curve) (base58check.Prefix, error) {
	switch c {
	case CurveEd25519:
		return PrefixEdpk, nil
	case CurveSecp256k1:
		return PrefixSppk, nil
	case CurveP256:
		return PrefixP2pk, nil
	}
	return base58check.Prefix{}, fmt.Errorf("%w: %s", ErrUnsupportedCurve, c)
}

func (k PublicKey) String() string {
	prefix, err := publicKeyPrefix(k.Curve)
	if err != nil {
		return ""
	}
	s, err := base58check.Encode(prefix, k.Key)
	if err != nil {
		return ""
	}
	return s
}

func (k PublicKey) IsZero() bool { return k.Curve == CurveUnknown && len(k.Key) == 0 }

func (k PublicKey) Equal(other PublicKey) bool {
	return k.Curve == other.Curve && bytes.Equal(k.Key, other.Key)
}

// Hash derives the implicit account address (blake2b-160 of the raw key).
func (k PublicKey) Hash() (Address, error) {
	return NewImplicitAddress(k.Curve, Blake2b160(k.Key))
}

// Verify checks a 64 byte signature over a 32 byte digest.
func (k PublicKey) Verify(digest []byte, sig Signature) bool {
	if len(sig.Bytes) != SignatureLength {
		return false
	}
	if sig.Curve != CurveUnknown && sig.Curve != k.Curve {
		return false
	}
	switch k.Curve {
	case CurveEd25519:
		return ed25519.Verify(ed25519.PublicKey(k.Key), digest, sig.Bytes)
	case CurveSecp256k1:
		return ethcrypto.VerifySignature(k.Key, digest, sig.Bytes)
	case CurveP256:
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), k.Key)
		if x == nil {
			return false
		}
		pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
		r := new(big.Int).SetBytes(sig.Bytes[:32])
		s := new(big.Int).SetBytes(sig.Bytes[32:])
		return ecdsa.Verify(pub, digest, r, s)
	}
	return false
}

func (k PublicKey) MarshalText() ([]byte, error) {
	s := k.String()
	if s == "" {
		return nil, fmt.Errorf("%w: cannot marshal %s public key", ErrInvalidKey, k.Curve)
	}
	return []byte(s), nil
}

func (k *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// PrivateKey holds the 32 byte secret scalar (or ed25519 seed).
type PrivateKey struct {
	Curve Curve
	Key   []byte
}

func NewPrivateKey(curve Curve, key []byte) (PrivateKey, error) {
	switch curve {
	case CurveEd25519:
		switch len(key) {
		case ed25519.SeedSize:
		case ed25519.PrivateKeySize:
			expected := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
			if !bytes.Equal(expected, key) {
				return PrivateKey{}, fmt.Errorf("%w: ed25519 secret does not match its seed", ErrInvalidKey)
			}
			key = key[:ed25519.SeedSize]
		default:
			return PrivateKey{}, fmt.Errorf("%w: ed25519 private key must be 32 or 64 bytes", ErrInvalidKey)
		}
	case CurveSecp256k1:
		if _, err := ethcrypto.ToECDSA(key); err != nil {
			return PrivateKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
	case CurveP256:
		if _, err := p256PrivateKey(key); err != nil {
			return PrivateKey{}, err
		}
	default:
		return PrivateKey{}, fmt.Errorf("%w: %s", ErrUnsupportedCurve, curve)
	}
	return PrivateKey{Curve: curve, Key: bytes.Clone(key)}, nil
}

// ParsePrivateKey decodes an edsk (seed or expanded)/spsk/p2sk string.
func ParsePrivateKey(s string) (PrivateKey, error) {
	prefix, payload, err := base58check.Decode(s, privateKeyTable)
	if err != nil {
		return PrivateKey{}, err
	}
	var curve Curve
	switch prefix.Name {
	case PrefixEdskSeed.Name:
		curve = CurveEd25519
	case PrefixSpsk.Name:
		curve = CurveSecp256k1
	case PrefixP2sk.Name:
		curve = CurveP256
	}
	return NewPrivateKey(curve, payload)
}

// GenerateKey creates a random private key. A nil reader uses crypto/rand.
func GenerateKey(curve Curve, random io.Reader) (PrivateKey, error) {
	if random == nil {
		random = rand.Reader
	}
	switch curve {
	case CurveEd25519:
		_, priv, err := ed25519.GenerateKey(random)
		if err != nil {
			return PrivateKey{}, err
		}
		return PrivateKey{Curve: curve, Key: bytes.Clone(priv.Seed())}, nil
	case CurveSecp256k1:
		for {
			buf := make([]byte, 32)
			if _, err := io.ReadFull(random, buf); err != nil {
				return PrivateKey{}, err
			}
			// ToECDSA rejects zero and scalars >= N; draw again.
			if priv, err := ethcrypto.ToECDSA(buf); err == nil {
				return PrivateKey{Curve: curve, Key: ethcrypto.FromECDSA(priv)}, nil
			}
		}
	case CurveP256:
		priv, err := ecdsa.GenerateKey(elliptic.P256(), random)
		if err != nil {
			return PrivateKey{}, err
		}
		return PrivateKey{Curve: curve, Key: priv.D.FillBytes(make([]byte, 32))}, nil
	}
	return PrivateKey{}, fmt.Errorf("%w: %s", ErrUnsupportedCurve, curve)
}

func (k PrivateKey) String() string {
	var prefix base58check.Prefix
	switch k.Curve {
	case CurveEd25519:
		prefix = PrefixEdskSeed
	case CurveSecp256k1:
		prefix = PrefixSpsk
	case CurveP256:
		prefix = PrefixP2sk
	default:
		return ""
	}
	s, err := base58check.Encode(prefix, k.Key)
	if err != nil {
		return ""
	}
	return s
}

// Public derives the matching public key.
func (k PrivateKey) Public() (PublicKey, error) {
	switch k.Curve {
	case CurveEd25519:
		if len(k.Key) != ed25519.SeedSize {
			return PublicKey{}, ErrInvalidKey
		}
		pub := ed25519.NewKeyFromSeed(k.Key).Public().(ed25519.PublicKey)
		return PublicKey{Curve: k.Curve, Key: []byte(pub)}, nil
	case CurveSecp256k1:
		priv, err := ethcrypto.ToECDSA(k.Key)
		if err != nil {
			return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return PublicKey{Curve: k.Curve, Key: ethcrypto.CompressPubkey(&priv.PublicKey)}, nil
	case CurveP256:
		priv, err := p256PrivateKey(k.Key)
		if err != nil {
			return PublicKey{}, err
		}
		return PublicKey{Curve: k.Curve, Key: elliptic.MarshalCompressed(elliptic.P256(), priv.X, priv.Y)}, nil
	}
	return PublicKey{}, fmt.Errorf("%w: %s", ErrUnsupportedCurve, k.Curve)
}

// Sign signs a 32 byte digest. secp256k1 signatures are low-S normalised.
func (k PrivateKey) Sign(digest []byte) (Signature, error) {
	switch k.Curve {
	case CurveEd25519:
		sig := ed25519.Sign(ed25519.NewKeyFromSeed(k.Key), digest)
		return Signature{Curve: k.Curve, Bytes: sig}, nil
	case CurveSecp256k1:
		priv, err := ethcrypto.ToECDSA(k.Key)
		if err != nil {
			return Signature{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		sig, err := ethcrypto.Sign(digest, priv)
		if err != nil {
			return Signature{}, fmt.Errorf("failed to sign with secp256k1: %w", err)
		}
		// drop the recovery id
		return Signature{Curve: k.Curve, Bytes: sig[:SignatureLength]}, nil
	case CurveP256:
		priv, err := p256PrivateKey(k.Key)
		if err != nil {
			return Signature{}, err
		}
		r, s, err := ecdsa.Sign(rand.Reader, priv, digest)
		if err != nil {
			return Signature{}, fmt.Errorf("failed to sign with p256: %w", err)
		}
		return Signature{Curve: k.Curve, Bytes: RSToSignature(r, s, elliptic.P256().Params().N)}, nil
	}
	return Signature{}, fmt.Errorf("%w: %s", ErrUnsupportedCurve, k.Curve)
}

// Zero wipes the key material in place.
func (k *PrivateKey) Zero() {
	for i := range k.Key {
		k.Key[i] = 0
	}
}

func p256PrivateKey(key []byte) (*ecdsa.PrivateKey, error) {
	curve := elliptic.P256()
	d := new(big.Int).SetBytes(key)
	if len(key) != 32 || d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, fmt.Errorf("%w: p256 scalar out of range", ErrInvalidKey)
	}
	priv := &ecdsa.PrivateKey{D: d}
	priv.PublicKey.Curve = curve
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(key)
	return priv, nil
}

// RSToSignature packs r and s into 64 bytes, normalising s to the lower half
// of the curve order.
func RSToSignature(r, s, n *big.Int) []byte {
	half := new(big.Int).Rsh(n, 1)
	if s.Cmp(half) > 0 {
		s = new(big.Int).Sub(n, s)
	}
	out := make([]byte, SignatureLength)
	r.FillBytes(out[:32])
	s.FillBytes(out[32:])
	return out
}

// KeyPair is a private key with its derived public key and address.
type KeyPair struct {
	Private PrivateKey
	Public  PublicKey
	Address Address
}

func NewKeyPair(priv PrivateKey) (*KeyPair, error) {
	pub, err := priv.Public()
	if err != nil {
		return nil, err
	}
	addr, err := pub.Hash()
	if err != nil {
		return nil, err
	}
	return &KeyPair{Private: priv, Public: pub, Address: addr}, nil
}
