package crypto

import "github.com/Layr-Labs/tezos-client-go/pkg/encoding/base58check"

const (
	AddressHashLength      = 20
	Ed25519PublicKeyLen    = 32
	CompressedPublicKeyLen = 33
	SignatureLength        = 64
	HashLength             = 32
	ChainIDLength          = 4
)

// Address prefixes.
var (
	PrefixTz1 = base58check.Prefix{Name: "tz1", Bytes: []byte{0x06, 0xA1, 0x9F}, PayloadLength: AddressHashLength}
	PrefixTz2 = base58check.Prefix{Name: "tz2", Bytes: []byte{0x06, 0xA1, 0xA1}, PayloadLength: AddressHashLength}
	PrefixTz3 = base58check.Prefix{Name: "tz3", Bytes: []byte{0x06, 0xA1, 0xA4}, PayloadLength: AddressHashLength}
	PrefixKT1 = base58check.Prefix{Name: "KT1", Bytes: []byte{0x02, 0x5A, 0x79}, PayloadLength: AddressHashLength}
)

// Public key prefixes.
var (
	PrefixEdpk = base58check.Prefix{Name: "edpk", Bytes: []byte{0x0D, 0x0F, 0x25, 0xD9}, PayloadLength: Ed25519PublicKeyLen}
	PrefixSppk = base58check.Prefix{Name: "sppk", Bytes: []byte{0x03, 0xFE, 0xE2, 0x56}, PayloadLength: CompressedPublicKeyLen}
	PrefixP2pk = base58check.Prefix{Name: "p2pk", Bytes: []byte{0x03, 0xB2, 0x8B, 0x7F}, PayloadLength: CompressedPublicKeyLen}
)

// Private key prefixes. ed25519 keys exist both as a 32 byte seed and as the
// 64 byte expanded secret (seed || public key).
var (
	PrefixEdskSeed   = base58check.Prefix{Name: "edsk", Bytes: []byte{0x0D, 0x0F, 0x3A, 0x07}, PayloadLength: 32}
	PrefixEdskSecret = base58check.Prefix{Name: "edsk", Bytes: []byte{0x2B, 0xF6, 0x4E, 0x07}, PayloadLength: 64}
	PrefixSpsk       = base58check.Prefix{Name: "spsk", Bytes: []byte{0x11, 0xA2, 0xE0, 0xC9}, PayloadLength: 32}
	PrefixP2sk       = base58check.Prefix{Name: "p2sk", Bytes: []byte{0x10, 0x51, 0xEE, 0xBD}, PayloadLength: 32}
)

// Signature prefixes.
var (
	PrefixEdsig   = base58check.Prefix{Name: "edsig", Bytes: []byte{0x09, 0xF5, 0xCD, 0x86, 0x12}, PayloadLength: SignatureLength}
	PrefixSpsig   = base58check.Prefix{Name: "spsig1", Bytes: []byte{0x0D, 0x73, 0x65, 0x13, 0x3F}, PayloadLength: SignatureLength}
	PrefixP2sig   = base58check.Prefix{Name: "p2sig", Bytes: []byte{0x36, 0xF0, 0x2C, 0x34}, PayloadLength: SignatureLength}
	PrefixGeneric = base58check.Prefix{Name: "sig", Bytes: []byte{0x04, 0x82, 0x2B}, PayloadLength: SignatureLength}
)

// Hash prefixes.
var (
	PrefixBlockHash     = base58check.Prefix{Name: "B", Bytes: []byte{0x01, 0x34}, PayloadLength: HashLength}
	PrefixOperationHash = base58check.Prefix{Name: "o", Bytes: []byte{0x05, 0x74}, PayloadLength: HashLength}
	PrefixProtocolHash  = base58check.Prefix{Name: "P", Bytes: []byte{0x02, 0xAA}, PayloadLength: HashLength}
	PrefixChainID       = base58check.Prefix{Name: "Net", Bytes: []byte{0x57, 0x52, 0x00}, PayloadLength: ChainIDLength}
)

var (
	addressTable    = base58check.Table{PrefixTz1, PrefixTz2, PrefixTz3, PrefixKT1}
	publicKeyTable  = base58check.Table{PrefixEdpk, PrefixSppk, PrefixP2pk}
	privateKeyTable = base58check.Table{PrefixEdskSeed, PrefixEdskSecret, PrefixSpsk, PrefixP2sk}
	signatureTable  = base58check.Table{PrefixEdsig, PrefixSpsig, PrefixP2sig, PrefixGeneric}
)
