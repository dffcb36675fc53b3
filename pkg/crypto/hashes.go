package crypto

import (
	"fmt"

	"github.com/Layr-Labs/tezos-client-go/pkg/encoding/base58check"
	"golang.org/x/crypto/blake2b"
)

// Blake2b256 hashes the concatenation of parts into 32 bytes.
func Blake2b256(parts ...[]byte) [32]byte {
	h, _ := blake2b.New256(nil)
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Blake2b160 hashes data into the 20 byte digest used for key hashes.
func Blake2b160(data []byte) [20]byte {
	h, _ := blake2b.New(AddressHashLength, nil)
	h.Write(data)
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

func decodeFixed(text string, prefix base58check.Prefix, dst []byte) error {
	_, payload, err := base58check.Decode(text, base58check.Table{prefix})
	if err != nil {
		return err
	}
	copy(dst, payload)
	return nil
}

// BlockHash identifies a block; used as the branch of an operation group.
type BlockHash [HashLength]byte

func ParseBlockHash(s string) (BlockHash, error) {
	var h BlockHash
	err := decodeFixed(s, PrefixBlockHash, h[:])
	return h, err
}

func (h BlockHash) String() string { return base58check.MustEncode(PrefixBlockHash, h[:]) }
func (h BlockHash) IsZero() bool   { return h == BlockHash{} }

func (h BlockHash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *BlockHash) UnmarshalText(text []byte) error {
	parsed, err := ParseBlockHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// OperationHash is the content address of a signed operation group.
type OperationHash [HashLength]byte

func ParseOperationHash(s string) (OperationHash, error) {
	var h OperationHash
	err := decodeFixed(s, PrefixOperationHash, h[:])
	return h, err
}

// OperationHashOf hashes a signed operation (forged bytes || signature).
func OperationHashOf(signedBytes []byte) OperationHash {
	return OperationHash(Blake2b256(signedBytes))
}

func (h OperationHash) String() string { return base58check.MustEncode(PrefixOperationHash, h[:]) }
func (h OperationHash) IsZero() bool   { return h == OperationHash{} }

func (h OperationHash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *OperationHash) UnmarshalText(text []byte) error {
	parsed, err := ParseOperationHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ProtocolHash identifies a protocol version.
type ProtocolHash [HashLength]byte

func ParseProtocolHash(s string) (ProtocolHash, error) {
	var h ProtocolHash
	err := decodeFixed(s, PrefixProtocolHash, h[:])
	return h, err
}

func (h ProtocolHash) String() string { return base58check.MustEncode(PrefixProtocolHash, h[:]) }

func (h ProtocolHash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *ProtocolHash) UnmarshalText(text []byte) error {
	parsed, err := ParseProtocolHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ChainID identifies a network.
type ChainID [ChainIDLength]byte

func ParseChainID(s string) (ChainID, error) {
	var id ChainID
	if err := decodeFixed(s, PrefixChainID, id[:]); err != nil {
		return id, fmt.Errorf("invalid chain id: %w", err)
	}
	return id, nil
}

func (id ChainID) String() string { return base58check.MustEncode(PrefixChainID, id[:]) }

func (id ChainID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ChainID) UnmarshalText(text []byte) error {
	parsed, err := ParseChainID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
