// Package operationSigner defines the capability that turns forged operation
// bytes into a signed operation, shared by local, hardware and KMS backed
// signers.
package operationSigner

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/operation"
)

// WatermarkGenericOperation prefixes forged manager operations before
// hashing so the signature cannot be replayed as a block or endorsement.
const WatermarkGenericOperation byte = 0x03

// ErrKeyNotFound is returned by key lookups that hold nothing for an address.
var ErrKeyNotFound = errors.New("no key for address")

// IOperationSigner signs forged operation groups.
type IOperationSigner interface {
	// SignOperation signs forged, which must be the forged encoding of group.
	SignOperation(ctx context.Context, forged []byte, group *operation.OperationGroup) (*SignedOperationResult, error)

	// PublicKey returns the key that signs for source. Used to build reveals.
	PublicKey(ctx context.Context, source crypto.Address) (crypto.PublicKey, error)
}

// OperationDigest is blake2b-256(watermark || forged), the value every
// curve signs.
func OperationDigest(forged []byte) [32]byte {
	return crypto.Blake2b256([]byte{WatermarkGenericOperation}, forged)
}

// SignedOperationResult is created once per signature and not modified
// afterwards. The operation hash is the lookup key for confirmation.
type SignedOperationResult struct {
	signature     crypto.Signature
	signedBytes   []byte
	operationHash crypto.OperationHash
}

// NewSignedOperationResult frames forged || signature and derives the
// operation hash. All signers go through here so their output is identical
// for identical inputs.
func NewSignedOperationResult(forged []byte, sig crypto.Signature) (*SignedOperationResult, error) {
	if len(forged) == 0 {
		return nil, errors.New("forged bytes are empty")
	}
	if len(sig.Bytes) != crypto.SignatureLength {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig.Bytes))
	}
	signed := make([]byte, 0, len(forged)+len(sig.Bytes))
	signed = append(signed, forged...)
	signed = append(signed, sig.Bytes...)

	return &SignedOperationResult{
		signature:     crypto.Signature{Curve: sig.Curve, Bytes: append([]byte(nil), sig.Bytes...)},
		signedBytes:   signed,
		operationHash: crypto.OperationHashOf(signed),
	}, nil
}

func (r *SignedOperationResult) Signature() crypto.Signature {
	return crypto.Signature{Curve: r.signature.Curve, Bytes: append([]byte(nil), r.signature.Bytes...)}
}

// SignatureString is the base58 form sent to preapply.
func (r *SignedOperationResult) SignatureString() string { return r.signature.String() }

// OperationWithSignature is the hex string sent to injection.
func (r *SignedOperationResult) OperationWithSignature() string {
	return hex.EncodeToString(r.signedBytes)
}

func (r *SignedOperationResult) SignedBytes() []byte { return append([]byte(nil), r.signedBytes...) }

func (r *SignedOperationResult) OperationHash() crypto.OperationHash { return r.operationHash }

// VerifyResult checks the result's signature against pub.
func VerifyResult(pub crypto.PublicKey, forged []byte, result *SignedOperationResult) bool {
	digest := OperationDigest(forged)
	return pub.Verify(digest[:], result.signature)
}
