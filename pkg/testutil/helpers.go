package testutil

import (
	"testing"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
)

const (
	// walkthrough account shared by the command line examples
	SourceAddress      = "tz1av5nBB8Jp6VZZDBdmGifRcETaYc7UkEnU"
	DestinationAddress = "tz1cQbQUb1EcrEwCgTPPGdoWmixFzRArozYW"
	SourcePublicKey    = "edpktywJsAeturPxoFkDEerF6bi7N41ZnQyMrmNLQ3GZx2w6nn8eCZ"
	SourceSecretKey    = "edsk37Qf3bj5actYQj38hNnu5WtbYVw3Td7dxWQnV9XhrYeBYDuSty"
)

// CreateTestKeyPair generates a fresh key pair on curve.
func CreateTestKeyPair(t *testing.T, curve crypto.Curve) *crypto.KeyPair {
	t.Helper()
	priv, err := crypto.GenerateKey(curve, nil)
	if err != nil {
		t.Fatalf("Failed to generate %s key: %v", curve, err)
	}
	kp, err := crypto.NewKeyPair(priv)
	if err != nil {
		t.Fatalf("Failed to build key pair: %v", err)
	}
	return kp
}

// CreateTestBlockHash returns a non-zero block hash derived from seed.
func CreateTestBlockHash(seed byte) crypto.BlockHash {
	return crypto.BlockHash(crypto.Blake2b256([]byte("block"), []byte{seed}))
}

// CreateTestProtocolHash returns a protocol hash derived from seed.
func CreateTestProtocolHash(seed byte) crypto.ProtocolHash {
	return crypto.ProtocolHash(crypto.Blake2b256([]byte("protocol"), []byte{seed}))
}

func MustAddress(t *testing.T, s string) crypto.Address {
	t.Helper()
	addr, err := crypto.ParseAddress(s)
	if err != nil {
		t.Fatalf("Failed to parse address %q: %v", s, err)
	}
	return addr
}
