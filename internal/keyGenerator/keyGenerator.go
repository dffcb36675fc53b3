package keyGenerator

import (
	"context"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
)

// GeneratedKey describes a freshly provisioned signing key and the implicit
// account it controls.
type GeneratedKey struct {
	KeyID     string
	Alias     string
	PublicKey crypto.PublicKey
	Address   crypto.Address
}

func (g *GeneratedKey) Curve() crypto.Curve {
	return g.PublicKey.Curve
}

// IKeyGenerator provisions new signing keys on a backend.
type IKeyGenerator interface {
	GenerateKey(ctx context.Context, curve crypto.Curve, name string, alias string) (*GeneratedKey, error)
	GetKeyByID(ctx context.Context, keyID string) (*GeneratedKey, error)
}
