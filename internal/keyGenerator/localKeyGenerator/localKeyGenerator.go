package localKeyGenerator

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/tezos-client-go/internal/keyGenerator"
	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/keystore"
	"github.com/Layr-Labs/tezos-client-go/pkg/persistence"
	"go.uber.org/zap"
)

// LocalKeyGenerator provisions keys into the encrypted keystore.
type LocalKeyGenerator struct {
	logger   *zap.Logger
	keystore *keystore.Keystore
}

var _ keyGenerator.IKeyGenerator = (*LocalKeyGenerator)(nil)

func NewLocalKeyGenerator(ks *keystore.Keystore, logger *zap.Logger) *LocalKeyGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalKeyGenerator{logger: logger, keystore: ks}
}

// GenerateKey stores a new key. The alias becomes the keystore label, falling
// back to name.
func (l *LocalKeyGenerator) GenerateKey(_ context.Context, curve crypto.Curve, name string, alias string) (*keyGenerator.GeneratedKey, error) {
	label := alias
	if label == "" {
		label = name
	}
	entry, err := l.keystore.Generate(curve, label)
	if err != nil {
		return nil, err
	}
	key, err := fromEntry(entry)
	if err != nil {
		return nil, err
	}
	l.logger.Sugar().Infow("Generated local key",
		"keyId", key.KeyID,
		"curve", curve.String(),
		"address", key.Address.String(),
	)
	return key, nil
}

// GetKeyByID looks a stored key up by its id or address.
func (l *LocalKeyGenerator) GetKeyByID(_ context.Context, keyID string) (*keyGenerator.GeneratedKey, error) {
	entries, err := l.keystore.List()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.ID == keyID || e.Address == keyID {
			return fromEntry(e)
		}
	}
	return nil, fmt.Errorf("key with ID %s not found", keyID)
}

func fromEntry(e *persistence.KeyEntry) (*keyGenerator.GeneratedKey, error) {
	pk, err := crypto.ParsePublicKey(e.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("stored key %s has invalid public key: %w", e.ID, err)
	}
	addr, err := crypto.ParseAddress(e.Address)
	if err != nil {
		return nil, fmt.Errorf("stored key %s has invalid address: %w", e.ID, err)
	}
	return &keyGenerator.GeneratedKey{KeyID: e.ID, Alias: e.Label, PublicKey: pk, Address: addr}, nil
}
