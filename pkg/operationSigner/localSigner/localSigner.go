package localSigner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/operation"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner"
	"go.uber.org/zap"
)

// IKeyPairLookup resolves the key pair controlling an address. A missing key
// is reported as operationSigner.ErrKeyNotFound.
type IKeyPairLookup interface {
	GetKeyPair(ctx context.Context, address crypto.Address) (*crypto.KeyPair, error)
}

// LocalSigner signs with key material held by the process.
type LocalSigner struct {
	keys   IKeyPairLookup
	logger *zap.Logger
}

var _ operationSigner.IOperationSigner = (*LocalSigner)(nil)

func NewLocalSigner(keys IKeyPairLookup, logger *zap.Logger) *LocalSigner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalSigner{keys: keys, logger: logger}
}

func (ls *LocalSigner) keyPair(ctx context.Context, source crypto.Address) (*crypto.KeyPair, error) {
	kp, err := ls.keys.GetKeyPair(ctx, source)
	if err != nil {
		if errors.Is(err, operationSigner.ErrKeyNotFound) {
			return nil, operationSigner.NewSignerError(operationSigner.NoKeyForAddress, source, err)
		}
		return nil, fmt.Errorf("failed to look up key for %s: %w", source, err)
	}
	if kp == nil {
		return nil, operationSigner.NewSignerError(operationSigner.NoKeyForAddress, source, nil)
	}
	if kp.Address != source {
		return nil, operationSigner.NewSignerError(operationSigner.KeyMismatch, source,
			fmt.Errorf("key pair controls %s", kp.Address))
	}
	return kp, nil
}

func (ls *LocalSigner) PublicKey(ctx context.Context, source crypto.Address) (crypto.PublicKey, error) {
	kp, err := ls.keyPair(ctx, source)
	if err != nil {
		return crypto.PublicKey{}, err
	}
	return kp.Public, nil
}

func (ls *LocalSigner) SignOperation(
	ctx context.Context,
	forged []byte,
	group *operation.OperationGroup,
) (*operationSigner.SignedOperationResult, error) {
	if err := group.Validate(); err != nil {
		return nil, fmt.Errorf("invalid operation group: %w", err)
	}
	source := group.Source()
	kp, err := ls.keyPair(ctx, source)
	if err != nil {
		return nil, err
	}

	digest := operationSigner.OperationDigest(forged)
	sig, err := kp.Private.Sign(digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign operation: %w", err)
	}
	if !kp.Public.Verify(digest[:], sig) {
		return nil, operationSigner.NewSignerError(operationSigner.KeyMismatch, source,
			errors.New("produced signature does not verify"))
	}

	result, err := operationSigner.NewSignedOperationResult(forged, sig)
	if err != nil {
		return nil, err
	}
	ls.logger.Sugar().Debugw("Signed operation locally",
		"source", source.String(),
		"curve", kp.Public.Curve.String(),
		"operationHash", result.OperationHash().String(),
	)
	return result, nil
}

// StaticKeyPairs is an in-memory IKeyPairLookup.
type StaticKeyPairs struct {
	mu   sync.RWMutex
	keys map[crypto.Address]*crypto.KeyPair
}

func NewStaticKeyPairs(pairs ...*crypto.KeyPair) *StaticKeyPairs {
	s := &StaticKeyPairs{keys: make(map[crypto.Address]*crypto.KeyPair, len(pairs))}
	for _, kp := range pairs {
		s.Add(kp)
	}
	return s
}

func (s *StaticKeyPairs) Add(kp *crypto.KeyPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[kp.Address] = kp
}

func (s *StaticKeyPairs) GetKeyPair(_ context.Context, address crypto.Address) (*crypto.KeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kp, ok := s.keys[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", operationSigner.ErrKeyNotFound, address)
	}
	return kp, nil
}
