package hardwareSigner

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

type HardwareSignerConfig struct {
	Path DerivationPath
	// Address is the account the device key controls. When unset it is
	// derived from the device's public key on first use.
	Address crypto.Address
}

// HardwareSigner delegates signing to an external device. Private keys never
// leave the device.
type HardwareSigner struct {
	device IDevice
	config *HardwareSignerConfig
	logger *zap.Logger

	mu        sync.Mutex
	handle    DeviceHandle
	publicKey *crypto.PublicKey
	address   crypto.Address
}

var _ operationSigner.IOperationSigner = (*HardwareSigner)(nil)

func NewHardwareSigner(device IDevice, cfg *HardwareSignerConfig, logger *zap.Logger) (*HardwareSigner, error) {
	if device == nil {
		return nil, fmt.Errorf("device is required")
	}
	if cfg == nil || len(cfg.Path) == 0 {
		return nil, fmt.Errorf("derivation path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HardwareSigner{
		device:  device,
		config:  cfg,
		logger:  logger,
		address: cfg.Address,
	}, nil
}

// ensureConnected returns the live handle, connecting and initialising the
// device when there is none. Caller holds mu.
func (hs *HardwareSigner) ensureConnected(ctx context.Context) (DeviceHandle, error) {
	if hs.handle != nil {
		return hs.handle, nil
	}
	handle, err := hs.device.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to device: %w", err)
	}
	if err := hs.device.Init(ctx, handle); err != nil {
		return nil, fmt.Errorf("failed to initialise device: %w", err)
	}
	hs.handle = handle
	hs.logger.Sugar().Infow("Connected to signing device", "path", hs.config.Path.String())
	return handle, nil
}

// classify maps device failures onto signer errors and drops the handle on
// anything but a user rejection so the next call reconnects.
func (hs *HardwareSigner) classify(addr crypto.Address, err error) error {
	var failure *DeviceFailure
	if errors.As(err, &failure) && failure.Cancelled() {
		return operationSigner.NewSignerError(operationSigner.UserCancelled, addr, err)
	}
	hs.handle = nil
	return operationSigner.NewSignerError(operationSigner.DeviceError, addr, err)
}

// loadPublicKey fetches and caches the device key. Caller holds mu.
func (hs *HardwareSigner) loadPublicKey(ctx context.Context) (crypto.PublicKey, error) {
	if hs.publicKey != nil {
		return *hs.publicKey, nil
	}
	handle, err := hs.ensureConnected(ctx)
	if err != nil {
		return crypto.PublicKey{}, hs.classify(hs.address, err)
	}
	encoded, err := hs.device.GetPublicKey(ctx, handle, hs.config.Path)
	if err != nil {
		return crypto.PublicKey{}, hs.classify(hs.address, err)
	}
	pk, err := crypto.ParsePublicKey(encoded)
	if err != nil {
		return crypto.PublicKey{}, hs.classify(hs.address, fmt.Errorf("device returned invalid public key: %w", err))
	}
	addr, err := pk.Hash()
	if err != nil {
		return crypto.PublicKey{}, hs.classify(hs.address, err)
	}
	if hs.address.IsValid() && addr != hs.address {
		return crypto.PublicKey{}, operationSigner.NewSignerError(operationSigner.KeyMismatch, hs.address,
			fmt.Errorf("device key at %s controls %s", hs.config.Path, addr))
	}
	hs.address = addr
	hs.publicKey = &pk
	return pk, nil
}

func (hs *HardwareSigner) PublicKey(ctx context.Context, source crypto.Address) (crypto.PublicKey, error) {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	pk, err := hs.loadPublicKey(ctx)
	if err != nil {
		return crypto.PublicKey{}, err
	}
	if source != hs.address {
		return crypto.PublicKey{}, operationSigner.NewSignerError(operationSigner.NoKeyForAddress, source, nil)
	}
	return pk, nil
}

// Address returns the account controlled by the device key, if known.
func (hs *HardwareSigner) Address() crypto.Address {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return hs.address
}

func (hs *HardwareSigner) SignOperation(
	ctx context.Context,
	forged []byte,
	group *operation.OperationGroup,
) (*operationSigner.SignedOperationResult, error) {
	if err := group.Validate(); err != nil {
		return nil, fmt.Errorf("invalid operation group: %w", err)
	}
	source := group.Source()

	hs.mu.Lock()
	defer hs.mu.Unlock()

	if !hs.address.IsValid() {
		if _, err := hs.loadPublicKey(ctx); err != nil {
			return nil, err
		}
	}
	if source != hs.address {
		return nil, operationSigner.NewSignerError(operationSigner.NoKeyForAddress, source,
			fmt.Errorf("device key at %s controls %s", hs.config.Path, hs.address))
	}

	handle, err := hs.ensureConnected(ctx)
	if err != nil {
		return nil, hs.classify(source, err)
	}

	req := &SignTxRequest{
		AddressN:   hs.config.Path.AddressN(),
		Branch:     group.Branch,
		Operations: operation.Contents(group.Contents),
		Forged:     append([]byte(nil), forged...),
	}
	hs.logger.Sugar().Infow("Requesting signature from device",
		"source", source.String(),
		"path", hs.config.Path.String(),
		"operations", group.Kinds(),
	)
	resp, err := hs.device.SignTransaction(ctx, handle, hs.config.Path, req)
	if err != nil {
		signErr := hs.classify(source, err)
		hs.logger.Sugar().Warnw("Device signing failed", "source", source.String(), "error", signErr)
		return nil, signErr
	}

	sig, err := crypto.ParseSignature(resp.Signature)
	if err != nil {
		return nil, hs.classify(source, fmt.Errorf("device returned invalid signature: %w", err))
	}
	result, err := operationSigner.NewSignedOperationResult(forged, sig)
	if err != nil {
		return nil, hs.classify(source, err)
	}
	if hs.publicKey != nil && !operationSigner.VerifyResult(*hs.publicKey, forged, result) {
		return nil, hs.classify(source, errors.New("device signature does not verify"))
	}
	if resp.OperationHash != "" && resp.OperationHash != result.OperationHash().String() {
		return nil, hs.classify(source, fmt.Errorf("device reported operation hash %s, computed %s",
			resp.OperationHash, result.OperationHash()))
	}
	return result, nil
}
