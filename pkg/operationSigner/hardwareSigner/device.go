package hardwareSigner

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/operation"
)

// DeviceHandle is an opaque connection owned by an IDevice implementation.
type DeviceHandle interface{}

// IDevice is the signing capability of an external device. Transport to the
// device is the implementation's concern.
type IDevice interface {
	Connect(ctx context.Context) (DeviceHandle, error)
	Init(ctx context.Context, handle DeviceHandle) error
	// GetPublicKey returns the base58 public key at path.
	GetPublicKey(ctx context.Context, handle DeviceHandle, path DerivationPath) (string, error)
	SignTransaction(ctx context.Context, handle DeviceHandle, path DerivationPath, req *SignTxRequest) (*SignTxResponse, error)
}

// SignTxRequest describes the group to the device so it can display what is
// being signed.
type SignTxRequest struct {
	AddressN   []uint32           `json:"address_n"`
	Branch     crypto.BlockHash   `json:"branch"`
	Operations operation.Contents `json:"operations"`
	// Forged is the exact payload being signed.
	Forged []byte `json:"forged"`
}

type SignTxResponse struct {
	// Signature is base58 encoded (edsig/spsig1/p2sig/sig).
	Signature string `json:"signature"`
	// OperationHash is optional; when present it must match the locally
	// computed hash.
	OperationHash string `json:"operation_hash,omitempty"`
}

type FailureCode int

const (
	FailureUnexpectedMessage FailureCode = 1
	FailureDataError         FailureCode = 3
	FailureActionCancelled   FailureCode = 4
	FailurePinCancelled      FailureCode = 6
	FailureProcessError      FailureCode = 9
	FailureNotInitialized    FailureCode = 11
)

// DeviceFailure is a failure reported by the device itself.
type DeviceFailure struct {
	Code    FailureCode
	Message string
}

func (f *DeviceFailure) Error() string {
	return fmt.Sprintf("device failure %d: %s", f.Code, f.Message)
}

// Cancelled reports an explicit rejection by the user.
func (f *DeviceFailure) Cancelled() bool {
	return f.Code == FailureActionCancelled || f.Code == FailurePinCancelled
}
