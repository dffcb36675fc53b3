package operationSigner

import (
	"errors"
	"fmt"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
)

type SignerErrorKind int

const (
	NoKeyForAddress SignerErrorKind = iota + 1
	DeviceError
	UserCancelled
	KeyMismatch
	RemoteError
)

func (k SignerErrorKind) String() string {
	switch k {
	case NoKeyForAddress:
		return "no key for address"
	case DeviceError:
		return "device error"
	case UserCancelled:
		return "user cancelled"
	case KeyMismatch:
		return "key mismatch"
	case RemoteError:
		return "remote signer error"
	}
	return "signer error"
}

var (
	ErrNoKeyForAddress = errors.New("no key for address")
	ErrDevice          = errors.New("device error")
	ErrUserCancelled   = errors.New("user cancelled")
	ErrKeyMismatch     = errors.New("key mismatch")
	ErrRemote          = errors.New("remote signer error")
)

// SignerError reports a failed signing attempt for Address.
type SignerError struct {
	Kind    SignerErrorKind
	Address crypto.Address
	Err     error
}

func NewSignerError(kind SignerErrorKind, addr crypto.Address, err error) *SignerError {
	return &SignerError{Kind: kind, Address: addr, Err: err}
}

func (e *SignerError) Error() string {
	addr := e.Address.String()
	if addr == "" {
		addr = "<unknown>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s for %s: %v", e.Kind, addr, e.Err)
	}
	return fmt.Sprintf("%s for %s", e.Kind, addr)
}

func (e *SignerError) Unwrap() error { return e.Err }

func (e *SignerError) Is(target error) bool {
	switch target {
	case ErrNoKeyForAddress:
		return e.Kind == NoKeyForAddress
	case ErrDevice:
		return e.Kind == DeviceError
	case ErrUserCancelled:
		return e.Kind == UserCancelled
	case ErrKeyMismatch:
		return e.Kind == KeyMismatch
	case ErrRemote:
		return e.Kind == RemoteError
	}
	return false
}

// Retryable reports whether the caller may retry after reconnecting.
func (e *SignerError) Retryable() bool {
	return e.Kind == DeviceError || e.Kind == RemoteError
}
