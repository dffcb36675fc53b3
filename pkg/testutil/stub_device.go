package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner/hardwareSigner"
)

type stubHandle struct {
	id int
}

// StubDevice implements hardwareSigner.IDevice with an in-process key.
type StubDevice struct {
	mu sync.Mutex

	keyPair *crypto.KeyPair

	// ConnectErr fails every Connect call while set.
	ConnectErr error
	// failures are returned by the next SignTransaction calls, in order.
	failures []error

	Connects  int
	Inits     int
	SignCalls int
	Requests  []*hardwareSigner.SignTxRequest
}

var _ hardwareSigner.IDevice = (*StubDevice)(nil)

func NewStubDevice(kp *crypto.KeyPair) *StubDevice {
	return &StubDevice{keyPair: kp}
}

// FailNext queues an error for the next SignTransaction call.
func (d *StubDevice) FailNext(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = append(d.failures, err)
}

func (d *StubDevice) Connect(_ context.Context) (hardwareSigner.DeviceHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ConnectErr != nil {
		return nil, d.ConnectErr
	}
	d.Connects++
	return &stubHandle{id: d.Connects}, nil
}

func (d *StubDevice) Init(_ context.Context, handle hardwareSigner.DeviceHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := handle.(*stubHandle); !ok {
		return errors.New("unknown handle")
	}
	d.Inits++
	return nil
}

func (d *StubDevice) GetPublicKey(_ context.Context, _ hardwareSigner.DeviceHandle, _ hardwareSigner.DerivationPath) (string, error) {
	return d.keyPair.Public.String(), nil
}

func (d *StubDevice) SignTransaction(
	_ context.Context,
	handle hardwareSigner.DeviceHandle,
	_ hardwareSigner.DerivationPath,
	req *hardwareSigner.SignTxRequest,
) (*hardwareSigner.SignTxResponse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.SignCalls++
	d.Requests = append(d.Requests, req)

	if _, ok := handle.(*stubHandle); !ok {
		return nil, errors.New("unknown handle")
	}
	if len(d.failures) > 0 {
		err := d.failures[0]
		d.failures = d.failures[1:]
		return nil, err
	}

	digest := operationSigner.OperationDigest(req.Forged)
	sig, err := d.keyPair.Private.Sign(digest[:])
	if err != nil {
		return nil, err
	}
	return &hardwareSigner.SignTxResponse{Signature: sig.String()}, nil
}
