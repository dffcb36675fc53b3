package hardwareSigner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/operation"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner/hardwareSigner"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner/localSigner"
	"github.com/Layr-Labs/tezos-client-go/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func Test_ParseDerivationPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected hardwareSigner.DerivationPath
		wantErr  bool
	}{
		{
			name:  "default tezos account",
			input: "m/44'/1729'/0'",
			expected: hardwareSigner.DerivationPath{
				{Index: 44, Hardened: true},
				{Index: 1729, Hardened: true},
				{Index: 0, Hardened: true},
			},
		},
		{
			name:  "mixed hardening with h suffix",
			input: "m/44h/1729h/3/7'",
			expected: hardwareSigner.DerivationPath{
				{Index: 44, Hardened: true},
				{Index: 1729, Hardened: true},
				{Index: 3, Hardened: false},
				{Index: 7, Hardened: true},
			},
		},
		{
			name:     "no leading m",
			input:    "44'/1729'",
			expected: hardwareSigner.DerivationPath{{Index: 44, Hardened: true}, {Index: 1729, Hardened: true}},
		},
		{name: "empty", input: "", wantErr: true},
		{name: "only m", input: "m", wantErr: true},
		{name: "not a number", input: "m/44'/abc'", wantErr: true},
		{name: "empty component", input: "m/44'//0'", wantErr: true},
		{name: "index too large", input: "m/2147483648", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := hardwareSigner.ParseDerivationPath(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, hardwareSigner.ErrInvalidDerivationPath))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, path)
		})
	}
}

func Test_DerivationPathAddressN(t *testing.T) {
	path := hardwareSigner.MustParseDerivationPath(hardwareSigner.DefaultDerivationPath)
	assert.Equal(t, []uint32{0x8000002C, 0x800006C1, 0x80000000}, path.AddressN())
	assert.Equal(t, "m/44'/1729'/0'", path.String())
}

func newSigner(t *testing.T, device hardwareSigner.IDevice) *hardwareSigner.HardwareSigner {
	t.Helper()
	signer, err := hardwareSigner.NewHardwareSigner(device, &hardwareSigner.HardwareSignerConfig{
		Path: hardwareSigner.MustParseDerivationPath(hardwareSigner.DefaultDerivationPath),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return signer
}

func forgedGroup(t *testing.T, source crypto.Address) ([]byte, *operation.OperationGroup) {
	t.Helper()
	d, err := operation.NewDelegationBuilder().
		Source(source).
		DelegateString(testutil.DestinationAddress).
		Fee(400).
		Counter(7).
		GasLimit(1100).
		StorageLimit(0).
		Build()
	require.NoError(t, err)
	group, err := operation.NewOperationGroup(testutil.CreateTestBlockHash(2), d)
	require.NoError(t, err)
	forged, err := operation.Forge(group)
	require.NoError(t, err)
	return forged, group
}

func Test_HardwareSignerMatchesLocalSigner(t *testing.T) {
	priv, err := crypto.ParsePrivateKey(testutil.SourceSecretKey)
	require.NoError(t, err)
	kp, err := crypto.NewKeyPair(priv)
	require.NoError(t, err)

	forged, group := forgedGroup(t, kp.Address)

	local := localSigner.NewLocalSigner(localSigner.NewStaticKeyPairs(kp), zaptest.NewLogger(t))
	localResult, err := local.SignOperation(context.Background(), forged, group)
	require.NoError(t, err)

	device := testutil.NewStubDevice(kp)
	hw := newSigner(t, device)
	hwResult, err := hw.SignOperation(context.Background(), forged, group)
	require.NoError(t, err)

	assert.Equal(t, localResult.OperationWithSignature(), hwResult.OperationWithSignature())
	assert.Equal(t, localResult.OperationHash(), hwResult.OperationHash())
	assert.Equal(t, localResult.SignatureString(), hwResult.SignatureString())

	require.Len(t, device.Requests, 1)
	req := device.Requests[0]
	assert.Equal(t, forged, req.Forged)
	assert.Equal(t, group.Branch, req.Branch)
	assert.Equal(t, []uint32{0x8000002C, 0x800006C1, 0x80000000}, req.AddressN)
	require.Len(t, req.Operations, 1)
	assert.Equal(t, "delegation", req.Operations[0].KindString())
}

func Test_HardwareSignerUserCancelled(t *testing.T) {
	kp := testutil.CreateTestKeyPair(t, crypto.CurveEd25519)
	device := testutil.NewStubDevice(kp)
	hw := newSigner(t, device)
	forged, group := forgedGroup(t, kp.Address)

	device.FailNext(&hardwareSigner.DeviceFailure{Code: hardwareSigner.FailureActionCancelled, Message: "rejected on device"})
	_, err := hw.SignOperation(context.Background(), forged, group)
	require.Error(t, err)
	assert.True(t, errors.Is(err, operationSigner.ErrUserCancelled))
	assert.False(t, errors.Is(err, operationSigner.ErrDevice))

	// cancellation keeps the handle
	_, err = hw.SignOperation(context.Background(), forged, group)
	require.NoError(t, err)
	assert.Equal(t, 1, device.Connects)
}

func Test_HardwareSignerDeviceErrorReconnects(t *testing.T) {
	kp := testutil.CreateTestKeyPair(t, crypto.CurveSecp256k1)
	device := testutil.NewStubDevice(kp)
	hw := newSigner(t, device)
	forged, group := forgedGroup(t, kp.Address)

	device.FailNext(errors.New("usb transfer failed"))
	_, err := hw.SignOperation(context.Background(), forged, group)
	require.Error(t, err)
	assert.True(t, errors.Is(err, operationSigner.ErrDevice))

	var signerErr *operationSigner.SignerError
	require.True(t, errors.As(err, &signerErr))
	assert.True(t, signerErr.Retryable())

	result, err := hw.SignOperation(context.Background(), forged, group)
	require.NoError(t, err)
	assert.True(t, operationSigner.VerifyResult(kp.Public, forged, result))
	assert.Equal(t, 2, device.Connects)
	assert.Equal(t, 2, device.Inits)
}

func Test_HardwareSignerConnectFailure(t *testing.T) {
	kp := testutil.CreateTestKeyPair(t, crypto.CurveEd25519)
	device := testutil.NewStubDevice(kp)
	device.ConnectErr = errors.New("no device found")
	hw := newSigner(t, device)
	forged, group := forgedGroup(t, kp.Address)

	_, err := hw.SignOperation(context.Background(), forged, group)
	assert.True(t, errors.Is(err, operationSigner.ErrDevice))
	assert.Equal(t, 0, device.SignCalls)
}

func Test_HardwareSignerWrongSource(t *testing.T) {
	kp := testutil.CreateTestKeyPair(t, crypto.CurveEd25519)
	hw := newSigner(t, testutil.NewStubDevice(kp))
	forged, group := forgedGroup(t, testutil.MustAddress(t, testutil.SourceAddress))

	_, err := hw.SignOperation(context.Background(), forged, group)
	assert.True(t, errors.Is(err, operationSigner.ErrNoKeyForAddress))

	pk, err := hw.PublicKey(context.Background(), kp.Address)
	require.NoError(t, err)
	assert.True(t, kp.Public.Equal(pk))
	assert.Equal(t, kp.Address, hw.Address())
}

func Test_HardwareSignerConfiguredAddressMismatch(t *testing.T) {
	kp := testutil.CreateTestKeyPair(t, crypto.CurveEd25519)
	hw, err := hardwareSigner.NewHardwareSigner(testutil.NewStubDevice(kp), &hardwareSigner.HardwareSignerConfig{
		Path:    hardwareSigner.MustParseDerivationPath(hardwareSigner.DefaultDerivationPath),
		Address: testutil.MustAddress(t, testutil.SourceAddress),
	}, nil)
	require.NoError(t, err)

	_, err = hw.PublicKey(context.Background(), testutil.MustAddress(t, testutil.SourceAddress))
	assert.True(t, errors.Is(err, operationSigner.ErrKeyMismatch))
}

func Test_NewHardwareSignerValidation(t *testing.T) {
	_, err := hardwareSigner.NewHardwareSigner(nil, &hardwareSigner.HardwareSignerConfig{}, nil)
	assert.Error(t, err)
	_, err = hardwareSigner.NewHardwareSigner(testutil.NewStubDevice(nil), &hardwareSigner.HardwareSignerConfig{}, nil)
	assert.Error(t, err)
}
