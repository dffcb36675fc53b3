package localSigner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/operation"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner/localSigner"
	"github.com/Layr-Labs/tezos-client-go/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func forgedGroup(t *testing.T, source crypto.Address) ([]byte, *operation.OperationGroup) {
	t.Helper()
	tx, err := operation.NewTransactionBuilder().
		Source(source).
		DestinationString(testutil.DestinationAddress).
		AmountMutez(1500000).
		Fee(1500).
		Counter(42).
		GasLimit(1521).
		StorageLimit(0).
		Build()
	require.NoError(t, err)
	group, err := operation.NewOperationGroup(testutil.CreateTestBlockHash(1), tx)
	require.NoError(t, err)
	forged, err := operation.Forge(group)
	require.NoError(t, err)
	return forged, group
}

func Test_LocalSignerSignsEveryCurve(t *testing.T) {
	for _, curve := range []crypto.Curve{crypto.CurveEd25519, crypto.CurveSecp256k1, crypto.CurveP256} {
		t.Run(curve.String(), func(t *testing.T) {
			kp := testutil.CreateTestKeyPair(t, curve)
			signer := localSigner.NewLocalSigner(localSigner.NewStaticKeyPairs(kp), zaptest.NewLogger(t))

			forged, group := forgedGroup(t, kp.Address)
			result, err := signer.SignOperation(context.Background(), forged, group)
			require.NoError(t, err)

			assert.True(t, operationSigner.VerifyResult(kp.Public, forged, result))
			assert.Equal(t, curve, result.Signature().Curve)
			assert.Len(t, result.OperationWithSignature(), 2*(len(forged)+crypto.SignatureLength))

			pk, err := signer.PublicKey(context.Background(), kp.Address)
			require.NoError(t, err)
			assert.True(t, kp.Public.Equal(pk))
		})
	}
}

func Test_LocalSignerNoKey(t *testing.T) {
	kp := testutil.CreateTestKeyPair(t, crypto.CurveEd25519)
	signer := localSigner.NewLocalSigner(localSigner.NewStaticKeyPairs(), zaptest.NewLogger(t))

	forged, group := forgedGroup(t, kp.Address)
	_, err := signer.SignOperation(context.Background(), forged, group)
	require.Error(t, err)
	assert.True(t, errors.Is(err, operationSigner.ErrNoKeyForAddress))

	var signerErr *operationSigner.SignerError
	require.True(t, errors.As(err, &signerErr))
	assert.Equal(t, kp.Address, signerErr.Address)
}

type wrongLookup struct {
	kp *crypto.KeyPair
}

func (w *wrongLookup) GetKeyPair(context.Context, crypto.Address) (*crypto.KeyPair, error) {
	return w.kp, nil
}

func Test_LocalSignerKeyMismatch(t *testing.T) {
	other := testutil.CreateTestKeyPair(t, crypto.CurveEd25519)
	signer := localSigner.NewLocalSigner(&wrongLookup{kp: other}, nil)

	forged, group := forgedGroup(t, testutil.MustAddress(t, testutil.SourceAddress))
	_, err := signer.SignOperation(context.Background(), forged, group)
	assert.True(t, errors.Is(err, operationSigner.ErrKeyMismatch))
}

type failingLookup struct{}

func (failingLookup) GetKeyPair(context.Context, crypto.Address) (*crypto.KeyPair, error) {
	return nil, errors.New("keystore offline")
}

func Test_LocalSignerLookupFailure(t *testing.T) {
	signer := localSigner.NewLocalSigner(failingLookup{}, nil)
	forged, group := forgedGroup(t, testutil.MustAddress(t, testutil.SourceAddress))
	_, err := signer.SignOperation(context.Background(), forged, group)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keystore offline")
	assert.False(t, errors.Is(err, operationSigner.ErrNoKeyForAddress))
}

func Test_LocalSignerDeterministicEd25519(t *testing.T) {
	priv, err := crypto.ParsePrivateKey(testutil.SourceSecretKey)
	require.NoError(t, err)
	kp, err := crypto.NewKeyPair(priv)
	require.NoError(t, err)
	signer := localSigner.NewLocalSigner(localSigner.NewStaticKeyPairs(kp), nil)

	forged, group := forgedGroup(t, kp.Address)
	a, err := signer.SignOperation(context.Background(), forged, group)
	require.NoError(t, err)
	b, err := signer.SignOperation(context.Background(), forged, group)
	require.NoError(t, err)
	assert.Equal(t, a.OperationWithSignature(), b.OperationWithSignature())
	assert.Equal(t, a.OperationHash(), b.OperationHash())
}
