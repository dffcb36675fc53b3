package operationSigner

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewSignedOperationResult(t *testing.T) {
	forged := []byte{0xde, 0xad, 0xbe, 0xef}
	raw := make([]byte, crypto.SignatureLength)
	raw[0] = 0x01
	raw[63] = 0xff

	result, err := NewSignedOperationResult(forged, crypto.Signature{Curve: crypto.CurveEd25519, Bytes: raw})
	require.NoError(t, err)

	assert.Equal(t, "deadbeef"+hex.EncodeToString(raw), result.OperationWithSignature())
	assert.Equal(t, crypto.OperationHashOf(append(append([]byte{}, forged...), raw...)), result.OperationHash())
	assert.Equal(t, "edsig", result.SignatureString()[:5])

	// accessors hand out copies
	result.SignedBytes()[0] = 0
	result.Signature().Bytes[0] = 0
	assert.Equal(t, byte(0xde), result.SignedBytes()[0])
	assert.Equal(t, byte(0x01), result.Signature().Bytes[0])
}

func Test_NewSignedOperationResultErrors(t *testing.T) {
	_, err := NewSignedOperationResult(nil, crypto.Signature{Bytes: make([]byte, 64)})
	assert.Error(t, err)
	_, err = NewSignedOperationResult([]byte{1}, crypto.Signature{Bytes: make([]byte, 63)})
	assert.Error(t, err)
}

func Test_FramingIgnoresSignatureEncoding(t *testing.T) {
	forged := []byte("forged")
	raw := make([]byte, crypto.SignatureLength)
	raw[5] = 7

	a, err := NewSignedOperationResult(forged, crypto.Signature{Curve: crypto.CurveEd25519, Bytes: raw})
	require.NoError(t, err)
	b, err := NewSignedOperationResult(forged, crypto.Signature{Curve: crypto.CurveUnknown, Bytes: raw})
	require.NoError(t, err)

	assert.Equal(t, a.OperationWithSignature(), b.OperationWithSignature())
	assert.Equal(t, a.OperationHash(), b.OperationHash())
}

func Test_OperationDigestUsesWatermark(t *testing.T) {
	forged := []byte("payload")
	assert.Equal(t, crypto.Blake2b256([]byte{0x03}, forged), OperationDigest(forged))
	assert.NotEqual(t, crypto.Blake2b256(forged), OperationDigest(forged))
}

func Test_VerifyResult(t *testing.T) {
	priv, err := crypto.GenerateKey(crypto.CurveP256, nil)
	require.NoError(t, err)
	kp, err := crypto.NewKeyPair(priv)
	require.NoError(t, err)

	forged := []byte("forged group")
	digest := OperationDigest(forged)
	sig, err := kp.Private.Sign(digest[:])
	require.NoError(t, err)

	result, err := NewSignedOperationResult(forged, sig)
	require.NoError(t, err)
	assert.True(t, VerifyResult(kp.Public, forged, result))
	assert.False(t, VerifyResult(kp.Public, []byte("other"), result))
}

func Test_SignerErrors(t *testing.T) {
	addr := crypto.Address{Kind: crypto.AddressImplicitEd25519}
	cause := errors.New("usb unplugged")

	deviceErr := NewSignerError(DeviceError, addr, cause)
	assert.True(t, errors.Is(deviceErr, ErrDevice))
	assert.True(t, errors.Is(deviceErr, cause))
	assert.False(t, errors.Is(deviceErr, ErrUserCancelled))
	assert.True(t, deviceErr.Retryable())
	assert.Contains(t, deviceErr.Error(), "usb unplugged")

	cancelled := NewSignerError(UserCancelled, addr, nil)
	assert.True(t, errors.Is(cancelled, ErrUserCancelled))
	assert.False(t, cancelled.Retryable())

	noKey := NewSignerError(NoKeyForAddress, addr, nil)
	assert.True(t, errors.Is(noKey, ErrNoKeyForAddress))
	assert.Contains(t, noKey.Error(), addr.String())
}
