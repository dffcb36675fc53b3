package keystore

import (
	"context"
	"errors"
	"testing"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/operation"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner/localSigner"
	"github.com/Layr-Labs/tezos-client-go/pkg/persistence/memory"
	"github.com/Layr-Labs/tezos-client-go/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestKeystore(t *testing.T, store *memory.MemoryPersistence, password string) *Keystore {
	t.Helper()
	ks, err := NewKeystore(store, &KeystoreConfig{Password: password, Scrypt: LightScryptParams()}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return ks
}

func Test_ImportAndReload(t *testing.T) {
	store := memory.NewMemoryPersistence()
	ks := newTestKeystore(t, store, "hunter2")

	entry, err := ks.ImportString(testutil.SourceSecretKey, "walkthrough")
	require.NoError(t, err)
	assert.Equal(t, testutil.SourceAddress, entry.Address)
	assert.Equal(t, testutil.SourcePublicKey, entry.PublicKey)
	assert.Equal(t, "ed25519", entry.Curve)
	assert.Equal(t, "aes-128-ctr", entry.Crypto.Cipher)
	assert.NotEmpty(t, entry.ID)

	// a second keystore has an empty cache and must decrypt
	reloaded := newTestKeystore(t, store, "hunter2")
	kp, err := reloaded.GetKeyPair(context.Background(), testutil.MustAddress(t, testutil.SourceAddress))
	require.NoError(t, err)
	assert.Equal(t, testutil.SourceSecretKey, kp.Private.String())
	assert.Equal(t, testutil.SourcePublicKey, kp.Public.String())
}

func Test_GenerateAllCurves(t *testing.T) {
	store := memory.NewMemoryPersistence()
	ks := newTestKeystore(t, store, "pw")

	for _, curve := range []crypto.Curve{crypto.CurveEd25519, crypto.CurveSecp256k1, crypto.CurveP256} {
		t.Run(curve.String(), func(t *testing.T) {
			entry, err := ks.Generate(curve, "")
			require.NoError(t, err)

			addr := testutil.MustAddress(t, entry.Address)
			fresh := newTestKeystore(t, store, "pw")
			kp, err := fresh.GetKeyPair(context.Background(), addr)
			require.NoError(t, err)
			assert.Equal(t, curve, kp.Private.Curve)
			assert.Equal(t, entry.PublicKey, kp.Public.String())
		})
	}

	entries, err := ks.List()
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func Test_WrongPassword(t *testing.T) {
	store := memory.NewMemoryPersistence()
	_, err := newTestKeystore(t, store, "right").ImportString(testutil.SourceSecretKey, "")
	require.NoError(t, err)

	_, err = newTestKeystore(t, store, "wrong").GetKeyPair(context.Background(), testutil.MustAddress(t, testutil.SourceAddress))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWrongPassword))
}

func Test_DuplicateImport(t *testing.T) {
	ks := newTestKeystore(t, memory.NewMemoryPersistence(), "pw")
	_, err := ks.ImportString(testutil.SourceSecretKey, "")
	require.NoError(t, err)
	_, err = ks.ImportString(testutil.SourceSecretKey, "")
	assert.True(t, errors.Is(err, ErrKeyExists))
}

func Test_MissingKeyAndDelete(t *testing.T) {
	ks := newTestKeystore(t, memory.NewMemoryPersistence(), "pw")
	addr := testutil.MustAddress(t, testutil.SourceAddress)

	_, err := ks.GetKeyPair(context.Background(), addr)
	assert.True(t, errors.Is(err, operationSigner.ErrKeyNotFound))

	_, err = ks.ImportString(testutil.SourceSecretKey, "")
	require.NoError(t, err)
	require.NoError(t, ks.Delete(addr))
	_, err = ks.GetKeyPair(context.Background(), addr)
	assert.True(t, errors.Is(err, operationSigner.ErrKeyNotFound))
}

func Test_TamperedCiphertext(t *testing.T) {
	store := memory.NewMemoryPersistence()
	entry, err := newTestKeystore(t, store, "pw").ImportString(testutil.SourceSecretKey, "")
	require.NoError(t, err)

	flipped := "0"
	if entry.Crypto.CipherText[0] == '0' {
		flipped = "1"
	}
	entry.Crypto.CipherText = flipped + entry.Crypto.CipherText[1:]
	require.NoError(t, store.SaveKeyEntry(entry))

	// the MAC covers the ciphertext, so tampering looks like a bad password
	_, err = newTestKeystore(t, store, "pw").GetKeyPair(context.Background(), testutil.MustAddress(t, testutil.SourceAddress))
	assert.True(t, errors.Is(err, ErrWrongPassword))
}

func Test_KeystoreBacksLocalSigner(t *testing.T) {
	ks := newTestKeystore(t, memory.NewMemoryPersistence(), "pw")
	entry, err := ks.Generate(crypto.CurveSecp256k1, "")
	require.NoError(t, err)
	addr := testutil.MustAddress(t, entry.Address)

	d, err := operation.NewDelegationBuilder().
		Source(addr).
		Fee(400).
		Counter(1).
		GasLimit(1100).
		StorageLimit(0).
		Build()
	require.NoError(t, err)
	group, err := operation.NewOperationGroup(testutil.CreateTestBlockHash(3), d)
	require.NoError(t, err)
	forged, err := operation.Forge(group)
	require.NoError(t, err)

	signer := localSigner.NewLocalSigner(ks, zaptest.NewLogger(t))
	result, err := signer.SignOperation(context.Background(), forged, group)
	require.NoError(t, err)

	pk, err := crypto.ParsePublicKey(entry.PublicKey)
	require.NoError(t, err)
	assert.True(t, operationSigner.VerifyResult(pk, forged, result))
}

func Test_NewKeystoreValidation(t *testing.T) {
	_, err := NewKeystore(nil, &KeystoreConfig{Password: "pw"}, nil)
	assert.Error(t, err)
	_, err = NewKeystore(memory.NewMemoryPersistence(), &KeystoreConfig{}, nil)
	assert.Error(t, err)
	ks, err := NewKeystore(memory.NewMemoryPersistence(), &KeystoreConfig{Password: "pw"}, nil)
	require.NoError(t, err)
	assert.Equal(t, StandardScryptParams(), ks.params)
}
