package crypto

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Layr-Labs/tezos-client-go/pkg/encoding/base58check"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSource      = "tz1av5nBB8Jp6VZZDBdmGifRcETaYc7UkEnU"
	testDestination = "tz1cQbQUb1EcrEwCgTPPGdoWmixFzRArozYW"
	testPublicKey   = "edpktywJsAeturPxoFkDEerF6bi7N41ZnQyMrmNLQ3GZx2w6nn8eCZ"
	testSecretKey   = "edsk37Qf3bj5actYQj38hNnu5WtbYVw3Td7dxWQnV9XhrYeBYDuSty"
)

var allCurves = []Curve{CurveEd25519, CurveSecp256k1, CurveP256}

func Test_ParseKnownStrings(t *testing.T) {
	t.Run("addresses", func(t *testing.T) {
		for _, s := range []string{testSource, testDestination} {
			addr, err := ParseAddress(s)
			require.NoError(t, err)
			assert.Equal(t, AddressImplicitEd25519, addr.Kind)
			assert.True(t, addr.IsImplicit())
			assert.Equal(t, s, addr.String())
		}
	})
	t.Run("public key", func(t *testing.T) {
		pk, err := ParsePublicKey(testPublicKey)
		require.NoError(t, err)
		assert.Equal(t, CurveEd25519, pk.Curve)
		assert.Len(t, pk.Key, 32)
		assert.Equal(t, testPublicKey, pk.String())
	})
	t.Run("secret key", func(t *testing.T) {
		sk, err := ParsePrivateKey(testSecretKey)
		require.NoError(t, err)
		assert.Equal(t, CurveEd25519, sk.Curve)
		assert.Equal(t, testSecretKey, sk.String())
	})
}

func Test_ParseAddressErrors(t *testing.T) {
	corrupted := []byte(testSource)
	if corrupted[10] == 'a' {
		corrupted[10] = 'b'
	} else {
		corrupted[10] = 'a'
	}
	_, err := ParseAddress(string(corrupted))
	require.Error(t, err)
	assert.True(t, errors.Is(err, base58check.ErrChecksumMismatch))

	// a valid public key is not an address
	_, err = ParseAddress(testPublicKey)
	require.Error(t, err)
	var decodeErr *base58check.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, testPublicKey, decodeErr.Input)
}

func Test_AddressRoundTripAllKinds(t *testing.T) {
	kinds := []AddressKind{AddressImplicitEd25519, AddressImplicitSecp256k1, AddressImplicitP256, AddressOriginated}
	starts := []string{"tz1", "tz2", "tz3", "KT1"}
	for i, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			var hash [20]byte
			for j := range hash {
				hash[j] = byte(i*31 + j)
			}
			addr := Address{Kind: kind, Hash: hash}
			s := addr.String()
			assert.Equal(t, starts[i], s[:3])
			assert.Len(t, s, 36)

			parsed, err := ParseAddress(s)
			require.NoError(t, err)
			assert.Equal(t, addr, parsed)
		})
	}
}

func Test_AddressJSON(t *testing.T) {
	type wrapper struct {
		Source Address `json:"source"`
	}
	in := wrapper{Source: MustParseAddress(testSource)}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"`+testSource+`"}`, string(data))

	var out wrapper
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	_, err = json.Marshal(wrapper{})
	assert.Error(t, err)
}

func Test_GenerateSignVerify(t *testing.T) {
	digest := Blake2b256([]byte{0x03}, []byte("forged operation bytes"))

	for _, curve := range allCurves {
		t.Run(curve.String(), func(t *testing.T) {
			priv, err := GenerateKey(curve, nil)
			require.NoError(t, err)

			kp, err := NewKeyPair(priv)
			require.NoError(t, err)
			assert.True(t, kp.Address.IsImplicit())
			addrCurve, ok := kp.Address.Curve()
			require.True(t, ok)
			assert.Equal(t, curve, addrCurve)

			sig, err := priv.Sign(digest[:])
			require.NoError(t, err)
			assert.Len(t, sig.Bytes, SignatureLength)
			assert.True(t, kp.Public.Verify(digest[:], sig))

			other := Blake2b256([]byte("other"))
			assert.False(t, kp.Public.Verify(other[:], sig))

			// private key and public key survive the text encoding
			parsedPriv, err := ParsePrivateKey(priv.String())
			require.NoError(t, err)
			assert.Equal(t, priv, parsedPriv)

			parsedPub, err := ParsePublicKey(kp.Public.String())
			require.NoError(t, err)
			assert.True(t, kp.Public.Equal(parsedPub))

			parsedSig, err := ParseSignature(sig.String())
			require.NoError(t, err)
			assert.Equal(t, sig, parsedSig)
		})
	}
}

func Test_Secp256k1LowS(t *testing.T) {
	priv, err := GenerateKey(CurveSecp256k1, nil)
	require.NoError(t, err)
	for i := 0; i < 16; i++ {
		digest := Blake2b256([]byte{byte(i)})
		sig, err := priv.Sign(digest[:])
		require.NoError(t, err)
		// the top bit of a low-S value is always clear
		assert.Zero(t, sig.Bytes[32]&0x80)
	}
}

func Test_Ed25519ExpandedSecret(t *testing.T) {
	priv, err := ParsePrivateKey(testSecretKey)
	require.NoError(t, err)

	expanded := ed25519.NewKeyFromSeed(priv.Key)
	encoded := base58check.MustEncode(PrefixEdskSecret, expanded)

	parsed, err := ParsePrivateKey(encoded)
	require.NoError(t, err)
	assert.Equal(t, priv, parsed)

	tampered := append([]byte{}, expanded...)
	tampered[40] ^= 0x01
	_, err = ParsePrivateKey(base58check.MustEncode(PrefixEdskSecret, tampered))
	assert.True(t, errors.Is(err, ErrInvalidKey))
}

func Test_GenericSignature(t *testing.T) {
	raw := make([]byte, SignatureLength)
	raw[0] = 0x42
	generic := base58check.MustEncode(PrefixGeneric, raw)

	sig, err := ParseSignature(generic)
	require.NoError(t, err)
	assert.Equal(t, CurveUnknown, sig.Curve)
	assert.Equal(t, generic, sig.String())
	assert.True(t, sig.Equal(Signature{Curve: CurveEd25519, Bytes: raw}))
}

func Test_Curves(t *testing.T) {
	for _, curve := range allCurves {
		tag, err := curve.Tag()
		require.NoError(t, err)
		back, err := CurveFromTag(tag)
		require.NoError(t, err)
		assert.Equal(t, curve, back)

		parsed, err := ParseCurve(curve.String())
		require.NoError(t, err)
		assert.Equal(t, curve, parsed)
	}
	_, err := CurveFromTag(9)
	assert.True(t, errors.Is(err, ErrUnsupportedCurve))
	_, err = ParseCurve("bls")
	assert.True(t, errors.Is(err, ErrUnsupportedCurve))
}

func Test_Hashes(t *testing.T) {
	var raw [32]byte
	for i := range raw {
		raw[i] = byte(i)
	}

	block := BlockHash(raw)
	parsedBlock, err := ParseBlockHash(block.String())
	require.NoError(t, err)
	assert.Equal(t, block, parsedBlock)
	assert.Equal(t, "B", block.String()[:1])

	op := OperationHashOf([]byte("signed"))
	assert.Equal(t, "o", op.String()[:1])
	assert.Len(t, op.String(), 51)
	parsedOp, err := ParseOperationHash(op.String())
	require.NoError(t, err)
	assert.Equal(t, op, parsedOp)

	chain, err := ParseChainID("NetXdQprcVkpaWU")
	require.NoError(t, err)
	assert.Equal(t, "NetXdQprcVkpaWU", chain.String())

	_, err = ParseBlockHash(op.String())
	assert.True(t, errors.Is(err, base58check.ErrUnknownPrefix))
}

func Test_InvalidPublicKeys(t *testing.T) {
	_, err := NewPublicKey(CurveSecp256k1, make([]byte, 33))
	assert.True(t, errors.Is(err, ErrInvalidKey))
	_, err = NewPublicKey(CurveP256, make([]byte, 33))
	assert.True(t, errors.Is(err, ErrInvalidKey))
	_, err = NewPublicKey(CurveEd25519, make([]byte, 31))
	assert.True(t, errors.Is(err, ErrInvalidKey))
}

func FuzzParseAddress(f *testing.F) {
	f.Add(testSource)
	f.Add(testDestination)
	f.Add("KT1")

	f.Fuzz(func(t *testing.T, s string) {
		addr, err := ParseAddress(s)
		if err != nil {
			return
		}
		if addr.String() != s {
			t.Fatalf("re-encoding %q gave %q", s, addr.String())
		}
	})
}
