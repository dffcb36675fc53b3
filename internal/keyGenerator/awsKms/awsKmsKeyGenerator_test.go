package awsKms

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type subjectPublicKeyInfo struct {
	Algorithm struct {
		Algorithm  asn1.ObjectIdentifier
		Parameters asn1.ObjectIdentifier
	}
	PublicKey asn1.BitString
}

// fakeKMS creates real keys in memory, one per CreateKey call.
type fakeKMS struct {
	keys      map[string]*ecdsa.PrivateKey
	specs     map[string]types.KeySpec
	aliases   map[string]string
	created   []*kms.CreateKeyInput
	createErr error
	aliasErr  error
}

func newFakeKMS() *fakeKMS {
	return &fakeKMS{
		keys:    map[string]*ecdsa.PrivateKey{},
		specs:   map[string]types.KeySpec{},
		aliases: map[string]string{},
	}
}

func (f *fakeKMS) CreateKey(_ context.Context, in *kms.CreateKeyInput, _ ...func(*kms.Options)) (*kms.CreateKeyOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, in)
	var (
		priv *ecdsa.PrivateKey
		err  error
	)
	switch in.KeySpec {
	case types.KeySpecEccSecgP256k1:
		priv, err = ethcrypto.GenerateKey()
	case types.KeySpecEccNistP256:
		priv, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	default:
		err = fmt.Errorf("unexpected key spec %s", in.KeySpec)
	}
	if err != nil {
		return nil, err
	}
	id := fmt.Sprintf("key-%d", len(f.keys)+1)
	f.keys[id] = priv
	f.specs[id] = in.KeySpec
	return &kms.CreateKeyOutput{KeyMetadata: &types.KeyMetadata{KeyId: aws.String(id)}}, nil
}

func (f *fakeKMS) CreateAlias(_ context.Context, in *kms.CreateAliasInput, _ ...func(*kms.Options)) (*kms.CreateAliasOutput, error) {
	if f.aliasErr != nil {
		return nil, f.aliasErr
	}
	f.aliases[aws.ToString(in.AliasName)] = aws.ToString(in.TargetKeyId)
	return &kms.CreateAliasOutput{}, nil
}

func (f *fakeKMS) GetPublicKey(_ context.Context, in *kms.GetPublicKeyInput, _ ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	id := aws.ToString(in.KeyId)
	if target, ok := f.aliases[id]; ok {
		id = target
	}
	priv, ok := f.keys[id]
	if !ok {
		return nil, errors.New("NotFoundException")
	}
	if f.specs[id] == types.KeySpecEccNistP256 {
		der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
		return &kms.GetPublicKeyOutput{PublicKey: der}, err
	}
	var info subjectPublicKeyInfo
	info.Algorithm.Algorithm = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	info.Algorithm.Parameters = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
	point := ethcrypto.FromECDSAPub(&priv.PublicKey)
	info.PublicKey = asn1.BitString{Bytes: point, BitLength: len(point) * 8}
	der, err := asn1.Marshal(info)
	return &kms.GetPublicKeyOutput{PublicKey: der}, err
}

func (f *fakeKMS) Sign(context.Context, *kms.SignInput, ...func(*kms.Options)) (*kms.SignOutput, error) {
	return nil, errors.New("not used")
}

func Test_AWSKMSKeyGenerator_GenerateKey(t *testing.T) {
	tests := []struct {
		curve  crypto.Curve
		spec   types.KeySpec
		prefix string
	}{
		{crypto.CurveSecp256k1, types.KeySpecEccSecgP256k1, "tz2"},
		{crypto.CurveP256, types.KeySpecEccNistP256, "tz3"},
	}
	for _, tt := range tests {
		t.Run(tt.curve.String(), func(t *testing.T) {
			fake := newFakeKMS()
			gen := NewAWSKMSKeyGenerator(fake, "ghostnet", zaptest.NewLogger(t))

			key, err := gen.GenerateKey(context.Background(), tt.curve, "baker", "baker-key")
			require.NoError(t, err)
			assert.Equal(t, "key-1", key.KeyID)
			assert.Equal(t, "baker-key", key.Alias)
			assert.Equal(t, tt.curve, key.Curve())
			assert.True(t, strings.HasPrefix(key.Address.String(), tt.prefix), key.Address.String())

			want, err := key.PublicKey.Hash()
			require.NoError(t, err)
			assert.Equal(t, want, key.Address)

			require.Len(t, fake.created, 1)
			assert.Equal(t, tt.spec, fake.created[0].KeySpec)
			assert.Equal(t, types.KeyUsageTypeSignVerify, fake.created[0].KeyUsage)
			assert.Equal(t, "key-1", fake.aliases["alias/baker-key"])

			byAlias, err := gen.GetKeyByID(context.Background(), "alias/baker-key")
			require.NoError(t, err)
			assert.Equal(t, key.Address, byAlias.Address)
		})
	}
}

func Test_AWSKMSKeyGenerator_Tags(t *testing.T) {
	fake := newFakeKMS()
	gen := NewAWSKMSKeyGenerator(fake, "mainnet", nil)

	_, err := gen.GenerateKey(context.Background(), crypto.CurveP256, "payouts", "")
	require.NoError(t, err)
	assert.Empty(t, fake.aliases)

	tags := map[string]string{}
	for _, tag := range fake.created[0].Tags {
		tags[aws.ToString(tag.TagKey)] = aws.ToString(tag.TagValue)
	}
	assert.Equal(t, map[string]string{
		"Name":        "payouts",
		"Environment": "mainnet",
		"Purpose":     "signing-key",
		"Curve":       "p256",
	}, tags)
}

func Test_AWSKMSKeyGenerator_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("ed25519 is not available in kms", func(t *testing.T) {
		fake := newFakeKMS()
		_, err := NewAWSKMSKeyGenerator(fake, "sandbox", nil).GenerateKey(ctx, crypto.CurveEd25519, "k", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ed25519")
		assert.Empty(t, fake.created)
	})

	t.Run("create failure", func(t *testing.T) {
		fake := newFakeKMS()
		fake.createErr = errors.New("AccessDeniedException")
		_, err := NewAWSKMSKeyGenerator(fake, "sandbox", nil).GenerateKey(ctx, crypto.CurveP256, "k", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AccessDeniedException")
	})

	t.Run("alias failure", func(t *testing.T) {
		fake := newFakeKMS()
		fake.aliasErr = errors.New("AlreadyExistsException")
		_, err := NewAWSKMSKeyGenerator(fake, "sandbox", nil).GenerateKey(ctx, crypto.CurveP256, "k", "taken")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "alias taken")
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := NewAWSKMSKeyGenerator(newFakeKMS(), "sandbox", nil).GetKeyByID(ctx, "missing")
		assert.Error(t, err)
	})
}
