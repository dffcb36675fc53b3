package awsKms

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/tezos-client-go/internal/keyGenerator"
	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner/awsKmsSigner"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// KMSAPI is the subset of the KMS client needed to create and inspect keys.
type KMSAPI interface {
	awsKmsSigner.KMSAPI
	CreateKey(ctx context.Context, params *kms.CreateKeyInput, optFns ...func(*kms.Options)) (*kms.CreateKeyOutput, error)
	CreateAlias(ctx context.Context, params *kms.CreateAliasInput, optFns ...func(*kms.Options)) (*kms.CreateAliasOutput, error)
}

// AWSKMSKeyGenerator creates asymmetric KMS keys usable by the kms signer.
type AWSKMSKeyGenerator struct {
	logger      *zap.Logger
	kmsClient   KMSAPI
	environment string
}

var _ keyGenerator.IKeyGenerator = (*AWSKMSKeyGenerator)(nil)

func NewAWSKMSKeyGeneratorFromConfig(awsCfg aws.Config, environment string, logger *zap.Logger) *AWSKMSKeyGenerator {
	return NewAWSKMSKeyGenerator(kms.NewFromConfig(awsCfg), environment, logger)
}

func NewAWSKMSKeyGenerator(client KMSAPI, environment string, logger *zap.Logger) *AWSKMSKeyGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AWSKMSKeyGenerator{logger: logger, kmsClient: client, environment: environment}
}

// keySpec maps a curve to the KMS key spec. KMS has no ed25519 signing keys
// usable for tz1 accounts.
func keySpec(curve crypto.Curve) (types.KeySpec, error) {
	switch curve {
	case crypto.CurveSecp256k1:
		return types.KeySpecEccSecgP256k1, nil
	case crypto.CurveP256:
		return types.KeySpecEccNistP256, nil
	default:
		return "", fmt.Errorf("kms does not support %s keys", curve)
	}
}

func (a *AWSKMSKeyGenerator) GenerateKey(ctx context.Context, curve crypto.Curve, name string, alias string) (*keyGenerator.GeneratedKey, error) {
	spec, err := keySpec(curve)
	if err != nil {
		return nil, err
	}
	keyRes, err := a.createSigningKey(ctx, spec, curve, name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s key %s", curve, name)
	}
	keyID := aws.ToString(keyRes.KeyMetadata.KeyId)

	if alias != "" {
		if err := a.createKeyAlias(ctx, keyID, alias); err != nil {
			return nil, errors.Wrapf(err, "failed to create alias %s for key %s", alias, keyID)
		}
	}

	key, err := a.GetKeyByID(ctx, keyID)
	if err != nil {
		return nil, err
	}
	key.Alias = alias
	a.logger.Sugar().Infow("Created KMS signing key",
		"keyId", keyID,
		"alias", alias,
		"address", key.Address.String(),
	)
	return key, nil
}

// GetKeyByID resolves the Tezos account of an existing KMS key.
func (a *AWSKMSKeyGenerator) GetKeyByID(ctx context.Context, keyID string) (*keyGenerator.GeneratedKey, error) {
	signer, err := awsKmsSigner.NewAWSKMSSigner(a.kmsClient, keyID, a.logger)
	if err != nil {
		return nil, err
	}
	addr, err := signer.Address(ctx)
	if err != nil {
		return nil, err
	}
	pk, err := signer.PublicKey(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &keyGenerator.GeneratedKey{KeyID: keyID, PublicKey: pk, Address: addr}, nil
}

func (a *AWSKMSKeyGenerator) createSigningKey(ctx context.Context, spec types.KeySpec, curve crypto.Curve, name string) (*kms.CreateKeyOutput, error) {
	input := &kms.CreateKeyInput{
		KeyUsage:    types.KeyUsageTypeSignVerify,
		KeySpec:     spec,
		Description: aws.String(fmt.Sprintf("Tezos operation signing key - %s", name)),
		Tags: []types.Tag{
			{TagKey: aws.String("Name"), TagValue: aws.String(name)},
			{TagKey: aws.String("Environment"), TagValue: aws.String(a.environment)},
			{TagKey: aws.String("Purpose"), TagValue: aws.String("signing-key")},
			{TagKey: aws.String("Curve"), TagValue: aws.String(curve.String())},
		},
	}

	result, err := a.kmsClient.CreateKey(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create KMS key: %w", err)
	}
	if result.KeyMetadata == nil || result.KeyMetadata.KeyId == nil {
		return nil, errors.New("kms returned no key id")
	}
	return result, nil
}

func (a *AWSKMSKeyGenerator) createKeyAlias(ctx context.Context, keyID, alias string) error {
	_, err := a.kmsClient.CreateAlias(ctx, &kms.CreateAliasInput{
		AliasName:   aws.String(fmt.Sprintf("alias/%s", alias)),
		TargetKeyId: aws.String(keyID),
	})
	if err != nil {
		return fmt.Errorf("failed to create key alias: %w", err)
	}
	return nil
}
