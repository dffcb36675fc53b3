package awsKmsSigner

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/asn1"
	"math/big"
	"sync"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/operation"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	oidNamedCurveSecp256k1 = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
	oidNamedCurveP256      = asn1.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}
)

// KMSAPI is the subset of the KMS client the signer calls.
type KMSAPI interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

// AWSKMSSigner signs with an asymmetric KMS key. ECC_SECG_P256K1 keys control
// tz2 accounts, ECC_NIST_P256 keys control tz3 accounts.
type AWSKMSSigner struct {
	client KMSAPI
	keyID  string
	logger *zap.Logger

	mu        sync.Mutex
	publicKey *crypto.PublicKey
	address   crypto.Address
}

var _ operationSigner.IOperationSigner = (*AWSKMSSigner)(nil)

func NewAWSKMSSignerFromConfig(awsCfg aws.Config, keyID string, logger *zap.Logger) (*AWSKMSSigner, error) {
	return NewAWSKMSSigner(kms.NewFromConfig(awsCfg), keyID, logger)
}

func NewAWSKMSSigner(client KMSAPI, keyID string, logger *zap.Logger) (*AWSKMSSigner, error) {
	if client == nil {
		return nil, errors.New("kms client is required")
	}
	if keyID == "" {
		return nil, errors.New("kms key id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AWSKMSSigner{client: client, keyID: keyID, logger: logger}, nil
}

// loadPublicKey fetches and caches the KMS key. Caller holds mu.
func (s *AWSKMSSigner) loadPublicKey(ctx context.Context) (crypto.PublicKey, error) {
	if s.publicKey != nil {
		return *s.publicKey, nil
	}
	out, err := s.client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(s.keyID)})
	if err != nil {
		return crypto.PublicKey{}, operationSigner.NewSignerError(operationSigner.RemoteError, s.address,
			errors.Wrapf(err, "failed to get public key for kms key %s", s.keyID))
	}
	pk, err := parsePublicKey(out.PublicKey)
	if err != nil {
		return crypto.PublicKey{}, operationSigner.NewSignerError(operationSigner.RemoteError, s.address,
			errors.Wrapf(err, "failed to parse public key for kms key %s", s.keyID))
	}
	addr, err := pk.Hash()
	if err != nil {
		return crypto.PublicKey{}, err
	}
	s.publicKey = &pk
	s.address = addr
	s.logger.Sugar().Infow("Loaded KMS signing key", "keyId", s.keyID, "address", addr.String())
	return pk, nil
}

// Address returns the account controlled by the KMS key.
func (s *AWSKMSSigner) Address(ctx context.Context) (crypto.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.loadPublicKey(ctx); err != nil {
		return crypto.Address{}, err
	}
	return s.address, nil
}

func (s *AWSKMSSigner) PublicKey(ctx context.Context, source crypto.Address) (crypto.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pk, err := s.loadPublicKey(ctx)
	if err != nil {
		return crypto.PublicKey{}, err
	}
	if source != s.address {
		return crypto.PublicKey{}, operationSigner.NewSignerError(operationSigner.NoKeyForAddress, source, nil)
	}
	return pk, nil
}

func (s *AWSKMSSigner) SignOperation(
	ctx context.Context,
	forged []byte,
	group *operation.OperationGroup,
) (*operationSigner.SignedOperationResult, error) {
	if err := group.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid operation group")
	}
	source := group.Source()

	s.mu.Lock()
	pk, err := s.loadPublicKey(ctx)
	addr := s.address
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if source != addr {
		return nil, operationSigner.NewSignerError(operationSigner.NoKeyForAddress, source,
			errors.Errorf("kms key %s controls %s", s.keyID, addr))
	}

	digest := operationSigner.OperationDigest(forged)
	out, err := s.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyID),
		Message:          digest[:],
		MessageType:      types.MessageTypeDigest,
		SigningAlgorithm: types.SigningAlgorithmSpecEcdsaSha256,
	})
	if err != nil {
		return nil, operationSigner.NewSignerError(operationSigner.RemoteError, source,
			errors.Wrapf(err, "kms sign with key %s", s.keyID))
	}

	sig, err := derToSignature(pk.Curve, out.Signature)
	if err != nil {
		return nil, operationSigner.NewSignerError(operationSigner.RemoteError, source, err)
	}
	if !pk.Verify(digest[:], sig) {
		return nil, operationSigner.NewSignerError(operationSigner.KeyMismatch, source,
			errors.New("kms signature does not verify"))
	}

	result, err := operationSigner.NewSignedOperationResult(forged, sig)
	if err != nil {
		return nil, err
	}
	s.logger.Sugar().Debugw("Signed operation with KMS",
		"source", source.String(),
		"keyId", s.keyID,
		"operationHash", result.OperationHash().String(),
	)
	return result, nil
}

type asn1EcSig struct {
	R *big.Int
	S *big.Int
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

// parsePublicKey reads the DER SubjectPublicKeyInfo returned by GetPublicKey.
func parsePublicKey(der []byte) (crypto.PublicKey, error) {
	var info asn1EcPublicKey
	if _, err := asn1.Unmarshal(der, &info); err != nil {
		return crypto.PublicKey{}, errors.Wrap(err, "failed to parse ASN.1 public key")
	}

	switch {
	case info.EcPublicKeyInfo.Parameters.Equal(oidNamedCurveSecp256k1):
		pub, err := ethcrypto.UnmarshalPubkey(info.PublicKey.Bytes)
		if err != nil {
			return crypto.PublicKey{}, errors.Wrap(err, "invalid secp256k1 point")
		}
		return crypto.NewPublicKey(crypto.CurveSecp256k1, ethcrypto.CompressPubkey(pub))
	case info.EcPublicKeyInfo.Parameters.Equal(oidNamedCurveP256):
		parsed, err := x509.ParsePKIXPublicKey(der)
		if err != nil {
			return crypto.PublicKey{}, errors.Wrap(err, "invalid p256 public key")
		}
		pub, ok := parsed.(*ecdsa.PublicKey)
		if !ok {
			return crypto.PublicKey{}, errors.Errorf("unexpected key type %T", parsed)
		}
		return crypto.NewPublicKey(crypto.CurveP256, elliptic.MarshalCompressed(elliptic.P256(), pub.X, pub.Y))
	}
	return crypto.PublicKey{}, errors.Errorf("unsupported key curve %s", info.EcPublicKeyInfo.Parameters)
}

// derToSignature converts a DER ECDSA signature into 64 byte r||s form with
// s in the lower half of the curve order.
func derToSignature(curve crypto.Curve, der []byte) (crypto.Signature, error) {
	var sig asn1EcSig
	rest, err := asn1.Unmarshal(der, &sig)
	if err != nil {
		return crypto.Signature{}, errors.Wrap(err, "failed to parse DER signature")
	}
	if len(rest) != 0 {
		return crypto.Signature{}, errors.New("trailing bytes after DER signature")
	}
	if sig.R == nil || sig.S == nil || sig.R.Sign() <= 0 || sig.S.Sign() <= 0 {
		return crypto.Signature{}, errors.New("DER signature has non-positive component")
	}

	var n *big.Int
	switch curve {
	case crypto.CurveSecp256k1:
		n = ethcrypto.S256().Params().N
	case crypto.CurveP256:
		n = elliptic.P256().Params().N
	default:
		return crypto.Signature{}, errors.Errorf("kms cannot sign for curve %s", curve)
	}
	if sig.R.Cmp(n) >= 0 || sig.S.Cmp(n) >= 0 {
		return crypto.Signature{}, errors.New("DER signature component exceeds curve order")
	}
	return crypto.Signature{Curve: curve, Bytes: crypto.RSToSignature(sig.R, sig.S, n)}, nil
}
