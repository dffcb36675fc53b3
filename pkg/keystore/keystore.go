package keystore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner/localSigner"
	"github.com/Layr-Labs/tezos-client-go/pkg/persistence"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/scrypt"
)

const (
	cipherName = "aes-128-ctr"
	kdfName    = "scrypt"

	saltLength = 32
	ivLength   = aes.BlockSize
	// first half keys AES-128, second half keys the MAC
	derivedKeyLength = 32
)

var (
	ErrWrongPassword = errors.New("wrong keystore password")
	ErrKeyExists     = errors.New("key already stored for address")
)

type ScryptParams struct {
	N int
	R int
	P int
}

// StandardScryptParams costs roughly a second and 256MB per derivation.
func StandardScryptParams() ScryptParams { return ScryptParams{N: 1 << 18, R: 8, P: 1} }

// LightScryptParams is for tests and throwaway development keys.
func LightScryptParams() ScryptParams { return ScryptParams{N: 1 << 12, R: 8, P: 1} }

type KeystoreConfig struct {
	Password string
	Scrypt   ScryptParams
}

// Keystore keeps private keys encrypted in persistence and decrypts them on
// demand. Decrypted pairs are cached for the lifetime of the keystore.
type Keystore struct {
	store    persistence.IClientPersistence
	password []byte
	params   ScryptParams
	logger   *zap.Logger

	mu    sync.Mutex
	cache map[crypto.Address]*crypto.KeyPair
}

var _ localSigner.IKeyPairLookup = (*Keystore)(nil)

func NewKeystore(store persistence.IClientPersistence, cfg *KeystoreConfig, logger *zap.Logger) (*Keystore, error) {
	if store == nil {
		return nil, errors.New("persistence cannot be nil")
	}
	if cfg == nil || cfg.Password == "" {
		return nil, errors.New("keystore password is required")
	}
	params := cfg.Scrypt
	if params.N == 0 {
		params = StandardScryptParams()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Keystore{
		store:    store,
		password: []byte(cfg.Password),
		params:   params,
		logger:   logger,
		cache:    make(map[crypto.Address]*crypto.KeyPair),
	}, nil
}

// Import stores priv. It fails with ErrKeyExists if the address already
// has an entry.
func (k *Keystore) Import(priv crypto.PrivateKey, label string) (*persistence.KeyEntry, error) {
	kp, err := crypto.NewKeyPair(priv)
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}

	existing, err := k.store.LoadKeyEntry(kp.Address.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to check existing key")
	}
	if existing != nil {
		return nil, errors.Wrapf(ErrKeyExists, "%s", kp.Address)
	}

	sealed, err := k.seal(priv.Key)
	if err != nil {
		return nil, err
	}
	entry := &persistence.KeyEntry{
		ID:        uuid.NewString(),
		Address:   kp.Address.String(),
		Curve:     priv.Curve.String(),
		PublicKey: kp.Public.String(),
		Label:     label,
		Crypto:    *sealed,
		CreatedAt: time.Now().Unix(),
	}
	if err := k.store.SaveKeyEntry(entry); err != nil {
		return nil, errors.Wrap(err, "failed to save key entry")
	}

	k.mu.Lock()
	k.cache[kp.Address] = kp
	k.mu.Unlock()

	k.logger.Sugar().Infow("Imported key", "address", entry.Address, "curve", entry.Curve)
	return entry, nil
}

// ImportString imports a base58 encoded secret key (edsk, spsk or p2sk).
func (k *Keystore) ImportString(secret string, label string) (*persistence.KeyEntry, error) {
	priv, err := crypto.ParsePrivateKey(secret)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse secret key")
	}
	return k.Import(priv, label)
}

// Generate creates and stores a fresh key on curve.
func (k *Keystore) Generate(curve crypto.Curve, label string) (*persistence.KeyEntry, error) {
	priv, err := crypto.GenerateKey(curve, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to generate %s key", curve)
	}
	return k.Import(priv, label)
}

// GetKeyPair decrypts the key controlling address.
func (k *Keystore) GetKeyPair(_ context.Context, address crypto.Address) (*crypto.KeyPair, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if kp, ok := k.cache[address]; ok {
		return kp, nil
	}

	entry, err := k.store.LoadKeyEntry(address.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load key entry")
	}
	if entry == nil {
		return nil, errors.Wrapf(operationSigner.ErrKeyNotFound, "%s", address)
	}

	curve, err := crypto.ParseCurve(entry.Curve)
	if err != nil {
		return nil, errors.Wrapf(err, "key entry %s", entry.ID)
	}
	raw, err := k.open(&entry.Crypto)
	if err != nil {
		return nil, errors.Wrapf(err, "key entry %s", entry.ID)
	}
	priv, err := crypto.NewPrivateKey(curve, raw)
	clear(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "key entry %s", entry.ID)
	}
	kp, err := crypto.NewKeyPair(priv)
	if err != nil {
		return nil, errors.Wrapf(err, "key entry %s", entry.ID)
	}
	if kp.Address != address {
		return nil, errors.Errorf("key entry %s decrypts to %s, not %s", entry.ID, kp.Address, address)
	}

	k.cache[address] = kp
	return kp, nil
}

// List returns the stored entries without decrypting them.
func (k *Keystore) List() ([]*persistence.KeyEntry, error) {
	entries, err := k.store.ListKeyEntries()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list key entries")
	}
	return entries, nil
}

func (k *Keystore) Delete(address crypto.Address) error {
	k.mu.Lock()
	if kp, ok := k.cache[address]; ok {
		kp.Private.Zero()
		delete(k.cache, address)
	}
	k.mu.Unlock()

	if err := k.store.DeleteKeyEntry(address.String()); err != nil {
		return errors.Wrap(err, "failed to delete key entry")
	}
	return nil
}

func (k *Keystore) seal(plaintext []byte) (*persistence.EncryptedKey, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "failed to generate salt")
	}
	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return nil, errors.Wrap(err, "failed to generate IV")
	}

	derived, err := scrypt.Key(k.password, salt, k.params.N, k.params.R, k.params.P, derivedKeyLength)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive key")
	}
	ciphertext, err := aesCTR(derived[:16], iv, plaintext)
	if err != nil {
		return nil, err
	}

	return &persistence.EncryptedKey{
		Cipher:     cipherName,
		CipherText: hex.EncodeToString(ciphertext),
		IV:         hex.EncodeToString(iv),
		KDF:        kdfName,
		ScryptN:    k.params.N,
		ScryptR:    k.params.R,
		ScryptP:    k.params.P,
		DKLen:      derivedKeyLength,
		Salt:       hex.EncodeToString(salt),
		MAC:        hex.EncodeToString(mac(derived[16:], ciphertext)),
	}, nil
}

func (k *Keystore) open(sealed *persistence.EncryptedKey) ([]byte, error) {
	if sealed.Cipher != cipherName || sealed.KDF != kdfName {
		return nil, errors.Errorf("unsupported cipher %q or kdf %q", sealed.Cipher, sealed.KDF)
	}
	if sealed.DKLen != derivedKeyLength {
		return nil, errors.Errorf("unsupported derived key length %d", sealed.DKLen)
	}

	salt, err := hex.DecodeString(sealed.Salt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode salt")
	}
	iv, err := hex.DecodeString(sealed.IV)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode IV")
	}
	ciphertext, err := hex.DecodeString(sealed.CipherText)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode ciphertext")
	}
	expected, err := hex.DecodeString(sealed.MAC)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode MAC")
	}

	derived, err := scrypt.Key(k.password, salt, sealed.ScryptN, sealed.ScryptR, sealed.ScryptP, sealed.DKLen)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive key")
	}
	if subtle.ConstantTimeCompare(mac(derived[16:], ciphertext), expected) != 1 {
		return nil, ErrWrongPassword
	}
	return aesCTR(derived[:16], iv, ciphertext)
}

func aesCTR(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("invalid IV length %d", len(iv))
	}
	out := make([]byte, len(data))
	cipher.NewCTR(block, iv).XORKeyStream(out, data)
	return out, nil
}

func mac(key, ciphertext []byte) []byte {
	h := sha256.New()
	h.Write(key)
	h.Write(ciphertext)
	return h.Sum(nil)
}
