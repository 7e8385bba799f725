// Package keys manages custodial wallet keys for contributors who have not
// linked their own payout address. Private keys are encrypted at rest with
// AES-256-GCM under a per-login key derived from the service master key.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/hkdf"
)

// WalletKey is a freshly generated custodial payout account.
type WalletKey struct {
	Address    string // 0x-prefixed EIP-55 address
	PrivateKey []byte // 32-byte secp256k1 private key
}

// GenerateWalletKey generates a new secp256k1 keypair and derives its
// Ethereum address.
func GenerateWalletKey() (*WalletKey, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secp256k1 keypair: %w", err)
	}

	return &WalletKey{
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
		PrivateKey: crypto.FromECDSA(privateKey),
	}, nil
}

// Cipher encrypts and decrypts custodial private keys. Each login gets its
// own AES key derived from the master key via HKDF, so a leaked per-wallet
// key does not expose the rest.
type Cipher struct {
	masterKey []byte
}

// NewCipher creates a Cipher from a 32-byte master key.
func NewCipher(masterKey []byte) (*Cipher, error) {
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes (AES-256)")
	}
	return &Cipher{masterKey: masterKey}, nil
}

// derive produces the per-login AES-256 key. The login is bound into the
// HKDF info so ciphertexts cannot be swapped between wallet rows.
func (c *Cipher) derive(login string) ([]byte, error) {
	info := []byte("wallet-key-" + login)
	hkdfReader := hkdf.New(sha256.New, c.masterKey, nil, info)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, fmt.Errorf("failed to derive wallet key: %w", err)
	}
	return key, nil
}

// EncryptPrivateKey encrypts a 32-byte private key for the given login.
// Returns base64(nonce || ciphertext || tag).
func (c *Cipher) EncryptPrivateKey(login string, privateKey []byte) (string, error) {
	if len(privateKey) != 32 {
		return "", fmt.Errorf("private key must be 32 bytes (secp256k1)")
	}

	derived, err := c.derive(login)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return "", fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, privateKey, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptPrivateKey decrypts a key previously produced by EncryptPrivateKey
// for the same login.
func (c *Cipher) DecryptPrivateKey(login, encrypted string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	derived, err := c.derive(login)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	if len(plaintext) != 32 {
		return nil, fmt.Errorf("decrypted key has wrong size: got %d, want 32", len(plaintext))
	}

	return plaintext, nil
}

// GenerateMasterKey generates a new random 32-byte master key.
// Store it securely (environment variable, secrets manager).
func GenerateMasterKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	return key, nil
}

// MasterKeyFromBase64 decodes a base64-encoded master key
func MasterKeyFromBase64(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode master key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// MasterKeyToBase64 encodes a master key as base64 for storage
func MasterKeyToBase64(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}
