// Package cryptox implements the client-side cryptography for Whisperline
// messaging: per-message AES-GCM encryption with the symmetric key wrapped
// under RSA-OAEP for both recipient and sender, PEM key handling, and
// passphrase-based sealing of the local identity.
//
// The server never calls into the message functions; it relays opaque
// base64 fields only.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	messageKeySize = 32
	gcmNonceSize   = 12
)

// SealedPacket holds the encrypted form of one message, all fields base64
// encoded, matching the wire shape relayed by the server.
type SealedPacket struct {
	IVB64         string
	CiphertextB64 string
	KeyToB64      string
	KeyFromB64    string
}

// GenerateIdentity creates a fresh RSA-2048 keypair.
func GenerateIdentity() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, 2048)
}

// EncodePublicKeyPEM renders pub as a PKIX "PUBLIC KEY" PEM block.
func EncodePublicKeyPEM(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	b := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return string(b), nil
}

// DecodePublicKeyPEM parses a PKIX "PUBLIC KEY" PEM block into an RSA key.
func DecodePublicKeyPEM(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, errors.New("no PUBLIC KEY block found")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return rsaKey, nil
}

// Fingerprint returns the lowercase hex SHA-256 of the PEM string bytes.
// The directory service computes the same value server-side, so both ends
// can compare fingerprints out of band.
func Fingerprint(pubPEM string) string {
	sum := sha256.Sum256([]byte(pubPEM))
	return hex.EncodeToString(sum[:])
}

// SealMessage encrypts plaintext with a fresh AES-256-GCM key and wraps that
// key under RSA-OAEP for the recipient and separately for the sender, so the
// sender can re-open their own history later.
func SealMessage(plaintext []byte, recipient, sender *rsa.PublicKey) (*SealedPacket, error) {
	key := make([]byte, messageKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}

	iv := make([]byte, gcmNonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	ciphertext := aesgcm.Seal(nil, iv, plaintext, nil)

	keyTo, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, recipient, key, nil)
	if err != nil {
		return nil, fmt.Errorf("wrap key for recipient: %w", err)
	}
	keyFrom, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, sender, key, nil)
	if err != nil {
		return nil, fmt.Errorf("wrap key for sender: %w", err)
	}

	return &SealedPacket{
		IVB64:         base64.StdEncoding.EncodeToString(iv),
		CiphertextB64: base64.StdEncoding.EncodeToString(ciphertext),
		KeyToB64:      base64.StdEncoding.EncodeToString(keyTo),
		KeyFromB64:    base64.StdEncoding.EncodeToString(keyFrom),
	}, nil
}

// OpenMessage unwraps the AES key with priv and decrypts the ciphertext.
// The caller picks wrappedKeyB64 depending on whether it is the recipient
// (enc_key_to_b64) or the original sender (enc_key_from_b64).
func OpenMessage(ivB64, ciphertextB64, wrappedKeyB64 string, priv *rsa.PrivateKey) ([]byte, error) {
	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil {
		return nil, fmt.Errorf("decode iv: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	wrapped, err := base64.StdEncoding.DecodeString(wrappedKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode wrapped key: %w", err)
	}

	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, nil)
	if err != nil {
		return nil, fmt.Errorf("unwrap key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(iv) != aesgcm.NonceSize() {
		return nil, errors.New("bad iv length")
	}
	plaintext, err := aesgcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// DeriveKeystoreKey stretches a passphrase into a 32-byte AES key with
// argon2id. Parameters match the interactive profile used elsewhere in the
// project history.
func DeriveKeystoreKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, messageKeySize)
}

// SealBytes encrypts raw bytes with AES-GCM under key, returning ciphertext
// and the random nonce. Used to protect the identity file at rest.
func SealBytes(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// OpenBytes reverses SealBytes.
func OpenBytes(ciphertext, nonce, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return aesgcm.Open(nil, nonce, ciphertext, nil)
}
