// Package keystore persists the client identity keypair on disk, sealed
// under a passphrase-derived key.
package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/avelkaya/whisperline/internal/common"
	"github.com/avelkaya/whisperline/internal/cryptox"
)

const (
	identityFile = "identity.json"
	saltSize     = 16
)

var ErrNoIdentity = errors.New("no identity found, run 'init' first")

// identityEnvelope is the on-disk JSON shape: a random argon2id salt, the
// AES-GCM nonce and the sealed PKCS#8 private key.
type identityEnvelope struct {
	SaltB64   string `json:"salt_b64"`
	NonceB64  string `json:"nonce_b64"`
	SealedB64 string `json:"sealed_b64"`
}

// Keystore stores the identity under a single directory.
type Keystore struct {
	dir string
}

func New(dir string) *Keystore { return &Keystore{dir: dir} }

func (s *Keystore) path() string { return filepath.Join(s.dir, identityFile) }

// Exists reports whether an identity file is present.
func (s *Keystore) Exists() bool {
	_, err := os.Stat(s.path())
	return err == nil
}

// Save seals priv under the passphrase and writes the identity file with
// owner-only permissions.
func (s *Keystore) Save(passphrase []byte, priv *rsa.PrivateKey) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}
	defer common.WipeByteArray(der)

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return err
	}

	key := cryptox.DeriveKeystoreKey(passphrase, salt)
	defer common.WipeByteArray(key)

	sealed, nonce, err := cryptox.SealBytes(der, key)
	if err != nil {
		return fmt.Errorf("seal identity: %w", err)
	}

	env := identityEnvelope{
		SaltB64:   base64.StdEncoding.EncodeToString(salt),
		NonceB64:  base64.StdEncoding.EncodeToString(nonce),
		SealedB64: base64.StdEncoding.EncodeToString(sealed),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(), data, 0o600)
}

// Load opens the identity file with the passphrase and returns the keypair.
func (s *Keystore) Load(passphrase []byte) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoIdentity
		}
		return nil, err
	}

	var env identityEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse identity file: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(env.SaltB64)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.NonceB64)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(env.SealedB64)
	if err != nil {
		return nil, fmt.Errorf("decode sealed key: %w", err)
	}

	key := cryptox.DeriveKeystoreKey(passphrase, salt)
	defer common.WipeByteArray(key)

	der, err := cryptox.OpenBytes(sealed, nonce, key)
	if err != nil {
		return nil, errors.New("cannot open identity: wrong passphrase or corrupted file")
	}
	defer common.WipeByteArray(der)

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("identity is not an RSA key")
	}
	return priv, nil
}
