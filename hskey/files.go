package hskey

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cvsouth/onion-keygen/onion"
)

// File names used by Tor inside a HiddenServiceDir.
const (
	SecretKeyFile = "hs_ed25519_secret_key"
	PublicKeyFile = "hs_ed25519_public_key"
	HostnameFile  = "hostname"
)

// Key file headers are padded with NULs to 32 bytes.
var (
	secretKeyHeader = []byte("== ed25519v1-secret: type0 ==\x00\x00\x00")
	publicKeyHeader = []byte("== ed25519v1-public: type0 ==\x00\x00\x00")
)

// ErrKeyExists is returned by Dir.Save when a secret key is already present.
var ErrKeyExists = errors.New("secret key already exists")

// MarshalSecretKey encodes the expanded key in hs_ed25519_secret_key format.
func MarshalSecretKey(kp *KeyPair) []byte {
	out := make([]byte, 0, len(secretKeyHeader)+ExpandedSize)
	out = append(out, secretKeyHeader...)
	return append(out, kp.Expanded[:]...)
}

// ParseSecretKey decodes an hs_ed25519_secret_key file and derives its public key.
func ParseSecretKey(data []byte) (*KeyPair, error) {
	if len(data) != len(secretKeyHeader)+ExpandedSize {
		return nil, fmt.Errorf("secret key file: length %d, expected %d", len(data), len(secretKeyHeader)+ExpandedSize)
	}
	if !bytes.Equal(data[:len(secretKeyHeader)], secretKeyHeader) {
		return nil, errors.New("secret key file: bad header")
	}
	var expanded [ExpandedSize]byte
	copy(expanded[:], data[len(secretKeyHeader):])
	return FromExpanded(expanded)
}

// MarshalPublicKey encodes pub in hs_ed25519_public_key format.
func MarshalPublicKey(pub onion.PublicKey) []byte {
	out := make([]byte, 0, len(publicKeyHeader)+onion.PublicKeySize)
	out = append(out, publicKeyHeader...)
	return append(out, pub[:]...)
}

// ParsePublicKey decodes an hs_ed25519_public_key file.
func ParsePublicKey(data []byte) (onion.PublicKey, error) {
	var pub onion.PublicKey
	if len(data) != len(publicKeyHeader)+onion.PublicKeySize {
		return pub, fmt.Errorf("public key file: length %d, expected %d", len(data), len(publicKeyHeader)+onion.PublicKeySize)
	}
	if !bytes.Equal(data[:len(publicKeyHeader)], publicKeyHeader) {
		return pub, errors.New("public key file: bad header")
	}
	copy(pub[:], data[len(publicKeyHeader):])
	return pub, nil
}

// Dir is a Tor HiddenServiceDir holding one onion service identity.
type Dir struct {
	Path string
}

// Save writes the secret key, public key and hostname files. It refuses to
// replace an existing secret key.
func (d *Dir) Save(kp *KeyPair) error {
	if err := os.MkdirAll(d.Path, 0700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}

	secretPath := filepath.Join(d.Path, SecretKeyFile)
	f, err := os.OpenFile(secretPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", secretPath, ErrKeyExists)
		}
		return fmt.Errorf("create secret key: %w", err)
	}
	if _, err := f.Write(MarshalSecretKey(kp)); err != nil {
		f.Close()
		return fmt.Errorf("write secret key: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close secret key: %w", err)
	}

	// The secret key is removed again if the directory cannot be completed,
	// so that a later Save does not fail with ErrKeyExists.
	if err := os.WriteFile(filepath.Join(d.Path, PublicKeyFile), MarshalPublicKey(kp.Public), 0600); err != nil {
		os.Remove(secretPath)
		return fmt.Errorf("write public key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(d.Path, HostnameFile), []byte(kp.Address()+"\n"), 0600); err != nil {
		os.Remove(secretPath)
		return fmt.Errorf("write hostname: %w", err)
	}
	return nil
}

// Load reads the secret key and cross-checks the public key and hostname
// files when they are present.
func (d *Dir) Load() (*KeyPair, error) {
	data, err := os.ReadFile(filepath.Join(d.Path, SecretKeyFile))
	if err != nil {
		return nil, fmt.Errorf("read secret key: %w", err)
	}
	kp, err := ParseSecretKey(data)
	if err != nil {
		return nil, err
	}

	data, err = os.ReadFile(filepath.Join(d.Path, PublicKeyFile))
	switch {
	case err == nil:
		pub, err := ParsePublicKey(data)
		if err != nil {
			return nil, err
		}
		if pub != kp.Public {
			return nil, fmt.Errorf("%w: public key file %s, secret key %s", ErrKeyMismatch, pub.Hex(), kp.Public.Hex())
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read public key: %w", err)
	}

	data, err = os.ReadFile(filepath.Join(d.Path, HostnameFile))
	switch {
	case err == nil:
		hostname := strings.TrimSpace(string(data))
		pub, err := onion.DecodeAddress(hostname)
		if err != nil {
			return nil, fmt.Errorf("hostname: %w", err)
		}
		if pub != kp.Public {
			return nil, fmt.Errorf("%w: hostname %s", ErrKeyMismatch, hostname)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read hostname: %w", err)
	}

	return kp, nil
}
