// Package hskey manages Ed25519 key pairs for v3 onion services in the
// expanded form Tor stores on disk.
package hskey

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"

	"filippo.io/edwards25519"

	"github.com/cvsouth/onion-keygen/onion"
)

// ErrKeyMismatch means an address or key file does not belong to the secret key.
var ErrKeyMismatch = errors.New("key mismatch")

const (
	SeedSize     = ed25519.SeedSize
	ExpandedSize = 64
)

// KeyPair is an onion service identity key. Expanded holds the clamped
// scalar (first 32 bytes) and the signing prefix (last 32 bytes). Seed is
// nil when the pair was loaded from an expanded key.
type KeyPair struct {
	Seed     []byte
	Expanded [ExpandedSize]byte
	Public   onion.PublicKey
}

// Generate creates a key pair from 32 bytes of r. A nil r uses crypto/rand.
func Generate(r io.Reader) (*KeyPair, error) {
	if r == nil {
		r = rand.Reader
	}
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return FromSeed(seed)
}

// FromSeed derives a key pair from a 32-byte seed or a 64-byte
// crypto/ed25519 private key.
func FromSeed(seed []byte) (*KeyPair, error) {
	var embedded []byte
	switch len(seed) {
	case SeedSize:
	case ed25519.PrivateKeySize:
		embedded = seed[SeedSize:]
		seed = ed25519.PrivateKey(seed).Seed()
	default:
		return nil, fmt.Errorf("seed length %d, expected %d or %d", len(seed), SeedSize, ed25519.PrivateKeySize)
	}

	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64

	kp, err := FromExpanded(h)
	if err != nil {
		return nil, err
	}
	if embedded != nil && !bytes.Equal(embedded, kp.Public[:]) {
		return nil, fmt.Errorf("%w: private key carries public key %x, seed derives %s",
			ErrKeyMismatch, embedded, kp.Public.Hex())
	}
	kp.Seed = append([]byte(nil), seed...)
	return kp, nil
}

// FromExpanded derives the public key A = a*B from an expanded secret key.
func FromExpanded(expanded [ExpandedSize]byte) (*KeyPair, error) {
	if expanded[0]&7 != 0 || expanded[31]&128 != 0 || expanded[31]&64 == 0 {
		return nil, errors.New("expanded secret key is not clamped")
	}
	a, err := new(edwards25519.Scalar).SetBytesWithClamping(expanded[:32])
	if err != nil {
		return nil, fmt.Errorf("secret scalar: %w", err)
	}

	kp := &KeyPair{Expanded: expanded}
	copy(kp.Public[:], new(edwards25519.Point).ScalarBaseMult(a).Bytes())
	return kp, nil
}

// Address returns the v3 onion address of the pair.
func (kp *KeyPair) Address() string {
	return onion.EncodeAddress(kp.Public)
}

// PrivateKey returns the crypto/ed25519 private key when the seed is known.
func (kp *KeyPair) PrivateKey() (ed25519.PrivateKey, bool) {
	if len(kp.Seed) != SeedSize {
		return nil, false
	}
	return ed25519.NewKeyFromSeed(kp.Seed), true
}

// CheckAddress verifies the pair's own address and that the key it embeds
// is the one derived from the secret key. Structural validity alone does not
// prove the address belongs to this pair.
func (kp *KeyPair) CheckAddress() error {
	addr := kp.Address()
	recovered, err := onion.DecodeAddress(addr)
	if err != nil {
		return fmt.Errorf("verify %s: %w", addr, err)
	}
	derived, err := FromExpanded(kp.Expanded)
	if err != nil {
		return err
	}
	if recovered != derived.Public {
		return fmt.Errorf("%w: address %s embeds %s, secret key gives %s",
			ErrKeyMismatch, addr, recovered.Hex(), derived.Public.Hex())
	}
	return nil
}

// Sign produces an Ed25519 signature over msg using the expanded key.
// The result verifies with crypto/ed25519.Verify against kp.Public.
func (kp *KeyPair) Sign(msg []byte) ([]byte, error) {
	a, err := new(edwards25519.Scalar).SetBytesWithClamping(kp.Expanded[:32])
	if err != nil {
		return nil, fmt.Errorf("secret scalar: %w", err)
	}

	h := sha512.New()
	h.Write(kp.Expanded[32:])
	h.Write(msg)
	r, err := new(edwards25519.Scalar).SetUniformBytes(h.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	R := new(edwards25519.Point).ScalarBaseMult(r).Bytes()

	h.Reset()
	h.Write(R)
	h.Write(kp.Public[:])
	h.Write(msg)
	k, err := new(edwards25519.Scalar).SetUniformBytes(h.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}

	S := new(edwards25519.Scalar).MultiplyAdd(k, a, r)

	sig := make([]byte, 0, ed25519.SignatureSize)
	sig = append(sig, R...)
	sig = append(sig, S.Bytes()...)
	return sig, nil
}

// Source selects where a key pair comes from: a provided seed or fresh randomness.
type Source interface {
	Resolve(r io.Reader) (*KeyPair, error)
}

type providedSource struct{ seed []byte }

func (s providedSource) Resolve(io.Reader) (*KeyPair, error) { return FromSeed(s.seed) }

type generatedSource struct{}

func (generatedSource) Resolve(r io.Reader) (*KeyPair, error) { return Generate(r) }

// Provided returns a Source that derives the pair from seed.
func Provided(seed []byte) Source {
	return providedSource{seed: append([]byte(nil), seed...)}
}

// Generated returns a Source that creates a new random pair.
func Generated() Source {
	return generatedSource{}
}
