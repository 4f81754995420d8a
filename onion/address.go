package onion

import (
	"encoding/base32"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/sha3"
)

const (
	// Version is the only onion address version this package produces or accepts.
	Version = 0x03

	PublicKeySize = 32
	ChecksumSize  = 2

	// RecordSize is the binary layout: pubkey(32) || checksum(2) || version(1).
	RecordSize = PublicKeySize + ChecksumSize + 1

	// Suffix is appended to the base32 body of every address.
	Suffix = ".onion"

	// AddressLength is the full textual length: 56 base32 characters + ".onion".
	AddressLength = 56 + len(Suffix)
)

// checksumTag is the domain-separation prefix of the address checksum.
var checksumTag = []byte(".onion checksum")

// b32 is RFC 4648 base32 without padding. Encoded output is lowercased by callers.
var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

var (
	// ErrMalformedAddress covers every structural failure: length, suffix,
	// alphabet, decoded length and version.
	ErrMalformedAddress = errors.New("malformed onion address")
	// ErrUnsupportedVersion is wrapped together with ErrMalformedAddress.
	ErrUnsupportedVersion = errors.New("unsupported version")
	// ErrChecksumMismatch means the address is well formed but its checksum
	// does not match the embedded key and version.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// PublicKey is a raw 32-byte Ed25519 public key.
type PublicKey [PublicKeySize]byte

// String returns the v3 onion address of the key.
func (pk PublicKey) String() string {
	return EncodeAddress(pk)
}

// Hex returns the key as lowercase hex.
func (pk PublicKey) Hex() string {
	return hex.EncodeToString(pk[:])
}

// Checksum computes SHA3-256(".onion checksum" || pubkey || version)[:2].
func Checksum(pubkey PublicKey, version byte) [ChecksumSize]byte {
	h := sha3.New256()
	h.Write(checksumTag)
	h.Write(pubkey[:])
	h.Write([]byte{version})

	var sum [ChecksumSize]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// EncodeAddress returns the 62-character v3 onion address for pubkey.
func EncodeAddress(pubkey PublicKey) string {
	checksum := Checksum(pubkey, Version)

	var record [RecordSize]byte
	copy(record[:PublicKeySize], pubkey[:])
	copy(record[PublicKeySize:PublicKeySize+ChecksumSize], checksum[:])
	record[RecordSize-1] = Version

	return strings.ToLower(b32.EncodeToString(record[:])) + Suffix
}

// DecodeAddress parses a v3 onion address and returns the embedded public key.
// Checks run in order (suffix and length, base32, version, checksum) and stop
// at the first failure. It never panics.
func DecodeAddress(address string) (PublicKey, error) {
	var pubkey PublicKey

	if len(address) != AddressLength {
		return pubkey, fmt.Errorf("%w: length %d, expected %d", ErrMalformedAddress, len(address), AddressLength)
	}
	if !strings.EqualFold(address[len(address)-len(Suffix):], Suffix) {
		return pubkey, fmt.Errorf("%w: missing %s suffix", ErrMalformedAddress, Suffix)
	}

	body := strings.ToUpper(address[:len(address)-len(Suffix)])
	decoded, err := b32.DecodeString(body)
	if err != nil {
		return pubkey, fmt.Errorf("%w: base32 decode: %w", ErrMalformedAddress, err)
	}
	if len(decoded) != RecordSize {
		return pubkey, fmt.Errorf("%w: decoded length %d, expected %d", ErrMalformedAddress, len(decoded), RecordSize)
	}

	version := decoded[RecordSize-1]
	if version != Version {
		return pubkey, fmt.Errorf("%w: %w: %d", ErrMalformedAddress, ErrUnsupportedVersion, version)
	}

	copy(pubkey[:], decoded[:PublicKeySize])
	var declared [ChecksumSize]byte
	copy(declared[:], decoded[PublicKeySize:PublicKeySize+ChecksumSize])

	if expected := Checksum(pubkey, version); declared != expected {
		return PublicKey{}, fmt.Errorf("%w: got %x, expected %x", ErrChecksumMismatch, declared, expected)
	}

	return pubkey, nil
}

// VerifyAddress reports whether address is a valid v3 onion address and, if
// so, returns the embedded key. Callers checking their own address must also
// compare the returned key with the one they encoded.
func VerifyAddress(address string) (PublicKey, bool) {
	pubkey, err := DecodeAddress(address)
	if err != nil {
		return PublicKey{}, false
	}
	return pubkey, true
}

// groupOrderMinusOne is L-1 in little-endian, where L is the prime order of
// the Ed25519 base point.
var groupOrderMinusOne = [32]byte{
	0xec, 0xd3, 0xf5, 0x5c, 0x1a, 0x63, 0x12, 0x58,
	0xd6, 0x9c, 0xf7, 0xa2, 0xde, 0xf9, 0xde, 0x14,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10,
}

// ValidatePoint checks that pubkey is a canonical Ed25519 point in the
// prime-order subgroup. This is stricter than the address format itself,
// which accepts any 32 bytes.
func ValidatePoint(pubkey PublicKey) error {
	p, err := new(edwards25519.Point).SetBytes(pubkey[:])
	if err != nil {
		return fmt.Errorf("invalid ed25519 point: %w", err)
	}
	if p.Equal(edwards25519.NewIdentityPoint()) == 1 {
		return errors.New("ed25519 point is the identity")
	}

	s, err := new(edwards25519.Scalar).SetCanonicalBytes(groupOrderMinusOne[:])
	if err != nil {
		return fmt.Errorf("group order scalar: %w", err)
	}
	// [L]P = [L-1]P + P is the identity only without a torsion component.
	lp := new(edwards25519.Point).ScalarMult(s, p)
	lp.Add(lp, p)
	if lp.Equal(edwards25519.NewIdentityPoint()) != 1 {
		return errors.New("ed25519 point has a torsion component")
	}
	return nil
}

// IsOnionAddress reports whether target, a bare host or host:port, names an
// onion service. The suffix match is case-insensitive.
func IsOnionAddress(target string) bool {
	host := target
	if h, _, err := net.SplitHostPort(target); err == nil {
		host = h
	}
	return len(host) > len(Suffix) && strings.EqualFold(host[len(host)-len(Suffix):], Suffix)
}
