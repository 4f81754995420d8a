package onion

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"testing"

	"filippo.io/edwards25519"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"
)

// Known valid v3 .onion addresses from rend-spec-v3.
var knownAddresses = []string{
	"pg6mmjiyjmcrsslvykfwnntlaru7p5svn6y2ymmju6nubxndf4pscryd.onion",
	"sp3k262uwy4r2k3ycr5awluarykdpag6a7y33jxop4cs2lu5uz5sseqd.onion",
	"xa4r2iadxm55fbnqgwwi5mymqdcofiu3w6rpbtqn7b2dyn7mgwj64jyd.onion",
}

func randomKey(t *testing.T) PublicKey {
	t.Helper()
	var pk PublicKey
	_, err := rand.Read(pk[:])
	require.NoError(t, err)
	return pk
}

// encodeRecord builds an address from an arbitrary record, bypassing EncodeAddress.
func encodeRecord(record []byte) string {
	return strings.ToLower(b32.EncodeToString(record)) + Suffix
}

func TestDecodeAddressKnownAddresses(t *testing.T) {
	for _, addr := range knownAddresses {
		pubkey, err := DecodeAddress(addr)
		require.NoError(t, err, addr)
		assert.NotEqual(t, PublicKey{}, pubkey)
		assert.Equal(t, addr, EncodeAddress(pubkey))
		assert.NoError(t, ValidatePoint(pubkey), addr)
	}
}

func TestEncodeAddressRoundTrip(t *testing.T) {
	for i := 0; i < 64; i++ {
		pk := randomKey(t)
		addr := EncodeAddress(pk)

		require.Len(t, addr, AddressLength)
		require.True(t, strings.HasSuffix(addr, ".onion"), addr)
		require.Equal(t, strings.ToLower(addr), addr)
		require.Equal(t, addr, EncodeAddress(pk), "EncodeAddress not deterministic")

		got, ok := VerifyAddress(addr)
		require.True(t, ok, addr)
		require.Equal(t, pk, got)
	}
}

func TestEncodeAddressZeroKey(t *testing.T) {
	var zero PublicKey

	h := sha3.New256()
	h.Write([]byte(".onion checksum"))
	h.Write(make([]byte, 32))
	h.Write([]byte{0x03})
	want := h.Sum(nil)[:2]

	sum := Checksum(zero, Version)
	require.Equal(t, want, sum[:])

	addr := EncodeAddress(zero)
	decoded, err := b32.DecodeString(strings.ToUpper(strings.TrimSuffix(addr, ".onion")))
	require.NoError(t, err)
	assert.Equal(t, want, decoded[32:34])
	assert.Equal(t, byte(0x03), decoded[34])

	got, ok := VerifyAddress(addr)
	require.True(t, ok, addr)
	assert.Equal(t, zero, got)
}

func TestDecodeAddressUppercase(t *testing.T) {
	addr := strings.ToUpper(knownAddresses[0])
	_, err := DecodeAddress(addr)
	require.NoError(t, err)
}

func TestDecodeAddressMalformed(t *testing.T) {
	valid := knownAddresses[0]
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"short", "short.onion"},
		{"one char short", valid[1:]},
		{"one char long", "a" + valid},
		{"without suffix", strings.TrimSuffix(valid, ".onion")},
		{"wrong suffix", strings.TrimSuffix(valid, ".onion") + ".onioN!"},
		{"other tld", strings.TrimSuffix(valid, ".onion") + ".union"},
		{"non-base32 digit", "1" + valid[1:]},
		{"non-base32 symbol", "-" + valid[1:]},
		{"padding", "=" + valid[1:]},
		{"newline", "\n" + valid[1:]},
		{"with port", strings.TrimSuffix(valid, "d.onion") + ".onion:80"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAddress(tt.input)
			require.ErrorIs(t, err, ErrMalformedAddress)
			_, ok := VerifyAddress(tt.input)
			assert.False(t, ok)
		})
	}
}

func TestDecodeAddressShortRejectedByLength(t *testing.T) {
	// A 61-character string fails on length even when the body is valid base32.
	addr := strings.Repeat("a", 55) + ".onion"
	_, err := DecodeAddress(addr)
	require.ErrorIs(t, err, ErrMalformedAddress)
	assert.Contains(t, err.Error(), "length 61")
}

func TestDecodeAddressBadVersion(t *testing.T) {
	for _, version := range []byte{0x00, 0x01, 0x02, 0x04, 0xff} {
		pk := randomKey(t)
		sum := Checksum(pk, version)
		record := append(append(pk[:], sum[:]...), version)

		_, err := DecodeAddress(encodeRecord(record))
		require.ErrorIs(t, err, ErrMalformedAddress, "version %d", version)
		require.ErrorIs(t, err, ErrUnsupportedVersion, "version %d", version)
	}
}

func TestDecodeAddressBadChecksum(t *testing.T) {
	addr := "pg6mmjiyjmcrsslvykfwnntlaru7p5svn6y2ymmju6nubxndf4pscrye.onion"
	_, err := DecodeAddress(addr)
	require.Error(t, err)
	// The final character carries version bits, so this one is a version failure.
	assert.True(t, errors.Is(err, ErrMalformedAddress) || errors.Is(err, ErrChecksumMismatch), err)

	pk := randomKey(t)
	sum := Checksum(pk, Version)
	sum[0] ^= 0x01
	record := append(append(pk[:], sum[:]...), Version)
	_, err = DecodeAddress(encodeRecord(record))
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestDecodeAddressRandomBody(t *testing.T) {
	failures := 0
	for i := 0; i < 256; i++ {
		record := make([]byte, RecordSize)
		_, err := rand.Read(record)
		require.NoError(t, err)
		record[RecordSize-1] = Version

		_, err = DecodeAddress(encodeRecord(record))
		if err != nil {
			require.ErrorIs(t, err, ErrChecksumMismatch, "random body failed outside checksum stage")
			failures++
		}
	}
	// A random checksum matches with probability 2^-16.
	assert.GreaterOrEqual(t, failures, 250)
}

func TestDecodeAddressTamperSensitivity(t *testing.T) {
	pk := randomKey(t)
	addr := EncodeAddress(pk)
	body := addr[:56]

	const alphabet = "abcdefghijklmnopqrstuvwxyz234567"
	accepted := 0
	for i := 0; i < len(body); i++ {
		idx := strings.IndexByte(alphabet, body[i])
		for bit := 0; bit < 5; bit++ {
			flipped := []byte(body)
			flipped[i] = alphabet[idx^(1<<bit)]
			tampered := string(flipped) + Suffix
			if got, ok := VerifyAddress(tampered); ok {
				require.NotEqual(t, pk, got, "tampered address %q recovered the original key", tampered)
				accepted++
			}
		}
	}
	assert.LessOrEqual(t, accepted, 1, "single-bit tamperings accepted")
}

func TestVerifyAddressConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				for _, addr := range knownAddresses {
					pk, ok := VerifyAddress(addr)
					if !assert.True(t, ok, addr) || !assert.Equal(t, addr, EncodeAddress(pk)) {
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}

func TestPublicKeyString(t *testing.T) {
	pk, err := DecodeAddress(knownAddresses[1])
	require.NoError(t, err)
	assert.Equal(t, knownAddresses[1], pk.String())
	assert.Len(t, pk.Hex(), 64)
}

func TestValidatePoint(t *testing.T) {
	var gen PublicKey
	copy(gen[:], edwards25519.NewGeneratorPoint().Bytes())
	require.NoError(t, ValidatePoint(gen))

	var identity PublicKey
	copy(identity[:], edwards25519.NewIdentityPoint().Bytes())
	require.Error(t, ValidatePoint(identity), "identity accepted")

	var offCurve PublicKey
	offCurve[0] = 0x02 // y=2 has no valid x on the curve
	require.Error(t, ValidatePoint(offCurve), "off-curve point accepted")

	// Generator plus a point of order 2 (y = -1) has a torsion component.
	var order2 [32]byte
	order2[0] = 0xec
	for i := 1; i < 31; i++ {
		order2[i] = 0xff
	}
	order2[31] = 0x7f
	t2, err := new(edwards25519.Point).SetBytes(order2[:])
	require.NoError(t, err)
	var mixed PublicKey
	copy(mixed[:], new(edwards25519.Point).Add(edwards25519.NewGeneratorPoint(), t2).Bytes())
	require.Error(t, ValidatePoint(mixed), "point with torsion component accepted")
}

func TestIsOnionAddress(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{knownAddresses[0] + ":80", true},
		{"abc123.onion:443", true},
		{"ABC.ONION:80", true},
		{"[abc.onion]:80", true},
		{"example.onion", true},
		{"example.com:80", false},
		{"notanonion.com", false},
		{"onion:80", false},
		{".onion", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsOnionAddress(tt.input), tt.input)
	}
}
