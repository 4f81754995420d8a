package onion

import (
	"encoding/binary"
	"fmt"
	"time"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/sha3"
)

const (
	// DefaultTimePeriodLength is the time period length in minutes (1 day).
	DefaultTimePeriodLength = 1440
	// 12 voting periods of 60 minutes each.
	rotationTimeOffset = 12 * 60
	// HSDirReplicas is the number of hash ring positions a descriptor is stored at.
	HSDirReplicas = 2
)

var blindString = []byte("Derive temporary signing key\x00")

// ed25519Basepoint is the textual form of B used in the blinding hash.
var ed25519Basepoint = []byte("(15112221349535400772501151409588531511454012693041857206046113283949847762202, 46316835694926478169428394003475163141307993866256225615783033603165251855960)")

// Identity is the per-period view of an onion service key: the blinded key
// under which descriptors are published and the subcredential clients use.
type Identity struct {
	PublicKey     PublicKey
	Address       string
	Period        int64
	PeriodLength  int64
	BlindedKey    PublicKey
	Subcredential [32]byte
	// ServiceIndexes are the hash ring positions for replicas 1..HSDirReplicas.
	ServiceIndexes [HSDirReplicas][32]byte
}

// TimePeriod computes (minutes_since_epoch - rotation_offset) / period_length.
func TimePeriod(t time.Time, periodLength int64) int64 {
	if periodLength <= 0 {
		periodLength = DefaultTimePeriodLength
	}
	minutesSinceEpoch := t.Unix() / 60
	return (minutesSinceEpoch - rotationTimeOffset) / periodLength
}

// BlindPublicKey derives A' = h*A for the given period, with
// h = SHA3-256(BLIND_STRING | A | B | "key-blind" | INT_8(period) | INT_8(length)).
func BlindPublicKey(pubkey PublicKey, period, periodLength int64) (PublicKey, error) {
	var blinded PublicKey
	if periodLength <= 0 {
		periodLength = DefaultTimePeriodLength
	}

	h := sha3.New256()
	h.Write(blindString)
	h.Write(pubkey[:])
	h.Write(ed25519Basepoint)
	h.Write(blindNonce(period, periodLength))

	hScalar, err := new(edwards25519.Scalar).SetBytesWithClamping(h.Sum(nil))
	if err != nil {
		return blinded, fmt.Errorf("blinding factor: %w", err)
	}
	a, err := new(edwards25519.Point).SetBytes(pubkey[:])
	if err != nil {
		return blinded, fmt.Errorf("public key point: %w", err)
	}

	copy(blinded[:], new(edwards25519.Point).ScalarMult(hScalar, a).Bytes())
	return blinded, nil
}

// Subcredential computes SHA3-256("subcredential" | SHA3-256("credential" | A) | A').
func Subcredential(pubkey, blinded PublicKey) [32]byte {
	cred := sha3.New256()
	cred.Write([]byte("credential"))
	cred.Write(pubkey[:])

	sub := sha3.New256()
	sub.Write([]byte("subcredential"))
	sub.Write(cred.Sum(nil))
	sub.Write(blinded[:])

	var out [32]byte
	copy(out[:], sub.Sum(nil))
	return out
}

// Inspect returns the identity of pubkey for the time period containing now.
func Inspect(pubkey PublicKey, now time.Time) (*Identity, error) {
	period := TimePeriod(now, DefaultTimePeriodLength)
	blinded, err := BlindPublicKey(pubkey, period, DefaultTimePeriodLength)
	if err != nil {
		return nil, fmt.Errorf("blind %s: %w", pubkey.Hex(), err)
	}
	id := &Identity{
		PublicKey:     pubkey,
		Address:       EncodeAddress(pubkey),
		Period:        period,
		PeriodLength:  DefaultTimePeriodLength,
		BlindedKey:    blinded,
		Subcredential: Subcredential(pubkey, blinded),
	}
	for i := range id.ServiceIndexes {
		id.ServiceIndexes[i] = ServiceIndex(blinded, int64(i+1), DefaultTimePeriodLength, period)
	}
	return id, nil
}

// ServiceIndex computes hs_service_index:
// SHA3-256("store-at-idx" | blinded_key | INT_8(replica) | INT_8(period_length) | INT_8(period)).
func ServiceIndex(blinded PublicKey, replica, periodLength, period int64) [32]byte {
	h := sha3.New256()
	h.Write([]byte("store-at-idx"))
	h.Write(blinded[:])
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(replica))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(periodLength))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(period))
	h.Write(buf[:])

	var idx [32]byte
	copy(idx[:], h.Sum(nil))
	return idx
}

func blindNonce(period, periodLength int64) []byte {
	nonce := make([]byte, 0, 9+8+8)
	nonce = append(nonce, "key-blind"...)
	nonce = binary.BigEndian.AppendUint64(nonce, uint64(period))
	nonce = binary.BigEndian.AppendUint64(nonce, uint64(periodLength))
	return nonce
}
