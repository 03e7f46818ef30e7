// Package fair implements the commit-reveal crash point generator. The
// server publishes sha256(seed) before a round opens and reveals the seed
// after it crashes, so anyone can recompute the crash point and confirm it
// was fixed in advance.
package fair

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

// Distribution cutoffs. The uniform draw r in [0,1) maps monotonically to
// the crash point: half of all rounds end below 2.00x, a middle band covers
// 2.00x-9.00x and the remaining 15% stretches to 100x.
const (
	lowCut = 0.50
	midCut = 0.85

	lowMax = 2.0
	midMax = 9.0
	maxOut = 100.0
)

// NewServerSeed returns 32 random bytes hex-encoded.
func NewServerSeed() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random seed: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Commitment returns the sha256 hex digest published before the round.
func Commitment(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

// derive maps (seed, roundID) to a uniform float in [0,1) via
// HMAC-SHA256(seed, roundID), taking the first 8 bytes over 2^64.
func derive(seed, roundID string) float64 {
	mac := hmac.New(sha256.New, []byte(seed))
	mac.Write([]byte(roundID))
	sum := mac.Sum(nil)
	n := binary.BigEndian.Uint64(sum[:8])
	return float64(n) / math.Pow(2, 64)
}

// CrashPoint deterministically computes the round's crash multiplier.
// Identical seed and round id always yield the identical result, and the
// result is always >= 1.00.
func CrashPoint(seed, roundID string) float64 {
	r := derive(seed, roundID)

	var m float64
	switch {
	case r < lowCut:
		m = 1.0 + r/lowCut*(lowMax-1.0)
	case r < midCut:
		m = lowMax + (r-lowCut)/(midCut-lowCut)*(midMax-lowMax)
	default:
		m = midMax + (r-midCut)/(1.0-midCut)*(maxOut-midMax)
	}

	// Two decimal places, matching the multiplier the clients display.
	return math.Round(m*100) / 100
}

// Verify recomputes both halves of the commit-reveal check: the revealed
// seed must hash to the published commitment and regenerate the observed
// crash point.
func Verify(seed, roundID, commitment string, crashPoint float64) bool {
	if Commitment(seed) != commitment {
		return false
	}
	return CrashPoint(seed, roundID) == crashPoint
}
