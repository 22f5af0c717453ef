package fairness

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
)

const (
	MIN_CRASH_POINT = 1.00
	MAX_CRASH_POINT = 1000000.00

	// Only the top 52 bits of the HMAC are used so the uniform value is
	// exactly representable as a float64.
	uniformBits = 52
)

// HashServerSeed returns the public SHA-256 commitment of a server seed.
func HashServerSeed(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

// CalculateCrashPoint derives the crash multiplier for one round.
//
// HMAC-SHA256(serverSeed, "clientSeed:nonce") is reduced to a uniform value r
// in [0,1) and mapped through (1 - edge) / (1 - r). For any target m the
// probability of reaching it is (1 - edge) / m, so the long-run return of a
// cashout at any multiplier is 1 - houseEdgePercent/100.
func CalculateCrashPoint(serverSeed, clientSeed string, nonce uint64, houseEdgePercent float64) float64 {
	mac := hmac.New(sha256.New, []byte(serverSeed))
	mac.Write([]byte(clientSeed))
	mac.Write([]byte{':'})
	mac.Write([]byte(strconv.FormatUint(nonce, 10)))
	sum := mac.Sum(nil)

	h := binary.BigEndian.Uint64(sum[:8]) >> (64 - uniformBits)
	r := float64(h) / float64(uint64(1)<<uniformBits)

	crash := (1 - houseEdgePercent/100) / (1 - r)
	crash = math.Floor(crash*100) / 100

	if crash < MIN_CRASH_POINT || math.IsNaN(crash) {
		return MIN_CRASH_POINT
	}
	if crash > MAX_CRASH_POINT {
		return MAX_CRASH_POINT
	}
	return crash
}

// GenerateServerSeed creates a cryptographically secure random seed
func GenerateServerSeed() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate server seed: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// VerifyRound lets a player recompute a revealed round's crash point.
func VerifyRound(serverSeed, clientSeed string, nonce uint64, houseEdgePercent, claimed float64) bool {
	return CalculateCrashPoint(serverSeed, clientSeed, nonce, houseEdgePercent) == claimed
}
