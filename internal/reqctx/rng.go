package reqctx

import (
	"encoding/binary"

	"github.com/dchest/siphash"
)

// RNG is a per-thread xorshift64* generator used for RR rotation
// (spec.md §4.4.8). It is explicitly not cryptographically secure: the
// spec calls for a fast, non-crypto generator seeded once at thread
// init, not re-randomized per call.
type RNG struct {
	state uint64
}

// SeedThread derives a seed for thread threadID from a boot-time nonce
// via SipHash-2-4, the same primitive the teacher repo uses to derive
// DNS cookie secrets, rather than reading crypto/rand once per thread.
func SeedThread(threadID int, bootNonce [16]byte) *RNG {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(threadID))
	h := siphash.New(bootNonce[:])
	h.Write(buf[:])
	seed := h.Sum64()
	if seed == 0 {
		seed = 0x9E3779B97F4A7C15 // xorshift64* cannot start at zero
	}
	return &RNG{state: seed}
}

// Next returns the next pseudo-random 64-bit value.
func (r *RNG) Next() uint64 {
	x := r.state
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	r.state = x
	return x * 0x2545F4914F6CDD1D
}

// Intn returns a pseudo-random integer in [0, n).
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Next() % uint64(n))
}
