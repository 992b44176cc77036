package answer

import "github.com/geodnsd/geodnsd/internal/reqctx"

// rotateIndices returns the emission order for a multi-RR RR-set: a
// rotation start index drawn from the thread's RNG, then up
// to limit consecutive entries with wraparound (spec.md §4.4.8). limit
// <= 0 means "no cap" (emit all n, still rotated).
func rotateIndices(rng *reqctx.RNG, n, limit int) []int {
	if n == 0 {
		return nil
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	start := rng.Intn(n)
	out := make([]int, limit)
	for i := 0; i < limit; i++ {
		out[i] = (start + i) % n
	}
	return out
}
