package pool

import "math/rand/v2"

// Shuffle permutes xs in place with r's Fisher-Yates shuffle.
func Shuffle[T any](r *rand.Rand, xs []T) {
	r.Shuffle(len(xs), func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })
}

// SampleIDs draws n distinct ids without replacement, leaving ids untouched.
func SampleIDs(r *rand.Rand, ids []int64, n int) []int64 {
	cp := append([]int64(nil), ids...)
	Shuffle(r, cp)
	if n < len(cp) {
		cp = cp[:n]
	}
	return cp
}
