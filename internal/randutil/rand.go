package randutil

import (
	"hash/fnv"

	rand "math/rand/v2"
)

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// New returns a *rand.Rand seeded deterministically from the provided int64.
// The helper centralises how we derive the two 64-bit seeds required by rand/v2
// so that all call sites get reproducible sequences.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// NewFromString derives a reproducible *rand.Rand from a base seed and a
// string discriminator. Each room gets an independent stream from the
// server-wide seed without sharing mutable RNG state across rooms.
func NewFromString(seed int64, s string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	u := uint64(seed) ^ h.Sum64()
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
