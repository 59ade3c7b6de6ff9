// Package fairness provides the random sources behind every prize decision.
//
// Production code uses Secure, which draws from crypto/rand. Tests inject a
// Seeded source so shuffles and spins are reproducible.
package fairness

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"sync"

	"github.com/shopspring/decimal"
)

// Source yields uniform integers in [0, n). Implementations must be safe for
// concurrent use.
type Source interface {
	Intn(n int) int
}

type secureSource struct{}

// Secure returns a Source backed by crypto/rand.
func Secure() Source { return secureSource{} }

func (secureSource) Intn(n int) int {
	if n <= 0 {
		panic("fairness: Intn called with non-positive n")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand only fails if the OS entropy source is broken.
		panic("fairness: crypto/rand unavailable: " + err.Error())
	}
	return int(v.Int64())
}

// Seeded is a deterministic Source for tests. Never use it for real draws.
type Seeded struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeeded returns a reproducible Source for the given seed.
func NewSeeded(seed uint64) *Seeded {
	return &Seeded{rng: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *Seeded) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// Shuffle permutes xs in place with an unbiased Fisher–Yates pass.
func Shuffle[T any](src Source, xs []T) {
	for i := len(xs) - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		xs[i], xs[j] = xs[j], xs[i]
	}
}

// fractionScale is the resolution of Fraction: 10^-12.
const fractionScale = 1_000_000_000_000

// Fraction draws a uniform decimal in [0, 1).
func Fraction(src Source) decimal.Decimal {
	return decimal.New(int64(src.Intn(fractionScale)), -12)
}

// Between draws a uniform integer in [lo, hi].
func Between(src Source, lo, hi int) int {
	return lo + src.Intn(hi-lo+1)
}
