package sim

import (
	"hash/fnv"
	"math"

	"github.com/iti/rngstream"
)

// NewStream returns a named random stream offset by seed. Each rngstream
// takes the next substream in package creation order, so building streams in
// a fixed order reproduces a run. The seed burns a name-and-seed dependent
// number of draws, which moves every stream to a different position and
// gives each seed its own realization.
func NewStream(name string, seed int64) *rngstream.RngStream {
	g := rngstream.New(name)

	h := fnv.New64a()
	h.Write([]byte(name))
	skip := (h.Sum64() ^ uint64(seed)) % 4096
	for i := uint64(0); i < skip; i++ {
		g.RandU01()
	}
	return g
}

// Uniform draws from the uniform distribution on [lo, hi).
func Uniform(g *rngstream.RngStream, lo, hi float64) float64 {
	return lo + (hi-lo)*g.RandU01()
}

// Triangular draws from the triangular distribution on [lo, hi] with the
// given mode, by inverting its CDF.
func Triangular(g *rngstream.RngStream, lo, hi, mode float64) float64 {
	u := g.RandU01()
	cut := (mode - lo) / (hi - lo)
	if u < cut {
		return lo + math.Sqrt(u*(hi-lo)*(mode-lo))
	}
	return hi - math.Sqrt((1-u)*(hi-lo)*(hi-mode))
}
