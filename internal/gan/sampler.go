package gan

import "math/rand"

// Sampler draws the per-row interpolation coefficients for the gradient
// penalty.
type Sampler interface {
	Alpha(n int) []float64
}

// UniformSampler draws alpha ~ U[0,1] from a seeded source.
type UniformSampler struct {
	rng *rand.Rand
}

// NewUniformSampler returns a sampler seeded with seed.
func NewUniformSampler(seed int64) *UniformSampler {
	return &UniformSampler{rng: rand.New(rand.NewSource(seed))}
}

func (s *UniformSampler) Alpha(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = s.rng.Float64()
	}
	return out
}

// ConstantSampler returns the same alpha for every row.
type ConstantSampler float64

func (c ConstantSampler) Alpha(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(c)
	}
	return out
}
