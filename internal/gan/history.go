package gan

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// History is the append-only record of training losses. Critic loss, penalty
// and gradient norm get one entry per critic step; generator loss gets one
// entry per generator step.
type History struct {
	Critic    []float64 `json:"critic_loss"`
	Generator []float64 `json:"generator_loss"`
	Penalty   []float64 `json:"gradient_penalty"`
	GradNorm  []float64 `json:"gradient_norm"`
}

// AppendCritic records one critic step.
func (h *History) AppendCritic(s CriticStats) {
	h.Critic = append(h.Critic, s.Loss)
	h.Penalty = append(h.Penalty, s.Penalty)
	h.GradNorm = append(h.GradNorm, s.GradNorm)
}

// AppendGenerator records one generator step.
func (h *History) AppendGenerator(loss float64) {
	h.Generator = append(h.Generator, loss)
}

// Last returns the most recent value of each series, NaN where empty.
func (h *History) Last() (critic, generator, penalty, gradNorm float64) {
	return last(h.Critic), last(h.Generator), last(h.Penalty), last(h.GradNorm)
}

// Clone returns a deep copy.
func (h *History) Clone() *History {
	return &History{
		Critic:    append([]float64(nil), h.Critic...),
		Generator: append([]float64(nil), h.Generator...),
		Penalty:   append([]float64(nil), h.Penalty...),
		GradNorm:  append([]float64(nil), h.GradNorm...),
	}
}

// SeriesSummary describes one loss series.
type SeriesSummary struct {
	Name  string
	Count int
	Last  float64
	Mean  float64
	Std   float64
	Min   float64
	Max   float64
}

// Summary returns descriptive statistics for every series in a fixed order.
func (h *History) Summary() []SeriesSummary {
	return []SeriesSummary{
		summarise("critic_loss", h.Critic),
		summarise("generator_loss", h.Generator),
		summarise("gradient_penalty", h.Penalty),
		summarise("gradient_norm", h.GradNorm),
	}
}

func summarise(name string, xs []float64) SeriesSummary {
	s := SeriesSummary{Name: name, Count: len(xs)}
	if len(xs) == 0 {
		nan := math.NaN()
		s.Last, s.Mean, s.Std, s.Min, s.Max = nan, nan, nan, nan, nan
		return s
	}
	s.Last = xs[len(xs)-1]
	s.Mean, s.Std = stat.MeanStdDev(xs, nil)
	if len(xs) == 1 {
		s.Std = 0
	}
	s.Min = floats.Min(xs)
	s.Max = floats.Max(xs)
	return s
}

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}
