package gan

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// stabilityEpsilon keeps the gradient norm differentiable at zero.
const stabilityEpsilon = 1e-12

// PenaltyEvaluator builds the WGAN-GP gradient penalty: the mean squared
// deviation from one of the critic's input-gradient norm, evaluated on random
// interpolations between real and generated histories.
type PenaltyEvaluator struct {
	sampler Sampler
}

// NewPenaltyEvaluator returns an evaluator drawing alphas from s.
func NewPenaltyEvaluator(s Sampler) *PenaltyEvaluator {
	return &PenaltyEvaluator{sampler: s}
}

// Penalty holds the nodes of one penalty evaluation. Values are available
// after the graph has been run.
type Penalty struct {
	// Value is mean((||dI_b|| - 1)^2), without the lambda weight.
	Value *G.Node
	// Grad is the critic's gradient with respect to the interpolated
	// histories, shaped [B,L+1,F]. It stays differentiable.
	Grad *G.Node
	// Alpha holds the interpolation coefficient used for each row.
	Alpha []float64
}

// Build adds the penalty to g. params must be the critic nodes already bound
// in g so that the penalty contributes to the critic's parameter gradients.
func (e *PenaltyEvaluator) Build(g *G.ExprGraph, critic Network, params G.Nodes, real, fake *tensor.Dense) (*Penalty, error) {
	rs, fs := real.Shape(), fake.Shape()
	if len(rs) != 3 || !rs.Eq(fs) {
		return nil, fmt.Errorf("real %v vs fake %v: %w", rs, fs, ErrShapeMismatch)
	}
	b, k := rs[0], rs[1]*rs[2]

	alpha := e.sampler.Alpha(b)
	rd, fd := real.Data().([]float64), fake.Data().([]float64)
	mixed := make([]float64, len(rd))
	for i := 0; i < b; i++ {
		a := alpha[i]
		for j := i * k; j < (i+1)*k; j++ {
			mixed[j] = a*rd[j] + (1-a)*fd[j]
		}
	}
	interp := denseNode(g, newDense(mixed, rs...), "gp_interpolated")

	grad, err := inputGradient(critic, params, interp)
	if err != nil {
		return nil, err
	}

	flat, err := G.Reshape(grad, tensor.Shape{b, k})
	if err != nil {
		return nil, fmt.Errorf("flatten gradient: %w", err)
	}
	sq, err := G.Square(flat)
	if err != nil {
		return nil, err
	}
	ss, err := G.Sum(sq, 1)
	if err != nil {
		return nil, err
	}
	shifted, err := G.Add(ss, G.NewConstant(stabilityEpsilon))
	if err != nil {
		return nil, err
	}
	norm, err := G.Sqrt(shifted)
	if err != nil {
		return nil, err
	}
	dev, err := G.Sub(norm, G.NewConstant(1.0))
	if err != nil {
		return nil, err
	}
	dev2, err := G.Square(dev)
	if err != nil {
		return nil, err
	}
	value, err := G.Mean(dev2)
	if err != nil {
		return nil, err
	}
	return &Penalty{Value: value, Grad: grad, Alpha: alpha}, nil
}

// inputGradient returns d sum(critic(x)) / dx. Critics without an explicit
// form fall back to symbolic differentiation, which is only safe when the
// input gradient does not pass through the critic's own forward nodes.
func inputGradient(critic Network, params G.Nodes, x *G.Node) (*G.Node, error) {
	if ig, ok := critic.(InputGradienter); ok {
		grad, err := ig.InputGradient(params, x)
		if err != nil {
			return nil, fmt.Errorf("input gradient: %v: %w", err, ErrDifferentiation)
		}
		return grad, nil
	}
	scores, err := critic.Forward(params, x)
	if err != nil {
		return nil, fmt.Errorf("critic on interpolated: %w", err)
	}
	total, err := G.Sum(scores)
	if err != nil {
		return nil, fmt.Errorf("sum scores: %w", err)
	}
	grads, err := G.Grad(total, x)
	if err != nil {
		return nil, fmt.Errorf("input gradient: %v: %w", err, ErrDifferentiation)
	}
	return grads[0], nil
}

// GradientNorms returns the plain L2 norm of each row of the input gradient.
// The graph must have been run.
func (p *Penalty) GradientNorms() []float64 {
	data := float64s(p.Grad)
	b := p.Grad.Shape()[0]
	if b == 0 || len(data) == 0 {
		return nil
	}
	k := len(data) / b
	out := make([]float64, b)
	for i := range out {
		out[i] = floats.Norm(data[i*k:(i+1)*k], 2)
	}
	return out
}

// MeanGradientNorm is the diagnostic recorded alongside the penalty.
func (p *Penalty) MeanGradientNorm() float64 {
	norms := p.GradientNorms()
	if len(norms) == 0 {
		return 0
	}
	return floats.Sum(norms) / float64(len(norms))
}
