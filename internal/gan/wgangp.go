package gan

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"FinGAN/internal/dataset"
)

// OptimizerConfig configures the Adam solvers of both networks.
type OptimizerConfig struct {
	Lambda      float64
	GeneratorLR float64
	CriticLR    float64
	Beta1       float64
	Beta2       float64
}

// DefaultOptimizerConfig returns lambda 10 and Adam(1e-4, 0.5, 0.9).
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{Lambda: 10, GeneratorLR: 1e-4, CriticLR: 1e-4, Beta1: 0.5, Beta2: 0.9}
}

// CriticStats are the values recorded by one critic update.
type CriticStats struct {
	Loss     float64
	Penalty  float64
	GradNorm float64
}

// WGANGP performs single critic and generator updates. Each update builds a
// fresh graph bound to the networks' weights and steps one Adam solver in
// place, so the other network's weights are never touched.
type WGANGP struct {
	gen, critic  Network
	genSolver    G.Solver
	criticSolver G.Solver
	penalty      *PenaltyEvaluator
	lambda       float64
}

// NewWGANGP wires the networks to their optimizers.
func NewWGANGP(gen, critic Network, sampler Sampler, cfg OptimizerConfig) *WGANGP {
	return &WGANGP{
		gen:    gen,
		critic: critic,
		genSolver: G.NewAdamSolver(
			G.WithLearnRate(cfg.GeneratorLR), G.WithBeta1(cfg.Beta1), G.WithBeta2(cfg.Beta2),
		),
		criticSolver: G.NewAdamSolver(
			G.WithLearnRate(cfg.CriticLR), G.WithBeta1(cfg.Beta1), G.WithBeta2(cfg.Beta2),
		),
		penalty: NewPenaltyEvaluator(sampler),
		lambda:  cfg.Lambda,
	}
}

// Generator returns the generator network.
func (w *WGANGP) Generator() Network { return w.gen }

// Critic returns the critic network.
func (w *WGANGP) Critic() Network { return w.critic }

// Predict runs the generator forward without recording gradients and
// returns the [B,F] output.
func (w *WGANGP) Predict(windows *tensor.Dense) (*tensor.Dense, error) {
	return Predict(w.gen, windows)
}

// Predict runs net forward on x in a throwaway graph.
func Predict(net Network, x *tensor.Dense) (*tensor.Dense, error) {
	g := G.NewGraph()
	out, err := net.Forward(net.Bind(g), denseNode(g, x, "x"))
	if err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}
	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}
	shape := out.Shape().Clone()
	return newDense(append([]float64(nil), float64s(out)...), shape...), nil
}

// CriticStep performs one critic update on b.
func (w *WGANGP) CriticStep(b *dataset.Batch) (CriticStats, error) {
	generated, err := w.Predict(b.Windows)
	if err != nil {
		return CriticStats{}, err
	}
	fake, err := completeHistory(b.History, generated)
	if err != nil {
		return CriticStats{}, err
	}

	g := G.NewGraph()
	params := w.critic.Bind(g)
	realScores, err := w.critic.Forward(params, denseNode(g, b.History, "real"))
	if err != nil {
		return CriticStats{}, fmt.Errorf("critic on real: %w", err)
	}
	fakeScores, err := w.critic.Forward(params, denseNode(g, fake, "fake"))
	if err != nil {
		return CriticStats{}, fmt.Errorf("critic on fake: %w", err)
	}
	pen, err := w.penalty.Build(g, w.critic, params, b.History, fake)
	if err != nil {
		return CriticStats{}, err
	}

	meanReal, err := G.Mean(realScores)
	if err != nil {
		return CriticStats{}, err
	}
	meanFake, err := G.Mean(fakeScores)
	if err != nil {
		return CriticStats{}, err
	}
	wdist, err := G.Sub(meanFake, meanReal)
	if err != nil {
		return CriticStats{}, err
	}
	weighted, err := G.Mul(pen.Value, G.NewConstant(w.lambda))
	if err != nil {
		return CriticStats{}, err
	}
	loss, err := G.Add(wdist, weighted)
	if err != nil {
		return CriticStats{}, err
	}

	grads, err := G.Grad(loss, params...)
	if err != nil {
		return CriticStats{}, fmt.Errorf("critic gradients: %v: %w", err, ErrDifferentiation)
	}
	if err := run(g); err != nil {
		return CriticStats{}, err
	}
	if err := step(w.criticSolver, w.critic.Weights(), grads); err != nil {
		return CriticStats{}, err
	}
	return CriticStats{
		Loss:     scalar(loss),
		Penalty:  scalar(pen.Value),
		GradNorm: pen.MeanGradientNorm(),
	}, nil
}

// GeneratorStep performs one generator update on b against the current
// critic, whose weights are held constant.
func (w *WGANGP) GeneratorStep(b *dataset.Batch) (float64, error) {
	hs := b.History.Shape()
	if len(hs) != 3 || hs[1] < 2 {
		return 0, fmt.Errorf("history shape %v: %w", hs, ErrShapeMismatch)
	}
	n, l, f := hs[0], hs[1]-1, hs[2]

	g := G.NewGraph()
	genParams := w.gen.Bind(g)
	criticParams := w.critic.Bind(g)

	out, err := w.gen.Forward(genParams, denseNode(g, b.Windows, "x"))
	if err != nil {
		return 0, fmt.Errorf("generator forward: %w", err)
	}
	if s := out.Shape(); len(s) != 2 || s[0] != n || s[1] != f {
		return 0, fmt.Errorf("generator output %v, want [%d %d]: %w", s, n, f, ErrShapeMismatch)
	}
	tail, err := G.Reshape(out, tensor.Shape{n, 1, f})
	if err != nil {
		return 0, err
	}
	prefix := denseNode(g, historyPrefix(b.History, l), "history_prefix")
	fake, err := G.Concat(1, prefix, tail)
	if err != nil {
		return 0, err
	}
	scores, err := w.critic.Forward(criticParams, fake)
	if err != nil {
		return 0, fmt.Errorf("critic on fake: %w", err)
	}
	mean, err := G.Mean(scores)
	if err != nil {
		return 0, err
	}
	loss, err := G.Neg(mean)
	if err != nil {
		return 0, err
	}

	grads, err := G.Grad(loss, genParams...)
	if err != nil {
		return 0, fmt.Errorf("generator gradients: %v: %w", err, ErrDifferentiation)
	}
	if err := run(g); err != nil {
		return 0, err
	}
	if err := step(w.genSolver, w.gen.Weights(), grads); err != nil {
		return 0, err
	}
	return scalar(loss), nil
}

func run(g *G.ExprGraph) error {
	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return fmt.Errorf("run graph: %v: %w", err, ErrDifferentiation)
	}
	return nil
}

// step applies the solver to the owned weights. The solver updates the
// tensors in place; its per-parameter state is keyed by position.
func step(s G.Solver, weights []*tensor.Dense, grads G.Nodes) error {
	if len(weights) != len(grads) {
		return fmt.Errorf("%d weights, %d gradients: %w", len(weights), len(grads), ErrDifferentiation)
	}
	model := make([]G.ValueGrad, len(weights))
	for i, wt := range weights {
		gv := grads[i].Value()
		if gv == nil {
			return fmt.Errorf("gradient %d not computed: %w", i, ErrDifferentiation)
		}
		gd, ok := gv.(*tensor.Dense)
		if !ok {
			return fmt.Errorf("gradient %d has type %T: %w", i, gv, ErrDifferentiation)
		}
		model[i] = valueGrad{value: wt, grad: gd.Clone().(*tensor.Dense)}
	}
	if err := s.Step(model); err != nil {
		return fmt.Errorf("solver step: %w", err)
	}
	return nil
}

// historyPrefix returns the first l steps of a [B,L+1,F] history.
func historyPrefix(history *tensor.Dense, l int) *tensor.Dense {
	hs := history.Shape()
	n, steps, f := hs[0], hs[1], hs[2]
	src := history.Data().([]float64)
	out := make([]float64, 0, n*l*f)
	for i := 0; i < n; i++ {
		row := src[i*steps*f:]
		out = append(out, row[:l*f]...)
	}
	return newDense(out, n, l, f)
}

// completeHistory replaces the last step of each real history with the
// generated value, giving the fake history [B,L+1,F].
func completeHistory(history, generated *tensor.Dense) (*tensor.Dense, error) {
	hs, gs := history.Shape(), generated.Shape()
	if len(hs) != 3 || len(gs) != 2 || hs[0] != gs[0] || hs[2] != gs[1] {
		return nil, fmt.Errorf("history %v vs generated %v: %w", hs, gs, ErrShapeMismatch)
	}
	n, steps, f := hs[0], hs[1], hs[2]
	out := append([]float64(nil), history.Data().([]float64)...)
	gen := generated.Data().([]float64)
	for i := 0; i < n; i++ {
		copy(out[(i*steps+steps-1)*f:(i+1)*steps*f], gen[i*f:(i+1)*f])
	}
	return newDense(out, n, steps, f), nil
}
