package gan_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"FinGAN/internal/gan"
	"FinGAN/internal/nn"
)

// linearCritic scores a flattened history with a fixed weight vector, so its
// input gradient is w for every row.
type linearCritic struct {
	w *tensor.Dense
}

func newLinearCritic(ws ...float64) *linearCritic {
	return &linearCritic{w: tensor.New(tensor.WithShape(len(ws), 1), tensor.WithBacking(append([]float64(nil), ws...)))}
}

func (c *linearCritic) Bind(g *G.ExprGraph) G.Nodes {
	return G.Nodes{G.NewMatrix(g, tensor.Float64, G.WithShape(c.w.Shape()...), G.WithName("linear_w"), G.WithValue(c.w))}
}

func (c *linearCritic) Forward(params G.Nodes, x *G.Node) (*G.Node, error) {
	s := x.Shape()
	flat, err := G.Reshape(x, tensor.Shape{s[0], s[1] * s[2]})
	if err != nil {
		return nil, err
	}
	return G.Mul(flat, params[0])
}

func (c *linearCritic) Weights() []*tensor.Dense { return []*tensor.Dense{c.w} }

func histories(b, steps, f int, offset float64) *tensor.Dense {
	data := make([]float64, b*steps*f)
	for i := range data {
		data[i] = offset + 0.1*float64(i)
	}
	return tensor.New(tensor.WithShape(b, steps, f), tensor.WithBacking(data))
}

func valueOf(t *testing.T, n *G.Node) float64 {
	t.Helper()
	require.NotNil(t, n.Value())
	switch v := n.Value().Data().(type) {
	case float64:
		return v
	case []float64:
		require.NotEmpty(t, v)
		return v[0]
	}
	t.Fatalf("unexpected value type %T", n.Value().Data())
	return 0
}

func runGraph(t *testing.T, g *G.ExprGraph) {
	t.Helper()
	vm := G.NewTapeMachine(g)
	defer vm.Close()
	require.NoError(t, vm.RunAll())
}

func TestPenalty_LinearCriticMatchesClosedForm(t *testing.T) {
	cases := []struct {
		name string
		w    []float64
	}{
		{"norm two", []float64{1, 1, 1, 1}},
		{"unit norm", []float64{0.5, 0.5, 0.5, 0.5}},
		{"norm three", []float64{3, 0, 0, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			critic := newLinearCritic(tc.w...)
			ev := gan.NewPenaltyEvaluator(gan.NewUniformSampler(1))

			g := G.NewGraph()
			params := critic.Bind(g)
			pen, err := ev.Build(g, critic, params, histories(3, 4, 1, 0), histories(3, 4, 1, 5))
			require.NoError(t, err)
			runGraph(t, g)

			norm := 0.0
			for _, v := range tc.w {
				norm += v * v
			}
			norm = math.Sqrt(norm)
			want := math.Pow(math.Sqrt(norm*norm+1e-12)-1, 2)
			assert.InDelta(t, want, valueOf(t, pen.Value), 1e-9)

			norms := pen.GradientNorms()
			require.Len(t, norms, 3)
			for _, n := range norms {
				assert.InDelta(t, norm, n, 1e-9)
			}
			assert.InDelta(t, norm, pen.MeanGradientNorm(), 1e-9)
		})
	}
}

func TestPenalty_IsDifferentiableWithRespectToCritic(t *testing.T) {
	critic := newLinearCritic(1, 1, 1, 1)
	ev := gan.NewPenaltyEvaluator(gan.ConstantSampler(0.5))

	g := G.NewGraph()
	params := critic.Bind(g)
	pen, err := ev.Build(g, critic, params, histories(2, 2, 2, 0), histories(2, 2, 2, 1))
	require.NoError(t, err)
	grads, err := G.Grad(pen.Value, params...)
	require.NoError(t, err)
	runGraph(t, g)

	// d/dw (||w|| - 1)^2 = 2 (||w|| - 1) w / ||w|| = w for w = ones(4)
	got := grads[0].Value().Data().([]float64)
	require.Len(t, got, 4)
	for _, v := range got {
		assert.InDelta(t, 1.0, v, 1e-6)
	}
}

func TestPenalty_ReproducibleWithConstantAlpha(t *testing.T) {
	critic, err := nn.NewCritic(3, 1, 5, 11)
	require.NoError(t, err)
	real, fake := histories(4, 4, 1, 0), histories(4, 4, 1, 0.3)

	eval := func() (float64, []float64) {
		ev := gan.NewPenaltyEvaluator(gan.ConstantSampler(0.25))
		g := G.NewGraph()
		params := critic.Bind(g)
		pen, err := ev.Build(g, critic, params, real, fake)
		require.NoError(t, err)
		runGraph(t, g)
		assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, pen.Alpha)
		return valueOf(t, pen.Value), pen.GradientNorms()
	}

	v1, n1 := eval()
	v2, n2 := eval()
	assert.Equal(t, v1, v2)
	assert.Equal(t, n1, n2)
	assert.False(t, math.IsNaN(v1))
	assert.GreaterOrEqual(t, v1, 0.0)
}

// symbolicCritic hides any explicit input gradient so the penalty falls
// back to differentiating the wrapped network.
type symbolicCritic struct {
	gan.Network
}

func newBiasedCritic(t *testing.T) *nn.MLP {
	t.Helper()
	critic, err := nn.NewCritic(3, 1, 5, 11)
	require.NoError(t, err)
	b0 := critic.Weights()[1].Data().([]float64)
	for i := range b0 {
		b0[i] = 0.1*float64(i) - 0.2
	}
	return critic
}

func TestPenalty_MLPInputGradientMatchesSymbolic(t *testing.T) {
	critic := newBiasedCritic(t)
	real, fake := histories(4, 4, 1, 0), histories(4, 4, 1, 0.3)

	build := func(c gan.Network) (float64, []float64) {
		g := G.NewGraph()
		pen, err := gan.NewPenaltyEvaluator(gan.ConstantSampler(0.25)).Build(g, c, c.Bind(g), real, fake)
		require.NoError(t, err)
		runGraph(t, g)
		return valueOf(t, pen.Value), append([]float64(nil), pen.Grad.Value().Data().([]float64)...)
	}

	wantPen, wantGrad := build(symbolicCritic{critic})
	gotPen, gotGrad := build(critic)
	assert.InDelta(t, wantPen, gotPen, 1e-9)
	assert.InDeltaSlice(t, wantGrad, gotGrad, 1e-9)
}

func TestPenalty_MLPCriticSecondOrderMatchesFiniteDifference(t *testing.T) {
	critic := newBiasedCritic(t)
	real, fake := histories(4, 4, 1, 0), histories(4, 4, 1, 0.3)
	ev := gan.NewPenaltyEvaluator(gan.ConstantSampler(0.4))

	penalty := func() float64 {
		g := G.NewGraph()
		pen, err := ev.Build(g, critic, critic.Bind(g), real, fake)
		require.NoError(t, err)
		runGraph(t, g)
		return valueOf(t, pen.Value)
	}

	g := G.NewGraph()
	params := critic.Bind(g)
	pen, err := ev.Build(g, critic, params, real, fake)
	require.NoError(t, err)
	// w0, b0 and w1 shape the input gradient; the output bias does not.
	grads, err := G.Grad(pen.Value, params[:3]...)
	require.NoError(t, err)
	runGraph(t, g)

	const h = 1e-6
	for p := 0; p < 3; p++ {
		data := critic.Weights()[p].Data().([]float64)
		got := append([]float64(nil), grads[p].Value().Data().([]float64)...)
		require.Len(t, got, len(data))
		for _, i := range []int{0, len(data) / 2, len(data) - 1} {
			orig := data[i]
			data[i] = orig + h
			up := penalty()
			data[i] = orig - h
			down := penalty()
			data[i] = orig
			assert.InDelta(t, (up-down)/(2*h), got[i], 1e-6, "param %d index %d", p, i)
		}
	}
}

func TestPenalty_OutputBiasDoesNotReachPenalty(t *testing.T) {
	critic := newBiasedCritic(t)
	g := G.NewGraph()
	params := critic.Bind(g)
	pen, err := gan.NewPenaltyEvaluator(gan.ConstantSampler(0.5)).Build(g, critic, params, histories(2, 4, 1, 0), histories(2, 4, 1, 1))
	require.NoError(t, err)
	_, err = G.Grad(pen.Value, params[3])
	assert.Error(t, err)
}

func TestPenalty_ShapeMismatch(t *testing.T) {
	critic := newLinearCritic(1, 1, 1, 1)
	ev := gan.NewPenaltyEvaluator(gan.ConstantSampler(0.5))
	g := G.NewGraph()
	_, err := ev.Build(g, critic, critic.Bind(g), histories(2, 4, 1, 0), histories(3, 4, 1, 0))
	assert.ErrorIs(t, err, gan.ErrShapeMismatch)
}

func TestUniformSampler_SeededAndBounded(t *testing.T) {
	a := gan.NewUniformSampler(9).Alpha(50)
	b := gan.NewUniformSampler(9).Alpha(50)
	assert.Equal(t, a, b)
	for _, v := range a {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}
