// Package nn provides the minimal differentiable networks used by the
// forecaster: a one-hidden-layer tanh MLP over flattened sequences.
package nn

import (
	"fmt"
	"math"
	"math/rand"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// MLP is x -> tanh(x W0 + b0) W1 + b1 over a flattened [B, Steps, Width]
// input. Weights are owned by the MLP and bound into graphs on demand.
type MLP struct {
	name    string
	steps   int
	width   int
	hidden  int
	outputs int
	weights []*tensor.Dense
}

// Shape describes an MLP's input and layer sizes.
type Shape struct {
	Steps   int `json:"steps"`
	Width   int `json:"width"`
	Hidden  int `json:"hidden"`
	Outputs int `json:"outputs"`
}

// NewMLP initialises weights with Glorot-uniform draws from seed and zero
// biases.
func NewMLP(name string, s Shape, seed int64) (*MLP, error) {
	if s.Steps < 1 || s.Width < 1 || s.Hidden < 1 || s.Outputs < 1 {
		return nil, fmt.Errorf("%s: invalid shape %+v", name, s)
	}
	rng := rand.New(rand.NewSource(seed))
	in := s.Steps * s.Width
	m := &MLP{name: name, steps: s.Steps, width: s.Width, hidden: s.Hidden, outputs: s.Outputs}
	m.weights = []*tensor.Dense{
		glorot(rng, in, s.Hidden),
		zeros(1, s.Hidden),
		glorot(rng, s.Hidden, s.Outputs),
		zeros(1, s.Outputs),
	}
	return m, nil
}

// NewGenerator maps [B, lookback, features] windows to [B, outputs].
func NewGenerator(lookback, features, hidden, outputs int, seed int64) (*MLP, error) {
	return NewMLP("generator", Shape{Steps: lookback, Width: features, Hidden: hidden, Outputs: outputs}, seed)
}

// NewCritic maps [B, lookback+1, outputs] histories to [B, 1] scores.
func NewCritic(lookback, outputs, hidden int, seed int64) (*MLP, error) {
	return NewMLP("critic", Shape{Steps: lookback + 1, Width: outputs, Hidden: hidden, Outputs: 1}, seed)
}

// Name returns the network name used for graph nodes and snapshots.
func (m *MLP) Name() string { return m.name }

// Shape returns the layer sizes.
func (m *MLP) Shape() Shape {
	return Shape{Steps: m.steps, Width: m.width, Hidden: m.hidden, Outputs: m.outputs}
}

// Weights returns W0, b0, W1, b1.
func (m *MLP) Weights() []*tensor.Dense { return m.weights }

// Bind creates weight nodes in g valued with the owned tensors.
func (m *MLP) Bind(g *G.ExprGraph) G.Nodes {
	names := []string{"w0", "b0", "w1", "b1"}
	out := make(G.Nodes, len(m.weights))
	for i, w := range m.weights {
		out[i] = G.NewMatrix(g, tensor.Float64,
			G.WithShape(w.Shape()...),
			G.WithName(m.name+"_"+names[i]),
			G.WithValue(w),
		)
	}
	return out
}

// Forward applies the MLP to x of shape [B, Steps, Width].
func (m *MLP) Forward(params G.Nodes, x *G.Node) (*G.Node, error) {
	if len(params) != 4 {
		return nil, fmt.Errorf("%s: %d params, want 4", m.name, len(params))
	}
	s := x.Shape()
	if len(s) != 3 || s[1] != m.steps || s[2] != m.width {
		return nil, fmt.Errorf("%s: input %v, want [B %d %d]", m.name, s, m.steps, m.width)
	}
	flat, err := G.Reshape(x, tensor.Shape{s[0], m.steps * m.width})
	if err != nil {
		return nil, fmt.Errorf("%s: flatten: %w", m.name, err)
	}
	h, err := dense(flat, params[0], params[1])
	if err != nil {
		return nil, fmt.Errorf("%s: hidden: %w", m.name, err)
	}
	if h, err = G.Tanh(h); err != nil {
		return nil, fmt.Errorf("%s: activation: %w", m.name, err)
	}
	out, err := dense(h, params[2], params[3])
	if err != nil {
		return nil, fmt.Errorf("%s: output: %w", m.name, err)
	}
	return out, nil
}

// InputGradient returns d sum(Forward(x)) / dx built from forward ops:
// reshape((1 - y^2) * (1 W1^T)) W0^T where y = tanh(x W0 + b0). The output
// bias does not appear in it.
func (m *MLP) InputGradient(params G.Nodes, x *G.Node) (*G.Node, error) {
	if len(params) != 4 {
		return nil, fmt.Errorf("%s: %d params, want 4", m.name, len(params))
	}
	s := x.Shape()
	if len(s) != 3 || s[1] != m.steps || s[2] != m.width {
		return nil, fmt.Errorf("%s: input %v, want [B %d %d]", m.name, s, m.steps, m.width)
	}
	flat, err := G.Reshape(x, tensor.Shape{s[0], m.steps * m.width})
	if err != nil {
		return nil, fmt.Errorf("%s: flatten: %w", m.name, err)
	}
	h, err := dense(flat, params[0], params[1])
	if err != nil {
		return nil, fmt.Errorf("%s: hidden: %w", m.name, err)
	}
	y, err := G.Tanh(h)
	if err != nil {
		return nil, fmt.Errorf("%s: activation: %w", m.name, err)
	}

	w1t, err := G.Transpose(params[2])
	if err != nil {
		return nil, err
	}
	dy, err := G.Mul(ones(x.Graph(), m.name, s[0], m.outputs), w1t)
	if err != nil {
		return nil, fmt.Errorf("%s: output gradient: %w", m.name, err)
	}
	y2, err := G.Square(y)
	if err != nil {
		return nil, err
	}
	dyy2, err := G.HadamardProd(dy, y2)
	if err != nil {
		return nil, err
	}
	dh, err := G.Sub(dy, dyy2)
	if err != nil {
		return nil, err
	}

	w0t, err := G.Transpose(params[0])
	if err != nil {
		return nil, err
	}
	dflat, err := G.Mul(dh, w0t)
	if err != nil {
		return nil, fmt.Errorf("%s: input gradient: %w", m.name, err)
	}
	return G.Reshape(dflat, s.Clone())
}

// dense is x W + 1 b. The bias is spread over the batch with a product
// against a ones column so the result stays differentiable to second order.
func dense(x, w, b *G.Node) (*G.Node, error) {
	xw, err := G.Mul(x, w)
	if err != nil {
		return nil, err
	}
	rows := x.Shape()[0]
	bb, err := G.Mul(ones(x.Graph(), w.Name(), rows, 1), b)
	if err != nil {
		return nil, err
	}
	return G.Add(xw, bb)
}

// ones returns a constant [rows, cols] matrix of ones in g. Nodes with the
// same name and shape are shared by the graph.
func ones(g *G.ExprGraph, prefix string, rows, cols int) *G.Node {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = 1
	}
	return G.NewMatrix(g, tensor.Float64,
		G.WithShape(rows, cols),
		G.WithName(fmt.Sprintf("%s_ones_%dx%d", prefix, rows, cols)),
		G.WithValue(tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(data))),
	)
}

func glorot(rng *rand.Rand, in, out int) *tensor.Dense {
	limit := math.Sqrt(6 / float64(in+out))
	data := make([]float64, in*out)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
	return tensor.New(tensor.WithShape(in, out), tensor.WithBacking(data))
}

func zeros(rows, cols int) *tensor.Dense {
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(make([]float64, rows*cols)))
}
