// Package gan implements Wasserstein GAN training with gradient penalty over
// windowed sequences.
package gan

import (
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Network is a differentiable function whose weights live outside any graph.
//
// A generator maps [B,L,D] windows to [B,F] predictions. A critic maps
// [B,L+1,F] histories to [B,1] scores.
type Network interface {
	// Bind creates one node per weight tensor in g, in Weights order.
	Bind(g *G.ExprGraph) G.Nodes
	// Forward applies the network to x using nodes returned by Bind.
	Forward(params G.Nodes, x *G.Node) (*G.Node, error)
	// Weights returns the owned parameter tensors. Order is stable.
	Weights() []*tensor.Dense
}

// InputGradienter is implemented by critics that express the gradient of
// their summed scores with respect to x as an ordinary forward expression.
// Gorgonia reuses derivatives recorded by an earlier Grad call on the same
// graph, so a penalty built on a symbolic input gradient cannot be
// differentiated again through nonlinear layers.
type InputGradienter interface {
	InputGradient(params G.Nodes, x *G.Node) (*G.Node, error)
}

// valueGrad adapts an owned weight and a gradient read back from a graph to
// the solver interface.
type valueGrad struct {
	value *tensor.Dense
	grad  G.Value
}

func (v valueGrad) Value() G.Value         { return v.value }
func (v valueGrad) Grad() (G.Value, error) { return v.grad, nil }

func denseNode(g *G.ExprGraph, t *tensor.Dense, name string) *G.Node {
	shape := t.Shape()
	return G.NewTensor(g, tensor.Float64, len(shape), G.WithShape(shape...), G.WithName(name), G.WithValue(t))
}

func newDense(data []float64, shape ...int) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

func float64s(n *G.Node) []float64 {
	switch v := n.Value().(type) {
	case *tensor.Dense:
		switch d := v.Data().(type) {
		case []float64:
			return d
		case float64:
			return []float64{d}
		}
	case *G.F64:
		return []float64{float64(*v)}
	}
	return nil
}

func scalar(n *G.Node) float64 {
	vs := float64s(n)
	if len(vs) == 0 {
		return 0
	}
	return vs[0]
}
