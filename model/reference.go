package model

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Reference evaluates a Model as an expression graph, one sample at a time.
// It shares the weight matrices of the model but never writes to the layers' outputs,
// so it can be used to check values computed elsewhere.
type Reference struct {
	g     *G.ExprGraph
	m     G.VM
	x     *G.Node
	input *tensor.Dense

	hidden G.Value
	output G.Value
}

// NewReference builds the graph for m.
func NewReference(m *Model) (*Reference, error) {
	r := &Reference{
		g:     G.NewGraph(),
		input: tensor.New(tensor.WithShape(m.Input), tensor.Of(tensor.Float32)),
	}
	r.x = G.NewVector(r.g, G.Float32, G.WithShape(m.Input), G.WithName("x"))

	var b builder
	hidden := b.affine(r.x, m.Hidden, "hidden")
	hidden = b.do(func() (*G.Node, error) { return G.Rectify(hidden) })
	linear := b.affine(hidden, m.Output, "output")
	logistic := b.do(func() (*G.Node, error) { return G.Sigmoid(linear) })
	output := b.do(func() (*G.Node, error) { return G.Add(linear, logistic) })
	if b.err != nil {
		return nil, b.err
	}
	G.Read(hidden, &r.hidden)
	G.Read(output, &r.output)
	r.m = G.NewTapeMachine(r.g)
	return r, nil
}

// Infer runs one sample through the graph and returns copies of the hidden and output activations.
func (r *Reference) Infer(pixels []float32) (hidden, output []float32, err error) {
	if len(pixels) != r.input.Shape().TotalSize() {
		return nil, nil, errors.Errorf("expected %d pixels, got %d", r.input.Shape().TotalSize(), len(pixels))
	}
	copy(r.input.Data().([]float32), pixels)
	r.m.Reset()
	if err = G.Let(r.x, r.input); err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if err = r.m.RunAll(); err != nil {
		return nil, nil, errors.WithStack(err)
	}
	hidden = append([]float32(nil), r.hidden.Data().([]float32)...)
	output = append([]float32(nil), r.output.Data().([]float32)...)
	return hidden, output, nil
}

// Close releases the VM.
func (r *Reference) Close() error { return r.m.Close() }

type builder struct {
	err error
}

func (b *builder) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if b.err != nil {
		return nil
	}
	if retVal, b.err = f(); b.err != nil {
		b.err = errors.WithStack(b.err)
	}
	return
}

// affine returns W·x + b for the given layer.
func (b *builder) affine(x *G.Node, l *Layer, name string) *G.Node {
	if b.err != nil {
		return nil
	}
	bias := tensor.New(tensor.WithShape(l.Units()), tensor.WithBacking(l.Bias))
	w := G.NewMatrix(x.Graph(), G.Float32, G.WithShape(l.W.Shape()...), G.WithName(name+"_w"), G.WithValue(l.W))
	bn := G.NewVector(x.Graph(), G.Float32, G.WithShape(l.Units()), G.WithName(name+"_b"), G.WithValue(bias))
	wx := b.do(func() (*G.Node, error) { return G.Mul(w, x) })
	return b.do(func() (*G.Node, error) { return G.Add(wx, bn) })
}
