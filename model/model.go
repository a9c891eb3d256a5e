package model

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
)

// Classes is the number of output units. There is one per digit.
const Classes = 10

// Shape describes the widths of the network. The output width is always Classes.
type Shape struct {
	Input  int // pixels per sample
	Hidden int // hidden units
}

// DefaultShape is the 784-256-10 network used for MNIST.
func DefaultShape() Shape { return Shape{Input: 28 * 28, Hidden: 256} }

func (s Shape) IsValid() bool { return s.Input > 0 && s.Hidden > 0 }

// Layer is a fully connected layer. Unit i owns row i of W and Bias[i]. A Layer is
// read-only once built, activations live in buffers owned by the caller.
type Layer struct {
	W       *tensor.Dense // units × fan-in
	Weights [][]float32   // row views into W
	Bias    []float32
}

// NewLayer creates a layer from a units × fan-in weight matrix and one bias per unit.
func NewLayer(w *tensor.Dense, bias []float32) (*Layer, error) {
	if w.Dims() != 2 {
		return nil, errors.Wrapf(ErrTableShape, "weights must be a matrix, got shape %v", w.Shape())
	}
	rows, err := native.MatrixF32(w)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to view weights as rows")
	}
	if len(bias) != len(rows) {
		return nil, errors.Wrapf(ErrTableShape, "%d biases for %d units", len(bias), len(rows))
	}
	return &Layer{
		W:       w,
		Weights: rows,
		Bias:    bias,
	}, nil
}

// Units returns the number of units in the layer.
func (l *Layer) Units() int { return len(l.Bias) }

// FanIn returns the length of each unit's weight vector.
func (l *Layer) FanIn() int { return l.W.Shape()[1] }

// Model is the two layer classifier: a rectified hidden layer and Classes output units.
type Model struct {
	Shape
	Hidden *Layer
	Output *Layer
}

// New checks that the layers agree with the shape and returns the model.
func New(shape Shape, hidden, output *Layer) (*Model, error) {
	switch {
	case !shape.IsValid():
		return nil, errors.Errorf("invalid shape %+v", shape)
	case hidden.Units() != shape.Hidden || hidden.FanIn() != shape.Input:
		return nil, errors.Wrapf(ErrTableShape, "hidden layer is %dx%d, expected %dx%d", hidden.Units(), hidden.FanIn(), shape.Hidden, shape.Input)
	case output.Units() != Classes || output.FanIn() != shape.Hidden:
		return nil, errors.Wrapf(ErrTableShape, "output layer is %dx%d, expected %dx%d", output.Units(), output.FanIn(), Classes, shape.Hidden)
	}
	return &Model{Shape: shape, Hidden: hidden, Output: output}, nil
}
