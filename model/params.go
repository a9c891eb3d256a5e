package model

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Names of the parameter tables inside a ParameterStore.
const (
	HiddenWeights = "hidden_weights.txt"
	HiddenBiases  = "hidden_biases.txt"
	OutputWeights = "out_weights.txt"
	OutputBiases  = "out_biases.txt"
)

// ErrTableShape is returned when a parameter table does not have the expected number of rows or columns.
var ErrTableShape = errors.New("parameter table has the wrong shape")

const maxLine = 1 << 20

// ParameterStore hands out the text tables of a trained network by name.
type ParameterStore interface {
	Open(name string) (io.ReadCloser, error)
}

// Dir is a ParameterStore backed by a directory.
type Dir string

func (d Dir) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(string(d), name))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return f, nil
}

// ReadTable reads a row-major table of whitespace separated numbers, one row per line.
// Blank lines are skipped. Both the number of rows and the number of columns of every
// row must match.
func ReadTable(r io.Reader, rows, cols int) (*tensor.Dense, error) {
	backing := make([]float32, 0, rows*cols)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)

	var row int
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if row >= rows {
			return nil, errors.Wrapf(ErrTableShape, "more than %d rows", rows)
		}
		if len(fields) != cols {
			return nil, errors.Wrapf(ErrTableShape, "row %d has %d columns, expected %d", row, len(fields), cols)
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d", row)
			}
			backing = append(backing, float32(v))
		}
		row++
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	if row != rows {
		return nil, errors.Wrapf(ErrTableShape, "got %d rows, expected %d", row, rows)
	}
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing)), nil
}

// Load reads the four parameter tables from the store and builds a model of the given shape.
func Load(store ParameterStore, shape Shape) (*Model, error) {
	if !shape.IsValid() {
		return nil, errors.Errorf("invalid shape %+v", shape)
	}
	hidden, err := loadLayer(store, HiddenWeights, HiddenBiases, shape.Hidden, shape.Input)
	if err != nil {
		return nil, errors.WithMessage(err, "hidden layer")
	}
	output, err := loadLayer(store, OutputWeights, OutputBiases, Classes, shape.Hidden)
	if err != nil {
		return nil, errors.WithMessage(err, "output layer")
	}
	return New(shape, hidden, output)
}

func loadLayer(store ParameterStore, weights, biases string, units, fanIn int) (*Layer, error) {
	w, err := readTable(store, weights, units, fanIn)
	if err != nil {
		return nil, err
	}
	b, err := readTable(store, biases, units, 1)
	if err != nil {
		return nil, err
	}
	return NewLayer(w, b.Data().([]float32))
}

func readTable(store ParameterStore, name string, rows, cols int) (*tensor.Dense, error) {
	rc, err := store.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	t, err := ReadTable(rc, rows, cols)
	if err != nil {
		return nil, errors.WithMessage(err, name)
	}
	return t, nil
}
