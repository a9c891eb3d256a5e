package pipeline

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorgonia/mnistpipe/mnist"
	"github.com/gorgonia/mnistpipe/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

type memImages struct {
	samples [][]byte
	read    int
}

func (m *memImages) Next(pixels []byte) error {
	if m.read >= len(m.samples) {
		return errors.Wrapf(mnist.ErrExhausted, "image %d", m.read)
	}
	copy(pixels, m.samples[m.read])
	m.read++
	return nil
}

type memLabels struct {
	labels []int
	read   int
}

func (m *memLabels) Next() (int, error) {
	if m.read >= len(m.labels) {
		return 0, errors.Wrapf(mnist.ErrExhausted, "label %d", m.read)
	}
	l := m.labels[m.read]
	m.read++
	return l, nil
}

// identityModel copies each pixel into the hidden unit with the same index. Output
// class c < 4 reads hidden unit c with weight 1, the other classes are biased far
// below zero.
func identityModel(t *testing.T) *model.Model {
	t.Helper()
	const width = 4
	hw := make([]float32, width*width)
	for i := 0; i < width; i++ {
		hw[i*width+i] = 1
	}
	hidden, err := model.NewLayer(tensor.New(tensor.WithShape(width, width), tensor.WithBacking(hw)), make([]float32, width))
	require.NoError(t, err)

	ow := make([]float32, model.Classes*width)
	ob := make([]float32, model.Classes)
	for c := 0; c < model.Classes; c++ {
		if c < width {
			ow[c*width+c] = 1
		} else {
			ob[c] = -10
		}
	}
	output, err := model.NewLayer(tensor.New(tensor.WithShape(model.Classes, width), tensor.WithBacking(ow)), ob)
	require.NoError(t, err)

	m, err := model.New(model.Shape{Input: width, Hidden: width}, hidden, output)
	require.NoError(t, err)
	return m
}

func randomModel(t *testing.T, r *rand.Rand, shape model.Shape) *model.Model {
	t.Helper()
	random := func(n int) []float32 {
		retVal := make([]float32, n)
		for i := range retVal {
			retVal[i] = r.Float32() - 0.5
		}
		return retVal
	}
	hidden, err := model.NewLayer(tensor.New(tensor.WithShape(shape.Hidden, shape.Input), tensor.WithBacking(random(shape.Hidden*shape.Input))), random(shape.Hidden))
	require.NoError(t, err)
	output, err := model.NewLayer(tensor.New(tensor.WithShape(model.Classes, shape.Hidden), tensor.WithBacking(random(model.Classes*shape.Hidden))), random(model.Classes))
	require.NoError(t, err)
	m, err := model.New(shape, hidden, output)
	require.NoError(t, err)
	return m
}

// run runs the pipeline and fails the test if it does not finish in time.
func run(t *testing.T, p *Pipeline) (Result, error) {
	t.Helper()
	type ret struct {
		res Result
		err error
	}
	ch := make(chan ret, 1)
	go func() {
		res, err := p.Run()
		ch <- ret{res, err}
	}()
	select {
	case r := <-ch:
		return r.res, r.err
	case <-time.After(10 * time.Second):
		t.Fatalf("pipeline with %d workers did not finish %d cycles", p.Workers, p.Samples)
	}
	return Result{}, nil
}

func TestEndToEnd(t *testing.T) {
	m := identityModel(t)
	images := &memImages{samples: [][]byte{
		{0, 9, 0, 0},
		{0, 0, 1, 7},
		{5, 0, 0, 0},
	}}
	labels := &memLabels{labels: []int{1, 2, 0}}

	for _, workers := range []int{1, 2, 4} {
		images.read, labels.read = 0, 0
		p, err := New(m, Config{Workers: workers, Samples: 3, Rows: 2, Cols: 2}, images, labels, nil)
		require.NoError(t, err)

		res, err := run(t, p)
		require.NoError(t, err)

		var predictions []int
		for _, o := range res.Outcomes {
			predictions = append(predictions, o.Prediction)
		}
		if diff := cmp.Diff([]int{1, 3, 0}, predictions); diff != "" {
			t.Errorf("%d workers: predictions differ (-want +got):\n%s", workers, diff)
		}
		assert.Equal(t, 3, res.Cycles)
		assert.Equal(t, 1, res.Mismatches, "only the second sample is mislabelled")
		assert.InDelta(t, 2.0/3.0, res.Accuracy(), 1e-9)

		// output of class 1 for the first sample: 9 + logistic(9)
		assert.InDelta(t, 9+model.Logistic(9), res.Outcomes[0].Outputs[1], 1e-5)
		// untouched classes below 4 score logistic(0)
		assert.InDelta(t, 0.5, res.Outcomes[0].Outputs[0], 1e-6)
	}
}

func TestLiveness(t *testing.T) {
	r := rand.New(rand.NewSource(1337))
	shape := model.Shape{Input: 4, Hidden: 12}
	m := randomModel(t, r, shape)
	for workers := 1; workers <= shape.Hidden; workers++ {
		if shape.Hidden%workers != 0 {
			continue
		}
		images := &memImages{samples: [][]byte{{1, 2, 3, 4}}}
		labels := &memLabels{labels: []int{3}}
		p, err := New(m, Config{Workers: workers, Samples: 1, Rows: 2, Cols: 2}, images, labels, nil)
		require.NoError(t, err)
		res, err := run(t, p)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Cycles, "%d workers", workers)
	}
}

func TestDeterministicAcrossWorkers(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	shape := model.Shape{Input: 9, Hidden: 24}
	m := randomModel(t, r, shape)

	const samples = 20
	raw := make([][]byte, samples)
	lbls := make([]int, samples)
	for i := range raw {
		raw[i] = make([]byte, shape.Input)
		r.Read(raw[i])
		lbls[i] = r.Intn(model.Classes)
	}

	var want []Outcome
	var p *Pipeline
	for _, workers := range []int{1, 2, 3, 4, 6, 8, 12, 24} {
		var err error
		p, err = New(m, Config{Workers: workers, Samples: samples, Rows: 3, Cols: 3}, &memImages{samples: raw}, &memLabels{labels: lbls}, nil)
		require.NoError(t, err)
		res, err := run(t, p)
		require.NoError(t, err)
		if want == nil {
			want = res.Outcomes
			continue
		}
		if diff := cmp.Diff(want, res.Outcomes); diff != "" {
			t.Errorf("%d workers disagree with 1 worker (-want +got):\n%s", workers, diff)
		}
	}

	// every hidden unit matches max(0, bias + Σ pixel·weight) for the last sample
	last := raw[samples-1]
	for j := 0; j < shape.Hidden; j++ {
		sum := float64(m.Hidden.Bias[j])
		for i, px := range last {
			sum += float64(px) * float64(m.Hidden.Weights[j][i])
		}
		if sum < 0 {
			sum = 0
		}
		assert.InDelta(t, sum, p.hidden[j], 1e-3, "hidden unit %d", j)
	}
}

func TestMismatchCount(t *testing.T) {
	m := identityModel(t)
	var samples [][]byte
	var labels []int
	var wantMismatches int
	for i := 0; i < 40; i++ {
		px := make([]byte, 4)
		px[i%4] = byte(i + 1)
		samples = append(samples, px)
		label := i % 4
		if i%3 == 0 {
			label = 9
			wantMismatches++
		}
		labels = append(labels, label)
	}
	p, err := New(m, Config{Workers: 2, Samples: len(samples), Rows: 2, Cols: 2}, &memImages{samples: samples}, &memLabels{labels: labels}, nil)
	require.NoError(t, err)
	res, err := run(t, p)
	require.NoError(t, err)

	assert.Equal(t, wantMismatches, res.Mismatches)
	var seen int
	for i, o := range res.Outcomes {
		assert.Equal(t, i, o.Cycle)
		if o.Prediction != o.Label {
			seen++
		}
	}
	assert.Equal(t, wantMismatches, seen)
}

func TestExhaustion(t *testing.T) {
	m := identityModel(t)

	p, err := New(m, Config{Workers: 2, Samples: 3, Rows: 2, Cols: 2},
		&memImages{samples: [][]byte{{1, 0, 0, 0}}},
		&memLabels{labels: []int{0, 0, 0}}, nil)
	require.NoError(t, err)
	_, err = run(t, p)
	assert.Equal(t, mnist.ErrExhausted, errors.Cause(err), "images run out")

	p, err = New(m, Config{Workers: 2, Samples: 3, Rows: 2, Cols: 2},
		&memImages{samples: [][]byte{{1, 0, 0, 0}, {1, 0, 0, 0}, {1, 0, 0, 0}}},
		&memLabels{labels: []int{0, 0}}, nil)
	require.NoError(t, err)
	_, err = run(t, p)
	assert.Equal(t, mnist.ErrExhausted, errors.Cause(err), "labels run out on the last cycle")
}

func TestReuseAfterFailure(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	shape := model.Shape{Input: 4, Hidden: 8}
	m := randomModel(t, r, shape)

	const samples = 50
	raw := make([][]byte, samples)
	lbls := make([]int, samples)
	for i := range raw {
		raw[i] = []byte{byte(r.Intn(256)), byte(r.Intn(256)), byte(r.Intn(256)), byte(r.Intn(256))}
		lbls[i] = r.Intn(model.Classes)
	}
	clean := func() []Outcome {
		p, err := New(m, Config{Workers: 4, Samples: samples, Rows: 2, Cols: 2}, &memImages{samples: raw}, &memLabels{labels: lbls}, nil)
		require.NoError(t, err)
		res, err := run(t, p)
		require.NoError(t, err)
		return res.Outcomes
	}
	want := clean()

	for i := 0; i < 5; i++ {
		p, err := New(m, Config{Workers: 4, Samples: samples, Rows: 2, Cols: 2},
			&memImages{samples: raw[:1]},
			&memLabels{labels: lbls}, nil)
		require.NoError(t, err)
		_, err = run(t, p)
		require.Equal(t, mnist.ErrExhausted, errors.Cause(err))

		if diff := cmp.Diff(want, clean()); diff != "" {
			t.Errorf("run %d after a failed run differs (-want +got):\n%s", i, diff)
		}
	}
}

func TestNewInvalid(t *testing.T) {
	m := identityModel(t)
	images, labels := &memImages{}, &memLabels{}

	_, err := New(m, Config{Workers: 3, Samples: 1, Rows: 2, Cols: 2}, images, labels, nil)
	assert.Equal(t, ErrPartition, errors.Cause(err))

	_, err = New(m, Config{Workers: 0, Samples: 1, Rows: 2, Cols: 2}, images, labels, nil)
	assert.Error(t, err)

	_, err = New(m, Config{Workers: 1, Samples: 1, Rows: 3, Cols: 3}, images, labels, nil)
	assert.Error(t, err)
}

type screen struct {
	writes  []string
	flushes int
}

func (s *screen) Clear() { s.writes = nil }
func (s *screen) WriteAt(row, col int, text string) {
	s.writes = append(s.writes, fmt.Sprintf("%d,%d:%s", row, col, text))
}
func (s *screen) Flush() error { s.flushes++; return nil }

func TestDisplay(t *testing.T) {
	m := identityModel(t)
	s := new(screen)
	p, err := New(m, Config{Workers: 1, Samples: 2, Rows: 2, Cols: 2},
		&memImages{samples: [][]byte{{0, 9, 0, 0}, {3, 0, 0, 0}}},
		&memLabels{labels: []int{1, 1}}, s)
	require.NoError(t, err)
	_, err = run(t, p)
	require.NoError(t, err)

	want := []string{
		// cycle 0, feeder
		"7,5:----",
		"8,5:|  |",
		"9,5:|  |",
		"10,5:----",
		"5,5:Testing image No.     1 of     2 images [50%]",
		"8,6:.X",
		"9,6:..",
		// cycle 0, collector
		"5,66:Result: Correct=    1  Incorrect=    0  Success-Rate= 100.00% ",
		"6,66:Prediction: 1   Actual: 1 ",
		// cycle 1
		"5,5:Testing image No.     2 of     2 images [100%]",
		"8,6:X.",
		"9,6:..",
		"5,66:Result: Correct=    1  Incorrect=    1  Success-Rate= 50.00% ",
		"6,66:Prediction: 0   Actual: 1 ",
	}
	if diff := cmp.Diff(want, s.writes); diff != "" {
		t.Errorf("screen differs (-want +got):\n%s", diff)
	}
	assert.Equal(t, 4, s.flushes)
}
