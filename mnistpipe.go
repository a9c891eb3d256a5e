// Package mnistpipe evaluates a fixed two-layer classifier over the MNIST test set with
// a pipeline of persistent workers.
//
// The Evaluator loads the parameter tables, opens the image and label containers, runs
// the pipeline and collects statistics. The pipeline itself lives in package pipeline.
package mnistpipe

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"

	"github.com/chewxy/math32"
	"github.com/gorgonia/mnistpipe/encoding/gif"
	"github.com/gorgonia/mnistpipe/mnist"
	"github.com/gorgonia/mnistpipe/model"
	"github.com/gorgonia/mnistpipe/pipeline"
	"github.com/pkg/errors"
)

// size of the recorded screen
const (
	screenRows = 40
	screenCols = 130
)

// relative tolerance when comparing against the reference graph
const tolerance = 1e-3

// Evaluator is the entry point of the API. It owns the model, the sources and the
// displays for one run.
type Evaluator struct {
	Config
	Statistics

	model    *model.Model
	images   *mnist.Images
	labels   *mnist.Labels
	display  pipeline.Display
	pipe     *pipeline.Pipeline
	gifFile  *os.File
	recorder *gif.Encoder
	result   pipeline.Result

	buf    bytes.Buffer
	logger *log.Logger
}

// New loads everything conf refers to. display may be nil, in which case only the GIF
// recorder (if configured) sees the screen.
func New(conf Config, display pipeline.Display) (*Evaluator, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	e := &Evaluator{Config: conf}
	e.logger = log.New(&e.buf, "", log.Ltime)

	var err error
	if e.model, err = model.Load(model.Dir(conf.ParamDir), conf.Shape); err != nil {
		return nil, errors.WithMessage(err, "loading parameters")
	}
	e.logger.Printf("Loaded %d-%d-%d network from %s", conf.Shape.Input, conf.Shape.Hidden, model.Classes, conf.ParamDir)

	if err = e.open(); err != nil {
		e.Close()
		return nil, err
	}

	var displays tee
	if display != nil {
		displays = append(displays, display)
	}
	if conf.GIFFile != "" {
		if e.gifFile, err = os.Create(conf.GIFFile); err != nil {
			e.Close()
			return nil, errors.WithStack(err)
		}
		e.recorder = gif.NewEncoder(e.gifFile, screenRows, screenCols, conf.GIFEvery)
		displays = append(displays, e.recorder)
	}
	e.display = displays
	return e, nil
}

func (e *Evaluator) open() (err error) {
	if e.images, err = mnist.OpenImages(e.ImageFile); err != nil {
		return err
	}
	if e.labels, err = mnist.OpenLabels(e.LabelFile); err != nil {
		return err
	}
	if e.images.Size() != e.Shape.Input {
		return errors.Errorf("%dx%d images do not fit a network with %d inputs", e.images.Rows(), e.images.Cols(), e.Shape.Input)
	}
	if e.images.Len() != e.labels.Len() {
		return errors.Wrapf(ErrMisaligned, "%d images, %d labels", e.images.Len(), e.labels.Len())
	}
	if e.Samples == 0 {
		e.Samples = e.images.Len()
	}
	e.logger.Printf("Opened %d %dx%d images", e.images.Len(), e.images.Rows(), e.images.Cols())
	return nil
}

// Run evaluates Samples samples. Statistics are updated, and the optional outputs are
// written, only if the run completes.
func (e *Evaluator) Run() (pipeline.Result, error) {
	conf := pipeline.Config{
		Workers: e.Workers,
		Samples: e.Samples,
		Rows:    e.images.Rows(),
		Cols:    e.images.Cols(),
	}
	p, err := pipeline.New(e.model, conf, e.images, e.labels, e.display)
	if err != nil {
		return pipeline.Result{}, err
	}
	e.pipe = p
	if e.DotFile != "" {
		if err = ioutil.WriteFile(e.DotFile, []byte(pipeline.ToDot(e.Workers)), 0644); err != nil {
			return pipeline.Result{}, errors.WithStack(err)
		}
	}

	e.display.Clear()
	e.display.WriteAt(1, 5, fmt.Sprintf("%s: a simple 2-layer neural network processing the MNIST handwriting images", e.Name))
	e.logger.Printf("Evaluating %d samples with %d hidden workers", e.Samples, e.Workers)
	if e.result, err = p.Run(); err != nil {
		e.logger.Printf("Run failed: %v", err)
		return e.result, err
	}
	for _, o := range e.result.Outcomes {
		e.record(o)
	}
	e.logger.Printf("%d mismatches out of %d samples in %v", e.result.Mismatches, e.result.Cycles, e.result.Elapsed)

	if e.StatsFile != "" {
		if err = e.Dump(e.StatsFile); err != nil {
			return e.result, errors.WithMessage(err, "writing statistics")
		}
	}
	if e.CrossCheck > 0 {
		if err = e.Verify(e.CrossCheck); err != nil {
			return e.result, err
		}
	}
	return e.result, nil
}

// Verify replays the first n samples of the last run through the reference graph and
// compares its outputs with the ones the pipeline produced.
func (e *Evaluator) Verify(n int) error {
	if n > len(e.result.Outcomes) {
		n = len(e.result.Outcomes)
	}
	images, err := mnist.OpenImages(e.ImageFile)
	if err != nil {
		return err
	}
	defer images.Close()
	ref, err := model.NewReference(e.model)
	if err != nil {
		return err
	}
	defer ref.Close()

	raw := make([]byte, images.Size())
	px := make([]float32, len(raw))
	var errs manyErr
	for i := 0; i < n; i++ {
		if err = images.Next(raw); err != nil {
			return err
		}
		for j, v := range raw {
			px[j] = float32(v)
		}
		_, output, err := ref.Infer(px)
		if err != nil {
			return err
		}
		got := e.result.Outcomes[i].Outputs
		for c, want := range output {
			if math32.Abs(got[c]-want) > tolerance*math32.Max(1, math32.Abs(want)) {
				errs = append(errs, errors.Errorf("sample %d, class %d: pipeline %v, reference %v", i, c, got[c], want))
			}
		}
	}
	e.logger.Printf("Cross-checked %d samples, %d differences", n, len(errs))
	return errs.orNil()
}

// Log writes the evaluator's log to w, followed by the role trace of the last run when
// built with the debug tag.
func (e *Evaluator) Log(w io.Writer) {
	fmt.Fprint(w, e.buf.String())
	if e.pipe == nil {
		return
	}
	if trace := e.pipe.Log(); trace != "" {
		fmt.Fprintln(w, "\nroles:")
		fmt.Fprint(w, trace)
	}
}

// Close closes the sources and writes the GIF recording, if any.
func (e *Evaluator) Close() error {
	var errs manyErr
	if e.images != nil {
		if err := e.images.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.labels != nil {
		if err := e.labels.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.recorder != nil {
		if err := e.recorder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.gifFile != nil {
		if err := e.gifFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs.orNil()
}
