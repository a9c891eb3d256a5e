// Package pipeline evaluates a model over a stream of samples with a fixed set of
// persistent roles: one feeder, H hidden workers, one output worker per class and one
// collector. The roles share single, unbuffered slots for the sample, the hidden
// activations and the outputs, and are coordinated only by counting handshakes, so
// exactly one sample is in flight at any time.
//
// Per cycle:
//
//	feeder:    wait H admission       → decode → display → sample-ready to each hidden worker
//	hidden h:  wait 10 output-retired → wait sample-ready → compute partition
//	           → hidden-ready to each output worker → 1 admission
//	output c:  wait H hidden-ready    → wait result-retired → compute class c
//	           → output-retired to each hidden worker → 1 output-ready
//	collector: wait 10 output-ready   → decode label → predict → display
//	           → result-retired to each output worker
//
// Display ownership alternates between the feeder and the collector.
package pipeline

import (
	"sync"
	"time"

	"github.com/gorgonia/mnistpipe/model"
	"github.com/pkg/errors"
)

// ImageSource produces fixed-shape raster records, one per call, into pixels.
type ImageSource interface {
	Next(pixels []byte) error
}

// LabelSource produces class ids in the same order as the ImageSource produces samples.
type LabelSource interface {
	Next() (int, error)
}

// Display is a textual surface addressed by 1-based row and column.
type Display interface {
	Clear()
	WriteAt(row, col int, text string)
	// Flush makes everything written so far visible.
	Flush() error
}

// Config configures a pipeline.
type Config struct {
	Workers    int // hidden workers
	Samples    int // number of cycles
	Rows, Cols int // sample geometry
}

func (c Config) IsValid() bool {
	return c.Workers >= 1 && c.Samples >= 0 && c.Rows > 0 && c.Cols > 0
}

// Outcome is what the collector saw for one sample.
type Outcome struct {
	Cycle      int
	Prediction int
	Label      int
	Outputs    [model.Classes]float32
}

// Result summarises a run.
type Result struct {
	Cycles     int
	Mismatches int
	Outcomes   []Outcome
	Elapsed    time.Duration
}

// Accuracy returns the fraction of correctly predicted samples.
func (r Result) Accuracy() float64 {
	if r.Cycles == 0 {
		return 0
	}
	return 1 - float64(r.Mismatches)/float64(r.Cycles)
}

// Pipeline runs a model over Samples samples. A Pipeline consumes its sources and is meant to be run once.
type Pipeline struct {
	Config
	model   *model.Model
	images  ImageSource
	labels  LabelSource
	display Display

	// shared slots
	raw    []byte
	sample []float32
	hidden []float32 // written by the hidden workers, read by the output workers
	output []float32 // written by the output workers, read by the collector

	admission     handshake   // hidden workers → feeder
	sampleReady   []handshake // feeder → hidden worker
	hiddenReady   []handshake // hidden workers → output worker
	outputRetired []handshake // output workers → hidden worker
	outputReady   handshake   // output workers → collector
	resultRetired []handshake // collector → output worker

	feederDisplay    handshake
	collectorDisplay handshake

	// owned by the collector
	mismatches int
	outcomes   []Outcome

	fatal chan error

	lumberjack
}

// New creates a pipeline. A nil display discards everything written to it.
func New(m *model.Model, conf Config, images ImageSource, labels LabelSource, display Display) (*Pipeline, error) {
	if !conf.IsValid() {
		return nil, errors.Errorf("invalid pipeline config %+v", conf)
	}
	if err := CheckPartition(m.Hidden.Units(), conf.Workers); err != nil {
		return nil, err
	}
	if conf.Rows*conf.Cols != m.Input {
		return nil, errors.Errorf("%dx%d samples do not fit a model with %d inputs", conf.Rows, conf.Cols, m.Input)
	}
	if display == nil {
		display = discard{}
	}
	p := &Pipeline{
		Config:     conf,
		model:      m,
		images:     images,
		labels:     labels,
		display:    display,
		raw:        make([]byte, m.Input),
		sample:     make([]float32, m.Input),
		hidden:     make([]float32, m.Hidden.Units()),
		output:     make([]float32, model.Classes),
		lumberjack: makeLumberJack(),
	}
	return p, nil
}

func (p *Pipeline) reset() {
	h := p.Workers
	p.admission = newHandshake(h, h)
	p.sampleReady = newHandshakes(h, 1, 0)
	p.hiddenReady = newHandshakes(model.Classes, h, 0)
	p.outputRetired = newHandshakes(h, model.Classes, model.Classes)
	p.outputReady = newHandshake(model.Classes, 0)
	p.resultRetired = newHandshakes(model.Classes, 1, 1)

	p.feederDisplay = newHandshake(1, 1)
	p.collectorDisplay = newHandshake(1, 0)

	p.mismatches = 0
	p.outcomes = make([]Outcome, 0, p.Samples)
	p.fatal = make(chan error, h+model.Classes+2)
}

// Run starts every role and blocks until all of them have finished Samples cycles.
//
// If a role fails (a source ran out early, the display could not be flushed) Run
// returns its error straight away. The failing role does not release the tokens it
// holds, so the other roles stay blocked. Roles still busy with the failed cycle only
// touch buffers owned by p, never the model.
func (p *Pipeline) Run() (Result, error) {
	p.reset()
	start := time.Now()
	go p.lumberjack.start()
	defer p.lumberjack.stop()

	var wg sync.WaitGroup
	spawn := func(role func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			role()
		}()
	}
	spawn(p.feeder)
	for id := 0; id < p.Workers; id++ {
		id := id
		spawn(func() { p.hiddenWorker(id) })
	}
	for class := 0; class < model.Classes; class++ {
		class := class
		spawn(func() { p.outputWorker(class) })
	}
	spawn(p.collector)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case err := <-p.fatal:
		return Result{}, err
	case <-done:
	}
	// a role may fail on its last cycle and still let everybody else finish
	select {
	case err := <-p.fatal:
		return Result{}, err
	default:
	}
	return Result{
		Cycles:     len(p.outcomes),
		Mismatches: p.mismatches,
		Outcomes:   p.outcomes,
		Elapsed:    time.Since(start),
	}, nil
}

func (p *Pipeline) fail(err error) {
	p.log("fatal: %v", err)
	p.fatal <- err
}

func (p *Pipeline) feeder() {
	for cycle := 0; cycle < p.Samples; cycle++ {
		p.admission.wait(p.Workers)
		if err := p.images.Next(p.raw); err != nil {
			p.fail(errors.WithMessagef(err, "feeder, cycle %d", cycle))
			return
		}
		for i, px := range p.raw {
			p.sample[i] = float32(px)
		}
		p.log("feeder: cycle %d decoded", cycle)

		p.feederDisplay.wait(1)
		if cycle == 0 {
			p.drawFrame()
		}
		p.drawSample(cycle)
		if err := p.display.Flush(); err != nil {
			p.fail(errors.WithMessage(err, "feeder display"))
			return
		}
		p.collectorDisplay.release(1)

		releaseAll(p.sampleReady)
	}
}

func (p *Pipeline) hiddenWorker(id int) {
	start, end := Partition(p.model.Hidden.Units(), p.Workers, id)
	scratch := make([]float32, p.model.Input)
	for cycle := 0; cycle < p.Samples; cycle++ {
		p.outputRetired[id].wait(model.Classes)
		p.sampleReady[id].wait(1)
		for j := start; j < end; j++ {
			p.model.Hidden.Rectify(j, p.sample, p.hidden, scratch)
		}
		p.log("hidden %d: cycle %d units [%d, %d)", id, cycle, start, end)
		releaseAll(p.hiddenReady)
		p.admission.release(1)
	}
}

func (p *Pipeline) outputWorker(class int) {
	scratch := make([]float32, p.model.Hidden.Units())
	for cycle := 0; cycle < p.Samples; cycle++ {
		p.hiddenReady[class].wait(p.Workers)
		p.resultRetired[class].wait(1)
		p.model.Output.Boost(class, p.hidden, p.output, scratch)
		p.log("output %d: cycle %d = %v", class, cycle, p.output[class])
		releaseAll(p.outputRetired)
		p.outputReady.release(1)
	}
}

func (p *Pipeline) collector() {
	for cycle := 0; cycle < p.Samples; cycle++ {
		p.outputReady.wait(model.Classes)
		label, err := p.labels.Next()
		if err != nil {
			p.fail(errors.WithMessagef(err, "collector, cycle %d", cycle))
			return
		}
		out := Outcome{
			Cycle:      cycle,
			Prediction: model.Predict(p.output),
			Label:      label,
		}
		copy(out.Outputs[:], p.output)
		if out.Prediction != label {
			p.mismatches++
		}
		p.outcomes = append(p.outcomes, out)
		p.log("collector: cycle %d predicted %d, label %d", cycle, out.Prediction, label)

		p.collectorDisplay.wait(1)
		p.drawResult(out)
		if err := p.display.Flush(); err != nil {
			p.fail(errors.WithMessage(err, "collector display"))
			return
		}
		p.feederDisplay.release(1)

		releaseAll(p.resultRetired)
	}
}
