package mnistpipe

import (
	"github.com/gorgonia/mnistpipe/model"
	"github.com/gorgonia/mnistpipe/pipeline"
	"github.com/pkg/errors"
)

// Config configures an Evaluator.
type Config struct {
	Name      string
	ImageFile string // IDX3 images, optionally gzipped
	LabelFile string // IDX1 labels, optionally gzipped
	ParamDir  string // directory holding the four parameter tables
	Shape     model.Shape
	Workers   int // hidden workers
	Samples   int // samples to evaluate. 0 means every sample in ImageFile

	// outputs, all optional
	GIFFile   string // records the screen
	GIFEvery  int    // keep one screen out of GIFEvery
	StatsFile string // confusion matrix as CSV
	DotFile   string // pipeline topology in graphviz format

	CrossCheck int // number of leading samples to replay through the reference graph
}

// DefaultConfig is the configuration for the MNIST test set with the given number of hidden workers.
func DefaultConfig(workers int) Config {
	return Config{
		Name:      "MNIST-NN",
		ImageFile: "data/t10k-images-idx3-ubyte",
		LabelFile: "data/t10k-labels-idx1-ubyte",
		ParamDir:  "net_params",
		Shape:     model.DefaultShape(),
		Workers:   workers,
		Samples:   10000,
		GIFEvery:  100,
	}
}

func (c Config) IsValid() bool { return c.Validate() == nil }

// Validate returns the first problem with the configuration.
func (c Config) Validate() error {
	switch {
	case !c.Shape.IsValid():
		return errors.Errorf("invalid shape %+v", c.Shape)
	case c.ImageFile == "" || c.LabelFile == "":
		return errors.New("image and label files are required")
	case c.Samples < 0:
		return errors.Errorf("negative sample count %d", c.Samples)
	case c.CrossCheck < 0:
		return errors.Errorf("negative cross-check count %d", c.CrossCheck)
	}
	return pipeline.CheckPartition(c.Shape.Hidden, c.Workers)
}
