package mnistpipe

import "github.com/gorgonia/mnistpipe/pipeline"

// tee repeats everything written to it on several displays.
type tee []pipeline.Display

func (t tee) Clear() {
	for _, d := range t {
		d.Clear()
	}
}

func (t tee) WriteAt(row, col int, text string) {
	for _, d := range t {
		d.WriteAt(row, col, text)
	}
}

func (t tee) Flush() error {
	var errs manyErr
	for _, d := range t {
		if err := d.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs.orNil()
}
