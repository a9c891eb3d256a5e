package mnistpipe

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
)

// ErrMisaligned is returned when the image and label containers hold a different number of records.
var ErrMisaligned = errors.New("image and label sources are not aligned")

type manyErr []error

func (err manyErr) Error() string {
	var buf bytes.Buffer
	for _, e := range err {
		fmt.Fprintln(&buf, e.Error())
	}
	return buf.String()
}

func (err manyErr) orNil() error {
	if len(err) == 0 {
		return nil
	}
	return err
}
