// Package term is a Display that drives an ANSI terminal.
package term

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Terminal writes cursor-addressed text to w. Nothing reaches w until Flush.
type Terminal struct {
	w *bufio.Writer
}

// New returns a terminal writing to w.
func New(w io.Writer) *Terminal {
	return &Terminal{w: bufio.NewWriter(w)}
}

// Clear clears the screen and homes the cursor.
func (t *Terminal) Clear() { fmt.Fprint(t.w, "\x1b[1;1H\x1b[2J") }

// WriteAt writes text starting at the given 1-based row and column.
func (t *Terminal) WriteAt(row, col int, text string) {
	fmt.Fprintf(t.w, "\x1b[%d;%dH%s", row, col, text)
}

// Flush writes everything buffered to the underlying writer.
func (t *Terminal) Flush() error { return errors.WithStack(t.w.Flush()) }
