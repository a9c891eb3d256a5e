package pipeline

import (
	"fmt"
	"strings"
)

// screen positions, 1-based
const (
	loadingRow, loadingCol = 5, 5
	resultRow, resultCol   = 5, 66
	frameRow, frameCol     = 7, 5
	glyphRow, glyphCol     = frameRow + 1, frameCol + 1
)

// Glyph renders an image as text, one string per row: "X" for any non-zero pixel and "." otherwise.
func Glyph(pixels []byte, rows, cols int) []string {
	retVal := make([]string, rows)
	var buf strings.Builder
	for y := 0; y < rows; y++ {
		buf.Reset()
		for _, px := range pixels[y*cols : (y+1)*cols] {
			if px != 0 {
				buf.WriteByte('X')
			} else {
				buf.WriteByte('.')
			}
		}
		retVal[y] = buf.String()
	}
	return retVal
}

func (p *Pipeline) drawFrame() {
	border := strings.Repeat("-", p.Cols+2)
	blank := "|" + strings.Repeat(" ", p.Cols) + "|"
	p.display.WriteAt(frameRow, frameCol, border)
	for y := 0; y < p.Rows; y++ {
		p.display.WriteAt(frameRow+1+y, frameCol, blank)
	}
	p.display.WriteAt(frameRow+1+p.Rows, frameCol, border)
}

func (p *Pipeline) drawSample(cycle int) {
	progress := (cycle + 1) * 100 / p.Samples
	p.display.WriteAt(loadingRow, loadingCol, fmt.Sprintf("Testing image No. %5d of %5d images [%d%%]", cycle+1, p.Samples, progress))
	for y, line := range Glyph(p.raw, p.Rows, p.Cols) {
		p.display.WriteAt(glyphRow+y, glyphCol, line)
	}
}

func (p *Pipeline) drawResult(o Outcome) {
	seen := o.Cycle + 1
	rate := 1 - float64(p.mismatches)/float64(seen)
	p.display.WriteAt(resultRow, resultCol, fmt.Sprintf("Result: Correct=%5d  Incorrect=%5d  Success-Rate= %5.2f%% ", seen-p.mismatches, p.mismatches, rate*100))
	p.display.WriteAt(resultRow+1, resultCol, fmt.Sprintf("Prediction: %d   Actual: %d ", o.Prediction, o.Label))
}

type discard struct{}

func (discard) Clear()                   {}
func (discard) WriteAt(int, int, string) {}
func (discard) Flush() error             { return nil }
