// Package gif is a Display that records a virtual terminal into an animated GIF.
package gif

import (
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"math"
	"strings"

	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

var regular *truetype.Font

const (
	dpi        = 72.0
	fontsize   = 12.0
	lineheight = 1.2
	pad        = 10
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

var globPalette = color.Palette{
	color.Gray{0},
	color.Gray{253},
}

// Encoder keeps a Rows × Cols grid of characters. Every Every-th Flush draws the grid
// as a new frame; Close writes the animation into the writer.
type Encoder struct {
	Rows, Cols int
	Every      int
	Delay      int // per frame, in 100ths of a second
	font.Drawer
	io.Writer

	out     *gif.GIF
	grid    [][]rune
	flushes int
	w, h    int
	dy      int
}

// NewEncoder returns an encoder for a rows × cols terminal that keeps one frame out of every.
func NewEncoder(w io.Writer, rows, cols, every int) *Encoder {
	if every < 1 {
		every = 1
	}
	face := truetype.NewFace(regular, &truetype.Options{
		Size:    fontsize,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
	enc := &Encoder{
		Rows:   rows,
		Cols:   cols,
		Every:  every,
		Delay:  10,
		Writer: w,
		Drawer: font.Drawer{
			Src:  image.Black,
			Face: face,
		},
		out: &gif.GIF{LoopCount: -1},
		dy:  int(math.Ceil(fontsize * lineheight * dpi / 72)),
	}
	enc.w = font.MeasureString(face, strings.Repeat("M", cols)).Ceil() + 2*pad
	enc.h = rows*enc.dy + 2*pad
	enc.grid = make([][]rune, rows)
	for i := range enc.grid {
		enc.grid[i] = make([]rune, cols)
	}
	enc.Clear()
	return enc
}

// Clear blanks the grid.
func (enc *Encoder) Clear() {
	for _, row := range enc.grid {
		for i := range row {
			row[i] = ' '
		}
	}
}

// WriteAt writes text at the 1-based row and column. Anything outside the grid is dropped.
func (enc *Encoder) WriteAt(row, col int, text string) {
	if row < 1 || row > enc.Rows || col < 1 {
		return
	}
	line := enc.grid[row-1]
	x := col - 1
	for _, r := range text {
		if x >= enc.Cols {
			break
		}
		line[x] = r
		x++
	}
}

// Flush draws the grid as a frame, if this flush is one to keep.
func (enc *Encoder) Flush() error {
	enc.flushes++
	if (enc.flushes-1)%enc.Every != 0 {
		return nil
	}
	im := image.NewPaletted(image.Rect(0, 0, enc.w, enc.h), globPalette)
	draw.Draw(im, im.Bounds(), image.White, image.ZP, draw.Src)
	enc.Dst = im
	y := pad + enc.dy
	for _, line := range enc.grid {
		enc.Dot = fixed.P(pad, y)
		enc.DrawString(string(line))
		y += enc.dy
	}
	enc.out.Image = append(enc.out.Image, im)
	enc.out.Delay = append(enc.out.Delay, enc.Delay)
	return nil
}

// Frames returns the number of frames recorded so far.
func (enc *Encoder) Frames() int { return len(enc.out.Image) }

// Close writes the animation into the writer. Nothing is written if no frame was recorded.
func (enc *Encoder) Close() error {
	if len(enc.out.Image) == 0 {
		return nil
	}
	return errors.WithStack(gif.EncodeAll(enc.Writer, enc.out))
}
