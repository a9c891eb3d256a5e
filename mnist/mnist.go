// Package mnist decodes the IDX containers the MNIST images and labels are distributed in.
//
// Both containers start with a big-endian header. Records follow it back to back: one
// byte per pixel for images, one byte per label for labels. Paths ending in ".gz" are
// decompressed on the fly.
package mnist

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

const (
	imageMagic = 0x00000803
	labelMagic = 0x00000801
)

var (
	// ErrExhausted is returned when a source runs out of records early.
	ErrExhausted = errors.New("source exhausted")
	// ErrFormat is returned when a header does not describe the expected container.
	ErrFormat = errors.New("not an IDX container of the expected kind")
)

type imageHeader struct{ Magic, Num, Rows, Cols uint32 }

type labelHeader struct{ Magic, Num uint32 }

// Images is a sequential source of raster records.
type Images struct {
	r    io.Reader
	c    io.Closer
	head imageHeader
	read int
}

// NewImages reads the image header from r.
func NewImages(r io.Reader) (*Images, error) {
	im := &Images{r: r}
	if err := binary.Read(r, binary.BigEndian, &im.head); err != nil {
		return nil, errors.Wrapf(err, "reading image header")
	}
	if im.head.Magic != imageMagic {
		return nil, errors.Wrapf(ErrFormat, "image magic %#08x", im.head.Magic)
	}
	return im, nil
}

// OpenImages opens an image container on disk.
func OpenImages(path string) (*Images, error) {
	r, c, err := open(path)
	if err != nil {
		return nil, err
	}
	im, err := NewImages(r)
	if err != nil {
		c.Close()
		return nil, errors.WithMessage(err, path)
	}
	im.c = c
	return im, nil
}

// Len returns the number of images the header announces.
func (im *Images) Len() int { return int(im.head.Num) }

// Rows returns the height of each image.
func (im *Images) Rows() int { return int(im.head.Rows) }

// Cols returns the width of each image.
func (im *Images) Cols() int { return int(im.head.Cols) }

// Size returns the number of pixels in each image.
func (im *Images) Size() int { return im.Rows() * im.Cols() }

// Next decodes the next image into pixels, which must be exactly Size() long.
func (im *Images) Next(pixels []byte) error {
	if len(pixels) != im.Size() {
		return errors.Errorf("image buffer holds %d pixels, images have %d", len(pixels), im.Size())
	}
	if _, err := io.ReadFull(im.r, pixels); err != nil {
		return errors.Wrapf(ErrExhausted, "image %d: %v", im.read, err)
	}
	im.read++
	return nil
}

// Close closes the underlying file, if any.
func (im *Images) Close() error {
	if im.c == nil {
		return nil
	}
	return im.c.Close()
}

// Labels is a sequential source of class ids.
type Labels struct {
	r    byteReader
	c    io.Closer
	head labelHeader
	read int
}

// NewLabels reads the label header from r.
func NewLabels(r io.Reader) (*Labels, error) {
	l := &Labels{}
	if br, ok := r.(byteReader); ok {
		l.r = br
	} else {
		l.r = bufio.NewReader(r)
	}
	if err := binary.Read(l.r, binary.BigEndian, &l.head); err != nil {
		return nil, errors.Wrapf(err, "reading label header")
	}
	if l.head.Magic != labelMagic {
		return nil, errors.Wrapf(ErrFormat, "label magic %#08x", l.head.Magic)
	}
	return l, nil
}

// OpenLabels opens a label container on disk.
func OpenLabels(path string) (*Labels, error) {
	r, c, err := open(path)
	if err != nil {
		return nil, err
	}
	l, err := NewLabels(r)
	if err != nil {
		c.Close()
		return nil, errors.WithMessage(err, path)
	}
	l.c = c
	return l, nil
}

// Len returns the number of labels the header announces.
func (l *Labels) Len() int { return int(l.head.Num) }

// Next decodes the next label.
func (l *Labels) Next() (int, error) {
	b, err := l.r.ReadByte()
	if err != nil {
		return 0, errors.Wrapf(ErrExhausted, "label %d: %v", l.read, err)
	}
	l.read++
	return int(b), nil
}

// Close closes the underlying file, if any.
func (l *Labels) Close() error {
	if l.c == nil {
		return nil
	}
	return l.c.Close()
}

func open(path string) (io.Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return bufio.NewReader(f), f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, errors.Wrapf(err, "gzip %s", path)
	}
	return bufio.NewReader(gz), closers{gz, f}, nil
}

type byteReader interface {
	io.Reader
	io.ByteReader
}

type closers []io.Closer

func (cs closers) Close() (err error) {
	for _, c := range cs {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
