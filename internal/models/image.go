package models

import (
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Intensity represents a single grayscale channel image with real-valued samples.
// A normalized Intensity has every sample in [0, 1].
type Intensity struct {
	// Data holds the samples in row-major order, rows = height, cols = width
	Data *mat.Dense

	// Source is the file path the samples were read from (empty for generated data)
	Source string
}

// NewIntensity wraps a row-major sample slice of the given dimensions.
// The slice is used directly, not copied.
func NewIntensity(width, height int, data []float64) *Intensity {
	return &Intensity{Data: mat.NewDense(height, width, data)}
}

// Width returns the number of columns in the image
func (im *Intensity) Width() int {
	_, c := im.Data.Dims()
	return c
}

// Height returns the number of rows in the image
func (im *Intensity) Height() int {
	r, _ := im.Data.Dims()
	return r
}

// At returns the sample at column x, row y.
func (im *Intensity) At(x, y int) float64 {
	return im.Data.At(y, x)
}

// Samples returns the contiguous backing slice of the image.
func (im *Intensity) Samples() []float64 {
	return im.Data.RawMatrix().Data
}

// Channel indexes the three planes of an RGBImage.
type Channel int

const (
	Red Channel = iota
	Green
	Blue
)

// RGBImage is a three-channel image with real-valued samples interleaved as
// R, G, B per pixel. Display conversion assumes samples in [0, 1].
type RGBImage struct {
	Width  int
	Height int
	Pix    []float64
}

// NewRGBImage allocates an all-black image
func NewRGBImage(width, height int) *RGBImage {
	return &RGBImage{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height*3),
	}
}

// At returns the value of channel c at column x, row y.
func (m *RGBImage) At(x, y int, c Channel) float64 {
	return m.Pix[(y*m.Width+x)*3+int(c)]
}

// Set stores v into channel c at column x, row y.
func (m *RGBImage) Set(x, y int, c Channel, v float64) {
	m.Pix[(y*m.Width+x)*3+int(c)] = v
}

// ToRGBA converts the image to 8-bit display values. Samples outside
// [0, 1] are saturated.
func (m *RGBImage) ToRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			i := (y*m.Width + x) * 3
			img.SetRGBA(x, y, color.RGBA{
				R: to8(m.Pix[i]),
				G: to8(m.Pix[i+1]),
				B: to8(m.Pix[i+2]),
				A: 255,
			})
		}
	}
	return img
}

func to8(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// Condition is one experimental group or time point; it forms one column of
// the panel grid and owns one file path per source channel.
type Condition struct {
	// Label is the column header
	Label string

	// Column is the zero-based display column
	Column int

	// Files holds the input path for each source channel, in row order
	Files []string
}

// LoadResult is the outcome of loading one channel image. When Placeholder
// is set, Image is a blank substitute and Err records why the real file
// could not be used.
type LoadResult struct {
	Path        string
	Image       *Intensity
	Placeholder bool
	Err         error
}
