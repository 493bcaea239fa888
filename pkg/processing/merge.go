package processing

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"micropanel/internal/models"
)

var (
	// ErrShapeMismatch is returned when the two channels of a merge differ in size.
	ErrShapeMismatch = errors.New("channel shape mismatch")

	// ErrSameAxis is returned when both channels of a merge are assigned the same axis.
	ErrSameAxis = errors.New("merge channels share an axis")
)

// Merge overlays two normalized channels into one composite: a is written to
// axisA, b to axisB, and every sample is clamped to [0, 1]. Where secondary
// axes overlap the two contributions are summed before clamping.
func Merge(a, b *models.Intensity, axisA, axisB Axis) (*models.RGBImage, error) {
	if a.Width() != b.Width() || a.Height() != b.Height() {
		return nil, fmt.Errorf("%w: %dx%d (%s) vs %dx%d (%s)", ErrShapeMismatch,
			a.Width(), a.Height(), a.Source, b.Width(), b.Height(), b.Source)
	}
	if axisA == axisB {
		return nil, fmt.Errorf("%w: %s", ErrSameAxis, axisA)
	}

	rgb := models.NewRGBImage(a.Width(), a.Height())
	sa, sb := a.Samples(), b.Samples()
	chA, chB := axisA.Channels(), axisB.Channels()

	for i := range sa {
		for _, c := range chA {
			rgb.Pix[i*3+int(c)] += sa[i]
		}
		for _, c := range chB {
			rgb.Pix[i*3+int(c)] += sb[i]
		}
	}
	for i, v := range rgb.Pix {
		rgb.Pix[i] = math.Max(0, math.Min(1, v))
	}
	return rgb, nil
}

// PadTo returns img zero-extended on the right and bottom to width x height.
// Dimensions smaller than the image are kept as they are.
func PadTo(img *models.Intensity, width, height int) *models.Intensity {
	w, h := img.Width(), img.Height()
	if width <= w && height <= h {
		return img
	}
	if width < w {
		width = w
	}
	if height < h {
		height = h
	}
	padded := mat.NewDense(height, width, nil)
	padded.Slice(0, h, 0, w).(*mat.Dense).Copy(img.Data)
	return &models.Intensity{Data: padded, Source: img.Source}
}
