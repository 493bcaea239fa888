package processing

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"micropanel/internal/models"
)

// Normalize rescales img so that its minimum becomes 0 and its maximum 1.
// A constant image maps to all zeros. The input is not modified.
func Normalize(img *models.Intensity) *models.Intensity {
	out := &models.Intensity{
		Data:   mat.DenseCopyOf(img.Data),
		Source: img.Source,
	}
	samples := out.Samples()

	floats.AddConst(-floats.Min(samples), samples)
	if hi := floats.Max(samples); hi > 0 {
		for i := range samples {
			samples[i] /= hi
		}
	}
	return out
}
