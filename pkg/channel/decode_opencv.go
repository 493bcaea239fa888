//go:build opencv

package channel

import (
	"fmt"

	"gocv.io/x/gocv"

	"micropanel/internal/models"
)

// DefaultDecoder returns the OpenCV-backed decoder, which also reads the
// 32-bit float TIFFs that the Go codecs reject.
func DefaultDecoder() Decoder {
	return OpenCVDecoder{}
}

// OpenCVDecoder reads images with gocv, preserving bit depth.
type OpenCVDecoder struct{}

// Decode implements Decoder
func (OpenCVDecoder) Decode(path string) (*models.Intensity, error) {
	src := gocv.IMRead(path, gocv.IMReadGrayScale|gocv.IMReadAnyDepth)
	defer src.Close()
	if src.Empty() {
		return nil, fmt.Errorf("could not load image: %s", path)
	}

	w, h := src.Cols(), src.Rows()

	floatMat := gocv.NewMat()
	defer floatMat.Close()
	src.ConvertTo(&floatMat, gocv.MatTypeCV64F)

	samples, err := floatMat.DataPtrFloat64()
	if err != nil {
		return nil, fmt.Errorf("reading samples: %w", err)
	}

	data := make([]float64, w*h)
	copy(data, samples[:w*h])
	return models.NewIntensity(w, h, data), nil
}
