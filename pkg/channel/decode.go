package channel

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/tiff"

	"micropanel/internal/models"
)

// ImageDecoder decodes TIFF, PNG and JPEG files with the Go image codecs.
// Gray and Gray16 images keep their raw sample values; color images are
// reduced to 16-bit luminance.
type ImageDecoder struct{}

// Decode implements Decoder
func (ImageDecoder) Decode(path string) (*models.Intensity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return ToIntensity(img)
}

// ToIntensity converts a decoded image into real-valued samples.
func ToIntensity(img image.Image) (*models.Intensity, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty image %dx%d", w, h)
	}
	data := make([]float64, w*h)

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				data[y*w+x] = float64(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				data[y*w+x] = float64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				data[y*w+x] = float64(g.Y)
			}
		}
	}
	return models.NewIntensity(w, h, data), nil
}
