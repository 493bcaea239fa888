package processing

import (
	"micropanel/internal/models"
)

// Colorize renders a normalized channel on the given color axis. Every RGB
// plane lit by the axis receives the input samples unchanged; the other
// planes stay at zero.
func Colorize(img *models.Intensity, axis Axis) *models.RGBImage {
	w, h := img.Width(), img.Height()
	rgb := models.NewRGBImage(w, h)
	channels := axis.Channels()
	samples := img.Samples()

	for i, v := range samples {
		for _, c := range channels {
			rgb.Pix[i*3+int(c)] = v
		}
	}
	return rgb
}
