package layout

import (
	"errors"
	"fmt"
	"image/color"
)

// ErrScaleBarOutOfBounds is returned when the bar does not fit inside the reference image.
var ErrScaleBarOutOfBounds = errors.New("scale bar does not fit reference image")

// ScaleBarParams describes a scale bar in physical units plus its placement
// as fractions of the reference image.
type ScaleBarParams struct {
	LengthMicrons   float64
	PixelsPerMicron float64

	// MarginRight is the gap between the bar's right end and the image's right edge
	MarginRight float64

	// Bottom is the distance from the bar's top edge to the image's bottom edge
	Bottom float64

	// HeightFraction is the bar thickness
	HeightFraction float64

	Fill color.RGBA
}

// ScaleBar is a filled rectangle in reference image pixel coordinates,
// origin at the top-left of the image.
type ScaleBar struct {
	X, Y          float64
	Width, Height float64
	Fill          color.RGBA

	// LengthMicrons is the physical length the bar represents
	LengthMicrons float64

	// RefWidth and RefHeight are the dimensions of the image the bar was sized against
	RefWidth, RefHeight int
}

// ComputeScaleBar sizes and positions the bar for a reference image of
// refWidth x refHeight pixels. The bar is LengthMicrons*PixelsPerMicron
// pixels wide and must lie entirely within the image.
func ComputeScaleBar(p ScaleBarParams, refWidth, refHeight int) (ScaleBar, error) {
	if p.LengthMicrons <= 0 || p.PixelsPerMicron <= 0 {
		return ScaleBar{}, fmt.Errorf("scale bar needs positive length and calibration, got %g um at %g px/um",
			p.LengthMicrons, p.PixelsPerMicron)
	}
	if refWidth <= 0 || refHeight <= 0 {
		return ScaleBar{}, fmt.Errorf("%w: empty reference image %dx%d", ErrScaleBarOutOfBounds, refWidth, refHeight)
	}

	w, h := float64(refWidth), float64(refHeight)
	barLen := p.LengthMicrons * p.PixelsPerMicron

	bar := ScaleBar{
		X:             w - barLen - p.MarginRight*w,
		Y:             h - p.Bottom*h,
		Width:         barLen,
		Height:        p.HeightFraction * h,
		Fill:          p.Fill,
		LengthMicrons: p.LengthMicrons,
		RefWidth:      refWidth,
		RefHeight:     refHeight,
	}

	if bar.X < 0 || bar.Y < 0 || bar.X+bar.Width > w || bar.Y+bar.Height > h {
		return ScaleBar{}, fmt.Errorf("%w: %.1f px bar (%g um) in %dx%d image",
			ErrScaleBarOutOfBounds, barLen, p.LengthMicrons, refWidth, refHeight)
	}
	return bar, nil
}
