// Package visualization rasterizes a layout.Grid onto an RGBA canvas and
// writes the result to disk.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/gift"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"micropanel/pkg/layout"
)

// Options controls canvas geometry and styling.
type Options struct {
	// CellWidth and CellHeight fix the panel size; zero takes the size of the
	// scale-bar cell's image
	CellWidth  int
	CellHeight int

	// Spacing is the gap between cells as a fraction of the cell width
	Spacing float64

	// TextScale magnifies the 7x13 bitmap font by an integer factor
	TextScale int

	// SmoothSigma applies a Gaussian blur to each panel before scaling when positive
	SmoothSigma float64

	Background color.RGBA
}

// DefaultOptions matches the tight white-background layout of a journal figure.
func DefaultOptions() Options {
	return Options{
		Spacing:    0.05,
		TextScale:  2,
		Background: layout.White,
	}
}

// Renderer draws panel grids.
type Renderer struct {
	opts Options
	face font.Face
}

// NewRenderer creates a renderer with the given options
func NewRenderer(opts Options) *Renderer {
	if opts.TextScale < 1 {
		opts.TextScale = 1
	}
	return &Renderer{opts: opts, face: basicfont.Face7x13}
}

// Geometry is the pixel layout of a rendered grid.
type Geometry struct {
	CellWidth, CellHeight int
	Gap                   int
	Origin                image.Point
	Canvas                image.Rectangle
}

// CellRect returns the canvas rectangle of the cell at (row, col).
func (g Geometry) CellRect(row, col int) image.Rectangle {
	x := g.Origin.X + col*(g.CellWidth+g.Gap)
	y := g.Origin.Y + row*(g.CellHeight+g.Gap)
	return image.Rect(x, y, x+g.CellWidth, y+g.CellHeight)
}

// Layout computes the canvas geometry for grid without drawing.
func (r *Renderer) Layout(grid *layout.Grid) (Geometry, error) {
	cw, ch := r.opts.CellWidth, r.opts.CellHeight
	if cw == 0 || ch == 0 {
		row, col := grid.ScaleBarCell()
		ref := grid.Cell(row, col)
		if ref == nil || ref.Image == nil {
			return Geometry{}, fmt.Errorf("%w: no reference image for cell size", layout.ErrIncompleteGrid)
		}
		if cw == 0 {
			cw = ref.Image.Width
		}
		if ch == 0 {
			ch = ref.Image.Height
		}
	}

	lineH := r.lineHeight(r.opts.TextScale)
	margin := lineH / 2
	gap := int(math.Round(r.opts.Spacing * float64(cw)))

	tagW, tagH := 0, 0
	if grid.Tag != "" {
		tagW = r.textWidth(grid.Tag, 2*r.opts.TextScale, true) + margin
		tagH = r.lineHeight(2 * r.opts.TextScale)
	}
	headerH := lineH + lineH/2

	left := margin + tagW
	top := margin + max(headerH, tagH)
	cols, rows := grid.Cols(), grid.Rows()

	width := left + cols*cw + (cols-1)*gap + margin
	height := top + rows*ch + (rows-1)*gap + margin

	return Geometry{
		CellWidth:  cw,
		CellHeight: ch,
		Gap:        gap,
		Origin:     image.Pt(left, top),
		Canvas:     image.Rect(0, 0, width, height),
	}, nil
}

// Render draws every cell of grid with its annotations and scale bar.
func (r *Renderer) Render(grid *layout.Grid) (*image.RGBA, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	geo, err := r.Layout(grid)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(geo.Canvas)
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(r.opts.Background), image.Point{}, draw.Src)

	for _, cell := range grid.Cells() {
		area := r.drawPanel(canvas, cell, geo.CellRect(cell.Row, cell.Col))
		if cell.ScaleBar != nil {
			r.drawScaleBar(canvas, cell.ScaleBar, area)
		}
		for _, a := range cell.Annotations {
			r.drawAnnotation(canvas, a, area, geo.CellRect(cell.Row, cell.Col))
		}
	}

	if grid.Tag != "" {
		margin := r.lineHeight(r.opts.TextScale) / 2
		r.drawText(canvas, grid.Tag, image.Pt(margin, margin), layout.Black, 2*r.opts.TextScale, true)
	}
	return canvas, nil
}

// drawPanel scales the cell image to fit rect, centered, and returns the
// canvas area the image occupies.
func (r *Renderer) drawPanel(canvas *image.RGBA, cell *layout.Cell, rect image.Rectangle) image.Rectangle {
	var src image.Image = cell.Image.ToRGBA()
	sw, sh := cell.Image.Width, cell.Image.Height

	fw, fh := fitSize(sw, sh, rect.Dx(), rect.Dy())

	var filters []gift.Filter
	if r.opts.SmoothSigma > 0 {
		filters = append(filters, gift.GaussianBlur(float32(r.opts.SmoothSigma)))
	}
	if fw != sw || fh != sh {
		filters = append(filters, gift.Resize(fw, fh, gift.LinearResampling))
	}
	if len(filters) > 0 {
		g := gift.New(filters...)
		dst := image.NewRGBA(g.Bounds(src.Bounds()))
		g.Draw(dst, src)
		src = dst
	}

	off := image.Pt(rect.Min.X+(rect.Dx()-fw)/2, rect.Min.Y+(rect.Dy()-fh)/2)
	area := image.Rectangle{Min: off, Max: off.Add(image.Pt(fw, fh))}
	draw.Draw(canvas, area, src, src.Bounds().Min, draw.Src)
	return area
}

// fitSize scales (w, h) to the largest size inside (maxW, maxH) that keeps the aspect ratio.
func fitSize(w, h, maxW, maxH int) (int, int) {
	if w == maxW && h == maxH {
		return w, h
	}
	s := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	fw := max(1, int(math.Round(float64(w)*s)))
	fh := max(1, int(math.Round(float64(h)*s)))
	return min(fw, maxW), min(fh, maxH)
}

// ScaleBarRect maps a bar in reference image pixels onto the canvas area the image occupies.
func ScaleBarRect(bar *layout.ScaleBar, area image.Rectangle) image.Rectangle {
	sx := float64(area.Dx()) / float64(bar.RefWidth)
	sy := float64(area.Dy()) / float64(bar.RefHeight)

	x0 := area.Min.X + int(math.Round(bar.X*sx))
	y0 := area.Min.Y + int(math.Round(bar.Y*sy))
	x1 := area.Min.X + int(math.Round((bar.X+bar.Width)*sx))
	y1 := area.Min.Y + int(math.Round((bar.Y+bar.Height)*sy))
	if y1 <= y0 {
		y1 = y0 + 1
	}
	if x1 <= x0 {
		x1 = x0 + 1
	}
	return image.Rect(x0, y0, x1, y1).Intersect(area)
}

func (r *Renderer) drawScaleBar(canvas *image.RGBA, bar *layout.ScaleBar, area image.Rectangle) {
	rect := ScaleBarRect(bar, area)
	draw.Draw(canvas, rect, image.NewUniform(bar.Fill), image.Point{}, draw.Over)
}

func (r *Renderer) drawAnnotation(canvas *image.RGBA, a layout.Annotation, area, cellRect image.Rectangle) {
	scale := r.opts.TextScale
	switch a.Anchor {
	case layout.AnchorInside:
		pt := image.Pt(
			area.Min.X+int(a.X*float64(area.Dx())),
			area.Min.Y+int(a.Y*float64(area.Dy())),
		)
		r.drawText(canvas, a.Text, pt, a.Color, scale, a.Bold)
	case layout.AnchorAbove:
		lineH := r.lineHeight(scale)
		w := r.textWidth(a.Text, scale, a.Bold)
		pt := image.Pt(cellRect.Min.X+(cellRect.Dx()-w)/2, cellRect.Min.Y-lineH-lineH/2)
		r.drawText(canvas, a.Text, pt, a.Color, scale, a.Bold)
	}
}

func (r *Renderer) lineHeight(scale int) int {
	return r.face.Metrics().Height.Ceil() * scale
}

func (r *Renderer) textWidth(s string, scale int, bold bool) int {
	w := font.MeasureString(r.face, s).Ceil()
	if bold {
		w++
	}
	return w * scale
}

// drawText renders s with its top-left corner at pt. The bitmap font is
// drawn at native size into a glyph layer, then magnified with
// nearest-neighbour sampling so strokes stay crisp.
func (r *Renderer) drawText(canvas *image.RGBA, s string, pt image.Point, c color.RGBA, scale int, bold bool) {
	w := r.textWidth(s, 1, bold)
	h := r.lineHeight(1)
	if w == 0 {
		return
	}

	glyphs := image.NewNRGBA(image.Rect(0, 0, w, h))
	ascent := r.face.Metrics().Ascent.Ceil()
	offsets := []int{0}
	if bold {
		offsets = append(offsets, 1)
	}
	for _, dx := range offsets {
		d := &font.Drawer{
			Dst:  glyphs,
			Src:  image.NewUniform(c),
			Face: r.face,
			Dot:  fixed.P(dx, ascent),
		}
		d.DrawString(s)
	}

	var layer image.Image = glyphs
	if scale > 1 {
		g := gift.New(gift.Resize(w*scale, h*scale, gift.NearestNeighborResampling))
		scaled := image.NewNRGBA(g.Bounds(glyphs.Bounds()))
		g.Draw(scaled, glyphs)
		layer = scaled
	}

	dst := layer.Bounds().Add(pt)
	draw.Draw(canvas, dst, layer, layer.Bounds().Min, draw.Over)
}
