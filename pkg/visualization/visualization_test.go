package visualization

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"micropanel/internal/models"
	"micropanel/pkg/layout"
)

// solid creates a uniform RGB image with the given channel values
func solid(width, height int, r, g, b float64) *models.RGBImage {
	img := models.NewRGBImage(width, height)
	for i := 0; i < width*height; i++ {
		img.Pix[i*3] = r
		img.Pix[i*3+1] = g
		img.Pix[i*3+2] = b
	}
	return img
}

func testGrid(t *testing.T, cols []string, size int) *layout.Grid {
	t.Helper()
	g, err := layout.NewGrid([]string{"G", "R", "M"}, cols)
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}
	colors := [layout.NumRows][3]float64{{0, 1, 0}, {1, 0, 0}, {1, 1, 0}}
	for row := 0; row < layout.NumRows; row++ {
		for col := range cols {
			c := colors[row]
			if err := g.Place(row, col, solid(size, size, c[0], c[1], c[2]), false); err != nil {
				t.Fatalf("Place failed: %v", err)
			}
		}
	}
	return g
}

func TestRenderPlacesPanels(t *testing.T) {
	grid := testGrid(t, []string{"A", "B"}, 50)
	grid.Tag = "B"
	r := NewRenderer(DefaultOptions())

	geo, err := r.Layout(grid)
	if err != nil {
		t.Fatalf("Layout failed: %v", err)
	}
	if geo.CellWidth != 50 || geo.CellHeight != 50 {
		t.Errorf("Expected 50x50 cells from reference image, got %dx%d", geo.CellWidth, geo.CellHeight)
	}

	canvas, err := r.Render(grid)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if canvas.Bounds() != geo.Canvas {
		t.Errorf("Expected canvas %v, got %v", geo.Canvas, canvas.Bounds())
	}

	want := map[int]color.RGBA{
		0: {0, 255, 0, 255},
		1: {255, 0, 0, 255},
		2: {255, 255, 0, 255},
	}
	for row, c := range want {
		rect := geo.CellRect(row, 1)
		center := image.Pt(rect.Min.X+rect.Dx()/2, rect.Min.Y+rect.Dy()/2)
		if got := canvas.RGBAAt(center.X, center.Y); got != c {
			t.Errorf("Row %d center: expected %v, got %v", row, c, got)
		}
	}

	gapX := geo.CellRect(0, 0).Max.X + geo.Gap/2
	if geo.Gap > 0 {
		if got := canvas.RGBAAt(gapX, geo.CellRect(0, 0).Min.Y+10); got != layout.White {
			t.Errorf("Expected white background between cells, got %v", got)
		}
	}
}

func TestRenderDrawsLabels(t *testing.T) {
	grid := testGrid(t, []string{"Naive", "7d"}, 80)
	r := NewRenderer(DefaultOptions())
	geo, err := r.Layout(grid)
	if err != nil {
		t.Fatalf("Layout failed: %v", err)
	}
	canvas, err := r.Render(grid)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	// Row label: white text over the green panel in the top-left cell
	cell := geo.CellRect(0, 0)
	label := image.Rect(cell.Min.X, cell.Min.Y, cell.Min.X+cell.Dx()/2, cell.Min.Y+cell.Dy()/2)
	if !contains(canvas, label, layout.White) {
		t.Errorf("Expected white row label pixels in %v", label)
	}
	// No row label in the second column
	cell = geo.CellRect(0, 1)
	if contains(canvas, cell, layout.White) {
		t.Errorf("Unexpected white pixels in second column cell")
	}

	// Header: black text above each top-row cell
	for col := 0; col < 2; col++ {
		cell := geo.CellRect(0, col)
		header := image.Rect(cell.Min.X, 0, cell.Max.X, cell.Min.Y)
		if !contains(canvas, header, layout.Black) {
			t.Errorf("Expected black header pixels above column %d", col)
		}
	}
}

func TestRenderScaleBar(t *testing.T) {
	grid := testGrid(t, []string{"A"}, 50)
	row, col := grid.ScaleBarCell()
	bar, err := layout.ComputeScaleBar(layout.ScaleBarParams{
		LengthMicrons:   10,
		PixelsPerMicron: 2,
		MarginRight:     0.05,
		Bottom:          0.1,
		HeightFraction:  0.02,
		Fill:            layout.Blue,
	}, 50, 50)
	if err != nil {
		t.Fatalf("ComputeScaleBar failed: %v", err)
	}
	if err := grid.AttachScaleBar(row, col, bar); err != nil {
		t.Fatalf("AttachScaleBar failed: %v", err)
	}

	r := NewRenderer(DefaultOptions())
	geo, _ := r.Layout(grid)
	canvas, err := r.Render(grid)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	cell := geo.CellRect(row, col)
	rect := ScaleBarRect(&bar, cell)
	if rect.Dx() != 20 {
		t.Errorf("Expected 20 px bar at 1:1 scale, got %d", rect.Dx())
	}
	if got := canvas.RGBAAt(rect.Min.X+rect.Dx()/2, rect.Min.Y); got != layout.Blue {
		t.Errorf("Expected scale bar fill, got %v", got)
	}
	if !rect.In(cell) {
		t.Errorf("Scale bar %v escapes cell %v", rect, cell)
	}
}

func TestScaleBarRectScales(t *testing.T) {
	bar := &layout.ScaleBar{X: 700, Y: 720, Width: 250, Height: 16, RefWidth: 1000, RefHeight: 800}
	area := image.Rect(10, 20, 510, 420)
	rect := ScaleBarRect(bar, area)
	if rect != image.Rect(360, 380, 485, 388) {
		t.Errorf("Unexpected scaled bar %v", rect)
	}
}

func TestRenderFitsCellSize(t *testing.T) {
	grid := testGrid(t, []string{"A"}, 40)
	opts := DefaultOptions()
	opts.CellWidth, opts.CellHeight = 120, 120
	opts.SmoothSigma = 1
	r := NewRenderer(opts)

	geo, err := r.Layout(grid)
	if err != nil {
		t.Fatalf("Layout failed: %v", err)
	}
	canvas, err := r.Render(grid)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	rect := geo.CellRect(1, 0)
	if got := canvas.RGBAAt(rect.Min.X+60, rect.Min.Y+60); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("Expected upscaled red panel, got %v", got)
	}
}

func TestRenderIncompleteGrid(t *testing.T) {
	grid, err := layout.NewGrid([]string{"G", "R", "M"}, []string{"A"})
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}
	if _, err := NewRenderer(DefaultOptions()).Render(grid); !errors.Is(err, layout.ErrIncompleteGrid) {
		t.Errorf("Expected ErrIncompleteGrid, got %v", err)
	}
}

func TestFitSize(t *testing.T) {
	tests := []struct {
		w, h, maxW, maxH int
		fw, fh           int
	}{
		{50, 50, 50, 50, 50, 50},
		{50, 50, 100, 100, 100, 100},
		{100, 50, 100, 100, 100, 50},
		{200, 400, 100, 100, 50, 100},
	}
	for _, tt := range tests {
		fw, fh := fitSize(tt.w, tt.h, tt.maxW, tt.maxH)
		if fw != tt.fw || fh != tt.fh {
			t.Errorf("fitSize(%d, %d, %d, %d) = %d, %d; want %d, %d", tt.w, tt.h, tt.maxW, tt.maxH, fw, fh, tt.fw, tt.fh)
		}
	}
}

func TestSaveWritesAtomically(t *testing.T) {
	dir := t.TempDir()
	img := solid(4, 4, 1, 0, 1).ToRGBA()

	for _, name := range []string{"fig.png", "fig.jpg", "fig.tif"} {
		path := filepath.Join(dir, name)
		if err := Save(img, path); err != nil {
			t.Fatalf("Save(%s) failed: %v", name, err)
		}
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			t.Errorf("Expected non-empty %s, got %v", name, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("Expected only the 3 outputs, found %d entries", len(entries))
	}
}

func TestSaveFailures(t *testing.T) {
	img := solid(2, 2, 0, 0, 0).ToRGBA()

	missingDir := filepath.Join(t.TempDir(), "nope", "fig.png")
	if err := Save(img, missingDir); !errors.Is(err, ErrExport) {
		t.Errorf("Expected ErrExport for missing directory, got %v", err)
	}
	if _, err := os.Stat(missingDir); !os.IsNotExist(err) {
		t.Errorf("Expected no output file, got %v", err)
	}

	if err := Save(img, filepath.Join(t.TempDir(), "fig.bmp")); !errors.Is(err, ErrExport) {
		t.Errorf("Expected ErrExport for unsupported format, got %v", err)
	}
}

func TestSaveIsWorldReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fig.png")
	if err := Save(image.NewRGBA(image.Rect(0, 0, 4, 4)), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0644 {
		t.Errorf("Expected mode 0644, got %v", perm)
	}
}

func TestCheckFormat(t *testing.T) {
	for _, path := range []string{"a.png", "a.JPEG", "a.tiff"} {
		if err := CheckFormat(path); err != nil {
			t.Errorf("CheckFormat(%s) = %v", path, err)
		}
	}
	for _, path := range []string{"a.bmp", "a", "a.gif"} {
		if err := CheckFormat(path); err == nil {
			t.Errorf("Expected CheckFormat(%s) to fail", path)
		}
	}
}

func TestSaveCells(t *testing.T) {
	grid := testGrid(t, []string{"Naive", "6 h"}, 8)
	dir := filepath.Join(t.TempDir(), "cells")
	if err := SaveCells(grid, dir); err != nil {
		t.Fatalf("SaveCells failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 6 {
		t.Errorf("Expected 6 cell images, got %d", len(entries))
	}
	if _, err := os.Stat(filepath.Join(dir, "r2_c01_M_6_h.png")); err != nil {
		t.Errorf("Expected sanitized cell file name: %v", err)
	}
}

func contains(img *image.RGBA, rect image.Rectangle, c color.RGBA) bool {
	rect = rect.Intersect(img.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if img.RGBAAt(x, y) == c {
				return true
			}
		}
	}
	return false
}
