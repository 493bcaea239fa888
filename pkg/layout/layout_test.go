package layout

import (
	"errors"
	"testing"

	"micropanel/internal/models"
)

func fullGrid(t *testing.T, cols []string) *Grid {
	t.Helper()
	g, err := NewGrid([]string{"G", "R", "M"}, cols)
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}
	for row := 0; row < NumRows; row++ {
		for col := range cols {
			if err := g.Place(row, col, models.NewRGBImage(50, 50), false); err != nil {
				t.Fatalf("Place(%d, %d) failed: %v", row, col, err)
			}
		}
	}
	return g
}

func TestNewGridRejectsBadLabels(t *testing.T) {
	tests := []struct {
		name string
		rows []string
		cols []string
	}{
		{"no columns", []string{"G", "R", "M"}, nil},
		{"two rows", []string{"G", "R"}, []string{"A"}},
		{"four rows", []string{"G", "R", "M", "X"}, []string{"A"}},
		{"empty row label", []string{"G", "", "M"}, []string{"A"}},
		{"blank column label", []string{"G", "R", "M"}, []string{"A", " "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGrid(tt.rows, tt.cols); !errors.Is(err, ErrInvalidLayout) {
				t.Errorf("Expected ErrInvalidLayout, got %v", err)
			}
		})
	}
}

func TestGridFullyPopulated(t *testing.T) {
	g := fullGrid(t, []string{"A", "B", "C", "D"})
	if err := g.Validate(); err != nil {
		t.Fatalf("Expected complete grid, got %v", err)
	}
	if n := len(g.Cells()); n != g.Rows()*g.Cols() {
		t.Errorf("Expected %d cells, got %d", g.Rows()*g.Cols(), n)
	}
	for _, c := range g.Cells() {
		if c.Image == nil {
			t.Errorf("Cell (%d, %d) unpopulated", c.Row, c.Col)
		}
	}
}

func TestGridLabels(t *testing.T) {
	g := fullGrid(t, []string{"A", "B"})

	for _, c := range g.Cells() {
		var rowLabel, header *Annotation
		for i := range c.Annotations {
			switch c.Annotations[i].Anchor {
			case AnchorInside:
				rowLabel = &c.Annotations[i]
			case AnchorAbove:
				header = &c.Annotations[i]
			}
		}

		if c.Col == 0 {
			if rowLabel == nil || rowLabel.Text != g.RowLabels[c.Row] {
				t.Errorf("Cell (%d, %d): expected row label %q, got %+v", c.Row, c.Col, g.RowLabels[c.Row], rowLabel)
			} else if rowLabel.Color != White || !rowLabel.Bold {
				t.Errorf("Row label should be bold white, got %+v", rowLabel)
			}
		} else if rowLabel != nil {
			t.Errorf("Cell (%d, %d): unexpected row label %q", c.Row, c.Col, rowLabel.Text)
		}

		if c.Row == 0 {
			if header == nil || header.Text != g.ColLabels[c.Col] {
				t.Errorf("Cell (%d, %d): expected header %q, got %+v", c.Row, c.Col, g.ColLabels[c.Col], header)
			}
		} else if header != nil {
			t.Errorf("Cell (%d, %d): unexpected header %q", c.Row, c.Col, header.Text)
		}
	}
}

func TestGridPlaceErrors(t *testing.T) {
	g, err := NewGrid([]string{"G", "R", "M"}, []string{"A"})
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}
	if err := g.Place(0, 1, models.NewRGBImage(1, 1), false); !errors.Is(err, ErrInvalidLayout) {
		t.Errorf("Expected out of range error, got %v", err)
	}
	if err := g.Place(0, 0, nil, false); err == nil {
		t.Errorf("Expected error for nil image")
	}
	if err := g.Place(0, 0, models.NewRGBImage(1, 1), false); err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	if err := g.Place(0, 0, models.NewRGBImage(1, 1), false); !errors.Is(err, ErrCellOccupied) {
		t.Errorf("Expected ErrCellOccupied, got %v", err)
	}
	if err := g.Validate(); !errors.Is(err, ErrIncompleteGrid) {
		t.Errorf("Expected ErrIncompleteGrid, got %v", err)
	}
}

func TestComputeScaleBarWidth(t *testing.T) {
	p := ScaleBarParams{
		LengthMicrons:   100,
		PixelsPerMicron: 2.5,
		MarginRight:     0.05,
		Bottom:          0.1,
		HeightFraction:  0.02,
		Fill:            Yellow,
	}
	bar, err := ComputeScaleBar(p, 1000, 800)
	if err != nil {
		t.Fatalf("ComputeScaleBar failed: %v", err)
	}
	if bar.Width != 250 {
		t.Errorf("Expected width 250, got %g", bar.Width)
	}
	if bar.X != 700 {
		t.Errorf("Expected x 700, got %g", bar.X)
	}
	if bar.Y != 720 {
		t.Errorf("Expected y 720, got %g", bar.Y)
	}
	if bar.Height != 16 {
		t.Errorf("Expected height 16, got %g", bar.Height)
	}
	if bar.Fill != Yellow {
		t.Errorf("Expected yellow fill, got %v", bar.Fill)
	}
}

func TestComputeScaleBarWithinBounds(t *testing.T) {
	p := ScaleBarParams{LengthMicrons: 40, PixelsPerMicron: 1.5, MarginRight: 0.05, Bottom: 0.1, HeightFraction: 0.02}
	barLen := p.LengthMicrons * p.PixelsPerMicron

	for _, size := range [][2]int{{64, 64}, {100, 30}, {257, 513}, {4096, 2048}} {
		w, h := size[0], size[1]
		bar, err := ComputeScaleBar(p, w, h)
		if err != nil {
			t.Errorf("%dx%d: unexpected error %v", w, h, err)
			continue
		}
		if bar.Width != barLen {
			t.Errorf("%dx%d: expected width %g, got %g", w, h, barLen, bar.Width)
		}
		if bar.X < 0 || bar.Y < 0 || bar.X+bar.Width > float64(w) || bar.Y+bar.Height > float64(h) {
			t.Errorf("%dx%d: bar %+v escapes image", w, h, bar)
		}
	}
}

func TestComputeScaleBarTooLong(t *testing.T) {
	p := ScaleBarParams{LengthMicrons: 100, PixelsPerMicron: 2.5, MarginRight: 0.05, Bottom: 0.1, HeightFraction: 0.02}
	if _, err := ComputeScaleBar(p, 100, 100); !errors.Is(err, ErrScaleBarOutOfBounds) {
		t.Errorf("Expected ErrScaleBarOutOfBounds, got %v", err)
	}
}

func TestAttachScaleBar(t *testing.T) {
	g := fullGrid(t, []string{"A", "B", "C"})
	row, col := g.ScaleBarCell()
	if row != 2 || col != 2 {
		t.Fatalf("Expected bottom-right cell (2, 2), got (%d, %d)", row, col)
	}
	if err := g.AttachScaleBar(row, col, ScaleBar{Width: 10}); err != nil {
		t.Fatalf("AttachScaleBar failed: %v", err)
	}
	if g.Cell(row, col).ScaleBar == nil {
		t.Errorf("Expected scale bar on designated cell")
	}
	if g.Cell(0, 0).ScaleBar != nil {
		t.Errorf("Unexpected scale bar on (0, 0)")
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("Yellow")
	if err != nil || c != Yellow {
		t.Errorf("Expected yellow, got %v (%v)", c, err)
	}
	c, err = ParseColor("#ff8000")
	if err != nil || c.R != 255 || c.G != 128 || c.B != 0 {
		t.Errorf("Expected #ff8000, got %v (%v)", c, err)
	}
	if _, err := ParseColor("chartreuse-ish"); err == nil {
		t.Errorf("Expected error for unknown color")
	}
}
