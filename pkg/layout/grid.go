// Package layout arranges display images into the labeled panel grid and
// computes the geometry of overlays such as the scale bar. It knows nothing
// about pixels beyond image dimensions; rasterization happens in the
// visualization package.
package layout

import (
	"errors"
	"fmt"
	"image/color"
	"strings"

	"micropanel/internal/models"
)

var (
	// ErrInvalidLayout is returned when row or column labels are missing or malformed.
	ErrInvalidLayout = errors.New("invalid grid layout")

	// ErrCellOccupied is returned when a cell is placed twice.
	ErrCellOccupied = errors.New("grid cell already populated")

	// ErrIncompleteGrid is returned by Validate when some cells hold no image.
	ErrIncompleteGrid = errors.New("grid has unpopulated cells")
)

// Fixed display rows: two source channels followed by their merge.
const (
	RowChannelA = iota
	RowChannelB
	RowMerge

	NumRows
)

// Anchor selects how an annotation is positioned relative to its cell.
type Anchor int

const (
	// AnchorInside places the text's top-left corner at (X, Y), given as
	// fractions of the cell width and height.
	AnchorInside Anchor = iota

	// AnchorAbove centers the text horizontally above the cell.
	AnchorAbove
)

// Row label placement inside the leftmost cells, as fractions of the cell.
const (
	RowLabelX = 0.05
	RowLabelY = 0.10
)

// Annotation is a text label attached to a cell.
type Annotation struct {
	Text   string
	Anchor Anchor
	X, Y   float64
	Color  color.RGBA
	Bold   bool
}

// Cell is one (row, column) position of the panel grid. Cells are pure
// image canvases: no ticks, axes or borders are ever drawn around them.
type Cell struct {
	Row, Col int

	// Image is the display image; nil until placed
	Image *models.RGBImage

	// Placeholder marks cells rendered from a substituted blank input
	Placeholder bool

	Annotations []Annotation

	// ScaleBar is set on the one designated cell
	ScaleBar *ScaleBar
}

// Grid is the panel grid: NumRows display rows by one column per condition.
type Grid struct {
	RowLabels []string
	ColLabels []string

	// Tag is the figure-level panel letter
	Tag string

	cells []Cell
}

// NewGrid creates an empty grid. It fails before any drawing when the label
// lists are missing, empty, or do not describe exactly NumRows rows.
func NewGrid(rowLabels, colLabels []string) (*Grid, error) {
	if len(rowLabels) != NumRows {
		return nil, fmt.Errorf("%w: expected %d row labels, got %d", ErrInvalidLayout, NumRows, len(rowLabels))
	}
	if len(colLabels) == 0 {
		return nil, fmt.Errorf("%w: no column labels", ErrInvalidLayout)
	}
	for i, l := range rowLabels {
		if strings.TrimSpace(l) == "" {
			return nil, fmt.Errorf("%w: row label %d is empty", ErrInvalidLayout, i)
		}
	}
	for i, l := range colLabels {
		if strings.TrimSpace(l) == "" {
			return nil, fmt.Errorf("%w: column label %d is empty", ErrInvalidLayout, i)
		}
	}

	g := &Grid{
		RowLabels: append([]string(nil), rowLabels...),
		ColLabels: append([]string(nil), colLabels...),
		cells:     make([]Cell, NumRows*len(colLabels)),
	}
	for row := 0; row < NumRows; row++ {
		for col := range colLabels {
			g.cells[row*len(colLabels)+col] = Cell{Row: row, Col: col}
		}
	}
	return g, nil
}

// Rows returns the number of display rows
func (g *Grid) Rows() int { return NumRows }

// Cols returns the number of condition columns
func (g *Grid) Cols() int { return len(g.ColLabels) }

// Cell returns the cell at (row, col), or nil when out of range.
func (g *Grid) Cell(row, col int) *Cell {
	if row < 0 || row >= NumRows || col < 0 || col >= g.Cols() {
		return nil
	}
	return &g.cells[row*g.Cols()+col]
}

// Cells returns every cell in row-major order.
func (g *Grid) Cells() []*Cell {
	out := make([]*Cell, len(g.cells))
	for i := range g.cells {
		out[i] = &g.cells[i]
	}
	return out
}

// Place puts img into the cell at (row, col). The leftmost column receives
// the row label drawn inside the image and the top row receives the column
// header drawn above it.
func (g *Grid) Place(row, col int, img *models.RGBImage, placeholder bool) error {
	cell := g.Cell(row, col)
	if cell == nil {
		return fmt.Errorf("%w: cell (%d, %d) outside %dx%d grid", ErrInvalidLayout, row, col, NumRows, g.Cols())
	}
	if img == nil {
		return fmt.Errorf("cell (%d, %d): nil image", row, col)
	}
	if cell.Image != nil {
		return fmt.Errorf("%w: (%d, %d)", ErrCellOccupied, row, col)
	}

	cell.Image = img
	cell.Placeholder = placeholder

	if col == 0 {
		cell.Annotations = append(cell.Annotations, Annotation{
			Text:   g.RowLabels[row],
			Anchor: AnchorInside,
			X:      RowLabelX,
			Y:      RowLabelY,
			Color:  White,
			Bold:   true,
		})
	}
	if row == 0 {
		cell.Annotations = append(cell.Annotations, Annotation{
			Text:   g.ColLabels[col],
			Anchor: AnchorAbove,
			Color:  Black,
		})
	}
	return nil
}

// Validate reports every cell that has not been populated.
func (g *Grid) Validate() error {
	var missing []string
	for _, c := range g.cells {
		if c.Image == nil {
			missing = append(missing, fmt.Sprintf("(%s, %s)", g.RowLabels[c.Row], g.ColLabels[c.Col]))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrIncompleteGrid, strings.Join(missing, ", "))
	}
	return nil
}

// ScaleBarCell returns the designated scale-bar cell position: bottom row, last column.
func (g *Grid) ScaleBarCell() (row, col int) {
	return NumRows - 1, g.Cols() - 1
}

// AttachScaleBar attaches bar to the populated cell at (row, col).
func (g *Grid) AttachScaleBar(row, col int, bar ScaleBar) error {
	cell := g.Cell(row, col)
	if cell == nil || cell.Image == nil {
		return fmt.Errorf("%w: scale bar target (%d, %d) is not populated", ErrIncompleteGrid, row, col)
	}
	cell.ScaleBar = &bar
	return nil
}
