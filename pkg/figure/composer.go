// Package figure drives the full figure pass: load every condition's channel
// pair, normalize, colorize and merge them, place the results in the panel
// grid, annotate the scale bar, and export the rendered canvas.
package figure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"micropanel/internal/logger"
	"micropanel/internal/models"
	"micropanel/pkg/channel"
	"micropanel/pkg/config"
	"micropanel/pkg/layout"
	"micropanel/pkg/processing"
	"micropanel/pkg/visualization"
)

// PanelStats describes one source channel panel after normalization.
type PanelStats struct {
	Condition   string
	Row         string
	Path        string
	Width       int
	Height      int
	Mean        float64
	Placeholder bool
}

// Summary reports what a run produced.
type Summary struct {
	// Panels holds one entry per (source channel, condition), in column then row order
	Panels []PanelStats

	// Placeholders lists the paths that were substituted with blank images
	Placeholders []string

	// ScaleBar is the bar attached to the designated cell, nil when disabled
	// or skipped because it did not fit
	ScaleBar *layout.ScaleBar

	// Output is the written figure path, empty until export succeeds
	Output string

	Duration time.Duration
}

// column holds the three display variants of one condition.
type column struct {
	cond    models.Condition
	views   [layout.NumRows]*models.RGBImage
	ph      [layout.NumRows]bool
	stats   []PanelStats
	missing []string
}

// Composer runs the figure pipeline for one configuration.
type Composer struct {
	cfg      *config.Config
	loader   *channel.Loader
	renderer *visualization.Renderer
	log      *logger.Logger

	axes     [config.SourceChannels]processing.Axis
	mergeA   processing.Axis
	mergeB   processing.Axis
	scaleBar layout.ScaleBarParams

	grid    *layout.Grid
	summary Summary
}

// NewComposer validates cfg and prepares a composer. All configuration
// errors surface here, before any file is read or pixel drawn.
//
// Parameters:
//   - cfg: the validated-on-entry figure configuration
//   - loader: channel loader; nil builds one from cfg with the default decoder
//   - log: progress and warning sink; nil discards
func NewComposer(cfg *config.Config, loader *channel.Loader, log *logger.Logger) (*Composer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	if loader == nil {
		loader = channel.NewLoader(nil, cfg.Processing.PlaceholderSize,
			time.Duration(cfg.Processing.LoadTimeout), log)
	}

	c := &Composer{cfg: cfg, loader: loader, log: log}

	for i, ch := range cfg.Channels {
		axis, err := processing.ParseAxis(ch.Axis)
		if err != nil {
			return nil, fmt.Errorf("%w: channel %d: %w", config.ErrInvalidConfig, i, err)
		}
		c.axes[i] = axis
	}
	var err error
	if c.mergeA, c.mergeB, err = cfg.MergeAxes(); err != nil {
		return nil, fmt.Errorf("%w: merge: %w", config.ErrInvalidConfig, err)
	}

	background, err := layout.ParseColor(cfg.Figure.Background)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	if cfg.ScaleBar.Enabled {
		fill, err := layout.ParseColor(cfg.ScaleBar.Color)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
		}
		c.scaleBar = layout.ScaleBarParams{
			LengthMicrons:   cfg.ScaleBar.LengthMicrons,
			PixelsPerMicron: cfg.ScaleBar.PixelsPerMicron,
			MarginRight:     cfg.ScaleBar.MarginRight,
			Bottom:          cfg.ScaleBar.Bottom,
			HeightFraction:  cfg.ScaleBar.HeightFraction,
			Fill:            fill,
		}
	}

	c.renderer = visualization.NewRenderer(visualization.Options{
		CellWidth:   cfg.Render.CellWidth,
		CellHeight:  cfg.Render.CellHeight,
		Spacing:     cfg.Render.Spacing,
		TextScale:   cfg.Render.TextScale,
		SmoothSigma: cfg.Render.SmoothSigma,
		Background:  background,
	})

	if c.grid, err = layout.NewGrid(cfg.Rows, cfg.Columns); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	c.grid.Tag = cfg.Figure.Tag

	return c, nil
}

// Process runs the complete pipeline and writes the figure. A Composer runs once.
func (c *Composer) Process(ctx context.Context) error {
	start := time.Now()
	c.log.Info("Generating figure...")

	if err := c.Compose(ctx); err != nil {
		return err
	}

	c.log.Info("Step 4: Rendering %dx%d panel grid...", c.grid.Rows(), c.grid.Cols())
	canvas, err := c.renderer.Render(c.grid)
	if err != nil {
		return fmt.Errorf("failed to render figure: %w", err)
	}

	if dir := c.cfg.Figure.IntermediaryDir; dir != "" {
		c.log.Info("Saving individual panels to %s", dir)
		if err := visualization.SaveCells(c.grid, dir); err != nil {
			c.log.Warning("Failed to save individual panels: %v", err)
		}
	}

	// An interrupted run must not leave a partial figure behind.
	if err := ctx.Err(); err != nil {
		return err
	}

	c.log.Info("Step 5: Exporting figure...")
	if err := visualization.Save(canvas, c.cfg.Figure.Output); err != nil {
		return err
	}
	c.summary.Output = c.cfg.Figure.Output
	c.summary.Duration = time.Since(start)

	c.log.Info("Done! Saved as %s", c.cfg.Figure.Output)
	return nil
}

// Compose fills the panel grid and attaches the scale bar without rendering.
func (c *Composer) Compose(ctx context.Context) error {
	conds := c.cfg.Conditions()

	c.log.Info("Step 1: Loading and processing %d conditions...", len(conds))
	cols := make([]*column, len(conds))

	// Each worker writes only its own slot; placement happens afterwards on
	// this goroutine in column order.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Processing.NumWorkers)
	for i, cond := range conds {
		i, cond := i, cond
		g.Go(func() error {
			col, err := c.processCondition(gctx, cond)
			if err != nil {
				return fmt.Errorf("condition %q: %w", cond.Label, err)
			}
			cols[i] = col
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.log.Info("Step 2: Placing panels...")
	for _, col := range cols {
		for row := 0; row < layout.NumRows; row++ {
			if err := c.grid.Place(row, col.cond.Column, col.views[row], col.ph[row]); err != nil {
				return err
			}
		}
		c.summary.Panels = append(c.summary.Panels, col.stats...)
		c.summary.Placeholders = append(c.summary.Placeholders, col.missing...)
	}
	if err := c.grid.Validate(); err != nil {
		return err
	}

	if c.cfg.ScaleBar.Enabled {
		c.log.Info("Step 3: Adding %g um scale bar...", c.cfg.ScaleBar.LengthMicrons)
		row, colIdx := c.grid.ScaleBarCell()
		ref := c.grid.Cell(row, colIdx).Image
		bar, err := layout.ComputeScaleBar(c.scaleBar, ref.Width, ref.Height)
		switch {
		case errors.Is(err, layout.ErrScaleBarOutOfBounds) && !c.cfg.ScaleBar.Strict:
			c.log.Warning("Skipping scale bar: %v", err)
			return nil
		case err != nil:
			return err
		}
		if err := c.grid.AttachScaleBar(row, colIdx, bar); err != nil {
			return err
		}
		c.summary.ScaleBar = &bar
	}
	return nil
}

// processCondition loads, normalizes and derives the three display variants
// for one condition.
func (c *Composer) processCondition(ctx context.Context, cond models.Condition) (*column, error) {
	col := &column{cond: cond}

	var results [config.SourceChannels]models.LoadResult
	var norm [config.SourceChannels]*models.Intensity
	for i, path := range cond.Files {
		res, err := c.loader.Load(ctx, path)
		if err != nil {
			return nil, err
		}
		results[i] = res
		if res.Placeholder {
			col.missing = append(col.missing, path)
		}
		norm[i] = processing.Normalize(results[i].Image)
	}

	a, b, err := c.reconcile(cond, results, norm)
	if err != nil {
		return nil, err
	}
	norm[0], norm[1] = a, b

	merged, err := processing.Merge(norm[0], norm[1], c.mergeA, c.mergeB)
	if err != nil {
		return nil, err
	}

	for i := range norm {
		col.views[i] = processing.Colorize(norm[i], c.axes[i])
		col.ph[i] = results[i].Placeholder
		col.stats = append(col.stats, PanelStats{
			Condition:   cond.Label,
			Row:         c.cfg.Rows[i],
			Path:        results[i].Path,
			Width:       norm[i].Width(),
			Height:      norm[i].Height(),
			Mean:        stat.Mean(norm[i].Samples(), nil),
			Placeholder: results[i].Placeholder,
		})
	}
	col.views[layout.RowMerge] = merged
	col.ph[layout.RowMerge] = results[0].Placeholder || results[1].Placeholder

	c.log.Info("Processed %s: %dx%d", cond.Label, merged.Width, merged.Height)
	return col, nil
}

// reconcile resolves shape differences within a channel pair. A blank
// placeholder takes its sibling's shape, since it carries no data to
// misalign. Two real images of different shapes are a fatal mismatch unless
// padding is enabled.
func (c *Composer) reconcile(cond models.Condition, res [config.SourceChannels]models.LoadResult,
	norm [config.SourceChannels]*models.Intensity) (*models.Intensity, *models.Intensity, error) {
	a, b := norm[0], norm[1]
	if a.Width() == b.Width() && a.Height() == b.Height() {
		return a, b, nil
	}

	switch {
	case res[0].Placeholder && !res[1].Placeholder:
		return blankLike(b, a.Source), b, nil
	case res[1].Placeholder && !res[0].Placeholder:
		return a, blankLike(a, b.Source), nil
	case c.cfg.Processing.PadMismatch:
		w, h := max(a.Width(), b.Width()), max(a.Height(), b.Height())
		c.log.Warning("%s: channel sizes differ (%dx%d vs %dx%d), padding to %dx%d",
			cond.Label, a.Width(), a.Height(), b.Width(), b.Height(), w, h)
		return processing.PadTo(a, w, h), processing.PadTo(b, w, h), nil
	}
	// Let Merge report the mismatch with both shapes.
	return a, b, nil
}

func blankLike(ref *models.Intensity, source string) *models.Intensity {
	img := models.NewIntensity(ref.Width(), ref.Height(), make([]float64, ref.Width()*ref.Height()))
	img.Source = source
	return img
}

// Grid returns the composed panel grid.
func (c *Composer) Grid() *layout.Grid {
	return c.grid
}

// Summary returns the results of the last run.
func (c *Composer) Summary() Summary {
	return c.summary
}
