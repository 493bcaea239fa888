// Package config provides configuration loading and management for micropanel.
// It handles loading configuration from YAML files, environment overrides,
// default values, and validation before any processing starts.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"micropanel/internal/models"
	"micropanel/pkg/layout"
	"micropanel/pkg/processing"
	"micropanel/pkg/visualization"
)

// ErrInvalidConfig marks configuration problems detected by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// SourceChannels is the number of source channel rows; the merge row follows them.
const SourceChannels = 2

// Channel declares one source channel row: its display axis and one file per column.
type Channel struct {
	// Axis is the color axis the channel is rendered on (e.g. "green", "red")
	Axis string `yaml:"axis"`

	// Files maps each column (condition) to an input image path
	Files []string `yaml:"files"`
}

// Duration is a time.Duration that marshals to YAML as a string like "30s".
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Figure-level output parameters
	Figure struct {
		// Tag is the panel letter drawn at the top-left of the figure
		Tag string `yaml:"tag"`

		// Output is the path of the exported raster image
		Output string `yaml:"output"`

		// Background names the canvas fill color
		Background string `yaml:"background"`

		// IntermediaryDir receives one PNG per grid cell when non-empty
		IntermediaryDir string `yaml:"intermediaryDir"`
	} `yaml:"figure"`

	// Columns lists the condition labels in display order
	Columns []string `yaml:"columns"`

	// Rows lists the three row labels: two source channels then the merge
	Rows []string `yaml:"rows"`

	// Channels holds the two source channel rows; together their Files form
	// the [2][N] file matrix
	Channels []Channel `yaml:"channels"`

	// Merge names the axes used for channel A and channel B in the composite.
	// Empty values fall back to the channels' own axes.
	Merge struct {
		AxisA string `yaml:"axisA"`
		AxisB string `yaml:"axisB"`
	} `yaml:"merge"`

	// Scale bar parameters
	ScaleBar struct {
		Enabled         bool    `yaml:"enabled"`
		PixelsPerMicron float64 `yaml:"pixelsPerMicron"`
		LengthMicrons   float64 `yaml:"lengthMicrons"`
		Color           string  `yaml:"color"`

		// MarginRight is the gap between the bar and the right edge, as a fraction of width
		MarginRight float64 `yaml:"marginRight"`

		// Bottom is the distance from the bar's top edge to the image bottom, as a fraction of height
		Bottom float64 `yaml:"bottom"`

		// HeightFraction is the bar thickness as a fraction of image height
		HeightFraction float64 `yaml:"heightFraction"`

		// Strict fails the run when the bar does not fit its panel.
		// Otherwise the bar is skipped with a warning.
		Strict bool `yaml:"strict"`
	} `yaml:"scaleBar"`

	// Rendering parameters
	Render struct {
		// CellWidth and CellHeight fix the panel size in output pixels.
		// Zero uses the reference image dimensions.
		CellWidth  int `yaml:"cellWidth"`
		CellHeight int `yaml:"cellHeight"`

		// Spacing is the gap between cells as a fraction of the cell width
		Spacing float64 `yaml:"spacing"`

		// TextScale is the integer magnification applied to the bitmap font
		TextScale int `yaml:"textScale"`

		// SmoothSigma applies a Gaussian display blur when positive
		SmoothSigma float64 `yaml:"smoothSigma"`
	} `yaml:"render"`

	// Processing parameters
	Processing struct {
		// NumWorkers bounds how many conditions are processed concurrently
		NumWorkers int `yaml:"numWorkers"`

		// LoadTimeout bounds a single image decode
		LoadTimeout Duration `yaml:"loadTimeout"`

		// PlaceholderSize is the edge length of the blank image substituted for missing files
		PlaceholderSize int `yaml:"placeholderSize"`

		// PadMismatch zero-pads differing channel pairs instead of failing the merge
		PadMismatch bool `yaml:"padMismatch"`
	} `yaml:"processing"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Figure.Tag = "B"
	cfg.Figure.Output = "final_figure.png"
	cfg.Figure.Background = "white"

	cfg.Columns = []string{"Naive", "6h", "24h", "7d"}
	cfg.Rows = []string{"p-AKT", "tdTom", "Merged"}
	cfg.Channels = []Channel{
		{
			Axis:  "green",
			Files: []string{"naive_green.tif", "6h_green.tif", "24h_green.tif", "7d_green.tif"},
		},
		{
			Axis:  "red",
			Files: []string{"naive_red.tif", "6h_red.tif", "24h_red.tif", "7d_red.tif"},
		},
	}

	cfg.ScaleBar.Enabled = true
	cfg.ScaleBar.PixelsPerMicron = 2.5 // e.g. 20x objective usually ~2-3 px/um
	cfg.ScaleBar.LengthMicrons = 100
	cfg.ScaleBar.Color = "yellow"
	cfg.ScaleBar.MarginRight = 0.05
	cfg.ScaleBar.Bottom = 0.1
	cfg.ScaleBar.HeightFraction = 0.02

	cfg.Render.Spacing = 0.05
	cfg.Render.TextScale = 2

	cfg.Processing.NumWorkers = 1
	cfg.Processing.LoadTimeout = Duration(30 * time.Second)
	cfg.Processing.PlaceholderSize = 100

	return cfg
}

// LoadConfig reads the YAML figure description at configPath over the
// defaults, then applies MICROPANEL_* environment overrides. A missing file
// yields the defaults with overrides applied.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", configPath, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", configPath, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("environment override: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating parent directories as needed.
func SaveConfig(cfg *Config, configPath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding figure config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(configPath), err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}
	return nil
}

// WriteDefault writes a starter figure description to configPath.
func WriteDefault(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// ApplyEnv overrides selected values from environment variables. Unparseable
// numeric values are reported as errors rather than ignored.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("MICROPANEL_OUTPUT"); v != "" {
		c.Figure.Output = v
	}
	if v := os.Getenv("MICROPANEL_TAG"); v != "" {
		c.Figure.Tag = v
	}
	if v := os.Getenv("MICROPANEL_PIXELS_PER_MICRON"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MICROPANEL_PIXELS_PER_MICRON: %w", err)
		}
		c.ScaleBar.PixelsPerMicron = f
	}
	if v := os.Getenv("MICROPANEL_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MICROPANEL_WORKERS: %w", err)
		}
		c.Processing.NumWorkers = n
	}
	return nil
}

// MergeAxes returns the axes used for channel A and channel B in the merge row.
func (c *Config) MergeAxes() (processing.Axis, processing.Axis, error) {
	a, b := c.Merge.AxisA, c.Merge.AxisB
	if a == "" && len(c.Channels) > 0 {
		a = c.Channels[0].Axis
	}
	if b == "" && len(c.Channels) > 1 {
		b = c.Channels[1].Axis
	}
	axisA, err := processing.ParseAxis(a)
	if err != nil {
		return 0, 0, err
	}
	axisB, err := processing.ParseAxis(b)
	if err != nil {
		return 0, 0, err
	}
	return axisA, axisB, nil
}

// Conditions expands the column labels and file matrix into one Condition per column.
// Call Validate first; Conditions assumes consistent lengths.
func (c *Config) Conditions() []models.Condition {
	conds := make([]models.Condition, len(c.Columns))
	for col, label := range c.Columns {
		files := make([]string, len(c.Channels))
		for row, ch := range c.Channels {
			files[row] = ch.Files[col]
		}
		conds[col] = models.Condition{Label: label, Column: col, Files: files}
	}
	return conds
}

// Validate checks the configuration for consistency. Every problem found is
// reported, joined, and wrapped with ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []error
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if len(c.Columns) == 0 {
		add("no column labels")
	}
	for i, label := range c.Columns {
		if label == "" {
			add("column %d has an empty label", i)
		}
	}
	if len(c.Rows) != SourceChannels+1 {
		add("expected %d row labels, got %d", SourceChannels+1, len(c.Rows))
	}
	for i, label := range c.Rows {
		if label == "" {
			add("row %d has an empty label", i)
		}
	}
	if len(c.Channels) != SourceChannels {
		add("expected %d channels, got %d", SourceChannels, len(c.Channels))
	}
	for i, ch := range c.Channels {
		if _, err := processing.ParseAxis(ch.Axis); err != nil {
			add("channel %d: %v", i, err)
		}
		if len(ch.Files) != len(c.Columns) {
			add("channel %d has %d files for %d columns", i, len(ch.Files), len(c.Columns))
		}
		for j, f := range ch.Files {
			if f == "" {
				add("channel %d column %d has an empty path", i, j)
			}
		}
	}
	if len(c.Channels) == SourceChannels {
		if a, b, err := c.MergeAxes(); err != nil {
			add("merge: %v", err)
		} else if a == b {
			add("merge axes must differ, both are %s", a)
		}
	}

	if c.Figure.Output == "" {
		add("figure output path is empty")
	} else if err := visualization.CheckFormat(c.Figure.Output); err != nil {
		add("figure output: %v", err)
	}
	if _, err := layout.ParseColor(c.Figure.Background); err != nil {
		add("figure background: %v", err)
	}

	if c.ScaleBar.Enabled {
		if c.ScaleBar.PixelsPerMicron <= 0 {
			add("scale bar pixelsPerMicron must be positive, got %g", c.ScaleBar.PixelsPerMicron)
		}
		if c.ScaleBar.LengthMicrons <= 0 {
			add("scale bar lengthMicrons must be positive, got %g", c.ScaleBar.LengthMicrons)
		}
		if _, err := layout.ParseColor(c.ScaleBar.Color); err != nil {
			add("scale bar color: %v", err)
		}
		if c.ScaleBar.MarginRight < 0 || c.ScaleBar.MarginRight >= 1 {
			add("scale bar marginRight must be in [0, 1), got %g", c.ScaleBar.MarginRight)
		}
		if c.ScaleBar.HeightFraction <= 0 || c.ScaleBar.HeightFraction > c.ScaleBar.Bottom {
			add("scale bar heightFraction must be in (0, bottom], got %g", c.ScaleBar.HeightFraction)
		}
		if c.ScaleBar.Bottom > 1 {
			add("scale bar bottom must be at most 1, got %g", c.ScaleBar.Bottom)
		}
	}

	if c.Render.CellWidth < 0 || c.Render.CellHeight < 0 {
		add("cell dimensions must not be negative")
	}
	if c.Render.Spacing < 0 {
		add("render spacing must not be negative")
	}
	if c.Render.TextScale < 1 {
		add("render textScale must be at least 1, got %d", c.Render.TextScale)
	}
	if c.Render.SmoothSigma < 0 {
		add("render smoothSigma must not be negative")
	}

	if c.Processing.NumWorkers < 1 {
		add("processing numWorkers must be at least 1, got %d", c.Processing.NumWorkers)
	}
	if c.Processing.LoadTimeout < 0 {
		add("processing loadTimeout must not be negative")
	}
	if c.Processing.PlaceholderSize < 1 {
		add("processing placeholderSize must be at least 1, got %d", c.Processing.PlaceholderSize)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(problems...))
	}
	return nil
}
