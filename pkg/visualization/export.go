package visualization

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"micropanel/pkg/layout"
)

// ErrExport marks a failure to write an output image.
var ErrExport = errors.New("export failed")

// Save encodes img by the extension of path (.png, .jpg/.jpeg, .tif/.tiff).
// The file is written to a temporary name in the destination directory and
// renamed into place, so path either holds the complete image or is untouched.
func Save(img image.Image, path string) error {
	encode, err := encoderFor(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	tmpName := tmp.Name()

	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %w", ErrExport, path, err)
	}

	if err := encode(tmp, img); err != nil {
		return fail(err)
	}
	// CreateTemp opens with 0600; the figure is meant to be shared.
	if err := tmp.Chmod(0644); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %w", ErrExport, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %w", ErrExport, path, err)
	}
	return nil
}

// CheckFormat reports whether Save can encode to path, judged by its extension.
func CheckFormat(path string) error {
	_, err := encoderFor(path)
	return err
}

func encoderFor(path string) (func(io.Writer, image.Image) error, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Encode, nil
	case ".jpg", ".jpeg":
		return func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
		}, nil
	case ".tif", ".tiff":
		return func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", filepath.Ext(path))
	}
}

// SaveCells writes every populated cell's image, unscaled and unannotated,
// as a PNG under dir. Files are named by row and column position.
func SaveCells(grid *layout.Grid, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	for _, cell := range grid.Cells() {
		if cell.Image == nil {
			continue
		}
		name := fmt.Sprintf("r%d_c%02d_%s_%s.png", cell.Row, cell.Col,
			sanitize(grid.RowLabels[cell.Row]), sanitize(grid.ColLabels[cell.Col]))
		if err := Save(cell.Image.ToRGBA(), filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
