// Package channel loads single-channel intensity images for the figure.
// A file that cannot be read never aborts the run: the loader substitutes a
// blank placeholder and reports the substitution in the returned result.
package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"micropanel/internal/logger"
	"micropanel/internal/models"
)

// ErrMissingInput marks a load that fell back to a placeholder image.
var ErrMissingInput = errors.New("missing input")

// DefaultPlaceholderSize is the edge length of the blank substitute image.
const DefaultPlaceholderSize = 100

// Decoder reads a 2-D intensity array from a path.
type Decoder interface {
	Decode(path string) (*models.Intensity, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(path string) (*models.Intensity, error)

// Decode calls f(path)
func (f DecoderFunc) Decode(path string) (*models.Intensity, error) {
	return f(path)
}

// Loader loads channel images with placeholder fallback.
type Loader struct {
	decoder         Decoder
	placeholderSize int
	timeout         time.Duration
	log             *logger.Logger
}

// NewLoader creates a Loader. A nil decoder selects DefaultDecoder, a
// non-positive placeholderSize selects DefaultPlaceholderSize, and a zero
// timeout disables the per-file deadline.
func NewLoader(decoder Decoder, placeholderSize int, timeout time.Duration, log *logger.Logger) *Loader {
	if decoder == nil {
		decoder = DefaultDecoder()
	}
	if placeholderSize <= 0 {
		placeholderSize = DefaultPlaceholderSize
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Loader{
		decoder:         decoder,
		placeholderSize: placeholderSize,
		timeout:         timeout,
		log:             log,
	}
}

// Load reads the image at path. On any read failure, including a decode
// that outlives the loader's timeout, the result carries an all-zero
// placeholder with Placeholder set and Err wrapping ErrMissingInput.
// The returned error is non-nil only when ctx itself is done; the run was
// interrupted and no result should be used.
func (l *Loader) Load(ctx context.Context, path string) (models.LoadResult, error) {
	if err := ctx.Err(); err != nil {
		return models.LoadResult{Path: path}, err
	}

	img, err := l.decode(ctx, path)
	if err == nil {
		img.Source = path
		return models.LoadResult{Path: path, Image: img}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return models.LoadResult{Path: path}, fmt.Errorf("loading %s: %w", path, ctxErr)
	}

	err = fmt.Errorf("%w: %s: %w", ErrMissingInput, path, err)
	l.log.Warning("Error: could not load %s, using %dx%d placeholder: %v", path, l.placeholderSize, l.placeholderSize, err)

	ph := Placeholder(l.placeholderSize)
	ph.Source = path
	return models.LoadResult{
		Path:        path,
		Image:       ph,
		Placeholder: true,
		Err:         err,
	}, nil
}

type decodeResult struct {
	img *models.Intensity
	err error
}

func (l *Loader) decode(ctx context.Context, path string) (*models.Intensity, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	// A stuck decode cannot be interrupted; its goroutine finishes on its own
	// and the buffered channel lets it exit.
	done := make(chan decodeResult, 1)
	go func() {
		img, err := l.decoder.Decode(path)
		done <- decodeResult{img, err}
	}()

	select {
	case r := <-done:
		if r.err == nil && r.img == nil {
			return nil, errors.New("decoder returned no image")
		}
		return r.img, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Placeholder returns a size x size all-zero image.
func Placeholder(size int) *models.Intensity {
	return models.NewIntensity(size, size, make([]float64, size*size))
}
