//go:build !opencv

package channel

// DefaultDecoder returns the pure-Go image decoder.
func DefaultDecoder() Decoder {
	return ImageDecoder{}
}
